package models

// QueryRAGResponse is returned for every answered query.
type QueryRAGResponse struct {
	Answer    string   `json:"answer"`
	Sources   []Source `json:"sources"`
	SessionID string   `json:"sessionID"`
}

// CourseStatsResponse summarises the course catalog.
type CourseStatsResponse struct {
	TotalCourses int      `json:"total_courses"`
	CourseTitles []string `json:"course_titles"`
}

// IngestReport counts the outcome of a directory ingestion.
type IngestReport struct {
	Added   int      `json:"added"`
	Skipped int      `json:"skipped"`
	Failed  int      `json:"failed"`
	Chunks  int      `json:"chunks"`
	Courses []string `json:"courses,omitempty"`
}

// ErrorResponse is the structured body for failed requests.
type ErrorResponse struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable,omitempty"`
}
