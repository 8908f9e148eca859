package models

import "fmt"

// Course is one ingested document. The title is the unique key.
type Course struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Link        string   `json:"link,omitempty"`
	Instructor  string   `json:"instructor,omitempty"`
	Lessons     []Lesson `json:"lessons"`
}

// Lesson belongs to exactly one Course.
type Lesson struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	Link   string `json:"link,omitempty"`

	// Content is the raw lesson body. It is only populated while a document
	// is being ingested and is never stored in the catalog.
	Content string `json:"-"`
}

// LessonByNumber returns the lesson with the given ordinal.
func (c Course) LessonByNumber(n int) (Lesson, bool) {
	for _, l := range c.Lessons {
		if l.Number == n {
			return l, true
		}
	}
	return Lesson{}, false
}

// CourseChunk is a contiguous span of lesson text used as the unit of retrieval.
// Overlap is the number of leading bytes shared with the previous chunk of the
// same lesson; it is zero for the first chunk of every lesson.
type CourseChunk struct {
	ID           string `json:"id"`
	CourseTitle  string `json:"course_title"`
	LessonNumber int    `json:"lesson_number"`
	LessonLink   string `json:"lesson_link,omitempty"`
	ChunkIndex   int    `json:"chunk_index"`
	Overlap      int    `json:"overlap"`
	Content      string `json:"content"`
}

// ScoredChunk pairs a chunk with its relevance to a query. Higher is better.
type ScoredChunk struct {
	Chunk CourseChunk `json:"chunk"`
	Score float64     `json:"score"`
}

// Source is the provenance of retrieved content surfaced alongside an answer.
type Source struct {
	Course string `json:"course"`
	Lesson int    `json:"lesson"`
	Link   string `json:"link,omitempty"`
}

// Label renders the source the way answers cite it, e.g. "Course X - Lesson 2".
func (s Source) Label() string {
	return fmt.Sprintf("%s - Lesson %d", s.Course, s.Lesson)
}
