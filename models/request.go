package models

// QueryTextRequest is the body of POST /api/v1/query.
type QueryTextRequest struct {
	Query     string `json:"query" binding:"required"`
	SessionID string `json:"sessionID,omitempty"`
}

// IngestDirectoryRequest asks the service to ingest every supported document in a
// directory below the documents root. An empty path means the root itself.
type IngestDirectoryRequest struct {
	Path string `json:"path"`
}
