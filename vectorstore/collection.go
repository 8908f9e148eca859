// Package vectorstore holds the two-collection course index: a catalog of
// courses and the chunk content used for semantic search.
package vectorstore

import (
	"context"
	"errors"
)

var (
	// ErrIndexUnavailable wraps any failure to reach the embedding service or the store.
	ErrIndexUnavailable = errors.New("vector index unavailable")
	// ErrIndexTimeout is returned when an index operation exceeds its deadline.
	ErrIndexTimeout = errors.New("vector index timed out")
	// ErrCourseNotFound is returned when a course name cannot be resolved in the catalog.
	ErrCourseNotFound = errors.New("course not found")
)

// Document is one stored record.
type Document struct {
	ID        string
	Text      string
	Embedding []float32
	Metadata  map[string]any
}

// Match is a document returned by a similarity query. Distance is a cosine
// distance in [0, 2]; lower is closer.
type Match struct {
	Document Document
	Distance float64
}

// Filter restricts a query to documents whose metadata Field equals Value.
// The zero Filter matches everything.
type Filter struct {
	Field string
	Value string
}

func (f Filter) IsZero() bool { return f.Field == "" }

func (f Filter) matches(meta map[string]any) bool {
	if f.IsZero() {
		return true
	}
	v, ok := meta[f.Field].(string)
	return ok && v == f.Value
}

// Collection is the storage backend for one logical collection.
type Collection interface {
	Add(ctx context.Context, docs []Document) error
	Query(ctx context.Context, embedding []float32, n int, where Filter) ([]Match, error)
	Get(ctx context.Context, where Filter) ([]Document, error)
	Delete(ctx context.Context, where Filter) error
	Count(ctx context.Context) (int, error)
}
