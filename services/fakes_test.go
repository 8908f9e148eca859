package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/itish2003/courserag/llm"
	"github.com/itish2003/courserag/logger"
	"github.com/itish2003/courserag/models"
	"github.com/itish2003/courserag/vectorstore"
)

// scriptedCompleter replays canned completions and records every request.
type scriptedCompleter struct {
	mu       sync.Mutex
	script   []*llm.Completion
	fallback func(req llm.CompletionRequest) (*llm.Completion, error)
	requests []llm.CompletionRequest
}

func (s *scriptedCompleter) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.Completion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if len(s.script) > 0 {
		next := s.script[0]
		s.script = s.script[1:]
		return next, nil
	}
	if s.fallback != nil {
		return s.fallback(req)
	}
	return &llm.Completion{Text: "done"}, nil
}

func (s *scriptedCompleter) calls() []llm.CompletionRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]llm.CompletionRequest(nil), s.requests...)
}

// alwaysToolCompleter asks for a search on every round, even when told not to.
type alwaysToolCompleter struct {
	mu     sync.Mutex
	rounds int
}

func (a *alwaysToolCompleter) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.Completion, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rounds++
	return &llm.Completion{ToolCalls: []llm.ToolCall{{
		ID:   fmt.Sprintf("call-%d", a.rounds),
		Name: SearchToolName,
		Args: map[string]any{"query": "anything"},
	}}}, nil
}

func toolCall(id, name string, args map[string]any) *llm.Completion {
	return &llm.Completion{ToolCalls: []llm.ToolCall{{ID: id, Name: name, Args: args}}}
}

const courseDoc = `Course Title: Building Towards Computer Use
Course Link: https://example.com/computer-use
Course Instructor: Colt Steele

Lesson 0: Introduction
Lesson Link: https://example.com/computer-use/0
Welcome to the course. We will build an agent that can use a computer.

Lesson 1: Working With the API
Lesson Link: https://example.com/computer-use/1
The messages API takes a list of messages and returns a completion.

Lesson 2: Prompt Caching
Lesson Link: https://example.com/computer-use/2
Prompt caching stores the processed prefix of a prompt so repeated requests are cheaper and faster.
`

const secondDoc = `Course Title: Retrieval Basics
Course Instructor: Ada Lovelace

Lesson 0: Embeddings
Embeddings map text to vectors so similar passages land close together.

Lesson 1: Chunking
Chunking splits long documents into overlapping windows before embedding.
`

func newTestIndex() *vectorstore.Index {
	return vectorstore.NewIndex(
		vectorstore.NewMemoryCollection(),
		vectorstore.NewMemoryCollection(),
		llm.NewHashingEmbedder(512),
		logger.Nop(),
		vectorstore.Options{},
	)
}

func newTestIngestion(index CourseIndex) *IngestionService {
	return NewIngestionService(NewDocumentExtractor("", logger.Nop()), index, NewChunker(800, 100), logger.Nop())
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func seededIndex(t *testing.T) *vectorstore.Index {
	t.Helper()
	idx := newTestIndex()
	dir := t.TempDir()
	writeFile(t, dir, "course1.txt", courseDoc)
	writeFile(t, dir, "course2.txt", secondDoc)
	if _, err := newTestIngestion(idx).IngestDirectory(context.Background(), dir); err != nil {
		t.Fatalf("seed ingest failed: %v", err)
	}
	return idx
}

// emptyIndex satisfies CourseIndex with nothing stored.
type emptyIndex struct{}

func (emptyIndex) CourseExists(context.Context, string) (bool, error) { return false, nil }
func (emptyIndex) Ingest(context.Context, models.Course, []models.CourseChunk) error {
	return nil
}
func (emptyIndex) Query(context.Context, vectorstore.SearchQuery) ([]models.ScoredChunk, error) {
	return []models.ScoredChunk{}, nil
}
func (emptyIndex) ResolveCourse(_ context.Context, name string) (string, error) {
	return "", fmt.Errorf("%w: %q", vectorstore.ErrCourseNotFound, name)
}
func (emptyIndex) Course(_ context.Context, title string) (models.Course, error) {
	return models.Course{}, vectorstore.ErrCourseNotFound
}
func (emptyIndex) Courses(context.Context) ([]models.Course, error) { return nil, nil }

type brokenEmbedder struct{}

func (brokenEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("connection refused")
}

func nopLog() *logger.Logger { return logger.Nop() }
