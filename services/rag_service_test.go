package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/itish2003/courserag/llm"
	"github.com/itish2003/courserag/models"
)

func newTestRAG(t *testing.T, completer llm.Completer, index CourseIndex, sessions SessionStore) RAGService {
	t.Helper()
	return NewRAGService(RAGDeps{
		Index:      index,
		Sessions:   sessions,
		Loop:       NewConversationLoop(completer, 2, time.Second, nopLog()),
		MaxResults: 5,
		Log:        nopLog(),
	})
}

func TestRAGService_LessonQueryYieldsSource(t *testing.T) {
	completer := &scriptedCompleter{script: []*llm.Completion{
		toolCall("c1", SearchToolName, map[string]any{
			"query":         "lesson content",
			"course_name":   "Building Towards Computer Use",
			"lesson_number": float64(2),
		}),
		{Text: "Lesson 2 covers prompt caching."},
	}}
	svc := newTestRAG(t, completer, seededIndex(t), NewMemorySessionStore(2))

	answer, sources, sessionID, err := svc.Answer(context.Background(), "What is covered in lesson 2 of Building Towards Computer Use?", "")
	if err != nil {
		t.Fatalf("answer failed: %v", err)
	}
	if answer != "Lesson 2 covers prompt caching." {
		t.Errorf("unexpected answer %q", answer)
	}
	if _, err := uuid.Parse(sessionID); err != nil {
		t.Errorf("expected a generated uuid session id, got %q", sessionID)
	}
	found := false
	for _, s := range sources {
		if s.Course == "Building Towards Computer Use" && s.Lesson == 2 {
			found = true
		}
	}
	if !found {
		t.Errorf("sources %+v do not include lesson 2", sources)
	}
}

func TestRAGService_HistoryCarriesIntoNextQuery(t *testing.T) {
	completer := &scriptedCompleter{script: []*llm.Completion{
		{Text: "Go was created at Google."},
		{Text: "In 2009."},
	}}
	svc := newTestRAG(t, completer, emptyIndex{}, NewMemorySessionStore(2))
	ctx := context.Background()

	_, _, sessionID, err := svc.Answer(ctx, "Who created Go?", "")
	if err != nil {
		t.Fatalf("first answer failed: %v", err)
	}
	if _, _, _, err := svc.Answer(ctx, "When?", sessionID); err != nil {
		t.Fatalf("second answer failed: %v", err)
	}

	calls := completer.calls()
	if strings.Contains(calls[0].System, "Previous conversation:") {
		t.Error("first query should have no history")
	}
	second := calls[1].System
	for _, want := range []string{"Previous conversation:", "User: Who created Go?", "Assistant: Go was created at Google."} {
		if !strings.Contains(second, want) {
			t.Errorf("second system prompt missing %q", want)
		}
	}
}

func TestRAGService_SourcesAreScopedToOneQuery(t *testing.T) {
	completer := &scriptedCompleter{script: []*llm.Completion{
		toolCall("c1", SearchToolName, map[string]any{"query": "embeddings"}),
		{Text: "first"},
		{Text: "second, no search"},
	}}
	svc := newTestRAG(t, completer, seededIndex(t), NewMemorySessionStore(2))
	ctx := context.Background()

	_, first, sessionID, _ := svc.Answer(ctx, "What are embeddings?", "")
	if len(first) == 0 {
		t.Fatal("first query should have sources")
	}
	_, second, _, _ := svc.Answer(ctx, "Thanks!", sessionID)
	if len(second) != 0 {
		t.Errorf("sources leaked into the next query: %+v", second)
	}
}

func TestRAGService_FailureDoesNotPersist(t *testing.T) {
	failing := &scriptedCompleter{fallback: func(llm.CompletionRequest) (*llm.Completion, error) {
		return nil, errors.New("boom")
	}}
	sessions := NewMemorySessionStore(2)
	svc := newTestRAG(t, failing, emptyIndex{}, sessions)

	_, err := svc.QueryRAG(context.Background(), models.QueryTextRequest{Query: "hi", SessionID: "s1"})
	if !errors.Is(err, ErrCompletionFailed) {
		t.Fatalf("expected ErrCompletionFailed, got %v", err)
	}
	if h, _ := sessions.History(context.Background(), "s1"); len(h) != 0 {
		t.Errorf("failed query persisted %+v", h)
	}
}

func TestRAGService_EmptyQuery(t *testing.T) {
	svc := newTestRAG(t, &scriptedCompleter{}, emptyIndex{}, NewMemorySessionStore(2))
	if _, _, _, err := svc.Answer(context.Background(), "   ", ""); !errors.Is(err, ErrEmptyQuery) {
		t.Errorf("expected ErrEmptyQuery, got %v", err)
	}
}

func TestRAGService_CourseStats(t *testing.T) {
	svc := newTestRAG(t, &scriptedCompleter{}, seededIndex(t), NewMemorySessionStore(2))
	stats, err := svc.GetCourseStats(context.Background())
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.TotalCourses != 2 || stats.CourseTitles[0] != "Building Towards Computer Use" || stats.CourseTitles[1] != "Retrieval Basics" {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestRAGService_IngestDirectory(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "course1.txt", courseDoc)
	docs, err := NewDocsRoot(root)
	if err != nil {
		t.Fatalf("docs root: %v", err)
	}
	idx := newTestIndex()
	svc := NewRAGService(RAGDeps{
		Index:     idx,
		Sessions:  NewMemorySessionStore(2),
		Loop:      NewConversationLoop(&scriptedCompleter{}, 2, time.Second, nopLog()),
		Ingestion: newTestIngestion(idx),
		Docs:      docs,
		Log:       nopLog(),
	})

	report, err := svc.IngestDirectory(context.Background(), "")
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	if report.Added != 1 {
		t.Errorf("unexpected report %+v", report)
	}
	if _, err := svc.IngestDirectory(context.Background(), "../../etc"); !errors.Is(err, ErrOutsideDocsRoot) {
		t.Errorf("expected ErrOutsideDocsRoot, got %v", err)
	}
}
