package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/itish2003/courserag/vectorstore"
)

func TestIngestionService_IngestDirectory(t *testing.T) {
	idx := newTestIndex()
	svc := newTestIngestion(idx)
	dir := t.TempDir()
	writeFile(t, dir, "course1.txt", courseDoc)
	writeFile(t, dir, "course2.md", secondDoc)
	writeFile(t, dir, "blank.txt", "   \n")
	writeFile(t, dir, "data.csv", "a,b,c")

	report, err := svc.IngestDirectory(context.Background(), dir)
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	if report.Added != 2 || report.Skipped != 0 || report.Failed != 1 {
		t.Errorf("unexpected report: %+v", report)
	}
	if report.Chunks == 0 || len(report.Courses) != 2 {
		t.Errorf("expected chunks and course titles in report: %+v", report)
	}
}

func TestIngestionService_ReingestIsSkipped(t *testing.T) {
	idx := newTestIndex()
	svc := newTestIngestion(idx)
	dir := t.TempDir()
	writeFile(t, dir, "course1.txt", courseDoc)
	ctx := context.Background()

	if _, err := svc.IngestDirectory(ctx, dir); err != nil {
		t.Fatalf("first ingest failed: %v", err)
	}
	before, _ := idx.ChunkCount(ctx, "Building Towards Computer Use")

	// Same title under a different file name.
	writeFile(t, dir, "copy.txt", courseDoc)
	report, err := svc.IngestDirectory(ctx, dir)
	if err != nil {
		t.Fatalf("second ingest failed: %v", err)
	}
	if report.Added != 0 || report.Skipped != 2 {
		t.Errorf("expected everything skipped, got %+v", report)
	}
	after, _ := idx.ChunkCount(ctx, "Building Towards Computer Use")
	if before == 0 || before != after {
		t.Errorf("chunk count changed from %d to %d", before, after)
	}
}

func TestIngestionService_IngestFileErrors(t *testing.T) {
	svc := newTestIngestion(newTestIndex())
	dir := t.TempDir()

	_, err := svc.IngestFile(context.Background(), writeFile(t, dir, "x.csv", "a,b"))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
	_, err = svc.IngestFile(context.Background(), writeFile(t, dir, "empty.txt", ""))
	if !errors.Is(err, ErrEmptyDocument) {
		t.Errorf("expected ErrEmptyDocument, got %v", err)
	}
}

func TestIngestionService_CancelledContext(t *testing.T) {
	svc := newTestIngestion(newTestIndex())
	dir := t.TempDir()
	writeFile(t, dir, "course1.txt", courseDoc)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := svc.IngestDirectory(ctx, dir); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestIngestionService_WatchDirectory(t *testing.T) {
	idx := newTestIndex()
	svc := newTestIngestion(idx)
	svc.settle = 50 * time.Millisecond
	dir := t.TempDir()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- svc.WatchDirectory(ctx, dir) }()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, dir, "live.txt", secondDoc)

	deadline := time.After(3 * time.Second)
	for {
		exists, err := idx.CourseExists(ctx, "Retrieval Basics")
		if err != nil {
			t.Fatalf("exists check failed: %v", err)
		}
		if exists {
			break
		}
		select {
		case <-deadline:
			t.Fatal("watched document was not ingested")
		case <-time.After(25 * time.Millisecond):
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("watcher returned error: %v", err)
	}
}

func TestIngestionService_IndexFailureCountsAsFailed(t *testing.T) {
	idx := vectorstore.NewIndex(vectorstore.NewMemoryCollection(), vectorstore.NewMemoryCollection(), brokenEmbedder{}, nopLog(), vectorstore.Options{})
	svc := newTestIngestion(idx)
	dir := t.TempDir()
	writeFile(t, dir, "course1.txt", courseDoc)
	writeFile(t, dir, "course2.txt", secondDoc)

	report, err := svc.IngestDirectory(context.Background(), dir)
	if err != nil {
		t.Fatalf("ingest should isolate per-document errors: %v", err)
	}
	if report.Failed != 2 || report.Added != 0 {
		t.Errorf("unexpected report: %+v", report)
	}
}
