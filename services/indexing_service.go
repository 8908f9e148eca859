package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/itish2003/courserag/logger"
	"github.com/itish2003/courserag/models"
	"github.com/itish2003/courserag/vectorstore"
)

// CourseIndex is the slice of the vector index used by ingestion and tools.
type CourseIndex interface {
	CourseExists(ctx context.Context, title string) (bool, error)
	Ingest(ctx context.Context, course models.Course, chunks []models.CourseChunk) error
	Query(ctx context.Context, q vectorstore.SearchQuery) ([]models.ScoredChunk, error)
	ResolveCourse(ctx context.Context, name string) (string, error)
	Course(ctx context.Context, title string) (models.Course, error)
	Courses(ctx context.Context) ([]models.Course, error)
}

// TextExtractor turns a file into plain text.
type TextExtractor interface {
	ExtractTextFromFile(path string) (string, error)
}

// IngestOutcome describes what happened to a single document.
type IngestOutcome int

const (
	OutcomeAdded IngestOutcome = iota
	OutcomeSkipped
)

// IngestResult is the outcome of ingesting one document.
type IngestResult struct {
	Course  models.Course
	Chunks  int
	Outcome IngestOutcome
}

func (o IngestOutcome) String() string {
	if o == OutcomeSkipped {
		return "skipped"
	}
	return "added"
}

// IngestionService handles scanning, parsing, chunking and indexing course documents.
type IngestionService struct {
	extractor TextExtractor
	index     CourseIndex
	chunker   *Chunker
	log       *logger.Logger

	// settle is how long the watcher waits after the last write before ingesting.
	settle time.Duration
}

// NewIngestionService creates a new ingestion service.
func NewIngestionService(extractor TextExtractor, index CourseIndex, chunker *Chunker, log *logger.Logger) *IngestionService {
	return &IngestionService{
		extractor: extractor,
		index:     index,
		chunker:   chunker,
		log:       log.With("service", "IngestionService"),
		settle:    500 * time.Millisecond,
	}
}

// IngestFile runs the pipeline for one document. A course whose title is
// already indexed is skipped without touching the index.
func (s *IngestionService) IngestFile(ctx context.Context, path string) (IngestResult, error) {
	text, err := s.extractor.ExtractTextFromFile(path)
	if err != nil {
		return IngestResult{}, fmt.Errorf("extract %s: %w", filepath.Base(path), err)
	}
	course, err := ParseCourseDocument(text)
	if err != nil {
		return IngestResult{}, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	res := IngestResult{Course: course}

	exists, err := s.index.CourseExists(ctx, course.Title)
	if err != nil {
		return res, err
	}
	if exists {
		s.log.Debug("course already indexed, skipping", "course", course.Title, "path", path)
		res.Outcome = OutcomeSkipped
		return res, nil
	}

	chunks := s.chunker.ChunkCourse(course)
	if len(chunks) == 0 {
		return res, fmt.Errorf("%w: %s", ErrEmptyDocument, filepath.Base(path))
	}
	if err := s.index.Ingest(ctx, course, chunks); err != nil {
		return res, fmt.Errorf("index %q: %w", course.Title, err)
	}
	res.Chunks = len(chunks)
	res.Outcome = OutcomeAdded
	return res, nil
}

// IngestDirectory ingests every supported file under dir. Failures are
// counted and logged per document; the walk continues. Only cancellation
// aborts the run.
func (s *IngestionService) IngestDirectory(ctx context.Context, dir string) (models.IngestReport, error) {
	report := models.IngestReport{Courses: []string{}}

	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && isSupportedFile(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return report, fmt.Errorf("walk %s: %w", dir, err)
	}
	sort.Strings(paths)
	s.log.Info("starting directory ingestion", "dir", dir, "files", len(paths))

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		res, err := s.IngestFile(ctx, path)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return report, err
			}
			report.Failed++
			s.log.Warn("document failed", "path", path, "error", err)
			continue
		}
		switch res.Outcome {
		case OutcomeSkipped:
			report.Skipped++
		default:
			report.Added++
			report.Chunks += res.Chunks
			report.Courses = append(report.Courses, res.Course.Title)
		}
	}
	s.log.Info("directory ingestion finished", "dir", dir, "added", report.Added, "skipped", report.Skipped, "failed", report.Failed, "chunks", report.Chunks)
	return report, nil
}

// WatchDirectory ingests documents created or written in dir until ctx is
// cancelled. Events for the same file are coalesced until it has been quiet
// for the settle interval, since editors often write a file in several steps.
func (s *IngestionService) WatchDirectory(ctx context.Context, dir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	s.log.Info("watching directory", "dir", dir)

	pending := map[string]time.Time{}
	ticker := time.NewTicker(s.settle / 2)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isSupportedFile(event.Name) {
				continue
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				pending[event.Name] = time.Now()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.log.Warn("watcher error", "error", err)
		case now := <-ticker.C:
			for path, last := range pending {
				if now.Sub(last) < s.settle {
					continue
				}
				delete(pending, path)
				res, err := s.IngestFile(ctx, path)
				if err != nil {
					s.log.Warn("watched document failed", "path", path, "error", err)
					continue
				}
				s.log.Info("watched document processed", "path", path, "course", res.Course.Title, "outcome", res.Outcome.String(), "chunks", res.Chunks)
			}
		case <-ctx.Done():
			s.log.Info("watcher stopped", "dir", dir)
			return nil
		}
	}
}
