package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/itish2003/courserag/llm"
	"github.com/itish2003/courserag/logger"
	"github.com/itish2003/courserag/models"
)

// Metadata keys shared by both backends.
const (
	metaTitle        = "title"
	metaDescription  = "description"
	metaInstructor   = "instructor"
	metaLink         = "link"
	metaLessonCount  = "lesson_count"
	metaLessonsJSON  = "lessons_json"
	metaCourseTitle  = "course_title"
	metaLessonNumber = "lesson_number"
	metaLessonKey    = "lesson_key"
	metaCourseLesson = "course_lesson"
	metaLessonLink   = "lesson_link"
	metaChunkIndex   = "chunk_index"
	metaOverlap      = "overlap"
)

const embedBatchSize = 32

// Options tunes an Index.
type Options struct {
	// Timeout bounds every read operation. Zero disables the bound.
	Timeout time.Duration
	// EmbedConcurrency caps parallel embedding requests during ingestion.
	EmbedConcurrency int
}

// SearchQuery describes one content search. CourseName is resolved fuzzily
// against the catalog before it is applied as a filter.
type SearchQuery struct {
	Text         string
	TopK         int
	CourseName   string
	LessonNumber *int
}

// Index combines the catalog and content collections behind one embedder.
// Ingestion holds the write lock for the whole course so readers never
// observe a partially written course.
type Index struct {
	catalog  Collection
	content  Collection
	embedder llm.Embedder
	opts     Options
	log      *logger.Logger

	mu sync.RWMutex
}

func NewIndex(catalog, content Collection, embedder llm.Embedder, log *logger.Logger, opts Options) *Index {
	if opts.EmbedConcurrency <= 0 {
		opts.EmbedConcurrency = 4
	}
	return &Index{
		catalog:  catalog,
		content:  content,
		embedder: embedder,
		opts:     opts,
		log:      log.With("service", "VectorIndex"),
	}
}

// CourseExists reports whether a course with exactly this title is in the catalog.
func (x *Index) CourseExists(ctx context.Context, title string) (bool, error) {
	ctx, cancel := x.withTimeout(ctx)
	defer cancel()
	x.mu.RLock()
	defer x.mu.RUnlock()

	docs, err := x.catalog.Get(ctx, Filter{Field: metaTitle, Value: title})
	if err != nil {
		return false, x.storeErr(err)
	}
	return len(docs) > 0, nil
}

// UpsertCourse replaces the catalog entry for the course. If the write
// fails, the previous entry is restored.
func (x *Index) UpsertCourse(ctx context.Context, course models.Course) error {
	doc, err := x.catalogDocument(ctx, course)
	if err != nil {
		return err
	}
	ctx, cancel := x.withTimeout(ctx)
	defer cancel()
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.replace(ctx, x.catalog, []Filter{{Field: metaTitle, Value: course.Title}}, []Document{doc})
}

// UpsertChunks replaces all content of every course the chunks belong to.
// If the write fails, the previous chunks are restored.
func (x *Index) UpsertChunks(ctx context.Context, chunks []models.CourseChunk) error {
	docs, err := x.contentDocuments(ctx, chunks)
	if err != nil {
		return err
	}
	var filters []Filter
	seen := map[string]bool{}
	for _, c := range chunks {
		if !seen[c.CourseTitle] {
			seen[c.CourseTitle] = true
			filters = append(filters, Filter{Field: metaCourseTitle, Value: c.CourseTitle})
		}
	}
	ctx, cancel := x.withTimeout(ctx)
	defer cancel()
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.replace(ctx, x.content, filters, docs)
}

// replace swaps the documents matching filters for docs. Callers hold x.mu.
func (x *Index) replace(ctx context.Context, coll Collection, filters []Filter, docs []Document) error {
	var previous []Document
	for _, f := range filters {
		existing, err := coll.Get(ctx, f)
		if err != nil {
			return x.storeErr(err)
		}
		previous = append(previous, existing...)
	}
	for i, f := range filters {
		if err := coll.Delete(ctx, f); err != nil {
			x.restore(coll, filters[:i], previous)
			return x.storeErr(err)
		}
	}
	if err := coll.Add(ctx, docs); err != nil {
		x.restore(coll, filters, previous)
		return x.storeErr(err)
	}
	return nil
}

func (x *Index) restore(coll Collection, filters []Filter, previous []Document) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, f := range filters {
		if err := coll.Delete(ctx, f); err != nil {
			x.log.Error("restore failed", "filter", f.Value, "error", err)
			return
		}
	}
	if err := coll.Add(ctx, previous); err != nil {
		x.log.Error("restore failed; previous documents lost", "documents", len(previous), "error", err)
	}
}

// Ingest writes a course and all of its chunks as one unit. Embeddings are
// computed before anything is written; if a write fails, both collections
// are rolled back for that course.
func (x *Index) Ingest(ctx context.Context, course models.Course, chunks []models.CourseChunk) error {
	catalogDoc, err := x.catalogDocument(ctx, course)
	if err != nil {
		return err
	}
	contentDocs, err := x.contentDocuments(ctx, chunks)
	if err != nil {
		return err
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if err := x.removeCourse(ctx, course.Title); err != nil {
		return x.storeErr(err)
	}
	if err := x.content.Add(ctx, contentDocs); err != nil {
		x.rollback(course.Title)
		return x.storeErr(err)
	}
	if err := x.catalog.Add(ctx, []Document{catalogDoc}); err != nil {
		x.rollback(course.Title)
		return x.storeErr(err)
	}
	x.log.Info("course ingested", "course", course.Title, "lessons", len(course.Lessons), "chunks", len(chunks))
	return nil
}

func (x *Index) removeCourse(ctx context.Context, title string) error {
	if err := x.catalog.Delete(ctx, Filter{Field: metaTitle, Value: title}); err != nil {
		return err
	}
	return x.content.Delete(ctx, Filter{Field: metaCourseTitle, Value: title})
}

func (x *Index) rollback(title string) {
	// The caller's context may be the reason the write failed.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := x.removeCourse(ctx, title); err != nil {
		x.log.Error("rollback failed; course may be partially stored", "course", title, "error", err)
	}
}

// ResolveCourse returns the catalog title nearest to a user-typed course name.
func (x *Index) ResolveCourse(ctx context.Context, name string) (string, error) {
	ctx, cancel := x.withTimeout(ctx)
	defer cancel()
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.resolveCourse(ctx, name)
}

func (x *Index) resolveCourse(ctx context.Context, name string) (string, error) {
	vec, err := x.embedder.Embed(ctx, name)
	if err != nil {
		return "", x.embedErr(err)
	}
	matches, err := x.catalog.Query(ctx, vec, 1, Filter{})
	if err != nil {
		return "", x.storeErr(err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("%w: %q", ErrCourseNotFound, name)
	}
	title := metaString(matches[0].Document.Metadata, metaTitle)
	if title == "" {
		title = matches[0].Document.ID
	}
	return title, nil
}

// Query runs a semantic search over chunk content. Results are ordered by
// decreasing score, ties by course title then ascending chunk index. An
// empty result is not an error.
func (x *Index) Query(ctx context.Context, q SearchQuery) ([]models.ScoredChunk, error) {
	ctx, cancel := x.withTimeout(ctx)
	defer cancel()
	x.mu.RLock()
	defer x.mu.RUnlock()

	var title string
	if q.CourseName != "" {
		var err error
		if title, err = x.resolveCourse(ctx, q.CourseName); err != nil {
			return nil, err
		}
	}
	var where Filter
	switch {
	case title != "" && q.LessonNumber != nil:
		where = Filter{Field: metaCourseLesson, Value: courseLessonKey(title, *q.LessonNumber)}
	case title != "":
		where = Filter{Field: metaCourseTitle, Value: title}
	case q.LessonNumber != nil:
		where = Filter{Field: metaLessonKey, Value: strconv.Itoa(*q.LessonNumber)}
	}

	topK := q.TopK
	if topK <= 0 {
		topK = 5
	}
	count, err := x.content.Count(ctx)
	if err != nil {
		return nil, x.storeErr(err)
	}
	if count == 0 {
		return nil, nil
	}
	if topK > count {
		topK = count
	}

	vec, err := x.embedder.Embed(ctx, q.Text)
	if err != nil {
		return nil, x.embedErr(err)
	}
	matches, err := x.content.Query(ctx, vec, topK, where)
	if err != nil {
		return nil, x.storeErr(err)
	}

	results := make([]models.ScoredChunk, 0, len(matches))
	for _, m := range matches {
		results = append(results, models.ScoredChunk{
			Chunk: chunkFromDocument(m.Document),
			Score: 1 - m.Distance,
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if math.Abs(a.Score-b.Score) > 1e-9 {
			return a.Score > b.Score
		}
		return a.Chunk.ChunkIndex < b.Chunk.ChunkIndex
	})
	return results, nil
}

// Course returns the catalog entry for an exact title.
func (x *Index) Course(ctx context.Context, title string) (models.Course, error) {
	ctx, cancel := x.withTimeout(ctx)
	defer cancel()
	x.mu.RLock()
	defer x.mu.RUnlock()

	docs, err := x.catalog.Get(ctx, Filter{Field: metaTitle, Value: title})
	if err != nil {
		return models.Course{}, x.storeErr(err)
	}
	if len(docs) == 0 {
		return models.Course{}, fmt.Errorf("%w: %q", ErrCourseNotFound, title)
	}
	return x.courseFromDocument(docs[0]), nil
}

// Courses lists every course in the catalog sorted by title.
func (x *Index) Courses(ctx context.Context) ([]models.Course, error) {
	ctx, cancel := x.withTimeout(ctx)
	defer cancel()
	x.mu.RLock()
	defer x.mu.RUnlock()

	docs, err := x.catalog.Get(ctx, Filter{})
	if err != nil {
		return nil, x.storeErr(err)
	}
	courses := make([]models.Course, 0, len(docs))
	for _, d := range docs {
		courses = append(courses, x.courseFromDocument(d))
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].Title < courses[j].Title })
	return courses, nil
}

// ChunkCount returns the number of stored chunks for a course.
func (x *Index) ChunkCount(ctx context.Context, title string) (int, error) {
	ctx, cancel := x.withTimeout(ctx)
	defer cancel()
	x.mu.RLock()
	defer x.mu.RUnlock()
	docs, err := x.content.Get(ctx, Filter{Field: metaCourseTitle, Value: title})
	if err != nil {
		return 0, x.storeErr(err)
	}
	return len(docs), nil
}

func (x *Index) catalogDocument(ctx context.Context, course models.Course) (Document, error) {
	lessons, err := json.Marshal(course.Lessons)
	if err != nil {
		return Document{}, fmt.Errorf("encode lessons for %q: %w", course.Title, err)
	}
	text := course.Title
	if course.Description != "" {
		text += "\n" + course.Description
	}
	vec, err := x.embedder.Embed(ctx, text)
	if err != nil {
		return Document{}, x.embedErr(err)
	}
	return Document{
		ID:        course.Title,
		Text:      text,
		Embedding: vec,
		Metadata: map[string]any{
			metaTitle:       course.Title,
			metaDescription: course.Description,
			metaInstructor:  course.Instructor,
			metaLink:        course.Link,
			metaLessonCount: len(course.Lessons),
			metaLessonsJSON: string(lessons),
		},
	}, nil
}

func (x *Index) contentDocuments(ctx context.Context, chunks []models.CourseChunk) ([]Document, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := x.embedAll(ctx, texts)
	if err != nil {
		return nil, err
	}
	docs := make([]Document, len(chunks))
	for i, c := range chunks {
		docs[i] = Document{
			ID:        c.ID,
			Text:      c.Content,
			Embedding: vectors[i],
			Metadata: map[string]any{
				metaCourseTitle:  c.CourseTitle,
				metaLessonNumber: c.LessonNumber,
				metaLessonKey:    strconv.Itoa(c.LessonNumber),
				metaCourseLesson: courseLessonKey(c.CourseTitle, c.LessonNumber),
				metaLessonLink:   c.LessonLink,
				metaChunkIndex:   c.ChunkIndex,
				metaOverlap:      c.Overlap,
			},
		}
	}
	return docs, nil
}

// embedAll embeds texts in batches, running up to EmbedConcurrency requests at once.
func (x *Index) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(x.opts.EmbedConcurrency)

	if batcher, ok := x.embedder.(llm.BatchEmbedder); ok {
		for start := 0; start < len(texts); start += embedBatchSize {
			start := start
			end := min(start+embedBatchSize, len(texts))
			g.Go(func() error {
				vecs, err := batcher.EmbedBatch(gctx, texts[start:end])
				if err != nil {
					return err
				}
				if len(vecs) != end-start {
					return fmt.Errorf("embedder returned %d vectors for %d texts", len(vecs), end-start)
				}
				copy(out[start:end], vecs)
				return nil
			})
		}
	} else {
		for i, t := range texts {
			i, t := i, t
			g.Go(func() error {
				vec, err := x.embedder.Embed(gctx, t)
				if err != nil {
					return err
				}
				out[i] = vec
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, x.embedErr(err)
	}
	return out, nil
}

func (x *Index) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if x.opts.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, x.opts.Timeout)
}

func (x *Index) storeErr(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrIndexTimeout, err)
	case errors.Is(err, context.Canceled):
		return err
	}
	return fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
}

func (x *Index) embedErr(err error) error {
	return x.storeErr(fmt.Errorf("embed: %w", err))
}

func courseLessonKey(title string, lesson int) string {
	return title + "#" + strconv.Itoa(lesson)
}

func chunkFromDocument(d Document) models.CourseChunk {
	return models.CourseChunk{
		ID:           d.ID,
		CourseTitle:  metaString(d.Metadata, metaCourseTitle),
		LessonNumber: metaInt(d.Metadata, metaLessonNumber),
		LessonLink:   metaString(d.Metadata, metaLessonLink),
		ChunkIndex:   metaInt(d.Metadata, metaChunkIndex),
		Overlap:      metaInt(d.Metadata, metaOverlap),
		Content:      d.Text,
	}
}

func (x *Index) courseFromDocument(d Document) models.Course {
	c := models.Course{
		Title:       metaString(d.Metadata, metaTitle),
		Description: metaString(d.Metadata, metaDescription),
		Instructor:  metaString(d.Metadata, metaInstructor),
		Link:        metaString(d.Metadata, metaLink),
	}
	if c.Title == "" {
		c.Title = d.ID
	}
	if raw := metaString(d.Metadata, metaLessonsJSON); raw != "" {
		if err := json.Unmarshal([]byte(raw), &c.Lessons); err != nil {
			x.log.Warn("stored lesson list is unreadable", "course", c.Title, "error", err)
		}
	}
	return c
}

func metaString(meta map[string]any, key string) string {
	if v, ok := meta[key].(string); ok {
		return v
	}
	return ""
}

// metaInt accepts the integer encodings produced by both backends; values
// read back through JSON arrive as float64.
func metaInt(meta map[string]any, key string) int {
	switch v := meta[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case json.Number:
		n, _ := v.Int64()
		return int(n)
	case string:
		n, _ := strconv.Atoi(v)
		return n
	}
	return 0
}
