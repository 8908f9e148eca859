package services

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/itish2003/courserag/models"
)

// Chunker splits lesson text into overlapping spans. Each chunk records how
// many leading bytes it shares with its predecessor, so the original lesson
// is recovered by dropping those bytes and concatenating.
type Chunker struct {
	Size    int
	Overlap int
}

func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = 800
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	return &Chunker{Size: size, Overlap: overlap}
}

type span struct {
	start, end int
	overlap    int
}

// ChunkCourse chunks every lesson of the course. Chunk indices run across
// the whole course starting at 0.
func (c *Chunker) ChunkCourse(course models.Course) []models.CourseChunk {
	var chunks []models.CourseChunk
	for _, lesson := range course.Lessons {
		for _, s := range c.split(lesson.Content) {
			index := len(chunks)
			chunks = append(chunks, models.CourseChunk{
				ID:           ChunkID(course.Title, index),
				CourseTitle:  course.Title,
				LessonNumber: lesson.Number,
				LessonLink:   lesson.Link,
				ChunkIndex:   index,
				Overlap:      s.overlap,
				Content:      lesson.Content[s.start:s.end],
			})
		}
	}
	return chunks
}

// ChunkID is stable for a given course title and chunk index.
func ChunkID(courseTitle string, index int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(courseTitle+"#"+strconv.Itoa(index))).String()
}

// ReassembleLesson reverses the chunking of one lesson.
func ReassembleLesson(chunks []models.CourseChunk) string {
	var sb strings.Builder
	for _, ch := range chunks {
		sb.WriteString(ch.Content[ch.Overlap:])
	}
	return sb.String()
}

func (c *Chunker) split(text string) []span {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	var (
		spans   []span
		start   int
		prevEnd int
	)
	for {
		end := len(text)
		if end-start > c.Size {
			end = c.breakpoint(text, start, start+c.Size)
		}
		if end <= prevEnd {
			// Overlap wider than the break window; force progress.
			end = prevEnd + 1
			for end < len(text) && !utf8.RuneStart(text[end]) {
				end++
			}
		}
		spans = append(spans, span{start: start, end: end, overlap: prevEnd - start})
		if end == len(text) {
			return spans
		}

		next := c.nextStart(text, start, end)
		prevEnd, start = end, next
	}
}

// breakpoint picks where a chunk ending near limit should stop: after the
// last sentence end in the second half of the window, else after the last
// whitespace there, else at the rune boundary at or before limit.
func (c *Chunker) breakpoint(text string, start, limit int) int {
	floor := start + c.Size/2
	window := text[:limit]

	best := -1
	for _, sep := range []string{". ", "! ", "? ", ".\n", "!\n", "?\n", "\n\n"} {
		if i := strings.LastIndex(window, sep); i >= floor && i+len(sep) > best {
			best = i + len(sep)
		}
	}
	if best > start && best <= limit {
		return best
	}
	if i := strings.LastIndexAny(window, " \t\n"); i >= floor {
		return i + 1
	}
	end := limit
	for end > start+1 && !utf8.RuneStart(text[end]) {
		end--
	}
	return end
}

// nextStart backs up Overlap bytes from end, then moves forward to a word
// start so the carried context does not begin mid-word.
func (c *Chunker) nextStart(text string, start, end int) int {
	next := end - c.Overlap
	if next <= start {
		return end
	}
	for next < end && !utf8.RuneStart(text[next]) {
		next++
	}
	if i := strings.IndexAny(text[next:end], " \t\n"); i >= 0 && next+i+1 < end {
		next += i + 1
	}
	return next
}
