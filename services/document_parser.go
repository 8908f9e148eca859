package services

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/itish2003/courserag/models"
)

var lessonMarker = regexp.MustCompile(`(?i)^lesson\s+(\d+)\s*:\s*(.*)$`)

// header markers recognised before the first lesson.
const (
	markerTitle       = "course title:"
	markerLink        = "course link:"
	markerInstructor  = "course instructor:"
	markerDescription = "course description:"
	markerLessonLink  = "lesson link:"
)

// ParseCourseDocument splits extracted text into a Course and its lessons.
// Lesson bodies are kept verbatim apart from surrounding blank lines.
func ParseCourseDocument(text string) (models.Course, error) {
	lines := strings.Split(normalizeNewlines(text), "\n")

	var (
		course     models.Course
		prelude    []string
		i          int
		titleFound bool
	)

	// Header: everything before the first lesson marker.
	for ; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if lessonMarker.MatchString(line) {
			break
		}
		if value, ok := cutMarker(line, markerTitle); ok {
			course.Title = value
			titleFound = true
			continue
		}
		if value, ok := cutMarker(line, markerLink); ok {
			course.Link = value
			continue
		}
		if value, ok := cutMarker(line, markerInstructor); ok {
			course.Instructor = value
			continue
		}
		if value, ok := cutMarker(line, markerDescription); ok {
			course.Description = value
			continue
		}
		if !titleFound && course.Title == "" && line != "" {
			course.Title = line
			continue
		}
		prelude = append(prelude, lines[i])
	}

	if course.Title == "" {
		return models.Course{}, fmt.Errorf("%w: no course title", ErrEmptyDocument)
	}

	// Body: lesson blocks.
	var current *models.Lesson
	var body []string
	flush := func() {
		if current == nil {
			return
		}
		current.Content = trimBlankLines(body)
		course.Lessons = append(course.Lessons, *current)
		current, body = nil, nil
	}
	for ; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		if m := lessonMarker.FindStringSubmatch(trimmed); m != nil {
			flush()
			n, _ := strconv.Atoi(m[1])
			current = &models.Lesson{Number: n, Title: strings.TrimSpace(m[2])}
			if current.Title == "" {
				current.Title = fmt.Sprintf("Lesson %d", n)
			}
			if i+1 < len(lines) {
				if link, ok := cutMarker(strings.TrimSpace(lines[i+1]), markerLessonLink); ok {
					current.Link = link
					i++
				}
			}
			continue
		}
		body = append(body, lines[i])
	}
	flush()

	if len(course.Lessons) == 0 {
		content := trimBlankLines(prelude)
		if content == "" {
			return models.Course{}, fmt.Errorf("%w: %q has no lesson content", ErrEmptyDocument, course.Title)
		}
		course.Lessons = []models.Lesson{{Number: 0, Title: course.Title, Content: content}}
		return course, nil
	}

	if course.Description == "" {
		course.Description = strings.Join(strings.Fields(trimBlankLines(prelude)), " ")
	}
	var total int
	for _, l := range course.Lessons {
		total += len(strings.TrimSpace(l.Content))
	}
	if total == 0 {
		return models.Course{}, fmt.Errorf("%w: %q has no lesson content", ErrEmptyDocument, course.Title)
	}
	return course, nil
}

// cutMarker matches a case-insensitive "Marker: value" line.
func cutMarker(line, marker string) (string, bool) {
	if len(line) < len(marker) || !strings.EqualFold(line[:len(marker)], marker) {
		return "", false
	}
	return strings.TrimSpace(line[len(marker):]), true
}

func trimBlankLines(lines []string) string {
	start, end := 0, len(lines)
	for start < end && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	return strings.Join(lines[start:end], "\n")
}
