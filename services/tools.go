package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/itish2003/courserag/llm"
	"github.com/itish2003/courserag/logger"
	"github.com/itish2003/courserag/models"
	"github.com/itish2003/courserag/vectorstore"
)

const (
	SearchToolName  = "search_course_content"
	OutlineToolName = "get_course_outline"
)

// Tool is a named capability the model may invoke. Execute never returns an
// error: failures are reported to the model as text.
type Tool interface {
	Definition() llm.ToolDefinition
	Execute(ctx context.Context, args map[string]any) string
}

// ToolRegistry dispatches tool calls by name.
type ToolRegistry struct {
	tools map[string]Tool
	order []string
	log   *logger.Logger
}

func NewToolRegistry(log *logger.Logger, tools ...Tool) (*ToolRegistry, error) {
	r := &ToolRegistry{tools: make(map[string]Tool), log: log}
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *ToolRegistry) Register(t Tool) error {
	name := t.Definition().Name
	if name == "" {
		return errors.New("tool name must not be empty")
	}
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %q already registered", name)
	}
	r.tools[name] = t
	r.order = append(r.order, name)
	return nil
}

func (r *ToolRegistry) Has(name string) bool {
	_, ok := r.tools[name]
	return ok
}

// Definitions returns the schemas of all tools in registration order.
func (r *ToolRegistry) Definitions() []llm.ToolDefinition {
	defs := make([]llm.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].Definition())
	}
	return defs
}

// Execute runs one call. An unknown name yields an error result rather than
// aborting the conversation.
func (r *ToolRegistry) Execute(ctx context.Context, call llm.ToolCall) llm.ToolResult {
	result := llm.ToolResult{CallID: call.ID, Name: call.Name}
	tool, ok := r.tools[call.Name]
	if !ok {
		r.log.Warn("model requested unknown tool", "tool", call.Name)
		result.Content = fmt.Sprintf("Error: %v '%s'. Available tools: %s.", ErrUnknownTool, call.Name, strings.Join(r.order, ", "))
		result.IsError = true
		return result
	}
	r.log.Debug("executing tool", "tool", call.Name, "args", call.Args)
	result.Content = tool.Execute(ctx, call.Args)
	result.IsError = strings.HasPrefix(result.Content, "Error:")
	return result
}

// SourceTracker accumulates the Sources used while answering one query.
type SourceTracker struct {
	mu      sync.Mutex
	sources []models.Source
	seen    map[string]int
}

func NewSourceTracker() *SourceTracker {
	return &SourceTracker{seen: make(map[string]int)}
}

// Add records sources, ignoring repeats of the same course and lesson. A
// later occurrence may fill in a missing link.
func (t *SourceTracker) Add(sources ...models.Source) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, s := range sources {
		key := s.Course + "#" + strconv.Itoa(s.Lesson)
		if i, ok := t.seen[key]; ok {
			if t.sources[i].Link == "" {
				t.sources[i].Link = s.Link
			}
			continue
		}
		t.seen[key] = len(t.sources)
		t.sources = append(t.sources, s)
	}
}

// Sources returns a copy of the recorded sources in first-seen order.
func (t *SourceTracker) Sources() []models.Source {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]models.Source, len(t.sources))
	copy(out, t.sources)
	return out
}

// CourseSearchTool searches chunk content, optionally within one course or lesson.
type CourseSearchTool struct {
	index      CourseIndex
	maxResults int
	tracker    *SourceTracker
}

func NewCourseSearchTool(index CourseIndex, maxResults int, tracker *SourceTracker) *CourseSearchTool {
	return &CourseSearchTool{index: index, maxResults: maxResults, tracker: tracker}
}

func (t *CourseSearchTool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        SearchToolName,
		Description: "Search course materials with smart course name matching and lesson filtering.",
		Parameters: []llm.ToolParameter{
			{Name: "query", Type: llm.ParamString, Description: "What to search for in the course content.", Required: true},
			{Name: "course_name", Type: llm.ParamString, Description: "Course title; partial matches work, e.g. 'MCP' or 'Introduction'."},
			{Name: "lesson_number", Type: llm.ParamInteger, Description: "Specific lesson number to search within, e.g. 1, 2, 3."},
		},
	}
}

func (t *CourseSearchTool) Execute(ctx context.Context, args map[string]any) string {
	query, _ := args["query"].(string)
	if strings.TrimSpace(query) == "" {
		return "Error: 'query' argument must be a non-empty string."
	}
	courseName, _ := args["course_name"].(string)
	courseName = strings.TrimSpace(courseName)

	var lesson *int
	if raw, ok := args["lesson_number"]; ok && raw != nil {
		n, err := intArg(raw)
		if err != nil {
			return "Error: 'lesson_number' must be an integer."
		}
		lesson = &n
	}

	results, err := t.index.Query(ctx, vectorstore.SearchQuery{
		Text:         query,
		TopK:         t.maxResults,
		CourseName:   courseName,
		LessonNumber: lesson,
	})
	if err != nil {
		return indexErrorText(err, courseName)
	}
	if len(results) == 0 {
		return noResultsText(courseName, lesson)
	}

	blocks := make([]string, 0, len(results))
	sources := make([]models.Source, 0, len(results))
	for _, r := range results {
		c := r.Chunk
		blocks = append(blocks, fmt.Sprintf("[%s - Lesson %d]\n%s", c.CourseTitle, c.LessonNumber, c.Content))
		sources = append(sources, models.Source{Course: c.CourseTitle, Lesson: c.LessonNumber, Link: c.LessonLink})
	}
	if t.tracker != nil {
		t.tracker.Add(sources...)
	}
	return strings.Join(blocks, "\n\n")
}

// CourseOutlineTool returns a course's link, instructor and lesson list.
type CourseOutlineTool struct {
	index CourseIndex
}

func NewCourseOutlineTool(index CourseIndex) *CourseOutlineTool {
	return &CourseOutlineTool{index: index}
}

func (t *CourseOutlineTool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        OutlineToolName,
		Description: "Get a course outline: title, link, instructor and the numbered list of lessons.",
		Parameters: []llm.ToolParameter{
			{Name: "course_name", Type: llm.ParamString, Description: "Course title; partial matches work.", Required: true},
		},
	}
}

func (t *CourseOutlineTool) Execute(ctx context.Context, args map[string]any) string {
	name, _ := args["course_name"].(string)
	if strings.TrimSpace(name) == "" {
		return "Error: 'course_name' argument must be a non-empty string."
	}
	title, err := t.index.ResolveCourse(ctx, name)
	if err != nil {
		return indexErrorText(err, name)
	}
	course, err := t.index.Course(ctx, title)
	if err != nil {
		return indexErrorText(err, name)
	}

	lessons := append([]models.Lesson(nil), course.Lessons...)
	sort.SliceStable(lessons, func(i, j int) bool { return lessons[i].Number < lessons[j].Number })

	var sb strings.Builder
	fmt.Fprintf(&sb, "Course Title: %s\n", course.Title)
	if course.Link != "" {
		fmt.Fprintf(&sb, "Course Link: %s\n", course.Link)
	}
	if course.Instructor != "" {
		fmt.Fprintf(&sb, "Course Instructor: %s\n", course.Instructor)
	}
	fmt.Fprintf(&sb, "Lessons (%d):", len(lessons))
	for _, l := range lessons {
		fmt.Fprintf(&sb, "\nLesson %d: %s", l.Number, l.Title)
	}
	return sb.String()
}

func indexErrorText(err error, courseName string) string {
	switch {
	case errors.Is(err, vectorstore.ErrCourseNotFound):
		return fmt.Sprintf("No course found matching '%s'.", courseName)
	case errors.Is(err, vectorstore.ErrIndexTimeout):
		return "Error: the course search timed out. Answer from general knowledge or ask the user to retry."
	case errors.Is(err, context.Canceled):
		return "Error: the search was cancelled."
	default:
		return "Error: the course search is unavailable right now."
	}
}

func noResultsText(courseName string, lesson *int) string {
	var filters []string
	if courseName != "" {
		filters = append(filters, fmt.Sprintf("in course '%s'", courseName))
	}
	if lesson != nil {
		filters = append(filters, fmt.Sprintf("in lesson %d", *lesson))
	}
	if len(filters) == 0 {
		return "No relevant content found."
	}
	return "No relevant content found " + strings.Join(filters, " ") + "."
}

// intArg accepts the numeric encodings models produce for integer arguments.
func intArg(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("%v is not an integer", n)
		}
		return int(n), nil
	case float32:
		return intArg(float64(n))
	case string:
		return strconv.Atoi(strings.TrimSpace(n))
	}
	return 0, fmt.Errorf("unsupported type %T", v)
}
