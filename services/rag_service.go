package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/itish2003/courserag/logger"
	"github.com/itish2003/courserag/models"
)

// RAGService interface defines methods for RAG operations
type RAGService interface {
	// Answer runs one query end to end. An empty sessionID starts a new session.
	Answer(ctx context.Context, query, sessionID string) (string, []models.Source, string, error)
	QueryRAG(ctx context.Context, req models.QueryTextRequest) (*models.QueryRAGResponse, error)
	GetCourseStats(ctx context.Context) (*models.CourseStatsResponse, error)
	IngestDirectory(ctx context.Context, path string) (*models.IngestReport, error)
}

// ragServiceImpl holds the dependencies it needs to do its job
type ragServiceImpl struct {
	index      CourseIndex
	sessions   SessionStore
	loop       *ConversationLoop
	ingestion  *IngestionService
	docs       *DocsRoot
	maxResults int
	log        *logger.Logger
}

// RAGDeps groups the collaborators of the RAG service.
type RAGDeps struct {
	Index      CourseIndex
	Sessions   SessionStore
	Loop       *ConversationLoop
	Ingestion  *IngestionService
	Docs       *DocsRoot
	MaxResults int
	Log        *logger.Logger
}

// NewRAGService creates a new RAG service instance
func NewRAGService(deps RAGDeps) RAGService {
	if deps.MaxResults <= 0 {
		deps.MaxResults = 5
	}
	return &ragServiceImpl{
		index:      deps.Index,
		sessions:   deps.Sessions,
		loop:       deps.Loop,
		ingestion:  deps.Ingestion,
		docs:       deps.Docs,
		maxResults: deps.MaxResults,
		log:        deps.Log.With("service", "RAGService"),
	}
}

func (r *ragServiceImpl) Answer(ctx context.Context, query, sessionID string) (string, []models.Source, string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", nil, sessionID, ErrEmptyQuery
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
		r.log.Debug("starting new session", "session", sessionID)
	}

	var (
		answer  string
		sources []models.Source
	)
	err := r.sessions.WithSession(ctx, sessionID, func(history []models.Exchange) (*models.Exchange, error) {
		// Fresh per query so sources never leak between requests.
		tracker := NewSourceTracker()
		registry, err := NewToolRegistry(r.log,
			NewCourseSearchTool(r.index, r.maxResults, tracker),
			NewCourseOutlineTool(r.index),
		)
		if err != nil {
			return nil, err
		}

		result, err := r.loop.Run(ctx, BuildSystemPrompt(RenderHistory(history)), query, registry)
		if err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		answer, sources = result.Answer, tracker.Sources()
		r.log.Info("query answered",
			"session", sessionID,
			"tool_rounds", result.ToolRounds,
			"model_rounds", result.ModelRounds,
			"sources", len(sources),
			"fallback", result.Fallback,
		)
		return &models.Exchange{Query: query, Answer: answer, Sources: sources, CreatedAt: time.Now().UTC()}, nil
	})
	if err != nil {
		return "", nil, sessionID, err
	}
	return answer, sources, sessionID, nil
}

// QueryRAG implements RAGService
func (r *ragServiceImpl) QueryRAG(ctx context.Context, req models.QueryTextRequest) (*models.QueryRAGResponse, error) {
	answer, sources, sessionID, err := r.Answer(ctx, req.Query, req.SessionID)
	if err != nil {
		r.log.Error("query failed", "session", sessionID, "error", err)
		return nil, fmt.Errorf("could not answer query: %w", err)
	}
	return &models.QueryRAGResponse{
		Answer:    answer,
		Sources:   sources,
		SessionID: sessionID,
	}, nil
}

// GetCourseStats summarises the catalog.
func (r *ragServiceImpl) GetCourseStats(ctx context.Context) (*models.CourseStatsResponse, error) {
	courses, err := r.index.Courses(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}
	titles := make([]string, 0, len(courses))
	for _, c := range courses {
		titles = append(titles, c.Title)
	}
	return &models.CourseStatsResponse{TotalCourses: len(titles), CourseTitles: titles}, nil
}

// IngestDirectory ingests a directory inside the documents root.
func (r *ragServiceImpl) IngestDirectory(ctx context.Context, path string) (*models.IngestReport, error) {
	if r.ingestion == nil || r.docs == nil {
		return nil, fmt.Errorf("ingestion is not configured")
	}
	dir, err := r.docs.ResolveDir(path)
	if err != nil {
		return nil, err
	}
	report, err := r.ingestion.IngestDirectory(ctx, dir)
	if err != nil {
		return nil, err
	}
	return &report, nil
}
