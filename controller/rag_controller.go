package controller

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/itish2003/courserag/logger"
	"github.com/itish2003/courserag/models"
	"github.com/itish2003/courserag/services"
)

// RAGController handles the HTTP requests for the course RAG API. It depends
// on the RAGService to perform the actual business logic.
type RAGController struct {
	ragService services.RAGService
	log        *logger.Logger
}

// NewRAGController is called from the CLI wiring to inject the service dependency.
func NewRAGController(service services.RAGService, log *logger.Logger) *RAGController {
	return &RAGController{
		ragService: service,
		log:        log.With("service", "RAGController"),
	}
}

// RegisterRoutes mounts the API on router.
func (c *RAGController) RegisterRoutes(router gin.IRouter) {
	router.GET("/health", c.Health)
	apiV1 := router.Group("/api/v1")
	{
		apiV1.POST("/query", c.QueryRAG)
		apiV1.GET("/courses", c.GetCourseStats)
		apiV1.POST("/ingest", c.IngestDirectory)
	}
}

func (c *RAGController) Health(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "Course RAG API",
	})
}

// QueryRAG is the Gin handler for the POST /api/v1/query endpoint.
func (c *RAGController) QueryRAG(ctx *gin.Context) {
	var req models.QueryTextRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body: " + err.Error()})
		return
	}

	response, err := c.ragService.QueryRAG(ctx.Request.Context(), req)
	if err != nil {
		c.writeError(ctx, err, "Failed to generate AI response")
		return
	}
	ctx.JSON(http.StatusOK, response)
}

// GetCourseStats is the Gin handler for the GET /api/v1/courses endpoint.
func (c *RAGController) GetCourseStats(ctx *gin.Context) {
	response, err := c.ragService.GetCourseStats(ctx.Request.Context())
	if err != nil {
		c.writeError(ctx, err, "Failed to retrieve course stats")
		return
	}
	ctx.JSON(http.StatusOK, response)
}

// IngestDirectory is the Gin handler for the POST /api/v1/ingest endpoint.
// The path is resolved inside the configured documents directory.
func (c *RAGController) IngestDirectory(ctx *gin.Context) {
	var req models.IngestDirectoryRequest
	if ctx.Request.ContentLength != 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			ctx.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body: " + err.Error()})
			return
		}
	}
	report, err := c.ragService.IngestDirectory(ctx.Request.Context(), req.Path)
	if err != nil {
		if errors.Is(err, services.ErrOutsideDocsRoot) {
			ctx.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
			return
		}
		c.writeError(ctx, err, "Failed to ingest documents")
		return
	}
	ctx.JSON(http.StatusOK, report)
}

// writeError maps service errors to a status code and a structured body.
// Internal details are logged, never returned.
func (c *RAGController) writeError(ctx *gin.Context, err error, msg string) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrEmptyQuery):
		ctx.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	case errors.Is(err, services.ErrModelTimeout), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	case errors.Is(err, services.ErrCompletionFailed):
		status = http.StatusBadGateway
	case errors.Is(err, context.Canceled):
		// Client went away; status is only for the access log.
		status = 499
	}
	c.log.Error(msg, "path", ctx.FullPath(), "status", status, "error", err)
	ctx.JSON(status, models.ErrorResponse{Error: msg, Retryable: services.IsRetryable(err)})
}
