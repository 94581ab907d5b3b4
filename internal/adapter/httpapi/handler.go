package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/dreiseu/ai-weather-insights-agent/internal/domain"
	"github.com/dreiseu/ai-weather-insights-agent/internal/usecase"
)

const (
	maxBatchLocations  = 20
	statusProbeTimeout = 3 * time.Second
)

// Handler serves the insight pipeline over HTTP.
type Handler struct {
	orchestrator usecase.InsightOrchestrator
	batch        usecase.BatchInsights
	provider     domain.WeatherProvider
	generator    domain.LLMClient
	store        domain.KnowledgeStore
}

func NewHandler(
	orchestrator usecase.InsightOrchestrator,
	batch usecase.BatchInsights,
	provider domain.WeatherProvider,
	generator domain.LLMClient,
	store domain.KnowledgeStore,
) *Handler {
	return &Handler{
		orchestrator: orchestrator,
		batch:        batch,
		provider:     provider,
		generator:    generator,
		store:        store,
	}
}

// RegisterRoutes mounts the insight API under /api/v1.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	v1 := e.Group("/api/v1")
	v1.POST("/weather-insights", h.GetInsights)
	v1.POST("/weather-insights/batch", h.GetBatchInsights)
	v1.GET("/status", h.GetStatus)
}

type insightRequest struct {
	Location  string   `json:"location"`
	Audience  string   `json:"audience"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

type batchInsightRequest struct {
	Locations []string `json:"locations"`
	Audience  string   `json:"audience"`
}

// errorBody is the uniform error response. Detail stays human-readable
// and never carries upstream provider internals.
type errorBody struct {
	Error  string `json:"error"`
	Stage  string `json:"stage,omitempty"`
	Detail string `json:"detail,omitempty"`
}

type statusResponse struct {
	Workflow      string                 `json:"workflow"`
	Services      map[string]string      `json:"services"`
	KnowledgeBase *domain.KnowledgeStats `json:"knowledge_base,omitempty"`
	Timestamp     time.Time              `json:"timestamp"`
}

// Run the full pipeline for one location
// (POST /api/v1/weather-insights)
func (h *Handler) GetInsights(c echo.Context) error {
	var req insightRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid request body"})
	}
	if strings.TrimSpace(req.Location) == "" {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "location is required"})
	}
	if req.Audience != "" && !usecase.KnownAudience(req.Audience) {
		return c.JSON(http.StatusBadRequest, errorBody{
			Error:  "unknown audience",
			Detail: "audience must be one of general, farmers, officials",
		})
	}

	bundle, err := h.orchestrator.Execute(c.Request().Context(), usecase.InsightRequest{
		Location:  req.Location,
		Audience:  req.Audience,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
	})
	if err != nil {
		return h.pipelineError(c, err)
	}
	return c.JSON(http.StatusOK, bundle)
}

// Run the pipeline for up to 20 locations
// (POST /api/v1/weather-insights/batch)
func (h *Handler) GetBatchInsights(c echo.Context) error {
	var req batchInsightRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid request body"})
	}
	if len(req.Locations) == 0 {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "locations must not be empty"})
	}
	if len(req.Locations) > maxBatchLocations {
		return c.JSON(http.StatusBadRequest, errorBody{
			Error:  "too many locations",
			Detail: "at most 20 locations per batch request",
		})
	}
	if req.Audience != "" && !usecase.KnownAudience(req.Audience) {
		return c.JSON(http.StatusBadRequest, errorBody{
			Error:  "unknown audience",
			Detail: "audience must be one of general, farmers, officials",
		})
	}

	report, err := h.batch.Execute(c.Request().Context(), req.Locations, req.Audience)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errorBody{Error: "batch analysis failed"})
	}
	return c.JSON(http.StatusOK, report)
}

// Report pipeline and dependency health
// (GET /api/v1/status)
func (h *Handler) GetStatus(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), statusProbeTimeout)
	defer cancel()

	services := map[string]string{
		"weather_provider": upDown(h.provider.Ready()),
		"generator":        upDown(h.generator.Ping(ctx) == nil),
		"knowledge_store":  upDown(h.store != nil && h.store.Ping(ctx) == nil),
	}

	resp := statusResponse{
		Workflow:  "operational",
		Services:  services,
		Timestamp: time.Now().UTC(),
	}
	for _, state := range services {
		if state == "down" {
			resp.Workflow = "degraded"
			break
		}
	}

	if h.store != nil {
		if stats, err := h.store.Stats(ctx); err == nil {
			resp.KnowledgeBase = stats
		}
	}
	return c.JSON(http.StatusOK, resp)
}

// pipelineError maps pipeline failures onto status codes: unresolvable
// locations are the client's problem, provider outages are upstream's.
func (h *Handler) pipelineError(c echo.Context, err error) error {
	var stageErr *domain.StageError
	stage := ""
	if errors.As(err, &stageErr) {
		stage = stageErr.Stage
	}

	switch {
	case domain.IsInvalidLocation(err):
		var invalid *domain.InvalidLocationError
		errors.As(err, &invalid)
		return c.JSON(http.StatusNotFound, errorBody{
			Error:  "location not found",
			Stage:  stage,
			Detail: invalid.Error(),
		})
	case domain.IsProviderUnavailable(err):
		return c.JSON(http.StatusBadGateway, errorBody{
			Error:  "weather provider unavailable",
			Stage:  stage,
			Detail: "the upstream weather service is not responding",
		})
	default:
		return c.JSON(http.StatusInternalServerError, errorBody{
			Error: "analysis failed",
			Stage: stage,
		})
	}
}

func upDown(ok bool) string {
	if ok {
		return "up"
	}
	return "down"
}
