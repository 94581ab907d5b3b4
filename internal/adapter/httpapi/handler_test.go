package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreiseu/ai-weather-insights-agent/internal/adapter/httpapi"
	"github.com/dreiseu/ai-weather-insights-agent/internal/domain"
	"github.com/dreiseu/ai-weather-insights-agent/internal/usecase"
)

type stubOrchestrator struct {
	bundle  *domain.InsightBundle
	err     error
	lastReq usecase.InsightRequest
}

func (s *stubOrchestrator) Execute(ctx context.Context, req usecase.InsightRequest) (*domain.InsightBundle, error) {
	s.lastReq = req
	return s.bundle, s.err
}

type stubBatch struct {
	report *usecase.BatchReport
	err    error
}

func (s *stubBatch) Execute(ctx context.Context, locations []string, audience string) (*usecase.BatchReport, error) {
	return s.report, s.err
}

type stubProvider struct {
	ready bool
}

func (s *stubProvider) ResolveLocation(ctx context.Context, name string) (domain.Location, error) {
	return domain.Location{}, nil
}

func (s *stubProvider) FetchCurrent(ctx context.Context, loc domain.Location) (*domain.WeatherSnapshot, error) {
	return nil, nil
}

func (s *stubProvider) FetchForecast(ctx context.Context, loc domain.Location, days int) (domain.ForecastSeries, error) {
	return nil, nil
}

func (s *stubProvider) Ready() bool { return s.ready }

type stubGenerator struct {
	pingErr error
}

func (s *stubGenerator) Generate(ctx context.Context, messages []domain.Message, maxTokens int) (*domain.LLMResponse, error) {
	return &domain.LLMResponse{Text: "{}", Done: true}, nil
}

func (s *stubGenerator) Version() string { return "stub" }

func (s *stubGenerator) Ping(ctx context.Context) error { return s.pingErr }

type stubStore struct {
	pingErr  error
	stats    *domain.KnowledgeStats
	statsErr error
}

func (s *stubStore) Search(ctx context.Context, embedding []float32, k int) ([]domain.KnowledgePassage, error) {
	return nil, nil
}

func (s *stubStore) BulkInsert(ctx context.Context, docs []domain.KnowledgeDocument) (int, error) {
	return 0, nil
}

func (s *stubStore) Stats(ctx context.Context) (*domain.KnowledgeStats, error) {
	return s.stats, s.statsErr
}

func (s *stubStore) Ping(ctx context.Context) error { return s.pingErr }

func newTestHandler(orch *stubOrchestrator, batch *stubBatch) *httpapi.Handler {
	return httpapi.NewHandler(
		orch,
		batch,
		&stubProvider{ready: true},
		&stubGenerator{},
		&stubStore{stats: &domain.KnowledgeStats{TotalDocuments: 6}},
	)
}

func postJSON(e *echo.Echo, path, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestGetInsights_ReturnsBundle(t *testing.T) {
	e := echo.New()
	lat, lon := 14.59, 120.98
	orch := &stubOrchestrator{
		bundle: &domain.InsightBundle{
			Location: domain.Location{Name: "Manila", Latitude: &lat, Longitude: &lon},
			Summary:  "Weather conditions for Manila look stable.",
		},
	}
	handler := newTestHandler(orch, &stubBatch{})

	c, rec := postJSON(e, "/api/v1/weather-insights", `{"location":"Manila","audience":"farmers"}`)

	require.NoError(t, handler.GetInsights(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var bundle domain.InsightBundle
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bundle))
	assert.Equal(t, "Manila", bundle.Location.Name)
	assert.Contains(t, bundle.Summary, "look stable")

	assert.Equal(t, "Manila", orch.lastReq.Location)
	assert.Equal(t, "farmers", orch.lastReq.Audience)
}

func TestGetInsights_PassesCoordinates(t *testing.T) {
	e := echo.New()
	orch := &stubOrchestrator{bundle: &domain.InsightBundle{}}
	handler := newTestHandler(orch, &stubBatch{})

	c, rec := postJSON(e, "/api/v1/weather-insights",
		`{"location":"San Miguel","latitude":15.14,"longitude":120.98}`)

	require.NoError(t, handler.GetInsights(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, orch.lastReq.Latitude)
	require.NotNil(t, orch.lastReq.Longitude)
	assert.InDelta(t, 15.14, *orch.lastReq.Latitude, 1e-9)
	assert.InDelta(t, 120.98, *orch.lastReq.Longitude, 1e-9)
}

func TestGetInsights_RejectsBadRequests(t *testing.T) {
	e := echo.New()
	orch := &stubOrchestrator{bundle: &domain.InsightBundle{}}
	handler := newTestHandler(orch, &stubBatch{})

	cases := []struct {
		name string
		body string
		want string
	}{
		{"missing location", `{"audience":"general"}`, "location is required"},
		{"blank location", `{"location":"   "}`, "location is required"},
		{"unknown audience", `{"location":"Manila","audience":"pilots"}`, "unknown audience"},
		{"malformed json", `{"location":`, "invalid request body"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, rec := postJSON(e, "/api/v1/weather-insights", tc.body)
			require.NoError(t, handler.GetInsights(c))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tc.want)
		})
	}
}

func TestGetInsights_MapsPipelineErrors(t *testing.T) {
	e := echo.New()

	t.Run("invalid location yields 404", func(t *testing.T) {
		orch := &stubOrchestrator{
			err: &domain.StageError{
				Stage: "fetching",
				Err:   &domain.InvalidLocationError{Query: "Atlantis"},
			},
		}
		handler := newTestHandler(orch, &stubBatch{})

		c, rec := postJSON(e, "/api/v1/weather-insights", `{"location":"Atlantis"}`)
		require.NoError(t, handler.GetInsights(c))
		assert.Equal(t, http.StatusNotFound, rec.Code)

		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "location not found", body["error"])
		assert.Equal(t, "fetching", body["stage"])
		assert.Contains(t, body["detail"], "could not be resolved")
	})

	t.Run("provider outage yields 502 without internals", func(t *testing.T) {
		orch := &stubOrchestrator{
			err: &domain.StageError{
				Stage: "fetching",
				Err: &domain.ProviderUnavailableError{
					Provider: "openweather",
					Cause:    errors.New("dial tcp 10.0.0.4:443: connection refused"),
				},
			},
		}
		handler := newTestHandler(orch, &stubBatch{})

		c, rec := postJSON(e, "/api/v1/weather-insights", `{"location":"Manila"}`)
		require.NoError(t, handler.GetInsights(c))
		assert.Equal(t, http.StatusBadGateway, rec.Code)

		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "weather provider unavailable", body["error"])
		assert.Equal(t, "fetching", body["stage"])
		assert.NotContains(t, rec.Body.String(), "connection refused")
		assert.NotContains(t, rec.Body.String(), "10.0.0.4")
	})

	t.Run("unexpected error yields 500", func(t *testing.T) {
		orch := &stubOrchestrator{err: errors.New("boom")}
		handler := newTestHandler(orch, &stubBatch{})

		c, rec := postJSON(e, "/api/v1/weather-insights", `{"location":"Manila"}`)
		require.NoError(t, handler.GetInsights(c))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Body.String(), "analysis failed")
		assert.NotContains(t, rec.Body.String(), "boom")
	})
}

func TestGetBatchInsights(t *testing.T) {
	e := echo.New()

	t.Run("returns the batch report", func(t *testing.T) {
		batch := &stubBatch{
			report: &usecase.BatchReport{
				Results: []usecase.BatchItem{
					{Location: "Manila", Insights: &domain.InsightBundle{}},
					{Location: "Atlantis", Error: `location "Atlantis" could not be resolved`},
				},
				TotalLocations: 2,
				Successful:     1,
				Failed:         1,
			},
		}
		handler := newTestHandler(&stubOrchestrator{}, batch)

		c, rec := postJSON(e, "/api/v1/weather-insights/batch",
			`{"locations":["Manila","Atlantis"],"audience":"general"}`)
		require.NoError(t, handler.GetBatchInsights(c))
		assert.Equal(t, http.StatusOK, rec.Code)

		var report usecase.BatchReport
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
		assert.Equal(t, 2, report.TotalLocations)
		assert.Equal(t, 1, report.Successful)
		assert.Equal(t, 1, report.Failed)
	})

	t.Run("rejects empty and oversized batches", func(t *testing.T) {
		handler := newTestHandler(&stubOrchestrator{}, &stubBatch{})

		c, rec := postJSON(e, "/api/v1/weather-insights/batch", `{"locations":[]}`)
		require.NoError(t, handler.GetBatchInsights(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "locations must not be empty")

		locations := make([]string, 21)
		for i := range locations {
			locations[i] = "Manila"
		}
		payload, err := json.Marshal(map[string]any{"locations": locations})
		require.NoError(t, err)

		c, rec = postJSON(e, "/api/v1/weather-insights/batch", string(payload))
		require.NoError(t, handler.GetBatchInsights(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "too many locations")
	})

	t.Run("rejects unknown audience", func(t *testing.T) {
		handler := newTestHandler(&stubOrchestrator{}, &stubBatch{})

		c, rec := postJSON(e, "/api/v1/weather-insights/batch",
			`{"locations":["Manila"],"audience":"astronauts"}`)
		require.NoError(t, handler.GetBatchInsights(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "unknown audience")
	})
}

func TestGetStatus(t *testing.T) {
	e := echo.New()

	t.Run("all services up", func(t *testing.T) {
		handler := httpapi.NewHandler(
			&stubOrchestrator{},
			&stubBatch{},
			&stubProvider{ready: true},
			&stubGenerator{},
			&stubStore{stats: &domain.KnowledgeStats{
				TotalDocuments:  6,
				VectorDimension: 768,
				CollectionName:  "weather_knowledge",
			}},
		)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		require.NoError(t, handler.GetStatus(c))
		assert.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Workflow      string                 `json:"workflow"`
			Services      map[string]string      `json:"services"`
			KnowledgeBase *domain.KnowledgeStats `json:"knowledge_base"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "operational", resp.Workflow)
		assert.Equal(t, "up", resp.Services["weather_provider"])
		assert.Equal(t, "up", resp.Services["generator"])
		assert.Equal(t, "up", resp.Services["knowledge_store"])
		require.NotNil(t, resp.KnowledgeBase)
		assert.Equal(t, 6, resp.KnowledgeBase.TotalDocuments)
		assert.Equal(t, 768, resp.KnowledgeBase.VectorDimension)
	})

	t.Run("store outage degrades the workflow", func(t *testing.T) {
		handler := httpapi.NewHandler(
			&stubOrchestrator{},
			&stubBatch{},
			&stubProvider{ready: true},
			&stubGenerator{},
			&stubStore{pingErr: errors.New("conn refused"), statsErr: errors.New("conn refused")},
		)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		require.NoError(t, handler.GetStatus(c))
		assert.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Workflow      string            `json:"workflow"`
			Services      map[string]string `json:"services"`
			KnowledgeBase *struct{}         `json:"knowledge_base"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "degraded", resp.Workflow)
		assert.Equal(t, "down", resp.Services["knowledge_store"])
		assert.Nil(t, resp.KnowledgeBase)
	})
}
