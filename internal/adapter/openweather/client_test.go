package openweather

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dreiseu/ai-weather-insights-agent/internal/domain"
	"github.com/dreiseu/ai-weather-insights-agent/internal/infra/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, serverURL string) *Client {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	return NewClient(Config{
		BaseURL:    serverURL,
		GeoURL:     serverURL,
		APIKey:     "test-key",
		Timeout:    2 * time.Second,
		RatePerSec: 1000,
		Burst:      1000,
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
	}, metrics.NewMetricsForTesting(), logger)
}

func TestClient_ResolveLocation_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/geo/1.0/direct", r.URL.Path)
		assert.Equal(t, "Manila", r.URL.Query().Get("q"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		assert.Equal(t, "test-key", r.URL.Query().Get("appid"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"name":"Manila","lat":14.5995,"lon":120.9842,"country":"PH"}]`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	loc, err := client.ResolveLocation(context.Background(), "Manila")
	require.NoError(t, err)

	assert.Equal(t, "Manila", loc.Name)
	require.True(t, loc.Resolved())
	assert.InDelta(t, 14.5995, *loc.Latitude, 0.0001)
	assert.InDelta(t, 120.9842, *loc.Longitude, 0.0001)
}

func TestClient_ResolveLocation_Miss(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	_, err := client.ResolveLocation(context.Background(), "Nowhereville")
	require.Error(t, err)
	assert.True(t, domain.IsInvalidLocation(err))

	var invalidLoc *domain.InvalidLocationError
	require.ErrorAs(t, err, &invalidLoc)
	assert.Equal(t, "Nowhereville", invalidLoc.Query)
}

func TestClient_FetchCurrent_Normalizes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/data/2.5/weather", r.URL.Path)
		assert.Equal(t, "metric", r.URL.Query().Get("units"))
		assert.NotEmpty(t, r.URL.Query().Get("lat"))
		assert.NotEmpty(t, r.URL.Query().Get("lon"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"weather":[{"main":"Thunderstorm","description":"heavy thunderstorm"}],
			"main":{"temp":28.4,"humidity":84,"pressure":1004},
			"visibility":10000,
			"wind":{"speed":7.2,"deg":180},
			"clouds":{"all":90},
			"dt":1699999200,
			"name":"Manila"
		}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	lat, lon := 14.5995, 120.9842
	loc := domain.Location{Name: "Manila", Latitude: &lat, Longitude: &lon}

	snapshot, err := client.FetchCurrent(context.Background(), loc)
	require.NoError(t, err)

	require.NotNil(t, snapshot.Temperature)
	assert.Equal(t, 28.4, *snapshot.Temperature)
	assert.Equal(t, "thunderstorm", snapshot.ConditionCode)
	assert.Equal(t, "heavy thunderstorm", snapshot.Description)
	require.NotNil(t, snapshot.Visibility)
	assert.Equal(t, 10.0, *snapshot.Visibility, "visibility arrives in meters, stored in km")
	assert.Nil(t, snapshot.Rainfall1h, "absent rain stays absent")
	require.NotNil(t, snapshot.WindSpeed)
	assert.Equal(t, 7.2, *snapshot.WindSpeed)
	assert.Equal(t, time.Unix(1699999200, 0).UTC(), snapshot.Timestamp)
}

func TestClient_FetchForecast_RequestsBoundedSteps(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/data/2.5/forecast", r.URL.Path)
		assert.Equal(t, "16", r.URL.Query().Get("cnt"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"list":[
			{"main":{"temp":30.1,"humidity":70,"pressure":1008},"weather":[{"main":"Clouds","description":"broken clouds"}],"dt":1700000000},
			{"main":{"temp":31.5,"humidity":65,"pressure":1007},"weather":[{"main":"Rain","description":"light rain"}],"rain":{"3h":2.5},"dt":1700010800}
		]}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	lat, lon := 14.5995, 120.9842
	loc := domain.Location{Name: "Manila", Latitude: &lat, Longitude: &lon}

	series, err := client.FetchForecast(context.Background(), loc, 2)
	require.NoError(t, err)

	require.Len(t, series, 2)
	assert.Equal(t, "clouds", series[0].ConditionCode)
	require.NotNil(t, series[1].Rainfall3h)
	assert.Equal(t, 2.5, *series[1].Rainfall3h)
	assert.True(t, series[0].Timestamp.Before(series[1].Timestamp))
}

func TestClient_RetriesOnRateLimit(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"name":"Cebu City","lat":10.3157,"lon":123.8854}]`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	loc, err := client.ResolveLocation(context.Background(), "Cebu City")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, "Cebu City", loc.Name)
}

func TestClient_NoRetryOnAuthFailure(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	_, err := client.ResolveLocation(context.Background(), "Manila")
	require.Error(t, err)
	assert.True(t, domain.IsProviderUnavailable(err))
	assert.Equal(t, int32(1), calls.Load(), "4xx other than 429 must not retry")
}

func TestClient_ServerErrorsExhaustRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	_, err := client.ResolveLocation(context.Background(), "Manila")
	require.Error(t, err)
	assert.True(t, domain.IsProviderUnavailable(err))
	assert.Equal(t, int32(3), calls.Load(), "initial call plus two retries")
}

func TestClient_Ready(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	client := NewClient(Config{APIKey: ""}, metrics.NewMetricsForTesting(), logger)
	assert.False(t, client.Ready(), "missing api key means not ready")

	client = NewClient(Config{APIKey: "k"}, metrics.NewMetricsForTesting(), logger)
	assert.True(t, client.Ready())
}
