package openweather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dreiseu/ai-weather-insights-agent/internal/domain"
	"github.com/dreiseu/ai-weather-insights-agent/internal/infra/httpclient"
	"github.com/dreiseu/ai-weather-insights-agent/internal/infra/metrics"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

const (
	providerName     = "openweather"
	maxForecastSteps = 40 // provider limit: 5 days of 3-hour steps
)

// Config carries the tunables for the OpenWeather client.
type Config struct {
	BaseURL    string
	GeoURL     string
	APIKey     string
	Timeout    time.Duration
	RatePerSec float64
	Burst      int
	MaxRetries int
	RetryDelay time.Duration
}

// Client fetches geocoding, current conditions, and forecasts from
// OpenWeather, normalizing units to the domain model. All calls pass a
// rate limiter and a circuit breaker before touching the network.
type Client struct {
	cfg        Config
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	limiter    *rate.Limiter
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewClient builds a resilient OpenWeather client on the shared
// connection pool.
func NewClient(cfg Config, m *metrics.Metrics, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 1
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 5
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 2
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 300 * time.Millisecond
	}

	settings := gobreaker.Settings{
		Name:    providerName,
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("breaker_state_changed",
				slog.String("client", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	}

	return &Client{
		cfg:        cfg,
		httpClient: httpclient.NewPooledClient(cfg.Timeout),
		breaker:    gobreaker.NewCircuitBreaker(settings),
		limiter:    rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.Burst),
		metrics:    m,
		logger:     logger,
	}
}

// ResolveLocation geocodes a place name via the provider's direct
// geocoding endpoint. An empty result is an InvalidLocationError.
func (c *Client) ResolveLocation(ctx context.Context, name string) (domain.Location, error) {
	query := url.Values{}
	query.Set("q", name)
	query.Set("limit", "1")
	query.Set("appid", c.cfg.APIKey)

	var results []geocodeResult
	if err := c.getJSON(ctx, c.cfg.GeoURL+"/geo/1.0/direct?"+query.Encode(), &results); err != nil {
		return domain.Location{}, err
	}
	if len(results) == 0 {
		return domain.Location{}, &domain.InvalidLocationError{Query: name}
	}

	resolved := results[0]
	display := resolved.Name
	if display == "" {
		display = name
	}
	lat, lon := resolved.Lat, resolved.Lon
	return domain.Location{Name: display, Latitude: &lat, Longitude: &lon}, nil
}

// FetchCurrent returns present conditions for a resolved location.
func (c *Client) FetchCurrent(ctx context.Context, loc domain.Location) (*domain.WeatherSnapshot, error) {
	if !loc.Resolved() {
		return nil, fmt.Errorf("location %q has no coordinates", loc.Name)
	}

	var resp currentResponse
	if err := c.getJSON(ctx, c.observationURL("/data/2.5/weather", loc, nil), &resp); err != nil {
		return nil, err
	}

	snapshot := resp.observation.toSnapshot()
	return &snapshot, nil
}

// FetchForecast returns up to days of 3-hour forecast steps.
func (c *Client) FetchForecast(ctx context.Context, loc domain.Location, days int) (domain.ForecastSeries, error) {
	if !loc.Resolved() {
		return nil, fmt.Errorf("location %q has no coordinates", loc.Name)
	}
	steps := days * 8
	if steps <= 0 || steps > maxForecastSteps {
		steps = maxForecastSteps
	}

	extra := url.Values{}
	extra.Set("cnt", strconv.Itoa(steps))

	var resp forecastResponse
	if err := c.getJSON(ctx, c.observationURL("/data/2.5/forecast", loc, extra), &resp); err != nil {
		return nil, err
	}

	series := make(domain.ForecastSeries, 0, len(resp.List))
	for _, step := range resp.List {
		series = append(series, step.toSnapshot())
	}
	return series, nil
}

// Ready reports whether calls can be attempted right now. It never
// spends an upstream request.
func (c *Client) Ready() bool {
	return c.cfg.APIKey != "" && c.breaker.State() != gobreaker.StateOpen
}

func (c *Client) observationURL(path string, loc domain.Location, extra url.Values) string {
	query := url.Values{}
	query.Set("lat", strconv.FormatFloat(*loc.Latitude, 'f', -1, 64))
	query.Set("lon", strconv.FormatFloat(*loc.Longitude, 'f', -1, 64))
	query.Set("units", "metric")
	query.Set("appid", c.cfg.APIKey)
	for key, values := range extra {
		for _, v := range values {
			query.Add(key, v)
		}
	}
	return c.cfg.BaseURL + path + "?" + query.Encode()
}

// getJSON runs one provider call through the breaker with bounded
// retries. 4xx responses other than 429 are never retried.
func (c *Client) getJSON(ctx context.Context, callURL string, out any) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.doGetWithRetry(ctx, callURL, out)
	})
	if err != nil {
		c.metrics.ProviderRequests.WithLabelValues(providerName, "error").Inc()
		return &domain.ProviderUnavailableError{Provider: providerName, Cause: err}
	}
	c.metrics.ProviderRequests.WithLabelValues(providerName, "success").Inc()
	return nil
}

func (c *Client) doGetWithRetry(ctx context.Context, callURL string, out any) error {
	var lastErr error

	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(float64(c.cfg.RetryDelay) * math.Pow(2, float64(attempt-1)))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, callURL, nil)
		if err != nil {
			return fmt.Errorf("creating request failed: %w", err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			c.logger.Warn("openweather_request_failed",
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()))
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			err = json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			if err != nil {
				lastErr = fmt.Errorf("decoding response failed: %w", err)
				continue
			}
			return nil
		}

		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		lastErr = fmt.Errorf("http %d: %s", resp.StatusCode, string(body))

		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			break
		}
	}

	return lastErr
}

type geocodeResult struct {
	Name    string  `json:"name"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Country string  `json:"country"`
}

// observation is the shared shape of a current-conditions response and
// one forecast list entry. Pointer fields keep absent readings absent.
type observation struct {
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Main struct {
		Temp     *float64 `json:"temp"`
		Humidity *float64 `json:"humidity"`
		Pressure *float64 `json:"pressure"`
	} `json:"main"`
	Visibility *float64 `json:"visibility"`
	Wind       *struct {
		Speed *float64 `json:"speed"`
		Deg   *float64 `json:"deg"`
	} `json:"wind"`
	Rain *struct {
		OneHour    *float64 `json:"1h"`
		ThreeHours *float64 `json:"3h"`
	} `json:"rain"`
	Clouds *struct {
		All *float64 `json:"all"`
	} `json:"clouds"`
	Dt int64 `json:"dt"`
}

type currentResponse struct {
	observation
	Name string `json:"name"`
}

type forecastResponse struct {
	List []observation `json:"list"`
}

// toSnapshot normalizes provider units: metric mode already delivers °C
// and m/s; visibility arrives in meters and becomes km.
func (o observation) toSnapshot() domain.WeatherSnapshot {
	snapshot := domain.WeatherSnapshot{
		Temperature: o.Main.Temp,
		Humidity:    o.Main.Humidity,
		Pressure:    o.Main.Pressure,
		Timestamp:   time.Unix(o.Dt, 0).UTC(),
	}

	if len(o.Weather) > 0 {
		snapshot.ConditionCode = normalizeCondition(o.Weather[0].Main)
		snapshot.Description = o.Weather[0].Description
	}
	if o.Wind != nil {
		snapshot.WindSpeed = o.Wind.Speed
		snapshot.WindDirection = o.Wind.Deg
	}
	if o.Rain != nil {
		snapshot.Rainfall1h = o.Rain.OneHour
		snapshot.Rainfall3h = o.Rain.ThreeHours
	}
	if o.Clouds != nil {
		snapshot.Cloudiness = o.Clouds.All
	}
	if o.Visibility != nil {
		km := *o.Visibility / 1000
		snapshot.Visibility = &km
	}
	return snapshot
}

func normalizeCondition(main string) string {
	if main == "" {
		return "unknown"
	}
	return strings.ToLower(main)
}
