package usecase

import (
	"context"
	"log/slog"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dreiseu/ai-weather-insights-agent/internal/domain"
	"github.com/dreiseu/ai-weather-insights-agent/internal/infra/metrics"
)

// BatchItem is the per-location slot of a batch report: either a bundle
// or an error string, never both.
type BatchItem struct {
	Location string                `json:"location"`
	Insights *domain.InsightBundle `json:"insights,omitempty"`
	Error    string                `json:"error,omitempty"`
}

// BatchReport aggregates a multi-location run.
type BatchReport struct {
	Results        []BatchItem `json:"results"`
	TotalLocations int         `json:"total_locations"`
	Successful     int         `json:"successful_analyses"`
	Failed         int         `json:"failed_analyses"`
	ProcessingTime float64     `json:"processing_time"`
}

// BatchInsights fans one request out over several locations.
type BatchInsights interface {
	Execute(ctx context.Context, locations []string, audience string) (*BatchReport, error)
}

type batchInsights struct {
	orchestrator InsightOrchestrator
	workers      int
	metrics      *metrics.Metrics
}

// NewBatchInsights creates the fan-out runner. workers is clamped to
// [1, 10].
func NewBatchInsights(orchestrator InsightOrchestrator, workers int, m *metrics.Metrics) BatchInsights {
	if workers < 1 {
		workers = 1
	}
	if workers > 10 {
		workers = 10
	}
	return &batchInsights{
		orchestrator: orchestrator,
		workers:      workers,
		metrics:      m,
	}
}

// Execute runs the pipeline for every location with bounded
// concurrency. One location failing never cancels its siblings; each
// failure is captured in its result slot.
func (b *batchInsights) Execute(ctx context.Context, locations []string, audience string) (*BatchReport, error) {
	started := time.Now()
	results := make([]BatchItem, len(locations))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for i, location := range locations {
		g.Go(func() error {
			bundle, err := b.orchestrator.Execute(gctx, InsightRequest{Location: location, Audience: audience})
			if err != nil {
				slog.Warn("batch location failed", slog.String("location", location), slog.String("error", err.Error()))
				results[i] = BatchItem{Location: location, Error: publicErrorMessage(err)}
				return nil
			}
			results[i] = BatchItem{Location: location, Insights: bundle}
			return nil
		})
	}
	_ = g.Wait()

	report := &BatchReport{
		Results:        results,
		TotalLocations: len(locations),
	}
	for _, item := range results {
		if item.Error == "" {
			report.Successful++
		} else {
			report.Failed++
		}
	}
	report.ProcessingTime = math.Round(time.Since(started).Seconds()*100) / 100

	if b.metrics != nil {
		b.metrics.BatchSize.Observe(float64(len(locations)))
	}
	slog.Info("batch run finished",
		slog.Int("total", report.TotalLocations),
		slog.Int("successful", report.Successful),
		slog.Int("failed", report.Failed),
		slog.Float64("processing_time", report.ProcessingTime))
	return report, nil
}

// publicErrorMessage maps pipeline errors to client-safe strings,
// withholding provider internals.
func publicErrorMessage(err error) string {
	switch {
	case domain.IsInvalidLocation(err):
		return err.Error()
	case domain.IsProviderUnavailable(err):
		return "weather provider unavailable"
	default:
		return "analysis failed"
	}
}
