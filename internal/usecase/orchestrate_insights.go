package usecase

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/dreiseu/ai-weather-insights-agent/internal/domain"
	"github.com/dreiseu/ai-weather-insights-agent/internal/infra/logger"
	"github.com/dreiseu/ai-weather-insights-agent/internal/infra/metrics"
)

// Pipeline stage names, used in logs, metrics, and degraded bundles.
const (
	StageFetching     = "fetching"
	StageValidating   = "validating"
	StageAnalyzing    = "analyzing"
	StageSynthesizing = "synthesizing"
	StageComplete     = "complete"
	StageDegraded     = "degraded"
)

// InsightRequest describes one analysis request. Coordinates are
// optional; when present, geocoding is skipped.
type InsightRequest struct {
	Location    string
	Audience    string
	Latitude    *float64
	Longitude   *float64
	BypassCache bool
}

// InsightOrchestrator runs the full pipeline for one location.
type InsightOrchestrator interface {
	Execute(ctx context.Context, req InsightRequest) (*domain.InsightBundle, error)
}

// StageTimeouts bounds the pipeline stages. Fetch and Synthesize cap
// their upstream calls directly; all four stages add up to the
// whole-run deadline.
type StageTimeouts struct {
	Fetch      time.Duration
	Validate   time.Duration
	Analyze    time.Duration
	Synthesize time.Duration
}

// runBudget is the worst-case wall time for one run: both I/O stages
// retried once with backoff, plus the in-process stages.
func (t StageTimeouts) runBudget(backoff time.Duration) time.Duration {
	return 2*(t.Fetch+t.Synthesize+backoff) + t.Validate + t.Analyze
}

// OrchestratorOptions carries the tuning knobs sourced from config.
type OrchestratorOptions struct {
	Timeouts       StageTimeouts
	RetryBackoff   time.Duration
	ForecastDays   int
	CacheTTL       time.Duration
	CacheSize      int
	ReportTimezone string
}

type insightOrchestrator struct {
	provider    domain.WeatherProvider
	validator   WeatherValidator
	analyzer    RiskAnalyzer
	retriever   KnowledgeRetriever
	synthesizer AdviceSynthesizer
	opts        OrchestratorOptions
	reportZone  *time.Location
	cache       *expirable.LRU[string, *domain.InsightBundle]
	metrics     *metrics.Metrics
}

// NewInsightOrchestrator wires the pipeline stages together. An
// unknown ReportTimezone falls back to UTC.
func NewInsightOrchestrator(
	provider domain.WeatherProvider,
	validator WeatherValidator,
	analyzer RiskAnalyzer,
	retriever KnowledgeRetriever,
	synthesizer AdviceSynthesizer,
	opts OrchestratorOptions,
	m *metrics.Metrics,
) InsightOrchestrator {
	zone, err := time.LoadLocation(opts.ReportTimezone)
	if err != nil {
		slog.Warn("unknown report timezone, using UTC", slog.String("timezone", opts.ReportTimezone))
		zone = time.UTC
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 256
	}

	return &insightOrchestrator{
		provider:    provider,
		validator:   validator,
		analyzer:    analyzer,
		retriever:   retriever,
		synthesizer: synthesizer,
		opts:        opts,
		reportZone:  zone,
		cache:       expirable.NewLRU[string, *domain.InsightBundle](opts.CacheSize, nil, opts.CacheTTL),
		metrics:     m,
	}
}

// Execute walks fetching → validating → analyzing → synthesizing. A
// fetch failure (after one retry) or an unresolvable location aborts
// with a StageError. A synthesis failure (after one retry) degrades:
// the bundle keeps everything the earlier stages produced.
func (o *insightOrchestrator) Execute(ctx context.Context, req InsightRequest) (*domain.InsightBundle, error) {
	runID := uuid.NewString()
	audience := NormalizeAudience(req.Audience)
	key := cacheKey(req.Location, audience)

	ctx = logger.WithRequestID(ctx, runID)
	ctx = logger.WithLocation(ctx, req.Location)

	if !req.BypassCache {
		if bundle, ok := o.cache.Get(key); ok {
			o.countCache("hit")
			slog.InfoContext(ctx, "serving cached insight", slog.String("audience", audience))
			return bundle, nil
		}
		o.countCache("miss")
	}

	started := time.Now()
	slog.InfoContext(ctx, "insight run started", slog.String("audience", audience))

	ctx, cancel := context.WithTimeout(ctx, o.opts.Timeouts.runBudget(o.opts.RetryBackoff))
	defer cancel()

	loc, current, series, err := o.runFetch(ctx, req)
	if err != nil {
		o.countRun("error")
		slog.ErrorContext(ctx, "insight run failed during fetch", slog.String("error", err.Error()))
		return nil, &domain.StageError{Stage: StageFetching, Err: err}
	}

	quality := o.runValidate(current, series)
	signals := o.runAnalyze(current, series, quality)

	synthOut, err := o.runSynthesize(ctx, loc, audience, current, signals)
	if err != nil {
		bundle := o.assemble(loc, current, quality, signals, nil, audience, []string{StageSynthesizing})
		o.countRun(StageDegraded)
		slog.WarnContext(ctx, "insight run degraded during synthesis",
			slog.String("error", err.Error()),
			slog.Duration("duration", time.Since(started)))
		return bundle, nil
	}

	bundle := o.assemble(loc, current, quality, signals, synthOut, audience, nil)
	o.cache.Add(key, bundle)
	o.countCache("store")
	o.countRun(StageComplete)
	slog.InfoContext(ctx, "insight run finished",
		slog.Int("signals", len(signals)),
		slog.Int("recommendations", len(bundle.Recommendations)),
		slog.Duration("duration", time.Since(started)))
	return bundle, nil
}

// runFetch resolves the location if needed and pulls current plus
// forecast data. ProviderUnavailable earns one retry after backoff;
// InvalidLocation is final.
func (o *insightOrchestrator) runFetch(ctx context.Context, req InsightRequest) (domain.Location, *domain.WeatherSnapshot, domain.ForecastSeries, error) {
	defer o.observeStage(StageFetching, time.Now())
	ctx = logger.WithStage(ctx, StageFetching)

	loc, current, series, err := o.fetchOnce(ctx, req)
	if err == nil || !domain.IsProviderUnavailable(err) {
		return loc, current, series, err
	}

	slog.WarnContext(ctx, "weather fetch failed, retrying once", slog.String("error", err.Error()))
	if waitErr := sleepContext(ctx, o.opts.RetryBackoff); waitErr != nil {
		return loc, nil, nil, err
	}
	return o.fetchOnce(ctx, req)
}

func (o *insightOrchestrator) fetchOnce(ctx context.Context, req InsightRequest) (domain.Location, *domain.WeatherSnapshot, domain.ForecastSeries, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, o.opts.Timeouts.Fetch)
	defer cancel()

	loc := domain.Location{Name: strings.TrimSpace(req.Location), Latitude: req.Latitude, Longitude: req.Longitude}
	if !loc.Resolved() {
		resolved, err := o.provider.ResolveLocation(fetchCtx, loc.Name)
		if err != nil {
			return loc, nil, nil, err
		}
		loc = resolved
	}

	current, err := o.provider.FetchCurrent(fetchCtx, loc)
	if err != nil {
		return loc, nil, nil, err
	}
	series, err := o.provider.FetchForecast(fetchCtx, loc, o.opts.ForecastDays)
	if err != nil {
		return loc, nil, nil, err
	}
	return loc, current, series, nil
}

func (o *insightOrchestrator) runValidate(current *domain.WeatherSnapshot, series domain.ForecastSeries) domain.QualityReport {
	defer o.observeStage(StageValidating, time.Now())
	return o.validator.Validate(current, series)
}

func (o *insightOrchestrator) runAnalyze(current *domain.WeatherSnapshot, series domain.ForecastSeries, quality domain.QualityReport) []domain.RiskSignal {
	defer o.observeStage(StageAnalyzing, time.Now())
	return o.analyzer.Analyze(current, series, quality)
}

// runSynthesize retrieves knowledge and generates advice under the
// synthesis deadline, retrying the whole step once when the generation
// provider is unavailable.
func (o *insightOrchestrator) runSynthesize(
	ctx context.Context,
	loc domain.Location,
	audience string,
	current *domain.WeatherSnapshot,
	signals []domain.RiskSignal,
) (*SynthesizeOutput, error) {
	defer o.observeStage(StageSynthesizing, time.Now())
	ctx = logger.WithStage(ctx, StageSynthesizing)

	out, err := o.synthesizeOnce(ctx, loc, audience, current, signals)
	if err == nil || !domain.IsProviderUnavailable(err) {
		return out, err
	}

	slog.WarnContext(ctx, "advice synthesis failed, retrying once", slog.String("error", err.Error()))
	if waitErr := sleepContext(ctx, o.opts.RetryBackoff); waitErr != nil {
		return nil, err
	}
	return o.synthesizeOnce(ctx, loc, audience, current, signals)
}

func (o *insightOrchestrator) synthesizeOnce(
	ctx context.Context,
	loc domain.Location,
	audience string,
	current *domain.WeatherSnapshot,
	signals []domain.RiskSignal,
) (*SynthesizeOutput, error) {
	synthCtx, cancel := context.WithTimeout(ctx, o.opts.Timeouts.Synthesize)
	defer cancel()

	passages := o.retriever.ForSignals(synthCtx, signals, audience)
	return o.synthesizer.Execute(synthCtx, SynthesizeInput{
		Location: loc.Name,
		Audience: audience,
		Signals:  signals,
		Passages: passages,
		Current:  current,
	})
}

// assemble builds the bundle from whatever the stages produced. synth
// is nil on degraded runs; the signal-derived alerts and contacts are
// kept either way.
func (o *insightOrchestrator) assemble(
	loc domain.Location,
	current *domain.WeatherSnapshot,
	quality domain.QualityReport,
	signals []domain.RiskSignal,
	synth *SynthesizeOutput,
	audience string,
	degradedStages []string,
) *domain.InsightBundle {
	bundle := &domain.InsightBundle{
		Location:       loc,
		DataQuality:    quality,
		RiskAlerts:     BuildRiskAlerts(signals),
		AnalysisTime:   time.Now().In(o.reportZone),
		Degraded:       len(degradedStages) > 0,
		DegradedStages: degradedStages,
	}
	if current != nil {
		bundle.CurrentWeather = *current
	}

	if synth != nil {
		bundle.Recommendations = synth.Recommendations
		domain.SortRecommendations(bundle.Recommendations)
		bundle.Summary = synth.Summary
	}

	bundle.PrioritySummary = domain.SummarizePriorities(bundle.Recommendations)
	bundle.ActionChecklist = domain.BuildActionChecklist(bundle.Recommendations)
	if hasUrgentSignal(signals) {
		bundle.ContactSuggestions = ContactSuggestions(audience)
	}
	return bundle
}

func (o *insightOrchestrator) observeStage(stage string, started time.Time) {
	if o.metrics == nil {
		return
	}
	o.metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(started).Seconds())
}

func (o *insightOrchestrator) countRun(outcome string) {
	if o.metrics == nil {
		return
	}
	o.metrics.InsightRuns.WithLabelValues(outcome).Inc()
}

func (o *insightOrchestrator) countCache(event string) {
	if o.metrics == nil {
		return
	}
	o.metrics.CacheEvents.WithLabelValues(event).Inc()
}

func cacheKey(location, audience string) string {
	return strings.ToLower(strings.TrimSpace(location)) + "|" + audience
}

func hasUrgentSignal(signals []domain.RiskSignal) bool {
	for _, s := range signals {
		if s.Severity.Rank() >= domain.SeverityHigh.Rank() {
			return true
		}
	}
	return false
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
