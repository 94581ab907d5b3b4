package di

import (
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dreiseu/ai-weather-insights-agent/internal/adapter/ollama"
	"github.com/dreiseu/ai-weather-insights-agent/internal/adapter/openweather"
	"github.com/dreiseu/ai-weather-insights-agent/internal/adapter/repository"
	"github.com/dreiseu/ai-weather-insights-agent/internal/domain"
	"github.com/dreiseu/ai-weather-insights-agent/internal/infra/config"
	"github.com/dreiseu/ai-weather-insights-agent/internal/infra/metrics"
	"github.com/dreiseu/ai-weather-insights-agent/internal/usecase"
	"github.com/dreiseu/ai-weather-insights-agent/internal/worker"
)

const (
	embedBatchSize  = 16
	embedRatePerSec = 4
)

// Components holds the wired dependency graph shared by the server and
// the kbctl CLI.
type Components struct {
	Metrics *metrics.Metrics

	// Adapters exposed for handler wiring and status probes
	Provider  *openweather.Client
	Generator *ollama.Generator
	Embedder  *ollama.Embedder
	Store     domain.KnowledgeStore

	// Usecases
	Orchestrator usecase.InsightOrchestrator
	Batch        usecase.BatchInsights
	Ingestor     usecase.KnowledgeIngestor

	// Worker
	Refresher *worker.Refresher
}

// NewComponents wires all dependencies from config and the database
// pool. pool may be nil when no DATABASE_URL is configured; the
// pipeline then runs without knowledge grounding and Ingestor stays
// nil.
func NewComponents(cfg *config.Config, pool *pgxpool.Pool, log *slog.Logger) (*Components, error) {
	m := metrics.NewMetrics()

	provider := openweather.NewClient(openweather.Config{
		BaseURL:    cfg.OpenWeatherBaseURL,
		GeoURL:     cfg.OpenWeatherGeoURL,
		APIKey:     cfg.OpenWeatherAPIKey,
		Timeout:    cfg.OpenWeatherTimeout,
		RatePerSec: cfg.OpenWeatherRate,
		Burst:      cfg.OpenWeatherBurst,
	}, m, log)

	// Two generator instances against the same model: one per structured
	// output contract.
	generator := ollama.NewGenerator(cfg.OllamaURL, cfg.GenerationModel, ollama.AdviceFormat, cfg.GenerationTimeout, log)
	summarizer := ollama.NewGenerator(cfg.OllamaURL, cfg.GenerationModel, ollama.SummaryFormat, cfg.GenerationTimeout, log)
	embedder := ollama.NewEmbedder(cfg.OllamaURL, cfg.EmbeddingModel, cfg.GenerationTimeout)

	var store domain.KnowledgeStore
	var ingestor usecase.KnowledgeIngestor
	var retrieverEncoder domain.VectorEncoder
	if pool != nil {
		store = repository.NewKnowledgeRepository(pool, cfg.KnowledgeTable, cfg.EmbeddingDim)
		txManager := repository.NewPostgresTransactionManager(pool)
		ingestor = usecase.NewKnowledgeIngestor(embedder, store, txManager, embedBatchSize, embedRatePerSec)
		retrieverEncoder = embedder
	} else {
		log.Warn("no database configured, running without knowledge retrieval")
	}

	thresholds := usecase.DefaultRiskThresholds()
	thresholds.ConfidenceFloor = cfg.ConfidenceFloor

	validator := usecase.NewWeatherValidator()
	analyzer := usecase.NewRiskAnalyzer(thresholds)
	retriever := usecase.NewKnowledgeRetriever(retrieverEncoder, store, cfg.RetrievalTopK, m)
	synthesizer := usecase.NewAdviceSynthesizer(
		generator,
		summarizer,
		usecase.NewXMLAdvicePromptBuilder(),
		usecase.NewAdviceValidator(),
		cfg.GenerationMaxToken,
		m,
	)

	orchestrator := usecase.NewInsightOrchestrator(
		provider, validator, analyzer, retriever, synthesizer,
		usecase.OrchestratorOptions{
			Timeouts: usecase.StageTimeouts{
				Fetch:      cfg.FetchTimeout,
				Validate:   cfg.ValidateTimeout,
				Analyze:    cfg.AnalyzeTimeout,
				Synthesize: cfg.SynthesizeTimeout,
			},
			RetryBackoff:   cfg.RetryBackoff,
			ForecastDays:   cfg.ForecastDays,
			CacheTTL:       cfg.InsightCacheTTL,
			CacheSize:      cfg.InsightCacheSize,
			ReportTimezone: cfg.ReportTimezone,
		},
		m,
	)
	batch := usecase.NewBatchInsights(orchestrator, cfg.BatchWorkers, m)

	refresher, err := worker.NewRefresher(orchestrator, cfg.WatchLocations, cfg.RefreshSchedule, nil)
	if err != nil {
		return nil, err
	}

	return &Components{
		Metrics:      m,
		Provider:     provider,
		Generator:    generator,
		Embedder:     embedder,
		Store:        store,
		Orchestrator: orchestrator,
		Batch:        batch,
		Ingestor:     ingestor,
		Refresher:    refresher,
	}, nil
}
