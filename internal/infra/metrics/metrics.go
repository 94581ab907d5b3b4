package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the insight pipeline.
type Metrics struct {
	InsightRuns   *prometheus.CounterVec   // labels: outcome={complete,degraded,error}
	StageDuration *prometheus.HistogramVec // labels: stage

	ProviderRequests    *prometheus.CounterVec // labels: provider, outcome={success,error}
	KnowledgeRetrievals *prometheus.CounterVec // labels: outcome={ok,empty,error}
	CacheEvents         *prometheus.CounterVec // labels: event={hit,miss,store}

	SchemaViolations prometheus.Counter
	BatchSize        prometheus.Histogram
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.InsightRuns,
		m.StageDuration,
		m.ProviderRequests,
		m.KnowledgeRetrievals,
		m.CacheEvents,
		m.SchemaViolations,
		m.BatchSize,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics across tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		InsightRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weather_insights",
			Name:      "runs_total",
			Help:      "Pipeline runs by final outcome.",
		}, []string{"outcome"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "weather_insights",
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage.",
			Buckets:   []float64{0.005, 0.05, 0.25, 1, 2.5, 5, 10, 30, 60},
		}, []string{"stage"}),
		ProviderRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weather_insights",
			Name:      "provider_requests_total",
			Help:      "Upstream provider calls by provider and outcome.",
		}, []string{"provider", "outcome"}),
		KnowledgeRetrievals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weather_insights",
			Name:      "knowledge_retrievals_total",
			Help:      "Similarity searches by outcome.",
		}, []string{"outcome"}),
		CacheEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weather_insights",
			Name:      "insight_cache_events_total",
			Help:      "Insight cache lookups and stores.",
		}, []string{"event"}),
		SchemaViolations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weather_insights",
			Name:      "schema_violations_total",
			Help:      "Generation outputs discarded for contract violations.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "weather_insights",
			Name:      "batch_size",
			Help:      "Locations per batch request.",
			Buckets:   []float64{1, 2, 3, 5, 8, 10, 15, 20},
		}),
	}
}
