package usecase

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"unicode"

	"github.com/dreiseu/ai-weather-insights-agent/internal/domain"
	"github.com/dreiseu/ai-weather-insights-agent/internal/infra/metrics"
)

// SynthesizeInput carries everything the generation stage needs: the
// analyzed signals, the knowledge retrieved per signal (index-aligned),
// and the conditions for grounding.
type SynthesizeInput struct {
	Location string
	Audience string
	Signals  []domain.RiskSignal
	Passages [][]domain.KnowledgePassage
	Current  *domain.WeatherSnapshot
}

// SynthesizeOutput is the generated portion of an insight bundle.
type SynthesizeOutput struct {
	Recommendations []domain.Recommendation
	Summary         string
	RiskAlerts      []string
}

// AdviceSynthesizer turns risk signals into audience-specific
// recommendations and a narrative summary.
type AdviceSynthesizer interface {
	Execute(ctx context.Context, input SynthesizeInput) (*SynthesizeOutput, error)
}

type adviceSynthesizer struct {
	generator  domain.LLMClient
	summarizer domain.LLMClient
	builder    AdvicePromptBuilder
	validator  AdviceValidator
	maxTokens  int
	metrics    *metrics.Metrics
}

// NewAdviceSynthesizer creates the generation stage. generator produces
// recommendation JSON, summarizer produces the summary JSON; both may be
// the same client. m may be nil in tests.
func NewAdviceSynthesizer(
	generator domain.LLMClient,
	summarizer domain.LLMClient,
	builder AdvicePromptBuilder,
	validator AdviceValidator,
	maxTokens int,
	m *metrics.Metrics,
) AdviceSynthesizer {
	return &adviceSynthesizer{
		generator:  generator,
		summarizer: summarizer,
		builder:    builder,
		validator:  validator,
		maxTokens:  maxTokens,
		metrics:    m,
	}
}

// Execute generates advice per signal, then the summary. A provider
// transport failure aborts with the error so the caller can retry or
// degrade; contract violations never abort, they substitute templates.
func (s *adviceSynthesizer) Execute(ctx context.Context, input SynthesizeInput) (*SynthesizeOutput, error) {
	audience := NormalizeAudience(input.Audience)

	var recs []domain.Recommendation
	if len(input.Signals) == 0 {
		recs = append(recs, s.baselineAdvice(ctx, input.Location, audience, input.Current))
	} else {
		for i, signal := range input.Signals {
			var passages []domain.KnowledgePassage
			if i < len(input.Passages) {
				passages = input.Passages[i]
			}
			signalRecs, err := s.adviceForSignal(ctx, input.Location, audience, signal, passages, input.Current)
			if err != nil {
				return nil, err
			}
			recs = append(recs, signalRecs...)
		}
	}

	for i := range recs {
		recs[i].TargetAudience = audience
	}

	return &SynthesizeOutput{
		Recommendations: recs,
		Summary:         s.summarize(ctx, input.Location, audience, recs, input.Signals),
		RiskAlerts:      BuildRiskAlerts(input.Signals),
	}, nil
}

func (s *adviceSynthesizer) adviceForSignal(
	ctx context.Context,
	location, audience string,
	signal domain.RiskSignal,
	passages []domain.KnowledgePassage,
	current *domain.WeatherSnapshot,
) ([]domain.Recommendation, error) {
	messages, err := s.builder.BuildAdvice(AdvicePromptInput{
		Location: location,
		Audience: audience,
		Signal:   signal,
		Passages: passages,
		Current:  current,
	})
	if err != nil {
		slog.WarnContext(ctx, "failed to prepare advice prompt", slog.String("kind", string(signal.Kind)), slog.String("reason", err.Error()))
		return []domain.Recommendation{fallbackRecommendation(signal, audience)}, nil
	}

	resp, err := s.generator.Generate(ctx, messages, s.maxTokens)
	if err != nil {
		if domain.IsProviderUnavailable(err) {
			return nil, err
		}
		slog.WarnContext(ctx, "advice generation failed", slog.String("kind", string(signal.Kind)), slog.String("error", err.Error()))
		return []domain.Recommendation{fallbackRecommendation(signal, audience)}, nil
	}

	recs, discarded, err := s.validator.ParseRecommendations(resp.Text)
	s.countSchemaViolations(discarded)
	if err != nil {
		s.countSchemaViolations(1)
		slog.WarnContext(ctx, "advice output failed validation, using template", slog.String("kind", string(signal.Kind)), slog.String("error", err.Error()))
		return []domain.Recommendation{fallbackRecommendation(signal, audience)}, nil
	}

	for i := range recs {
		recs[i].Priority = domain.ClampPriority(recs[i].Priority, signal.Severity)
	}
	return recs, nil
}

// baselineAdvice produces the single routine recommendation for a
// hazard-free window. Generation failures of any kind fall back to the
// template; the baseline never aborts a run.
func (s *adviceSynthesizer) baselineAdvice(ctx context.Context, location, audience string, current *domain.WeatherSnapshot) domain.Recommendation {
	messages, err := s.builder.BuildBaseline(location, audience, current)
	if err != nil {
		return baselineRecommendation(audience)
	}

	resp, err := s.generator.Generate(ctx, messages, s.maxTokens)
	if err != nil {
		slog.WarnContext(ctx, "baseline generation failed, using template", slog.String("error", err.Error()))
		return baselineRecommendation(audience)
	}

	recs, discarded, err := s.validator.ParseRecommendations(resp.Text)
	s.countSchemaViolations(discarded)
	if err != nil {
		s.countSchemaViolations(1)
		slog.WarnContext(ctx, "baseline output failed validation, using template", slog.String("error", err.Error()))
		return baselineRecommendation(audience)
	}

	rec := recs[0]
	rec.Priority = domain.PriorityLow
	return rec
}

// summarize generates the narrative once, regenerates once if the output
// is invalid or inconsistent with the recommendations, then falls back to
// the deterministic template. The summary never degrades a run.
func (s *adviceSynthesizer) summarize(
	ctx context.Context,
	location, audience string,
	recs []domain.Recommendation,
	signals []domain.RiskSignal,
) string {
	messages, err := s.builder.BuildSummary(SummaryPromptInput{
		Location:        location,
		Audience:        audience,
		Recommendations: recs,
		Signals:         signals,
	})
	if err == nil {
		for attempt := 0; attempt < 2; attempt++ {
			resp, genErr := s.summarizer.Generate(ctx, messages, s.maxTokens)
			if genErr != nil {
				slog.WarnContext(ctx, "summary generation failed", slog.Int("attempt", attempt+1), slog.String("error", genErr.Error()))
				continue
			}
			summary, parseErr := s.validator.ParseSummary(resp.Text)
			if parseErr != nil {
				s.countSchemaViolations(1)
				slog.WarnContext(ctx, "summary output failed validation", slog.Int("attempt", attempt+1), slog.String("error", parseErr.Error()))
				continue
			}
			if summaryConsistent(summary, recs, signals) {
				return summary
			}
			slog.WarnContext(ctx, "summary inconsistent with recommendations, regenerating", slog.Int("attempt", attempt+1))
		}
	}

	return templateSummary(location, audience, signals, recs)
}

func (s *adviceSynthesizer) countSchemaViolations(n int) {
	if s.metrics == nil || n <= 0 {
		return
	}
	s.metrics.SchemaViolations.Add(float64(n))
}

// BuildRiskAlerts renders signals as alert strings ordered by severity
// (highest first), then by kind.
func BuildRiskAlerts(signals []domain.RiskSignal) []string {
	ordered := make([]domain.RiskSignal, len(signals))
	copy(ordered, signals)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Severity.Rank() != ordered[j].Severity.Rank() {
			return ordered[i].Severity.Rank() > ordered[j].Severity.Rank()
		}
		return ordered[i].Kind < ordered[j].Kind
	})

	alerts := make([]string, 0, len(ordered))
	for _, sig := range ordered {
		alerts = append(alerts, sig.Alert())
	}
	return alerts
}

// hazardVocabulary lists the words that would betray a summary talking
// about a hazard the analysis never raised. Matching is per word, so
// "windows" does not trip the wind entry.
var hazardVocabulary = map[domain.RiskKind][]string{
	domain.RiskStorm: {"storm", "storms", "thunderstorm", "thunderstorms", "typhoon", "typhoons", "lightning"},
	domain.RiskFlood: {"flood", "floods", "flooding", "inundation"},
	domain.RiskHeat:  {"heat", "heatwave", "heatstroke"},
	domain.RiskWind:  {"wind", "winds", "gust", "gusts", "gale", "gales"},
}

// summaryConsistent cross-checks a generated summary against the
// structured output: the majority of recommendations must be mentioned,
// and no hazard vocabulary may appear for kinds absent from the signals.
func summaryConsistent(summary string, recs []domain.Recommendation, signals []domain.RiskSignal) bool {
	words := tokenize(summary)

	mentioned := 0
	for _, rec := range recs {
		if titleMentioned(rec.Title, words) {
			mentioned++
		}
	}
	if mentioned*2 <= len(recs) {
		return false
	}

	present := make(map[domain.RiskKind]bool, len(signals))
	for _, sig := range signals {
		present[sig.Kind] = true
	}
	for kind, vocabulary := range hazardVocabulary {
		if present[kind] {
			continue
		}
		for _, word := range vocabulary {
			if words[word] {
				return false
			}
		}
	}
	return true
}

func titleMentioned(title string, summaryWords map[string]bool) bool {
	for word := range tokenize(title) {
		if len(word) >= 4 && summaryWords[word] {
			return true
		}
	}
	return false
}

func tokenize(text string) map[string]bool {
	words := make(map[string]bool)
	for _, field := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		words[field] = true
	}
	return words
}
