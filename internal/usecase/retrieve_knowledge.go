package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/dreiseu/ai-weather-insights-agent/internal/domain"
	"github.com/dreiseu/ai-weather-insights-agent/internal/infra/metrics"

	"golang.org/x/sync/errgroup"
)

const (
	// rrfK is the reciprocal rank fusion constant, standard starting point.
	rrfK = 60.0

	// retrievalConcurrency bounds per-signal retrievals within one request.
	retrievalConcurrency = 4
)

// KnowledgeRetriever finds best-practice passages grounding one synthesis
// call. Every method fails softly: callers always proceed, with or
// without grounding.
type KnowledgeRetriever interface {
	// ForSignal retrieves passages for a single signal.
	ForSignal(ctx context.Context, signal domain.RiskSignal, audience string) ([]domain.KnowledgePassage, error)

	// ForSignals retrieves passages per signal concurrently. The result
	// is indexed like signals; failed retrievals leave empty slots.
	ForSignals(ctx context.Context, signals []domain.RiskSignal, audience string) [][]domain.KnowledgePassage
}

type knowledgeRetriever struct {
	encoder domain.VectorEncoder
	store   domain.KnowledgeStore
	topK    int
	metrics *metrics.Metrics
}

// NewKnowledgeRetriever wires the retriever. Both encoder and store may
// be nil when the deployment runs without a knowledge base; retrieval
// then always returns empty passages.
func NewKnowledgeRetriever(encoder domain.VectorEncoder, store domain.KnowledgeStore, topK int, m *metrics.Metrics) KnowledgeRetriever {
	if topK < 1 {
		topK = 1
	}
	if topK > 10 {
		topK = 10
	}
	return &knowledgeRetriever{
		encoder: encoder,
		store:   store,
		topK:    topK,
		metrics: m,
	}
}

func (r *knowledgeRetriever) ForSignal(ctx context.Context, signal domain.RiskSignal, audience string) ([]domain.KnowledgePassage, error) {
	if r.encoder == nil || r.store == nil {
		return nil, nil
	}

	profile := ProfileFor(audience)
	queries := []string{
		fmt.Sprintf("%s %s %s", signal.Kind, profile.RetrievalContext, signal.Evidence),
		profile.RetrievalContext,
	}

	embeddings, err := r.encoder.Encode(ctx, queries)
	if err != nil {
		return nil, fmt.Errorf("failed to encode retrieval queries: %w", err)
	}

	lists := make([][]domain.KnowledgePassage, len(embeddings))
	for i, embedding := range embeddings {
		passages, err := r.store.Search(ctx, embedding, r.topK)
		if err != nil {
			return nil, fmt.Errorf("failed to search knowledge store: %w", err)
		}
		lists[i] = passages
	}

	fused := fusePassages(lists, r.topK)
	return fused, nil
}

func (r *knowledgeRetriever) ForSignals(ctx context.Context, signals []domain.RiskSignal, audience string) [][]domain.KnowledgePassage {
	results := make([][]domain.KnowledgePassage, len(signals))
	if len(signals) == 0 || r.encoder == nil || r.store == nil {
		return results
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(retrievalConcurrency)
	for i, signal := range signals {
		g.Go(func() error {
			passages, err := r.ForSignal(gctx, signal, audience)
			if err != nil {
				slog.WarnContext(gctx, "knowledge retrieval failed for signal",
					slog.String("kind", string(signal.Kind)),
					slog.String("audience", audience),
					slog.String("error", err.Error()))
				r.countRetrieval("error")
				return nil
			}
			if len(passages) == 0 {
				r.countRetrieval("empty")
			} else {
				r.countRetrieval("ok")
			}
			results[i] = passages
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (r *knowledgeRetriever) countRetrieval(outcome string) {
	if r.metrics != nil {
		r.metrics.KnowledgeRetrievals.WithLabelValues(outcome).Inc()
	}
}

// fusePassages merges ranked lists with reciprocal rank fusion,
// deduplicating by passage text and keeping the best cosine relevance
// seen for each document.
func fusePassages(lists [][]domain.KnowledgePassage, k int) []domain.KnowledgePassage {
	type fused struct {
		passage  domain.KnowledgePassage
		rrfScore float64
	}
	byText := make(map[string]*fused)

	for _, list := range lists {
		for rank, passage := range list {
			entry, ok := byText[passage.Text]
			if !ok {
				entry = &fused{passage: passage}
				byText[passage.Text] = entry
			}
			if passage.RelevanceScore > entry.passage.RelevanceScore {
				entry.passage.RelevanceScore = passage.RelevanceScore
				entry.passage.SourceTag = passage.SourceTag
			}
			entry.rrfScore += 1.0 / (rrfK + float64(rank+1))
		}
	}

	merged := make([]*fused, 0, len(byText))
	for _, entry := range byText {
		merged = append(merged, entry)
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].rrfScore != merged[j].rrfScore {
			return merged[i].rrfScore > merged[j].rrfScore
		}
		if merged[i].passage.RelevanceScore != merged[j].passage.RelevanceScore {
			return merged[i].passage.RelevanceScore > merged[j].passage.RelevanceScore
		}
		return merged[i].passage.Text < merged[j].passage.Text
	})

	if len(merged) > k {
		merged = merged[:k]
	}
	passages := make([]domain.KnowledgePassage, len(merged))
	for i, entry := range merged {
		passages[i] = entry.passage
	}
	return passages
}
