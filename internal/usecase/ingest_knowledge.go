package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"
	"golang.org/x/time/rate"

	"github.com/dreiseu/ai-weather-insights-agent/internal/domain"
)

// KnowledgeDocumentInput is one raw best-practice document handed to
// ingestion, before splitting and embedding.
type KnowledgeDocumentInput struct {
	Category  string `json:"category"`
	Audience  string `json:"audience"`
	SourceTag string `json:"source_tag"`
	Text      string `json:"text"`
}

// IngestReport summarizes one ingest run. Skipped counts passages whose
// content ID already existed in the store.
type IngestReport struct {
	DocumentsIn int `json:"documents_in"`
	Passages    int `json:"passages"`
	Inserted    int `json:"inserted"`
	Skipped     int `json:"skipped"`
}

// KnowledgeIngestor splits, embeds, and stores best-practice documents.
type KnowledgeIngestor interface {
	Execute(ctx context.Context, docs []KnowledgeDocumentInput) (*IngestReport, error)
}

type knowledgeIngestor struct {
	encoder   domain.VectorEncoder
	store     domain.KnowledgeStore
	txManager domain.TransactionManager
	idPolicy  domain.ContentIDPolicy
	batchSize int
	limiter   *rate.Limiter
}

// NewKnowledgeIngestor creates the ingest pipeline. batchSize bounds
// one embedding call; embedRate throttles embedding calls per second
// (0 disables throttling).
func NewKnowledgeIngestor(
	encoder domain.VectorEncoder,
	store domain.KnowledgeStore,
	txManager domain.TransactionManager,
	batchSize int,
	embedRate float64,
) KnowledgeIngestor {
	if batchSize < 1 {
		batchSize = 16
	}
	var limiter *rate.Limiter
	if embedRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(embedRate), 1)
	}
	return &knowledgeIngestor{
		encoder:   encoder,
		store:     store,
		txManager: txManager,
		idPolicy:  domain.NewContentIDPolicy(),
		batchSize: batchSize,
		limiter:   limiter,
	}
}

// Execute splits every document into passages, assigns content-hash
// IDs, embeds in rate-limited batches, and bulk-inserts inside one
// transaction. Passages that hash to an ID already present (in the
// input or the store) are skipped, so re-running the same corpus is a
// no-op.
func (u *knowledgeIngestor) Execute(ctx context.Context, docs []KnowledgeDocumentInput) (*IngestReport, error) {
	report := &IngestReport{DocumentsIn: len(docs)}
	if len(docs) == 0 {
		return report, nil
	}

	pending, err := u.preparePassages(docs)
	if err != nil {
		return nil, err
	}
	report.Passages = len(pending)
	if len(pending) == 0 {
		return report, nil
	}

	if err := u.embedAll(ctx, pending); err != nil {
		return nil, err
	}

	err = u.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		inserted, insertErr := u.store.BulkInsert(txCtx, pending)
		if insertErr != nil {
			return insertErr
		}
		report.Inserted = inserted
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store knowledge passages: %w", err)
	}
	report.Skipped = report.Passages - report.Inserted

	slog.Info("knowledge ingest finished",
		slog.Int("documents", report.DocumentsIn),
		slog.Int("passages", report.Passages),
		slog.Int("inserted", report.Inserted),
		slog.Int("skipped", report.Skipped))
	return report, nil
}

func (u *knowledgeIngestor) preparePassages(docs []KnowledgeDocumentInput) ([]domain.KnowledgeDocument, error) {
	now := time.Now()
	seen := make(map[string]struct{})
	var pending []domain.KnowledgeDocument

	for i, doc := range docs {
		sourceTag := strings.TrimSpace(doc.SourceTag)
		if sourceTag == "" {
			return nil, fmt.Errorf("document %d: source_tag is required", i)
		}
		category := strings.TrimSpace(doc.Category)
		if category == "" {
			category = "general"
		}
		audience := NormalizeAudience(doc.Audience)

		for _, passage := range domain.SplitPassages(doc.Text) {
			id := u.idPolicy.Compute(sourceTag, passage)
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			pending = append(pending, domain.KnowledgeDocument{
				ID:        id,
				Category:  category,
				Audience:  audience,
				SourceTag: sourceTag,
				Text:      passage,
				CreatedAt: now,
			})
		}
	}
	return pending, nil
}

func (u *knowledgeIngestor) embedAll(ctx context.Context, pending []domain.KnowledgeDocument) error {
	for start := 0; start < len(pending); start += u.batchSize {
		end := min(start+u.batchSize, len(pending))

		if u.limiter != nil {
			if err := u.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		texts := make([]string, 0, end-start)
		for _, d := range pending[start:end] {
			texts = append(texts, d.Text)
		}
		embeddings, err := u.encoder.Encode(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to embed batch at offset %d: %w", start, err)
		}
		if len(embeddings) != end-start {
			return fmt.Errorf("embedding batch at offset %d returned %d vectors for %d texts", start, len(embeddings), end-start)
		}
		for i, emb := range embeddings {
			pending[start+i].Embedding = pgvector.NewVector(emb)
		}
	}
	return nil
}
