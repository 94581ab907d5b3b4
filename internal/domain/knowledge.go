package domain

import (
	"context"
	"time"

	"github.com/pgvector/pgvector-go"
)

// KnowledgePassage is a retrieved best-practice snippet used to ground
// one synthesis call. Ephemeral, never persisted back.
type KnowledgePassage struct {
	Text           string  `json:"text"`
	RelevanceScore float64 `json:"relevance_score"`
	SourceTag      string  `json:"source_tag"`
}

// KnowledgeDocument is a stored best-practice passage. ID is a stable
// content hash so re-seeding the same corpus is idempotent.
type KnowledgeDocument struct {
	ID        string
	Category  string
	Audience  string
	SourceTag string
	Text      string
	Embedding pgvector.Vector
	CreatedAt time.Time
}

// KnowledgeStats describes the similarity index for status reporting.
type KnowledgeStats struct {
	TotalDocuments       int            `json:"total_documents"`
	VectorDimension      int            `json:"vector_dimension"`
	CategoryDistribution map[string]int `json:"category_distribution"`
	CollectionName       string         `json:"collection_name"`
}

// KnowledgeStore defines persistence and similarity search over
// best-practice documents.
type KnowledgeStore interface {
	// Search returns up to k passages by descending relevance.
	Search(ctx context.Context, embedding []float32, k int) ([]KnowledgePassage, error)

	// BulkInsert stores documents, skipping IDs already present.
	// Returns the number of rows written.
	BulkInsert(ctx context.Context, docs []KnowledgeDocument) (int, error)

	// Stats reports index size and composition.
	Stats(ctx context.Context) (*KnowledgeStats, error)

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error
}

// VectorEncoder produces embeddings for retrieval queries and stored
// documents.
type VectorEncoder interface {
	Encode(ctx context.Context, texts []string) ([][]float32, error)
	Version() string
}

// TransactionManager defines the interface for handling database transactions.
type TransactionManager interface {
	// RunInTx executes the given function within a transaction.
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
