package repository

import (
	"context"
	"fmt"

	"github.com/dreiseu/ai-weather-insights-agent/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

type knowledgeRepository struct {
	pool      *pgxpool.Pool
	table     string
	tableSQL  string // quoted identifier for query interpolation
	dimension int
}

// NewKnowledgeRepository creates a KnowledgeStore backed by a pgvector table.
// The table name comes from configuration, never from request input.
func NewKnowledgeRepository(pool *pgxpool.Pool, table string, dimension int) domain.KnowledgeStore {
	return &knowledgeRepository{
		pool:      pool,
		table:     table,
		tableSQL:  pgx.Identifier{table}.Sanitize(),
		dimension: dimension,
	}
}

type dbExecutor interface {
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func (r *knowledgeRepository) getExecutor(ctx context.Context) dbExecutor {
	tx := ExtractTx(ctx)
	if tx != nil {
		return tx
	}
	return r.pool
}

func (r *knowledgeRepository) Search(ctx context.Context, embedding []float32, k int) ([]domain.KnowledgePassage, error) {
	if k <= 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`
		SELECT text, source_tag, 1 - (embedding <=> $1) AS relevance
		FROM %s
		ORDER BY embedding <=> $1
		LIMIT $2
	`, r.tableSQL)

	rows, err := r.getExecutor(ctx).Query(ctx, query, pgvector.NewVector(embedding), k)
	if err != nil {
		return nil, fmt.Errorf("failed to search knowledge documents: %w", err)
	}
	defer rows.Close()

	var passages []domain.KnowledgePassage
	for rows.Next() {
		var p domain.KnowledgePassage
		if err := rows.Scan(&p.Text, &p.SourceTag, &p.RelevanceScore); err != nil {
			return nil, fmt.Errorf("failed to scan passage: %w", err)
		}
		passages = append(passages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return passages, nil
}

func (r *knowledgeRepository) BulkInsert(ctx context.Context, docs []domain.KnowledgeDocument) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}

	existing, err := r.existingIDs(ctx, docs)
	if err != nil {
		return 0, err
	}

	var rows [][]interface{}
	for _, doc := range docs {
		if existing[doc.ID] {
			continue
		}
		rows = append(rows, []interface{}{
			doc.ID,
			doc.Category,
			doc.Audience,
			doc.SourceTag,
			doc.Text,
			doc.Embedding,
			doc.CreatedAt,
		})
	}
	if len(rows) == 0 {
		return 0, nil
	}

	inserted, err := r.getExecutor(ctx).CopyFrom(
		ctx,
		pgx.Identifier{r.table},
		[]string{"id", "category", "audience", "source_tag", "text", "embedding", "created_at"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to bulk insert knowledge documents: %w", err)
	}

	return int(inserted), nil
}

// existingIDs returns the subset of document IDs already stored, so that
// re-seeding the same corpus stays idempotent.
func (r *knowledgeRepository) existingIDs(ctx context.Context, docs []domain.KnowledgeDocument) (map[string]bool, error) {
	ids := make([]string, len(docs))
	for i, doc := range docs {
		ids[i] = doc.ID
	}

	query := fmt.Sprintf(`SELECT id FROM %s WHERE id = ANY($1)`, r.tableSQL)
	rows, err := r.getExecutor(ctx).Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query existing document ids: %w", err)
	}
	defer rows.Close()

	existing := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan document id: %w", err)
		}
		existing[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return existing, nil
}

func (r *knowledgeRepository) Stats(ctx context.Context) (*domain.KnowledgeStats, error) {
	exec := r.getExecutor(ctx)

	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, r.tableSQL)
	if err := exec.QueryRow(ctx, countQuery).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count knowledge documents: %w", err)
	}

	distQuery := fmt.Sprintf(`SELECT category, COUNT(*) FROM %s GROUP BY category`, r.tableSQL)
	rows, err := exec.Query(ctx, distQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query category distribution: %w", err)
	}
	defer rows.Close()

	distribution := make(map[string]int)
	for rows.Next() {
		var category string
		var count int
		if err := rows.Scan(&category, &count); err != nil {
			return nil, fmt.Errorf("failed to scan category row: %w", err)
		}
		distribution[category] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return &domain.KnowledgeStats{
		TotalDocuments:       total,
		VectorDimension:      r.dimension,
		CategoryDistribution: distribution,
		CollectionName:       r.table,
	}, nil
}

func (r *knowledgeRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
