package repository_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreiseu/ai-weather-insights-agent/internal/adapter/repository"
	"github.com/dreiseu/ai-weather-insights-agent/internal/domain"
)

// recordedQuery captures one SQL statement with its arguments.
type recordedQuery struct {
	sql  string
	args []any
}

type copyCall struct {
	table   pgx.Identifier
	columns []string
	rows    [][]any
}

// fakeTx satisfies pgx.Tx so it can be injected through the transaction
// context, letting tests observe the SQL the repository assembles.
type fakeTx struct {
	queries      []recordedQuery
	queryResults []*fakeRows
	rowResults   []*fakeRow
	copies       []copyCall
}

func (t *fakeTx) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	t.queries = append(t.queries, recordedQuery{sql: sql, args: args})
	if len(t.queryResults) == 0 {
		return &fakeRows{}, nil
	}
	rows := t.queryResults[0]
	t.queryResults = t.queryResults[1:]
	return rows, nil
}

func (t *fakeTx) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	t.queries = append(t.queries, recordedQuery{sql: sql, args: args})
	if len(t.rowResults) == 0 {
		return &fakeRow{}
	}
	row := t.rowResults[0]
	t.rowResults = t.rowResults[1:]
	return row
}

func (t *fakeTx) CopyFrom(_ context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	call := copyCall{table: tableName, columns: columnNames}
	for rowSrc.Next() {
		values, err := rowSrc.Values()
		if err != nil {
			return 0, err
		}
		call.rows = append(call.rows, values)
	}
	t.copies = append(t.copies, call)
	return int64(len(call.rows)), nil
}

func (t *fakeTx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	t.queries = append(t.queries, recordedQuery{sql: sql, args: args})
	return pgconn.CommandTag{}, nil
}

func (t *fakeTx) Begin(context.Context) (pgx.Tx, error)  { return t, nil }
func (t *fakeTx) Commit(context.Context) error           { return nil }
func (t *fakeTx) Rollback(context.Context) error         { return nil }
func (t *fakeTx) Conn() *pgx.Conn                        { return nil }
func (t *fakeTx) LargeObjects() pgx.LargeObjects         { return pgx.LargeObjects{} }
func (t *fakeTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults {
	return nil
}
func (t *fakeTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, nil
}

type fakeRows struct {
	rows [][]any
	idx  int
}

func (r *fakeRows) Next() bool {
	if r.idx < len(r.rows) {
		r.idx++
		return true
	}
	return false
}

func (r *fakeRows) Scan(dest ...any) error {
	for i, d := range dest {
		scanInto(d, r.rows[r.idx-1][i])
	}
	return nil
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return r.rows[r.idx-1], nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

type fakeRow struct {
	values []any
}

func (r *fakeRow) Scan(dest ...any) error {
	for i, d := range dest {
		scanInto(d, r.values[i])
	}
	return nil
}

func scanInto(dest, value any) {
	switch d := dest.(type) {
	case *string:
		*d = value.(string)
	case *int:
		*d = value.(int)
	case *float64:
		*d = value.(float64)
	}
}

func TestKnowledgeRepositorySearch(t *testing.T) {
	tx := &fakeTx{queryResults: []*fakeRows{{rows: [][]any{
		{"cover seedlings before frost", "system-frost-protection", 0.91},
		{"drain standing water early", "pagasa-field-drainage-guide", 0.84},
	}}}}
	repo := repository.NewKnowledgeRepository(nil, "weather_knowledge", 768)
	ctx := repository.InjectTx(context.Background(), tx)

	passages, err := repo.Search(ctx, []float32{0.1, 0.2, 0.3}, 4)
	require.NoError(t, err)
	require.Len(t, passages, 2)

	assert.Equal(t, "cover seedlings before frost", passages[0].Text)
	assert.Equal(t, "system-frost-protection", passages[0].SourceTag)
	assert.InDelta(t, 0.91, passages[0].RelevanceScore, 1e-9)
	assert.Equal(t, "pagasa-field-drainage-guide", passages[1].SourceTag)

	require.Len(t, tx.queries, 1)
	sql := tx.queries[0].sql
	assert.Contains(t, sql, `FROM "weather_knowledge"`)
	assert.Contains(t, sql, "1 - (embedding <=> $1)")
	assert.Contains(t, sql, "ORDER BY embedding <=> $1")
	assert.Contains(t, sql, "LIMIT $2")

	require.Len(t, tx.queries[0].args, 2)
	assert.Equal(t, pgvector.NewVector([]float32{0.1, 0.2, 0.3}), tx.queries[0].args[0])
	assert.Equal(t, 4, tx.queries[0].args[1])
}

func TestKnowledgeRepositorySearchZeroK(t *testing.T) {
	tx := &fakeTx{}
	repo := repository.NewKnowledgeRepository(nil, "weather_knowledge", 768)
	ctx := repository.InjectTx(context.Background(), tx)

	passages, err := repo.Search(ctx, []float32{0.5}, 0)
	require.NoError(t, err)
	assert.Nil(t, passages)
	assert.Empty(t, tx.queries)
}

func TestKnowledgeRepositoryQuotesTableName(t *testing.T) {
	tx := &fakeTx{queryResults: []*fakeRows{{}}}
	repo := repository.NewKnowledgeRepository(nil, `kb"; DROP TABLE users; --`, 768)
	ctx := repository.InjectTx(context.Background(), tx)

	_, err := repo.Search(ctx, []float32{0.5}, 1)
	require.NoError(t, err)

	require.Len(t, tx.queries, 1)
	assert.NotContains(t, tx.queries[0].sql, `kb"; DROP TABLE`)
	assert.Contains(t, tx.queries[0].sql, `"kb""; DROP TABLE users; --"`)
}

func TestKnowledgeRepositoryBulkInsertSkipsExisting(t *testing.T) {
	now := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	docs := []domain.KnowledgeDocument{
		{ID: "aaa", Category: "storm", Audience: "farmers", SourceTag: "s1", Text: "one", CreatedAt: now},
		{ID: "bbb", Category: "flood", Audience: "general", SourceTag: "s2", Text: "two", CreatedAt: now},
		{ID: "ccc", Category: "heat", Audience: "officials", SourceTag: "s3", Text: "three", CreatedAt: now},
	}

	tx := &fakeTx{queryResults: []*fakeRows{{rows: [][]any{{"bbb"}}}}}
	repo := repository.NewKnowledgeRepository(nil, "weather_knowledge", 768)
	ctx := repository.InjectTx(context.Background(), tx)

	inserted, err := repo.BulkInsert(ctx, docs)
	require.NoError(t, err)
	assert.Equal(t, 2, inserted)

	require.Len(t, tx.queries, 1)
	assert.Contains(t, tx.queries[0].sql, "WHERE id = ANY($1)")
	assert.Equal(t, []string{"aaa", "bbb", "ccc"}, tx.queries[0].args[0])

	require.Len(t, tx.copies, 1)
	copied := tx.copies[0]
	assert.Equal(t, pgx.Identifier{"weather_knowledge"}, copied.table)
	assert.Equal(t,
		[]string{"id", "category", "audience", "source_tag", "text", "embedding", "created_at"},
		copied.columns)

	require.Len(t, copied.rows, 2)
	assert.Equal(t, "aaa", copied.rows[0][0])
	assert.Equal(t, "ccc", copied.rows[1][0])
	assert.Equal(t, now, copied.rows[0][6])
}

func TestKnowledgeRepositoryBulkInsertNothingNew(t *testing.T) {
	docs := []domain.KnowledgeDocument{
		{ID: "aaa", SourceTag: "s1", Text: "one"},
	}

	tx := &fakeTx{queryResults: []*fakeRows{{rows: [][]any{{"aaa"}}}}}
	repo := repository.NewKnowledgeRepository(nil, "weather_knowledge", 768)
	ctx := repository.InjectTx(context.Background(), tx)

	inserted, err := repo.BulkInsert(ctx, docs)
	require.NoError(t, err)
	assert.Zero(t, inserted)
	assert.Empty(t, tx.copies)
}

func TestKnowledgeRepositoryBulkInsertEmpty(t *testing.T) {
	tx := &fakeTx{}
	repo := repository.NewKnowledgeRepository(nil, "weather_knowledge", 768)
	ctx := repository.InjectTx(context.Background(), tx)

	inserted, err := repo.BulkInsert(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, inserted)
	assert.Empty(t, tx.queries)
}

func TestKnowledgeRepositoryStats(t *testing.T) {
	tx := &fakeTx{
		rowResults: []*fakeRow{{values: []any{42}}},
		queryResults: []*fakeRows{{rows: [][]any{
			{"storm", 20},
			{"flood", 15},
			{"heat", 7},
		}}},
	}
	repo := repository.NewKnowledgeRepository(nil, "weather_knowledge", 768)
	ctx := repository.InjectTx(context.Background(), tx)

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)

	assert.Equal(t, 42, stats.TotalDocuments)
	assert.Equal(t, 768, stats.VectorDimension)
	assert.Equal(t, "weather_knowledge", stats.CollectionName)
	assert.Equal(t, map[string]int{"storm": 20, "flood": 15, "heat": 7}, stats.CategoryDistribution)

	require.Len(t, tx.queries, 2)
	assert.Contains(t, tx.queries[0].sql, "COUNT(*)")
	assert.Contains(t, tx.queries[1].sql, "GROUP BY category")

	var sqls []string
	for _, q := range tx.queries {
		sqls = append(sqls, q.sql)
	}
	assert.True(t, strings.Contains(sqls[0], `"weather_knowledge"`))
	assert.True(t, strings.Contains(sqls[1], `"weather_knowledge"`))
}
