package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dreiseu/ai-weather-insights-agent/internal/adapter/repository"
	"github.com/dreiseu/ai-weather-insights-agent/internal/di"
	"github.com/dreiseu/ai-weather-insights-agent/internal/infra"
	"github.com/dreiseu/ai-weather-insights-agent/internal/infra/config"
	"github.com/dreiseu/ai-weather-insights-agent/internal/infra/logger"
	"github.com/dreiseu/ai-weather-insights-agent/internal/seed"
	"github.com/dreiseu/ai-weather-insights-agent/internal/usecase"
)

var seedFile string

var rootCmd = &cobra.Command{
	Use:   "kbctl",
	Short: "Manage the weather knowledge base",
	Long: `kbctl administers the pgvector-backed knowledge base used to ground
generated insights.

  kbctl init    # create extension, table, and vector index
  kbctl seed    # embed and load the default best-practice corpus
  kbctl stats   # print document counts per category

Configuration comes from the same environment variables as the server
(DATABASE_URL, KNOWLEDGE_TABLE, OLLAMA_URL, EMBEDDING_MODEL, ...).`,
	SilenceUsage: true,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the knowledge table and vector index",
	RunE:  runInit,
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Embed and load best-practice documents",
	Long: `Load the embedded default corpus, or a JSON file containing an array
of {category, audience, source_tag, text} documents. Passages are
content-addressed, so re-running the same corpus inserts nothing new.`,
	RunE: runSeed,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print knowledge base statistics",
	RunE:  runStats,
}

func init() {
	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "", "JSON document file (defaults to the embedded corpus)")
	rootCmd.AddCommand(initCmd, seedCmd, statsCmd)
}

func main() {
	_ = godotenv.Load()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	return cfg, nil
}

func runInit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Plain connection: the shared pool registers pgvector types on
	// connect, which fails before the extension exists.
	conn, err := pgx.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer conn.Close(ctx)

	table := pgx.Identifier{cfg.KnowledgeTable}.Sanitize()
	index := pgx.Identifier{cfg.KnowledgeTable + "_embedding_idx"}.Sanitize()

	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id         TEXT PRIMARY KEY,
			category   TEXT NOT NULL,
			audience   TEXT NOT NULL,
			source_tag TEXT NOT NULL,
			text       TEXT NOT NULL,
			embedding  vector(%d) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, table, cfg.EmbeddingDim),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING hnsw (embedding vector_cosine_ops)`, index, table),
	}
	for _, stmt := range statements {
		if _, err := conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to run init ddl: %w", err)
		}
	}

	fmt.Printf("initialized %s (vector dimension %d)\n", cfg.KnowledgeTable, cfg.EmbeddingDim)
	return nil
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logger.New()
	slog.SetDefault(log)

	var docs []usecase.KnowledgeDocumentInput
	if seedFile != "" {
		data, err := os.ReadFile(seedFile)
		if err != nil {
			return fmt.Errorf("failed to read document file: %w", err)
		}
		if err := json.Unmarshal(data, &docs); err != nil {
			return fmt.Errorf("failed to parse document file: %w", err)
		}
	} else {
		docs = seed.DefaultCorpus()
	}
	if len(docs) == 0 {
		return fmt.Errorf("no documents to ingest")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := infra.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	components, err := di.NewComponents(cfg, pool, log)
	if err != nil {
		return err
	}

	report, err := components.Ingestor.Execute(ctx, docs)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	fmt.Printf("documents: %d\npassages:  %d\ninserted:  %d\nskipped:   %d\n",
		report.DocumentsIn, report.Passages, report.Inserted, report.Skipped)
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := infra.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	store := repository.NewKnowledgeRepository(pool, cfg.KnowledgeTable, cfg.EmbeddingDim)
	stats, err := store.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to read stats: %w", err)
	}

	fmt.Printf("collection: %s\ndocuments:  %d\ndimension:  %d\n",
		stats.CollectionName, stats.TotalDocuments, stats.VectorDimension)
	if len(stats.CategoryDistribution) > 0 {
		categories := make([]string, 0, len(stats.CategoryDistribution))
		for category := range stats.CategoryDistribution {
			categories = append(categories, category)
		}
		sort.Strings(categories)
		fmt.Println("categories:")
		for _, category := range categories {
			fmt.Printf("  %-10s %d\n", category, stats.CategoryDistribution[category])
		}
	}
	return nil
}
