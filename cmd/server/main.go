package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/dreiseu/ai-weather-insights-agent/internal/adapter/httpapi"
	"github.com/dreiseu/ai-weather-insights-agent/internal/di"
	"github.com/dreiseu/ai-weather-insights-agent/internal/infra"
	"github.com/dreiseu/ai-weather-insights-agent/internal/infra/config"
	"github.com/dreiseu/ai-weather-insights-agent/internal/infra/logger"
	"github.com/dreiseu/ai-weather-insights-agent/internal/infra/otel"
)

func main() {
	// 1. Load Config
	_ = godotenv.Load()
	cfg := config.Load()

	// 2. Initialize Telemetry & Logger
	otelEnabled := cfg.OTLPEndpoint != ""
	if otelEnabled {
		shutdown, err := otel.InitProvider(context.Background(), otel.Config{
			ServiceName: "weather-insights",
			Environment: cfg.Env,
			Endpoint:    cfg.OTLPEndpoint,
		})
		if err != nil {
			slog.Error("failed to initialize telemetry", "error", err)
			os.Exit(1)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(ctx)
		}()
	}
	log := logger.NewWithOTel(otelEnabled)
	slog.SetDefault(log)

	// 3. Initialize DB. The knowledge store is optional: without it the
	// pipeline still produces insights, just without grounded passages.
	var dbPool *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		pool, err := infra.NewPostgresPool(context.Background(), cfg.DatabaseURL)
		if err != nil {
			log.Error("failed to connect to db", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		dbPool = pool
	}

	// 4. Wire Components
	components, err := di.NewComponents(cfg, dbPool, log)
	if err != nil {
		log.Error("failed to wire components", "error", err)
		os.Exit(1)
	}

	// 5. Start Refresher
	components.Refresher.Start()
	defer components.Refresher.Stop()

	// 6. HTTP Handler & Server
	handler := httpapi.NewHandler(
		components.Orchestrator,
		components.Batch,
		components.Provider,
		components.Generator,
		components.Store,
	)
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: httpapi.NewServer(handler, dbPool),
	}

	go func() {
		log.Info("starting server", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server stopped unexpectedly", "error", err)
			os.Exit(1)
		}
	}()

	// 7. Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info("shutting down server")
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}
