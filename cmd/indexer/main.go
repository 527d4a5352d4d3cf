package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/kirillkom/scc-caselaw-rag/internal/bootstrap"
	"github.com/kirillkom/scc-caselaw-rag/internal/config"
	"github.com/kirillkom/scc-caselaw-rag/internal/observability/logging"
)

const serviceName = "caselaw-indexer"

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logging.NewJSONLogger(serviceName, cfg.LogLevel))

	sourceDir := flag.String("source", cfg.SourceDir, "directory with <case>.json metadata and case sources")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, serviceName)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	metricsServer := &http.Server{
		Addr:              ":" + cfg.IndexerMetricsPort,
		Handler:           app.IndexerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("indexer_metrics_listening", "port", cfg.IndexerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("indexer_metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	started := time.Now()
	manifest, err := app.Builder.Build(ctx, *sourceDir)
	app.IndexerMetrics.RecordBuild(manifest, time.Since(started), err)
	if err != nil {
		slog.Error("snapshot_build_failed", "source", *sourceDir, "error", err)
		stop()
		app.Close()
		os.Exit(1)
	}
	slog.Info("indexer_done", "version", manifest.Version, "duration_ms", time.Since(started).Milliseconds())
}
