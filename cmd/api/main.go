package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	httpadapter "github.com/kirillkom/scc-caselaw-rag/internal/adapters/http"
	mcpadapter "github.com/kirillkom/scc-caselaw-rag/internal/adapters/mcp"
	"github.com/kirillkom/scc-caselaw-rag/internal/bootstrap"
	"github.com/kirillkom/scc-caselaw-rag/internal/config"
	"github.com/kirillkom/scc-caselaw-rag/internal/observability/logging"
)

const serviceName = "caselaw-api"

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logging.NewJSONLogger(serviceName, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, serviceName)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	if err := app.ActivateSnapshot(ctx); err != nil {
		slog.Error("snapshot_activation_failed", "error", err)
		os.Exit(1)
	}
	app.WatchSnapshots(ctx)

	opts := []httpadapter.Option{httpadapter.WithMetrics(app.Metrics)}
	if cfg.MCPEnabled {
		mcpServer := mcpadapter.New(app.QueryEngine("mcp"), app.Cases, cfg.RAGTopK)
		opts = append(opts, httpadapter.WithMCP(mcpServer.HTTPHandler()))
	}
	router := httpadapter.NewRouter(cfg, app.QueryEngine("http"), app.Health, app.Cases, opts...).Handler()

	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.GenTimeout*time.Duration(max(cfg.RetryMaxAttempts, 1)) + 30*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("api_listening", "port", cfg.APIPort, "vector_backend", cfg.VectorBackend, "mcp", cfg.MCPEnabled)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("api_shutdown_failed", "error", err)
	}
}
