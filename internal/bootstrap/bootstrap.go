package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/kirillkom/scc-caselaw-rag/internal/config"
	"github.com/kirillkom/scc-caselaw-rag/internal/core/domain"
	"github.com/kirillkom/scc-caselaw-rag/internal/core/ports"
	"github.com/kirillkom/scc-caselaw-rag/internal/core/usecase"
	"github.com/kirillkom/scc-caselaw-rag/internal/infrastructure/chunking"
	"github.com/kirillkom/scc-caselaw-rag/internal/infrastructure/extractor/html"
	"github.com/kirillkom/scc-caselaw-rag/internal/infrastructure/extractor/pdf"
	"github.com/kirillkom/scc-caselaw-rag/internal/infrastructure/extractor/plaintext"
	"github.com/kirillkom/scc-caselaw-rag/internal/infrastructure/queue/nats"
	"github.com/kirillkom/scc-caselaw-rag/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/scc-caselaw-rag/internal/infrastructure/resilience"
	"github.com/kirillkom/scc-caselaw-rag/internal/observability/metrics"
)

type App struct {
	Config  config.Config
	Service string

	Engine    *usecase.QueryEngine
	Health    *usecase.HealthService
	Cases     *usecase.CaseService
	Snapshots *usecase.SnapshotService
	Builder   *usecase.IndexBuilder
	// Notifier is nil when NATS_URL is unset.
	Notifier ports.SnapshotNotifier

	Metrics        *metrics.HTTPServerMetrics
	IndexerMetrics *metrics.IndexerMetrics

	closeFns []func()
}

func New(ctx context.Context, cfg config.Config, service string) (_ *App, err error) {
	app := &App{
		Config:         cfg,
		Service:        service,
		Metrics:        metrics.NewHTTPServerMetrics(service),
		IndexerMetrics: metrics.NewIndexerMetrics(service),
	}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	var (
		catalog ports.CaseCatalog
		db      *sql.DB
	)
	if cfg.PostgresDSN != "" {
		db, err = postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		app.closeFns = append(app.closeFns, func() { _ = db.Close() })
		repo := postgres.NewCaseRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		catalog = repo
	}

	store, err := snapshotStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	backend, err := newVectorBackend(ctx, cfg, store, db)
	if err != nil {
		return nil, err
	}

	p := &providers{cfg: cfg}
	app.closeFns = append(app.closeFns, p.close)
	rawEmbedder, err := p.embedder(ctx)
	if err != nil {
		return nil, err
	}
	rawGenerator, err := p.generator(ctx)
	if err != nil {
		return nil, err
	}
	embedder, generator := guard(cfg, rawEmbedder, rawGenerator, app.Metrics.UpstreamObserver(service))

	if cfg.NATSURL != "" {
		notifier, err := nats.New(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			Name:               service,
			ResilienceExecutor: resilience.NewExecutor(resilienceConfig(cfg)),
		})
		if err != nil {
			return nil, fmt.Errorf("init snapshot notifier: %w", err)
		}
		app.closeFns = append(app.closeFns, notifier.Close)
		app.Notifier = notifier
	}

	active := usecase.NewActiveIndex()
	app.Snapshots = usecase.NewSnapshotService(store, backend.opener, embedder.Identity(), active)
	app.Snapshots.OnActivate(func(m domain.SnapshotManifest) {
		app.Metrics.RecordSnapshot(service, m)
	})

	app.Engine = usecase.NewQueryEngine(usecase.NewRetriever(embedder, active), generator, catalog, usecase.EngineConfig{
		DefaultTopK:     cfg.RAGTopK,
		MaxTopK:         cfg.RAGMaxTopK,
		ContextMaxChars: cfg.RAGContextMaxChars,
		NoContextAnswer: cfg.RAGNoContextAnswer,
	})
	app.Health = usecase.NewHealthService(active, embedder, generator)
	app.Cases = usecase.NewCaseService(catalog)

	extractors := map[string]ports.TextExtractor{
		".txt":  plaintext.NewExtractor(),
		".html": html.NewExtractor(),
		".htm":  html.NewExtractor(),
		".pdf":  pdf.NewExtractor(),
	}
	app.Builder = usecase.NewIndexBuilder(
		extractors,
		chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap),
		embedder,
		backend.writer,
		catalog,
		app.Snapshots,
		app.Notifier,
		app.IndexerMetrics,
		cfg.EmbedBatchSize,
	)
	return app, nil
}

// QueryEngine returns the engine instrumented for one serving surface.
func (a *App) QueryEngine(surface string) ports.QueryEngine {
	return metrics.InstrumentEngine(a.Engine, a.Metrics, a.Service, surface)
}

// ActivateSnapshot loads the current snapshot. A snapshot built with a
// different embedding model is fatal; a missing one only leaves the engine
// unhealthy until an index is built.
func (a *App) ActivateSnapshot(ctx context.Context) error {
	err := a.Snapshots.ActivateCurrent(ctx)
	switch {
	case err == nil:
		return nil
	case domain.IsKind(err, domain.ErrSnapshotMismatch):
		return err
	default:
		slog.Warn("snapshot_not_activated", "error", err)
		return nil
	}
}

// WatchSnapshots swaps in snapshots announced over NATS until ctx is done.
func (a *App) WatchSnapshots(ctx context.Context) {
	if a.Notifier == nil {
		return
	}
	go func() {
		if err := a.Snapshots.Watch(ctx, a.Notifier); err != nil {
			slog.Error("snapshot_watch_stopped", "error", err)
		}
	}()
}

func (a *App) Close() {
	for i := len(a.closeFns) - 1; i >= 0; i-- {
		a.closeFns[i]()
	}
	a.closeFns = nil
}
