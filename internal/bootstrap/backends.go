package bootstrap

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kirillkom/scc-caselaw-rag/internal/config"
	"github.com/kirillkom/scc-caselaw-rag/internal/core/ports"
	"github.com/kirillkom/scc-caselaw-rag/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/scc-caselaw-rag/internal/infrastructure/storage/s3"
	"github.com/kirillkom/scc-caselaw-rag/internal/infrastructure/vector/memory"
	"github.com/kirillkom/scc-caselaw-rag/internal/infrastructure/vector/pgvector"
	"github.com/kirillkom/scc-caselaw-rag/internal/infrastructure/vector/qdrant"
)

func snapshotStore(ctx context.Context, cfg config.Config) (ports.SnapshotStore, error) {
	switch cfg.SnapshotStore {
	case "", "local":
		store, err := localfs.New(cfg.SnapshotPath)
		if err != nil {
			return nil, fmt.Errorf("init local snapshot store: %w", err)
		}
		return store, nil
	case "s3":
		store, err := s3.New(ctx, s3.Config{
			Bucket:    cfg.S3Bucket,
			Prefix:    cfg.S3Prefix,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
		if err != nil {
			return nil, fmt.Errorf("init s3 snapshot store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown snapshot store %q", cfg.SnapshotStore)
	}
}

type vectorBackend struct {
	writer ports.IndexWriter
	opener ports.IndexOpener
}

// newVectorBackend picks the index implementation. db is required for pgvector.
func newVectorBackend(ctx context.Context, cfg config.Config, store ports.SnapshotStore, db *sql.DB) (vectorBackend, error) {
	switch cfg.VectorBackend {
	case "", "memory":
		backend := memory.New(store)
		return vectorBackend{writer: backend, opener: backend.Opener()}, nil
	case "qdrant":
		backend := qdrant.New(cfg.QdrantURL, cfg.QdrantCollectionPrefix)
		return vectorBackend{writer: backend, opener: backend.Opener()}, nil
	case "pgvector":
		if db == nil {
			return vectorBackend{}, fmt.Errorf("vector backend pgvector requires POSTGRES_DSN")
		}
		backend := pgvector.New(db)
		if err := backend.EnsureSchema(ctx); err != nil {
			return vectorBackend{}, fmt.Errorf("ensure pgvector schema: %w", err)
		}
		return vectorBackend{writer: backend, opener: backend.Opener()}, nil
	default:
		return vectorBackend{}, fmt.Errorf("unknown vector backend %q", cfg.VectorBackend)
	}
}
