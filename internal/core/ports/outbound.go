package ports

import (
	"context"
	"io"

	"github.com/kirillkom/scc-caselaw-rag/internal/core/domain"
)

// Embedder builds vectors for case chunks and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	// Identity is "<provider>/<model>". Snapshots are keyed by it.
	Identity() string
}

// Generator creates the final user-facing answer from the question and assembled context.
type Generator interface {
	Generate(ctx context.Context, question, promptContext string) (string, error)
}

// Pinger is implemented by upstream clients that can report reachability without doing real work.
type Pinger interface {
	Ping(ctx context.Context) error
}

// VectorIndex is a read-only nearest-neighbour view over one snapshot.
type VectorIndex interface {
	Search(ctx context.Context, queryVector []float32, limit int) ([]domain.RetrievedChunk, error)
	Count(ctx context.Context) (int, error)
}

// IndexOpener opens the backend-specific index a manifest points at.
type IndexOpener func(ctx context.Context, manifest domain.SnapshotManifest) (VectorIndex, error)

// IndexWriter materializes a new snapshot in one backend.
type IndexWriter interface {
	Backend() string
	Prepare(ctx context.Context, version string, dimension int) (location string, err error)
	Write(ctx context.Context, location string, chunks []domain.IndexedChunk) error
}

// CaseCatalog persists canonical case records.
type CaseCatalog interface {
	GetByNumber(ctx context.Context, caseNumber string) (*domain.Case, error)
	GetMany(ctx context.Context, caseNumbers []string) (map[string]domain.Case, error)
	Upsert(ctx context.Context, cases []domain.Case) error
}

// SnapshotStore holds snapshot manifests and file-backed snapshot data.
type SnapshotStore interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// SnapshotNotifier publishes/consumes snapshot activation events.
type SnapshotNotifier interface {
	PublishSnapshot(ctx context.Context, version string) error
	SubscribeSnapshots(ctx context.Context, handler func(context.Context, string) error) error
}

// TextExtractor extracts plain text from a case source document.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// Chunker splits case text into retrieval-sized passages.
type Chunker interface {
	Split(text string) []string
}
