package ports

import (
	"context"

	"github.com/kirillkom/scc-caselaw-rag/internal/core/domain"
)

// QueryEngine is the inbound contract for answering a question. The returned
// result is always populated; a non-nil error carries the failure kind.
type QueryEngine interface {
	Answer(ctx context.Context, query string, topK int) (domain.QueryResult, error)
}

// HealthChecker reports engine liveness.
type HealthChecker interface {
	Check(ctx context.Context) domain.HealthReport
}

// CaseReader is the inbound read model for case records.
type CaseReader interface {
	GetByNumber(ctx context.Context, caseNumber string) (*domain.Case, error)
}

// IndexBuilder builds and publishes a new snapshot from a directory of case files.
type IndexBuilder interface {
	Build(ctx context.Context, sourceDir string) (domain.SnapshotManifest, error)
}
