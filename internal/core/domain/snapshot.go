package domain

import "time"

const (
	BackendQdrant   = "qdrant"
	BackendPGVector = "pgvector"
	BackendMemory   = "memory"
)

// SnapshotManifest describes one read-only index build. EmbedIdentity is the
// "<provider>/<model>" of the embedder that produced its vectors.
type SnapshotManifest struct {
	Version       string    `json:"version"`
	EmbedIdentity string    `json:"embed_identity"`
	Dimension     int       `json:"dimension"`
	Backend       string    `json:"backend"`
	Location      string    `json:"location"`
	CaseCount     int       `json:"case_count"`
	ChunkCount    int       `json:"chunk_count"`
	CreatedAt     time.Time `json:"created_at"`
}

type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthUnhealthy HealthStatus = "unhealthy"
)

type HealthReport struct {
	Status   HealthStatus      `json:"status"`
	Snapshot string            `json:"snapshot,omitempty"`
	Checks   map[string]string `json:"checks"`
}

func (r HealthReport) Healthy() bool {
	return r.Status == HealthHealthy
}
