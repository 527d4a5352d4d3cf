package pgvector

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/kirillkom/scc-caselaw-rag/internal/core/domain"
	"github.com/kirillkom/scc-caselaw-rag/internal/core/ports"
	"github.com/kirillkom/scc-caselaw-rag/internal/infrastructure/repository/postgres"
)

// Store keeps every snapshot in one case_chunks table, partitioned by
// snapshot_version. The manifest location is the version itself.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Backend() string {
	return domain.BackendPGVector
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101802)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS case_chunks (
	snapshot_version TEXT NOT NULL,
	case_number TEXT NOT NULL,
	chunk_offset INT NOT NULL,
	title TEXT NOT NULL,
	decision_date DATE,
	citation_text TEXT NOT NULL DEFAULT '',
	text TEXT NOT NULL,
	embedding vector NOT NULL,
	PRIMARY KEY (snapshot_version, case_number, chunk_offset)
);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// Prepare clears rows left over from an interrupted build of the same version.
func (s *Store) Prepare(ctx context.Context, version string, _ int) (string, error) {
	if err := s.EnsureSchema(ctx); err != nil {
		return "", err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM case_chunks WHERE snapshot_version = $1`, version); err != nil {
		return "", fmt.Errorf("clear snapshot %s: %w", version, err)
	}
	return version, nil
}

func (s *Store) Write(ctx context.Context, version string, chunks []domain.IndexedChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin write tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, chunk := range chunks {
		if len(chunk.Embedding) == 0 {
			return fmt.Errorf("chunk %s/%d has no embedding", chunk.CaseNumber, chunk.Offset)
		}
		var date sql.NullTime
		if !chunk.Case.Date.IsZero() {
			date = sql.NullTime{Time: chunk.Case.Date.Time, Valid: true}
		}
		_, err := tx.ExecContext(ctx, `
INSERT INTO case_chunks (snapshot_version, case_number, chunk_offset, title, decision_date, citation_text, text, embedding)
VALUES (`+postgres.Placeholders(1, 7)+`, $8::vector)
ON CONFLICT (snapshot_version, case_number, chunk_offset) DO UPDATE
SET text = EXCLUDED.text, embedding = EXCLUDED.embedding
`, version, chunk.CaseNumber, chunk.Offset, chunk.Case.Title, date, chunk.Case.CitationText, chunk.Text, FormatVector(chunk.Embedding))
		if err != nil {
			return fmt.Errorf("insert chunk %s/%d: %w", chunk.CaseNumber, chunk.Offset, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit write tx: %w", err)
	}
	return nil
}

func (s *Store) Open(version string) *Index {
	return &Index{db: s.db, version: version}
}

func (s *Store) Opener() ports.IndexOpener {
	return func(ctx context.Context, manifest domain.SnapshotManifest) (ports.VectorIndex, error) {
		index := s.Open(manifest.Location)
		if _, err := index.Count(ctx); err != nil {
			return nil, err
		}
		return index, nil
	}
}

// Index is a read-only view over one snapshot version.
type Index struct {
	db      *sql.DB
	version string
}

func (i *Index) Search(ctx context.Context, queryVector []float32, limit int) ([]domain.RetrievedChunk, error) {
	rows, err := i.db.QueryContext(ctx, `
SELECT case_number, chunk_offset, title, decision_date, citation_text, text,
	1 - (embedding <=> $1::vector) AS score
FROM case_chunks
WHERE snapshot_version = $2
ORDER BY embedding <=> $1::vector, case_number, chunk_offset
LIMIT $3
`, FormatVector(queryVector), i.version, limit)
	if err != nil {
		return nil, fmt.Errorf("pgvector search: %w", err)
	}
	defer rows.Close()

	out := make([]domain.RetrievedChunk, 0, limit)
	for rows.Next() {
		var (
			item domain.RetrievedChunk
			date sql.NullTime
		)
		if err := rows.Scan(&item.CaseNumber, &item.Offset, &item.Case.Title, &date, &item.Case.CitationText, &item.Text, &item.Score); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		item.Case.CaseNumber = item.CaseNumber
		if date.Valid {
			item.Case.Date = domain.NewDate(date.Time.Year(), date.Time.Month(), date.Time.Day())
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}
	return out, nil
}

func (i *Index) Count(ctx context.Context) (int, error) {
	var n int
	if err := i.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM case_chunks WHERE snapshot_version = $1`, i.version).Scan(&n); err != nil {
		return 0, fmt.Errorf("pgvector count: %w", err)
	}
	return n, nil
}

// FormatVector renders a vector literal for a ::vector cast.
func FormatVector(embedding []float32) string {
	if len(embedding) == 0 {
		return "[]"
	}
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range embedding {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(v), 'f', 6, 32))
	}
	b.WriteByte(']')
	return b.String()
}
