package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/scc-caselaw-rag/internal/core/domain"
)

type CaseRepository struct {
	db *sql.DB
}

func NewCaseRepository(db *sql.DB) *CaseRepository {
	return &CaseRepository{db: db}
}

func (r *CaseRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/indexer startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101801)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS cases (
	case_number TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	decision_date DATE,
	citation_text TEXT NOT NULL DEFAULT '',
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_cases_decision_date ON cases(decision_date DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *CaseRepository) Upsert(ctx context.Context, cases []domain.Case) error {
	if len(cases) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC()
	for _, c := range cases {
		_, err := tx.ExecContext(ctx, `
INSERT INTO cases (case_number, title, decision_date, citation_text, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (case_number) DO UPDATE
SET title = EXCLUDED.title, decision_date = EXCLUDED.decision_date, citation_text = EXCLUDED.citation_text, updated_at = EXCLUDED.updated_at
`, c.CaseNumber, c.Title, nullDate(c.Date), c.CitationText, now)
		if err != nil {
			return fmt.Errorf("upsert case %s: %w", c.CaseNumber, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert tx: %w", err)
	}
	return nil
}

func (r *CaseRepository) GetByNumber(ctx context.Context, caseNumber string) (*domain.Case, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT case_number, title, decision_date, citation_text
FROM cases
WHERE case_number = $1
`, caseNumber)

	c, err := scanCase(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrCaseNotFound, "get case", fmt.Errorf("case_number=%s", caseNumber))
		}
		return nil, fmt.Errorf("scan case: %w", err)
	}
	return &c, nil
}

func (r *CaseRepository) GetMany(ctx context.Context, caseNumbers []string) (map[string]domain.Case, error) {
	out := make(map[string]domain.Case, len(caseNumbers))
	if len(caseNumbers) == 0 {
		return out, nil
	}

	args := make([]any, len(caseNumbers))
	for i, n := range caseNumbers {
		args[i] = n
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT case_number, title, decision_date, citation_text
FROM cases
WHERE case_number IN (`+Placeholders(1, len(caseNumbers))+`)
`, args...)
	if err != nil {
		return nil, fmt.Errorf("query cases: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, fmt.Errorf("scan case: %w", err)
		}
		out[c.CaseNumber] = c
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cases: %w", err)
	}
	return out, nil
}

type caseScanner interface {
	Scan(dest ...any) error
}

func scanCase(row caseScanner) (domain.Case, error) {
	var (
		c    domain.Case
		date sql.NullTime
	)
	if err := row.Scan(&c.CaseNumber, &c.Title, &date, &c.CitationText); err != nil {
		return domain.Case{}, err
	}
	if date.Valid {
		c.Date = domain.NewDate(date.Time.Year(), date.Time.Month(), date.Time.Day())
	}
	return c, nil
}

func nullDate(d domain.Date) sql.NullTime {
	if d.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: d.Time, Valid: true}
}
