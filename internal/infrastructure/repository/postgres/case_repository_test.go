package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/scc-caselaw-rag/internal/core/domain"
)

func newRepoWithMock(t *testing.T) (*CaseRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return NewCaseRepository(db), mock, func() { _ = db.Close() }
}

func TestGetByNumberReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT case_number, title, decision_date, citation_text").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByNumber(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrCaseNotFound) {
		t.Fatalf("expected ErrCaseNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetByNumberScansNullDate(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT case_number, title, decision_date, citation_text").
		WithArgs("36068").
		WillReturnRows(sqlmock.NewRows([]string{"case_number", "title", "decision_date", "citation_text"}).
			AddRow("36068", "R. v. Jordan", nil, "2016 SCC 27"))

	c, err := repo.GetByNumber(context.Background(), "36068")
	if err != nil {
		t.Fatalf("GetByNumber() error = %v", err)
	}
	if c.Title != "R. v. Jordan" || !c.Date.IsZero() || c.CitationText != "2016 SCC 27" {
		t.Fatalf("unexpected case %#v", c)
	}
}

func TestGetManyUsesInList(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery(`WHERE case_number IN \(\$1, \$2\)`).
		WithArgs("31892", "36068").
		WillReturnRows(sqlmock.NewRows([]string{"case_number", "title", "decision_date", "citation_text"}).
			AddRow("31892", "R. v. Grant", time.Date(2009, 7, 17, 0, 0, 0, 0, time.UTC), "2009 SCC 32"))

	got, err := repo.GetMany(context.Background(), []string{"31892", "36068"})
	if err != nil {
		t.Fatalf("GetMany() error = %v", err)
	}
	if len(got) != 1 || got["31892"].Date.String() != "2009-07-17" {
		t.Fatalf("unexpected cases %#v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpsertRunsInTransaction(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO cases").
		WithArgs("31892", "R. v. Grant", sqlmock.AnyArg(), "2009 SCC 32", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO cases").
		WithArgs("36068", "R. v. Jordan", sqlmock.AnyArg(), "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Upsert(context.Background(), []domain.Case{
		{CaseNumber: "31892", Title: "R. v. Grant", Date: domain.NewDate(2009, time.July, 17), CitationText: "2009 SCC 32"},
		{CaseNumber: "36068", Title: "R. v. Jordan"},
	})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestEnsureSchemaTakesAdvisoryLock(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").WithArgs(int64(2026101801)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS cases").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	if err := repo.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPlaceholders(t *testing.T) {
	if got := Placeholders(2, 3); got != "$2, $3, $4" {
		t.Fatalf("Placeholders() = %q", got)
	}
}
