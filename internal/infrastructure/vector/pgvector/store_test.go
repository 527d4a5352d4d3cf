package pgvector

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/scc-caselaw-rag/internal/core/domain"
)

func TestFormatVector(t *testing.T) {
	if got := FormatVector([]float32{0.5, -1, 0.25}); got != "[0.500000,-1.000000,0.250000]" {
		t.Fatalf("FormatVector() = %q", got)
	}
	if got := FormatVector(nil); got != "[]" {
		t.Fatalf("FormatVector(nil) = %q", got)
	}
}

func TestSearchScopesToSnapshotVersion(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`FROM case_chunks\s+WHERE snapshot_version = \$2\s+ORDER BY embedding <=> \$1::vector, case_number, chunk_offset`).
		WithArgs("[1.000000,0.000000]", "20261018T120000Z", 3).
		WillReturnRows(sqlmock.NewRows([]string{"case_number", "chunk_offset", "title", "decision_date", "citation_text", "text", "score"}).
			AddRow("36068", 2, "R. v. Jordan", time.Date(2016, 7, 8, 0, 0, 0, 0, time.UTC), "2016 SCC 27", "delay ceiling", 0.91).
			AddRow("31892", 0, "R. v. Grant", nil, "", "detention", 0.5))

	index := New(db).Open("20261018T120000Z")
	got, err := index.Search(context.Background(), []float32{1, 0}, 3)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(got))
	}
	if got[0].Case.CaseNumber != "36068" || got[0].Offset != 2 || got[0].Case.Date.String() != "2016-07-08" || got[0].Score != 0.91 {
		t.Fatalf("unexpected first chunk %#v", got[0])
	}
	if !got[1].Case.Date.IsZero() {
		t.Fatalf("expected unknown date, got %v", got[1].Case.Date)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestWriteInsertsChunksInTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO case_chunks").
		WithArgs("v1", "36068", 0, "R. v. Jordan", sqlmock.AnyArg(), "2016 SCC 27", "delay", "[0.100000,0.200000]").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	chunk := domain.IndexedChunk{
		Chunk: domain.Chunk{CaseNumber: "36068", Text: "delay", Embedding: []float32{0.1, 0.2}},
		Case:  domain.Case{CaseNumber: "36068", Title: "R. v. Jordan", CitationText: "2016 SCC 27", Date: domain.NewDate(2016, time.July, 8)},
	}
	if err := New(db).Write(context.Background(), "v1", []domain.IndexedChunk{chunk}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestWriteRejectsMissingEmbedding(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	chunk := domain.IndexedChunk{Chunk: domain.Chunk{CaseNumber: "1", Text: "x"}}
	if err := New(db).Write(context.Background(), "v1", []domain.IndexedChunk{chunk}); err == nil {
		t.Fatalf("expected missing embedding error")
	}
}

func TestOpenerProbesCount(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM case_chunks`).
		WithArgs("v2").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	index, err := New(db).Opener()(context.Background(), domain.SnapshotManifest{Version: "v2", Location: "v2"})
	if err != nil {
		t.Fatalf("Opener() error = %v", err)
	}
	if index == nil {
		t.Fatalf("expected index")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
