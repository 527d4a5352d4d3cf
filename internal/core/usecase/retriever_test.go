package usecase

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/kirillkom/scc-caselaw-rag/internal/core/domain"
)

func TestRetrieveSortsClampsAndTrims(t *testing.T) {
	index := &indexFake{chunks: []domain.RetrievedChunk{
		chunk("b", "B", 0.5, 1, "x"),
		chunk("a", "A", 1.2, 0, "x"),
		chunk("b", "B", 0.5, 0, "x"),
		chunk("a", "A", 0.5, 4, "x"),
		chunk("c", "C", math.NaN(), 0, "x"),
	}, count: 5}
	retriever := NewRetriever(&embedderFake{}, index)

	got, err := retriever.Retrieve(context.Background(), "q", 4)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	want := []struct {
		caseNumber string
		offset     int
		score      float64
	}{{"a", 0, 1}, {"a", 4, 0.5}, {"b", 0, 0.5}, {"b", 1, 0.5}}
	if len(got) != len(want) {
		t.Fatalf("expected %d chunks, got %d", len(want), len(got))
	}
	for i, w := range want {
		if got[i].CaseNumber != w.caseNumber || got[i].Offset != w.offset || got[i].Score != w.score {
			t.Fatalf("chunk %d = %s/%d/%v, want %s/%d/%v", i, got[i].CaseNumber, got[i].Offset, got[i].Score, w.caseNumber, w.offset, w.score)
		}
	}
	for i := 1; i < len(got); i++ {
		if got[i].Score > got[i-1].Score {
			t.Fatalf("scores must be non-increasing: %v", got)
		}
	}
}

func TestRetrieveSearchFailure(t *testing.T) {
	retriever := NewRetriever(&embedderFake{}, &indexFake{err: errors.New("qdrant down")})
	_, err := retriever.Retrieve(context.Background(), "q", 3)
	if !domain.IsKind(err, domain.ErrRetrieval) {
		t.Fatalf("expected retrieval error, got %v", err)
	}
}

func TestRetrieveCountFailure(t *testing.T) {
	retriever := NewRetriever(&embedderFake{}, &indexFake{countErr: errors.New("count failed")})
	_, err := retriever.Retrieve(context.Background(), "q", 3)
	if !domain.IsKind(err, domain.ErrRetrieval) || errors.Is(err, domain.ErrEmptyIndex) {
		t.Fatalf("expected plain retrieval error, got %v", err)
	}
}
