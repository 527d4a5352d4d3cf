package usecase

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/kirillkom/scc-caselaw-rag/internal/core/domain"
	"github.com/kirillkom/scc-caselaw-rag/internal/core/ports"
)

type Retriever struct {
	embedder ports.Embedder
	index    ports.VectorIndex
}

func NewRetriever(embedder ports.Embedder, index ports.VectorIndex) *Retriever {
	return &Retriever{embedder: embedder, index: index}
}

// Retrieve returns at most topK chunks ordered by score descending, ties by
// case number then offset.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) ([]domain.RetrievedChunk, error) {
	queryVector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, domain.WrapError(domain.ErrRetrieval, "embed query", err)
	}

	chunks, err := r.index.Search(ctx, queryVector, topK)
	if err != nil {
		if domain.IsKind(err, domain.ErrRetrieval) {
			return nil, err
		}
		return nil, domain.WrapError(domain.ErrRetrieval, "search index", err)
	}

	if len(chunks) == 0 {
		count, err := r.index.Count(ctx)
		if err != nil {
			return nil, domain.WrapError(domain.ErrRetrieval, "count index", err)
		}
		if count == 0 {
			return nil, fmt.Errorf("search index: %w", domain.ErrEmptyIndex)
		}
		return []domain.RetrievedChunk{}, nil
	}

	for i := range chunks {
		chunks[i].Score = clampScore(chunks[i].Score)
	}
	sortChunks(chunks)
	if len(chunks) > topK {
		chunks = chunks[:topK]
	}
	return chunks, nil
}

func sortChunks(chunks []domain.RetrievedChunk) {
	sort.SliceStable(chunks, func(i, j int) bool {
		a, b := chunks[i], chunks[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.CaseNumber != b.CaseNumber {
			return a.CaseNumber < b.CaseNumber
		}
		return a.Offset < b.Offset
	})
}

func clampScore(score float64) float64 {
	switch {
	case math.IsNaN(score) || score < 0:
		return 0
	case score > 1:
		return 1
	default:
		return score
	}
}
