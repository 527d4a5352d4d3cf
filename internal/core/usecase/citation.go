package usecase

import (
	"sort"

	"github.com/kirillkom/scc-caselaw-rag/internal/core/citematch"
	"github.com/kirillkom/scc-caselaw-rag/internal/core/domain"
)

// ResolveCitations links mentions in the answer to retrieved cases. Only cases
// the answer actually names are cited.
func ResolveCitations(answer string, chunks []domain.RetrievedChunk) []domain.Citation {
	type rankedCase struct {
		c     domain.Case
		score float64
	}

	order := make([]string, 0, len(chunks))
	cases := make(map[string]*rankedCase, len(chunks))
	for _, chunk := range chunks {
		existing, ok := cases[chunk.CaseNumber]
		if !ok {
			c := chunk.Case
			c.CaseNumber = chunk.CaseNumber
			cases[chunk.CaseNumber] = &rankedCase{c: c, score: chunk.Score}
			order = append(order, chunk.CaseNumber)
			continue
		}
		if chunk.Score > existing.score {
			existing.score = chunk.Score
		}
	}

	candidates := make([]citematch.Candidate, 0, len(order))
	for _, number := range order {
		c := cases[number].c
		candidates = append(candidates, citematch.Candidate{
			Key:     number,
			Phrases: citematch.Phrases(c.Title, c.CitationText, c.CaseNumber),
		})
	}

	matches := citematch.Find(answer, candidates)
	out := make([]domain.Citation, 0, len(matches))
	position := make(map[string]int, len(matches))
	for _, m := range matches {
		ranked := cases[m.Key]
		position[m.Key] = m.Start
		out = append(out, domain.Citation{
			CaseNumber:   ranked.c.CaseNumber,
			Title:        ranked.c.Title,
			Date:         ranked.c.Date,
			CitationText: citationText(ranked.c),
			Score:        ranked.score,
			Mention:      m.Mention,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return position[out[i].CaseNumber] < position[out[j].CaseNumber]
	})
	return out
}

func citationText(c domain.Case) string {
	if c.CitationText != "" {
		return c.CitationText
	}
	if date := c.Date.String(); date != "" {
		return c.Title + " (" + date + ")"
	}
	return c.Title
}
