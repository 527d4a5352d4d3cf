package usecase

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/kirillkom/scc-caselaw-rag/internal/core/domain"
)

const DefaultContextMaxChars = 12000

// ContextAssembler renders retrieved chunks into the prompt context. A
// non-positive MaxChars disables the budget.
type ContextAssembler struct {
	MaxChars int
}

func (a ContextAssembler) Assemble(chunks []domain.RetrievedChunk) (string, []domain.ContextEntry) {
	return a.promptContext(chunks), contextEntries(chunks)
}

func (a ContextAssembler) promptContext(chunks []domain.RetrievedChunk) string {
	var sb strings.Builder
	for i, chunk := range chunks {
		header := contextHeader(i+1, chunk)
		block := header + chunk.Text + "\n"
		sep := ""
		if i > 0 {
			sep = "\n"
		}

		if a.MaxChars > 0 && sb.Len()+len(sep)+len(block) > a.MaxChars {
			if i == 0 {
				if text := cutAtSentence(chunk.Text, a.MaxChars-len(header)-1); text != "" {
					sb.WriteString(header + text + "\n")
				}
			}
			break
		}
		sb.WriteString(sep)
		sb.WriteString(block)
	}
	return sb.String()
}

func contextHeader(n int, chunk domain.RetrievedChunk) string {
	return fmt.Sprintf("[Context %d] Case: %s | Case Number: %s | Date: %s\n",
		n, chunk.Case.Title, chunk.CaseNumber, chunk.Case.Date.String())
}

// contextEntries projects chunks onto unique cases in first-appearance order.
func contextEntries(chunks []domain.RetrievedChunk) []domain.ContextEntry {
	out := make([]domain.ContextEntry, 0, len(chunks))
	seen := make(map[string]struct{}, len(chunks))
	for _, chunk := range chunks {
		if _, ok := seen[chunk.CaseNumber]; ok {
			continue
		}
		seen[chunk.CaseNumber] = struct{}{}
		out = append(out, domain.ContextEntry{
			CaseNumber: chunk.CaseNumber,
			Title:      chunk.Case.Title,
			Date:       chunk.Case.Date,
		})
	}
	return out
}

// cutAtSentence returns the longest prefix of text, at most limit bytes, that
// ends a sentence. It returns "" when no sentence end fits.
func cutAtSentence(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if len(text) <= limit {
		return text
	}
	end := -1
	for i := 0; i < limit; i++ {
		switch text[i] {
		case '.', '!', '?':
			if i+1 == len(text) || unicode.IsSpace(rune(text[i+1])) {
				end = i + 1
			}
		}
	}
	if end < 0 {
		return ""
	}
	return text[:end]
}
