package chunking

import (
	"strings"
	"unicode"
)

const (
	DefaultChunkTokens   = 500
	DefaultOverlapTokens = 50

	minSentenceLen = 6
)

// Splitter packs whole sentences into chunks of roughly ChunkTokens estimated
// tokens. Consecutive chunks share trailing sentences worth up to
// OverlapTokens.
type Splitter struct {
	ChunkTokens   int
	OverlapTokens int
}

func NewSplitter(chunkTokens, overlapTokens int) *Splitter {
	if chunkTokens <= 0 {
		chunkTokens = DefaultChunkTokens
	}
	if overlapTokens < 0 {
		overlapTokens = 0
	}
	if overlapTokens >= chunkTokens {
		overlapTokens = chunkTokens / 4
	}
	return &Splitter{
		ChunkTokens:   chunkTokens,
		OverlapTokens: overlapTokens,
	}
}

func (s *Splitter) Split(text string) []string {
	sentences := Sentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var (
		out     []string
		current []string
		size    int
	)
	for _, sentence := range sentences {
		tokens := EstimateTokens(sentence)
		if size+tokens > s.ChunkTokens && len(current) > 0 {
			out = append(out, strings.Join(current, " "))
			current, size = s.overlap(current)
		}
		current = append(current, sentence)
		size += tokens
	}
	if len(current) > 0 {
		out = append(out, strings.Join(current, " "))
	}
	return out
}

// overlap returns the trailing sentences of prev that fit in OverlapTokens.
func (s *Splitter) overlap(prev []string) ([]string, int) {
	size := 0
	start := len(prev)
	for i := len(prev) - 1; i >= 0; i-- {
		tokens := EstimateTokens(prev[i])
		if size+tokens > s.OverlapTokens {
			break
		}
		size += tokens
		start = i
	}
	out := make([]string, len(prev)-start)
	copy(out, prev[start:])
	return out, size
}

// EstimateTokens approximates model tokens as 1.3 per whitespace-separated word.
func EstimateTokens(text string) int {
	return int(float64(len(strings.Fields(text))) * 1.3)
}

// Sentences splits text after '.', '?', '!' or ':' when whitespace and an
// upper-case letter follow. Abbreviations such as "Mr." and "e.g." do not end
// a sentence. Fragments shorter than six characters are dropped.
func Sentences(text string) []string {
	runes := []rune(text)
	var out []string
	start := 0
	emit := func(end int) {
		sentence := strings.TrimSpace(string(runes[start:end]))
		if len([]rune(sentence)) >= minSentenceLen {
			out = append(out, sentence)
		}
	}

	for i := 0; i < len(runes); i++ {
		switch runes[i] {
		case '.', '?', '!', ':':
		default:
			continue
		}
		j := i + 1
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		if j == i+1 || j >= len(runes) || !unicode.IsUpper(runes[j]) {
			continue
		}
		if runes[i] == '.' && isAbbreviation(runes, i) {
			continue
		}
		emit(i + 1)
		start = j
		i = j - 1
	}
	if start < len(runes) {
		emit(len(runes))
	}
	return out
}

func isAbbreviation(runes []rune, dot int) bool {
	// "R. v. Smith", "s. 34"
	if dot >= 1 && unicode.IsLetter(runes[dot-1]) && (dot == 1 || !unicode.IsLetter(runes[dot-2])) {
		return true
	}
	// "Mr.", "Dr.", "Ct."
	if dot >= 2 && unicode.IsUpper(runes[dot-2]) && unicode.IsLower(runes[dot-1]) &&
		(dot == 2 || !unicode.IsLetter(runes[dot-3])) {
		return true
	}
	// "e.g.", "i.e.", "U.S."
	if dot >= 3 && runes[dot-2] == '.' && unicode.IsLetter(runes[dot-1]) && unicode.IsLetter(runes[dot-3]) {
		return true
	}
	return false
}
