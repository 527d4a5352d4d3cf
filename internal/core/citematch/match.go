// Package citematch finds mentions of known cases in free text. It is pure and
// does no I/O.
package citematch

import (
	"regexp"
	"slices"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

var neutralCitation = regexp.MustCompile(`\b(\d{4})\s+SCC\s+(\d+)\b`)

// Candidate is one case and the phrases that count as mentioning it.
type Candidate struct {
	Key     string
	Phrases []string
}

// Match is the first accepted mention of a candidate.
type Match struct {
	Key     string
	Start   int
	End     int
	Mention string
}

type token struct {
	norm  string
	start int
	end   int
}

// Phrases returns the match phrases for a case: full title, short title,
// neutral citation and case number, deduplicated after normalization.
func Phrases(title, citationText, caseNumber string) []string {
	raw := []string{title, ShortTitle(title)}
	if m := neutralCitation.FindStringSubmatch(citationText); m != nil {
		raw = append(raw, m[1]+" SCC "+m[2])
	}
	if m := neutralCitation.FindStringSubmatch(title); m != nil {
		raw = append(raw, m[1]+" SCC "+m[2])
	}
	raw = append(raw, caseNumber)

	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, phrase := range raw {
		key := normalizedKey(phrase)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, strings.TrimSpace(phrase))
	}
	return out
}

// ShortTitle is the title up to the first comma or opening parenthesis.
func ShortTitle(title string) string {
	cut := strings.IndexAny(title, ",(")
	if cut < 0 {
		return strings.TrimSpace(title)
	}
	return strings.TrimSpace(title[:cut])
}

// Find attributes mentions in text to candidates, which are given in rank
// order. Every phrase occurrence is collected first; overlapping occurrences
// are settled longest first, so "R. v. Smith, 2015 SCC 30" is never split
// into a short-title hit for one case and a citation hit for another. A span
// that several candidates share (a common short title) goes to the highest
// ranked candidate the text also names unambiguously, or failing that to the
// highest ranked one. Each candidate reports its earliest accepted span and
// the result is sorted by position.
func Find(text string, candidates []Candidate) []Match {
	textTokens := tokenize(text)
	if len(textTokens) == 0 {
		return nil
	}

	type occurrence struct {
		from, to int
		owners   []int
	}
	byspan := make(map[[2]int]*occurrence)
	var spans []*occurrence
	for ci, cand := range candidates {
		for _, phrase := range cand.Phrases {
			phraseTokens := tokenize(phrase)
			if !usable(phraseTokens) {
				continue
			}
			for from := 0; from+len(phraseTokens) <= len(textTokens); from++ {
				to := from + len(phraseTokens)
				if !tokensEqual(textTokens[from:to], phraseTokens) {
					continue
				}
				key := [2]int{from, to}
				occ, ok := byspan[key]
				if !ok {
					occ = &occurrence{from: from, to: to}
					byspan[key] = occ
					spans = append(spans, occ)
				}
				if !slices.Contains(occ.owners, ci) {
					occ.owners = append(occ.owners, ci)
				}
			}
		}
	}

	named := make(map[int]bool)
	for _, occ := range spans {
		if len(occ.owners) == 1 {
			named[occ.owners[0]] = true
		}
	}
	owner := func(occ *occurrence) int {
		best := slices.Min(occ.owners)
		for _, ci := range occ.owners {
			if named[ci] && (!named[best] || ci < best) {
				best = ci
			}
		}
		return best
	}

	sort.SliceStable(spans, func(i, j int) bool {
		a, b := spans[i], spans[j]
		if la, lb := a.to-a.from, b.to-b.from; la != lb {
			return la > lb
		}
		if ua, ub := len(a.owners) == 1, len(b.owners) == 1; ua != ub {
			return ua
		}
		if oa, ob := owner(a), owner(b); oa != ob {
			return oa < ob
		}
		return a.from < b.from
	})

	var claimed [][2]int
	overlaps := func(from, to int) bool {
		for _, span := range claimed {
			if from < span[1] && span[0] < to {
				return true
			}
		}
		return false
	}
	earliest := make(map[int][2]int)
	for _, occ := range spans {
		if overlaps(occ.from, occ.to) {
			continue
		}
		claimed = append(claimed, [2]int{occ.from, occ.to})
		ci := owner(occ)
		if prev, ok := earliest[ci]; !ok || occ.from < prev[0] {
			earliest[ci] = [2]int{occ.from, occ.to}
		}
	}

	out := make([]Match, 0, len(earliest))
	for ci, span := range earliest {
		start := textTokens[span[0]].start
		end := textTokens[span[1]-1].end
		out = append(out, Match{
			Key:     candidates[ci].Key,
			Start:   start,
			End:     end,
			Mention: text[start:end],
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// usable rejects phrases too short to identify a case on their own.
func usable(tokens []token) bool {
	switch len(tokens) {
	case 0:
		return false
	case 1:
		return len([]rune(tokens[0].norm)) >= 4
	default:
		return true
	}
}

func tokensEqual(a, b []token) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].norm != b[i].norm {
			return false
		}
	}
	return true
}

func normalizedKey(s string) string {
	tokens := tokenize(s)
	parts := make([]string, len(tokens))
	for i, t := range tokens {
		parts[i] = t.norm
	}
	return strings.Join(parts, " ")
}

// tokenize splits s into lower-cased runs of letters and digits with byte
// offsets into s. A hyphen between two such runs joins them, so "Smith-Jones"
// is one token. "vs" and "versus" become "v".
func tokenize(s string) []token {
	var out []token
	start := -1
	flush := func(end int) {
		if start < 0 {
			return
		}
		norm := strings.ToLower(s[start:end])
		switch norm {
		case "vs", "versus":
			norm = "v"
		}
		out = append(out, token{norm: norm, start: start, end: end})
		start = -1
	}
	for i, r := range s {
		if isWordRune(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if r == '-' && start >= 0 {
			if next, _ := utf8.DecodeRuneInString(s[i+1:]); isWordRune(next) {
				continue
			}
		}
		flush(i)
	}
	flush(len(s))
	return out
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
