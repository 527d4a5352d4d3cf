package chunking

import (
	"fmt"
	"reflect"
	"strings"
	"testing"
)

func TestSentencesHandlesAbbreviations(t *testing.T) {
	text := "Mr. Smith was charged. The Crown appealed, i.e. The Court heard it! Was it fair? Yes: it was. In R. v. Smith the rule held."
	got := Sentences(text)
	want := []string{
		"Mr. Smith was charged.",
		"The Crown appealed, i.e. The Court heard it!",
		"Was it fair?",
		"Yes: it was.",
		"In R. v. Smith the rule held.",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Sentences() = %#v, want %#v", got, want)
	}
}

func TestSentencesDropsShortFragments(t *testing.T) {
	got := Sentences("Done. The appeal is dismissed.")
	if !reflect.DeepEqual(got, []string{"The appeal is dismissed."}) {
		t.Fatalf("unexpected sentences %#v", got)
	}
}

func TestSplitPacksSentencesWithOverlap(t *testing.T) {
	// Each sentence is 10 words, estimated at 13 tokens.
	sentence := func(n int) string {
		return fmt.Sprintf("Sentence %snumber%d.", strings.Repeat("word ", 8), n)
	}
	var parts []string
	for i := 0; i < 6; i++ {
		parts = append(parts, sentence(i))
	}
	splitter := NewSplitter(30, 13)
	chunks := splitter.Split(strings.Join(parts, " "))

	want := []string{
		parts[0] + " " + parts[1],
		parts[1] + " " + parts[2],
		parts[2] + " " + parts[3],
		parts[3] + " " + parts[4],
		parts[4] + " " + parts[5],
	}
	if !reflect.DeepEqual(chunks, want) {
		t.Fatalf("Split() = %#v\nwant %#v", chunks, want)
	}
}

func TestSplitEmpty(t *testing.T) {
	if got := NewSplitter(0, 0).Split("   "); got != nil {
		t.Fatalf("expected nil, got %#v", got)
	}
}

func TestNewSplitterDefaults(t *testing.T) {
	s := NewSplitter(0, 900)
	if s.ChunkTokens != DefaultChunkTokens || s.OverlapTokens != DefaultChunkTokens/4 {
		t.Fatalf("unexpected defaults %#v", s)
	}
}

func TestEstimateTokens(t *testing.T) {
	if got := EstimateTokens("one two three four five six seven eight nine ten"); got != 13 {
		t.Fatalf("EstimateTokens() = %d", got)
	}
}
