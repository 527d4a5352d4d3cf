package citematch

import (
	"reflect"
	"testing"
)

func TestPhrases(t *testing.T) {
	got := Phrases("R. v. Grant, 2009 SCC 32", "R. v. Grant, 2009 SCC 32, [2009] 2 S.C.R. 353", "31892")
	want := []string{"R. v. Grant, 2009 SCC 32", "R. v. Grant", "2009 SCC 32", "31892"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Phrases() = %#v, want %#v", got, want)
	}
}

func TestPhrasesDeduplicatesNormalizedForms(t *testing.T) {
	got := Phrases("R v Jordan", "", "36068")
	want := []string{"R v Jordan", "36068"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Phrases() = %#v, want %#v", got, want)
	}
}

func TestFindNormalizesPunctuationAndVersus(t *testing.T) {
	answer := "As held in r vs. GRANT, the test has three lines of inquiry."
	matches := Find(answer, []Candidate{{Key: "31892", Phrases: []string{"R. v. Grant"}}})
	if len(matches) != 1 {
		t.Fatalf("expected one match, got %#v", matches)
	}
	if matches[0].Mention != "r vs. GRANT" {
		t.Fatalf("unexpected mention %q", matches[0].Mention)
	}
}

func TestFindRespectsTokenBoundaries(t *testing.T) {
	matches := Find("The Grantham decision is unrelated.", []Candidate{{Key: "1", Phrases: []string{"R v Grant", "Grant"}}})
	if len(matches) != 0 {
		t.Fatalf("expected no match, got %#v", matches)
	}
}

func TestFindSpanClaimedByHigherRankedCandidate(t *testing.T) {
	answer := "See R v Smith, 2010 SCC 5 for the rule."
	matches := Find(answer, []Candidate{
		{Key: "first", Phrases: []string{"R v Smith"}},
		{Key: "second", Phrases: []string{"R v Smith"}},
	})
	if len(matches) != 1 || matches[0].Key != "first" {
		t.Fatalf("expected only the first candidate, got %#v", matches)
	}
}

func TestFindUsesEarliestMentionAndSortsByPosition(t *testing.T) {
	answer := "Under 2016 SCC 27 delay is capped; R v Grant addresses exclusion. Jordan (2016 SCC 27) again."
	matches := Find(answer, []Candidate{
		{Key: "grant", Phrases: []string{"R v Grant"}},
		{Key: "jordan", Phrases: []string{"R v Jordan", "2016 SCC 27"}},
	})
	if len(matches) != 2 {
		t.Fatalf("expected two matches, got %#v", matches)
	}
	if matches[0].Key != "jordan" || matches[0].Mention != "2016 SCC 27" || matches[0].Start != 6 {
		t.Fatalf("unexpected first match %#v", matches[0])
	}
	if matches[1].Key != "grant" {
		t.Fatalf("unexpected second match %#v", matches[1])
	}
}

func TestFindIgnoresTooShortPhrases(t *testing.T) {
	matches := Find("R said nothing.", []Candidate{{Key: "x", Phrases: []string{"R", "ab"}}})
	if len(matches) != 0 {
		t.Fatalf("expected no match, got %#v", matches)
	}
}

func TestFindEmptyText(t *testing.T) {
	if got := Find("", []Candidate{{Key: "x", Phrases: []string{"R v Grant"}}}); got != nil {
		t.Fatalf("expected nil, got %#v", got)
	}
}

func TestFindPrefersFullCitationOverSharedShortTitle(t *testing.T) {
	answer := "As held in R. v. Smith, 2015 SCC 30, the test is objective."
	matches := Find(answer, []Candidate{
		{Key: "33333", Phrases: Phrases("R. v. Smith, 2010 SCC 5", "", "33333")},
		{Key: "44444", Phrases: Phrases("R. v. Smith, 2015 SCC 30", "", "44444")},
	})
	if len(matches) != 1 {
		t.Fatalf("expected only the named case, got %#v", matches)
	}
	if matches[0].Key != "44444" || matches[0].Mention != "R. v. Smith, 2015 SCC 30" {
		t.Fatalf("unexpected match %#v", matches[0])
	}
}

func TestFindGivesSharedShortTitleToNamedCase(t *testing.T) {
	answer := "R. v. Smith sets the standard. The Court later confirmed it in 2015 SCC 30."
	matches := Find(answer, []Candidate{
		{Key: "33333", Phrases: Phrases("R. v. Smith, 2010 SCC 5", "", "33333")},
		{Key: "44444", Phrases: Phrases("R. v. Smith, 2015 SCC 30", "", "44444")},
	})
	if len(matches) != 1 || matches[0].Key != "44444" {
		t.Fatalf("expected the later-ranked case named by citation, got %#v", matches)
	}
	if matches[0].Mention != "R. v. Smith" {
		t.Fatalf("expected earliest mention, got %q", matches[0].Mention)
	}
}

func TestFindKeepsHyphenatedNamesWhole(t *testing.T) {
	matches := Find("See R. v. Smith-Jones on this point.", []Candidate{{Key: "33333", Phrases: []string{"R. v. Smith"}}})
	if len(matches) != 0 {
		t.Fatalf("expected no match inside a hyphenated name, got %#v", matches)
	}
	matches = Find("See R. v. Smith-Jones on this point.", []Candidate{{Key: "55555", Phrases: []string{"R v Smith-Jones"}}})
	if len(matches) != 1 || matches[0].Mention != "R. v. Smith-Jones" {
		t.Fatalf("expected hyphenated title to match, got %#v", matches)
	}
}
