package coref

import (
	"errors"
	"strings"
	"testing"

	"github.com/TobiSchelling/WikiGraph/internal/nlp"
	"github.com/TobiSchelling/WikiGraph/internal/nlp/nlptest"
)

func manhattanDoc() *nlp.Document {
	doc := nlptest.Parse("manhattan/NN is/VBZ dense/JJ ./. it/PRP is/VBZ small/JJ ,/, too/RB ./.")
	doc.CorefAvailable = true
	doc.Chains = []nlp.Chain{{
		Mentions: []nlp.Mention{
			{Spans: []nlp.Span{{Start: 0, End: 1}}},
			{Spans: []nlp.Span{{Start: 4, End: 5}}, Anaphoric: true},
		},
	}}
	return doc
}

func TestResolveSubstitutesAnaphor(t *testing.T) {
	got, err := Resolve(manhattanDoc())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := " manhattan is dense. manhattan is small, too."
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestResolveJoinsCoordinatedAntecedents(t *testing.T) {
	doc := nlptest.Parse("john/NNP and/CC mary/NNP met/VBD ./. they/PRP left/VBD ./.")
	doc.CorefAvailable = true
	doc.Chains = []nlp.Chain{{
		Mentions: []nlp.Mention{
			{Spans: []nlp.Span{{Start: 0, End: 1}, {Start: 2, End: 3}}},
			{Spans: []nlp.Span{{Start: 5, End: 6}}, Anaphoric: true},
		},
	}}
	got, err := Resolve(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasSuffix(got, " john and mary left.") {
		t.Errorf("unexpected text %q", got)
	}
}

func TestResolveWithoutChainsKeepsText(t *testing.T) {
	doc := nlptest.Parse("manhattan/NN is/VBZ dense/JJ ./.")
	doc.CorefAvailable = true
	got, err := Resolve(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(got) != "manhattan is dense." {
		t.Errorf("unexpected text %q", got)
	}
}

func TestResolveUnavailable(t *testing.T) {
	doc := nlptest.Parse("it/PRP is/VBZ ./.")
	_, err := Resolve(doc)
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestResolvePartialOnFailure(t *testing.T) {
	doc := nlptest.Parse("manhattan/NN grows/VBZ ./. it/PRP shines/VBZ ./.")
	doc.CorefAvailable = true
	doc.Chains = []nlp.Chain{{
		Mentions: []nlp.Mention{
			{Spans: []nlp.Span{{Start: 3, End: 4}}, Anaphoric: true},
			{Spans: []nlp.Span{{Start: 40, End: 41}}},
		},
		MostSpecific: 1,
	}}
	got, err := Resolve(doc)
	if err == nil {
		t.Fatal("expected error")
	}
	if got != " manhattan grows." {
		t.Errorf("expected partial text, got %q", got)
	}
}

func TestListing(t *testing.T) {
	got := Listing(manhattanDoc())
	if len(got) != 1 || got[0] != "manhattan → it" {
		t.Errorf("unexpected listing %q", got)
	}
	if len(Listing(nlptest.Parse("a/DT"))) != 0 {
		t.Error("expected empty listing")
	}
}
