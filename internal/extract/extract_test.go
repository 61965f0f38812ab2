package extract

import (
	"testing"

	"github.com/TobiSchelling/WikiGraph/internal/nlp/nlptest"
)

func TestRelationshipTwoChunks(t *testing.T) {
	doc := nlptest.Parse("manhattan/NN is/VBZ a/DT borough/NN of/IN new/JJ york/NNP city/NN")
	got := Relationship(doc, doc.Sentences[0])
	want := Triple{Subject: "manhattan", Object: "new york city", Connector: "is a borough of"}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestRelationshipAdjacentChunks(t *testing.T) {
	doc := nlptest.Parse("the/DT city/NN it/PRP")
	got := Relationship(doc, doc.Sentences[0])
	if got.Subject != "the city" || got.Object != "it" || got.Connector != "" {
		t.Errorf("unexpected triple %+v", got)
	}
}

func TestRelationshipIgnoresMiddleChunks(t *testing.T) {
	doc := nlptest.Parse("new/JJ york/NNP city/NN is/VBZ the/DT most/RBS populous/JJ city/NN in/IN the/DT united/JJ states/NNS ./.")
	got := Relationship(doc, doc.Sentences[0])
	want := Triple{Subject: "new york city", Object: "the united states", Connector: "is the most populous city in"}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestRelationshipFewerThanTwoChunks(t *testing.T) {
	for _, tagged := range []string{
		"manhattan/NN grows/VBZ quickly/RB",
		"is/VBZ big/JJ",
		"",
	} {
		doc := nlptest.Parse(tagged)
		if len(doc.Sentences) == 0 {
			continue
		}
		got := Relationship(doc, doc.Sentences[0])
		if got != (Triple{}) || got.Found() {
			t.Errorf("%q: expected empty triple, got %+v", tagged, got)
		}
	}
}

func TestRelationshipStaysInSentence(t *testing.T) {
	doc := nlptest.Parse("manhattan/NN grows/VBZ ./. the/DT bronx/NN is/VBZ near/IN queens/NNP ./.")
	if got := Relationship(doc, doc.Sentences[0]); got.Found() {
		t.Errorf("expected no relationship in first sentence, got %+v", got)
	}
	got := Relationship(doc, doc.Sentences[1])
	if got.Subject != "the bronx" || got.Object != "queens" || got.Connector != "is near" {
		t.Errorf("unexpected triple %+v", got)
	}
}

func TestLabel(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"is a borough of", "is a borough of"},
		{"one two three four five", "one two three four five"},
		{"is the most populous city in", "is the most populous city..."},
		{"a  b   c d e f g", "a b c d e..."},
		{"", ""},
	}
	for _, c := range cases {
		if got := Label(c.in); got != c.want {
			t.Errorf("Label(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
