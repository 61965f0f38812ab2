package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/TobiSchelling/WikiGraph/internal/coref"
	"github.com/TobiSchelling/WikiGraph/internal/fetch"
	"github.com/TobiSchelling/WikiGraph/internal/nlp"
	"github.com/TobiSchelling/WikiGraph/internal/nlp/nlptest"
)

type stubFetcher struct {
	content string
	err     error
}

func (s stubFetcher) Page(ctx context.Context, title string) (*fetch.Page, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &fetch.Page{Title: title, Content: s.content}, nil
}

var lexicon = map[string]string{
	"new": "JJ", "york": "NNP", "city": "NN", "is": "VBZ", "the": "DT",
	"most": "RBS", "populous": "JJ", "in": "IN", "united": "JJ", "states": "NNS",
	"manhattan": "NN", "a": "DT", "borough": "NN", "of": "IN",
}

const article = "New York City is the most populous city in the United States. \n" +
	"== Boroughs == \nManhattan is a borough of New York City. \n== See also ==\nList of cities"

func findStep(r *Result, name string) *StepResult {
	for i := range r.Steps {
		if r.Steps[i].Name == name {
			return &r.Steps[i]
		}
	}
	return nil
}

func TestRunEndToEnd(t *testing.T) {
	p := New(stubFetcher{content: article}, nlptest.NewLexicon(lexicon), true)
	r := p.Run(context.Background(), "New York City")

	if r.State != StateQueryReady {
		t.Fatalf("expected query-ready, got %s (steps %+v)", r.State, r.Steps)
	}
	if strings.Contains(r.Normalized, "list of cities") || strings.Contains(r.Normalized, "boroughs") {
		t.Errorf("expected markup removed, got %q", r.Normalized)
	}

	dests, err := r.Graph.Query("new york city")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(dests) != 1 || dests[0] != "the united states" {
		t.Errorf("unexpected neighbors %v", dests)
	}
	for _, e := range r.Graph.Edges() {
		if e.From == "new york city" && e.Title == "" {
			t.Error("expected non-empty label")
		}
	}
	if _, err := r.Graph.Query("manhattan"); err != nil {
		t.Errorf("expected manhattan node, got %v", err)
	}
}

func TestRunFetchFailure(t *testing.T) {
	p := New(stubFetcher{err: fetch.ErrPageNotFound}, nlptest.NewLexicon(lexicon), true)
	r := p.Run(context.Background(), "Nope")

	if !r.Failed() {
		t.Fatalf("expected failed state, got %s", r.State)
	}
	if len(r.Steps) != 1 || !errors.Is(r.Steps[0].Err, fetch.ErrPageNotFound) {
		t.Errorf("unexpected steps %+v", r.Steps)
	}
	if r.Graph != nil {
		t.Error("expected no graph")
	}
}

func TestRunDuplicateStageWarns(t *testing.T) {
	p := New(stubFetcher{content: article}, nlptest.NewLexicon(lexicon), true)
	p.Run(context.Background(), "First")
	r := p.Run(context.Background(), "Second")

	step := findStep(r, "Attach coreference")
	if step == nil || step.Warning == "" || step.Err != nil {
		t.Fatalf("expected duplicate stage warning, got %+v", step)
	}
	if r.State != StateQueryReady {
		t.Errorf("expected run to continue, got %s", r.State)
	}
}

func TestRunCoreferenceDisabled(t *testing.T) {
	p := New(stubFetcher{content: article}, nlptest.NewLexicon(lexicon), false)
	r := p.Run(context.Background(), "New York City")

	step := findStep(r, "Resolve")
	if step == nil || step.Err != nil || step.Warning == "" {
		t.Fatalf("expected pass-through warning, got %+v", step)
	}
	if r.Resolved != r.Document.String() {
		t.Errorf("expected unresolved text, got %q", r.Resolved)
	}
	if r.State != StateQueryReady {
		t.Errorf("expected run to continue, got %s", r.State)
	}
	if r.Graph.EdgeCount() == 0 {
		t.Error("expected graph from unresolved text")
	}
}

func TestRunCoreferenceUnavailable(t *testing.T) {
	lex := nlptest.NewLexicon(lexicon)
	lex.NoCorefData = true
	p := New(stubFetcher{content: article}, lex, true)
	r := p.Run(context.Background(), "New York City")

	step := findStep(r, "Resolve")
	if step == nil || !errors.Is(step.Err, coref.ErrUnavailable) {
		t.Fatalf("expected coreference error, got %+v", step)
	}
	if r.Resolved != "" {
		t.Errorf("expected empty resolved text, got %q", r.Resolved)
	}
	if r.State != StateQueryReady {
		t.Errorf("expected run to continue, got %s", r.State)
	}
	if r.Graph.NodeCount() != 0 {
		t.Errorf("expected empty graph, got %d nodes", r.Graph.NodeCount())
	}
}

func TestRunCoreferencePartialFailure(t *testing.T) {
	lex := nlptest.NewLexicon(lexicon)
	// token 13 is "manhattan"; the chain points at a mention that does not exist
	lex.Chains = []nlp.Chain{{
		Mentions:     []nlp.Mention{{Spans: []nlp.Span{{Start: 0, End: 3}}}, {Spans: []nlp.Span{{Start: 13, End: 14}}, Anaphoric: true}},
		MostSpecific: 7,
	}}
	p := New(stubFetcher{content: article}, lex, true)
	r := p.Run(context.Background(), "New York City")

	step := findStep(r, "Resolve")
	if step == nil || step.Err == nil || errors.Is(step.Err, coref.ErrUnavailable) {
		t.Fatalf("expected resolution error, got %+v", step)
	}
	if !strings.Contains(r.Resolved, "the united states") || strings.Contains(r.Resolved, "manhattan") {
		t.Errorf("expected text up to the failure, got %q", r.Resolved)
	}
	if r.State != StateQueryReady {
		t.Fatalf("expected run to continue, got %s", r.State)
	}
	if !r.Graph.HasNode("new york city") || r.Graph.HasNode("manhattan") {
		t.Errorf("unexpected graph nodes %+v", r.Graph.Nodes())
	}
}

func TestRunReannotateFailure(t *testing.T) {
	lex := nlptest.NewLexicon(lexicon)
	lex.Err = errors.New("model crashed")
	lex.FailOn = 2
	p := New(stubFetcher{content: article}, lex, true)
	r := p.Run(context.Background(), "New York City")

	if !r.Failed() {
		t.Fatalf("expected failed state, got %s", r.State)
	}
	if step := findStep(r, "Reannotate"); step == nil || step.Err == nil {
		t.Errorf("expected reannotate error, got %+v", step)
	}
	if r.Document == nil || r.Graph != nil {
		t.Error("expected first annotation kept and no graph")
	}
}

func TestRunAnnotationFailure(t *testing.T) {
	lex := nlptest.NewLexicon(lexicon)
	lex.Err = errors.New("model crashed")
	p := New(stubFetcher{content: article}, lex, true)
	r := p.Run(context.Background(), "New York City")

	if !r.Failed() {
		t.Fatalf("expected failed state, got %s", r.State)
	}
	if step := findStep(r, "Annotate"); step == nil || step.Err == nil {
		t.Errorf("expected annotate error, got %+v", step)
	}
}

func TestStateString(t *testing.T) {
	if StateQueryReady.String() != "query-ready" {
		t.Errorf("unexpected name %q", StateQueryReady.String())
	}
	if State(42).String() != "State(42)" {
		t.Errorf("unexpected name %q", State(42).String())
	}
}
