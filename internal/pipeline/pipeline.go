package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/TobiSchelling/WikiGraph/internal/coref"
	"github.com/TobiSchelling/WikiGraph/internal/fetch"
	"github.com/TobiSchelling/WikiGraph/internal/graph"
	"github.com/TobiSchelling/WikiGraph/internal/nlp"
	"github.com/TobiSchelling/WikiGraph/internal/normalize"
)

// State is a position in the pipeline.
type State int

const (
	StateIdle State = iota
	StateFetched
	StateNormalized
	StateAnnotated
	StateResolved
	StateReannotated
	StateGraphed
	StateQueryReady
	StateFailed
)

var stateNames = [...]string{
	"idle", "fetched", "normalized", "annotated", "resolved",
	"reannotated", "graphed", "query-ready", "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// StepResult holds the result of a single pipeline step. Err is set when the
// step failed; Warning when it hit a problem that was ignored.
type StepResult struct {
	Name    string
	Summary string
	Warning string
	Err     error
}

// Result holds the results of a full pipeline run. Fields are filled in as
// far as the run got.
type Result struct {
	Title      string
	State      State
	Steps      []StepResult
	Page       *fetch.Page
	Normalized string
	Document   *nlp.Document
	Chains     []string
	Resolved   string
	Graph      *graph.Graph
}

// Failed reports whether the run ended in the failed state.
func (r *Result) Failed() bool {
	return r.State == StateFailed
}

// Fetcher retrieves article text by title.
type Fetcher interface {
	Page(ctx context.Context, title string) (*fetch.Page, error)
}

// Pipeline runs fetch → normalize → annotate → resolve → re-annotate →
// graph for one title. A Pipeline owns its annotator handle and must not be
// run concurrently; give each session its own.
type Pipeline struct {
	fetcher     Fetcher
	annotator   nlp.Annotator
	coreference bool
}

// New creates a new pipeline. When coreference is true every run attaches
// the coreference stage to the annotator.
func New(fetcher Fetcher, annotator nlp.Annotator, coreference bool) *Pipeline {
	return &Pipeline{fetcher: fetcher, annotator: annotator, coreference: coreference}
}

// Run executes the pipeline. Fetch and annotation failures end the run in
// StateFailed; a duplicate stage or a coreference failure is recorded and
// the run continues on the partial resolved text. On success the state is StateQueryReady and Graph is
// the new graph.
func (p *Pipeline) Run(ctx context.Context, title string) *Result {
	r := &Result{Title: title, State: StateIdle}

	step, page := p.runFetch(ctx, title)
	r.Steps = append(r.Steps, step)
	if step.Err != nil {
		r.State = StateFailed
		return r
	}
	r.Page = page
	r.State = StateFetched

	r.Normalized = normalize.Text(page.Content)
	r.Steps = append(r.Steps, StepResult{
		Name:    "Normalize",
		Summary: fmt.Sprintf("Normalized %d characters to %d", len(page.Content), len(r.Normalized)),
	})
	r.State = StateNormalized

	if p.coreference {
		r.Steps = append(r.Steps, p.attachCoreference())
	}

	step, doc := p.runAnnotate(ctx, "Annotate", r.Normalized)
	r.Steps = append(r.Steps, step)
	if step.Err != nil {
		r.State = StateFailed
		return r
	}
	r.Document = doc
	r.Chains = coref.Listing(doc)
	r.State = StateAnnotated

	step, r.Resolved = p.runResolve(doc)
	r.Steps = append(r.Steps, step)
	r.State = StateResolved

	step, resolvedDoc := p.runAnnotate(ctx, "Reannotate", r.Resolved)
	if step.Err != nil {
		r.Steps = append(r.Steps, step)
		r.State = StateFailed
		return r
	}
	r.Steps = append(r.Steps, step)
	r.State = StateReannotated

	r.Graph = graph.Build(resolvedDoc)
	r.Steps = append(r.Steps, StepResult{
		Name:    "Graph",
		Summary: fmt.Sprintf("Built graph with %d nodes and %d edges", r.Graph.NodeCount(), r.Graph.EdgeCount()),
	})
	r.State = StateGraphed

	r.State = StateQueryReady
	log.Info("Pipeline complete", "title", title, "nodes", r.Graph.NodeCount(), "edges", r.Graph.EdgeCount())
	return r
}

func (p *Pipeline) runFetch(ctx context.Context, title string) (StepResult, *fetch.Page) {
	log.Info("Fetching article...", "title", title)
	page, err := p.fetcher.Page(ctx, title)
	if err != nil {
		log.Error("Fetch failed", "title", title, "err", err)
		return StepResult{Name: "Fetch", Err: err}, nil
	}
	return StepResult{
		Name:    "Fetch",
		Summary: fmt.Sprintf("Successfully fetched content for '%s'", page.Title),
	}, page
}

func (p *Pipeline) attachCoreference() StepResult {
	err := p.annotator.AddStage(nlp.StageCoreference)
	switch {
	case errors.Is(err, nlp.ErrDuplicateStage):
		log.Warn("Coreference stage already attached")
		return StepResult{Name: "Attach coreference", Warning: "Coreference is already in the pipeline"}
	case err != nil:
		log.Warn("Could not attach coreference stage", "err", err)
		return StepResult{Name: "Attach coreference", Warning: fmt.Sprintf("Coreference could not be added: %v", err)}
	}
	return StepResult{Name: "Attach coreference", Summary: "Coreference stage attached"}
}

func (p *Pipeline) runAnnotate(ctx context.Context, name, text string) (StepResult, *nlp.Document) {
	log.Info("Annotating text...", "step", name, "chars", len(text))
	doc, err := p.annotator.Annotate(ctx, text)
	if err != nil {
		log.Error("Annotation failed", "step", name, "err", err)
		return StepResult{Name: name, Err: err}, nil
	}
	return StepResult{
		Name: name,
		Summary: fmt.Sprintf("%d tokens, %d sentences, %d entities, %d noun chunks, %d chains",
			len(doc.Tokens), len(doc.Sentences), len(doc.Entities), len(doc.NounChunks), len(doc.Chains)),
	}, doc
}

// runResolve rewrites the document with coreferences resolved. With
// coreference switched off the text is passed through unresolved. Otherwise
// a failure keeps whatever was rebuilt before it, which is empty when the
// model produced no coreference data at all.
func (p *Pipeline) runResolve(doc *nlp.Document) (StepResult, string) {
	if !p.coreference {
		log.Info("Coreference disabled, using unresolved text")
		return StepResult{Name: "Resolve", Warning: "Coreference is disabled; the graph is built from unresolved text"}, doc.String()
	}
	log.Info("Resolving coreferences...")
	text, err := coref.Resolve(doc)
	switch {
	case errors.Is(err, coref.ErrUnavailable):
		log.Error("Coreference unavailable", "err", err)
		return StepResult{Name: "Resolve", Err: err}, text
	case err != nil:
		log.Error("Coreference resolution failed", "err", err)
		return StepResult{Name: "Resolve", Err: err, Summary: fmt.Sprintf("Kept %d characters of partial text", len(text))}, text
	}
	return StepResult{
		Name:    "Resolve",
		Summary: fmt.Sprintf("Resolved %d coreference chains", len(doc.Chains)),
	}, text
}
