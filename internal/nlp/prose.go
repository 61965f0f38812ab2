package nlp

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jdkato/prose/v2"
)

// ProseAnnotator runs the pure-Go prose model in process. Coreference is a
// recency heuristic over noun chunks (see resolveChains). Prose has no
// dependency parser, so Dep is only set for punctuation.
type ProseAnnotator struct {
	stages *stages
}

// NewProseAnnotator creates an annotator with the tagger, entity and noun
// chunk stages attached.
func NewProseAnnotator() *ProseAnnotator {
	return &ProseAnnotator{stages: newStages(StageTagger, StageNER, StageChunker)}
}

// AddStage attaches a stage. Only coreference changes the output.
func (a *ProseAnnotator) AddStage(name string) error {
	return a.stages.add(name)
}

// Stages returns the attached stage names in order.
func (a *ProseAnnotator) Stages() []string {
	return a.stages.list()
}

// Annotate tags text and derives sentences, entities, chunks and chains.
func (a *ProseAnnotator) Annotate(ctx context.Context, text string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pd, err := prose.NewDocument(text,
		prose.WithTagging(a.stages.has(StageTagger)),
		prose.WithExtraction(a.stages.has(StageNER)),
	)
	if err != nil {
		return nil, fmt.Errorf("prose: %w", err)
	}

	ptoks := pd.Tokens()
	words := make([]string, len(ptoks))
	for i, t := range ptoks {
		words[i] = t.Text
	}
	starts, ends := align(text, words)

	doc := &Document{Tokens: make([]Token, len(ptoks))}
	for i, t := range ptoks {
		tok := Token{Text: t.Text, Tag: t.Tag}
		if IsPunct(t.Tag) {
			tok.Dep = "punct"
		}
		if i+1 < len(ptoks) && ends[i] < starts[i+1] {
			tok.Whitespace = " "
		}
		doc.Tokens[i] = tok
	}

	var sents []string
	for _, s := range pd.Sentences() {
		sents = append(sents, s.Text)
	}
	doc.Sentences = sentenceSpans(text, sents, starts)
	for si, s := range doc.Sentences {
		for i := s.Start; i < s.End; i++ {
			doc.Tokens[i].Sent = si
		}
	}

	from := 0
	for _, e := range pd.Entities() {
		if sp, ok := findTokens(doc.Tokens, strings.Fields(e.Text), from); ok {
			sp.Label = e.Label
			doc.Entities = append(doc.Entities, sp)
			from = sp.End
		}
	}
	doc.Entities = dropOverlaps(doc.Entities)
	for _, e := range doc.Entities {
		for i := e.Start; i < e.End; i++ {
			doc.Tokens[i].Entity = e.Label
		}
	}

	if a.stages.has(StageChunker) {
		doc.NounChunks = Chunk(doc.Tokens)
	}
	if a.stages.has(StageCoreference) {
		doc.Chains = resolveChains(doc)
		doc.CorefAvailable = true
	}
	return doc, nil
}

// align locates each word in text, scanning forward. Words the tokenizer
// rewrote (quotes become `` and '') are placed at the cursor with zero width.
func align(text string, words []string) (starts, ends []int) {
	starts = make([]int, len(words))
	ends = make([]int, len(words))
	cursor := 0
	for i, w := range words {
		idx := strings.Index(text[cursor:], w)
		if idx < 0 {
			start := cursor
			for start < len(text) && text[start] == ' ' {
				start++
			}
			starts[i], ends[i] = start, start
			cursor = start
			continue
		}
		starts[i] = cursor + idx
		ends[i] = starts[i] + len(w)
		cursor = ends[i]
	}
	return starts, ends
}

// sentenceSpans converts sentence strings into token ranges using the token
// start offsets.
func sentenceSpans(text string, sents []string, starts []int) []Span {
	if len(starts) == 0 {
		return nil
	}
	var bounds []int
	cursor := 0
	for _, s := range sents {
		idx := strings.Index(text[cursor:], s)
		if idx < 0 {
			continue
		}
		cursor += idx + len(s)
		bounds = append(bounds, cursor)
	}

	var spans []Span
	start := 0
	b := 0
	for i, off := range starts {
		for b < len(bounds) && off >= bounds[b] {
			if i > start {
				spans = append(spans, Span{Start: start, End: i})
				start = i
			}
			b++
		}
	}
	spans = append(spans, Span{Start: start, End: len(starts)})
	return spans
}

// findTokens returns the first token run at or after from whose texts equal
// words.
func findTokens(tokens []Token, words []string, from int) (Span, bool) {
	if len(words) == 0 {
		return Span{}, false
	}
outer:
	for i := from; i+len(words) <= len(tokens); i++ {
		for j, w := range words {
			if tokens[i+j].Text != w {
				continue outer
			}
		}
		return Span{Start: i, End: i + len(words)}, true
	}
	return Span{}, false
}

// dropOverlaps sorts spans by start and keeps the first of any overlapping
// pair.
func dropOverlaps(spans []Span) []Span {
	sort.SliceStable(spans, func(i, j int) bool { return spans[i].Start < spans[j].Start })
	var out []Span
	end := 0
	for _, s := range spans {
		if s.Start < end {
			continue
		}
		out = append(out, s)
		end = s.End
	}
	return out
}
