// Package nlptest builds annotated documents for tests without a model.
package nlptest

import (
	"context"
	"strings"

	"github.com/TobiSchelling/WikiGraph/internal/nlp"
)

// Parse builds a document from "word/TAG" pairs separated by spaces. A token
// tagged "." ends a sentence. Punctuation is attached to the previous word
// and noun chunks are derived with nlp.Chunk.
func Parse(tagged string) *nlp.Document {
	fields := strings.Fields(tagged)
	doc := &nlp.Document{}
	sent, start := 0, 0
	for i, f := range fields {
		word, tag := f, "NN"
		if k := strings.LastIndex(f, "/"); k > 0 {
			word, tag = f[:k], f[k+1:]
		}
		tok := nlp.Token{Text: word, Tag: tag, Sent: sent}
		if nlp.IsPunct(tag) {
			tok.Dep = "punct"
		}
		doc.Tokens = append(doc.Tokens, tok)
		if i > 0 && tok.Dep != "punct" {
			doc.Tokens[i-1].Whitespace = " "
		}
		if tag == "." {
			doc.Sentences = append(doc.Sentences, nlp.Span{Start: start, End: i + 1})
			start = i + 1
			sent++
		}
	}
	if start < len(doc.Tokens) {
		doc.Sentences = append(doc.Sentences, nlp.Span{Start: start, End: len(doc.Tokens)})
	}
	doc.NounChunks = nlp.Chunk(doc.Tokens)
	return doc
}

// Lexicon is an Annotator that tags known words from a fixed table and
// treats unknown words as nouns. Sentences end at ".".
type Lexicon struct {
	Tags  map[string]string
	Coref bool
	// NoCorefData makes documents report no coreference even with the
	// stage attached, like a model that failed to load it.
	NoCorefData bool
	// Chains are attached to the first annotated document.
	Chains []nlp.Chain
	Err    error
	// FailOn is the 1-based Annotate call that returns Err; 0 fails every call.
	FailOn int

	calls     int
	stageList []string
}

// NewLexicon returns a Lexicon with the given word→tag table.
func NewLexicon(tags map[string]string) *Lexicon {
	return &Lexicon{Tags: tags, stageList: []string{nlp.StageTagger, nlp.StageNER, nlp.StageChunker}}
}

// Annotate tags every whitespace-separated word. Trailing "." and "," are
// split into their own tokens.
func (l *Lexicon) Annotate(ctx context.Context, text string) (*nlp.Document, error) {
	l.calls++
	if l.Err != nil && (l.FailOn == 0 || l.FailOn == l.calls) {
		return nil, l.Err
	}
	var b strings.Builder
	for _, w := range strings.Fields(text) {
		var tail string
		for len(w) > 1 && (strings.HasSuffix(w, ".") || strings.HasSuffix(w, ",")) {
			tail = w[len(w)-1:] + "/" + w[len(w)-1:] + " " + tail
			w = w[:len(w)-1]
		}
		tag, ok := l.Tags[w]
		switch {
		case ok:
		case w == "." || w == ",":
			tag = w
		default:
			tag = "NN"
		}
		b.WriteString(w + "/" + tag + " " + tail)
	}
	doc := Parse(b.String())
	if l.Coref && !l.NoCorefData {
		doc.CorefAvailable = true
	}
	if l.calls == 1 {
		doc.Chains = l.Chains
	}
	return doc, nil
}

// AddStage records a stage and reports duplicates like real annotators.
func (l *Lexicon) AddStage(name string) error {
	for _, s := range l.stageList {
		if s == name {
			return nlp.ErrDuplicateStage
		}
	}
	l.stageList = append(l.stageList, name)
	if name == nlp.StageCoreference {
		l.Coref = true
	}
	return nil
}

// Stages returns the recorded stages.
func (l *Lexicon) Stages() []string {
	return l.stageList
}
