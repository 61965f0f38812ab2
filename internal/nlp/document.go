package nlp

import (
	"fmt"
	"strings"
	"sync"
)

// Token is one annotated word or punctuation mark.
type Token struct {
	Text string
	// Whitespace is the text separating this token from the next one.
	Whitespace string
	// Tag is the Penn Treebank part-of-speech tag.
	Tag string
	// Dep is the dependency label; "punct" for punctuation.
	Dep string
	// Entity is the entity label of the span covering this token, if any.
	Entity string
	// Sent is the index of the sentence the token belongs to.
	Sent int
}

// Span is the half-open token range [Start, End).
type Span struct {
	Start int
	End   int
	Label string
}

// Len returns the number of tokens in the span.
func (s Span) Len() int { return s.End - s.Start }

// Mention is one reference to an entity inside a coreference chain. A mention
// can cover several spans when it is a coordination ("john and mary").
type Mention struct {
	Spans []Span
	// Anaphoric mentions (pronouns) are rewritten to the chain's most
	// specific mention during resolution.
	Anaphoric bool
}

// Chain is an ordered set of mentions referring to the same entity.
type Chain struct {
	Mentions     []Mention
	MostSpecific int
}

// Document is the output of one annotation call. It is never mutated after
// the annotator returns it.
type Document struct {
	Tokens     []Token
	Sentences  []Span
	Entities   []Span
	NounChunks []Span
	Chains     []Chain
	// CorefAvailable is false when no coreference stage ran.
	CorefAvailable bool

	once    sync.Once
	anaphor map[int]int
}

// Text returns the surface text of a span, without the trailing whitespace
// of its last token.
func (d *Document) Text(s Span) string {
	if s.Start < 0 || s.End > len(d.Tokens) || s.Start >= s.End {
		return ""
	}
	var b strings.Builder
	for i := s.Start; i < s.End; i++ {
		b.WriteString(d.Tokens[i].Text)
		if i < s.End-1 {
			b.WriteString(d.Tokens[i].Whitespace)
		}
	}
	return b.String()
}

// String returns the full document text.
func (d *Document) String() string {
	return d.Text(Span{Start: 0, End: len(d.Tokens)})
}

// MentionText joins the spans of a mention with " and ".
func (d *Document) MentionText(m Mention) string {
	parts := make([]string, 0, len(m.Spans))
	for _, s := range m.Spans {
		parts = append(parts, d.Text(s))
	}
	return strings.Join(parts, " and ")
}

// ChunksIn returns the noun chunks lying entirely inside s, in order.
func (d *Document) ChunksIn(s Span) []Span {
	var out []Span
	for _, c := range d.NounChunks {
		if c.Start >= s.Start && c.End <= s.End {
			out = append(out, c)
		}
	}
	return out
}

// Resolve returns the spans an anaphoric token refers to, or nil when the
// token is not an anaphor. Only the first token of an anaphoric mention is
// resolved. An error means the chain data for this token is inconsistent.
func (d *Document) Resolve(i int) ([]Span, error) {
	d.once.Do(d.buildIndex)
	ci, ok := d.anaphor[i]
	if !ok {
		return nil, nil
	}
	ch := d.Chains[ci]
	if ch.MostSpecific < 0 || ch.MostSpecific >= len(ch.Mentions) {
		return nil, fmt.Errorf("chain %d: most specific mention %d out of range", ci, ch.MostSpecific)
	}
	target := ch.Mentions[ch.MostSpecific]
	if target.Anaphoric {
		return nil, nil
	}
	for _, s := range target.Spans {
		if s.Start < 0 || s.End > len(d.Tokens) || s.Start >= s.End {
			return nil, fmt.Errorf("chain %d: mention span [%d,%d) out of range", ci, s.Start, s.End)
		}
	}
	return target.Spans, nil
}

func (d *Document) buildIndex() {
	d.anaphor = make(map[int]int)
	for ci, ch := range d.Chains {
		for _, m := range ch.Mentions {
			if !m.Anaphoric || len(m.Spans) == 0 {
				continue
			}
			if _, seen := d.anaphor[m.Spans[0].Start]; !seen {
				d.anaphor[m.Spans[0].Start] = ci
			}
		}
	}
}

// EntitySegment is a run of text that is either plain or a labelled entity.
type EntitySegment struct {
	Text  string
	Label string
}

// EntitySegments splits the document into plain and entity runs, for
// rendering entities inline.
func (d *Document) EntitySegments() []EntitySegment {
	var segs []EntitySegment
	pos := 0
	emit := func(s Span, label string) {
		if s.Start >= s.End {
			return
		}
		text := d.Text(s)
		if label == "" && s.End < len(d.Tokens) {
			text += d.Tokens[s.End-1].Whitespace
		}
		segs = append(segs, EntitySegment{Text: text, Label: label})
	}
	for _, e := range d.Entities {
		if e.Start < pos || e.Start >= e.End || e.End > len(d.Tokens) {
			continue
		}
		emit(Span{Start: pos, End: e.Start}, "")
		emit(e, e.Label)
		if e.End < len(d.Tokens) && d.Tokens[e.End-1].Whitespace != "" {
			segs = append(segs, EntitySegment{Text: d.Tokens[e.End-1].Whitespace})
		}
		pos = e.End
	}
	emit(Span{Start: pos, End: len(d.Tokens)}, "")
	return segs
}
