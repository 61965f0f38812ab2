package nlp

import (
	"sort"
	"strings"
)

type pronounNumber int

const (
	singular pronounNumber = iota + 1
	plural
)

var pronouns = map[string]pronounNumber{
	"he": singular, "him": singular, "his": singular, "himself": singular,
	"she": singular, "her": singular, "hers": singular, "herself": singular,
	"it": singular, "its": singular, "itself": singular,
	"they": plural, "them": plural, "their": plural, "theirs": plural, "themselves": plural,
}

// lookback is how many preceding sentences are searched for an antecedent.
const lookback = 2

// resolveChains links third-person pronouns to the subject of the current or
// a recent sentence with matching number. The subject is the first
// non-pronoun noun chunk of a sentence. One chain is produced per antecedent,
// ordered by the antecedent's position. It is a salience heuristic, not a
// trained resolver.
func resolveChains(doc *Document) []Chain {
	type subject struct {
		span   Span
		number pronounNumber
	}
	subjects := make(map[int]subject)
	for _, c := range doc.NounChunks {
		if isPronounChunk(doc, c) {
			continue
		}
		sent := doc.Tokens[c.Start].Sent
		if _, ok := subjects[sent]; ok {
			continue
		}
		n := singular
		if isPlural(doc.Tokens[c.End-1].Tag) {
			n = plural
		}
		subjects[sent] = subject{span: c, number: n}
	}

	var chains []Chain
	byStart := make(map[int]int)
	for i, tok := range doc.Tokens {
		if tok.Tag != "PRP" && tok.Tag != "PRP$" {
			continue
		}
		n, ok := pronouns[strings.ToLower(tok.Text)]
		if !ok {
			continue
		}
		for back := 0; back <= lookback; back++ {
			s, ok := subjects[tok.Sent-back]
			if !ok || s.number != n || (back == 0 && s.span.Start > i) {
				continue
			}
			ci, seen := byStart[s.span.Start]
			if !seen {
				ci = len(chains)
				byStart[s.span.Start] = ci
				chains = append(chains, Chain{Mentions: []Mention{{Spans: []Span{s.span}}}})
			}
			chains[ci].Mentions = append(chains[ci].Mentions, Mention{
				Spans:     []Span{{Start: i, End: i + 1}},
				Anaphoric: true,
			})
			break
		}
	}

	sort.SliceStable(chains, func(a, b int) bool {
		return chains[a].Mentions[0].Spans[0].Start < chains[b].Mentions[0].Spans[0].Start
	})
	return chains
}

func isPronounChunk(doc *Document, c Span) bool {
	return c.Len() == 1 && doc.Tokens[c.Start].Tag == "PRP"
}
