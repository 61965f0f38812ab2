// Package extract derives naive subject–object relationships from sentences.
package extract

import (
	"strings"

	"github.com/TobiSchelling/WikiGraph/internal/nlp"
)

// LabelWords is the number of connector words kept in an edge label.
const LabelWords = 5

// Triple is a (subject, object, connector) relationship. The zero value
// means no relationship was found.
type Triple struct {
	Subject   string
	Object    string
	Connector string
}

// Found reports whether both ends of the relationship are present.
func (t Triple) Found() bool {
	return t.Subject != "" && t.Object != ""
}

// Relationship takes the first noun chunk of the sentence as subject and the
// last later chunk as object; the connector is the text strictly between
// them. Chunks in the middle are ignored. With fewer than two chunks the
// zero Triple is returned.
func Relationship(doc *nlp.Document, sentence nlp.Span) Triple {
	var first, last *nlp.Span
	chunks := doc.ChunksIn(sentence)
	for i := range chunks {
		if first == nil {
			first = &chunks[i]
		} else {
			last = &chunks[i]
		}
	}
	if first == nil || last == nil {
		return Triple{}
	}
	return Triple{
		Subject:   strings.TrimSpace(doc.Text(*first)),
		Object:    strings.TrimSpace(doc.Text(*last)),
		Connector: strings.TrimSpace(doc.Text(nlp.Span{Start: first.End, End: last.Start})),
	}
}

// Label shortens a connector to its first LabelWords words, adding "..."
// when words were dropped. Shorter connectors are returned unchanged.
func Label(text string) string {
	words := strings.Fields(text)
	if len(words) <= LabelWords {
		return text
	}
	return strings.Join(words[:LabelWords], " ") + "..."
}
