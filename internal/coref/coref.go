// Package coref rewrites annotated text so that anaphors carry the text of
// the entity they refer to.
package coref

import (
	"errors"
	"fmt"
	"strings"

	"github.com/TobiSchelling/WikiGraph/internal/nlp"
)

// ErrUnavailable is returned when the document carries no coreference data.
var ErrUnavailable = errors.New("coreference resolution unavailable")

// Resolve rebuilds the document text token by token. A token the model
// resolves is replaced by its antecedent mentions joined with " and ";
// punctuation is appended without a leading space; every other token is
// prefixed with a space. On error the text built so far is returned with it.
func Resolve(doc *nlp.Document) (string, error) {
	if !doc.CorefAvailable {
		return "", ErrUnavailable
	}
	var b strings.Builder
	for i, tok := range doc.Tokens {
		spans, err := doc.Resolve(i)
		if err != nil {
			return b.String(), fmt.Errorf("resolving token %d %q: %w", i, tok.Text, err)
		}
		switch {
		case len(spans) > 0:
			parts := make([]string, len(spans))
			for j, s := range spans {
				parts[j] = doc.Text(s)
			}
			b.WriteString(" " + strings.Join(parts, " and "))
		case tok.Dep == "punct":
			b.WriteString(tok.Text)
		default:
			b.WriteString(" " + tok.Text)
		}
	}
	return b.String(), nil
}

// Listing describes every chain as its mentions joined with " → ".
func Listing(doc *nlp.Document) []string {
	out := make([]string, 0, len(doc.Chains))
	for _, ch := range doc.Chains {
		mentions := make([]string, 0, len(ch.Mentions))
		for _, m := range ch.Mentions {
			mentions = append(mentions, doc.MentionText(m))
		}
		out = append(out, strings.Join(mentions, " → "))
	}
	return out
}
