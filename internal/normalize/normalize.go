// Package normalize cleans Wikipedia plain-text extracts before annotation.
package normalize

import (
	"regexp"
	"strings"
)

// markup matches, in order of preference at each position: the "see also"
// section and everything after it, stray annotation characters, level-3 and
// level-2 section headers, and parenthetical asides.
var markup = regexp.MustCompile(`== see also ==.*|[@#:&"]|===.*?===|==.*?==|\(.*?\)`)

// Text lowercases raw article text, drops newlines and erases markup.
//
// Erasing one match can expose another (e.g. "=(x)==(y)=" collapses to
// "===="), so the substitution repeats until nothing changes. This makes
// Text idempotent.
func Text(raw string) string {
	text := strings.ReplaceAll(strings.ToLower(raw), "\n", "")
	for {
		next := markup.ReplaceAllString(text, "")
		if next == text {
			return text
		}
		text = next
	}
}
