package nlp

import "strings"

func isNoun(tag string) bool {
	switch tag {
	case "NN", "NNS", "NNP", "NNPS":
		return true
	}
	return false
}

func isPlural(tag string) bool {
	return tag == "NNS" || tag == "NNPS"
}

func isDeterminer(tag string) bool {
	switch tag {
	case "DT", "PDT", "PRP$", "WP$":
		return true
	}
	return false
}

func isModifier(tag string) bool {
	switch tag {
	case "JJ", "JJR", "JJS", "CD", "VBN", "VBG":
		return true
	}
	return isNoun(tag)
}

func isAdverb(tag string) bool {
	return tag == "RB" || tag == "RBR" || tag == "RBS"
}

// IsPunct reports whether a Penn tag marks punctuation.
func IsPunct(tag string) bool {
	switch tag {
	case ".", ",", ":", "``", "''", "-LRB-", "-RRB-", "(", ")", "#", "$", "HYPH", "NFP":
		return true
	}
	return tag != "" && strings.Trim(tag, `.,:;!?'"()[]{}-`) == ""
}

// Chunk finds base noun phrases in a tagged token sequence. A chunk is an
// optional determiner, then modifiers and nouns, ending on a noun. Adverbs
// are kept only when they modify a following adjective ("the most populous
// city"), and a possessive marker may join two nouns. A personal pronoun is a
// chunk on its own. Chunks never cross sentence boundaries.
func Chunk(tokens []Token) []Span {
	var chunks []Span
	i := 0
	for i < len(tokens) {
		tag := tokens[i].Tag
		if tag == "PRP" {
			chunks = append(chunks, Span{Start: i, End: i + 1})
			i++
			continue
		}

		start := i
		j := i
		sent := tokens[i].Sent
		if isDeterminer(tag) {
			j++
		}
		lastNoun := -1
	scan:
		for j < len(tokens) && tokens[j].Sent == sent {
			t := tokens[j].Tag
			switch {
			case isModifier(t):
				if isNoun(t) {
					lastNoun = j
				}
			case isAdverb(t) && j+1 < len(tokens) && strings.HasPrefix(tokens[j+1].Tag, "JJ"):
			case t == "POS" && lastNoun >= 0 && lastNoun == j-1:
			default:
				break scan
			}
			j++
		}
		if lastNoun >= 0 {
			chunks = append(chunks, Span{Start: start, End: lastNoun + 1})
			i = lastNoun + 1
			continue
		}
		i = start + 1
	}
	return chunks
}
