package composition

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const trimCutset = " \t.,;:-*"

// NormalizeIngredient folds an ingredient name to its index key:
// parentheticals dropped, accents stripped, case-folded, whitespace collapsed.
// It is idempotent.
func NormalizeIngredient(name string) string {
	return foldText(stripParentheticals(name))
}

// NormalizeQuery folds free text the same way ingredient and product names are folded.
func NormalizeQuery(q string) string {
	return foldText(q)
}

// foldText creates its transformers per call; they carry state and the
// parser runs on many goroutines during an index build.
func foldText(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if out, _, err := transform.String(t, s); err == nil {
		s = out
	}
	s = cases.Fold().String(s)
	s = strings.Trim(s, trimCutset)
	return strings.Join(strings.Fields(s), " ")
}

// stripParentheticals removes every (...) and [...] group, nested or not.
// An unclosed group swallows the rest of the string.
func stripParentheticals(s string) string {
	var b strings.Builder
	depth := 0
	for _, r := range s {
		switch r {
		case '(', '[':
			depth++
			continue
		case ')', ']':
			if depth > 0 {
				depth--
				b.WriteRune(' ')
				continue
			}
		}
		if depth == 0 {
			b.WriteRune(r)
		}
	}
	return b.String()
}
