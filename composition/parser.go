// Package composition turns free-text composition strings such as
// "Paracetamol (500mg) + Caffeine (65mg)" into order-independent signatures
// of normalized ingredients and dosages.
package composition

import (
	"fmt"
	"regexp"
	"strings"
)

// ParseWarning reports a composition that could only be partly understood.
// It never stops a parse.
type ParseWarning struct {
	Raw     string
	Segment string
	Reason  string
}

func (w ParseWarning) Error() string {
	if w.Segment == "" {
		return fmt.Sprintf("composition %q: %s", w.Raw, w.Reason)
	}
	return fmt.Sprintf("composition %q, segment %q: %s", w.Raw, w.Segment, w.Reason)
}

var (
	// A dosage directly before a '/' and a number or volume unit after it
	// means the slash belongs to a concentration, not a combination.
	concentrationLeft  = regexp.MustCompile(`\d\s*(?:kg|mcg|µg|μg|ug|ng|mg|gm|g|miu|iu)\s*$`)
	concentrationRight = regexp.MustCompile(`^\s*(?:\d|ml\b|l\b)`)
	digitRegex         = regexp.MustCompile(`\d`)
)

// Parse returns the signature of a raw composition. It never fails: input
// with no recognizable ingredient yields a single unparsed ingredient holding
// the cleaned text, so such entries still match their exact duplicates.
func Parse(raw string) Signature {
	sig, _ := Analyze(raw)
	return sig
}

// Analyze is Parse plus the warnings collected on the way.
func Analyze(raw string) (Signature, []ParseWarning) {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return Signature{}, nil
	}

	var warnings []ParseWarning
	if !balanced(cleaned) {
		warnings = append(warnings, ParseWarning{Raw: raw, Reason: "unbalanced parentheses"})
	}

	var ingredients []Ingredient
	for _, segment := range splitSegments(cleaned) {
		ing, warn := parseSegment(segment)
		if warn != "" {
			warnings = append(warnings, ParseWarning{Raw: raw, Segment: segment, Reason: warn})
		}
		if ing.Name != "" {
			ingredients = append(ingredients, ing)
		}
	}

	if len(ingredients) == 0 {
		warnings = append(warnings, ParseWarning{Raw: raw, Reason: "no ingredient recognized"})
		name := foldText(cleaned)
		if name == "" {
			name = cleaned
		}
		ingredients = []Ingredient{{Name: name, Unparsed: true}}
	}

	return newSignature(ingredients), warnings
}

// NormalizeComposition renders raw in canonical form. Parsing the result
// yields the same signature, so the function is idempotent.
func NormalizeComposition(raw string) string {
	return Parse(raw).String()
}

// splitSegments splits on '+', ',' and '/' outside parentheses.
func splitSegments(s string) []string {
	var segments []string
	depth := 0
	start := 0
	for i, r := range s {
		switch r {
		case '(', '[':
			depth++
		case ')', ']':
			if depth > 0 {
				depth--
			}
		case '+', ',', '/':
			if depth > 0 {
				continue
			}
			if r == '/' && concentrationLeft.MatchString(strings.ToLower(s[start:i])) &&
				concentrationRight.MatchString(strings.ToLower(s[i+1:])) {
				continue
			}
			segments = append(segments, s[start:i])
			start = i + 1
		}
	}
	segments = append(segments, s[start:])

	out := segments[:0]
	for _, seg := range segments {
		if seg = strings.TrimSpace(seg); seg != "" {
			out = append(out, seg)
		}
	}
	return out
}

// parseSegment extracts one ingredient. The returned reason is non-empty when
// something in the segment looked like a dosage but could not be read.
func parseSegment(segment string) (Ingredient, string) {
	var (
		dosage     *Dosage
		unreadable bool
	)
	for _, group := range parentheticals(segment) {
		if d, ok := ParseDosage(group); ok {
			dosage = &d
			break
		}
		if digitRegex.MatchString(group) {
			unreadable = true
		}
	}

	name := strings.TrimSpace(stripParentheticals(segment))
	if dosage == nil {
		if m := trailingDosageRegex.FindStringSubmatch(strings.ToLower(name)); m != nil {
			if d, ok := buildDosage(m[2], m[3], m[4], m[5]); ok {
				dosage = &d
				name = m[1]
				unreadable = false
			}
		}
	}

	ing := Ingredient{Name: foldText(name), Dosage: dosage}
	if dosage == nil && unreadable {
		return ing, "unrecognized dosage"
	}
	return ing, ""
}

// parentheticals returns the contents of each top-level (...) group.
func parentheticals(s string) []string {
	var groups []string
	depth := 0
	start := -1
	for i, r := range s {
		switch r {
		case '(':
			if depth == 0 {
				start = i + 1
			}
			depth++
		case ')':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 && start >= 0 {
				groups = append(groups, s[start:i])
				start = -1
			}
		}
	}
	return groups
}

func balanced(s string) bool {
	depth := 0
	for _, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return false
			}
		}
	}
	return depth == 0
}
