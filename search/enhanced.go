package search

import (
	"cmp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/giygas/medfinder-api/catalogparser/entities"
	"github.com/giygas/medfinder-api/index"
)

// AutocompleteResult holds name and composition suggestions for a prefix.
type AutocompleteResult struct {
	Query        string   `json:"query"`
	Medicines    []string `json:"medicines"`
	Compositions []string `json:"compositions"`
}

// ScoredProduct is a multi-field search hit.
type ScoredProduct struct {
	entities.Product
	Score         int      `json:"score"`
	MatchedFields []string `json:"matched_fields"`
}

// MultiFieldResult is the answer to a multi-field search.
type MultiFieldResult struct {
	Query   string          `json:"query"`
	Results []ScoredProduct `json:"results"`
	Count   int             `json:"count"`
}

// Autocomplete suggests names ranked full-name prefix first, then word
// prefix, then substring, alphabetical inside each tier, along with the
// distinct compositions whose ingredients match the same way. Input
// shorter than MinQueryLength returns empty lists without touching the
// index.
func (e *Engine) Autocomplete(prefix string, maxSuggestions int) AutocompleteResult {
	q := index.Fold(prefix)
	if utf8.RuneCountInString(q) < MinQueryLength {
		return AutocompleteResult{Query: prefix, Medicines: []string{}, Compositions: []string{}}
	}
	defer e.observe("autocomplete")()

	full := cachedResult(e, cacheKey("autocomplete", q), func() AutocompleteResult {
		return AutocompleteResult{
			Medicines:    e.suggestNames(q),
			Compositions: e.suggestCompositions(q),
		}
	})
	return AutocompleteResult{
		Query:        prefix,
		Medicines:    truncate(full.Medicines, maxSuggestions),
		Compositions: truncate(full.Compositions, maxSuggestions),
	}
}

// AutocompleteBrand suggests brands starting with, then containing, prefix.
func (e *Engine) AutocompleteBrand(prefix string, maxSuggestions int) []string {
	q := index.Fold(prefix)
	if utf8.RuneCountInString(q) < MinQueryLength {
		return []string{}
	}
	defer e.observe("autocomplete_brand")()

	full := cachedResult(e, cacheKey("brands", q), func() []string {
		var starts, contains []string
		for _, brand := range e.idx.BrandsContaining(q) {
			if strings.HasPrefix(index.Fold(brand), q) {
				starts = append(starts, brand)
			} else {
				contains = append(contains, brand)
			}
		}
		return nonNil(append(starts, contains...))
	})
	return truncate(full, maxSuggestions)
}

func (e *Engine) suggestNames(q string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, tier := range [][]string{
		e.idx.NamesWithPrefix(q),
		e.idx.NamesWithWordPrefix(q),
		e.idx.NamesContaining(q),
	} {
		for _, name := range tier {
			if seen[name] {
				continue
			}
			seen[name] = true
			out = append(out, name)
		}
	}
	return nonNil(out)
}

func (e *Engine) suggestCompositions(q string) []string {
	type ranked struct {
		raw, folded string
		tier        int
	}
	var hits []ranked
	for _, c := range e.idx.Compositions() {
		best := -1
		for _, ing := range c.Ingredients {
			if t := nameTier(ing, q); t >= 0 && (best < 0 || t < best) {
				best = t
			}
		}
		if best < 0 {
			continue
		}
		hits = append(hits, ranked{raw: c.Raw, folded: index.Fold(c.Raw), tier: best})
	}
	slices.SortFunc(hits, func(a, b ranked) int {
		if a.tier != b.tier {
			return cmp.Compare(a.tier, b.tier)
		}
		if c := strings.Compare(a.folded, b.folded); c != 0 {
			return c
		}
		return strings.Compare(a.raw, b.raw)
	})

	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.raw
	}
	return out
}

const (
	scoreExact  = 10
	scorePrefix = 5
	scoreSubstr = 1
)

var fieldWeights = []struct {
	name   string
	weight int
}{
	{"name", 3},
	{"composition", 2},
	{"brand", 1},
	{"categories", 1},
}

// MultiFieldSearch scores every product on name, composition, brand and
// categories. Each field scores 10 on an exact match, 5 on a prefix or word
// prefix and 1 on a substring, weighted name first.
func (e *Engine) MultiFieldSearch(query string, maxResults int) (MultiFieldResult, error) {
	q := index.Fold(query)
	if utf8.RuneCountInString(q) < MinQueryLength {
		return MultiFieldResult{}, &InvalidQueryError{Query: query, Reason: "query too short"}
	}
	defer e.observe("multi")()

	full := cachedResult(e, cacheKey("multi", q), func() MultiFieldResult {
		var hits []ScoredProduct
		for id, p := range e.idx.Products() {
			text := e.idx.Text(id)
			fields := [][]string{{text.Name}, {text.Composition}, {text.Brand}, text.Categories}

			hit := ScoredProduct{Product: p}
			for i, values := range fields {
				best := 0
				for _, v := range values {
					best = max(best, fieldScore(v, q))
				}
				if best > 0 {
					hit.Score += best * fieldWeights[i].weight
					hit.MatchedFields = append(hit.MatchedFields, fieldWeights[i].name)
				}
			}
			if hit.Score > 0 {
				hits = append(hits, hit)
			}
		}
		slices.SortFunc(hits, func(a, b ScoredProduct) int {
			if a.Score != b.Score {
				return cmp.Compare(b.Score, a.Score)
			}
			return compareByName(a.Product, b.Product)
		})
		return MultiFieldResult{Query: query, Results: nonNil(hits), Count: len(hits)}
	})
	full.Query = query
	full.Results = truncate(full.Results, maxResults)
	return full, nil
}

func fieldScore(value, q string) int {
	switch {
	case value == "":
		return 0
	case value == q:
		return scoreExact
	case strings.HasPrefix(value, q) || hasWordPrefix(value, q):
		return scorePrefix
	case strings.Contains(value, q):
		return scoreSubstr
	}
	return 0
}

func compareByName(a, b entities.Product) int {
	if c := strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
		return c
	}
	if c := strings.Compare(strings.ToLower(a.Brand), strings.ToLower(b.Brand)); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}
