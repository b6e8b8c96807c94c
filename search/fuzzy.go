package search

import (
	"math"
	"slices"
	"strings"

	"github.com/giygas/medfinder-api/catalogparser/entities"
	"github.com/giygas/medfinder-api/index"
	"github.com/giygas/medfinder-api/logging"
	"github.com/hbollon/go-edlib"
)

// FuzzyResult is the answer to a misspelling-tolerant search.
// CorrectedQuery is set when the best match cleared the suggest threshold;
// AutoApplied tells whether Results already follow it.
type FuzzyResult struct {
	Query          string             `json:"query"`
	Results        []entities.Product `json:"results"`
	Count          int                `json:"count"`
	CorrectedQuery string             `json:"corrected_query,omitempty"`
	Similarity     float64            `json:"similarity"`
	AutoApplied    bool               `json:"auto_applied"`
}

type scoredKey struct {
	index.FuzzyKey
	score float64
}

// FuzzySearch looks names up by substring first. When nothing contains the
// query, it compares the query against the names sharing its first letter
// or length bucket and acts on the best similarity: at or above the
// auto-apply threshold the correction is applied, between the two
// thresholds it is only suggested, below the suggest threshold nothing is
// returned.
func (e *Engine) FuzzySearch(query string, maxResults int) (FuzzyResult, error) {
	q := index.Fold(query)
	if q == "" {
		return FuzzyResult{}, &InvalidQueryError{Query: query, Reason: "empty query"}
	}
	defer e.observe("fuzzy")()

	full := cachedResult(e, cacheKey("fuzzy", q), func() FuzzyResult {
		return e.fuzzySearch(q)
	})
	full.Query = query
	full.Results = truncate(full.Results, maxResults)
	return full, nil
}

// SuggestCorrection returns the closest known name when it clears the
// suggest threshold.
func (e *Engine) SuggestCorrection(query string) (string, float64, bool) {
	q := index.Fold(query)
	if q == "" {
		return "", 0, false
	}
	ranked := e.rankCandidates(q)
	if len(ranked) == 0 || ranked[0].score < e.settings.SuggestThreshold {
		return "", 0, false
	}
	return ranked[0].Display, ranked[0].score, true
}

func (e *Engine) fuzzySearch(q string) FuzzyResult {
	if ids := e.idx.ProductsWithNameContaining(q); len(ids) > 0 {
		products := e.products(ids)
		sortByNameTier(e.idx, products, q)
		return FuzzyResult{Results: products, Count: len(products), Similarity: 1}
	}

	ranked := e.rankCandidates(q)
	if len(ranked) == 0 {
		return FuzzyResult{Results: []entities.Product{}}
	}
	best := ranked[0]

	switch {
	case best.score >= e.settings.AutoApplyThreshold:
		products := e.productsForKey(best.Key)
		logging.Debug("Fuzzy correction applied", "query", q, "corrected", best.Display, "similarity", best.score)
		return FuzzyResult{
			Results:        products,
			Count:          len(products),
			CorrectedQuery: best.Display,
			Similarity:     best.score,
			AutoApplied:    true,
		}

	case best.score >= e.settings.SuggestThreshold:
		seen := make(map[int]bool)
		var products []entities.Product
		for _, c := range ranked {
			if c.score < e.settings.SuggestThreshold {
				break
			}
			for _, p := range e.productsForKey(c.Key) {
				if !seen[p.ID] {
					seen[p.ID] = true
					products = append(products, p)
				}
			}
		}
		return FuzzyResult{
			Results:        products,
			Count:          len(products),
			CorrectedQuery: best.Display,
			Similarity:     best.score,
		}
	}

	// Below the suggest threshold this is no match; the score is still reported.
	return FuzzyResult{Results: []entities.Product{}, Similarity: best.score}
}

// rankCandidates scores the bucketed fuzzy keys, best first.
func (e *Engine) rankCandidates(q string) []scoredKey {
	candidates := e.idx.FuzzyCandidates(q)
	ranked := make([]scoredKey, 0, len(candidates))
	for _, c := range candidates {
		sim, err := edlib.StringsSimilarity(q, c.Key, e.algorithm)
		if err != nil {
			continue
		}
		ranked = append(ranked, scoredKey{FuzzyKey: c, score: roundScore(float64(sim))})
	}
	slices.SortFunc(ranked, func(a, b scoredKey) int {
		switch {
		case a.score > b.score:
			return -1
		case a.score < b.score:
			return 1
		}
		// Shorter keys first, so "panadol" beats "panadol cf" on a tie.
		if len(a.Key) != len(b.Key) {
			return len(a.Key) - len(b.Key)
		}
		return strings.Compare(a.Key, b.Key)
	})
	return ranked
}

// productsForKey returns products whose folded name is key or starts with
// key as whole words, name then price ordered.
func (e *Engine) productsForKey(key string) []entities.Product {
	var products []entities.Product
	for _, name := range e.idx.NamesWithPrefix(key) {
		folded := index.Fold(name)
		if folded != key && !strings.HasPrefix(folded, key+" ") {
			continue
		}
		all := e.idx.LookupAll(name)
		sortByPrice(all)
		products = append(products, all...)
	}
	return nonNil(products)
}

func (e *Engine) products(ids []int) []entities.Product {
	out := make([]entities.Product, len(ids))
	for i, id := range ids {
		out[i] = e.idx.Product(id)
	}
	return out
}

func roundScore(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
