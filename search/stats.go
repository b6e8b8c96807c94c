package search

import (
	"cmp"
	"slices"

	"github.com/giygas/medfinder-api/index"
)

const topFacets = 10

// Facet is a value and how many products carry it.
type Facet struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// CatalogStats summarizes the catalog behind an engine.
type CatalogStats struct {
	Index          index.Stats `json:"index"`
	PriceStats     PriceStats  `json:"price_stats"`
	TopIngredients []Facet     `json:"top_ingredients"`
	TopBrands      []Facet     `json:"top_brands"`
}

// Stats is computed on first use and reused for the engine's lifetime.
func (e *Engine) Stats() CatalogStats {
	e.statsOnce.Do(func() {
		ingredients := make(map[string]int)
		for _, key := range e.idx.IngredientKeys() {
			ingredients[key] = len(e.idx.IngredientBucket(key))
		}

		brands := make(map[string]int)
		display := make(map[string]string)
		for _, p := range e.idx.Products() {
			key := brandKey(p.Brand)
			if key == "" {
				continue
			}
			if _, ok := display[key]; !ok {
				display[key] = p.Brand
			}
			brands[key]++
		}
		brandCounts := make(map[string]int, len(brands))
		for key, n := range brands {
			brandCounts[display[key]] = n
		}

		e.stats = CatalogStats{
			Index:          e.idx.Stats(),
			PriceStats:     computePriceStats(e.idx.Products()),
			TopIngredients: topN(ingredients, topFacets),
			TopBrands:      topN(brandCounts, topFacets),
		}
	})
	return e.stats
}

func topN(counts map[string]int, n int) []Facet {
	facets := make([]Facet, 0, len(counts))
	for name, count := range counts {
		facets = append(facets, Facet{Name: name, Count: count})
	}
	slices.SortFunc(facets, func(a, b Facet) int {
		if a.Count != b.Count {
			return cmp.Compare(b.Count, a.Count)
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return truncate(facets, n)
}
