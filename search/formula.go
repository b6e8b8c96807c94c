package search

import (
	"slices"
	"strconv"
	"strings"

	"github.com/giygas/medfinder-api/catalogparser/entities"
	"github.com/giygas/medfinder-api/composition"
	"github.com/giygas/medfinder-api/index"
)

// PriceStats summarizes the priced products of a result set. Products
// without a price are left out; an empty set gives zeros.
type PriceStats struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Avg    float64 `json:"avg"`
	Priced int     `json:"priced"`
}

// FormulaResult is the answer to an ingredient or composition search.
// Count is the number of matches before Results was truncated.
type FormulaResult struct {
	Query            string             `json:"query"`
	DosageFilter     string             `json:"dosage_filter,omitempty"`
	Results          []entities.Product `json:"results"`
	Count            int                `json:"count"`
	BrandCount       int                `json:"brand_count"`
	PriceStats       PriceStats         `json:"price_stats"`
	AvailableDosages []string           `json:"available_dosages"`
}

// ProductList is a plain filtered listing.
type ProductList struct {
	Query   string             `json:"query"`
	Results []entities.Product `json:"results"`
	Count   int                `json:"count"`
}

// BrandGroup gathers the products of one brand.
type BrandGroup struct {
	Brand    string             `json:"brand"`
	Products []entities.Product `json:"products"`
	Count    int                `json:"count"`
	MinPrice *float64           `json:"min_price"`
}

// match is a product and the ingredient entries the query hit in it.
type match struct {
	id      int
	entries []composition.Ingredient
}

// SearchByIngredient returns the products containing an ingredient whose
// normalized name contains the query, cheapest first. A dosage written in
// the query ("Paracetamol 500mg") is used as the filter when dosageFilter
// is empty. A query naming several ingredients returns the products that
// contain all of them. maxResults <= 0 returns every match.
func (e *Engine) SearchByIngredient(ingredient, dosageFilter string, maxResults int) (FormulaResult, error) {
	defer e.observe("ingredient")()

	if sig := composition.Parse(ingredient); len(sig.Ingredients) > 1 {
		filter := strings.TrimSpace(dosageFilter)
		full := cachedResult(e, cacheKey("ingredients", sig.Key, filter), func() FormulaResult {
			return e.formulaResult(sig.String(), filter, e.matchFormula(sig))
		})
		full.Results = truncate(full.Results, maxResults)
		return full, nil
	}

	name, filter := splitIngredientQuery(ingredient)
	if strings.TrimSpace(dosageFilter) != "" {
		filter = strings.TrimSpace(dosageFilter)
	}
	if name == "" {
		return FormulaResult{}, &InvalidQueryError{Query: ingredient, Reason: "empty ingredient"}
	}

	full := cachedResult(e, cacheKey("ingredient", name, filter), func() FormulaResult {
		return e.formulaResult(name, filter, e.matchIngredient(name))
	})
	full.Results = truncate(full.Results, maxResults)
	return full, nil
}

// AvailableDosages lists the distinct canonical dosages of an ingredient.
func (e *Engine) AvailableDosages(ingredient string) ([]string, error) {
	res, err := e.SearchByIngredient(ingredient, "", 1)
	if err != nil {
		return nil, err
	}
	return res.AvailableDosages, nil
}

// SearchByComposition matches a whole formula. With exact set, products
// must have the same signature as the formula, dosages included. Otherwise
// every ingredient of the formula must appear in the product, and those
// written with a dosage must match it.
func (e *Engine) SearchByComposition(formula string, exact bool, dosageFilter string, maxResults int) (FormulaResult, error) {
	defer e.observe("composition")()

	sig := composition.Parse(formula)
	if sig.IsEmpty() {
		return FormulaResult{}, &InvalidQueryError{Query: formula, Reason: "empty composition"}
	}
	filter := strings.TrimSpace(dosageFilter)

	full := cachedResult(e, cacheKey("composition", sig.Key, strconv.FormatBool(exact), filter), func() FormulaResult {
		var matches []match
		if exact {
			matches = e.matchSignature(sig)
		} else {
			matches = e.matchFormula(sig)
		}
		return e.formulaResult(sig.String(), filter, matches)
	})
	full.Results = truncate(full.Results, maxResults)
	return full, nil
}

// SearchByCategory lists products tagged with a category containing the
// query, optionally narrowed to compositions containing formula.
func (e *Engine) SearchByCategory(category, formula string, maxResults int) (ProductList, error) {
	defer e.observe("category")()
	return e.filterProducts("category", category, formula, maxResults, func(text index.ProductText, q string) bool {
		for _, c := range text.Categories {
			if strings.Contains(c, q) {
				return true
			}
		}
		return false
	})
}

// SearchByBrand lists products of brands containing the query.
func (e *Engine) SearchByBrand(brand, formula string, maxResults int) (ProductList, error) {
	defer e.observe("brand")()
	return e.filterProducts("brand", brand, formula, maxResults, func(text index.ProductText, q string) bool {
		return strings.Contains(text.Brand, q)
	})
}

func (e *Engine) filterProducts(kind, query, formula string, maxResults int, keep func(index.ProductText, string) bool) (ProductList, error) {
	q := index.Fold(query)
	if q == "" {
		return ProductList{}, &InvalidQueryError{Query: query, Reason: "empty " + kind}
	}
	f := index.Fold(formula)

	full := cachedResult(e, cacheKey(kind, q, f), func() ProductList {
		var results []entities.Product
		for id, p := range e.idx.Products() {
			text := e.idx.Text(id)
			if !keep(text, q) {
				continue
			}
			if f != "" && !strings.Contains(text.Composition, f) {
				continue
			}
			results = append(results, p)
		}
		sortByPrice(results)
		return ProductList{Results: nonNil(results), Count: len(results)}
	})
	full.Query = query
	full.Results = truncate(full.Results, maxResults)
	return full, nil
}

// GroupByBrand groups products by brand, cheapest brand first.
func GroupByBrand(products []entities.Product) []BrandGroup {
	byKey := make(map[string]*BrandGroup)
	var order []string
	for _, p := range products {
		key := brandKey(p.Brand)
		g, ok := byKey[key]
		if !ok {
			g = &BrandGroup{Brand: p.Brand}
			byKey[key] = g
			order = append(order, key)
		}
		g.Products = append(g.Products, p)
		g.Count++
		if price, ok := p.UnitPrice(); ok && (g.MinPrice == nil || price < *g.MinPrice) {
			g.MinPrice = &price
		}
	}

	groups := make([]BrandGroup, 0, len(order))
	for _, key := range order {
		g := byKey[key]
		sortByPrice(g.Products)
		groups = append(groups, *g)
	}
	slices.SortStableFunc(groups, func(a, b BrandGroup) int {
		switch {
		case a.MinPrice != nil && b.MinPrice == nil:
			return -1
		case a.MinPrice == nil && b.MinPrice != nil:
			return 1
		case a.MinPrice != nil && *a.MinPrice != *b.MinPrice:
			if *a.MinPrice < *b.MinPrice {
				return -1
			}
			return 1
		}
		return strings.Compare(strings.ToLower(a.Brand), strings.ToLower(b.Brand))
	})
	return groups
}

// splitIngredientQuery separates a single-ingredient query from a dosage
// written inside it.
func splitIngredientQuery(q string) (name, dosage string) {
	sig := composition.Parse(q)
	if len(sig.Ingredients) == 1 && !sig.Ingredients[0].Unparsed {
		return sig.Ingredients[0].Name, sig.Ingredients[0].DosageText()
	}
	return composition.NormalizeIngredient(q), ""
}

func (e *Engine) matchIngredient(name string) []match {
	byID := make(map[int]*match)
	var ids []int
	for _, key := range e.idx.MatchIngredients(name) {
		for _, id := range e.idx.IngredientBucket(key) {
			m, ok := byID[id]
			if !ok {
				m = &match{id: id}
				byID[id] = m
				ids = append(ids, id)
			}
			for _, ing := range e.idx.Signature(id).Ingredients {
				if ing.Name == key {
					m.entries = append(m.entries, ing)
				}
			}
		}
	}
	slices.Sort(ids)
	out := make([]match, len(ids))
	for i, id := range ids {
		out[i] = *byID[id]
	}
	return out
}

func (e *Engine) matchSignature(sig composition.Signature) []match {
	ids := e.idx.SignatureBucket(sig.Key)
	out := make([]match, len(ids))
	for i, id := range ids {
		out[i] = match{id: id, entries: e.idx.Signature(id).Ingredients}
	}
	return out
}

// matchFormula intersects the per-ingredient matches of every ingredient
// in sig.
func (e *Engine) matchFormula(sig composition.Signature) []match {
	var result map[int][]composition.Ingredient
	for _, want := range sig.Ingredients {
		if want.Unparsed {
			return nil
		}
		current := make(map[int][]composition.Ingredient)
		for _, m := range e.matchIngredient(want.Name) {
			var hits []composition.Ingredient
			for _, ing := range m.entries {
				if want.Dosage == nil || (ing.Dosage != nil && ing.Dosage.Equal(*want.Dosage)) {
					hits = append(hits, ing)
				}
			}
			if len(hits) == 0 {
				continue
			}
			if result != nil {
				prev, ok := result[m.id]
				if !ok {
					continue
				}
				hits = append(prev, hits...)
			}
			current[m.id] = hits
		}
		result = current
	}

	ids := make([]int, 0, len(result))
	for id := range result {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([]match, len(ids))
	for i, id := range ids {
		out[i] = match{id: id, entries: result[id]}
	}
	return out
}

// formulaResult collects the dosage facets over all matches, applies the
// dosage filter, then sorts and summarizes what is left.
func (e *Engine) formulaResult(query, filter string, matches []match) FormulaResult {
	var dosages []composition.Dosage
	seen := make(map[string]bool)
	for _, m := range matches {
		for _, ing := range m.entries {
			if ing.Dosage == nil || seen[ing.Dosage.String()] {
				continue
			}
			seen[ing.Dosage.String()] = true
			dosages = append(dosages, *ing.Dosage)
		}
	}
	slices.SortFunc(dosages, func(a, b composition.Dosage) int {
		switch {
		case a.Less(b):
			return -1
		case b.Less(a):
			return 1
		}
		return 0
	})
	available := make([]string, len(dosages))
	for i, d := range dosages {
		available[i] = d.String()
	}

	keep := dosageMatcher(filter)
	var results []entities.Product
	brands := make(map[string]bool)
	for _, m := range matches {
		if !keep(m.entries) {
			continue
		}
		p := e.idx.Product(m.id)
		results = append(results, p)
		if key := brandKey(p.Brand); key != "" {
			brands[key] = true
		}
	}
	sortByPrice(results)

	return FormulaResult{
		Query:            query,
		DosageFilter:     filter,
		Results:          nonNil(results),
		Count:            len(results),
		BrandCount:       len(brands),
		PriceStats:       computePriceStats(results),
		AvailableDosages: available,
	}
}

// dosageMatcher compares parsed dosages canonically, so 0.5g matches 500mg.
// A filter that does not parse is matched as text against canonical dosages.
func dosageMatcher(filter string) func([]composition.Ingredient) bool {
	if filter == "" {
		return func([]composition.Ingredient) bool { return true }
	}
	if want, ok := composition.ParseDosage(filter); ok {
		return func(entries []composition.Ingredient) bool {
			for _, ing := range entries {
				if ing.Dosage != nil && ing.Dosage.Equal(want) {
					return true
				}
			}
			return false
		}
	}
	text := strings.ToLower(strings.Join(strings.Fields(filter), ""))
	return func(entries []composition.Ingredient) bool {
		for _, ing := range entries {
			if ing.Dosage != nil && strings.Contains(ing.DosageText(), text) {
				return true
			}
		}
		return false
	}
}

func computePriceStats(products []entities.Product) PriceStats {
	var stats PriceStats
	var sum float64
	for _, p := range products {
		price, ok := p.UnitPrice()
		if !ok {
			continue
		}
		if stats.Priced == 0 || price < stats.Min {
			stats.Min = price
		}
		if stats.Priced == 0 || price > stats.Max {
			stats.Max = price
		}
		sum += price
		stats.Priced++
	}
	if stats.Priced > 0 {
		stats.Avg = round2(sum / float64(stats.Priced))
	}
	return stats
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
