package search

import (
	"cmp"
	"math"
	"slices"
	"strings"

	"github.com/giygas/medfinder-api/catalogparser/entities"
	"github.com/giygas/medfinder-api/index"
)

// compareByPrice orders cheapest first with unpriced products last, then
// by name, brand and catalog position so output is deterministic.
func compareByPrice(a, b entities.Product) int {
	pa, okA := a.UnitPrice()
	pb, okB := b.UnitPrice()
	switch {
	case okA && !okB:
		return -1
	case !okA && okB:
		return 1
	case okA && okB && pa != pb:
		return cmp.Compare(pa, pb)
	}
	if c := strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
		return c
	}
	if c := strings.Compare(strings.ToLower(a.Brand), strings.ToLower(b.Brand)); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

func sortByPrice(products []entities.Product) {
	slices.SortFunc(products, compareByPrice)
}

// nameTier ranks how a folded name matches a folded query: 0 prefix,
// 1 word prefix, 2 substring, -1 no match.
func nameTier(name, query string) int {
	switch {
	case strings.HasPrefix(name, query):
		return 0
	case hasWordPrefix(name, query):
		return 1
	case strings.Contains(name, query):
		return 2
	}
	return -1
}

func hasWordPrefix(s, prefix string) bool {
	for _, w := range strings.Fields(s) {
		if strings.HasPrefix(w, prefix) {
			return true
		}
	}
	return false
}

// sortByNameTier ranks products on how their name matches query, then by
// price inside a tier.
func sortByNameTier(idx *index.CatalogIndex, products []entities.Product, query string) {
	slices.SortFunc(products, func(a, b entities.Product) int {
		ta := nameTier(idx.Text(a.ID).Name, query)
		tb := nameTier(idx.Text(b.ID).Name, query)
		if ta != tb {
			return cmp.Compare(ta, tb)
		}
		return compareByPrice(a, b)
	})
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func brandKey(brand string) string {
	return index.Fold(brand)
}
