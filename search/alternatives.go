package search

import (
	"slices"
	"strconv"

	"github.com/giygas/medfinder-api/catalogparser/entities"
	"github.com/giygas/medfinder-api/index"
)

// ProductWithSavings is an alternative and what switching to it saves
// relative to the reference price.
type ProductWithSavings struct {
	entities.Product
	SavingsPercent float64 `json:"savings_percent"`
	SavingsAmount  float64 `json:"savings_amount"`
}

// AlternativesResult lists the cross-brand equivalents of a reference.
// An empty Alternatives list means only the reference brand sells it.
type AlternativesResult struct {
	Reference             entities.Product     `json:"reference"`
	NormalizedComposition string               `json:"normalized_composition"`
	Alternatives          []ProductWithSavings `json:"alternatives"`
	Count                 int                  `json:"count"`
	Cheapest              *ProductWithSavings  `json:"cheapest,omitempty"`
}

// Comparison describes two medicines side by side.
type Comparison struct {
	First             entities.Product `json:"first"`
	Second            entities.Product `json:"second"`
	FirstComposition  string           `json:"first_composition"`
	SecondComposition string           `json:"second_composition"`
	Equivalent        bool             `json:"equivalent"`
	SameBrand         bool             `json:"same_brand"`
	PriceDifference   *float64         `json:"price_difference,omitempty"` // second minus first
	Cheaper           string           `json:"cheaper,omitempty"`
	SavingsPercent    float64          `json:"savings_percent"`
}

// GetAlternatives finds the products sharing the reference's composition
// signature, dosages included, sold under another brand. Bare names pick
// the first product in catalog order when the name is duplicated.
func (e *Engine) GetAlternatives(name string, maxResults int) (AlternativesResult, error) {
	defer e.observe("alternatives")()

	ref, ok := e.idx.Lookup(name)
	if !ok {
		return AlternativesResult{}, &NotFoundError{Name: name}
	}
	return e.alternativesResult(ref, maxResults), nil
}

// GetAlternativesByBrand is GetAlternatives for a duplicated name, with the
// brand picking the reference.
func (e *Engine) GetAlternativesByBrand(name, brand string, maxResults int) (AlternativesResult, error) {
	defer e.observe("alternatives")()

	ref, ok := e.idx.LookupByBrand(name, brand)
	if !ok {
		return AlternativesResult{}, &NotFoundError{Name: name}
	}
	return e.alternativesResult(ref, maxResults), nil
}

// CheapestAlternative returns the cheapest priced alternative, or nil.
func (e *Engine) CheapestAlternative(name string) (*ProductWithSavings, error) {
	res, err := e.GetAlternatives(name, 0)
	if err != nil {
		return nil, err
	}
	return res.Cheapest, nil
}

// AlternativesInPriceRange keeps alternatives priced within the given
// bounds. A nil bound is open; unpriced alternatives are dropped as soon as
// one bound is set.
func (e *Engine) AlternativesInPriceRange(name string, minPrice, maxPrice *float64, maxResults int) (AlternativesResult, error) {
	res, err := e.GetAlternatives(name, 0)
	if err != nil {
		return AlternativesResult{}, err
	}
	if minPrice == nil && maxPrice == nil {
		res.Alternatives = truncate(res.Alternatives, maxResults)
		return res, nil
	}

	var kept []ProductWithSavings
	for _, alt := range res.Alternatives {
		price, ok := alt.UnitPrice()
		if !ok {
			continue
		}
		if minPrice != nil && price < *minPrice {
			continue
		}
		if maxPrice != nil && price > *maxPrice {
			continue
		}
		kept = append(kept, alt)
	}
	return e.withAlternatives(res, kept, maxResults), nil
}

// BrandAlternatives puts alternatives from the preferred brands first,
// each group cheapest first.
func (e *Engine) BrandAlternatives(name string, preferred []string, maxResults int) (AlternativesResult, error) {
	res, err := e.GetAlternatives(name, 0)
	if err != nil {
		return AlternativesResult{}, err
	}

	wanted := make(map[string]bool, len(preferred))
	for _, b := range preferred {
		if key := brandKey(b); key != "" {
			wanted[key] = true
		}
	}

	ordered := slices.Clone(res.Alternatives)
	slices.SortStableFunc(ordered, func(a, b ProductWithSavings) int {
		pa, pb := wanted[brandKey(a.Brand)], wanted[brandKey(b.Brand)]
		switch {
		case pa && !pb:
			return -1
		case !pa && pb:
			return 1
		}
		return 0
	})
	return e.withAlternatives(res, ordered, maxResults), nil
}

// FindMedicine returns the products named exactly like name, or, failing
// that, the products whose name contains it, in catalog order.
func (e *Engine) FindMedicine(name string) ([]entities.Product, error) {
	defer e.observe("find")()

	q := index.Fold(name)
	if q == "" {
		return nil, &InvalidQueryError{Query: name, Reason: "empty name"}
	}
	if exact := e.idx.LookupAll(name); len(exact) > 0 {
		return exact, nil
	}

	ids := e.idx.ProductsWithNameContaining(q)
	if len(ids) == 0 {
		return nil, &NotFoundError{Name: name}
	}
	products := make([]entities.Product, len(ids))
	for i, id := range ids {
		products[i] = e.idx.Product(id)
	}
	return products, nil
}

// CompareMedicines reports whether two medicines are interchangeable and
// which one is cheaper.
func (e *Engine) CompareMedicines(first, second string) (Comparison, error) {
	defer e.observe("compare")()

	a, ok := e.idx.Lookup(first)
	if !ok {
		return Comparison{}, &NotFoundError{Name: first}
	}
	b, ok := e.idx.Lookup(second)
	if !ok {
		return Comparison{}, &NotFoundError{Name: second}
	}

	sigA, sigB := e.idx.Signature(a.ID), e.idx.Signature(b.ID)
	cmp := Comparison{
		First:             a,
		Second:            b,
		FirstComposition:  sigA.String(),
		SecondComposition: sigB.String(),
		Equivalent:        e.idx.Searchable(a.ID) && e.idx.Searchable(b.ID) && sigA.Equal(sigB),
		SameBrand:         brandKey(a.Brand) == brandKey(b.Brand),
	}

	pa, okA := a.UnitPrice()
	pb, okB := b.UnitPrice()
	if okA && okB {
		diff := round2(pb - pa)
		cmp.PriceDifference = &diff
		switch {
		case pa < pb:
			cmp.Cheaper = a.Name
			cmp.SavingsPercent, _ = savings(pb, pa)
		case pb < pa:
			cmp.Cheaper = b.Name
			cmp.SavingsPercent, _ = savings(pa, pb)
		}
	}
	return cmp, nil
}

func (e *Engine) alternativesResult(ref entities.Product, maxResults int) AlternativesResult {
	full := cachedResult(e, cacheKey("alternatives", strconv.Itoa(ref.ID)), func() AlternativesResult {
		return AlternativesResult{
			Reference:             ref,
			NormalizedComposition: e.idx.Signature(ref.ID).String(),
			Alternatives:          e.alternativesOf(ref),
		}
	})
	return e.withAlternatives(full, full.Alternatives, maxResults)
}

// withAlternatives recomputes Count and Cheapest for a new alternatives
// list before truncating it.
func (e *Engine) withAlternatives(res AlternativesResult, alts []ProductWithSavings, maxResults int) AlternativesResult {
	res.Count = len(alts)
	res.Cheapest = nil
	for i := range alts {
		if _, ok := alts[i].UnitPrice(); !ok {
			continue
		}
		if res.Cheapest == nil || compareByPrice(alts[i].Product, res.Cheapest.Product) < 0 {
			cheapest := alts[i]
			res.Cheapest = &cheapest
		}
	}
	res.Alternatives = nonNil(truncate(alts, maxResults))
	return res
}

func (e *Engine) alternativesOf(ref entities.Product) []ProductWithSavings {
	// An empty composition is never equivalent to anything.
	if !e.idx.Searchable(ref.ID) {
		return []ProductWithSavings{}
	}

	refBrand := brandKey(ref.Brand)
	refPrice, refPriced := ref.UnitPrice()

	var alts []ProductWithSavings
	for _, id := range e.idx.SignatureBucket(e.idx.Signature(ref.ID).Key) {
		if id == ref.ID {
			continue
		}
		p := e.idx.Product(id)
		if brandKey(p.Brand) == refBrand {
			continue
		}
		alt := ProductWithSavings{Product: p}
		if price, ok := p.UnitPrice(); ok && refPriced {
			alt.SavingsPercent, alt.SavingsAmount = savings(refPrice, price)
		}
		alts = append(alts, alt)
	}

	slices.SortFunc(alts, func(a, b ProductWithSavings) int {
		return compareByPrice(a.Product, b.Product)
	})
	return nonNil(alts)
}

// savings is clamped to [0, 100]: a pricier alternative saves nothing.
func savings(refPrice, altPrice float64) (percent, amount float64) {
	if refPrice <= 0 || altPrice >= refPrice {
		return 0, 0
	}
	percent = (refPrice - altPrice) / refPrice * 100
	percent = min(max(percent, 0), 100)
	return round2(percent), round2(refPrice - altPrice)
}
