package search

import (
	"errors"
	"reflect"
	"testing"

	"github.com/giygas/medfinder-api/catalogparser/entities"
)

func namedCatalog(names ...string) []entities.Product {
	products := make([]entities.Product, len(names))
	for i, name := range names {
		products[i] = entities.Product{Name: name, Brand: "Brand", RawComposition: "Paracetamol (500mg)", Price: price(float64(i + 1))}
	}
	return catalog(products...)
}

func TestAutocompleteTiers(t *testing.T) {
	engine := newTestEngine(t, namedCatalog(
		"Co-Panadol", "Panazol", "Extra Pana", "Panadol Joint", "Panamor", "Panadol CF", "Panadol Extra", "Brufen",
	))

	res := engine.Autocomplete("pana", 5)
	expected := []string{"Panadol CF", "Panadol Extra", "Panadol Joint", "Panamor", "Panazol"}
	if !reflect.DeepEqual(res.Medicines, expected) {
		t.Errorf("Expected %v, got %v", expected, res.Medicines)
	}

	res = engine.Autocomplete("PANA", 0)
	expected = append(expected, "Extra Pana", "Co-Panadol")
	if !reflect.DeepEqual(res.Medicines, expected) {
		t.Errorf("Expected prefix, then word prefix, then substring: %v, got %v", expected, res.Medicines)
	}
	if res.Query != "PANA" {
		t.Errorf("Expected the query echoed, got %q", res.Query)
	}
}

func TestAutocompleteShortInput(t *testing.T) {
	engine := newTestEngine(t, pharmacyCatalog())

	for _, q := range []string{"", "p", "  a  "} {
		res := engine.Autocomplete(q, 10)
		if res.Medicines == nil || res.Compositions == nil {
			t.Errorf("Expected non-nil lists for %q", q)
		}
		if len(res.Medicines) != 0 || len(res.Compositions) != 0 {
			t.Errorf("Expected empty lists for %q, got %v and %v", q, res.Medicines, res.Compositions)
		}
	}
}

func TestAutocompleteCompositions(t *testing.T) {
	engine := newTestEngine(t, pharmacyCatalog())

	res := engine.Autocomplete("caf", 10)
	expected := []string{
		"Caffeine (65mg) + Paracetamol (500mg)",
		"Paracetamol (500mg) + Caffeine (65mg)",
	}
	if !reflect.DeepEqual(res.Compositions, expected) {
		t.Errorf("Expected %v, got %v", expected, res.Compositions)
	}
	if len(res.Medicines) != 0 {
		t.Errorf("Expected no medicine names, got %v", res.Medicines)
	}

	res = engine.Autocomplete("ibu", 10)
	if !reflect.DeepEqual(res.Compositions, []string{"Ibuprofen (400mg)"}) {
		t.Errorf("Expected [Ibuprofen (400mg)], got %v", res.Compositions)
	}
}

func TestAutocompleteIsDeterministic(t *testing.T) {
	engine := newTestEngine(t, pharmacyCatalog())

	first := engine.Autocomplete("pa", 10)
	for i := 0; i < 5; i++ {
		if again := engine.Autocomplete("pa", 10); !reflect.DeepEqual(first, again) {
			t.Fatalf("Expected identical suggestions, got %v then %v", first, again)
		}
	}
}

func TestAutocompleteBrand(t *testing.T) {
	products := catalog(
		entities.Product{Name: "A", Brand: "Haleon"},
		entities.Product{Name: "B", Brand: "GSK Haleon"},
		entities.Product{Name: "C", Brand: "Abbott"},
	)
	engine := newTestEngine(t, products)

	if got := engine.AutocompleteBrand("hal", 10); !reflect.DeepEqual(got, []string{"Haleon", "GSK Haleon"}) {
		t.Errorf("Expected prefix matches first, got %v", got)
	}
	if got := engine.AutocompleteBrand("h", 10); len(got) != 0 {
		t.Errorf("Expected no suggestions for a one-letter prefix, got %v", got)
	}
}

func TestMultiFieldSearch(t *testing.T) {
	engine := newTestEngine(t, pharmacyCatalog())

	res, err := engine.MultiFieldSearch("brufen", 10)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if res.Count != 1 || res.Results[0].Score != 30 || !reflect.DeepEqual(res.Results[0].MatchedFields, []string{"name"}) {
		t.Errorf("Expected an exact name hit scoring 30, got %+v", res.Results)
	}

	res, _ = engine.MultiFieldSearch("calpol", 10)
	if got := []string{res.Results[0].Name, res.Results[1].Name}; !reflect.DeepEqual(got, []string{"Calpol Six Plus", "Calpol Syrup"}) {
		t.Errorf("Expected equal scores ordered by name, got %v", got)
	}

	res, _ = engine.MultiFieldSearch("pain relief", 10)
	for _, hit := range res.Results {
		if !reflect.DeepEqual(hit.MatchedFields, []string{"categories"}) {
			t.Errorf("Expected a category match for %s, got %v", hit.Name, hit.MatchedFields)
		}
	}

	if _, err := engine.MultiFieldSearch("x", 10); !errors.Is(err, ErrInvalidQuery) {
		t.Errorf("Expected ErrInvalidQuery, got %v", err)
	}
}

func fuzzyCatalog() []entities.Product {
	return namedCatalog("Panadol", "Panadol Extra", "Brufen", "Xylometazoline Nasal")
}

func TestFuzzySearchAutoApplies(t *testing.T) {
	engine := newTestEngine(t, fuzzyCatalog())

	res, err := engine.FuzzySearch("Panodol", 5)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if res.CorrectedQuery != "Panadol" {
		t.Errorf("Expected corrected query Panadol, got %q", res.CorrectedQuery)
	}
	if !res.AutoApplied {
		t.Error("Expected the correction to be applied")
	}
	if res.Similarity < engine.Settings().AutoApplyThreshold {
		t.Errorf("Expected similarity above the auto-apply threshold, got %v", res.Similarity)
	}
	if got := productNames(res.Results); !reflect.DeepEqual(got, []string{"Panadol", "Panadol Extra"}) {
		t.Errorf("Expected the corrected query's products, got %v", got)
	}
}

func TestFuzzySearchSuggestsBetweenThresholds(t *testing.T) {
	s := DefaultSettings()
	s.CacheMaxEntries = 0
	s.AutoApplyThreshold = 0.95
	engine := newTestEngine(t, fuzzyCatalog(), s)

	res, _ := engine.FuzzySearch("Panodol", 5)
	if res.CorrectedQuery != "Panadol" || res.AutoApplied {
		t.Errorf("Expected a suggestion that is not applied, got %+v", res)
	}
	if len(res.Results) == 0 || res.Results[0].Name != "Panadol" {
		t.Errorf("Expected ranked candidate results, got %v", productNames(res.Results))
	}
}

func TestFuzzySearchBelowThreshold(t *testing.T) {
	engine := newTestEngine(t, fuzzyCatalog())

	res, err := engine.FuzzySearch("Pxqzvwk", 5)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(res.Results) != 0 || res.Count != 0 {
		t.Errorf("Expected no results, got %v", productNames(res.Results))
	}
	if res.CorrectedQuery != "" || res.AutoApplied {
		t.Errorf("Expected no suggestion, got %+v", res)
	}
	if res.Similarity >= engine.Settings().SuggestThreshold {
		t.Errorf("Expected a low similarity, got %v", res.Similarity)
	}
}

func TestFuzzySearchSubstringHit(t *testing.T) {
	engine := newTestEngine(t, fuzzyCatalog())

	res, _ := engine.FuzzySearch("nadol", 5)
	if res.Similarity != 1 || res.CorrectedQuery != "" {
		t.Errorf("Expected a direct hit without correction, got %+v", res)
	}
	if got := productNames(res.Results); !reflect.DeepEqual(got, []string{"Panadol", "Panadol Extra"}) {
		t.Errorf("Unexpected results: %v", got)
	}

	res, _ = engine.FuzzySearch("extra", 5)
	if got := productNames(res.Results); !reflect.DeepEqual(got, []string{"Panadol Extra"}) {
		t.Errorf("Unexpected results: %v", got)
	}

	if _, err := engine.FuzzySearch(" ", 5); !errors.Is(err, ErrInvalidQuery) {
		t.Errorf("Expected ErrInvalidQuery, got %v", err)
	}
}

func TestSuggestCorrection(t *testing.T) {
	engine := newTestEngine(t, fuzzyCatalog())

	name, score, ok := engine.SuggestCorrection("brufem")
	if !ok || name != "Brufen" {
		t.Errorf("Expected Brufen, got %q (%v, ok=%v)", name, score, ok)
	}
	if _, _, ok := engine.SuggestCorrection("qqqqqq"); ok {
		t.Error("Expected no suggestion for an unrelated query")
	}
}

func TestStats(t *testing.T) {
	engine := newTestEngine(t, pharmacyCatalog())

	stats := engine.Stats()
	if stats.Index.Products != 11 {
		t.Errorf("Expected 11 products, got %d", stats.Index.Products)
	}
	if len(stats.TopBrands) == 0 || stats.TopBrands[0] != (Facet{Name: "GSK", Count: 4}) {
		t.Errorf("Expected GSK first with 4 products, got %v", stats.TopBrands)
	}
	if len(stats.TopIngredients) == 0 || stats.TopIngredients[0] != (Facet{Name: "paracetamol", Count: 9}) {
		t.Errorf("Expected paracetamol first with 9 products, got %v", stats.TopIngredients)
	}
	if stats.PriceStats.Priced != 10 || stats.PriceStats.Min != 0.24 || stats.PriceStats.Max != 9.5 {
		t.Errorf("Unexpected price stats: %+v", stats.PriceStats)
	}
}
