package index

import (
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/giygas/medfinder-api/catalogparser/entities"
	"github.com/giygas/medfinder-api/composition"
	"github.com/giygas/medfinder-api/logging"
	"github.com/panjf2000/ants/v2"
)

const (
	chunkSize       = 256
	maxLoggedIssues = 20
	maxFuzzyWords   = 3
)

// ParseFunc parses one raw composition.
type ParseFunc func(raw string) (composition.Signature, []composition.ParseWarning)

// Options tune an index build
type Options struct {
	Workers int       // parser pool size, defaults to GOMAXPROCS
	Parse   ParseFunc // defaults to composition.Analyze
}

type parseResult struct {
	signature composition.Signature
	warnings  []composition.ParseWarning
	failure   string
}

// Build parses every composition once and fills the lookup structures.
// A product whose parse panics is logged and kept out of the ingredient and
// signature maps, but stays reachable by name. Build never fails.
func Build(products []entities.Product, opts Options) *CatalogIndex {
	start := time.Now()

	if opts.Parse == nil {
		opts.Parse = composition.Analyze
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}

	results := parseAll(products, opts)

	idx := &CatalogIndex{
		products:     products,
		signatures:   make([]composition.Signature, len(products)),
		failed:       make([]bool, len(products)),
		texts:        make([]ProductText, len(products)),
		byName:       make(map[string][]int),
		byNameBrand:  make(map[string]int),
		byIngredient: make(map[string][]int),
		bySignature:  make(map[string][]int),
		fuzzyByRune:  make(map[rune][]int),
		fuzzyByLen:   make(map[int][]int),
	}

	// Merged in catalog order so the index is the same for any worker count.
	for id, res := range results {
		idx.addProduct(id, res)
	}

	idx.buildNameLists()
	idx.buildBrandList()
	idx.buildCompositions()
	idx.buildFuzzyKeys()

	idx.ingredientKeys = make([]string, 0, len(idx.byIngredient))
	for key := range idx.byIngredient {
		idx.ingredientKeys = append(idx.ingredientKeys, key)
	}
	sort.Strings(idx.ingredientKeys)

	idx.stats.Products = len(products)
	idx.stats.UniqueNames = len(idx.names)
	idx.stats.Brands = len(idx.brands)
	idx.stats.Ingredients = len(idx.ingredientKeys)
	idx.stats.Signatures = len(idx.bySignature)
	idx.stats.Compositions = len(idx.compositions)
	idx.stats.BuildDuration = time.Since(start)

	if n := len(idx.warnings); n > maxLoggedIssues {
		logging.Warn("More composition parse warnings not shown", "shown", maxLoggedIssues, "total", n)
	}

	logging.Info("Catalog index built",
		"products", idx.stats.Products,
		"ingredients", idx.stats.Ingredients,
		"signatures", idx.stats.Signatures,
		"parse_warnings", idx.stats.ParseWarnings,
		"parse_failures", idx.stats.ParseFailures,
		"duration", idx.stats.BuildDuration.String(),
	)

	return idx
}

// parseAll runs the parser over a bounded pool. Each chunk writes to its own
// slots of the result slice.
func parseAll(products []entities.Product, opts Options) []parseResult {
	results := make([]parseResult, len(products))

	parseRange := func(from, to int) {
		for i := from; i < to; i++ {
			results[i] = safeParse(opts.Parse, products[i].RawComposition)
		}
	}

	if len(products) <= chunkSize || opts.Workers == 1 {
		parseRange(0, len(products))
		return results
	}

	pool, err := ants.NewPool(opts.Workers)
	if err != nil {
		logging.Warn("Failed to create parser pool, parsing sequentially", "error", err)
		parseRange(0, len(products))
		return results
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for from := 0; from < len(products); from += chunkSize {
		to := min(from+chunkSize, len(products))
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			parseRange(from, to)
		}); err != nil {
			wg.Done()
			parseRange(from, to)
		}
	}
	wg.Wait()

	return results
}

func safeParse(parse ParseFunc, raw string) (res parseResult) {
	defer func() {
		if r := recover(); r != nil {
			res = parseResult{failure: fmt.Sprint(r)}
		}
	}()
	sig, warnings := parse(raw)
	return parseResult{signature: sig, warnings: warnings}
}

func (idx *CatalogIndex) addProduct(id int, res parseResult) {
	p := idx.products[id]

	text := ProductText{
		Name:        Fold(p.Name),
		Brand:       Fold(p.Brand),
		Composition: Fold(p.RawComposition),
		Categories:  make([]string, len(p.Categories)),
	}
	for i, c := range p.Categories {
		text.Categories[i] = Fold(c)
	}
	idx.texts[id] = text

	idx.byName[text.Name] = append(idx.byName[text.Name], id)
	if _, exists := idx.byNameBrand[nameBrandKey(p.Name, p.Brand)]; !exists {
		idx.byNameBrand[nameBrandKey(p.Name, p.Brand)] = id
	}

	if res.failure != "" {
		idx.failed[id] = true
		idx.stats.ParseFailures++
		logging.Error("Composition parser panicked, product kept for name lookup only",
			"product", p.Name, "composition", p.RawComposition, "panic", res.failure)
		return
	}

	for _, w := range res.warnings {
		if len(idx.warnings) < maxLoggedIssues {
			logging.Warn("Composition partly parsed", "product", p.Name, "warning", w.Error())
		}
		idx.warnings = append(idx.warnings, w)
	}
	idx.stats.ParseWarnings += len(res.warnings)

	sig := res.signature
	idx.signatures[id] = sig

	if sig.IsEmpty() {
		idx.stats.EmptySignatures++
		return
	}

	idx.bySignature[sig.Key] = append(idx.bySignature[sig.Key], id)

	// The placeholder of an unparsed composition only matches its exact text.
	if sig.Degraded() {
		idx.stats.DegradedSignatures++
		return
	}

	for _, name := range sig.Names() {
		idx.byIngredient[name] = append(idx.byIngredient[name], id)
	}
}

// buildCompositions keeps the first spelling of each distinct composition.
func (idx *CatalogIndex) buildCompositions() {
	seen := make(map[string]bool)
	for id, p := range idx.products {
		sig := idx.signatures[id]
		if !idx.Searchable(id) || sig.Degraded() {
			continue
		}
		key := idx.texts[id].Composition
		if seen[key] {
			continue
		}
		seen[key] = true
		idx.compositions = append(idx.compositions, Composition{Raw: p.RawComposition, Ingredients: sig.Names()})
	}
}

func (idx *CatalogIndex) buildNameLists() {
	seen := make(map[string]bool)
	type entry struct{ folded, display string }
	var entries []entry
	for id, p := range idx.products {
		folded := idx.texts[id].Name
		if seen[folded] {
			continue
		}
		seen[folded] = true
		entries = append(entries, entry{folded, p.Name})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].folded < entries[j].folded
	})

	idx.names = make([]string, len(entries))
	idx.foldedNames = make([]string, len(entries))
	for i, e := range entries {
		idx.names[i] = e.display
		idx.foldedNames[i] = e.folded
		for _, w := range strings.Fields(e.folded) {
			idx.words = append(idx.words, wordEntry{word: w, name: i})
		}
	}
	sort.Slice(idx.words, func(i, j int) bool {
		if idx.words[i].word != idx.words[j].word {
			return idx.words[i].word < idx.words[j].word
		}
		return idx.words[i].name < idx.words[j].name
	})
}

func (idx *CatalogIndex) buildBrandList() {
	seen := make(map[string]bool)
	type entry struct{ folded, display string }
	var entries []entry
	for id, p := range idx.products {
		folded := idx.texts[id].Brand
		if folded == "" || seen[folded] {
			continue
		}
		seen[folded] = true
		entries = append(entries, entry{folded, p.Brand})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].folded < entries[j].folded
	})

	idx.brands = make([]string, len(entries))
	idx.foldedBrands = make([]string, len(entries))
	for i, e := range entries {
		idx.brands[i] = e.display
		idx.foldedBrands[i] = e.folded
	}
}

// buildFuzzyKeys registers every unique name and its leading one to three
// words, so "Panodol" can reach "Panadol CF" through "panadol".
func (idx *CatalogIndex) buildFuzzyKeys() {
	seen := make(map[string]bool)
	add := func(key, display string) {
		if key == "" || seen[key] {
			return
		}
		seen[key] = true
		pos := len(idx.fuzzyKeys)
		idx.fuzzyKeys = append(idx.fuzzyKeys, FuzzyKey{Key: key, Display: display})
		first, _ := utf8.DecodeRuneInString(key)
		idx.fuzzyByRune[first] = append(idx.fuzzyByRune[first], pos)
		bucket := LengthBucket(key)
		idx.fuzzyByLen[bucket] = append(idx.fuzzyByLen[bucket], pos)
	}

	for i, folded := range idx.foldedNames {
		add(folded, idx.names[i])

		keyWords := strings.Fields(folded)
		displayWords := strings.Fields(idx.names[i])
		if len(keyWords) != len(displayWords) {
			continue
		}
		for n := 1; n <= maxFuzzyWords && n < len(keyWords); n++ {
			add(strings.Join(keyWords[:n], " "), strings.Join(displayWords[:n], " "))
		}
	}
}
