// Package index builds the read-only lookup structures the search engine
// queries: exact names, ingredients, composition signatures, sorted name
// and word lists for prefix lookups, and bucketed keys for fuzzy matching.
package index

import (
	"slices"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/giygas/medfinder-api/catalogparser/entities"
	"github.com/giygas/medfinder-api/composition"
)

// FuzzyKey is a normalized name, or its leading words, that fuzzy search
// compares queries against. Display is the original spelling of the same words.
type FuzzyKey struct {
	Key     string
	Display string
}

// Composition is a distinct raw composition string and its ingredient names.
type Composition struct {
	Raw         string
	Ingredients []string
}

// Stats describes a built index.
type Stats struct {
	Products           int           `json:"products"`
	UniqueNames        int           `json:"unique_names"`
	Brands             int           `json:"brands"`
	Ingredients        int           `json:"ingredients"`
	Signatures         int           `json:"signatures"`
	Compositions       int           `json:"compositions"`
	EmptySignatures    int           `json:"empty_signatures"`
	DegradedSignatures int           `json:"degraded_signatures"`
	ParseWarnings      int           `json:"parse_warnings"`
	ParseFailures      int           `json:"parse_failures"`
	BuildDuration      time.Duration `json:"build_duration_ns"`
}

// ProductText holds the folded searchable fields of a product.
type ProductText struct {
	Name        string
	Brand       string
	Composition string
	Categories  []string
}

type wordEntry struct {
	word string
	name int // position in names
}

// CatalogIndex is immutable once Build returns and safe for concurrent reads.
type CatalogIndex struct {
	products   []entities.Product
	signatures []composition.Signature
	failed     []bool
	warnings   []composition.ParseWarning
	texts      []ProductText

	byName      map[string][]int
	byNameBrand map[string]int

	byIngredient   map[string][]int
	ingredientKeys []string

	bySignature map[string][]int

	// Unique display names sorted by folded form; foldedNames is parallel.
	names       []string
	foldedNames []string
	words       []wordEntry

	brands       []string
	foldedBrands []string

	compositions []Composition

	fuzzyKeys   []FuzzyKey
	fuzzyByRune map[rune][]int
	fuzzyByLen  map[int][]int

	stats Stats
}

// Fold normalizes names, brands and queries for comparison.
func Fold(s string) string {
	return composition.NormalizeQuery(s)
}

// LengthBucket groups keys of similar length for fuzzy candidate selection.
func LengthBucket(key string) int {
	return utf8.RuneCountInString(key) / 4
}

func nameBrandKey(name, brand string) string {
	return Fold(name) + "\x00" + Fold(brand)
}

// Len returns the number of products
func (idx *CatalogIndex) Len() int {
	return len(idx.products)
}

// Products returns every product in catalog order. The slice is shared and
// must not be modified.
func (idx *CatalogIndex) Products() []entities.Product {
	return idx.products
}

// Product returns the product with the given ID
func (idx *CatalogIndex) Product(id int) entities.Product {
	return idx.products[id]
}

// Signature returns the parsed composition of a product
func (idx *CatalogIndex) Signature(id int) composition.Signature {
	return idx.signatures[id]
}

// Text returns the folded fields of a product
func (idx *CatalogIndex) Text(id int) ProductText {
	return idx.texts[id]
}

// ProductsWithNameContaining returns IDs, in catalog order, of products
// whose folded name contains sub.
func (idx *CatalogIndex) ProductsWithNameContaining(sub string) []int {
	var ids []int
	for id, text := range idx.texts {
		if strings.Contains(text.Name, sub) {
			ids = append(ids, id)
		}
	}
	return ids
}

// Searchable reports whether a product is indexed by ingredient and signature.
func (idx *CatalogIndex) Searchable(id int) bool {
	return !idx.failed[id] && !idx.signatures[id].IsEmpty()
}

// Warnings returns the parse warnings collected during the build
func (idx *CatalogIndex) Warnings() []composition.ParseWarning {
	return idx.warnings
}

// Stats returns build statistics
func (idx *CatalogIndex) Stats() Stats {
	return idx.stats
}

// Lookup finds a product by exact, case-insensitive name. With duplicate
// names the first product in catalog order wins.
func (idx *CatalogIndex) Lookup(name string) (entities.Product, bool) {
	ids := idx.byName[Fold(name)]
	if len(ids) == 0 {
		return entities.Product{}, false
	}
	return idx.products[ids[0]], true
}

// LookupAll returns every product with the given name, in catalog order.
func (idx *CatalogIndex) LookupAll(name string) []entities.Product {
	ids := idx.byName[Fold(name)]
	out := make([]entities.Product, len(ids))
	for i, id := range ids {
		out[i] = idx.products[id]
	}
	return out
}

// LookupByBrand disambiguates duplicate names.
func (idx *CatalogIndex) LookupByBrand(name, brand string) (entities.Product, bool) {
	id, ok := idx.byNameBrand[nameBrandKey(name, brand)]
	if !ok {
		return entities.Product{}, false
	}
	return idx.products[id], true
}

// DuplicateNames returns folded names shared by more than one product, sorted.
func (idx *CatalogIndex) DuplicateNames() []string {
	var dups []string
	for name, ids := range idx.byName {
		if len(ids) > 1 {
			dups = append(dups, name)
		}
	}
	sort.Strings(dups)
	return dups
}

// IngredientKeys returns every normalized ingredient, sorted.
func (idx *CatalogIndex) IngredientKeys() []string {
	return idx.ingredientKeys
}

// MatchIngredients returns the ingredient keys containing the folded query.
func (idx *CatalogIndex) MatchIngredients(query string) []string {
	if query == "" {
		return nil
	}
	var keys []string
	for _, key := range idx.ingredientKeys {
		if strings.Contains(key, query) {
			keys = append(keys, key)
		}
	}
	return keys
}

// IngredientBucket returns the IDs of products containing the ingredient.
func (idx *CatalogIndex) IngredientBucket(key string) []int {
	return idx.byIngredient[key]
}

// SignatureBucket returns the IDs of products with the given signature key.
func (idx *CatalogIndex) SignatureBucket(key string) []int {
	return idx.bySignature[key]
}

// Names returns unique display names sorted case-insensitively.
func (idx *CatalogIndex) Names() []string {
	return idx.names
}

// NamesWithPrefix returns names whose folded form starts with prefix.
func (idx *CatalogIndex) NamesWithPrefix(prefix string) []string {
	start := sort.SearchStrings(idx.foldedNames, prefix)
	var out []string
	for i := start; i < len(idx.foldedNames) && strings.HasPrefix(idx.foldedNames[i], prefix); i++ {
		out = append(out, idx.names[i])
	}
	return out
}

// NamesWithWordPrefix returns names having a word that starts with prefix,
// sorted like Names.
func (idx *CatalogIndex) NamesWithWordPrefix(prefix string) []string {
	start := sort.Search(len(idx.words), func(i int) bool {
		return idx.words[i].word >= prefix
	})
	var positions []int
	for i := start; i < len(idx.words) && strings.HasPrefix(idx.words[i].word, prefix); i++ {
		positions = append(positions, idx.words[i].name)
	}
	slices.Sort(positions)
	positions = slices.Compact(positions)

	out := make([]string, len(positions))
	for i, pos := range positions {
		out[i] = idx.names[pos]
	}
	return out
}

// NamesContaining returns names whose folded form contains sub, sorted like Names.
func (idx *CatalogIndex) NamesContaining(sub string) []string {
	var out []string
	for i, folded := range idx.foldedNames {
		if strings.Contains(folded, sub) {
			out = append(out, idx.names[i])
		}
	}
	return out
}

// Brands returns unique brands sorted case-insensitively.
func (idx *CatalogIndex) Brands() []string {
	return idx.brands
}

// BrandsContaining returns brands whose folded form contains sub.
func (idx *CatalogIndex) BrandsContaining(sub string) []string {
	var out []string
	for i, folded := range idx.foldedBrands {
		if strings.Contains(folded, sub) {
			out = append(out, idx.brands[i])
		}
	}
	return out
}

// Compositions returns distinct raw compositions in catalog order.
func (idx *CatalogIndex) Compositions() []Composition {
	return idx.compositions
}

// FuzzyCandidates returns the keys sharing the query's first rune or its
// length bucket, each key once.
func (idx *CatalogIndex) FuzzyCandidates(query string) []FuzzyKey {
	if query == "" {
		return nil
	}
	first, _ := utf8.DecodeRuneInString(query)

	byRune := idx.fuzzyByRune[first]
	byLen := idx.fuzzyByLen[LengthBucket(query)]

	seen := make(map[int]bool, len(byRune)+len(byLen))
	out := make([]FuzzyKey, 0, len(byRune)+len(byLen))
	for _, group := range [][]int{byRune, byLen} {
		for _, i := range group {
			if seen[i] {
				continue
			}
			seen[i] = true
			out = append(out, idx.fuzzyKeys[i])
		}
	}
	return out
}
