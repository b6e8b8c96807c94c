// Package search answers queries against a built catalog index: formula
// search, cross-brand alternatives, autocomplete, fuzzy correction and
// multi-field search. An Engine never mutates its index, so every method
// is safe to call from concurrent requests.
package search

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/giygas/medfinder-api/index"
	"github.com/giygas/medfinder-api/logging"
	"github.com/giygas/medfinder-api/metrics"
	"github.com/hbollon/go-edlib"
)

// MinQueryLength is the shortest folded input autocomplete reacts to.
const MinQueryLength = 2

// Settings tune an Engine.
type Settings struct {
	AutoApplyThreshold float64 // fuzzy similarity at which a correction is applied
	SuggestThreshold   float64 // fuzzy similarity at which a correction is suggested
	Algorithm          string  // edit-distance algorithm name, see ParseAlgorithm
	CacheTTL           time.Duration
	CacheMaxEntries    int64 // 0 disables the result cache
}

// DefaultSettings returns the production defaults.
func DefaultSettings() Settings {
	return Settings{
		AutoApplyThreshold: 0.85,
		SuggestThreshold:   0.6,
		Algorithm:          "levenshtein",
		CacheTTL:           5 * time.Minute,
		CacheMaxEntries:    10000,
	}
}

var algorithms = map[string]edlib.Algorithm{
	"levenshtein":         edlib.Levenshtein,
	"damerau-levenshtein": edlib.DamerauLevenshtein,
	"osa":                 edlib.OSADamerauLevenshtein,
	"jaro":                edlib.Jaro,
	"jaro-winkler":        edlib.JaroWinkler,
	"lcs":                 edlib.Lcs,
}

// ParseAlgorithm maps a configured algorithm name to its edlib constant.
func ParseAlgorithm(name string) (edlib.Algorithm, error) {
	algo, ok := algorithms[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("unknown similarity algorithm %q", name)
	}
	return algo, nil
}

// Engine serves queries for one immutable index. A reload builds a new
// Engine rather than touching this one.
type Engine struct {
	idx       *index.CatalogIndex
	settings  Settings
	algorithm edlib.Algorithm
	cache     *resultCache

	statsOnce sync.Once
	stats     CatalogStats
}

// NewEngine validates settings and wraps idx.
func NewEngine(idx *index.CatalogIndex, settings Settings) (*Engine, error) {
	if idx == nil {
		return nil, fmt.Errorf("nil catalog index")
	}
	if settings.SuggestThreshold <= 0 || settings.SuggestThreshold > 1 {
		return nil, fmt.Errorf("suggest threshold must be in (0, 1], got %v", settings.SuggestThreshold)
	}
	if settings.AutoApplyThreshold < settings.SuggestThreshold || settings.AutoApplyThreshold > 1 {
		return nil, fmt.Errorf("auto-apply threshold must be in [%v, 1], got %v",
			settings.SuggestThreshold, settings.AutoApplyThreshold)
	}

	algo, err := ParseAlgorithm(settings.Algorithm)
	if err != nil {
		return nil, err
	}

	cache, err := newResultCache(settings.CacheMaxEntries, settings.CacheTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create result cache: %w", err)
	}

	logging.Debug("Search engine ready",
		"products", idx.Len(),
		"algorithm", settings.Algorithm,
		"auto_apply", settings.AutoApplyThreshold,
		"suggest", settings.SuggestThreshold,
		"cache", cache != nil,
	)

	return &Engine{idx: idx, settings: settings, algorithm: algo, cache: cache}, nil
}

// Index returns the index the engine queries.
func (e *Engine) Index() *index.CatalogIndex {
	return e.idx
}

// Settings returns the engine configuration.
func (e *Engine) Settings() Settings {
	return e.settings
}

// Close releases the result cache. It may run while queries are in flight;
// those and later queries carry on uncached.
func (e *Engine) Close() {
	e.cache.close()
}

func (e *Engine) observe(operation string) func() {
	start := time.Now()
	metrics.SearchQueriesTotal.WithLabelValues(operation).Inc()
	return func() {
		metrics.SearchQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}

// cachedResult returns the cached value for key, computing and storing it
// on a miss. Two callers racing on the same key both compute; the values
// are identical so either write is fine.
func cachedResult[T any](e *Engine, key string, compute func() T) T {
	if v, ok := e.cache.get(key); ok {
		if typed, ok := v.(T); ok {
			return typed
		}
	}
	v := compute()
	e.cache.set(key, v)
	return v
}

func cacheKey(parts ...string) string {
	return strings.Join(parts, "\x1f")
}

func truncate[T any](items []T, max int) []T {
	if max > 0 && len(items) > max {
		return items[:max]
	}
	return items
}
