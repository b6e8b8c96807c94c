package search

import (
	"sync"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/giygas/medfinder-api/metrics"
)

// resultCache holds computed query results for a short time. A nil
// *resultCache is a disabled cache.
//
// ristretto must not be written to while it closes, and a replaced engine
// may still be serving requests that loaded it before the swap. mu orders
// close after every in-flight get/set; once closed, the cache misses.
type resultCache struct {
	cache  *ristretto.Cache[string, any]
	ttl    time.Duration
	mu     sync.RWMutex
	closed bool
}

func newResultCache(maxEntries int64, ttl time.Duration) (*resultCache, error) {
	if maxEntries <= 0 || ttl <= 0 {
		return nil, nil
	}
	cache, err := ristretto.NewCache(&ristretto.Config[string, any]{
		NumCounters:        maxEntries * 10,
		MaxCost:            maxEntries,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, err
	}
	return &resultCache{cache: cache, ttl: ttl}, nil
}

func (c *resultCache) get(key string) (any, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, false
	}
	v, ok := c.cache.Get(key)
	if ok {
		metrics.SearchCacheResults.WithLabelValues("hit").Inc()
	} else {
		metrics.SearchCacheResults.WithLabelValues("miss").Inc()
	}
	return v, ok
}

// set counts every entry as cost 1, so MaxCost bounds the entry count.
func (c *resultCache) set(key string, value any) {
	if c == nil {
		return
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	c.cache.SetWithTTL(key, value, 1, c.ttl)
}

// wait blocks until buffered writes are applied. Tests use it.
func (c *resultCache) wait() {
	if c == nil {
		return
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	c.cache.Wait()
}

func (c *resultCache) close() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.cache.Close()
}
