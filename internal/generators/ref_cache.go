package generators

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/atomic"
)

// CacheStats holds statistics about cache performance
type CacheStats struct {
	Hits         int64   `json:"hits"`
	Misses       int64   `json:"misses"`
	HitRate      float64 `json:"hit_rate"`
	TotalEntries int     `json:"total_entries"`
}

// MemoryRefCache keeps media references in process, evicting the least
// recently used entry past maxEntries and dropping entries older than ttl.
type MemoryRefCache struct {
	lru    *expirable.LRU[string, string]
	hits   *atomic.Int64
	misses *atomic.Int64
}

// NewMemoryRefCache creates a cache. A zero ttl never expires entries and a
// non-positive maxEntries never evicts.
func NewMemoryRefCache(maxEntries int, ttl time.Duration) *MemoryRefCache {
	if maxEntries < 0 {
		maxEntries = 0
	}
	return &MemoryRefCache{
		lru:    expirable.NewLRU[string, string](maxEntries, nil, ttl),
		hits:   atomic.NewInt64(0),
		misses: atomic.NewInt64(0),
	}
}

// Get retrieves a reference from cache
func (c *MemoryRefCache) Get(ctx context.Context, key string) (string, bool) {
	ref, ok := c.lru.Get(key)
	if !ok {
		c.misses.Inc()
		return "", false
	}
	c.hits.Inc()
	return ref, true
}

// Put stores a reference in cache
func (c *MemoryRefCache) Put(ctx context.Context, key, ref string) error {
	c.lru.Add(key, ref)
	return nil
}

// Stats returns the cache statistics
func (c *MemoryRefCache) Stats() CacheStats {
	stats := CacheStats{
		Hits:         c.hits.Load(),
		Misses:       c.misses.Load(),
		TotalEntries: c.lru.Len(),
	}
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}
	return stats
}
