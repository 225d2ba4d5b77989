// Package cache implements the bounded LRU cache used to back the
// schema cache and the session store. It wraps hashicorp/golang-lru's
// unsynchronized simplelru.LRU with the single-critical-section locking
// spec §4.6 requires: Get always promotes to MRU, and the promote
// happens under the same lock as the lookup so there is no
// read-then-upgrade window where an entry can be evicted between "found"
// and "promoted".
package cache

import (
	"sync"
	"sync/atomic"

	"github.com/hashicorp/golang-lru/simplelru"

	"github.com/edgecomet/mcprt/internal/mcprt/metrics"
)

// Cache is a fixed-capacity, thread-safe LRU cache keyed by K with
// values of type V. Capacity 0 makes it a pure pass-through: nothing is
// ever stored and every Get misses, matching spec §8's boundary
// behavior for a zero-capacity cache.
type Cache[K comparable, V any] struct {
	mu       sync.RWMutex
	inner    *simplelru.LRU // nil when capacity == 0
	capacity int
	name     string
	metrics  *metrics.Metrics

	hits   atomic.Int64
	misses atomic.Int64
}

// New returns a Cache with the given capacity, labeled name in the
// per-instance cache metrics (size, capacity, hits, misses). A
// non-positive capacity is treated as 0 (pass-through). m may be nil to
// disable metrics recording.
func New[K comparable, V any](capacity int, name string, m *metrics.Metrics) *Cache[K, V] {
	c := &Cache[K, V]{capacity: capacity, name: name, metrics: m}
	if capacity <= 0 {
		c.capacity = 0
		c.reportCapacity()
		return c
	}
	inner, err := simplelru.NewLRU(capacity, nil)
	if err != nil {
		// simplelru.NewLRU only errors on size <= 0, already excluded above.
		c.capacity = 0
		c.reportCapacity()
		return c
	}
	c.inner = inner
	c.reportCapacity()
	return c
}

func (c *Cache[K, V]) reportCapacity() {
	if c.metrics != nil {
		c.metrics.CacheCapacity.WithLabelValues(c.name).Set(float64(c.capacity))
	}
}

// Get looks up key, promoting it to most-recently-used on a hit. The
// lookup and the promotion happen under a single write lock so no other
// goroutine can observe or evict the entry in between.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	var zero V
	if c.capacity == 0 {
		c.misses.Add(1)
		if c.metrics != nil {
			c.metrics.CacheMisses.WithLabelValues(c.name).Inc()
		}
		return zero, false
	}

	c.mu.Lock()
	v, ok := c.inner.Get(key)
	c.mu.Unlock()

	if !ok {
		c.misses.Add(1)
		if c.metrics != nil {
			c.metrics.CacheMisses.WithLabelValues(c.name).Inc()
		}
		return zero, false
	}
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHits.WithLabelValues(c.name).Inc()
	}
	val, _ := v.(V) // comma-ok: a stored nil interface value must not panic
	return val, true
}

// Peek looks up key without affecting recency order. Used by callers
// (e.g. the session sweeper) that need to inspect without disturbing
// eviction order.
func (c *Cache[K, V]) Peek(key K) (V, bool) {
	var zero V
	if c.capacity == 0 {
		return zero, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.inner.Peek(key)
	if !ok {
		return zero, false
	}
	val, _ := v.(V)
	return val, true
}

// Put inserts or updates key, reporting whether an existing entry was
// evicted to make room.
func (c *Cache[K, V]) Put(key K, value V) (evicted bool) {
	if c.capacity == 0 {
		return false
	}
	c.mu.Lock()
	evicted = c.inner.Add(key, value)
	size := c.inner.Len()
	c.mu.Unlock()
	if c.metrics != nil {
		c.metrics.CacheSize.WithLabelValues(c.name).Set(float64(size))
	}
	return evicted
}

// Remove deletes key if present.
func (c *Cache[K, V]) Remove(key K) bool {
	if c.capacity == 0 {
		return false
	}
	c.mu.Lock()
	removed := c.inner.Remove(key)
	size := c.inner.Len()
	c.mu.Unlock()
	if c.metrics != nil {
		c.metrics.CacheSize.WithLabelValues(c.name).Set(float64(size))
	}
	return removed
}

// Len reports the number of entries currently cached.
func (c *Cache[K, V]) Len() int {
	if c.capacity == 0 {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.inner.Len()
}

// Capacity reports the cache's configured maximum size (0 = pass-through).
func (c *Cache[K, V]) Capacity() int {
	return c.capacity
}

// Stats returns cumulative hit/miss counts, for metrics export.
func (c *Cache[K, V]) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Keys returns a snapshot of the cached keys, oldest first.
func (c *Cache[K, V]) Keys() []K {
	if c.capacity == 0 {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	raw := c.inner.Keys()
	out := make([]K, len(raw))
	for i, k := range raw {
		out[i] = k.(K)
	}
	return out
}
