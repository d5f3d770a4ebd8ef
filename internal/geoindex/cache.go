package geoindex

import "sync"

// boundedCache is a process-global bounded map that evicts the oldest
// inserted entry (not the least-recently-used one) once it exceeds
// maxItems, matching the "oldest insertion" eviction contract required of
// every AOI-derived cache in this system. golang-lru/v2's default policy is
// access-order LRU, which doesn't match that contract, so caches keyed by
// AOI/tile/union are a small insertion-ordered map here instead. The
// GeoParquet bundle cache (internal/engine/duckdb/geoparquet) keeps its own
// insertion-ordered map, and the orchestrator's LOD cache uses golang-lru/v2
// with Peek reads, which leave the insertion order untouched.
type boundedCache[K comparable, V any] struct {
	mu       sync.Mutex
	maxItems int
	order    []K
	values   map[K]V
}

func newBoundedCache[K comparable, V any](maxItems int) *boundedCache[K, V] {
	if maxItems < 1 {
		maxItems = 1
	}
	return &boundedCache[K, V]{
		maxItems: maxItems,
		values:   make(map[K]V, maxItems),
	}
}

func (c *boundedCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[key]
	return v, ok
}

func (c *boundedCache[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.values[key]; !exists {
		c.order = append(c.order, key)
	}
	c.values[key] = value
	for len(c.values) > c.maxItems && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		if oldest != key {
			delete(c.values, oldest)
		}
	}
}

func (c *boundedCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.values)
}
