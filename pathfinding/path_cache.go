package pathfinding

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"pathlink/core"
)

// CacheKey identifies a routed connector. Revision is the pathway revision
// the obstacles were taken from. Exclude lists the elements left out of the
// obstacle set, as built by NewCacheKey.
type CacheKey struct {
	Start, End core.Point
	Revision   uint64
	Exclude    string
}

// NewCacheKey builds the key of a route between start and end that ignores
// the exclude elements. The order of exclude does not matter.
func NewCacheKey(start, end core.Point, revision uint64, exclude []core.ElementID) CacheKey {
	key := CacheKey{Start: start, End: end, Revision: revision}
	if len(exclude) == 0 {
		return key
	}
	ids := slices.Clone(exclude)
	slices.Sort(ids)
	ids = slices.Compact(ids)
	var sb strings.Builder
	for i, id := range ids {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, "%d", id)
	}
	key.Exclude = sb.String()
	return key
}

// RouteCache stores previously computed routes, fallbacks included, for reuse. Only the newest
// revision is kept: storing a route for a later revision drops every older
// entry, and routes for earlier revisions are ignored.
type RouteCache struct {
	mu       sync.RWMutex
	cache    map[CacheKey]Result
	order    []CacheKey // Insertion order, oldest first
	revision uint64
	maxSize  int

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// NewRouteCache creates a cache holding at most maxSize routes. A
// non-positive size means unbounded.
func NewRouteCache(maxSize int) *RouteCache {
	return &RouteCache{
		cache:   make(map[CacheKey]Result),
		maxSize: maxSize,
	}
}

// Get retrieves a copy of a cached route.
func (c *RouteCache) Get(key CacheKey) (Result, bool) {
	c.mu.RLock()
	res, found := c.cache[key]
	c.mu.RUnlock()

	if found {
		c.hits.Add(1)
		res.Segments = slices.Clone(res.Segments)
		return res, true
	}
	c.misses.Add(1)
	return Result{}, false
}

// Put stores a copy of a route.
func (c *RouteCache) Put(key CacheKey, res Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case key.Revision < c.revision:
		return
	case key.Revision > c.revision:
		c.evictions.Add(int64(len(c.cache)))
		clear(c.cache)
		c.order = c.order[:0]
		c.revision = key.Revision
	}

	if _, exists := c.cache[key]; !exists {
		if c.maxSize > 0 && len(c.cache) >= c.maxSize {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.cache, oldest)
			c.evictions.Add(1)
		}
		c.order = append(c.order, key)
	}
	res.Segments = slices.Clone(res.Segments)
	c.cache[key] = res
}

// Clear removes all entries and resets the statistics.
func (c *RouteCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	clear(c.cache)
	c.order = nil
	c.revision = 0
	c.hits.Store(0)
	c.misses.Store(0)
	c.evictions.Store(0)
}

// Stats returns cache statistics.
func (c *RouteCache) Stats() (hits, misses, evictions, size int) {
	c.mu.RLock()
	size = len(c.cache)
	c.mu.RUnlock()

	return int(c.hits.Load()), int(c.misses.Load()), int(c.evictions.Load()), size
}

// String returns a string representation of cache statistics.
func (c *RouteCache) String() string {
	hits, misses, evictions, size := c.Stats()
	hitRate := 0.0
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	return fmt.Sprintf("RouteCache[size=%d/%d, hits=%d, misses=%d, hitRate=%.1f%%, evictions=%d]",
		size, c.maxSize, hits, misses, hitRate, evictions)
}
