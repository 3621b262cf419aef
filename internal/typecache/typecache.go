// Package typecache layers a directed import-dependency graph over
// internal/resultcache, giving cascade invalidation: dropping a file's
// cached type information also drops every file that (transitively)
// depends on it.
package typecache

import (
	"sync"
	"time"

	"github.com/flowlayer/langbridge/internal/contenthash"
	"github.com/flowlayer/langbridge/internal/resultcache"
)

// Cache wraps a resultcache.Cache[V] with an adjacency graph of import
// edges. The zero value is not usable; construct with New.
type Cache[V any] struct {
	entries *resultcache.Cache[V]

	mu           sync.Mutex
	dependsOn    map[string]map[string]struct{}
	dependedOnBy map[string]map[string]struct{}
}

// New constructs a Cache with the same bounds accepted by resultcache.New.
func New[V any](maxEntries int, maxBytes int64, ttl time.Duration) *Cache[V] {
	return &Cache[V]{
		entries:      resultcache.New[V](maxEntries, maxBytes, ttl),
		dependsOn:    make(map[string]map[string]struct{}),
		dependedOnBy: make(map[string]map[string]struct{}),
	}
}

// Get delegates to the underlying result cache.
func (c *Cache[V]) Get(uri string, hash contenthash.Hash) (V, bool) {
	return c.entries.Get(uri, hash)
}

// Set delegates to the underlying result cache.
func (c *Cache[V]) Set(uri string, hash contenthash.Hash, value V) {
	c.entries.Set(uri, hash, value)
}

// Stats delegates to the underlying result cache.
func (c *Cache[V]) Stats() resultcache.Stats {
	return c.entries.Stats()
}

// SetClock delegates to the underlying result cache (test hook).
func (c *Cache[V]) SetClock(now func() time.Time) {
	c.entries.SetClock(now)
}

// Clear wipes all entries and the entire dependency graph.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	c.dependsOn = make(map[string]map[string]struct{})
	c.dependedOnBy = make(map[string]map[string]struct{})
	c.mu.Unlock()

	c.entries.Clear()
}

// AddDependency records that from imports to. Idempotent; mirrors the
// reverse edge.
func (c *Cache[V]) AddDependency(from, to string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.addEdgeLocked(c.dependsOn, from, to)
	c.addEdgeLocked(c.dependedOnBy, to, from)
}

func (c *Cache[V]) addEdgeLocked(adjacency map[string]map[string]struct{}, from, to string) {
	set, ok := adjacency[from]
	if !ok {
		set = make(map[string]struct{})
		adjacency[from] = set
	}

	set[to] = struct{}{}
}

// ClearDependencies removes all outgoing edges of from and their mirrored
// reverse edges. Call before re-recording a file's imports, since a
// re-analyzed file's import set may have changed.
func (c *Cache[V]) ClearDependencies(from string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for to := range c.dependsOn[from] {
		if rev, ok := c.dependedOnBy[to]; ok {
			delete(rev, from)

			if len(rev) == 0 {
				delete(c.dependedOnBy, to)
			}
		}
	}

	delete(c.dependsOn, from)
}

// DependsOn returns the set of uris that uri directly depends on.
func (c *Cache[V]) DependsOn(uri string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return keysOf(c.dependsOn[uri])
}

// DependedOnBy returns the set of uris that directly depend on uri.
func (c *Cache[V]) DependedOnBy(uri string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return keysOf(c.dependedOnBy[uri])
}

func keysOf(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}

	return out
}

// InvalidateCascade performs a breadth-first walk of dependedOnBy starting
// at uri, dropping the cache entry for every file visited (including uri
// itself), and returns the closure of dropped uris. Visited tracking
// prevents revisiting under a dependency cycle.
func (c *Cache[V]) InvalidateCascade(uri string) map[string]struct{} {
	visited := map[string]struct{}{uri: {}}
	queue := []string{uri}

	c.entries.Invalidate(uri)

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for _, next := range c.DependedOnBy(cur) {
			if _, ok := visited[next]; ok {
				continue
			}

			visited[next] = struct{}{}
			c.entries.Invalidate(next)
			queue = append(queue, next)
		}
	}

	return visited
}
