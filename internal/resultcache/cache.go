// Package resultcache implements the content-hash-gated, TTL-bounded LRU
// result cache described as the Result Cache component: entries are keyed
// by file URI, validated against the content hash of the file at lookup
// time, and evicted by least-recent-use once either the entry count or the
// total byte budget is exceeded.
package resultcache

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/flowlayer/langbridge/internal/contenthash"
)

// entry is a doubly-linked list node holding one cached value.
type entry[V any] struct {
	uri         string
	hash        contenthash.Hash
	value       V
	sizeBytes   int64
	createdAtMs int64
	prev, next  *entry[V]
}

// Stats summarizes cache occupancy and effectiveness.
type Stats struct {
	Entries    int
	TotalBytes int64
	Hits       int64
	Misses     int64
	Evictions  int64
}

// HitRate returns Hits / (Hits + Misses), or 0 when no lookups occurred.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}

	return float64(s.Hits) / float64(total)
}

// MissRate returns 1 - HitRate.
func (s Stats) MissRate() float64 {
	if s.Hits+s.Misses == 0 {
		return 0
	}

	return 1 - s.HitRate()
}

// Cache is a thread-safe, content-hash-gated, TTL-bounded LRU cache.
type Cache[V any] struct {
	mu      sync.Mutex
	entries map[string]*entry[V]
	head    *entry[V] // most recently used
	tail    *entry[V] // least recently used

	maxEntries int
	maxBytes   int64
	curBytes   int64
	ttl        time.Duration

	now func() time.Time

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// New creates a Cache bounded by maxEntries and maxBytes (either may be
// zero to disable that bound, but not both) with the given TTL. A TTL of
// zero means entries are never valid: every Get is a miss.
func New[V any](maxEntries int, maxBytes int64, ttl time.Duration) *Cache[V] {
	if maxEntries <= 0 && maxBytes <= 0 {
		panic("resultcache: at least one of maxEntries or maxBytes must be positive")
	}

	return &Cache[V]{
		entries:    make(map[string]*entry[V]),
		maxEntries: maxEntries,
		maxBytes:   maxBytes,
		ttl:        ttl,
		now:        time.Now,
	}
}

// SetClock overrides the cache's time source; intended for tests that need
// to simulate TTL expiry deterministically.
func (c *Cache[V]) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = now
}

// sizeOf computes a deterministic byte-size estimate for value via JSON
// encoding. Marshal failures (unsupported types) are treated as size 0
// rather than propagated, since size accounting is advisory, not load-bearing.
func sizeOf(value any) int64 {
	data, err := json.Marshal(value)
	if err != nil {
		return 0
	}

	return int64(len(data))
}

// Get returns the cached value for uri if present, unexpired, and its
// stored content hash matches hash. A stale entry (hash mismatch or expired
// TTL) is evicted and counted as a miss, not returned.
func (c *Cache[V]) Get(uri string, hash contenthash.Hash) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ent, ok := c.entries[uri]
	if !ok {
		c.misses.Add(1)

		var zero V

		return zero, false
	}

	if ent.hash != hash || c.expired(ent) {
		c.removeEntry(ent)
		c.misses.Add(1)

		var zero V

		return zero, false
	}

	c.hits.Add(1)
	c.moveToFront(ent)

	return ent.value, true
}

func (c *Cache[V]) expired(ent *entry[V]) bool {
	if c.ttl == 0 {
		return true
	}

	return c.now().UnixMilli()-ent.createdAtMs > c.ttl.Milliseconds()
}

// Set inserts or replaces the cached value for uri, keyed by hash. Values
// larger than the entire byte budget are silently not stored.
func (c *Cache[V]) Set(uri string, hash contenthash.Hash, value V) {
	size := sizeOf(value)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.maxBytes > 0 && size > c.maxBytes {
		if ent, ok := c.entries[uri]; ok {
			c.removeEntry(ent)
		}

		return
	}

	if ent, ok := c.entries[uri]; ok {
		c.curBytes -= ent.sizeBytes
		ent.hash = hash
		ent.value = value
		ent.sizeBytes = size
		ent.createdAtMs = c.now().UnixMilli()
		c.curBytes += size
		c.moveToFront(ent)

		for c.maxBytes > 0 && c.curBytes > c.maxBytes && c.tail != ent {
			c.evictTail()
		}

		return
	}

	c.evictUntilFits(size)

	if c.maxBytes > 0 && c.curBytes+size > c.maxBytes {
		return
	}

	ent := &entry[V]{
		uri:         uri,
		hash:        hash,
		value:       value,
		sizeBytes:   size,
		createdAtMs: c.now().UnixMilli(),
	}

	c.entries[uri] = ent
	c.curBytes += size
	c.addToFront(ent)
}

// Invalidate removes uri from the cache, if present.
func (c *Cache[V]) Invalidate(uri string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ent, ok := c.entries[uri]; ok {
		c.removeEntry(ent)
	}
}

// Clear removes all entries.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*entry[V])
	c.head = nil
	c.tail = nil
	c.curBytes = 0
}

// Stats returns a snapshot of cache occupancy and lookup effectiveness.
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Entries:    len(c.entries),
		TotalBytes: c.curBytes,
		Hits:       c.hits.Load(),
		Misses:     c.misses.Load(),
		Evictions:  c.evictions.Load(),
	}
}

func (c *Cache[V]) removeEntry(ent *entry[V]) {
	c.removeFromList(ent)
	delete(c.entries, ent.uri)
	c.curBytes -= ent.sizeBytes
}

func (c *Cache[V]) evictUntilFits(incomingSize int64) {
	for c.maxEntries > 0 && len(c.entries) >= c.maxEntries && c.tail != nil {
		c.evictTail()
	}

	for c.maxBytes > 0 && c.curBytes+incomingSize > c.maxBytes && c.tail != nil {
		c.evictTail()
	}
}

func (c *Cache[V]) evictTail() {
	if c.tail == nil {
		return
	}

	victim := c.tail
	c.removeFromList(victim)
	delete(c.entries, victim.uri)
	c.curBytes -= victim.sizeBytes
	c.evictions.Add(1)
}

func (c *Cache[V]) moveToFront(ent *entry[V]) {
	if ent == c.head {
		return
	}

	c.removeFromList(ent)
	c.addToFront(ent)
}

func (c *Cache[V]) addToFront(ent *entry[V]) {
	ent.prev = nil
	ent.next = c.head

	if c.head != nil {
		c.head.prev = ent
	}

	c.head = ent

	if c.tail == nil {
		c.tail = ent
	}
}

func (c *Cache[V]) removeFromList(ent *entry[V]) {
	if ent.prev != nil {
		ent.prev.next = ent.next
	} else {
		c.head = ent.next
	}

	if ent.next != nil {
		ent.next.prev = ent.prev
	} else {
		c.tail = ent.prev
	}

	ent.prev = nil
	ent.next = nil
}
