// Package cache provides the small in-process caches shared across a matching
// run: a TTL cache for registry lookups that go stale (tag lists, freshness
// data) and a bounded LRU for existence checks that do not.
//
// Both caches are explicit objects constructed once and passed by reference
// into the components that need them, so cache lifetime is visible and tests
// stay isolated. Both are safe for concurrent use.
package cache

import (
	"sync"
	"time"

	"github.com/golang/groupcache/lru"
)

// TTL is a concurrency-safe cache whose entries expire after a fixed
// duration.
type TTL[V any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]ttlEntry[V]
	now     func() time.Time
}

type ttlEntry[V any] struct {
	value    V
	storedAt time.Time
}

// NewTTL creates a TTL cache whose entries expire after the given duration.
func NewTTL[V any](ttl time.Duration) *TTL[V] {
	return &TTL[V]{
		ttl:     ttl,
		entries: make(map[string]ttlEntry[V]),
		now:     time.Now,
	}
}

// Get returns the cached value for key if present and not expired.
func (c *TTL[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if c.now().Sub(entry.storedAt) >= c.ttl {
		delete(c.entries, key)
		var zero V
		return zero, false
	}
	return entry.value, true
}

// Put stores a value under key, resetting its expiry.
func (c *TTL[V]) Put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = ttlEntry[V]{value: value, storedAt: c.now()}
}

// Clear removes all entries.
func (c *TTL[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]ttlEntry[V])
}

// Len returns the number of stored entries, including any not yet evicted
// expired ones.
func (c *TTL[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// SetClock replaces the cache's time source. Intended for tests.
func (c *TTL[V]) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// LRU is a concurrency-safe, size-bounded cache with least-recently-used
// eviction.
type LRU[V any] struct {
	mu    sync.Mutex
	cache *lru.Cache
}

// NewLRU creates an LRU cache holding at most maxEntries values.
func NewLRU[V any](maxEntries int) *LRU[V] {
	return &LRU[V]{cache: lru.New(maxEntries)}
}

// Get returns the cached value for key, marking it recently used.
func (c *LRU[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, ok := c.cache.Get(lru.Key(key))
	if !ok {
		var zero V
		return zero, false
	}
	return raw.(V), true
}

// Put stores a value under key, evicting the least recently used entry when
// the cache is full.
func (c *LRU[V]) Put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Add(lru.Key(key), value)
}

// Len returns the number of stored entries.
func (c *LRU[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Len()
}
