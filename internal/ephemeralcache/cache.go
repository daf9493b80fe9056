// Package ephemeralcache is the process-local cache layer sitting in
// front of the SQLite stores (§3 "ephemeral cache"). It never holds the
// source of truth — a miss always falls back to the authoritative store —
// and entries carry their own TTL rather than relying solely on LRU
// eviction.
package ephemeralcache

import (
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// entry pairs a cached value with its expiry.
type entry struct {
	value     interface{}
	expiresAt time.Time
}

func (e *entry) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// Stats are cumulative cache counters, exported for §4.6.9's service
// stats and Prometheus gauges.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
}

// Cache is a TTL-aware LRU used for user_meta, diff_session, and
// collection_hash lookups. A zero-capacity Cache is a permanent no-op,
// matching the teacher cache's `enabled` switch.
type Cache struct {
	memory  *lru.Cache[string, *entry]
	enabled bool

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// New creates a Cache holding up to capacity entries. capacity<=0
// disables the cache entirely (Get always misses, Set is a no-op).
func New(capacity int) (*Cache, error) {
	if capacity <= 0 {
		return &Cache{enabled: false}, nil
	}

	c := &Cache{enabled: true}
	memory, err := lru.NewWithEvict[string, *entry](capacity, func(string, *entry) {
		c.evictions.Add(1)
	})
	if err != nil {
		return nil, err
	}
	c.memory = memory
	return c, nil
}

// Get returns the cached value for key if present and unexpired. An
// expired entry counts as a miss and is evicted immediately.
func (c *Cache) Get(key string) (interface{}, bool) {
	if !c.enabled {
		c.misses.Add(1)
		return nil, false
	}

	e, ok := c.memory.Get(key)
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	if e.expired(time.Now()) {
		c.memory.Remove(key)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return e.value, true
}

// Set stores value under key with the given TTL. A no-op on a disabled
// cache.
func (c *Cache) Set(key string, value interface{}, ttl time.Duration) {
	if !c.enabled {
		return
	}
	c.memory.Add(key, &entry{value: value, expiresAt: time.Now().Add(ttl)})
}

// Invalidate removes key, if present. Used whenever the underlying
// store changes (a new sync, a reset) so a stale read can't outlive its
// write.
func (c *Cache) Invalidate(key string) {
	if !c.enabled {
		return
	}
	c.memory.Remove(key)
}

// Stats returns a snapshot of the cumulative hit/miss/eviction counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}

// Len reports the current number of entries held (0 for a disabled
// cache).
func (c *Cache) Len() int {
	if !c.enabled {
		return 0
	}
	return c.memory.Len()
}
