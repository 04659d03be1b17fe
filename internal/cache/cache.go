// Package cache implements the TTL + LRU query cache of spec §4.3: a
// bounded map from fingerprint to CachedEntry, safe for concurrent readers
// and writers via coarse-grained locking. Grounded on this codebase's
// resources.Manager page cache (container/list LRU keyed by URL),
// generalized from "url -> Page" to "fingerprint -> result" with
// expiry-on-read and per-provider TTL overrides and clearing.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// Clock abstracts wall-clock time for deterministic tests.
type Clock interface{ Now() time.Time }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type entry struct {
	fingerprint string
	provider    string
	value       any
	insertedAt  time.Time
	ttl         time.Duration
}

func (e *entry) expired(now time.Time) bool {
	return now.Sub(e.insertedAt) > e.ttl
}

// Stats mirrors §4.3's hit/miss/hit-rate counters.
type Stats struct {
	Entries int
	Hits    int64
	Misses  int64
}

// HitRate returns Hits / (Hits + Misses), or 0 when nothing has been looked up.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Cache is a bounded fingerprint -> value map with TTL-on-read expiry and
// LRU eviction at capacity.
type Cache struct {
	mu         sync.Mutex
	maxEntries int
	defaultTTL time.Duration
	lru        *list.List
	index      map[string]*list.Element
	clock      Clock
	hits       int64
	misses     int64
}

// Config controls cache capacity and default TTL.
type Config struct {
	MaxEntries int
	DefaultTTL time.Duration
}

// New constructs a Cache per cfg.
func New(cfg Config) *Cache {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 1000
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = 60 * time.Minute
	}
	return &Cache{
		maxEntries: cfg.MaxEntries,
		defaultTTL: cfg.DefaultTTL,
		lru:        list.New(),
		index:      make(map[string]*list.Element),
		clock:      realClock{},
	}
}

// WithClock overrides the clock, for deterministic tests.
func (c *Cache) WithClock(clk Clock) *Cache {
	if clk != nil {
		c.clock = clk
	}
	return c
}

// Get returns the cached value for fingerprint iff present and unexpired.
// An expired entry is evicted and counted as a miss.
func (c *Cache) Get(fingerprint string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.index[fingerprint]
	if !ok {
		c.misses++
		return nil, false
	}
	e := el.Value.(*entry)
	now := c.clock.Now()
	if e.expired(now) {
		c.removeLocked(el)
		c.misses++
		return nil, false
	}
	c.lru.MoveToFront(el)
	c.hits++
	return e.value, true
}

// Contains is a true expiry-aware existence check (§9(b) resolves the
// source's size>0 stand-in for a real lookup).
func (c *Cache) Contains(fingerprint string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.index[fingerprint]
	if !ok {
		return false
	}
	e := el.Value.(*entry)
	if e.expired(c.clock.Now()) {
		c.removeLocked(el)
		return false
	}
	return true
}

// Put inserts or refreshes a cache entry. A zero ttlOverride uses the
// cache's default TTL.
func (c *Cache) Put(fingerprint, provider string, value any, ttlOverride time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ttl := c.defaultTTL
	if ttlOverride > 0 {
		ttl = ttlOverride
	}
	now := c.clock.Now()
	if el, ok := c.index[fingerprint]; ok {
		e := el.Value.(*entry)
		e.value = value
		e.insertedAt = now
		e.ttl = ttl
		c.lru.MoveToFront(el)
		return
	}
	el := c.lru.PushFront(&entry{fingerprint: fingerprint, provider: provider, value: value, insertedAt: now, ttl: ttl})
	c.index[fingerprint] = el
	for c.lru.Len() > c.maxEntries {
		back := c.lru.Back()
		if back == nil {
			break
		}
		c.removeLocked(back)
	}
}

func (c *Cache) removeLocked(el *list.Element) {
	e := el.Value.(*entry)
	delete(c.index, e.fingerprint)
	c.lru.Remove(el)
}

// Clear empties the entire cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru = list.New()
	c.index = make(map[string]*list.Element)
}

// ClearProvider removes only entries belonging to provider.
func (c *Cache) ClearProvider(provider string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var next *list.Element
	for el := c.lru.Front(); el != nil; el = next {
		next = el.Next()
		if el.Value.(*entry).provider == provider {
			c.removeLocked(el)
		}
	}
}

// Stats returns a snapshot of cache statistics.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Entries: len(c.index), Hits: c.hits, Misses: c.misses}
}
