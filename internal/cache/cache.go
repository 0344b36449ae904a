// Package cache is a process-local bounded TTL cache. It trades eviction
// precision for a single mutex and zero external services: when the entry
// cap is hit, an arbitrary entry is evicted (map iteration order), which for
// a cache keyed by recently requested addresses is close enough to random.
package cache

import (
	"sync"
	"time"
)

type Config struct {
	DefaultTTL    time.Duration
	MaxEntries    int
	SweepInterval time.Duration
	Clock         func() time.Time
}

type Stats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Size    int     `json:"size"`
	HitRate float64 `json:"hit_rate"`
}

type entry[T any] struct {
	value     T
	cachedAt  time.Time
	expiresAt time.Time
	hits      int64
}

type Cache[T any] struct {
	mu sync.Mutex

	cfg       Config
	entries   map[string]*entry[T]
	hits      int64
	misses    int64
	lastSweep time.Time
}

func New[T any](cfg Config) *Cache[T] {
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = 60 * time.Minute
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 1000
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	c := &Cache[T]{cfg: cfg, entries: map[string]*entry[T]{}}
	c.lastSweep = cfg.Clock()
	return c
}

func (c *Cache[T]) now() time.Time {
	return c.cfg.Clock()
}

// Get returns the cached value and bumps the entry hit counter. An expired
// entry counts as a miss and is removed on the spot.
func (c *Cache[T]) Get(key string) (T, bool) {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweepLocked(now)

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		var zero T
		return zero, false
	}
	if now.After(e.expiresAt) {
		delete(c.entries, key)
		c.misses++
		var zero T
		return zero, false
	}
	e.hits++
	c.hits++
	return e.value, true
}

// Set stores a value under key. A ttl of zero means the configured default.
// If the cache is full and key is new, one arbitrary entry is evicted first.
func (c *Cache[T]) Set(key string, value T, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.cfg.DefaultTTL
	}
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweepLocked(now)

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.cfg.MaxEntries {
		for victim := range c.entries {
			delete(c.entries, victim)
			break
		}
	}
	c.entries[key] = &entry[T]{value: value, cachedAt: now, expiresAt: now.Add(ttl)}
}

func (c *Cache[T]) Has(key string) bool {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweepLocked(now)
	e, ok := c.entries[key]
	return ok && !now.After(e.expiresAt)
}

func (c *Cache[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

func (c *Cache[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = map[string]*entry[T]{}
}

func (c *Cache[T]) Len() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweepLocked(now)
	return len(c.entries)
}

// HitCount reports how many times a live entry has been served.
func (c *Cache[T]) HitCount(key string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		return e.hits
	}
	return 0
}

func (c *Cache[T]) Stats() Stats {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweepLocked(now)

	st := Stats{Hits: c.hits, Misses: c.misses, Size: len(c.entries)}
	if total := c.hits + c.misses; total > 0 {
		st.HitRate = float64(c.hits) / float64(total)
	}
	return st
}

// sweepLocked removes expired entries at most once per SweepInterval; Get
// still checks expiry per entry, so the sweep only bounds memory.
func (c *Cache[T]) sweepLocked(now time.Time) {
	if now.Sub(c.lastSweep) < c.cfg.SweepInterval {
		return
	}
	c.lastSweep = now
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
		}
	}
}
