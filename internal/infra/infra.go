// Package infra provides shared infrastructure components used across
// the application: a TTL cache and a politeness limiter.
package infra

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// --- Simple in-memory cache ---

// CacheEntry holds a cached value with expiration.
type CacheEntry struct {
	Value     any
	ExpiresAt time.Time
}

// Cache is a simple thread-safe in-memory cache with TTL.
// Expiry is checked on read; there is no background sweeper.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]CacheEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewCache creates a new cache with the given default TTL.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		entries: make(map[string]CacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// SetClock replaces the time source. Tests use it to age entries.
func (c *Cache) SetClock(now func() time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

// Get retrieves a value from the cache. Returns nil, false if not found or expired.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	now := c.now()
	c.mu.RUnlock()
	if !ok || now.After(entry.ExpiresAt) {
		return nil, false
	}
	return entry.Value, true
}

// Set stores a value in the cache with the default TTL.
func (c *Cache) Set(key string, value any) {
	c.mu.Lock()
	c.entries[key] = CacheEntry{
		Value:     value,
		ExpiresAt: c.now().Add(c.ttl),
	}
	c.mu.Unlock()
}

// --- Rate limiter ---

// Limiter spaces outbound requests to a fixed rate.
type Limiter struct {
	limiter *rate.Limiter
}

// NewLimiter allows perSecond requests per second with a burst of one.
// A non-positive rate disables limiting.
func NewLimiter(perSecond float64) *Limiter {
	if perSecond <= 0 {
		return &Limiter{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(perSecond), 1)}
}

// Wait blocks until a request slot is available or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}
