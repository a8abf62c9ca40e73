// Package cache provides the short-lived, in-process response cache used by
// the read-heavy list endpoints.
//
// The cache is deliberately simple: a mutex-guarded map of serialized
// responses with absolute expiry. Concurrent misses on the same key may each
// recompute — stampedes are tolerated, not deduplicated, at this scale — and
// state is process-local, matching the single-node deployment the rest of
// the governance state assumes.
//
// The unread index is never served from here: staleness on unread counts is
// user-visible, so those queries always hit storage.
package cache

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	cacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "response_cache_hits_total",
		Help: "Responses served from the cache without recomputation.",
	})
	cacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "response_cache_misses_total",
		Help: "Cache lookups that required recomputation (miss or expiry).",
	})
)

func init() {
	prometheus.MustRegister(cacheHits, cacheMisses)
}

// entry is one stored response with its absolute expiry.
type entry struct {
	value     []byte
	expiresAt time.Time
}

// ResponseCache stores serialized responses keyed by endpoint + query +
// principal scope. Construct it once at startup, inject it into the
// handlers that may use it, and Close() it on shutdown.
//
// This type is safe for concurrent use.
type ResponseCache struct {
	mu      sync.RWMutex
	entries map[string]entry
	closed  bool

	// now is the clock, swappable in tests.
	now func() time.Time
}

// NewResponseCache constructs an empty cache.
func NewResponseCache() *ResponseCache {
	return &ResponseCache{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Get returns the cached value for key when present and unexpired.
func (c *ResponseCache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, false
	}
	e, ok := c.entries[key]
	if !ok || c.now().After(e.expiresAt) {
		return nil, false
	}
	return e.value, true
}

// GetOrCompute returns the cached value for key, or invokes compute on a
// miss or expiry and stores the result with expiresAt = now + ttl.
//
// A compute error is returned without caching, so a transient storage
// failure does not poison the key for the TTL. Two goroutines missing on
// the same key concurrently will both compute; last store wins, which is
// harmless because both computed from fresher state than the expired entry.
func (c *ResponseCache) GetOrCompute(key string, ttl time.Duration, compute func() ([]byte, error)) ([]byte, error) {
	if v, ok := c.Get(key); ok {
		cacheHits.Inc()
		return v, nil
	}
	cacheMisses.Inc()

	v, err := compute()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if !c.closed {
		c.entries[key] = entry{value: v, expiresAt: c.now().Add(ttl)}
		// Opportunistic purge so keys that are never read again do not pin
		// their payloads forever.
		if len(c.entries) > 1024 {
			now := c.now()
			for k, e := range c.entries {
				if now.After(e.expiresAt) {
					delete(c.entries, k)
				}
			}
		}
	}
	c.mu.Unlock()
	return v, nil
}

// Invalidate drops one key. Mutating handlers may call this to shorten the
// staleness window after a write, though the TTL alone bounds it.
func (c *ResponseCache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Len reports the number of stored entries, expired or not. Intended for
// tests and introspection.
func (c *ResponseCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close drops every entry. Subsequent lookups miss and subsequent stores are
// discarded, so in-flight requests finish by recomputing.
func (c *ResponseCache) Close() {
	c.mu.Lock()
	c.closed = true
	c.entries = nil
	c.mu.Unlock()
}
