// Package ratelimit implements the per-client sliding-window counters that
// back the governance pipeline's rate limiter.
//
// Unlike a token bucket, a sliding window counts the exact admissions inside
// the trailing interval, so it cannot admit a burst at a bucket boundary and
// it can report precisely how long a rejected client must wait for the oldest
// counted admission to age out.
//
// Notes:
//   - State is process-local. For horizontally scaled deployments a shared
//     counter store would be required to enforce a global quota.
//   - The tracker is an owned object: construct it once at startup, inject it
//     into the pipeline, and Close() it on shutdown.
package ratelimit

import (
	"math"
	"sync"
	"time"
)

// window holds the retained admission timestamps for one client, oldest
// first, plus the last time the client was seen (for idle eviction).
type window struct {
	stamps   []time.Time
	lastSeen time.Time
}

// ClientWindowTracker tracks admission timestamps per client key inside a
// trailing window of fixed duration, enforcing a fixed quota.
//
// The purge → check → record sequence for a key runs under one mutex so two
// concurrent requests can never both observe "count < quota" and exceed the
// quota together. Idle keys are evicted opportunistically during lookups to
// keep memory bounded.
//
// This type is safe for concurrent use.
type ClientWindowTracker struct {
	quota    int
	duration time.Duration

	mu      sync.Mutex
	clients map[string]*window

	idleTTL  time.Duration
	cleanupN uint64
	closed   bool
}

// NewClientWindowTracker constructs a tracker admitting at most quota
// requests per key within any trailing interval of the given duration.
//
//   - quota:    values < 1 are coerced to 1.
//   - duration: values <= 0 are coerced to time.Minute.
func NewClientWindowTracker(quota int, duration time.Duration) *ClientWindowTracker {
	if quota < 1 {
		quota = 1
	}
	if duration <= 0 {
		duration = time.Minute
	}
	return &ClientWindowTracker{
		quota:    quota,
		duration: duration,
		clients:  make(map[string]*window),
		idleTTL:  10 * time.Minute, // evict idle clients after TTL
	}
}

// Reserve records an admission for key at now if the quota permits.
//
// It returns allowed=true after recording, or allowed=false with retryAfter
// set to the time until the oldest retained admission exits the window,
// rounded up to whole seconds. A closed tracker admits everything so that
// shutdown ordering cannot wedge in-flight requests.
func (t *ClientWindowTracker) Reserve(key string, now time.Time) (allowed bool, retryAfter time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return true, 0
	}

	// Opportunistic cleanup after a threshold of lookups, before touching the
	// requested key so an idle entry can be evicted even when it is the one
	// being fetched.
	t.cleanupN++
	if t.cleanupN >= 5000 {
		for k, w := range t.clients {
			if now.Sub(w.lastSeen) >= t.idleTTL {
				delete(t.clients, k)
			}
		}
		t.cleanupN = 0
	}

	w := t.clients[key]
	if w == nil {
		w = &window{}
		t.clients[key] = w
	}
	w.lastSeen = now

	// Purge timestamps that have aged out of the trailing window. Entries are
	// evicted, not merely skipped, so a window never grows unbounded.
	cutoff := now.Add(-t.duration)
	keep := 0
	for keep < len(w.stamps) && !w.stamps[keep].After(cutoff) {
		keep++
	}
	if keep > 0 {
		w.stamps = append(w.stamps[:0], w.stamps[keep:]...)
	}

	if len(w.stamps) >= t.quota {
		oldest := w.stamps[0]
		wait := t.duration - now.Sub(oldest)
		secs := math.Ceil(wait.Seconds())
		if secs < 0 {
			secs = 0
		}
		return false, time.Duration(secs) * time.Second
	}

	w.stamps = append(w.stamps, now)
	return true, 0
}

// Len reports the number of admissions currently retained for key. Intended
// for tests and introspection.
func (t *ClientWindowTracker) Len(key string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if w := t.clients[key]; w != nil {
		return len(w.stamps)
	}
	return 0
}

// Close releases all retained windows. Subsequent Reserve calls admit
// unconditionally.
func (t *ClientWindowTracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	t.clients = nil
}
