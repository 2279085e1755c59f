// Package core provides the concurrent client registry.
package core

import (
	"sync"
	"time"
)

// Registry stores per-client token buckets with lazy creation and
// amortized eviction of idle entries. The registry lock guards only the
// key space; bucket state is guarded by each bucket's own mutex.
type Registry struct {
	limits Limits

	mu      sync.RWMutex
	buckets map[string]*TokenBucket

	cleanupMu   sync.Mutex
	lastCleanup time.Time
}

// NewRegistry validates the limit parameters and constructs an empty
// registry. Invalid parameters must prevent startup, so they surface here
// rather than being silently defaulted.
func NewRegistry(limits Limits, clock Clock) (*Registry, error) {
	limits = NormalizeLimits(limits)
	if err := limits.Validate(); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &Registry{
		limits:      limits,
		buckets:     make(map[string]*TokenBucket),
		lastCleanup: clock.Now(),
	}, nil
}

// Limits returns the registry's immutable limit parameters.
func (r *Registry) Limits() Limits {
	return r.limits
}

// GetOrCreate returns the live bucket for a key, inserting a fresh bucket
// with a full burst on first sight. Creation happens at most once per key
// until eviction, even under concurrent calls.
func (r *Registry) GetOrCreate(key string, now time.Time) *TokenBucket {
	r.mu.RLock()
	bucket, ok := r.buckets[key]
	r.mu.RUnlock()
	if ok {
		return bucket
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if bucket, ok := r.buckets[key]; ok {
		return bucket
	}
	bucket = newTokenBucket(r.limits, now)
	r.buckets[key] = bucket
	return bucket
}

// Sweep removes buckets idle past the inactivity threshold and returns the
// number evicted. It returns immediately unless the cleanup interval has
// elapsed since the previous sweep, so callers may invoke it on the hot
// path without a latency penalty.
func (r *Registry) Sweep(now time.Time) int {
	r.cleanupMu.Lock()
	if now.Sub(r.lastCleanup) < r.limits.CleanupInterval {
		r.cleanupMu.Unlock()
		return 0
	}
	r.lastCleanup = now
	r.cleanupMu.Unlock()

	cutoff := now.Add(-r.limits.InactivityThreshold)
	var stale []string
	r.mu.RLock()
	for key, bucket := range r.buckets {
		if bucket.refreshedAt().Before(cutoff) {
			stale = append(stale, key)
		}
	}
	r.mu.RUnlock()
	if len(stale) == 0 {
		return 0
	}

	evicted := 0
	r.mu.Lock()
	for _, key := range stale {
		bucket, ok := r.buckets[key]
		if !ok {
			continue
		}
		// A request may have refreshed the bucket between the scan and
		// this delete; evicting it would hand the client a full burst.
		if bucket.refreshedAt().Before(cutoff) {
			delete(r.buckets, key)
			evicted++
		}
	}
	r.mu.Unlock()
	return evicted
}

// Len returns the number of live buckets.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.buckets)
}

// LastCleanup returns the time the most recent sweep ran.
func (r *Registry) LastCleanup() time.Time {
	r.cleanupMu.Lock()
	defer r.cleanupMu.Unlock()
	return r.lastCleanup
}

// get returns the live bucket for a key without creating one.
func (r *Registry) get(key string) (*TokenBucket, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bucket, ok := r.buckets[key]
	return bucket, ok
}

// activeSince counts buckets refreshed after the cutoff.
func (r *Registry) activeSince(cutoff time.Time) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	active := 0
	for _, bucket := range r.buckets {
		if bucket.refreshedAt().After(cutoff) {
			active++
		}
	}
	return active
}
