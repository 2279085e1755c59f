// Package core provides the per-client token bucket.
package core

import (
	"math"
	"sync"
	"time"
)

// historyCapacity bounds a bucket's recent request history.
const historyCapacity = 100

// TokenBucket tracks admission state for one client. Each bucket is owned
// by exactly one registry entry and guarded by its own mutex, so unrelated
// clients never contend on a shared lock.
type TokenBucket struct {
	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
	history    requestRing
}

func newTokenBucket(limits Limits, now time.Time) *TokenBucket {
	return &TokenBucket{
		tokens:     float64(limits.BurstSize),
		lastRefill: now,
	}
}

// admit refills the bucket at now and consumes one token when available.
// The read-modify-write runs entirely under the bucket mutex.
func (b *TokenBucket) admit(now time.Time, limits Limits, path, method string) *Decision {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked(now, limits)

	decision := &Decision{
		Limit:   limits.RequestsPerMinute,
		ResetAt: b.lastRefill.Add(limits.resetDelay()),
	}
	if b.tokens >= 1 {
		b.tokens--
		b.history.push(RequestRecord{Time: now, Path: path, Method: method})
		decision.Allowed = true
		decision.Remaining = int(b.tokens)
		return decision
	}
	decision.RetryAfter = int(math.Ceil((1 - b.tokens) / limits.RefillRate()))
	return decision
}

// refillLocked credits tokens for the elapsed interval, capped at the burst
// size. A now earlier than lastRefill is treated as zero elapsed time so
// lastRefill never moves backwards.
func (b *TokenBucket) refillLocked(now time.Time, limits Limits) {
	if now.Before(b.lastRefill) {
		return
	}
	elapsed := now.Sub(b.lastRefill).Seconds()
	b.tokens = math.Min(float64(limits.BurstSize), b.tokens+elapsed*limits.RefillRate())
	b.lastRefill = now
}

// snapshot copies the bucket state for read-only reporting. It performs no
// refill: stats reads must not mutate admission state.
func (b *TokenBucket) snapshot() (tokens float64, lastRefill time.Time, records []RequestRecord) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tokens, b.lastRefill, b.history.snapshot()
}

// refreshedAt returns the bucket's last refill time.
func (b *TokenBucket) refreshedAt() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastRefill
}

// requestRing is a fixed-capacity ring of request records. Once full, each
// push overwrites the oldest record.
type requestRing struct {
	records []RequestRecord
	head    int
}

func (r *requestRing) push(record RequestRecord) {
	if len(r.records) < historyCapacity {
		r.records = append(r.records, record)
		return
	}
	r.records[r.head] = record
	r.head = (r.head + 1) % historyCapacity
}

// snapshot returns the records oldest first.
func (r *requestRing) snapshot() []RequestRecord {
	out := make([]RequestRecord, len(r.records))
	for i := range r.records {
		out[i] = r.records[(r.head+i)%len(r.records)]
	}
	return out
}
