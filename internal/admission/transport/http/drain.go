// Package httptransport provides in flight tracking for graceful drains.
package httptransport

import (
	"context"
	"sync"
)

// InFlight tracks admitted requests so shutdown can drain them before the
// listener closes.
type InFlight struct {
	mu     sync.Mutex
	n      int64
	closed bool
	done   chan struct{}
}

// NewInFlight constructs a new InFlight tracker.
func NewInFlight() *InFlight {
	return &InFlight{done: make(chan struct{})}
}

// Acquire registers a request. It reports false once draining has begun.
func (f *InFlight) Acquire() bool {
	if f == nil {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}
	f.n++
	return true
}

// Release marks a request as complete.
func (f *InFlight) Release() {
	if f == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.n > 0 {
		f.n--
	}
	f.maybeFinishLocked()
}

// Close prevents new requests from acquiring.
func (f *InFlight) Close() {
	if f == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.maybeFinishLocked()
}

// maybeFinishLocked signals Wait once closed with nothing in flight. Safe
// to call repeatedly; the channel closes once.
func (f *InFlight) maybeFinishLocked() {
	if !f.closed || f.n != 0 {
		return
	}
	select {
	case <-f.done:
	default:
		close(f.done)
	}
}

// Wait blocks until drained or context done.
func (f *InFlight) Wait(ctx context.Context) error {
	if f == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-f.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Count returns the number of requests currently in flight.
func (f *InFlight) Count() int64 {
	if f == nil {
		return 0
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.n
}
