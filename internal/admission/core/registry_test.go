package core

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedClock time.Time

func (c fixedClock) Now() time.Time { return time.Time(c) }

func TestNewRegistry_RejectsInvalidLimits(t *testing.T) {
	t.Parallel()

	_, err := NewRegistry(Limits{RequestsPerMinute: -5}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidLimits))
}

func TestNewRegistry_NormalizesUnsetLimits(t *testing.T) {
	t.Parallel()

	registry, err := NewRegistry(Limits{}, fixedClock(bucketEpoch))
	require.NoError(t, err)

	limits := registry.Limits()
	assert.Equal(t, DefaultRequestsPerMinute, limits.RequestsPerMinute)
	assert.Equal(t, DefaultBurstSize, limits.BurstSize)
	assert.Equal(t, DefaultCleanupInterval, limits.CleanupInterval)
	assert.Equal(t, DefaultInactivityThreshold, limits.InactivityThreshold)
}

func TestRegistry_GetOrCreateReusesBucket(t *testing.T) {
	t.Parallel()

	registry, err := NewRegistry(Limits{RequestsPerMinute: 60, BurstSize: 5}, fixedClock(bucketEpoch))
	require.NoError(t, err)

	first := registry.GetOrCreate("client-a", bucketEpoch)
	second := registry.GetOrCreate("client-a", bucketEpoch.Add(time.Second))
	assert.Same(t, first, second)
	assert.NotSame(t, first, registry.GetOrCreate("client-b", bucketEpoch))
	assert.Equal(t, 2, registry.Len())
}

func TestRegistry_ConcurrentGetOrCreateSingleBucket(t *testing.T) {
	t.Parallel()

	registry, err := NewRegistry(Limits{RequestsPerMinute: 60, BurstSize: 5}, fixedClock(bucketEpoch))
	require.NoError(t, err)

	const goroutines = 64
	buckets := make([]*TokenBucket, goroutines)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			buckets[i] = registry.GetOrCreate("shared", bucketEpoch)
		}(i)
	}
	wg.Wait()

	require.Equal(t, 1, registry.Len())
	for _, bucket := range buckets {
		assert.Same(t, buckets[0], bucket)
	}
}

func TestRegistry_ConcurrentClientsDoNotShareTokens(t *testing.T) {
	t.Parallel()

	limits := NormalizeLimits(Limits{RequestsPerMinute: 60, BurstSize: 10})
	registry, err := NewRegistry(limits, fixedClock(bucketEpoch))
	require.NoError(t, err)

	const clients = 8
	var allowed atomic.Int64
	var wg sync.WaitGroup
	for c := 0; c < clients; c++ {
		wg.Add(1)
		go func(c int) {
			defer wg.Done()
			key := fmt.Sprintf("client-%d", c)
			for i := 0; i < limits.BurstSize; i++ {
				decision := registry.GetOrCreate(key, bucketEpoch).admit(bucketEpoch, limits, "/v1/items", "GET")
				if decision.Allowed {
					allowed.Add(1)
				}
			}
		}(c)
	}
	wg.Wait()

	assert.Equal(t, int64(clients*limits.BurstSize), allowed.Load())
	for c := 0; c < clients; c++ {
		key := fmt.Sprintf("client-%d", c)
		decision := registry.GetOrCreate(key, bucketEpoch).admit(bucketEpoch, limits, "/v1/items", "GET")
		assert.False(t, decision.Allowed, "client %d should have exhausted its own burst", c)
	}
}

func TestRegistry_SweepEvictsIdleBuckets(t *testing.T) {
	t.Parallel()

	limits := NormalizeLimits(Limits{RequestsPerMinute: 60, BurstSize: 5})
	registry, err := NewRegistry(limits, fixedClock(bucketEpoch))
	require.NoError(t, err)

	registry.GetOrCreate("idle", bucketEpoch).admit(bucketEpoch, limits, "/v1/items", "GET")
	later := bucketEpoch.Add(2 * time.Hour)
	registry.GetOrCreate("live", later).admit(later, limits, "/v1/items", "GET")

	evicted := registry.Sweep(later)
	assert.Equal(t, 1, evicted)
	assert.Equal(t, 1, registry.Len())
	_, ok := registry.get("idle")
	assert.False(t, ok)
	_, ok = registry.get("live")
	assert.True(t, ok)
	assert.True(t, registry.LastCleanup().Equal(later))
}

func TestRegistry_SweepThrottledByInterval(t *testing.T) {
	t.Parallel()

	limits := Limits{
		RequestsPerMinute:   60,
		BurstSize:           5,
		CleanupInterval:     5 * time.Minute,
		InactivityThreshold: time.Minute,
	}
	registry, err := NewRegistry(limits, fixedClock(bucketEpoch))
	require.NoError(t, err)
	registry.GetOrCreate("idle", bucketEpoch)

	// The bucket is already past the inactivity threshold, but the sweep
	// interval has not elapsed yet.
	assert.Equal(t, 0, registry.Sweep(bucketEpoch.Add(2*time.Minute)))
	assert.Equal(t, 1, registry.Len())
	assert.True(t, registry.LastCleanup().Equal(bucketEpoch))

	assert.Equal(t, 1, registry.Sweep(bucketEpoch.Add(5*time.Minute)))
	assert.Equal(t, 0, registry.Len())
	assert.True(t, registry.LastCleanup().Equal(bucketEpoch.Add(5*time.Minute)))
}

func TestRegistry_ActiveSince(t *testing.T) {
	t.Parallel()

	limits := NormalizeLimits(Limits{RequestsPerMinute: 60, BurstSize: 5})
	registry, err := NewRegistry(limits, fixedClock(bucketEpoch))
	require.NoError(t, err)

	registry.GetOrCreate("old", bucketEpoch)
	recent := bucketEpoch.Add(10 * time.Minute)
	registry.GetOrCreate("recent", recent).admit(recent, limits, "/v1/items", "GET")

	assert.Equal(t, 1, registry.activeSince(bucketEpoch.Add(5*time.Minute)))
	assert.Equal(t, 2, registry.activeSince(bucketEpoch.Add(-time.Second)))
}
