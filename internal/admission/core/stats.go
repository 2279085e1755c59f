package core

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

const (
	// statsRecentWindow bounds how many trailing history records feed the
	// distinct path set. The request count covers the whole history.
	statsRecentWindow = 10
	// statsActiveWindow is the recency window for counting active clients.
	statsActiveWindow = 5 * time.Minute
	// statsClientIDDisplayLen caps the client id echoed in stats output.
	statsClientIDDisplayLen = 20
)

// StatsReporter exposes read-only views over a client registry. It never
// refills, charges, or evicts.
type StatsReporter struct {
	registry   *Registry
	clock      Clock
	instanceID string
}

// NewStatsReporter constructs a StatsReporter.
func NewStatsReporter(registry *Registry, clock Clock, instanceID string) (*StatsReporter, error) {
	if registry == nil {
		return nil, errors.New("registry is required")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &StatsReporter{
		registry:   registry,
		clock:      clock,
		instanceID: instanceID,
	}, nil
}

// ClientStats reports the current state of one client's bucket. The key is
// echoed back truncated so stats output never leaks full identifiers.
func (s *StatsReporter) ClientStats(key string) (ClientStats, error) {
	if s == nil || s.registry == nil {
		return ClientStats{}, errors.New("stats reporter is not configured")
	}
	bucket, ok := s.registry.get(key)
	if !ok {
		return ClientStats{}, fmt.Errorf("%w: %q", ErrClientNotFound, displayClientID(key))
	}
	tokens, lastRefill, records := bucket.snapshot()
	recent := records
	if len(recent) > statsRecentWindow {
		recent = recent[len(recent)-statsRecentWindow:]
	}
	return ClientStats{
		ClientID:       displayClientID(key),
		Tokens:         tokens,
		LastRefill:     lastRefill,
		RecentRequests: len(records),
		RecentPaths:    distinctPaths(recent),
	}, nil
}

// GlobalStats reports aggregate registry state.
func (s *StatsReporter) GlobalStats() GlobalStats {
	if s == nil || s.registry == nil {
		return GlobalStats{}
	}
	limits := s.registry.Limits()
	cutoff := s.clock.Now().Add(-statsActiveWindow)
	return GlobalStats{
		InstanceID:    s.instanceID,
		TotalClients:  s.registry.Len(),
		ActiveClients: s.registry.activeSince(cutoff),
		Limit:         limits.RequestsPerMinute,
		BurstSize:     limits.BurstSize,
		LastCleanup:   s.registry.LastCleanup(),
	}
}

// displayClientID obscures a key for external exposure. The suffix is
// unconditional so readers cannot tell a complete key from a truncated one.
func displayClientID(key string) string {
	if len(key) > statsClientIDDisplayLen {
		key = key[:statsClientIDDisplayLen]
	}
	return key + "..."
}

func distinctPaths(records []RequestRecord) []string {
	if len(records) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(records))
	paths := make([]string, 0, len(records))
	for _, record := range records {
		if _, ok := seen[record.Path]; ok {
			continue
		}
		seen[record.Path] = struct{}{}
		paths = append(paths, record.Path)
	}
	sort.Strings(paths)
	return paths
}
