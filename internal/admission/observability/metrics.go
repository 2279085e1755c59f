package observability

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metrics records admission measurements.
type Metrics interface {
	IncDecision(result string)
	IncFallback(reason string)
	AddEvicted(count int)
	ObserveLatency(op string, d time.Duration)
}

// InMemoryMetrics stores counters and latency summaries. Decision counters
// are bumped on every request, so key construction stays allocation-light.
type InMemoryMetrics struct {
	counters  sync.Map
	latencies sync.Map
}

type latencySummary struct {
	count      atomic.Int64
	totalNanos atomic.Int64
	maxNanos   atomic.Int64
}

func (s *latencySummary) observe(nanos int64) {
	s.count.Add(1)
	s.totalNanos.Add(nanos)
	for {
		current := s.maxNanos.Load()
		if nanos <= current || s.maxNanos.CompareAndSwap(current, nanos) {
			return
		}
	}
}

func (s *latencySummary) export() map[string]int64 {
	count := s.count.Load()
	total := s.totalNanos.Load()
	out := map[string]int64{
		"count":      count,
		"totalNanos": total,
		"maxNanos":   s.maxNanos.Load(),
	}
	if count > 0 {
		out["avgNanos"] = total / count
	}
	return out
}

// NewInMemoryMetrics constructs an in-memory metrics recorder.
func NewInMemoryMetrics() *InMemoryMetrics {
	return &InMemoryMetrics{}
}

// IncDecision increments the counter for an admission outcome.
func (m *InMemoryMetrics) IncDecision(result string) {
	if m == nil {
		return
	}
	m.addCounter("decision|"+result, 1)
}

// IncFallback increments the counter for a degraded identification.
func (m *InMemoryMetrics) IncFallback(reason string) {
	if m == nil {
		return
	}
	m.addCounter("fallback|"+reason, 1)
}

// AddEvicted adds swept clients to the eviction counter.
func (m *InMemoryMetrics) AddEvicted(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.addCounter("evicted", int64(count))
}

// ObserveLatency tracks a latency measurement for an operation.
func (m *InMemoryMetrics) ObserveLatency(op string, d time.Duration) {
	if m == nil || op == "" {
		return
	}
	key := "latency|" + op
	entry, ok := m.latencies.Load(key)
	if !ok {
		entry, _ = m.latencies.LoadOrStore(key, &latencySummary{})
	}
	summary, ok := entry.(*latencySummary)
	if !ok || summary == nil {
		return
	}
	summary.observe(d.Nanoseconds())
}

// Snapshot exports metrics values.
func (m *InMemoryMetrics) Snapshot() map[string]any {
	result := map[string]any{}
	if m == nil {
		return result
	}

	counters := map[string]int64{}
	m.counters.Range(func(key, value any) bool {
		name, ok := key.(string)
		if !ok {
			return true
		}
		if counter, ok := value.(*atomic.Int64); ok && counter != nil {
			counters[name] = counter.Load()
		}
		return true
	})

	latencies := map[string]map[string]int64{}
	m.latencies.Range(func(key, value any) bool {
		name, ok := key.(string)
		if !ok {
			return true
		}
		if summary, ok := value.(*latencySummary); ok && summary != nil {
			latencies[name] = summary.export()
		}
		return true
	})

	result["counters"] = counters
	result["latencies"] = latencies
	return result
}

func (m *InMemoryMetrics) addCounter(key string, n int64) {
	if key == "" {
		return
	}
	entry, ok := m.counters.Load(key)
	if !ok {
		entry, _ = m.counters.LoadOrStore(key, &atomic.Int64{})
	}
	if counter, ok := entry.(*atomic.Int64); ok && counter != nil {
		counter.Add(n)
	}
}

// NoopMetrics discards all measurements.
type NoopMetrics struct{}

// IncDecision discards the measurement.
func (NoopMetrics) IncDecision(string) {}

// IncFallback discards the measurement.
func (NoopMetrics) IncFallback(string) {}

// AddEvicted discards the measurement.
func (NoopMetrics) AddEvicted(int) {}

// ObserveLatency discards the measurement.
func (NoopMetrics) ObserveLatency(string, time.Duration) {}
