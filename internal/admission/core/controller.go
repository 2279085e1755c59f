package core

import (
	"errors"
	"time"

	"admission/internal/admission/observability"
)

// Controller makes admission decisions over a client registry.
type Controller struct {
	registry *Registry
	clock    Clock
	logger   observability.Logger
	metrics  observability.Metrics
}

// NewController constructs a Controller. A nil clock falls back to the
// system clock; nil logger and metrics are replaced with no-ops.
func NewController(registry *Registry, clock Clock, logger observability.Logger, metrics observability.Metrics) (*Controller, error) {
	if registry == nil {
		return nil, errors.New("registry is required")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = observability.NoopLogger{}
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &Controller{
		registry: registry,
		clock:    clock,
		logger:   logger,
		metrics:  metrics,
	}, nil
}

// Evaluate charges one request against the bucket for req.Key and reports
// whether it may proceed. Denied requests never trigger eviction.
func (c *Controller) Evaluate(req *CheckRequest) *Decision {
	if c == nil || c.registry == nil {
		return &Decision{}
	}
	if req == nil {
		req = &CheckRequest{}
	}
	key := req.Key
	if key == "" {
		key = UnknownOrigin
	}

	start := time.Now()
	now := c.clock.Now()
	bucket := c.registry.GetOrCreate(key, now)
	decision := bucket.admit(now, c.registry.Limits(), req.Path, req.Method)
	if decision.Allowed {
		if evicted := c.registry.Sweep(now); evicted > 0 {
			c.metrics.AddEvicted(evicted)
			c.logger.Info("cleaned up inactive rate limit clients", map[string]any{
				"evicted": evicted,
			})
		}
		c.metrics.IncDecision("allow")
	} else {
		c.metrics.IncDecision("deny")
	}
	c.metrics.ObserveLatency("evaluate", time.Since(start))
	return decision
}

// Limits reports the limits the controller enforces.
func (c *Controller) Limits() Limits {
	if c == nil || c.registry == nil {
		return Limits{}
	}
	return c.registry.Limits()
}
