// Package httptransport provides an HTTP transport.
package httptransport

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"admission/internal/admission/core"
	"admission/internal/admission/observability"
)

// HTTPTransport serves the operational API with every route behind the
// admission middleware.
type HTTPTransport struct {
	addr              string
	srv               *http.Server
	admission         core.AdmissionService
	stats             core.StatsService
	identifier        *core.ClientIdentifier
	appReady          func() bool
	metrics           observability.Metrics
	mux               http.Handler
	mu                sync.Mutex
	stopped           bool
	inflight          *InFlight
	readTimeout       time.Duration
	writeTimeout      time.Duration
	idleTimeout       time.Duration
	drainTimeout      time.Duration
	exemptPaths       []string
	trustForwardedFor bool
	logger            observability.Logger
}

// HTTPTransportConfig configures the HTTP transport.
type HTTPTransportConfig struct {
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	DrainTimeout      time.Duration
	ExemptPaths       []string
	TrustForwardedFor bool
	Identifier        *core.ClientIdentifier
	Logger            observability.Logger
	Metrics           observability.Metrics
}

// NewHTTPTransport constructs a transport bound to an address.
func NewHTTPTransport(addr string, ready func() bool) *HTTPTransport {
	if addr == "" {
		addr = ":8080"
	}
	if ready == nil {
		ready = func() bool { return false }
	}
	return &HTTPTransport{addr: addr, appReady: ready, inflight: NewInFlight()}
}

// ServeAdmission registers the admission service.
func (t *HTTPTransport) ServeAdmission(service core.AdmissionService) error {
	if service == nil {
		return errors.New("admission service is required")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.admission = service
	return nil
}

// ServeStats registers the stats service.
func (t *HTTPTransport) ServeStats(service core.StatsService) error {
	if service == nil {
		return errors.New("stats service is required")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats = service
	return nil
}

// Configure applies transport configuration values.
func (t *HTTPTransport) Configure(cfg HTTPTransportConfig) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.readTimeout = cfg.ReadTimeout
	t.writeTimeout = cfg.WriteTimeout
	t.idleTimeout = cfg.IdleTimeout
	t.drainTimeout = cfg.DrainTimeout
	t.exemptPaths = cfg.ExemptPaths
	t.trustForwardedFor = cfg.TrustForwardedFor
	t.identifier = cfg.Identifier
	t.logger = cfg.Logger
	t.metrics = cfg.Metrics
}

// Start begins serving HTTP requests.
func (t *HTTPTransport) Start() error {
	if t == nil {
		return errors.New("http transport is nil")
	}
	handler, err := t.handler()
	if err != nil {
		return err
	}
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return nil
	}
	if t.srv == nil {
		t.srv = &http.Server{
			Addr:         t.addr,
			Handler:      handler,
			ReadTimeout:  t.readTimeout,
			WriteTimeout: t.writeTimeout,
			IdleTimeout:  t.idleTimeout,
		}
	}
	srv := t.srv
	t.mu.Unlock()

	listener, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return err
	}
	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in flight requests, then stops the HTTP server.
func (t *HTTPTransport) Shutdown(ctx context.Context) error {
	if t == nil {
		return errors.New("http transport is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	t.inflight.Close()
	drainCtx := ctx
	if t.drainTimeout > 0 {
		var cancel context.CancelFunc
		drainCtx, cancel = context.WithTimeout(ctx, t.drainTimeout)
		defer cancel()
	}
	if err := t.inflight.Wait(drainCtx); err != nil && t.logger != nil {
		t.logger.Warn("shutdown proceeding with requests in flight", map[string]any{
			"in_flight": t.inflight.Count(),
		})
	}
	// Mark stopped under the lock so a Start racing this shutdown either
	// sees the flag or leaves a server behind for Shutdown below.
	t.mu.Lock()
	t.stopped = true
	srv := t.srv
	t.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// Handler returns the HTTP handler for testing.
func (t *HTTPTransport) Handler() (http.Handler, error) {
	return t.handler()
}

func (t *HTTPTransport) handler() (http.Handler, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.mux != nil {
		return t.mux, nil
	}
	if t.admission == nil || t.stats == nil {
		return nil, errors.New("services must be registered before starting")
	}
	if t.identifier == nil {
		t.identifier = core.NewClientIdentifier(nil)
	}
	middleware, err := NewAdmissionMiddleware(MiddlewareConfig{
		Admission:         t.admission,
		Identifier:        t.identifier,
		ExemptPaths:       t.exemptPaths,
		TrustForwardedFor: t.trustForwardedFor,
		Logger:            t.logger,
		Metrics:           t.metrics,
	})
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	t.registerRoutes(mux)
	handler := t.withDrain(middleware.Wrap(mux))
	t.mux = handler
	return handler, nil
}

// withDrain rejects requests once shutdown has begun, before they reach
// the admission middleware and consume tokens.
func (t *HTTPTransport) withDrain(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !t.inflight.Acquire() {
			writeJSON(w, http.StatusServiceUnavailable, httpErrorResponse{Error: "shutting down"})
			return
		}
		defer t.inflight.Release()
		next.ServeHTTP(w, r)
	})
}
