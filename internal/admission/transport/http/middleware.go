// Package httptransport provides the admission middleware.
package httptransport

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"admission/internal/admission/core"
	"admission/internal/admission/observability"
)

// MiddlewareConfig configures the admission middleware.
type MiddlewareConfig struct {
	Admission         core.AdmissionService
	Identifier        *core.ClientIdentifier
	ExemptPaths       []string
	TrustForwardedFor bool
	Logger            observability.Logger
	Metrics           observability.Metrics
}

// AdmissionMiddleware charges each request against its client's bucket and
// rejects with 429 once the bucket is empty. Exempt paths bypass admission
// entirely: no tokens consumed, no headers, no history.
type AdmissionMiddleware struct {
	admission         core.AdmissionService
	identifier        *core.ClientIdentifier
	exempt            map[string]struct{}
	trustForwardedFor bool
	logger            observability.Logger
	metrics           observability.Metrics
	denyLog           rate.Sometimes
	degradeLog        rate.Sometimes
}

// NewAdmissionMiddleware constructs an AdmissionMiddleware.
func NewAdmissionMiddleware(cfg MiddlewareConfig) (*AdmissionMiddleware, error) {
	if cfg.Admission == nil {
		return nil, errors.New("admission service is required")
	}
	identifier := cfg.Identifier
	if identifier == nil {
		identifier = core.NewClientIdentifier(nil)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = observability.NoopLogger{}
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	exempt := make(map[string]struct{}, len(cfg.ExemptPaths))
	for _, path := range cfg.ExemptPaths {
		exempt[path] = struct{}{}
	}
	return &AdmissionMiddleware{
		admission:         cfg.Admission,
		identifier:        identifier,
		exempt:            exempt,
		trustForwardedFor: cfg.TrustForwardedFor,
		logger:            logger,
		metrics:           metrics,
		// Denials arrive in floods once a client is out of tokens; log a
		// few, then at most one per interval.
		denyLog:    rate.Sometimes{First: 3, Interval: 10 * time.Second},
		degradeLog: rate.Sometimes{First: 1, Interval: time.Minute},
	}, nil
}

// Wrap guards next with per-client admission control.
func (m *AdmissionMiddleware) Wrap(next http.Handler) http.Handler {
	if next == nil {
		next = http.NotFoundHandler()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.isExempt(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		origin := clientOrigin(r, m.trustForwardedFor)
		if origin == "" {
			m.metrics.IncFallback("unknown_origin")
			m.degradeLog.Do(func() {
				m.logger.Warn("request origin missing, sharing fallback bucket", map[string]any{
					"path": r.URL.Path,
				})
			})
		}
		key := m.identifier.Identify(origin, r.UserAgent())
		decision := m.admission.Evaluate(&core.CheckRequest{
			Key:    key,
			Path:   r.URL.Path,
			Method: r.Method,
		})
		setRateHeaders(w.Header(), decision)
		if !decision.Allowed {
			m.reject(w, r, key, decision)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *AdmissionMiddleware) reject(w http.ResponseWriter, r *http.Request, key string, decision *core.Decision) {
	m.denyLog.Do(func() {
		m.logger.Warn("rate limit exceeded", map[string]any{
			"client":      truncateKey(key),
			"path":        r.URL.Path,
			"retry_after": decision.RetryAfter,
		})
	})
	w.Header().Set("Retry-After", strconv.Itoa(decision.RetryAfter))
	writeJSON(w, http.StatusTooManyRequests, HTTPRateLimitedResponse{
		Error:      "Rate limit exceeded",
		Message:    fmt.Sprintf("Too many requests. Limit: %d per minute", decision.Limit),
		RetryAfter: decision.RetryAfter,
	})
}

func (m *AdmissionMiddleware) isExempt(path string) bool {
	_, ok := m.exempt[path]
	return ok
}

func setRateHeaders(h http.Header, decision *core.Decision) {
	if decision == nil {
		return
	}
	h.Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))
}

// clientOrigin extracts the caller's network address. The first entry of
// X-Forwarded-For wins when proxy headers are trusted.
func clientOrigin(r *http.Request, trustForwardedFor bool) string {
	if r == nil {
		return ""
	}
	if trustForwardedFor {
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			first := strings.TrimSpace(strings.Split(forwarded, ",")[0])
			if first != "" {
				return first
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}

const keyDisplayLen = 20

func truncateKey(key string) string {
	if len(key) > keyDisplayLen {
		return key[:keyDisplayLen] + "..."
	}
	return key
}
