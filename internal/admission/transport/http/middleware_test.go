package httptransport_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"admission/internal/admission/core"
	"admission/internal/admission/observability"
	httptransport "admission/internal/admission/transport/http"
)

var epoch = time.Date(2025, time.March, 14, 9, 0, 0, 0, time.UTC)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock(start time.Time) *manualClock {
	return &manualClock{now: start}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type transportFixture struct {
	transport *httptransport.HTTPTransport
	handler   http.Handler
	registry  *core.Registry
	clock     *manualClock
	metrics   *observability.InMemoryMetrics
}

func newTransportFixture(t *testing.T, limits core.Limits, ready func() bool) *transportFixture {
	t.Helper()
	clock := newManualClock(epoch)
	registry, err := core.NewRegistry(limits, clock)
	require.NoError(t, err)
	metrics := observability.NewInMemoryMetrics()
	controller, err := core.NewController(registry, clock, observability.NoopLogger{}, metrics)
	require.NoError(t, err)
	reporter, err := core.NewStatsReporter(registry, clock, "test-instance")
	require.NoError(t, err)

	transport := httptransport.NewHTTPTransport(":0", ready)
	require.NoError(t, transport.ServeAdmission(controller))
	require.NoError(t, transport.ServeStats(reporter))
	transport.Configure(httptransport.HTTPTransportConfig{
		ExemptPaths:       []string{"/health", "/ready", "/metrics"},
		TrustForwardedFor: true,
		DrainTimeout:      time.Second,
		Logger:            observability.NoopLogger{},
		Metrics:           metrics,
	})
	handler, err := transport.Handler()
	require.NoError(t, err)
	return &transportFixture{
		transport: transport,
		handler:   handler,
		registry:  registry,
		clock:     clock,
		metrics:   metrics,
	}
}

func (f *transportFixture) do(method, target, forwardedFor, userAgent string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if forwardedFor != "" {
		req.Header.Set("X-Forwarded-For", forwardedFor)
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestMiddleware_AllowsAndSetsHeaders(t *testing.T) {
	t.Parallel()

	fixture := newTransportFixture(t, core.Limits{RequestsPerMinute: 60, BurstSize: 3}, func() bool { return true })

	rec := fixture.do(http.MethodGet, "/v1/admission/stats", "10.0.0.1", "curl/8.6.0")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Remaining"))
	wantReset := strconv.FormatInt(epoch.Add(time.Minute).Unix(), 10)
	assert.Equal(t, wantReset, rec.Header().Get("X-RateLimit-Reset"))
	assert.Empty(t, rec.Header().Get("Retry-After"))
}

func TestMiddleware_DeniesWith429(t *testing.T) {
	t.Parallel()

	fixture := newTransportFixture(t, core.Limits{RequestsPerMinute: 60, BurstSize: 1}, func() bool { return true })

	first := fixture.do(http.MethodGet, "/v1/admission/stats", "10.0.0.1", "curl/8.6.0")
	require.Equal(t, http.StatusOK, first.Code)

	second := fixture.do(http.MethodGet, "/v1/admission/stats", "10.0.0.1", "curl/8.6.0")
	require.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "application/json", second.Header().Get("Content-Type"))
	assert.Equal(t, "60", second.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", second.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "1", second.Header().Get("Retry-After"))

	var body httptransport.HTTPRateLimitedResponse
	require.NoError(t, json.NewDecoder(second.Body).Decode(&body))
	assert.Equal(t, "Rate limit exceeded", body.Error)
	assert.Equal(t, "Too many requests. Limit: 60 per minute", body.Message)
	assert.Equal(t, 1, body.RetryAfter)
}

func TestMiddleware_DeniedClientRecoversAfterRefill(t *testing.T) {
	t.Parallel()

	fixture := newTransportFixture(t, core.Limits{RequestsPerMinute: 60, BurstSize: 1}, func() bool { return true })

	require.Equal(t, http.StatusOK, fixture.do(http.MethodGet, "/v1/admission/stats", "10.0.0.1", "curl/8.6.0").Code)
	require.Equal(t, http.StatusTooManyRequests, fixture.do(http.MethodGet, "/v1/admission/stats", "10.0.0.1", "curl/8.6.0").Code)

	fixture.clock.Advance(time.Second)
	require.Equal(t, http.StatusOK, fixture.do(http.MethodGet, "/v1/admission/stats", "10.0.0.1", "curl/8.6.0").Code)
}

func TestMiddleware_ExemptPathsBypassAdmission(t *testing.T) {
	t.Parallel()

	fixture := newTransportFixture(t, core.Limits{RequestsPerMinute: 60, BurstSize: 1}, func() bool { return true })

	for i := 0; i < 5; i++ {
		rec := fixture.do(http.MethodGet, "/health", "10.0.0.1", "curl/8.6.0")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
	}
	assert.Equal(t, 0, fixture.registry.Len(), "exempt traffic should not create buckets")
}

func TestMiddleware_SeparatesClientsByOriginAndAgent(t *testing.T) {
	t.Parallel()

	fixture := newTransportFixture(t, core.Limits{RequestsPerMinute: 60, BurstSize: 1}, func() bool { return true })

	require.Equal(t, http.StatusOK, fixture.do(http.MethodGet, "/v1/admission/stats", "10.1.1.1", "curl/8.6.0").Code)
	require.Equal(t, http.StatusTooManyRequests, fixture.do(http.MethodGet, "/v1/admission/stats", "10.1.1.1", "curl/8.6.0").Code)

	assert.Equal(t, http.StatusOK, fixture.do(http.MethodGet, "/v1/admission/stats", "10.1.1.2", "curl/8.6.0").Code)
	assert.Equal(t, http.StatusOK, fixture.do(http.MethodGet, "/v1/admission/stats", "10.1.1.1", "Mozilla/5.0 (X11; Linux x86_64)").Code)
	assert.Equal(t, 3, fixture.registry.Len())
}

func TestMiddleware_UntrustedProxyHeaderIgnored(t *testing.T) {
	t.Parallel()

	clock := newManualClock(epoch)
	registry, err := core.NewRegistry(core.Limits{RequestsPerMinute: 60, BurstSize: 1}, clock)
	require.NoError(t, err)
	controller, err := core.NewController(registry, clock, nil, nil)
	require.NoError(t, err)

	middleware, err := httptransport.NewAdmissionMiddleware(httptransport.MiddlewareConfig{
		Admission:         controller,
		TrustForwardedFor: false,
	})
	require.NoError(t, err)
	handler := middleware.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// Both requests share httptest's default RemoteAddr, so spoofed
	// X-Forwarded-For values must not split them into separate buckets.
	first := httptest.NewRequest(http.MethodGet, "/v1/items", nil)
	first.Header.Set("X-Forwarded-For", "10.5.5.5")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, first)
	require.Equal(t, http.StatusOK, rec.Code)

	second := httptest.NewRequest(http.MethodGet, "/v1/items", nil)
	second.Header.Set("X-Forwarded-For", "10.6.6.6")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, second)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, 1, registry.Len())
}

func TestNewAdmissionMiddleware_RequiresService(t *testing.T) {
	t.Parallel()

	_, err := httptransport.NewAdmissionMiddleware(httptransport.MiddlewareConfig{})
	require.Error(t, err)
}
