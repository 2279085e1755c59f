package httptransport_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"admission/internal/admission/core"
	httptransport "admission/internal/admission/transport/http"
)

func TestHTTPTransport_HandlerRequiresServices(t *testing.T) {
	t.Parallel()

	transport := httptransport.NewHTTPTransport(":0", nil)
	_, err := transport.Handler()
	require.Error(t, err)

	require.Error(t, transport.ServeAdmission(nil))
	require.Error(t, transport.ServeStats(nil))
}

func TestHTTPTransport_ShutdownRejectsNewRequests(t *testing.T) {
	t.Parallel()

	fixture := newTransportFixture(t, core.Limits{RequestsPerMinute: 60, BurstSize: 5}, func() bool { return true })

	rec := fixture.do(http.MethodGet, "/v1/admission/stats", "10.0.0.1", "curl/8.6.0")
	require.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, fixture.transport.Shutdown(context.Background()))

	rec = fixture.do(http.MethodGet, "/v1/admission/stats", "10.0.0.1", "curl/8.6.0")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"), "draining rejects before admission runs")

	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "shutting down", body["error"])

	// Health checks drain too; the process is going away.
	rec = fixture.do(http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHTTPTransport_ServesOverNetwork(t *testing.T) {
	t.Parallel()

	fixture := newTransportFixture(t, core.Limits{RequestsPerMinute: 60, BurstSize: 5}, func() bool { return true })
	server := httptest.NewServer(fixture.handler)
	defer server.Close()

	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(server.URL + "/v1/admission/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "60", resp.Header.Get("X-RateLimit-Limit"))

	var body httptransport.HTTPGlobalStatsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 1, body.TotalClients)
}
