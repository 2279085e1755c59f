// Package httptransport provides HTTP handlers.
package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"admission/internal/admission/core"
	"admission/internal/admission/observability"
)

type httpErrorResponse struct {
	Error string `json:"error"`
}

func (t *HTTPTransport) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", t.handleHealth)
	mux.HandleFunc("/ready", t.handleReady)
	mux.HandleFunc("/metrics", t.handleMetrics)
	mux.HandleFunc("/v1/admission/stats", t.handleGlobalStats)
	mux.HandleFunc("/v1/admission/clients", t.handleClientStats)
}

func (t *HTTPTransport) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (t *HTTPTransport) handleReady(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if t.appReady != nil && t.appReady() {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
}

// handleMetrics serves a snapshot, which only the in-memory implementation
// can produce; other implementations get an empty document.
func (t *HTTPTransport) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	snapshot, ok := t.metrics.(*observability.InMemoryMetrics)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{})
		return
	}
	writeJSON(w, http.StatusOK, snapshot.Snapshot())
}

func (t *HTTPTransport) handleGlobalStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	start := time.Now()
	defer func() {
		if t.metrics != nil {
			t.metrics.ObserveLatency("httpGlobalStats", time.Since(start))
		}
	}()
	writeJSON(w, http.StatusOK, fromGlobalStats(t.stats.GlobalStats()))
}

// handleClientStats reports one client's bucket. Without an explicit key
// parameter it reports the calling client's own bucket.
func (t *HTTPTransport) handleClientStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	start := time.Now()
	defer func() {
		if t.metrics != nil {
			t.metrics.ObserveLatency("httpClientStats", time.Since(start))
		}
	}()
	key := r.URL.Query().Get("key")
	if key == "" {
		origin := clientOrigin(r, t.trustForwardedFor)
		key = t.identifier.Identify(origin, r.UserAgent())
	}
	stats, err := t.stats.ClientStats(key)
	if err != nil {
		if errors.Is(err, core.ErrClientNotFound) {
			t.writeError(w, r, http.StatusNotFound, err)
			return
		}
		t.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, fromClientStats(stats))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (t *HTTPTransport) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	if t != nil {
		t.logRequestError(r, status, err)
	}
	writeJSON(w, status, httpErrorResponse{Error: err.Error()})
}

func (t *HTTPTransport) logRequestError(r *http.Request, status int, err error) {
	if t == nil || t.logger == nil || r == nil || err == nil {
		return
	}
	fields := map[string]any{
		"method": r.Method,
		"path":   r.URL.Path,
		"status": status,
		"error":  err.Error(),
	}
	if status >= http.StatusInternalServerError {
		t.logger.Error("http request error", fields)
		return
	}
	t.logger.Info("http request error", fields)
}
