// Package httptransport provides HTTP transport models.
package httptransport

import (
	"math"
	"time"

	"admission/internal/admission/core"
)

// HTTPRateLimitedResponse is the body returned with a 429. The field names
// are part of the public contract and must not change.
type HTTPRateLimitedResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after"`
}

type HTTPGlobalStatsResponse struct {
	InstanceID            string    `json:"instanceID"`
	TotalClients          int       `json:"totalClients"`
	ActiveClientsLast5Min int       `json:"activeClientsLast5Min"`
	RequestsPerMinute     int       `json:"requestsPerMinute"`
	BurstSize             int       `json:"burstSize"`
	LastCleanup           time.Time `json:"lastCleanup"`
}

type HTTPClientStatsResponse struct {
	ClientID        string    `json:"clientID"`
	CurrentTokens   float64   `json:"currentTokens"`
	LastRefill      time.Time `json:"lastRefill"`
	RecentRequests  int       `json:"recentRequests"`
	RecentEndpoints []string  `json:"recentEndpoints"`
}

func fromGlobalStats(stats core.GlobalStats) HTTPGlobalStatsResponse {
	return HTTPGlobalStatsResponse{
		InstanceID:            stats.InstanceID,
		TotalClients:          stats.TotalClients,
		ActiveClientsLast5Min: stats.ActiveClients,
		RequestsPerMinute:     stats.Limit,
		BurstSize:             stats.BurstSize,
		LastCleanup:           stats.LastCleanup,
	}
}

func fromClientStats(stats core.ClientStats) HTTPClientStatsResponse {
	return HTTPClientStatsResponse{
		ClientID:        stats.ClientID,
		CurrentTokens:   math.Round(stats.Tokens*100) / 100,
		LastRefill:      stats.LastRefill,
		RecentRequests:  stats.RecentRequests,
		RecentEndpoints: stats.RecentPaths,
	}
}
