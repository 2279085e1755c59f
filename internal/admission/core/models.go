// Package core defines admission request and decision models.
package core

import "time"

// CheckRequest captures a single admission decision request.
type CheckRequest struct {
	Key    string
	Path   string
	Method string
}

// Decision reports the evaluated admission outcome.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
	// RetryAfter is the advisory wait in seconds before the client may be
	// admitted again. Populated only on denial.
	RetryAfter int
}

// RequestRecord is one entry in a bucket's recent request history.
type RequestRecord struct {
	Time   time.Time
	Path   string
	Method string
}

// ClientStats is a read-only snapshot of one client's bucket.
type ClientStats struct {
	ClientID       string
	Tokens         float64
	LastRefill     time.Time
	RecentRequests int
	RecentPaths    []string
}

// GlobalStats is a read-only snapshot of the whole registry.
type GlobalStats struct {
	InstanceID    string
	TotalClients  int
	ActiveClients int
	Limit         int
	BurstSize     int
	LastCleanup   time.Time
}
