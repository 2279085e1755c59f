// Package core defines service interfaces.
package core

import "context"

// AdmissionService decides whether requests may proceed.
type AdmissionService interface {
	Evaluate(req *CheckRequest) *Decision
	Limits() Limits
}

// StatsService exposes read-only admission state.
type StatsService interface {
	ClientStats(key string) (ClientStats, error)
	GlobalStats() GlobalStats
}

// Transport exposes services over a transport layer.
type Transport interface {
	ServeAdmission(service AdmissionService) error
	ServeStats(service StatsService) error
	Shutdown(ctx context.Context) error
}
