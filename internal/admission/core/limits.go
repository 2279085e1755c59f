// Package core defines token bucket limit parameters.
package core

import (
	"fmt"
	"time"
)

// Default limit parameters.
const (
	DefaultRequestsPerMinute   = 100
	DefaultBurstSize           = 20
	DefaultCleanupInterval     = 5 * time.Minute
	DefaultInactivityThreshold = time.Hour
)

// Limits holds the token bucket parameters. Limits are immutable once the
// application is constructed.
type Limits struct {
	RequestsPerMinute   int
	BurstSize           int
	CleanupInterval     time.Duration
	InactivityThreshold time.Duration
}

// NormalizeLimits fills unset parameters with defaults.
func NormalizeLimits(limits Limits) Limits {
	if limits.RequestsPerMinute == 0 {
		limits.RequestsPerMinute = DefaultRequestsPerMinute
	}
	if limits.BurstSize == 0 {
		limits.BurstSize = DefaultBurstSize
	}
	if limits.CleanupInterval == 0 {
		limits.CleanupInterval = DefaultCleanupInterval
	}
	if limits.InactivityThreshold == 0 {
		limits.InactivityThreshold = DefaultInactivityThreshold
	}
	return limits
}

// Validate rejects parameters that must prevent startup.
func (l Limits) Validate() error {
	if l.RequestsPerMinute <= 0 {
		return fmt.Errorf("%w: requests per minute must be positive", ErrInvalidLimits)
	}
	if l.BurstSize <= 0 {
		return fmt.Errorf("%w: burst size must be positive", ErrInvalidLimits)
	}
	if l.CleanupInterval <= 0 {
		return fmt.Errorf("%w: cleanup interval must be positive", ErrInvalidLimits)
	}
	if l.InactivityThreshold <= 0 {
		return fmt.Errorf("%w: inactivity threshold must be positive", ErrInvalidLimits)
	}
	return nil
}

// RefillRate returns tokens added per second.
func (l Limits) RefillRate() float64 {
	return float64(l.RequestsPerMinute) / 60.0
}

// resetDelay is the advertised interval until a bucket's reset timestamp.
func (l Limits) resetDelay() time.Duration {
	return time.Duration(60.0 / l.RefillRate() * float64(time.Second))
}
