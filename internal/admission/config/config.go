// Package config provides configuration for the application wiring.
package config

import (
	"time"

	"admission/internal/admission/core"
	"admission/internal/admission/observability"
)

// Config captures dependency and runtime settings.
type Config struct {
	Limits            core.Limits
	HTTPListenAddr    string
	ExemptPaths       []string
	TrustForwardedFor bool
	LogLevel          string
	InstanceID        string
	HTTPReadTimeout   time.Duration
	HTTPWriteTimeout  time.Duration
	HTTPIdleTimeout   time.Duration
	DrainTimeout      time.Duration
	Logger            observability.Logger
	Metrics           observability.Metrics
}
