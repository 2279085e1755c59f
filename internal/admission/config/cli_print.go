// Package config provides CLI helpers.
package config

import (
	"encoding/json"
	"errors"
	"io"
	"strconv"
	"time"
)

// PrintConfig writes the config to the writer as JSON.
func PrintConfig(w io.Writer, cfg *Config) error {
	if cfg == nil {
		return errors.New("config is required")
	}
	if w == nil {
		return errors.New("writer is required")
	}
	snapshot := newConfigSnapshot(cfg)
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(snapshot)
}

type durationMillis time.Duration

func (d durationMillis) MarshalJSON() ([]byte, error) {
	ms := time.Duration(d).Milliseconds()
	return []byte(strconv.FormatInt(ms, 10)), nil
}

type configSnapshot struct {
	RequestsPerMinute   int
	BurstSize           int
	CleanupInterval     durationMillis
	InactivityThreshold durationMillis
	HTTPListenAddr      string
	ExemptPaths         []string
	TrustForwardedFor   bool
	LogLevel            string
	InstanceID          string
	HTTPReadTimeout     durationMillis
	HTTPWriteTimeout    durationMillis
	HTTPIdleTimeout     durationMillis
	DrainTimeout        durationMillis
}

func newConfigSnapshot(cfg *Config) configSnapshot {
	snapshot := configSnapshot{}
	if cfg == nil {
		return snapshot
	}
	snapshot.RequestsPerMinute = cfg.Limits.RequestsPerMinute
	snapshot.BurstSize = cfg.Limits.BurstSize
	snapshot.CleanupInterval = durationMillis(cfg.Limits.CleanupInterval)
	snapshot.InactivityThreshold = durationMillis(cfg.Limits.InactivityThreshold)
	snapshot.HTTPListenAddr = cfg.HTTPListenAddr
	snapshot.ExemptPaths = cfg.ExemptPaths
	snapshot.TrustForwardedFor = cfg.TrustForwardedFor
	snapshot.LogLevel = cfg.LogLevel
	snapshot.InstanceID = cfg.InstanceID
	snapshot.HTTPReadTimeout = durationMillis(cfg.HTTPReadTimeout)
	snapshot.HTTPWriteTimeout = durationMillis(cfg.HTTPWriteTimeout)
	snapshot.HTTPIdleTimeout = durationMillis(cfg.HTTPIdleTimeout)
	snapshot.DrainTimeout = durationMillis(cfg.DrainTimeout)
	return snapshot
}
