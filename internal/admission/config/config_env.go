// Package config provides environment config overrides.
package config

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

func applyEnvOverrides(cfg *Config, environ []string) error {
	if cfg == nil {
		return errors.New("config is required")
	}
	values := envMap(environ)
	if value, ok := values["ADMISSION_REQUESTS_PER_MINUTE"]; ok {
		parsed, err := parseIntEnv("ADMISSION_REQUESTS_PER_MINUTE", value)
		if err != nil {
			return err
		}
		cfg.Limits.RequestsPerMinute = int(parsed)
	}
	if value, ok := values["ADMISSION_BURST_SIZE"]; ok {
		parsed, err := parseIntEnv("ADMISSION_BURST_SIZE", value)
		if err != nil {
			return err
		}
		cfg.Limits.BurstSize = int(parsed)
	}
	if value, ok := values["ADMISSION_CLEANUP_INTERVAL_MS"]; ok {
		parsed, err := parseIntEnv("ADMISSION_CLEANUP_INTERVAL_MS", value)
		if err != nil {
			return err
		}
		cfg.Limits.CleanupInterval = time.Duration(parsed) * time.Millisecond
	}
	if value, ok := values["ADMISSION_INACTIVITY_THRESHOLD_MS"]; ok {
		parsed, err := parseIntEnv("ADMISSION_INACTIVITY_THRESHOLD_MS", value)
		if err != nil {
			return err
		}
		cfg.Limits.InactivityThreshold = time.Duration(parsed) * time.Millisecond
	}
	if value, ok := values["ADMISSION_HTTP_ADDR"]; ok {
		cfg.HTTPListenAddr = value
	}
	if value, ok := values["ADMISSION_EXEMPT_PATHS"]; ok {
		cfg.ExemptPaths = splitPathList(value)
	}
	if value, ok := values["ADMISSION_TRUST_FORWARDED_FOR"]; ok {
		parsed, err := parseBoolEnv("ADMISSION_TRUST_FORWARDED_FOR", value)
		if err != nil {
			return err
		}
		cfg.TrustForwardedFor = parsed
	}
	if value, ok := values["ADMISSION_LOG_LEVEL"]; ok {
		cfg.LogLevel = value
	}
	if value, ok := values["ADMISSION_INSTANCE_ID"]; ok {
		cfg.InstanceID = value
	}
	if value, ok := values["ADMISSION_DRAIN_TIMEOUT_MS"]; ok {
		parsed, err := parseIntEnv("ADMISSION_DRAIN_TIMEOUT_MS", value)
		if err != nil {
			return err
		}
		cfg.DrainTimeout = time.Duration(parsed) * time.Millisecond
	}
	return nil
}

func envMap(environ []string) map[string]string {
	values := make(map[string]string)
	for _, entry := range environ {
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		if key == "" {
			continue
		}
		values[key] = parts[1]
	}
	return values
}

func splitPathList(value string) []string {
	parts := strings.Split(value, ",")
	paths := make([]string, 0, len(parts))
	for _, part := range parts {
		path := strings.TrimSpace(part)
		if path == "" {
			continue
		}
		paths = append(paths, path)
	}
	return paths
}

func parseBoolEnv(name, value string) (bool, error) {
	parsed, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return false, errors.New("invalid env value for " + name)
	}
	return parsed, nil
}

func parseIntEnv(name, value string) (int64, error) {
	parsed, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0, errors.New("invalid env value for " + name)
	}
	return parsed, nil
}
