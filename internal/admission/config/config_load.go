// Package config provides configuration loading.
package config

import (
	"encoding/json"
	"errors"
	"flag"
	"io"
	"os"
	"strconv"
	"time"

	"admission/internal/admission/core"
)

// LoadOptions controls config loading.
type LoadOptions struct {
	ConfigPath string
	Args       []string
	Environ    []string
}

// Load builds configuration from defaults, file, env, and flags, applied in
// that order.
func Load(opts LoadOptions) (*Config, error) {
	args := opts.Args
	if args == nil {
		args = os.Args[1:]
	}
	environ := opts.Environ
	if environ == nil {
		environ = os.Environ()
	}

	flagOverrides, err := parseFlagOverrides(args)
	if err != nil {
		return nil, err
	}

	configPath := opts.ConfigPath
	if flagOverrides.ConfigPath != nil {
		configPath = *flagOverrides.ConfigPath
	}

	cfg := defaultConfig()
	if configPath != "" {
		fileOverrides, err := loadConfigFile(configPath)
		if err != nil {
			return nil, err
		}
		applyConfigOverrides(cfg, fileOverrides)
	}
	if err := applyEnvOverrides(cfg, environ); err != nil {
		return nil, err
	}
	applyFlagOverrides(cfg, flagOverrides)
	// The defaults are positive, so a non-positive limit here can only be
	// an explicit file, env, or flag override. Refuse to start on it
	// rather than silently running with defaults.
	if err := cfg.Limits.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Limits: core.Limits{
			RequestsPerMinute:   core.DefaultRequestsPerMinute,
			BurstSize:           core.DefaultBurstSize,
			CleanupInterval:     core.DefaultCleanupInterval,
			InactivityThreshold: core.DefaultInactivityThreshold,
		},
		HTTPListenAddr:    ":8080",
		ExemptPaths:       []string{"/health", "/ready", "/metrics", "/docs", "/redoc", "/openapi.json"},
		TrustForwardedFor: true,
		LogLevel:          "info",
		HTTPReadTimeout:   5 * time.Second,
		HTTPWriteTimeout:  10 * time.Second,
		HTTPIdleTimeout:   60 * time.Second,
		DrainTimeout:      5 * time.Second,
	}
}

type configOverrides struct {
	RequestsPerMinute   *int           `json:"RequestsPerMinute"`
	BurstSize           *int           `json:"BurstSize"`
	CleanupInterval     *durationValue `json:"CleanupInterval"`
	InactivityThreshold *durationValue `json:"InactivityThreshold"`
	HTTPListenAddr      *string        `json:"HTTPListenAddr"`
	ExemptPaths         *[]string      `json:"ExemptPaths"`
	TrustForwardedFor   *bool          `json:"TrustForwardedFor"`
	LogLevel            *string        `json:"LogLevel"`
	InstanceID          *string        `json:"InstanceID"`
	HTTPReadTimeout     *durationValue `json:"HTTPReadTimeout"`
	HTTPWriteTimeout    *durationValue `json:"HTTPWriteTimeout"`
	HTTPIdleTimeout     *durationValue `json:"HTTPIdleTimeout"`
	DrainTimeout        *durationValue `json:"DrainTimeout"`
}

type durationValue struct {
	Value time.Duration
	Set   bool
}

func (d *durationValue) UnmarshalJSON(data []byte) error {
	if d == nil {
		return nil
	}
	if string(data) == "null" {
		return nil
	}
	var number json.Number
	if err := json.Unmarshal(data, &number); err == nil {
		value, err := number.Int64()
		if err != nil {
			return err
		}
		d.Value = time.Duration(value) * time.Millisecond
		d.Set = true
		return nil
	}
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		value, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return err
		}
		d.Value = time.Duration(value) * time.Millisecond
		d.Set = true
		return nil
	}
	return errors.New("invalid duration value")
}

type flagOverrides struct {
	ConfigPath            *string
	RequestsPerMinute     *int
	BurstSize             *int
	CleanupIntervalMS     *int
	InactivityThresholdMS *int
	HTTPListenAddr        *string
	ExemptPaths           *string
	TrustForwardedFor     *bool
	LogLevel              *string
	InstanceID            *string
	DrainTimeoutMS        *int
}

func parseFlagOverrides(args []string) (flagOverrides, error) {
	fs := flag.NewFlagSet("admission", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	setFlagUsage(fs)

	configPath := fs.String("config", "", "config file path")
	requestsPerMinute := fs.Int("requests_per_minute", 0, "sustained request rate per client")
	burstSize := fs.Int("burst_size", 0, "burst capacity per client")
	cleanupInterval := fs.Int("cleanup_interval_ms", 0, "sweep interval ms")
	inactivityThreshold := fs.Int("inactivity_threshold_ms", 0, "client eviction threshold ms")
	httpAddr := fs.String("http_addr", "", "http address")
	exemptPaths := fs.String("exempt_paths", "", "comma separated exempt paths")
	trustForwardedFor := fs.Bool("trust_forwarded_for", false, "trust X-Forwarded-For")
	logLevel := fs.String("log_level", "", "log level")
	instanceID := fs.String("instance_id", "", "instance identifier")
	drainTimeout := fs.Int("drain_timeout_ms", 0, "shutdown drain timeout ms")

	if err := fs.Parse(args); err != nil {
		return flagOverrides{}, errors.New("invalid flag values")
	}

	overrides := flagOverrides{}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "config":
			overrides.ConfigPath = configPath
		case "requests_per_minute":
			overrides.RequestsPerMinute = requestsPerMinute
		case "burst_size":
			overrides.BurstSize = burstSize
		case "cleanup_interval_ms":
			overrides.CleanupIntervalMS = cleanupInterval
		case "inactivity_threshold_ms":
			overrides.InactivityThresholdMS = inactivityThreshold
		case "http_addr":
			overrides.HTTPListenAddr = httpAddr
		case "exempt_paths":
			overrides.ExemptPaths = exemptPaths
		case "trust_forwarded_for":
			overrides.TrustForwardedFor = trustForwardedFor
		case "log_level":
			overrides.LogLevel = logLevel
		case "instance_id":
			overrides.InstanceID = instanceID
		case "drain_timeout_ms":
			overrides.DrainTimeoutMS = drainTimeout
		}
	})
	return overrides, nil
}

func setFlagUsage(fs *flag.FlagSet) {
	if fs == nil {
		return
	}
	fs.Usage = func() {}
}

func loadConfigFile(path string) (*configOverrides, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var overrides configOverrides
	if err := json.Unmarshal(data, &overrides); err != nil {
		return nil, err
	}
	return &overrides, nil
}

func applyConfigOverrides(cfg *Config, overrides *configOverrides) {
	if cfg == nil || overrides == nil {
		return
	}
	if overrides.RequestsPerMinute != nil {
		cfg.Limits.RequestsPerMinute = *overrides.RequestsPerMinute
	}
	if overrides.BurstSize != nil {
		cfg.Limits.BurstSize = *overrides.BurstSize
	}
	if overrides.CleanupInterval != nil && overrides.CleanupInterval.Set {
		cfg.Limits.CleanupInterval = overrides.CleanupInterval.Value
	}
	if overrides.InactivityThreshold != nil && overrides.InactivityThreshold.Set {
		cfg.Limits.InactivityThreshold = overrides.InactivityThreshold.Value
	}
	if overrides.HTTPListenAddr != nil {
		cfg.HTTPListenAddr = *overrides.HTTPListenAddr
	}
	if overrides.ExemptPaths != nil {
		cfg.ExemptPaths = *overrides.ExemptPaths
	}
	if overrides.TrustForwardedFor != nil {
		cfg.TrustForwardedFor = *overrides.TrustForwardedFor
	}
	if overrides.LogLevel != nil {
		cfg.LogLevel = *overrides.LogLevel
	}
	if overrides.InstanceID != nil {
		cfg.InstanceID = *overrides.InstanceID
	}
	if overrides.HTTPReadTimeout != nil && overrides.HTTPReadTimeout.Set {
		cfg.HTTPReadTimeout = overrides.HTTPReadTimeout.Value
	}
	if overrides.HTTPWriteTimeout != nil && overrides.HTTPWriteTimeout.Set {
		cfg.HTTPWriteTimeout = overrides.HTTPWriteTimeout.Value
	}
	if overrides.HTTPIdleTimeout != nil && overrides.HTTPIdleTimeout.Set {
		cfg.HTTPIdleTimeout = overrides.HTTPIdleTimeout.Value
	}
	if overrides.DrainTimeout != nil && overrides.DrainTimeout.Set {
		cfg.DrainTimeout = overrides.DrainTimeout.Value
	}
}

func applyFlagOverrides(cfg *Config, overrides flagOverrides) {
	if cfg == nil {
		return
	}
	if overrides.RequestsPerMinute != nil {
		cfg.Limits.RequestsPerMinute = *overrides.RequestsPerMinute
	}
	if overrides.BurstSize != nil {
		cfg.Limits.BurstSize = *overrides.BurstSize
	}
	if overrides.CleanupIntervalMS != nil {
		cfg.Limits.CleanupInterval = time.Duration(*overrides.CleanupIntervalMS) * time.Millisecond
	}
	if overrides.InactivityThresholdMS != nil {
		cfg.Limits.InactivityThreshold = time.Duration(*overrides.InactivityThresholdMS) * time.Millisecond
	}
	if overrides.HTTPListenAddr != nil {
		cfg.HTTPListenAddr = *overrides.HTTPListenAddr
	}
	if overrides.ExemptPaths != nil {
		cfg.ExemptPaths = splitPathList(*overrides.ExemptPaths)
	}
	if overrides.TrustForwardedFor != nil {
		cfg.TrustForwardedFor = *overrides.TrustForwardedFor
	}
	if overrides.LogLevel != nil {
		cfg.LogLevel = *overrides.LogLevel
	}
	if overrides.InstanceID != nil {
		cfg.InstanceID = *overrides.InstanceID
	}
	if overrides.DrainTimeoutMS != nil {
		cfg.DrainTimeout = time.Duration(*overrides.DrainTimeoutMS) * time.Millisecond
	}
}
