// Package app wires application dependencies.
package app

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"admission/internal/admission/config"
	"admission/internal/admission/core"
	"admission/internal/admission/observability"
	httptransport "admission/internal/admission/transport/http"
)

// Application holds core components for the service.
type Application struct {
	Config        *config.Config
	Registry      *core.Registry
	Controller    *core.Controller
	StatsReporter *core.StatsReporter
	Identifier    *core.ClientIdentifier
	ready         atomic.Bool
	httpTransport *httptransport.HTTPTransport
	transports    []core.Transport
	wg            sync.WaitGroup
	logger        observability.Logger
}

// NewApplication validates configuration and prepares the application.
func NewApplication(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if cfg.HTTPListenAddr == "" {
		return nil, errors.New("http listen address is required")
	}
	if cfg.HTTPReadTimeout < 0 {
		return nil, errors.New("http read timeout must be positive")
	}
	if cfg.HTTPWriteTimeout < 0 {
		return nil, errors.New("http write timeout must be positive")
	}
	if cfg.HTTPIdleTimeout < 0 {
		return nil, errors.New("http idle timeout must be positive")
	}
	if cfg.DrainTimeout < 0 {
		return nil, errors.New("drain timeout must be positive")
	}
	if cfg.HTTPReadTimeout == 0 {
		cfg.HTTPReadTimeout = 5 * time.Second
	}
	if cfg.HTTPWriteTimeout == 0 {
		cfg.HTTPWriteTimeout = 10 * time.Second
	}
	if cfg.HTTPIdleTimeout == 0 {
		cfg.HTTPIdleTimeout = 60 * time.Second
	}
	if cfg.DrainTimeout == 0 {
		cfg.DrainTimeout = 5 * time.Second
	}
	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NewLogrusLogger(os.Stdout, cfg.LogLevel)
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observability.NewInMemoryMetrics()
		cfg.Metrics = metrics
	}

	clock := core.SystemClock{}
	registry, err := core.NewRegistry(cfg.Limits, clock)
	if err != nil {
		return nil, err
	}
	controller, err := core.NewController(registry, clock, cfg.Logger, metrics)
	if err != nil {
		return nil, err
	}
	reporter, err := core.NewStatsReporter(registry, clock, cfg.InstanceID)
	if err != nil {
		return nil, err
	}
	identifier := core.NewClientIdentifier(core.NewByteBufferPool(4096))

	app := &Application{
		Config:        cfg,
		Registry:      registry,
		Controller:    controller,
		StatsReporter: reporter,
		Identifier:    identifier,
		logger:        cfg.Logger,
	}

	transport := httptransport.NewHTTPTransport(cfg.HTTPListenAddr, app.Ready)
	if err := transport.ServeAdmission(app.Controller); err != nil {
		return nil, err
	}
	if err := transport.ServeStats(app.StatsReporter); err != nil {
		return nil, err
	}
	transport.Configure(httptransport.HTTPTransportConfig{
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		DrainTimeout:      cfg.DrainTimeout,
		ExemptPaths:       cfg.ExemptPaths,
		TrustForwardedFor: cfg.TrustForwardedFor,
		Identifier:        app.Identifier,
		Logger:            cfg.Logger,
		Metrics:           metrics,
	})
	app.httpTransport = transport
	app.transports = append(app.transports, transport)

	app.logger.Info("admission controller initialized", map[string]any{
		"instance_id":         cfg.InstanceID,
		"requests_per_minute": registry.Limits().RequestsPerMinute,
		"burst_size":          registry.Limits().BurstSize,
	})

	return app, nil
}

// Start begins serving for the application.
func (app *Application) Start(ctx context.Context) error {
	if app == nil {
		return errors.New("application is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if app.httpTransport != nil {
		app.wg.Add(1)
		go func() {
			defer app.wg.Done()
			_ = app.httpTransport.Start()
		}()
	}

	app.ready.Store(true)
	if app.logger != nil && app.Config != nil {
		limits := app.Registry.Limits()
		app.logger.Info("application started", map[string]any{
			"addr":                app.Config.HTTPListenAddr,
			"requests_per_minute": limits.RequestsPerMinute,
			"burst_size":          limits.BurstSize,
		})
	}

	return nil
}

// Shutdown stops serving and drains in flight requests.
func (app *Application) Shutdown(ctx context.Context) error {
	if app == nil {
		return errors.New("application is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	app.ready.Store(false)
	if app.logger != nil && app.Config != nil {
		app.logger.Info("application shutdown", map[string]any{
			"addr": app.Config.HTTPListenAddr,
		})
	}
	for _, transport := range app.transports {
		if transport == nil {
			continue
		}
		_ = transport.Shutdown(ctx)
	}
	done := make(chan struct{})
	go func() {
		app.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ready reports whether the application has completed startup.
func (app *Application) Ready() bool {
	if app == nil {
		return false
	}
	return app.ready.Load()
}
