// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/larsks/pubsub-example/internal/config"
	"github.com/larsks/pubsub-example/internal/log"
)

// ShutdownHook is a function that performs cleanup during graceful shutdown.
// Hooks are executed in reverse registration order (LIFO).
type ShutdownHook func(ctx context.Context) error

// Manager manages the daemon lifecycle: starting servers, handling shutdown.
type Manager interface {
	// Start starts all configured servers and blocks until shutdown
	Start(ctx context.Context) error

	// Shutdown gracefully shuts down all servers
	Shutdown(ctx context.Context) error

	// RegisterShutdownHook registers a function to be called during shutdown
	RegisterShutdownHook(name string, hook ShutdownHook)

	// APIAddr is the bound API address once Start has opened the listener.
	APIAddr() string
}

// manager implements the Manager interface.
type manager struct {
	cfg  config.AppConfig
	deps Deps

	apiServer     *http.Server
	apiAddr       string
	metricsServer *http.Server

	// Shutdown hooks (LIFO order)
	shutdownHooks []namedHook

	started  bool
	stopping bool
	mu       sync.Mutex

	logger zerolog.Logger
}

// namedHook represents a shutdown hook with a name for logging
type namedHook struct {
	name string
	hook ShutdownHook
}

// NewManager creates a new daemon manager with the given dependencies.
func NewManager(deps Deps) (Manager, error) {
	if err := deps.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dependencies: %w", err)
	}

	return &manager{
		cfg:           deps.Config,
		deps:          deps,
		logger:        deps.Logger.With().Str(log.FieldComponent, "manager").Logger(),
		shutdownHooks: make([]namedHook, 0),
	}, nil
}

// Start binds the listeners, serves until ctx is cancelled or a server fails, then
// shuts down.
func (m *manager) Start(ctx context.Context) error {
	if ctx == nil {
		return fmt.Errorf("start context is nil")
	}

	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return ErrManagerAlreadyStarted
	}
	m.started = true
	m.mu.Unlock()

	m.logger.Info().
		Str("listen", m.cfg.API.ListenAddr).
		Dur("read_header_timeout", m.cfg.Server.ReadHeaderTimeout).
		Dur("idle_timeout", m.cfg.Server.IdleTimeout).
		Dur("shutdown_timeout", m.cfg.Server.ShutdownTimeout).
		Msg("starting daemon manager")

	errChan := make(chan error, 2)

	if m.cfg.Metrics.Enabled && m.deps.MetricsHandler != nil {
		if err := m.startMetricsServer(errChan); err != nil {
			m.shutdownAfterFailedStart(ctx)
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
	}

	if err := m.startAPIServer(errChan); err != nil {
		m.shutdownAfterFailedStart(ctx)
		return fmt.Errorf("failed to start API server: %w", err)
	}

	select {
	case err := <-errChan:
		m.logger.Error().Err(err).Msg("server error, initiating shutdown")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.Server.ShutdownTimeout)
		defer cancel()
		if shutdownErr := m.Shutdown(shutdownCtx); shutdownErr != nil {
			return fmt.Errorf("server error and shutdown failure: %w", errors.Join(err, shutdownErr))
		}
		return err
	case <-ctx.Done():
		m.logger.Info().Msg("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.Server.ShutdownTimeout)
		defer cancel()
		return m.Shutdown(shutdownCtx)
	}
}

func (m *manager) shutdownAfterFailedStart(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.Server.ShutdownTimeout)
	defer cancel()
	_ = m.Shutdown(shutdownCtx)
}

// startAPIServer binds the API listener and serves it in the background.
// Read and write timeouts stay zero: an expired read deadline cancels the request
// context, which a waiting /sub would report as a disconnect.
func (m *manager) startAPIServer(errChan chan<- error) error {
	ln, err := net.Listen("tcp", m.cfg.API.ListenAddr)
	if err != nil {
		return fmt.Errorf("%w: listen %s: %w", ErrServerStartFailed, m.cfg.API.ListenAddr, err)
	}

	srv := &http.Server{
		Handler:           m.deps.APIHandler,
		ReadHeaderTimeout: m.cfg.Server.ReadHeaderTimeout,
		IdleTimeout:       m.cfg.Server.IdleTimeout,
		MaxHeaderBytes:    m.cfg.Server.MaxHeaderBytes,
	}
	for _, fn := range m.deps.OnShutdown {
		srv.RegisterOnShutdown(fn)
	}

	m.mu.Lock()
	m.apiServer = srv
	m.apiAddr = ln.Addr().String()
	m.mu.Unlock()

	go func() {
		m.logger.Info().
			Str("addr", ln.Addr().String()).
			Msg("API server listening (HTTP)")

		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error().
				Err(err).
				Str(log.FieldEvent, "api.server.failed").
				Msg("API server failed")
			errChan <- fmt.Errorf("API server: %w", err)
		}
	}()

	return nil
}

// startMetricsServer starts the Prometheus metrics HTTP server.
func (m *manager) startMetricsServer(errChan chan<- error) error {
	addr := m.cfg.Metrics.ListenAddr
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("%w: listen %s: %w", ErrServerStartFailed, addr, err)
	}

	srv := &http.Server{
		Handler:           m.deps.MetricsHandler,
		ReadHeaderTimeout: m.cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	m.mu.Lock()
	m.metricsServer = srv
	m.mu.Unlock()

	go func() {
		m.logger.Info().
			Str("addr", ln.Addr().String()).
			Msg("metrics server listening")

		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error().
				Err(err).
				Str(log.FieldEvent, "metrics.server.failed").
				Msg("metrics server failed")
			errChan <- fmt.Errorf("metrics server: %w", err)
		}
	}()

	return nil
}

func (m *manager) Shutdown(ctx context.Context) error {
	if ctx == nil {
		return fmt.Errorf("shutdown context is nil")
	}

	m.mu.Lock()
	if m.stopping {
		m.mu.Unlock()
		return nil
	}
	if !m.started {
		m.mu.Unlock()
		return ErrManagerNotStarted
	}
	m.stopping = true
	apiServer, metricsServer := m.apiServer, m.metricsServer
	hooks := append([]namedHook(nil), m.shutdownHooks...)
	m.mu.Unlock()

	m.logger.Info().Msg("shutting down daemon manager")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.Server.ShutdownTimeout)
	defer cancel()

	var errs []error

	if apiServer != nil {
		m.logger.Debug().Msg("shutting down API server")
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("API server shutdown: %w", err))
		}
	} else {
		// The listener never came up; OnShutdown work still has to happen.
		for _, fn := range m.deps.OnShutdown {
			fn()
		}
	}

	if metricsServer != nil {
		m.logger.Debug().Msg("shutting down metrics server")
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}

	m.logger.Debug().Int("hooks", len(hooks)).Msg("executing shutdown hooks")
	for i := len(hooks) - 1; i >= 0; i-- {
		hook := hooks[i]
		hookStart := time.Now()
		if err := hook.hook(shutdownCtx); err != nil {
			m.logger.Error().
				Err(err).
				Str("hook", hook.name).
				Dur(log.FieldDuration, time.Since(hookStart)).
				Msg("shutdown hook failed")
			errs = append(errs, fmt.Errorf("hook %s: %w", hook.name, err))
		} else {
			m.logger.Debug().
				Str("hook", hook.name).
				Dur(log.FieldDuration, time.Since(hookStart)).
				Msg("shutdown hook completed")
		}
	}

	if len(errs) > 0 {
		m.logger.Error().
			Int("error_count", len(errs)).
			Msg("shutdown completed with errors")
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}

	m.logger.Info().Msg("daemon manager stopped cleanly")
	return nil
}

// RegisterShutdownHook registers a cleanup function to be called during shutdown.
// Hooks are executed in reverse registration order (LIFO).
func (m *manager) RegisterShutdownHook(name string, hook ShutdownHook) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.shutdownHooks = append(m.shutdownHooks, namedHook{
		name: name,
		hook: hook,
	})
	m.logger.Debug().Str("hook", name).Msg("registered shutdown hook")
}

func (m *manager) APIAddr() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.apiAddr
}
