// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api provides the HTTP surface of the pubsub daemon: publish, long-poll
// subscribe, diagnostics, health and the bundled chat client.
package api

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/larsks/pubsub-example/internal/bus"
	"github.com/larsks/pubsub-example/internal/config"
	"github.com/larsks/pubsub-example/internal/health"
	"github.com/larsks/pubsub-example/internal/log"
	"github.com/larsks/pubsub-example/internal/longpoll"
	"github.com/larsks/pubsub-example/internal/metrics"
	"github.com/larsks/pubsub-example/internal/telemetry"
)

// Deps are the collaborators a Server routes requests to.
type Deps struct {
	Bus    bus.Bus
	Waiter *longpoll.Waiter
	Health *health.Manager

	// Registerer receives the waiting-sessions gauge. Nil uses the default registry.
	Registerer prometheus.Registerer
	// Logger overrides the component logger.
	Logger *zerolog.Logger
}

// Server represents the HTTP API server.
type Server struct {
	cfg     config.AppConfig
	bus     bus.Bus
	waiter  *longpoll.Waiter
	health  *health.Manager
	logger  zerolog.Logger
	tracer  trace.Tracer
	backend string

	handlerOnce sync.Once
	handler     http.Handler
}

// New creates the API server and registers its gauges.
func New(cfg config.AppConfig, deps Deps) (*Server, error) {
	switch {
	case deps.Bus == nil:
		return nil, ErrMissingBus
	case deps.Waiter == nil:
		return nil, ErrMissingWaiter
	case deps.Health == nil:
		return nil, ErrMissingHealth
	}

	logger := log.WithComponent("api")
	if deps.Logger != nil {
		logger = *deps.Logger
	}

	s := &Server{
		cfg:     cfg,
		bus:     deps.Bus,
		waiter:  deps.Waiter,
		health:  deps.Health,
		logger:  logger,
		tracer:  telemetry.Tracer("github.com/larsks/pubsub-example/internal/api"),
		backend: cfg.Bus.Backend,
	}

	counter := deps.Waiter.Counter()
	if err := metrics.RegisterWaitingGauge(deps.Registerer, func() float64 {
		return float64(counter.Count())
	}); err != nil {
		return nil, fmt.Errorf("register waiting gauge: %w", err)
	}
	return s, nil
}

// Handler returns the routed handler with the middleware stack applied. The router
// is built once.
func (s *Server) Handler() http.Handler {
	s.handlerOnce.Do(func() {
		s.handler = s.routes()
	})
	return s.handler
}

// Waiting reports how many /sub requests are currently blocked.
func (s *Server) Waiting() int64 {
	return s.waiter.Counter().Count()
}
