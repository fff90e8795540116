// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/larsks/pubsub-example/internal/api/middleware"
)

const tracingService = "pubsub"

func (s *Server) routes() http.Handler {
	stack := middleware.StackConfig{
		AllowedOrigins:        s.cfg.API.AllowedOrigins,
		EnableSecurityHeaders: true,
		EnableMetrics:         s.cfg.Metrics.Enabled,
		EnableLogging:         true,
	}
	if s.cfg.Tracing.Enabled {
		stack.TracingService = tracingService
	}
	r := middleware.NewRouter(stack)

	s.registerPubSubRoutes(r)
	s.registerOperatorRoutes(r)
	s.registerStaticRoutes(r)
	return r
}

func (s *Server) registerPubSubRoutes(r chi.Router) {
	r.Post("/pub", s.handlePublish)
	r.Get("/sub", s.handleSubscribe)
}

// registerOperatorRoutes mounts the diagnostic endpoints. Publishers are never
// throttled; the optional limit applies to /debug and /openapi.yaml only, and
// health probes stay unlimited.
func (s *Server) registerOperatorRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.OperatorRateLimit(s.cfg.API.OperatorRateLimit))
		r.Get("/debug", s.handleDebug)
		r.Get("/openapi.yaml", s.handleOpenAPI)
	})
	r.Get("/healthz", s.health.ServeHealth)
	r.Get("/readyz", s.health.ServeReady)
}

func (s *Server) registerStaticRoutes(r chi.Router) {
	h := s.staticHandler()
	r.Get("/", h.ServeHTTP)
	r.Get("/*", h.ServeHTTP)
	r.Head("/*", h.ServeHTTP)
}
