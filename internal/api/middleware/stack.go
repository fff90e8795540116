// SPDX-License-Identifier: MIT

package middleware

import (
	"github.com/go-chi/chi/v5"

	"github.com/larsks/pubsub-example/internal/log"
)

// StackConfig configures the HTTP ingress middleware stack.
type StackConfig struct {
	// CORS is applied only when origins are configured.
	AllowedOrigins []string

	EnableSecurityHeaders bool
	CSP                   string

	EnableMetrics  bool
	TracingService string // empty disables tracing
	EnableLogging  bool
}

// NewRouter constructs a chi router with the middleware stack applied.
func NewRouter(cfg StackConfig) *chi.Mux {
	r := chi.NewRouter()
	ApplyStack(r, cfg)
	return r
}

// ApplyStack applies the middleware stack to r. Publish rate limiting is route-scoped
// and is not part of the stack.
func ApplyStack(r chi.Router, cfg StackConfig) {
	// 1. Recoverer (outermost safety net)
	r.Use(Recoverer)
	// 2. RequestID (correlation early)
	r.Use(RequestID)
	// 3. CORS (so OPTIONS and browser clients behave)
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(CORS(cfg.AllowedOrigins))
	}
	// 4. Security headers
	if cfg.EnableSecurityHeaders {
		r.Use(SecurityHeaders(cfg.CSP))
	}
	// 5. Metrics
	if cfg.EnableMetrics {
		r.Use(Metrics())
	}
	// 6. Tracing
	if cfg.TracingService != "" {
		r.Use(Tracing(cfg.TracingService))
	}
	// 7. Logging (wraps handlers, captures full latency)
	if cfg.EnableLogging {
		r.Use(log.Middleware())
	}
}
