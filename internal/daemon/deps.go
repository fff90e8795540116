// SPDX-License-Identifier: MIT

package daemon

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/larsks/pubsub-example/internal/config"
)

// Deps contains dependencies required by the daemon Manager.
type Deps struct {
	// Logger is the structured logger for the daemon
	Logger zerolog.Logger

	// Config supplies listen addresses and server tuning.
	Config config.AppConfig

	// APIHandler is the HTTP handler for the API server
	APIHandler http.Handler

	// MetricsHandler is served on Config.Metrics.ListenAddr when metrics are enabled.
	MetricsHandler http.Handler

	// OnShutdown functions run as soon as the API server begins shutting down, while
	// long polls are still open. Closing the bus here lets them return.
	OnShutdown []func()
}

// Validate checks if the dependencies are valid.
func (d *Deps) Validate() error {
	if d.Logger.GetLevel() == zerolog.Disabled {
		return ErrMissingLogger
	}
	if d.APIHandler == nil {
		return ErrMissingAPIHandler
	}
	// Config validation is done by config.Loader
	return nil
}
