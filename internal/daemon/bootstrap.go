// SPDX-License-Identifier: MIT

// Package daemon wires the pubsub components together and runs them until shutdown.
package daemon

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/larsks/pubsub-example/internal/api"
	"github.com/larsks/pubsub-example/internal/bus"
	"github.com/larsks/pubsub-example/internal/config"
	"github.com/larsks/pubsub-example/internal/health"
	"github.com/larsks/pubsub-example/internal/log"
	"github.com/larsks/pubsub-example/internal/longpoll"
	"github.com/larsks/pubsub-example/internal/telemetry"
)

// ServiceName identifies the daemon in logs and traces.
const ServiceName = "pubsub"

// Runtime is everything Bootstrap built. Tests reach into it; main only needs App.
type Runtime struct {
	App     *App
	Manager Manager
	Bus     bus.Bus
	Waiter  *longpoll.Waiter
	Health  *health.Manager
	API     *api.Server
}

// Bootstrap builds the bus, waiter, API server and manager from the holder's current
// configuration and subscribes the live-reloadable settings to config changes.
func Bootstrap(ctx context.Context, holder *config.Holder, logger zerolog.Logger) (*Runtime, error) {
	cfg := holder.Get()

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Tracing.Enabled,
		ServiceName:    ServiceName,
		ServiceVersion: cfg.Version,
		ExporterType:   cfg.Tracing.Exporter,
		Endpoint:       cfg.Tracing.Endpoint,
		SamplingRate:   cfg.Tracing.SamplingRate,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	b, pinger, err := newBus(cfg, logger)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, err
	}

	waiter := longpoll.NewWaiter(b, &longpoll.Counter{}, longpoll.WithTimeout(cfg.LongPoll.Timeout))

	hm := health.NewManager(cfg.Version)
	drain := &health.DrainChecker{}
	hm.RegisterChecker(health.NewBusChecker(cfg.Bus.Backend, pinger))
	hm.RegisterChecker(drain)
	if cfg.Static.Dir != "" {
		hm.RegisterChecker(health.NewStaticDirChecker(cfg.Static.Dir))
	}

	srv, err := api.New(cfg, api.Deps{Bus: b, Waiter: waiter, Health: hm})
	if err != nil {
		_ = b.Close()
		_ = tp.Shutdown(ctx)
		return nil, fmt.Errorf("init api: %w", err)
	}

	deps := Deps{
		Logger:     logger,
		Config:     cfg,
		APIHandler: srv.Handler(),
		OnShutdown: []func(){
			drain.StartDraining,
			func() { _ = b.Close() },
		},
	}
	if cfg.Metrics.Enabled {
		deps.MetricsHandler = promhttp.Handler()
	}

	mgr, err := NewManager(deps)
	if err != nil {
		_ = b.Close()
		_ = tp.Shutdown(ctx)
		return nil, err
	}
	// LIFO: the bus is released before spans are flushed.
	mgr.RegisterShutdownHook("telemetry", tp.Shutdown)
	mgr.RegisterShutdownHook("bus", func(context.Context) error { return b.Close() })

	holder.OnReload(func(old, updated config.AppConfig) {
		if old.LogLevel != updated.LogLevel {
			if err := log.SetLevel(updated.LogLevel); err != nil {
				logger.Warn().Err(err).Str("level", updated.LogLevel).Msg("log level not applied")
			}
		}
		if old.LongPoll.Timeout != updated.LongPoll.Timeout {
			waiter.SetTimeout(updated.LongPoll.Timeout)
		}
		for _, c := range config.Diff(old, updated) {
			if !c.Live {
				logger.Warn().Str(log.FieldEvent, "config.restart_required").Str("key", c.Key).
					Msg("changed setting takes effect after restart")
			}
		}
	})

	return &Runtime{
		App:     NewApp(logger, mgr, holder),
		Manager: mgr,
		Bus:     b,
		Waiter:  waiter,
		Health:  hm,
		API:     srv,
	}, nil
}

// newBus returns the configured bus and, for remote backends, a pinger for readiness.
func newBus(cfg config.AppConfig, logger zerolog.Logger) (bus.Bus, health.Pinger, error) {
	switch cfg.Bus.Backend {
	case bus.BackendMemory:
		return bus.NewMemoryBus(cfg.Bus.Buffer), nil, nil
	case bus.BackendRedis:
		rb, err := bus.NewRedisBus(bus.RedisConfig{
			Addr:     cfg.Bus.Redis.Addr,
			Password: cfg.Bus.Redis.Password,
			DB:       cfg.Bus.Redis.DB,
			Channel:  cfg.Bus.Redis.Channel,
			Buffer:   cfg.Bus.Buffer,
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("init redis bus: %w", err)
		}
		return rb, rb, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnsupportedBackend, cfg.Bus.Backend)
	}
}
