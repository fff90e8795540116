// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/rs/zerolog"
)

// Validate checks cfg and reports every problem at once. Each returned error
// matches ErrInvalidConfig.
func Validate(cfg AppConfig) error {
	var errs []error
	fail := func(field, format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %s: %s", ErrInvalidConfig, field, fmt.Sprintf(format, args...)))
	}

	if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
		fail("logLevel", "unknown level %q", cfg.LogLevel)
	}

	if err := validateListenAddr(cfg.API.ListenAddr); err != nil {
		fail("api.listenAddr", "%v", err)
	}
	if cfg.API.OperatorRateLimit < 0 {
		fail("api.operatorRateLimit", "must be >= 0, got %d", cfg.API.OperatorRateLimit)
	}

	if cfg.Server.ReadHeaderTimeout < 0 {
		fail("server.readHeaderTimeout", "must not be negative")
	}
	if cfg.Server.IdleTimeout < 0 {
		fail("server.idleTimeout", "must not be negative")
	}
	if cfg.LongPoll.Timeout < 0 {
		fail("longpoll.timeout", "must not be negative")
	}

	switch cfg.Bus.Backend {
	case "memory":
	case "redis":
		if cfg.Bus.Redis.Addr == "" {
			fail("bus.redis.addr", "required when bus.backend is redis")
		}
		if cfg.Bus.Redis.DB < 0 {
			fail("bus.redis.db", "must be >= 0")
		}
	default:
		fail("bus.backend", "unsupported backend %q (supported: memory, redis)", cfg.Bus.Backend)
	}
	if cfg.Bus.Buffer < 1 {
		fail("bus.buffer", "must be >= 1, got %d", cfg.Bus.Buffer)
	}

	if cfg.Metrics.Enabled {
		if err := validateListenAddr(cfg.Metrics.ListenAddr); err != nil {
			fail("metrics.listenAddr", "%v", err)
		}
	}

	if cfg.Tracing.Enabled {
		switch cfg.Tracing.Exporter {
		case "grpc", "http":
		default:
			fail("tracing.exporter", "unsupported exporter %q (supported: grpc, http)", cfg.Tracing.Exporter)
		}
		if cfg.Tracing.Endpoint == "" {
			fail("tracing.endpoint", "required when tracing is enabled")
		}
	}
	if cfg.Tracing.SamplingRate < 0 || cfg.Tracing.SamplingRate > 1 {
		fail("tracing.samplingRate", "must be between 0 and 1, got %v", cfg.Tracing.SamplingRate)
	}

	return errors.Join(errs...)
}

func validateListenAddr(addr string) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid listen address %q: %w", addr, err)
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 0 || n > 65535 {
		return fmt.Errorf("invalid port %q in %q", port, addr)
	}
	return nil
}
