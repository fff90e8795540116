// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/larsks/pubsub-example/internal/config"
	"github.com/larsks/pubsub-example/internal/log"
)

// PerformStartupChecks validates the environment before the listeners start.
func PerformStartupChecks(ctx context.Context, cfg config.AppConfig) error {
	logger := log.WithComponent("startup-check")
	logger.Info().Msg("running pre-flight startup checks")

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := checkListenAddr(logger, "api", cfg.API.ListenAddr); err != nil {
		return fmt.Errorf("listen address check failed: %w", err)
	}
	if cfg.Metrics.Enabled {
		if err := checkListenAddr(logger, "metrics", cfg.Metrics.ListenAddr); err != nil {
			return fmt.Errorf("metrics address check failed: %w", err)
		}
		if cfg.Metrics.ListenAddr == cfg.API.ListenAddr {
			return fmt.Errorf("metrics listener %q collides with the api listener", cfg.Metrics.ListenAddr)
		}
	}

	if cfg.Static.Dir != "" {
		if err := checkStaticDir(logger, cfg.Static.Dir); err != nil {
			return fmt.Errorf("static directory check failed: %w", err)
		}
	}

	if cfg.LongPoll.Timeout == 0 {
		logger.Info().Msg("long polls wait until a message arrives or the client disconnects")
	}
	if cfg.Bus.Backend == "redis" && cfg.Bus.Redis.Password == "" {
		logger.Warn().Str(log.FieldBackend, "redis").Msg("redis password not set")
	}

	logger.Info().Msg("all startup checks passed")
	return nil
}

func checkListenAddr(logger zerolog.Logger, name, addr string) error {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("invalid %s listen address %q: %w", name, addr, err)
	}
	logger.Debug().Str("listener", name).Str("addr", addr).Msg("listen address is valid")
	return nil
}

func checkStaticDir(logger zerolog.Logger, dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", dir)
	}
	if _, err := os.Stat(filepath.Join(dir, "index.html")); err != nil {
		logger.Warn().Str("dir", dir).Msg("static directory has no index.html")
	}
	logger.Info().Str("dir", dir).Msg("serving chat client from disk")
	return nil
}
