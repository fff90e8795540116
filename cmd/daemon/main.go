// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/larsks/pubsub-example/internal/config"
	"github.com/larsks/pubsub-example/internal/daemon"
	"github.com/larsks/pubsub-example/internal/health"
	pslog "github.com/larsks/pubsub-example/internal/log"
	"github.com/larsks/pubsub-example/internal/version"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "config":
			os.Exit(runConfigCLI(os.Args[2:], os.Stdout, os.Stderr))
		case "healthcheck":
			os.Exit(runHealthcheckCLI(os.Args[2:], os.Stdout, os.Stderr))
		}
	}

	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		os.Exit(0)
	}

	pslog.Configure(pslog.Config{Service: daemon.ServiceName, Version: version.Version})
	logger := pslog.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	effectiveConfigPath := resolveConfigPath(*configPath)
	loader := config.NewLoader(effectiveConfigPath, version.Version)
	cfg, err := loader.Load()
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "config.load_failed").
			Str("path", effectiveConfigPath).
			Msg("failed to load configuration")
	}

	// Reconfigure with the configured level now that the file is known.
	pslog.Configure(pslog.Config{Level: cfg.LogLevel, Service: daemon.ServiceName, Version: version.Version})
	logger = pslog.WithComponent("daemon")

	if effectiveConfigPath != "" {
		logger.Info().
			Str("event", "config.loaded").
			Str("source", "file").
			Str("path", effectiveConfigPath).
			Msg("loaded configuration from file")
	} else {
		logger.Info().
			Str("event", "config.loaded").
			Str("source", "env+defaults").
			Msg("loaded configuration from environment and defaults")
	}

	if err := health.PerformStartupChecks(ctx, cfg); err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "startup.check_failed").
			Msg("startup checks failed, verify configuration")
	}

	logger.Info().
		Str("event", "startup").
		Str("version", version.Version).
		Str("commit", version.Commit).
		Str("build_date", version.Date).
		Str("addr", cfg.API.ListenAddr).
		Str(pslog.FieldBackend, cfg.Bus.Backend).
		Dur("longpoll_timeout", cfg.LongPoll.Timeout).
		Msg("starting pubsub")

	holder := config.NewHolder(cfg, loader)
	rt, err := daemon.Bootstrap(ctx, holder, logger)
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "bootstrap.failed").
			Msg("failed to build runtime")
	}

	if err := rt.App.Run(ctx); err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "manager.failed").
			Msg("daemon app failed")
	}

	logger.Info().Msg("server exiting")
}

// resolveConfigPath prefers the flag, then PUBSUB_CONFIG. Empty means env and defaults only.
func resolveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return config.ParseString("PUBSUB_CONFIG", "")
}
