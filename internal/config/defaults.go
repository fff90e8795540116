// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "time"

const (
	DefaultListenAddr        = ":8080"
	DefaultMetricsListenAddr = ":9090"
	DefaultRedisAddr         = "localhost:6379"
	DefaultRedisChannel      = "pubsub:messages"

	defaultReadHeaderTimeout = 10 * time.Second
	defaultIdleTimeout       = 120 * time.Second
	defaultShutdownTimeout   = 15 * time.Second
	defaultMaxHeaderBytes    = 1 << 20 // 1 MB

	// MinShutdownTimeout is the floor applied to server.shutdownTimeout.
	MinShutdownTimeout = 3 * time.Second
)

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		LogLevel: "info",
		API: APIConfig{
			ListenAddr: DefaultListenAddr,
		},
		Server: ServerConfig{
			ReadHeaderTimeout: defaultReadHeaderTimeout,
			IdleTimeout:       defaultIdleTimeout,
			ShutdownTimeout:   defaultShutdownTimeout,
			MaxHeaderBytes:    defaultMaxHeaderBytes,
		},
		Bus: BusConfig{
			Backend: "memory",
			Buffer:  1,
			Redis: RedisConfig{
				Addr:    DefaultRedisAddr,
				Channel: DefaultRedisChannel,
			},
		},
		Metrics: MetricsConfig{
			ListenAddr: DefaultMetricsListenAddr,
		},
		Tracing: TracingConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
		},
	}
}
