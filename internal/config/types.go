// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "time"

// AppConfig is the effective daemon configuration. YAML tags define the file schema;
// every key also has a PUBSUB_* environment variable.
type AppConfig struct {
	LogLevel string         `yaml:"logLevel"`
	API      APIConfig      `yaml:"api"`
	Server   ServerConfig   `yaml:"server"`
	LongPoll LongPollConfig `yaml:"longpoll"`
	Bus      BusConfig      `yaml:"bus"`
	Static   StaticConfig   `yaml:"static"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Tracing  TracingConfig  `yaml:"tracing"`

	// Version is stamped from the binary, never read from file.
	Version string `yaml:"-"`
}

// APIConfig configures the public HTTP listener.
type APIConfig struct {
	ListenAddr     string   `yaml:"listenAddr"`
	AllowedOrigins []string `yaml:"allowedOrigins,omitempty"`
	// OperatorRateLimit is /debug and /openapi.yaml requests per minute per client
	// IP; 0 disables. Publishing is never limited.
	OperatorRateLimit int `yaml:"operatorRateLimit"`
}

// ServerConfig holds http.Server tuning. Read and write timeouts are always zero
// because /sub holds responses open.
type ServerConfig struct {
	ReadHeaderTimeout time.Duration `yaml:"readHeaderTimeout"`
	IdleTimeout       time.Duration `yaml:"idleTimeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdownTimeout"`
	MaxHeaderBytes    int           `yaml:"maxHeaderBytes"`
}

// LongPollConfig configures wait sessions.
type LongPollConfig struct {
	// Timeout bounds one wait; 0 waits until the client disconnects.
	Timeout time.Duration `yaml:"timeout"`
}

// BusConfig selects and tunes the message bus.
type BusConfig struct {
	Backend string      `yaml:"backend"`
	Buffer  int         `yaml:"buffer"`
	Redis   RedisConfig `yaml:"redis"`
}

// RedisConfig configures the Redis PUB/SUB backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
}

// StaticConfig points at an on-disk chat client that replaces the embedded one.
type StaticConfig struct {
	Dir string `yaml:"dir,omitempty"`
}

// MetricsConfig configures the Prometheus listener.
type MetricsConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listenAddr"`
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"samplingRate"`
}
