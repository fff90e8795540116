// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Loader handles configuration loading with precedence ENV > File > Defaults.
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a new configuration loader. An empty path skips the file layer.
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

// Path returns the config file path, possibly empty.
func (l *Loader) Path() string {
	return l.configPath
}

func (l *Loader) envString(key, defaultVal string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, defaultVal)
}

func (l *Loader) envBool(key string, defaultVal bool) bool {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, defaultVal)
}

func (l *Loader) envInt(key string, defaultVal int) int {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, defaultVal)
}

func (l *Loader) envDuration(key string, defaultVal time.Duration) time.Duration {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, defaultVal)
}

func (l *Loader) envFloat(key string, defaultVal float64) float64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, defaultVal)
}

func (l *Loader) envList(key string, defaultVal []string) []string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseList(key, defaultVal)
}

// Load builds the configuration: defaults, then the strict YAML file, then the
// environment, then validation.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	l.mergeEnv(&cfg)
	normalize(&cfg)
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile decodes path over cfg. Unknown keys and multiple documents are errors.
func (l *Loader) loadFile(path string, cfg *AppConfig) error {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return fmt.Errorf("%w: %w", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("config file contains multiple documents or trailing content")
	}
	return nil
}

func (l *Loader) mergeEnv(cfg *AppConfig) {
	cfg.LogLevel = l.envString("PUBSUB_LOG_LEVEL", cfg.LogLevel)

	cfg.API.ListenAddr = l.envString("PUBSUB_LISTEN", cfg.API.ListenAddr)
	cfg.API.AllowedOrigins = l.envList("PUBSUB_ALLOWED_ORIGINS", cfg.API.AllowedOrigins)
	cfg.API.OperatorRateLimit = l.envInt("PUBSUB_OPERATOR_RATE_LIMIT", cfg.API.OperatorRateLimit)

	cfg.Server.ReadHeaderTimeout = l.envDuration("PUBSUB_SERVER_READ_HEADER_TIMEOUT", cfg.Server.ReadHeaderTimeout)
	cfg.Server.IdleTimeout = l.envDuration("PUBSUB_SERVER_IDLE_TIMEOUT", cfg.Server.IdleTimeout)
	cfg.Server.ShutdownTimeout = l.envDuration("PUBSUB_SERVER_SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)
	cfg.Server.MaxHeaderBytes = l.envInt("PUBSUB_SERVER_MAX_HEADER_BYTES", cfg.Server.MaxHeaderBytes)

	cfg.LongPoll.Timeout = l.envDuration("PUBSUB_LONGPOLL_TIMEOUT", cfg.LongPoll.Timeout)

	cfg.Bus.Backend = l.envString("PUBSUB_BUS_BACKEND", cfg.Bus.Backend)
	cfg.Bus.Buffer = l.envInt("PUBSUB_BUS_BUFFER", cfg.Bus.Buffer)
	cfg.Bus.Redis.Addr = l.envString("PUBSUB_REDIS_ADDR", cfg.Bus.Redis.Addr)
	cfg.Bus.Redis.Password = l.envString("PUBSUB_REDIS_PASSWORD", cfg.Bus.Redis.Password)
	cfg.Bus.Redis.DB = l.envInt("PUBSUB_REDIS_DB", cfg.Bus.Redis.DB)
	cfg.Bus.Redis.Channel = l.envString("PUBSUB_REDIS_CHANNEL", cfg.Bus.Redis.Channel)

	cfg.Static.Dir = l.envString("PUBSUB_STATIC_DIR", cfg.Static.Dir)

	cfg.Metrics.Enabled = l.envBool("PUBSUB_METRICS_ENABLED", cfg.Metrics.Enabled)
	cfg.Metrics.ListenAddr = l.envString("PUBSUB_METRICS_LISTEN", cfg.Metrics.ListenAddr)

	cfg.Tracing.Enabled = l.envBool("PUBSUB_TRACING_ENABLED", cfg.Tracing.Enabled)
	cfg.Tracing.Exporter = l.envString("PUBSUB_TRACING_EXPORTER", cfg.Tracing.Exporter)
	cfg.Tracing.Endpoint = l.envString("PUBSUB_TRACING_ENDPOINT", cfg.Tracing.Endpoint)
	cfg.Tracing.SamplingRate = l.envFloat("PUBSUB_TRACING_SAMPLING_RATE", cfg.Tracing.SamplingRate)
}

// normalize applies floors and fills values a file may have blanked.
func normalize(cfg *AppConfig) {
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.Bus.Backend = strings.ToLower(strings.TrimSpace(cfg.Bus.Backend))
	if cfg.Server.ShutdownTimeout < MinShutdownTimeout {
		cfg.Server.ShutdownTimeout = MinShutdownTimeout
	}
	if cfg.Server.MaxHeaderBytes <= 0 {
		cfg.Server.MaxHeaderBytes = defaultMaxHeaderBytes
	}
	if cfg.Bus.Redis.Channel == "" {
		cfg.Bus.Redis.Channel = DefaultRedisChannel
	}
}
