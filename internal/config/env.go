// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/larsks/pubsub-example/internal/log"
)

// lookup returns the value of key when it is set and non-empty. Every outcome is
// logged at debug level; sensitive values are never logged.
func lookup(logger zerolog.Logger, key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		logger.Debug().Str("key", key).Str("source", "default").Msg("environment variable not set")
		return "", false
	}
	ev := logger.Debug().Str("key", key).Str("source", "environment")
	if isSensitive(key) {
		ev = ev.Bool("sensitive", true)
	} else {
		ev = ev.Str("value", v)
	}
	ev.Msg("using environment variable")
	return v, true
}

func isSensitive(key string) bool {
	k := strings.ToLower(key)
	return strings.Contains(k, "password") || strings.Contains(k, "token")
}

// ParseString reads a string from the environment or returns defaultValue.
func ParseString(key, defaultValue string) string {
	if v, ok := lookup(log.WithComponent("config"), key); ok {
		return v
	}
	return defaultValue
}

// ParseInt reads an integer from the environment. Unparseable values fall back to
// defaultValue with a warning.
func ParseInt(key string, defaultValue int) int {
	logger := log.WithComponent("config")
	v, ok := lookup(logger, key)
	if !ok {
		return defaultValue
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		logger.Warn().Str("key", key).Str("value", v).Int("default", defaultValue).
			Msg("invalid integer in environment variable, using default")
		return defaultValue
	}
	return i
}

// ParseDuration reads a Go duration ("5s", "1m30s") from the environment.
func ParseDuration(key string, defaultValue time.Duration) time.Duration {
	logger := log.WithComponent("config")
	v, ok := lookup(logger, key)
	if !ok {
		return defaultValue
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		logger.Warn().Str("key", key).Str("value", v).Dur("default", defaultValue).
			Msg("invalid duration in environment variable, using default")
		return defaultValue
	}
	return d
}

// ParseBool reads a boolean from the environment. It accepts true/false, 1/0 and
// yes/no, case-insensitively.
func ParseBool(key string, defaultValue bool) bool {
	logger := log.WithComponent("config")
	v, ok := lookup(logger, key)
	if !ok {
		return defaultValue
	}
	switch strings.ToLower(v) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	}
	logger.Warn().Str("key", key).Str("value", v).Bool("default", defaultValue).
		Msg("invalid boolean in environment variable, using default")
	return defaultValue
}

// ParseFloat reads a float from the environment.
func ParseFloat(key string, defaultValue float64) float64 {
	logger := log.WithComponent("config")
	v, ok := lookup(logger, key)
	if !ok {
		return defaultValue
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		logger.Warn().Str("key", key).Str("value", v).Float64("default", defaultValue).
			Msg("invalid float in environment variable, using default")
		return defaultValue
	}
	return f
}

// ParseList reads a comma-separated list, trimming blanks.
func ParseList(key string, defaultValue []string) []string {
	v, ok := lookup(log.WithComponent("config"), key)
	if !ok {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
