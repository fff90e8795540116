// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*AppConfig)
		wantKey string
	}{
		{name: "defaults are valid"},
		{name: "bad log level", mutate: func(c *AppConfig) { c.LogLevel = "chatty" }, wantKey: "logLevel"},
		{name: "bad listen addr", mutate: func(c *AppConfig) { c.API.ListenAddr = "8080" }, wantKey: "api.listenAddr"},
		{name: "bad port", mutate: func(c *AppConfig) { c.API.ListenAddr = ":99999" }, wantKey: "api.listenAddr"},
		{name: "negative rate limit", mutate: func(c *AppConfig) { c.API.OperatorRateLimit = -1 }, wantKey: "api.operatorRateLimit"},
		{name: "negative wait timeout", mutate: func(c *AppConfig) { c.LongPoll.Timeout = -time.Second }, wantKey: "longpoll.timeout"},
		{name: "negative header timeout", mutate: func(c *AppConfig) { c.Server.ReadHeaderTimeout = -1 }, wantKey: "server.readHeaderTimeout"},
		{name: "unknown backend", mutate: func(c *AppConfig) { c.Bus.Backend = "nats" }, wantKey: "bus.backend"},
		{name: "zero buffer", mutate: func(c *AppConfig) { c.Bus.Buffer = 0 }, wantKey: "bus.buffer"},
		{
			name: "redis without addr",
			mutate: func(c *AppConfig) {
				c.Bus.Backend = "redis"
				c.Bus.Redis.Addr = ""
			},
			wantKey: "bus.redis.addr",
		},
		{
			name: "metrics addr checked only when enabled",
			mutate: func(c *AppConfig) {
				c.Metrics.ListenAddr = "nope"
			},
		},
		{
			name: "metrics addr invalid",
			mutate: func(c *AppConfig) {
				c.Metrics.Enabled = true
				c.Metrics.ListenAddr = "nope"
			},
			wantKey: "metrics.listenAddr",
		},
		{
			name: "bad exporter",
			mutate: func(c *AppConfig) {
				c.Tracing.Enabled = true
				c.Tracing.Exporter = "zipkin"
			},
			wantKey: "tracing.exporter",
		},
		{name: "sampling out of range", mutate: func(c *AppConfig) { c.Tracing.SamplingRate = 1.5 }, wantKey: "tracing.samplingRate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			if tt.mutate != nil {
				tt.mutate(&cfg)
			}
			err := Validate(cfg)
			if tt.wantKey == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.wantKey)
		})
	}
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.LogLevel = "loud"
	cfg.Bus.Buffer = 0

	err := Validate(cfg)
	require.Error(t, err)

	var joined interface{ Unwrap() []error }
	require.True(t, errors.As(err, &joined))
	assert.Len(t, joined.Unwrap(), 2)
}

func TestDiff(t *testing.T) {
	old := Defaults()
	updated := Defaults()
	updated.LogLevel = "debug"
	updated.API.ListenAddr = ":9000"
	updated.Bus.Redis.Password = "hunter2"

	changes := Diff(old, updated)
	require.Len(t, changes, 3)

	byKey := map[string]Change{}
	for _, c := range changes {
		byKey[c.Key] = c
	}
	assert.True(t, byKey["logLevel"].Live)
	assert.False(t, byKey["api.listenAddr"].Live)
	assert.Equal(t, "***", byKey["bus.redis.password"].New)
	assert.Empty(t, byKey["bus.redis.password"].Old)

	assert.Empty(t, Diff(old, old))
}
