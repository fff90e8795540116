// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"strconv"
	"strings"
)

// Change is one differing key between two configurations.
type Change struct {
	Key string
	Old string
	New string
	// Live is true when the daemon applies the key without a restart.
	Live bool
}

type field struct {
	key       string
	live      bool
	sensitive bool
	get       func(AppConfig) string
}

var fields = []field{
	{key: "logLevel", live: true, get: func(c AppConfig) string { return c.LogLevel }},
	{key: "longpoll.timeout", live: true, get: func(c AppConfig) string { return c.LongPoll.Timeout.String() }},
	{key: "api.listenAddr", get: func(c AppConfig) string { return c.API.ListenAddr }},
	{key: "api.allowedOrigins", get: func(c AppConfig) string { return strings.Join(c.API.AllowedOrigins, ",") }},
	{key: "api.operatorRateLimit", get: func(c AppConfig) string { return strconv.Itoa(c.API.OperatorRateLimit) }},
	{key: "server.readHeaderTimeout", get: func(c AppConfig) string { return c.Server.ReadHeaderTimeout.String() }},
	{key: "server.idleTimeout", get: func(c AppConfig) string { return c.Server.IdleTimeout.String() }},
	{key: "server.shutdownTimeout", get: func(c AppConfig) string { return c.Server.ShutdownTimeout.String() }},
	{key: "server.maxHeaderBytes", get: func(c AppConfig) string { return strconv.Itoa(c.Server.MaxHeaderBytes) }},
	{key: "bus.backend", get: func(c AppConfig) string { return c.Bus.Backend }},
	{key: "bus.buffer", get: func(c AppConfig) string { return strconv.Itoa(c.Bus.Buffer) }},
	{key: "bus.redis.addr", get: func(c AppConfig) string { return c.Bus.Redis.Addr }},
	{key: "bus.redis.password", sensitive: true, get: func(c AppConfig) string { return c.Bus.Redis.Password }},
	{key: "bus.redis.db", get: func(c AppConfig) string { return strconv.Itoa(c.Bus.Redis.DB) }},
	{key: "bus.redis.channel", get: func(c AppConfig) string { return c.Bus.Redis.Channel }},
	{key: "static.dir", get: func(c AppConfig) string { return c.Static.Dir }},
	{key: "metrics.enabled", get: func(c AppConfig) string { return strconv.FormatBool(c.Metrics.Enabled) }},
	{key: "metrics.listenAddr", get: func(c AppConfig) string { return c.Metrics.ListenAddr }},
	{key: "tracing.enabled", get: func(c AppConfig) string { return strconv.FormatBool(c.Tracing.Enabled) }},
	{key: "tracing.exporter", get: func(c AppConfig) string { return c.Tracing.Exporter }},
	{key: "tracing.endpoint", get: func(c AppConfig) string { return c.Tracing.Endpoint }},
	{key: "tracing.samplingRate", get: func(c AppConfig) string {
		return strconv.FormatFloat(c.Tracing.SamplingRate, 'g', -1, 64)
	}},
}

// Diff lists the keys whose values differ. Sensitive values are masked.
func Diff(old, updated AppConfig) []Change {
	var out []Change
	for _, f := range fields {
		o, n := f.get(old), f.get(updated)
		if o == n {
			continue
		}
		if f.sensitive {
			o, n = mask(o), mask(n)
		}
		out = append(out, Change{Key: f.key, Old: o, New: n, Live: f.live})
	}
	return out
}

func mask(v string) string {
	if v == "" {
		return ""
	}
	return "***"
}

// Redacted returns a copy of cfg safe to print.
func Redacted(cfg AppConfig) AppConfig {
	cfg.Bus.Redis.Password = mask(cfg.Bus.Redis.Password)
	cfg.API.AllowedOrigins = append([]string(nil), cfg.API.AllowedOrigins...)
	return cfg
}
