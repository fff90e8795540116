// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads the daemon configuration from built-in defaults, an optional
// strict YAML file and PUBSUB_* environment variables, in increasing precedence.
//
// Holder keeps the effective configuration and reloads it when the file changes or
// on demand (SIGHUP). Only logLevel and longpoll.timeout take effect without a restart.
package config
