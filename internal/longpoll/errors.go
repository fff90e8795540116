// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package longpoll

import "errors"

var (
	// ErrDisconnected means the client went away before a message arrived.
	ErrDisconnected = errors.New("longpoll: client disconnected")

	// ErrTimeout means the configured wait timeout expired first.
	ErrTimeout = errors.New("longpoll: wait timed out")
)
