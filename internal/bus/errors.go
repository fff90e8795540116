// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package bus

import "errors"

var (
	// ErrClosed is returned by Publish and Subscribe once the bus has been closed.
	ErrClosed = errors.New("bus: closed")

	// ErrNilContext is returned when a nil context is passed to a blocking call.
	ErrNilContext = errors.New("bus: context is nil")
)
