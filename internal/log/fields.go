// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldSessionID = "session_id"
	FieldRequestID = "request_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldBackend   = "backend"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"
	FieldOutcome  = "outcome"

	// Message fields
	FieldNick = "nick"

	// HTTP fields
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatus     = "status"
	FieldRemoteAddr = "remote_addr"
	FieldDuration   = "duration"
)
