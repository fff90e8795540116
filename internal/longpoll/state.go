// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package longpoll

import "strings"

// State is the lifecycle of one wait session.
type State string

const (
	StateCreated      State = "CREATED"
	StateSubscribed   State = "SUBSCRIBED"
	StateWaiting      State = "WAITING"
	StateDelivered    State = "DELIVERED"
	StateDisconnected State = "DISCONNECTED"
	StateFailed       State = "FAILED"
	StateTimedOut     State = "TIMED_OUT"
	StateClosed       State = "CLOSED"
)

// IsOutcome reports whether the state resolves a session.
func (s State) IsOutcome() bool {
	switch s {
	case StateDelivered, StateDisconnected, StateFailed, StateTimedOut:
		return true
	}
	return false
}

// Outcome returns the metric label for an outcome state.
func (s State) Outcome() string {
	return strings.ToLower(string(s))
}

// Transition is one state change of a session.
type Transition struct {
	SessionID string
	From      State
	To        State
}

// StateObserver receives every transition synchronously on the waiting goroutine.
type StateObserver func(Transition)

var allowed = map[State][]State{
	StateCreated:      {StateSubscribed, StateFailed},
	StateSubscribed:   {StateWaiting},
	StateWaiting:      {StateDelivered, StateDisconnected, StateFailed, StateTimedOut},
	StateDelivered:    {StateClosed},
	StateDisconnected: {StateClosed},
	StateFailed:       {StateClosed},
	StateTimedOut:     {StateClosed},
}

// CanTransition reports whether from → to is a legal step.
func CanTransition(from, to State) bool {
	for _, s := range allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}
