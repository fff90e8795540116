// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package bus is the broadcast relay between publishers and waiting subscribers.
//
// A bus keeps no queue: a message reaches the subscriptions that are live when it is
// published and is then forgotten. Subscriptions that cannot take a message right away
// miss it; the publisher never waits.
package bus

import "context"

// Message is one chat line. Both fields are free-form and may be empty.
type Message struct {
	Text string `json:"message"`
	Nick string `json:"nick"`
}

// Subscription receives every message published between its creation and Close.
type Subscription interface {
	// C returns the delivery channel. It is closed when the subscription ends,
	// either through Close or because the bus went away.
	C() <-chan Message
	// Close releases the subscription. It is safe to call more than once.
	Close() error
}

// Bus is the publish/subscribe transport.
type Bus interface {
	// Publish hands msg to every live subscription without blocking.
	// Having no subscribers is not an error.
	Publish(ctx context.Context, msg Message) error
	// Subscribe registers a new subscription that sees messages published from now on.
	Subscribe(ctx context.Context) (Subscription, error)
	// Close ends all live subscriptions and rejects further use.
	Close() error
}

// Backend names used in config and metric labels.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)
