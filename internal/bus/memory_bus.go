// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package bus

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/larsks/pubsub-example/internal/log"
	"github.com/larsks/pubsub-example/internal/metrics"
)

// DefaultBuffer is the per-subscription buffer. A long-poll session consumes at
// most one message, so one slot is all it can use.
const DefaultBuffer = 1

const dropLogEvery = 100

// MemoryBus is an in-process multicast relay.
type MemoryBus struct {
	mu     sync.RWMutex
	subs   map[*memSub]struct{}
	closed bool
	buffer int

	drops atomic.Uint64
}

// NewMemoryBus returns a bus whose subscriptions buffer up to buffer messages.
// Values below 1 select DefaultBuffer.
func NewMemoryBus(buffer int) *MemoryBus {
	if buffer < 1 {
		buffer = DefaultBuffer
	}
	return &MemoryBus{
		subs:   make(map[*memSub]struct{}),
		buffer: buffer,
	}
}

// Publish offers msg to every live subscription. The read lock is held across the
// sends so that Close on a subscription (write lock) never races a send; the sends
// themselves never block.
func (b *MemoryBus) Publish(ctx context.Context, msg Message) error {
	if ctx == nil {
		return ErrNilContext
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}

	delivered := 0
	for s := range b.subs {
		select {
		case s.ch <- msg:
			delivered++
		default:
			metrics.IncBusDrop(BackendMemory)
			if n := b.drops.Add(1); n%dropLogEvery == 1 {
				logger := log.WithComponent("bus")
				logger.Warn().
					Str(log.FieldEvent, "bus.drop").
					Str(log.FieldBackend, BackendMemory).
					Uint64("dropped", n).
					Msg("subscription buffer full, message dropped for that subscriber")
			}
		}
	}

	metrics.IncBusPublished(BackendMemory)
	metrics.AddBusDelivered(BackendMemory, delivered)
	return nil
}

// Subscribe registers a new subscription. The context is not retained.
func (b *MemoryBus) Subscribe(ctx context.Context) (Subscription, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	s := &memSub{b: b, ch: make(chan Message, b.buffer)}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	b.subs[s] = struct{}{}
	metrics.SetBusSubscriptions(BackendMemory, len(b.subs))
	return s, nil
}

// Subscribers returns the number of live subscriptions.
func (b *MemoryBus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close ends every live subscription. Blocked receivers observe a closed channel.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for s := range b.subs {
		s.closeLocked()
	}
	b.subs = make(map[*memSub]struct{})
	metrics.SetBusSubscriptions(BackendMemory, 0)
	return nil
}

type memSub struct {
	b      *MemoryBus
	ch     chan Message
	closed bool // guarded by b.mu
}

func (s *memSub) C() <-chan Message {
	return s.ch
}

func (s *memSub) Close() error {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	if s.closed {
		return nil
	}
	delete(s.b.subs, s)
	s.closeLocked()
	metrics.SetBusSubscriptions(BackendMemory, len(s.b.subs))
	return nil
}

func (s *memSub) closeLocked() {
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

var _ Bus = (*MemoryBus)(nil)
