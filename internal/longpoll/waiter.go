// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package longpoll implements the per-request wait: subscribe, block until a message,
// a disconnect or a timeout, then release everything.
package longpoll

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/larsks/pubsub-example/internal/bus"
	"github.com/larsks/pubsub-example/internal/log"
	"github.com/larsks/pubsub-example/internal/metrics"
	"github.com/larsks/pubsub-example/internal/telemetry"
)

// Waiter runs wait sessions against a bus.
type Waiter struct {
	bus      bus.Bus
	counter  *Counter
	timeout  atomic.Int64
	observer StateObserver
	logger   zerolog.Logger
	tracer   trace.Tracer
}

// Option configures a Waiter.
type Option func(*Waiter)

// WithTimeout bounds every wait. Zero or negative waits until the client leaves.
func WithTimeout(d time.Duration) Option {
	return func(w *Waiter) { w.SetTimeout(d) }
}

// WithStateObserver registers fn to receive every session transition.
func WithStateObserver(fn StateObserver) Option {
	return func(w *Waiter) { w.observer = fn }
}

// WithLogger replaces the component logger.
func WithLogger(l zerolog.Logger) Option {
	return func(w *Waiter) { w.logger = l }
}

// NewWaiter returns a Waiter that subscribes on b and tracks blocked sessions in c.
// A nil counter gets a private one.
func NewWaiter(b bus.Bus, c *Counter, opts ...Option) *Waiter {
	if c == nil {
		c = &Counter{}
	}
	w := &Waiter{
		bus:     b,
		counter: c,
		logger:  log.WithComponent("longpoll"),
		tracer:  telemetry.Tracer("github.com/larsks/pubsub-example/internal/longpoll"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// SetTimeout changes the wait timeout for sessions started afterwards.
func (w *Waiter) SetTimeout(d time.Duration) {
	if d < 0 {
		d = 0
	}
	w.timeout.Store(int64(d))
}

// Timeout returns the current wait timeout; zero means none.
func (w *Waiter) Timeout() time.Duration {
	return time.Duration(w.timeout.Load())
}

// Counter returns the active-session counter.
func (w *Waiter) Counter() *Counter {
	return w.counter
}

// Wait blocks until a message published after the call arrives, ctx is done, the
// timeout expires or the subscription ends. At most one message is consumed.
//
// Errors: ErrDisconnected (ctx done), ErrTimeout, or a wrapped bus error. A bus that
// closed mid-wait yields an error matching bus.ErrClosed.
func (w *Waiter) Wait(ctx context.Context) (bus.Message, error) {
	if ctx == nil {
		return bus.Message{}, bus.ErrNilContext
	}

	s := w.newSession(ctx)
	ctx, span := w.tracer.Start(ctx, "longpoll.wait", trace.WithAttributes(telemetry.SessionAttributes(s.id)...))
	defer func() {
		s.close()
		span.SetAttributes(telemetry.OutcomeAttributes(s.outcome.Outcome())...)
		if s.outcome == StateFailed {
			span.SetStatus(codes.Error, "wait failed")
		}
		span.End()
	}()

	sub, err := w.bus.Subscribe(ctx)
	if err != nil {
		s.transition(StateFailed)
		return bus.Message{}, fmt.Errorf("subscribe: %w", err)
	}
	defer func() { _ = sub.Close() }()
	s.transition(StateSubscribed)

	release := w.counter.Enter()
	defer release()
	s.transition(StateWaiting)

	var expired <-chan time.Time
	if d := w.Timeout(); d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case msg, ok := <-sub.C():
		if !ok {
			s.transition(StateFailed)
			return bus.Message{}, fmt.Errorf("subscription ended: %w", bus.ErrClosed)
		}
		s.transition(StateDelivered)
		return msg, nil

	case <-ctx.Done():
		s.transition(StateDisconnected)
		return bus.Message{}, fmt.Errorf("%w: %w", ErrDisconnected, context.Cause(ctx))

	case <-expired:
		s.transition(StateTimedOut)
		return bus.Message{}, ErrTimeout
	}
}

type session struct {
	id       string
	state    State
	outcome  State
	started  time.Time
	logger   zerolog.Logger
	observer StateObserver
}

func (w *Waiter) newSession(ctx context.Context) *session {
	id := uuid.New().String()
	return &session{
		id:       id,
		state:    StateCreated,
		started:  time.Now(),
		logger:   log.WithContext(log.ContextWithSessionID(ctx, id), w.logger),
		observer: w.observer,
	}
}

func (s *session) transition(to State) {
	from := s.state
	if !CanTransition(from, to) {
		s.logger.Error().
			Str(log.FieldEvent, "session.invalid_transition").
			Str(log.FieldOldState, string(from)).
			Str(log.FieldNewState, string(to)).
			Msg("invalid session state transition")
		return
	}
	s.state = to
	if to.IsOutcome() {
		s.outcome = to
	}

	s.logger.Debug().
		Str(log.FieldEvent, "session.transition").
		Str(log.FieldOldState, string(from)).
		Str(log.FieldNewState, string(to)).
		Msg("session state changed")

	if s.observer != nil {
		s.observer(Transition{SessionID: s.id, From: from, To: to})
	}
}

// close finishes the session. A session that never reached an outcome (panic
// while waiting) is recorded as failed.
func (s *session) close() {
	if s.outcome == "" {
		s.outcome, s.state = StateFailed, StateFailed
	}
	s.transition(StateClosed)

	waited := time.Since(s.started)
	metrics.ObserveSession(s.outcome.Outcome(), waited)
	s.logger.Debug().
		Str(log.FieldEvent, "session.resolved").
		Str(log.FieldOutcome, s.outcome.Outcome()).
		Dur(log.FieldDuration, waited).
		Msg("wait session closed")
}
