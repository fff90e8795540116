// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package bus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/larsks/pubsub-example/internal/metrics"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func recv(t *testing.T, sub Subscription) Message {
	t.Helper()
	select {
	case msg, ok := <-sub.C():
		require.True(t, ok, "subscription channel closed")
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return Message{}
	}
}

func assertEmpty(t *testing.T, sub Subscription) {
	t.Helper()
	select {
	case msg, ok := <-sub.C():
		if ok {
			t.Fatalf("unexpected message %+v", msg)
		}
	default:
	}
}

func TestMemoryBus_FanOut(t *testing.T) {
	b := NewMemoryBus(1)
	defer b.Close()
	ctx := context.Background()

	subs := make([]Subscription, 3)
	for i := range subs {
		s, err := b.Subscribe(ctx)
		require.NoError(t, err)
		defer s.Close()
		subs[i] = s
	}
	require.Equal(t, 3, b.Subscribers())

	msg := Message{Text: "hi", Nick: "a"}
	require.NoError(t, b.Publish(ctx, msg))

	for _, s := range subs {
		assert.Equal(t, msg, recv(t, s))
		assertEmpty(t, s)
	}
}

func TestMemoryBus_PublishWithoutSubscribers(t *testing.T) {
	b := NewMemoryBus(1)
	defer b.Close()

	require.NoError(t, b.Publish(context.Background(), Message{Text: "lost"}))

	// A subscription created afterwards must not see it.
	s, err := b.Subscribe(context.Background())
	require.NoError(t, err)
	defer s.Close()
	assertEmpty(t, s)
}

func TestMemoryBus_SubscriptionSeesOnlyLaterMessages(t *testing.T) {
	b := NewMemoryBus(4)
	defer b.Close()
	ctx := context.Background()

	early, err := b.Subscribe(ctx)
	require.NoError(t, err)
	defer early.Close()

	require.NoError(t, b.Publish(ctx, Message{Text: "one"}))

	late, err := b.Subscribe(ctx)
	require.NoError(t, err)
	defer late.Close()

	require.NoError(t, b.Publish(ctx, Message{Text: "two"}))

	assert.Equal(t, "one", recv(t, early).Text)
	assert.Equal(t, "two", recv(t, early).Text)
	assert.Equal(t, "two", recv(t, late).Text)
	assertEmpty(t, late)
}

func TestMemoryBus_FullBufferDropsWithoutBlocking(t *testing.T) {
	b := NewMemoryBus(1)
	defer b.Close()
	ctx := context.Background()

	s, err := b.Subscribe(ctx)
	require.NoError(t, err)
	defer s.Close()

	dropped := metrics.BusDroppedTotal.WithLabelValues(BackendMemory, "full")
	before := counterValue(t, dropped)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 5; i++ {
			_ = b.Publish(ctx, Message{Text: "m"})
		}
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscription")
	}

	assert.Equal(t, before+4, counterValue(t, dropped))
	recv(t, s)
	assertEmpty(t, s)
}

func TestMemoryBus_SubscriptionClose(t *testing.T) {
	b := NewMemoryBus(1)
	defer b.Close()
	ctx := context.Background()

	s, err := b.Subscribe(ctx)
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, 0, b.Subscribers())

	_, ok := <-s.C()
	assert.False(t, ok)

	// Publishing after release must not panic on the closed channel.
	require.NoError(t, b.Publish(ctx, Message{Text: "after"}))
}

func TestMemoryBus_Close(t *testing.T) {
	b := NewMemoryBus(1)
	ctx := context.Background()

	s, err := b.Subscribe(ctx)
	require.NoError(t, err)

	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	_, ok := <-s.C()
	assert.False(t, ok, "subscriptions end when the bus closes")
	require.NoError(t, s.Close())

	assert.ErrorIs(t, b.Publish(ctx, Message{}), ErrClosed)
	_, err = b.Subscribe(ctx)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestMemoryBus_NilContext(t *testing.T) {
	b := NewMemoryBus(1)
	defer b.Close()

	//nolint:staticcheck // nil context is the case under test
	assert.ErrorIs(t, b.Publish(nil, Message{}), ErrNilContext)
	//nolint:staticcheck
	_, err := b.Subscribe(nil)
	assert.ErrorIs(t, err, ErrNilContext)
}

func TestMemoryBus_ConcurrentPublishAndRelease(t *testing.T) {
	b := NewMemoryBus(1)
	defer b.Close()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				_ = b.Publish(ctx, Message{Text: "x"})
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				s, err := b.Subscribe(ctx)
				if err != nil {
					return
				}
				_ = s.Close()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, b.Subscribers())
}
