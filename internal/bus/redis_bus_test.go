// SPDX-License-Identifier: MIT

package bus

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/larsks/pubsub-example/internal/metrics"
)

// setupRedisBus creates a bus backed by miniredis.
func setupRedisBus(t *testing.T) (*miniredis.Miniredis, *RedisBus) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	b := newRedisBus(client, "", 1, zerolog.Nop())
	t.Cleanup(func() { _ = b.Close() })
	return mr, b
}

func TestNewRedisBus_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisBus(RedisConfig{Addr: addr}, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis connection failed")
}

func TestNewRedisBus_Connects(t *testing.T) {
	mr := miniredis.RunT(t)

	b, err := NewRedisBus(RedisConfig{Addr: mr.Addr(), Channel: "chat"}, zerolog.Nop())
	require.NoError(t, err)
	defer b.Close()

	assert.Equal(t, "chat", b.channel)
	assert.NoError(t, b.Ping(context.Background()))
}

func TestRedisBus_FanOut(t *testing.T) {
	_, b := setupRedisBus(t)
	ctx := context.Background()

	s1, err := b.Subscribe(ctx)
	require.NoError(t, err)
	defer s1.Close()
	s2, err := b.Subscribe(ctx)
	require.NoError(t, err)
	defer s2.Close()

	msg := Message{Text: "hello", Nick: "bob"}
	require.NoError(t, b.Publish(ctx, msg))

	assert.Equal(t, msg, recv(t, s1))
	assert.Equal(t, msg, recv(t, s2))
}

func TestRedisBus_SubscriptionSeesOnlyLaterMessages(t *testing.T) {
	mr := miniredis.RunT(t)
	b := newRedisBus(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "", 4, zerolog.Nop())
	defer b.Close()
	ctx := context.Background()

	early, err := b.Subscribe(ctx)
	require.NoError(t, err)
	defer early.Close()

	require.NoError(t, b.Publish(ctx, Message{Text: "one"}))
	assert.Equal(t, "one", recv(t, early).Text)

	late, err := b.Subscribe(ctx)
	require.NoError(t, err)
	defer late.Close()

	require.NoError(t, b.Publish(ctx, Message{Text: "two"}))

	assert.Equal(t, "two", recv(t, early).Text)
	assert.Equal(t, "two", recv(t, late).Text)
	assertEmpty(t, late)
}

func TestRedisBus_PublishWithoutSubscribers(t *testing.T) {
	_, b := setupRedisBus(t)
	require.NoError(t, b.Publish(context.Background(), Message{Text: "nobody"}))
}

func TestRedisBus_DecodeFailureIsDropped(t *testing.T) {
	mr, b := setupRedisBus(t)
	ctx := context.Background()

	s, err := b.Subscribe(ctx)
	require.NoError(t, err)
	defer s.Close()

	before := counterValue(t, metrics.BusDroppedTotal.WithLabelValues(BackendRedis, "decode"))
	mr.Publish(DefaultRedisChannel, "not json")

	require.Eventually(t, func() bool {
		return counterValue(t, metrics.BusDroppedTotal.WithLabelValues(BackendRedis, "decode")) == before+1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, b.Publish(ctx, Message{Text: "ok"}))
	assert.Equal(t, "ok", recv(t, s).Text)
}

func TestRedisBus_SubscriptionClose(t *testing.T) {
	_, b := setupRedisBus(t)

	s, err := b.Subscribe(context.Background())
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	select {
	case _, ok := <-s.C():
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("delivery channel not closed after Close")
	}
}

func TestRedisBus_Close(t *testing.T) {
	_, b := setupRedisBus(t)
	ctx := context.Background()

	s, err := b.Subscribe(ctx)
	require.NoError(t, err)

	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	select {
	case _, ok := <-s.C():
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("subscription survived bus close")
	}

	assert.ErrorIs(t, b.Publish(ctx, Message{}), ErrClosed)
	_, err = b.Subscribe(ctx)
	assert.ErrorIs(t, err, ErrClosed)
}
