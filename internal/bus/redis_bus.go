// SPDX-License-Identifier: MIT

package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/larsks/pubsub-example/internal/log"
	"github.com/larsks/pubsub-example/internal/metrics"
)

// DefaultRedisChannel is the Redis PUB/SUB channel used when none is configured.
const DefaultRedisChannel = "pubsub:messages"

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string // Redis server address (host:port)
	Password string // Redis password (optional)
	DB       int    // Redis database number
	Channel  string // PUB/SUB channel name
	Buffer   int    // per-subscription buffer
}

// RedisBus relays messages through Redis PUB/SUB so that several daemon replicas
// share one broadcast domain. Redis keeps nothing for absent subscribers, which
// matches the in-memory semantics.
type RedisBus struct {
	client  *redis.Client
	channel string
	buffer  int
	logger  zerolog.Logger

	mu     sync.Mutex
	subs   map[*redisSub]struct{}
	closed bool
}

// NewRedisBus connects to Redis and verifies the connection.
func NewRedisBus(cfg RedisConfig, logger zerolog.Logger) (*RedisBus, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	logger.Info().
		Str(log.FieldEvent, "bus.redis.connected").
		Str("addr", cfg.Addr).
		Int("db", cfg.DB).
		Str("channel", channelOrDefault(cfg.Channel)).
		Msg("connected to Redis bus")

	return newRedisBus(client, cfg.Channel, cfg.Buffer, logger), nil
}

func newRedisBus(client *redis.Client, channel string, buffer int, logger zerolog.Logger) *RedisBus {
	if buffer < 1 {
		buffer = DefaultBuffer
	}
	return &RedisBus{
		client:  client,
		channel: channelOrDefault(channel),
		buffer:  buffer,
		logger:  logger,
		subs:    make(map[*redisSub]struct{}),
	}
}

func channelOrDefault(ch string) string {
	if ch == "" {
		return DefaultRedisChannel
	}
	return ch
}

// Publish encodes msg as JSON and issues PUBLISH. Zero receivers is not an error.
func (b *RedisBus) Publish(ctx context.Context, msg Message) error {
	if ctx == nil {
		return ErrNilContext
	}
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return ErrClosed
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	receivers, err := b.client.Publish(ctx, b.channel, payload).Result()
	if err != nil {
		return fmt.Errorf("redis publish %q: %w", b.channel, err)
	}

	metrics.IncBusPublished(BackendRedis)
	b.logger.Debug().
		Str(log.FieldEvent, "bus.published").
		Int64("receivers", receivers).
		Msg("message published to redis")
	return nil
}

// Subscribe issues SUBSCRIBE and waits for the server confirmation, so every
// message published after Subscribe returns is seen by the subscription.
func (b *RedisBus) Subscribe(ctx context.Context) (Subscription, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClosed
	}
	b.mu.Unlock()

	ps := b.client.Subscribe(ctx, b.channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redis subscribe %q: %w", b.channel, err)
	}

	s := &redisSub{
		b:  b,
		ps: ps,
		ch: make(chan Message, b.buffer),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		_ = ps.Close()
		return nil, ErrClosed
	}
	b.subs[s] = struct{}{}
	metrics.SetBusSubscriptions(BackendRedis, len(b.subs))
	b.mu.Unlock()

	go s.pump(ps.Channel())
	return s, nil
}

// Ping reports whether Redis is reachable.
func (b *RedisBus) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

// Close ends every live subscription and closes the Redis client.
func (b *RedisBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	subs := make([]*redisSub, 0, len(b.subs))
	for s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		_ = s.Close()
	}
	return b.client.Close()
}

func (b *RedisBus) remove(s *redisSub) {
	b.mu.Lock()
	delete(b.subs, s)
	metrics.SetBusSubscriptions(BackendRedis, len(b.subs))
	b.mu.Unlock()
}

type redisSub struct {
	b    *RedisBus
	ps   *redis.PubSub
	ch   chan Message
	once sync.Once
}

func (s *redisSub) C() <-chan Message {
	return s.ch
}

// Close unsubscribes. The delivery channel closes once the pump drains.
func (s *redisSub) Close() error {
	var err error
	s.once.Do(func() {
		s.b.remove(s)
		err = s.ps.Close()
	})
	return err
}

// pump copies decoded messages into the buffered delivery channel until the Redis
// subscription ends. It is the only writer of s.ch and closes it on exit.
func (s *redisSub) pump(in <-chan *redis.Message) {
	defer close(s.ch)
	for raw := range in {
		var msg Message
		if err := json.Unmarshal([]byte(raw.Payload), &msg); err != nil {
			metrics.IncBusDropReason(BackendRedis, "decode")
			s.b.logger.Warn().
				Err(err).
				Str(log.FieldEvent, "bus.decode_failed").
				Msg("dropping undecodable redis payload")
			continue
		}
		select {
		case s.ch <- msg:
			metrics.AddBusDelivered(BackendRedis, 1)
		default:
			metrics.IncBusDrop(BackendRedis)
		}
	}
}

var _ Bus = (*RedisBus)(nil)
