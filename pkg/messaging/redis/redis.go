package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/evura/portal-api/pkg/circuitbreaker"
	"github.com/evura/portal-api/pkg/messaging"
)

const defaultPollTimeout = 2 * time.Second

// RedisBroker queues messages on Redis lists. Publish appends with RPUSH and
// subscribers compete with BLPOP, so a message reaches a single worker and
// survives while no worker is running.
type RedisBroker struct {
	client      *redis.Client
	cb          *circuitbreaker.CircuitBreaker
	logger      *zerolog.Logger
	keyPrefix   string
	pollTimeout time.Duration
}

type Config struct {
	URL          string
	KeyPrefix    string
	MaxRetries   int
	RetryBackoff time.Duration
	PoolSize     int
	MinIdleConns int
	PollTimeout  time.Duration
}

func NewRedisBroker(ctx context.Context, config Config, logger *zerolog.Logger) (*RedisBroker, error) {
	opts, err := redis.ParseURL(config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.MaxRetries = config.MaxRetries
	opts.MinRetryBackoff = config.RetryBackoff
	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}
	opts.MinIdleConns = config.MinIdleConns

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return newBroker(client, config, logger), nil
}

func newBroker(client *redis.Client, config Config, logger *zerolog.Logger) *RedisBroker {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	poll := config.PollTimeout
	if poll <= 0 {
		poll = defaultPollTimeout
	}
	return &RedisBroker{
		client: client,
		cb: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "redis-broker",
			MaxFailures: 5,
			Interval:    10 * time.Second,
			Timeout:     5 * time.Second,
		}),
		logger:      logger,
		keyPrefix:   config.KeyPrefix,
		pollTimeout: poll,
	}
}

var _ messaging.Broker = (*RedisBroker)(nil)

func (b *RedisBroker) key(channel string) string {
	return b.keyPrefix + channel
}

func (b *RedisBroker) Publish(ctx context.Context, channel string, message interface{}) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return b.cb.Execute(func() error {
		return b.client.RPush(ctx, b.key(channel), payload).Err()
	})
}

func (b *RedisBroker) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	msgChan := make(chan []byte, 100)
	key := b.key(channel)

	go func() {
		defer close(msgChan)

		for {
			if ctx.Err() != nil {
				return
			}
			res, err := b.client.BLPop(ctx, b.pollTimeout, key).Result()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					continue
				}
				if ctx.Err() != nil || errors.Is(err, redis.ErrClosed) {
					return
				}
				b.logger.Error().Err(err).Str("channel", channel).Msg("failed to receive message")
				select {
				case <-ctx.Done():
					return
				case <-time.After(time.Second):
				}
				continue
			}
			// BLPOP replies with [key, value].
			if len(res) != 2 {
				continue
			}
			select {
			case msgChan <- []byte(res[1]):
			case <-ctx.Done():
				return
			}
		}
	}()

	return msgChan, nil
}

// Ping reports whether Redis is reachable.
func (b *RedisBroker) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func (b *RedisBroker) Close() error {
	return b.client.Close()
}
