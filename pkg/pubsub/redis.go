package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/weiawesome/wes-io-chat/pkg/log"
)

const streamField = "event"

// RedisPubSub implements PubSub on Redis streams. All subscribers share one
// consumer group per topic, so each event is handled by exactly one of them.
type RedisPubSub struct {
	client   *redis.Client
	cfg      RedisConfig
	buffer   int
	consumer string

	mu      sync.Mutex
	cancels []context.CancelFunc
	wg      sync.WaitGroup
	closed  bool
}

// NewRedisPubSub creates a new Redis-based PubSub instance.
func NewRedisPubSub(cfg RedisConfig, buffer int) (*RedisPubSub, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisPubSubWithClient(client, cfg, buffer), nil
}

// NewRedisPubSubWithClient wraps an existing client.
func NewRedisPubSubWithClient(client *redis.Client, cfg RedisConfig, buffer int) *RedisPubSub {
	if cfg.Group == "" {
		cfg.Group = "chat"
	}
	if cfg.Block <= 0 {
		cfg.Block = 2 * time.Second
	}
	return &RedisPubSub{
		client:   client,
		cfg:      cfg,
		buffer:   buffer,
		consumer: "consumer-" + uuid.NewString(),
	}
}

// Publish appends event to the topic stream.
func (r *RedisPubSub) Publish(ctx context.Context, topic string, event *Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: topic,
		Values: map[string]interface{}{streamField: data},
	}
	if r.cfg.MaxLen > 0 {
		args.MaxLen = r.cfg.MaxLen
		args.Approx = true
	}
	if err := r.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to append to stream %s: %w", topic, err)
	}
	return nil
}

// Subscribe joins the topic's consumer group and streams new entries.
func (r *RedisPubSub) Subscribe(ctx context.Context, topic string) (<-chan *Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}

	err := r.client.XGroupCreateMkStream(ctx, topic, r.cfg.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return nil, fmt.Errorf("failed to create consumer group on %s: %w", topic, err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	r.cancels = append(r.cancels, cancel)

	eventCh := make(chan *Event, r.buffer)
	r.wg.Add(1)
	go r.readStream(subCtx, topic, eventCh)

	return eventCh, nil
}

func (r *RedisPubSub) readStream(ctx context.Context, topic string, eventCh chan<- *Event) {
	defer r.wg.Done()
	defer close(eventCh)

	logger := log.L().With().Str("topic", topic).Str("driver", "redis").Logger()

	for {
		if ctx.Err() != nil {
			return
		}

		streams, err := r.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    r.cfg.Group,
			Consumer: r.consumer,
			Streams:  []string{topic, ">"},
			Count:    int64(r.buffer),
			Block:    r.cfg.Block,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil || errors.Is(err, redis.ErrClosed) {
				return
			}
			logger.Warn().Err(err).Msg("stream read failed")
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				event, err := decodeStreamMessage(msg)
				if err != nil {
					logger.Warn().Err(err).Str("id", msg.ID).Msg("dropping malformed stream entry")
					r.client.XAck(ctx, topic, r.cfg.Group, msg.ID)
					continue
				}

				select {
				case eventCh <- event:
				case <-ctx.Done():
					return
				}
				r.client.XAck(ctx, topic, r.cfg.Group, msg.ID)
			}
		}
	}
}

func decodeStreamMessage(msg redis.XMessage) (*Event, error) {
	raw, ok := msg.Values[streamField]
	if !ok {
		return nil, fmt.Errorf("missing %q field", streamField)
	}
	var data []byte
	switch v := raw.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return nil, fmt.Errorf("unexpected field type %T", raw)
	}

	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

// Close stops all readers and closes the Redis client.
func (r *RedisPubSub) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	for _, cancel := range r.cancels {
		cancel()
	}
	r.mu.Unlock()

	r.wg.Wait()
	return r.client.Close()
}

// GetClient returns the underlying Redis client for advanced operations.
func (r *RedisPubSub) GetClient() *redis.Client {
	return r.client
}
