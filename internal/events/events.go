package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lowtide/resonance/internal/memory"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Stream is where durable memory writes are announced. Consumers
// (follow-up schedulers, analytics) read from here; none of them are
// part of this engine.
const Stream = "resonance:memories"

// Publisher announces durable memory writes on a Redis stream.
// Publishing is best-effort by contract: the engine logs and moves on
// when a publish fails.
type Publisher struct {
	rdb    *redis.Client
	logger *zap.Logger
}

// NewPublisher connects to Redis and returns a ready Publisher.
func NewPublisher(redisURL string, logger *zap.Logger) (*Publisher, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Publisher{rdb: rdb, logger: logger}, nil
}

// MemoryStored publishes one stored-memory event.
func (p *Publisher) MemoryStored(ctx context.Context, ev memory.MemoryEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	_, err = p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: Stream,
		Values: map[string]interface{}{
			"type": "memory.stored",
			"data": string(data),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("publish memory.stored: %w", err)
	}
	p.logger.Debug("memory event published",
		zap.String("id", ev.ID),
		zap.String("owner", ev.OwnerID))
	return nil
}

// Close tears down the Redis connection.
func (p *Publisher) Close() error {
	return p.rdb.Close()
}
