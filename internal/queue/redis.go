package queue

import (
	"context"
	"time"

	"storefront/internal/domain"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher appends orders to a Redis list; consumers pop from the head (BLPOP)
type RedisPublisher struct {
	client  *redis.Client
	key     string
	timeout time.Duration
}

// NewRedisPublisher uses key as the list name
func NewRedisPublisher(client *redis.Client, key string, timeout time.Duration) *RedisPublisher {
	return &RedisPublisher{
		client:  client,
		key:     key,
		timeout: timeout,
	}
}

func (p *RedisPublisher) Backend() string { return BackendRedis }

func (p *RedisPublisher) Publish(ctx context.Context, msg domain.OrderMessage) error {
	payload, err := Encode(msg)
	if err != nil {
		return submissionError(p.Backend(), err)
	}

	ctx, cancel := withTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.client.RPush(ctx, p.key, payload).Err(); err != nil {
		return submissionError(p.Backend(), err)
	}
	return nil
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
