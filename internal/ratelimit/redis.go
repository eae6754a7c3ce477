package ratelimit

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"gatekeeper/internal/models"
)

// RedisCounterStore is a CounterStore backed by Redis, for deployments where
// multiple gateway instances must share admission counters.
type RedisCounterStore struct {
	client *redis.Client
}

var _ CounterStore = (*RedisCounterStore)(nil)

// NewRedisCounterStore connects to Redis and verifies the connection.
func NewRedisCounterStore(cfg models.RedisConfig) (*RedisCounterStore, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisCounterStore{client: client}, nil
}

// Increment atomically increments the key and refreshes its retention in a
// single pipeline round trip.
func (s *RedisCounterStore) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	pipe := s.client.TxPipeline()
	counter := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return counter.Val(), nil
}

// Close closes the Redis client.
func (s *RedisCounterStore) Close() error {
	return s.client.Close()
}
