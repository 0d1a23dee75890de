package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore backs the limiter with Redis INCR/EXPIRE. Safe across multiple
// service instances since both operations are single-key atomic.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a RedisStore over an existing client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Incr atomically increments the counter for key.
func (s *RedisStore) Incr(ctx context.Context, key string) (int64, error) {
	return s.client.Incr(ctx, key).Result()
}

// Expire sets the key's TTL in seconds.
func (s *RedisStore) Expire(ctx context.Context, key string, seconds int) error {
	return s.client.Expire(ctx, key, time.Duration(seconds)*time.Second).Err()
}
