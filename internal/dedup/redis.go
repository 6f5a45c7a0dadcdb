package dedup

import (
	"context"
	"fmt"
	"log/slog"

	backend "github.com/redis/go-redis/v9"
)

// RedisCache implements Cache on a shared Redis set, for deployments running
// more than one instance behind the webhook endpoint.
type RedisCache struct {
	client *backend.Client
	key    string
}

// RedisOption configures a RedisCache.
type RedisOption func(*RedisCache)

// WithKey overrides the Redis set key.
func WithKey(key string) RedisOption {
	return func(c *RedisCache) { c.key = key }
}

// NewRedisCache creates a cache backed by the given address.
func NewRedisCache(addr string, opts ...RedisOption) *RedisCache {
	client := backend.NewClient(&backend.Options{Addr: addr})
	return NewRedisCacheFromClient(client, opts...)
}

// NewRedisCacheFromClient creates a cache from an existing client.
func NewRedisCacheFromClient(client *backend.Client, opts ...RedisOption) *RedisCache {
	cache := &RedisCache{
		client: client,
		key:    "kiara:dedup:comments",
	}
	for _, opt := range opts {
		opt(cache)
	}
	return cache
}

// Remember inserts eventID into the shared set and reports whether it was fresh.
func (c *RedisCache) Remember(ctx context.Context, eventID string) (bool, error) {
	added, err := c.client.SAdd(ctx, c.key, eventID).Result()
	if err != nil {
		return false, fmt.Errorf("dedup sadd failed: %w", err)
	}
	return added == 1, nil
}

// Size returns the cardinality of the shared set.
func (c *RedisCache) Size(ctx context.Context) (int64, error) {
	size, err := c.client.SCard(ctx, c.key).Result()
	if err != nil {
		return 0, fmt.Errorf("dedup scard failed: %w", err)
	}
	return size, nil
}

// Reset deletes the shared set, mirroring the memory cache's coarse clear.
func (c *RedisCache) Reset(ctx context.Context) error {
	if err := c.client.Del(ctx, c.key).Err(); err != nil {
		return fmt.Errorf("dedup del failed: %w", err)
	}
	slog.Info("Redis dedup cache cleared", "key", c.key)
	return nil
}
