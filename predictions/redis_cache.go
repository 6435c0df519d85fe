package predictions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/liamcoop/premium/premium"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "premium:"

// RedisCache shares results between server replicas
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects to the Redis instance at url (redis://host:port/db)
// and verifies the connection
func NewRedisCache(ctx context.Context, url string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.PoolSize = 100
	opts.MinIdleConns = 10

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisCache{client: client, ttl: ttl}, nil
}

// Get returns a cached result
func (r *RedisCache) Get(ctx context.Context, key string) (*premium.PremiumResult, bool, error) {
	val, err := r.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var res premium.PremiumResult
	if err := json.Unmarshal(val, &res); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached result: %w", err)
	}
	return &res, true, nil
}

// Set stores a result with the configured TTL
func (r *RedisCache) Set(ctx context.Context, key string, res *premium.PremiumResult) error {
	val, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	if err := r.client.Set(ctx, redisKeyPrefix+key, val, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Health pings the server
func (r *RedisCache) Health(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the connection pool
func (r *RedisCache) Close() error {
	return r.client.Close()
}
