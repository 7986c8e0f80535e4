package cache

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const mirrorKeyPrefix = "astrohub:cache:"

// RedisMirror shares cache entries between replicas through Redis
type RedisMirror struct {
	client *redis.Client
}

// NewRedisMirror connects to redisURL and verifies the connection
func NewRedisMirror(redisURL string) (*RedisMirror, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.PoolSize = 10
	opts.MinIdleConns = 2
	opts.MaxRetries = 1
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 2 * time.Second
	opts.WriteTimeout = 2 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Println("✅ [CACHE] Redis mirror connected")
	return &RedisMirror{client: client}, nil
}

// Get returns the mirrored value and its remaining TTL
func (m *RedisMirror) Get(ctx context.Context, key string) ([]byte, time.Duration, bool, error) {
	k := mirrorKeyPrefix + key

	data, err := m.client.Get(ctx, k).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, 0, false, nil
	}
	if err != nil {
		return nil, 0, false, err
	}

	ttl, err := m.client.PTTL(ctx, k).Result()
	if err != nil {
		return nil, 0, false, err
	}
	// PTTL reports -1 (no expiry) and -2 (vanished) as raw negative values
	if ttl < 0 {
		return nil, 0, false, nil
	}
	return data, ttl, true, nil
}

// Set writes a value with its TTL
func (m *RedisMirror) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return m.client.Set(ctx, mirrorKeyPrefix+key, value, ttl).Err()
}

// Ping checks if Redis is healthy
func (m *RedisMirror) Ping(ctx context.Context) error {
	return m.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (m *RedisMirror) Close() error {
	return m.client.Close()
}
