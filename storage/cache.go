package storage

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"

	"synth-market/utils"
)

// MemoryCache is an in-process response cache. Entries expire after ttl
// and the least recently used ones are evicted past size entries.
type MemoryCache struct {
	lru *expirable.LRU[string, []byte]
}

// NewMemoryCache creates a MemoryCache.
func NewMemoryCache(size int, ttl time.Duration) *MemoryCache {
	if size <= 0 {
		size = 512
	}
	return &MemoryCache{lru: expirable.NewLRU[string, []byte](size, nil, ttl)}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	return c.lru.Get(key)
}

func (c *MemoryCache) Set(_ context.Context, key string, body []byte) {
	c.lru.Add(key, body)
}

// Len returns the number of live entries.
func (c *MemoryCache) Len() int {
	return c.lru.Len()
}

// RedisCache shares cached responses between processes.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *utils.Logger
}

// NewRedisCache wraps an existing client.
func NewRedisCache(client *redis.Client, ttl time.Duration, logger *utils.Logger) *RedisCache {
	return &RedisCache{client: client, ttl: ttl, logger: logger}
}

// keyFor namespaces cache keys so the cache can share a Redis database.
func (c *RedisCache) keyFor(key string) string {
	return "synthmarket:http:" + key
}

// Ping checks the connection to the Redis server.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	body, err := c.client.Get(ctx, c.keyFor(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("[cache] redis get failed: %v", err)
		}
		return nil, false
	}
	return body, true
}

func (c *RedisCache) Set(ctx context.Context, key string, body []byte) {
	if err := c.client.Set(ctx, c.keyFor(key), body, c.ttl).Err(); err != nil {
		c.logger.Warn("[cache] redis set failed: %v", err)
	}
}
