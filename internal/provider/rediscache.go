package provider

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const redisKeyPrefix = "nearboard:profile:"

// RedisProfileCache keeps profiles in Redis so multiple scanner instances
// share one profile pool. Redis errors degrade to cache misses; the
// scanner never depends on Redis being up.
type RedisProfileCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisProfileCache creates a Redis-backed profile cache.
func NewRedisProfileCache(addr string, ttl time.Duration) *RedisProfileCache {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		MaxRetries:   3,
	})
	return &RedisProfileCache{client: client, ttl: ttl}
}

// NewRedisProfileCacheFromClient wraps an existing client, used by tests.
func NewRedisProfileCacheFromClient(client *redis.Client, ttl time.Duration) *RedisProfileCache {
	return &RedisProfileCache{client: client, ttl: ttl}
}

// Get returns the cached profile for symbol, treating any Redis failure
// as a miss.
func (c *RedisProfileCache) Get(ctx context.Context, symbol string) (Profile, bool) {
	data, err := c.client.Get(ctx, redisKeyPrefix+symbol).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Warn().Err(err).Str("symbol", symbol).Msg("redis profile read failed")
		}
		return Profile{}, false
	}

	var profile Profile
	if err := json.Unmarshal(data, &profile); err != nil {
		log.Warn().Err(err).Str("symbol", symbol).Msg("corrupt cached profile dropped")
		c.client.Del(ctx, redisKeyPrefix+symbol)
		return Profile{}, false
	}
	return profile, true
}

// Set stores a profile with the configured TTL. Failures are logged and
// ignored.
func (c *RedisProfileCache) Set(ctx context.Context, symbol string, profile Profile) {
	data, err := json.Marshal(profile)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, redisKeyPrefix+symbol, data, c.ttl).Err(); err != nil {
		log.Warn().Err(err).Str("symbol", symbol).Msg("redis profile write failed")
	}
}

// Close releases the underlying client.
func (c *RedisProfileCache) Close() error {
	return c.client.Close()
}
