// Package redis holds the Redis adapters: the weekly leaderboard cache and
// the distributed lock that keeps one weekly distributor running at a time.
// Redis is never the source of truth; every value here can be rebuilt from
// PostgreSQL.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/studypets/studypets-core/config"
	"github.com/studypets/studypets-core/pkg/timeutil"
)

var (
	// ErrCacheMiss means the key is absent or expired.
	ErrCacheMiss = errors.New("cache: key not found")

	// ErrCacheConnection wraps a failed initial ping.
	ErrCacheConnection = errors.New("cache: connection failed")

	// ErrCacheSerialization wraps JSON encode and decode failures.
	ErrCacheSerialization = errors.New("cache: serialization failed")

	ErrCacheKeyEmpty = errors.New("cache: key cannot be empty")
)

// Key namespaces and lifetimes.
const (
	prefixLeaderboard = "leaderboard:week:"
	prefixLock        = "lock:"

	// TTLLeaderboardCache bounds how stale a cached board may get when an
	// invalidation is lost.
	TTLLeaderboardCache = 5 * time.Minute

	// TTLDistributedLock outlives one weekly distribution run.
	TTLDistributedLock = 30 * time.Second
)

// WeekKey is the prefix of one week's board keys, e.g. "leaderboard:week:2024-03-04".
func WeekKey(week timeutil.Date) string { return prefixLeaderboard + week.String() }

// LockKey names the lock held for resource.
func LockKey(resource string) string { return prefixLock + resource }

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Cache is a go-redis client plus the JSON helpers the adapters share.
type Cache struct {
	client *redis.Client
}

// NewCache dials Redis with the settings from cfg and pings it once. Zero
// timeouts and pool sizes keep go-redis defaults.
func NewCache(ctx context.Context, cfg config.RedisConfig) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		MaxRetries:   3,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %v", ErrCacheConnection, err)
	}
	return &Cache{client: client}, nil
}

// NewCacheFromClient wraps an existing client, e.g. one pointed at miniredis.
func NewCacheFromClient(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// Client exposes the client for pipelines, scripts and pub/sub.
func (c *Cache) Client() *redis.Client { return c.client }

func (c *Cache) Close() error { return c.client.Close() }

func (c *Cache) Ping(ctx context.Context) error { return c.client.Ping(ctx).Err() }

// Get decodes the JSON stored under key into dest.
func (c *Cache) Get(ctx context.Context, key string, dest any) error {
	if key == "" {
		return ErrCacheKeyEmpty
	}
	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return ErrCacheMiss
	case err != nil:
		return err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}
	return nil
}

// Delete removes keys; missing keys are not an error.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}
