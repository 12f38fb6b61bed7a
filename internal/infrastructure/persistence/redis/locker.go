package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ══════════════════════════════════════════════════════════════════════════════
// DISTRIBUTED LOCK
// SET NX PX with a random token. Release deletes the key only while it still
// holds our token, so an expired lock re-acquired by another process is
// never released by the first holder.
// ══════════════════════════════════════════════════════════════════════════════

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// releaseTimeout bounds the release call, which runs after the caller's
// context may already be cancelled.
const releaseTimeout = 3 * time.Second

// Locker implements a cross-process mutex on top of Redis.
type Locker struct {
	cache  *Cache
	logger *slog.Logger
}

// NewLocker creates a new Locker.
func NewLocker(cache *Cache, logger *slog.Logger) *Locker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Locker{cache: cache, logger: logger}
}

// TryLock acquires key for ttl. ok is false when another holder has it.
// A non-positive ttl uses TTLDistributedLock.
func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	if key == "" {
		return nil, false, ErrCacheKeyEmpty
	}
	if ttl <= 0 {
		ttl = TTLDistributedLock
	}

	lockKey := LockKey(key)
	token := uuid.NewString()

	ok, err := l.cache.Client().SetNX(ctx, lockKey, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		rctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()
		if err := releaseScript.Run(rctx, l.cache.Client(), []string{lockKey}, token).Err(); err != nil {
			l.logger.Warn("failed to release lock", "key", key, "error", err)
		}
	}
	return release, true, nil
}
