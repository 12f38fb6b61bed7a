package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/studypets/studypets-core/internal/domain/leaderboard"
	"github.com/studypets/studypets-core/pkg/circuitbreaker"
	"github.com/studypets/studypets-core/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// WEEKLY BOARD CACHE
// One computed board per week, stored as:
//   leaderboard:week:{date}:xp    ZSET   student_id -> weekly_xp
//   leaderboard:week:{date}:info  HASH   student_id -> entry JSON
//   leaderboard:week:{date}:meta  STRING board metadata JSON
// The meta key is written last in the same MULTI, so its presence means the
// other two keys are complete.
// ══════════════════════════════════════════════════════════════════════════════

// ErrBoardIncomplete is returned when the board keys disagree, e.g. after a
// partial eviction. Callers treat it as a miss.
var ErrBoardIncomplete = errors.New("cache: weekly board incomplete")

// boardMeta describes a cached board.
type boardMeta struct {
	WeekStart string    `json:"week_start"`
	Count     int       `json:"count"`
	CachedAt  time.Time `json:"cached_at"`
}

// WeeklyBoardCache caches dense-ranked weekly boards.
type WeeklyBoardCache struct {
	cache   *Cache
	breaker *circuitbreaker.CircuitBreaker
	now     func() time.Time
}

// NewWeeklyBoardCache creates a new WeeklyBoardCache.
func NewWeeklyBoardCache(cache *Cache) *WeeklyBoardCache {
	return &WeeklyBoardCache{cache: cache, now: time.Now}
}

// WithBreaker routes reads and writes through cb. While it is open, reads
// miss and writes are skipped. Invalidation always reaches Redis.
func (c *WeeklyBoardCache) WithBreaker(cb *circuitbreaker.CircuitBreaker) *WeeklyBoardCache {
	c.breaker = cb
	return c
}

func (c *WeeklyBoardCache) guard(ctx context.Context, fn func(context.Context) error) error {
	if c.breaker == nil {
		return fn(ctx)
	}
	return c.breaker.Execute(ctx, fn)
}

func boardKeys(week timeutil.Date) (xp, info, meta string) {
	base := WeekKey(week)
	return base + ":xp", base + ":info", base + ":meta"
}

// ─────────────────────────────────────────────────────────────────────────────
// WRITE
// ─────────────────────────────────────────────────────────────────────────────

// SetWeek replaces the week's board. A non-positive ttl uses TTLLeaderboardCache.
func (c *WeeklyBoardCache) SetWeek(ctx context.Context, week timeutil.Date, entries []leaderboard.Entry, ttl time.Duration) error {
	err := c.guard(ctx, func(ctx context.Context) error {
		return c.setWeek(ctx, week, entries, ttl)
	})
	if circuitbreaker.IsRejected(err) {
		return nil
	}
	return err
}

func (c *WeeklyBoardCache) setWeek(ctx context.Context, week timeutil.Date, entries []leaderboard.Entry, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = TTLLeaderboardCache
	}
	xpKey, infoKey, metaKey := boardKeys(week)

	members := make([]redis.Z, 0, len(entries))
	fields := make([]any, 0, len(entries)*2)
	for _, e := range entries {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
		}
		members = append(members, redis.Z{Score: float64(e.WeeklyXP), Member: e.StudentID.String()})
		fields = append(fields, e.StudentID.String(), data)
	}

	meta, err := json.Marshal(boardMeta{
		WeekStart: week.String(),
		Count:     len(entries),
		CachedAt:  c.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}

	pipe := c.cache.Client().TxPipeline()
	pipe.Del(ctx, xpKey, infoKey, metaKey)
	if len(members) > 0 {
		pipe.ZAdd(ctx, xpKey, members...)
		pipe.HSet(ctx, infoKey, fields...)
		pipe.Expire(ctx, xpKey, ttl)
		pipe.Expire(ctx, infoKey, ttl)
	}
	pipe.Set(ctx, metaKey, meta, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache week %s: %w", week, err)
	}
	return nil
}

// InvalidateWeek drops the week's board.
func (c *WeeklyBoardCache) InvalidateWeek(ctx context.Context, week timeutil.Date) error {
	xpKey, infoKey, metaKey := boardKeys(week)
	// meta first, so a concurrent reader sees a miss rather than a torn board
	if err := c.cache.Delete(ctx, metaKey, xpKey, infoKey); err != nil {
		return fmt.Errorf("failed to invalidate week %s: %w", week, err)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// READ
// ─────────────────────────────────────────────────────────────────────────────

// GetWeek returns the cached board in rank order. ok is false on a miss.
func (c *WeeklyBoardCache) GetWeek(ctx context.Context, week timeutil.Date) ([]leaderboard.Entry, bool, error) {
	var (
		entries []leaderboard.Entry
		ok      bool
	)
	err := c.guard(ctx, func(ctx context.Context) error {
		var err error
		entries, ok, err = c.getWeek(ctx, week)
		return err
	})
	if circuitbreaker.IsRejected(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return entries, ok, nil
}

func (c *WeeklyBoardCache) getWeek(ctx context.Context, week timeutil.Date) ([]leaderboard.Entry, bool, error) {
	xpKey, infoKey, metaKey := boardKeys(week)

	var meta boardMeta
	if err := c.cache.Get(ctx, metaKey, &meta); err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if meta.Count == 0 {
		return []leaderboard.Entry{}, true, nil
	}

	client := c.cache.Client()
	ids, err := client.ZRevRange(ctx, xpKey, 0, -1).Result()
	if err != nil {
		return nil, false, err
	}
	if len(ids) != meta.Count {
		return nil, false, nil
	}

	raw, err := client.HMGet(ctx, infoKey, ids...).Result()
	if err != nil {
		return nil, false, err
	}

	entries, err := decodeEntries(raw)
	if errors.Is(err, ErrBoardIncomplete) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return entries, true, nil
}

// decodeEntries restores the board order. ZREVRANGE orders ties by member,
// while the board orders them by display name and then id.
func decodeEntries(raw []any) ([]leaderboard.Entry, error) {
	entries := make([]leaderboard.Entry, 0, len(raw))
	for _, v := range raw {
		s, ok := v.(string)
		if !ok {
			return nil, ErrBoardIncomplete
		}
		var e leaderboard.Entry
		if err := json.Unmarshal([]byte(s), &e); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCacheSerialization, err)
		}
		entries = append(entries, e)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Rank != entries[j].Rank {
			return entries[i].Rank < entries[j].Rank
		}
		if entries[i].DisplayName != entries[j].DisplayName {
			return entries[i].DisplayName < entries[j].DisplayName
		}
		return entries[i].StudentID < entries[j].StudentID
	})
	return entries, nil
}
