// Package query contains read operations following CQRS pattern.
// Queries never modify state - they only read and return data. Every query
// that targets a student's records is authorized by access.Policy first.
package query

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/studypets/studypets-core/internal/domain/access"
	"github.com/studypets/studypets-core/internal/domain/daily"
	"github.com/studypets/studypets-core/internal/domain/leaderboard"
	"github.com/studypets/studypets-core/internal/domain/shared"
	"github.com/studypets/studypets-core/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET WEEKLY LEADERBOARD QUERY
// Dense-ranked weekly XP with each student's live (on-demand) streak. Only
// aggregated fields ever leave this boundary.
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardCache stores computed weekly boards.
type LeaderboardCache interface {
	GetWeek(ctx context.Context, week timeutil.Date) ([]leaderboard.Entry, bool, error)
	SetWeek(ctx context.Context, week timeutil.Date, entries []leaderboard.Entry, ttl time.Duration) error
	InvalidateWeek(ctx context.Context, week timeutil.Date) error
}

// GetWeeklyLeaderboardQuery selects a week; zero WeekStart means the current week.
type GetWeeklyLeaderboardQuery struct {
	Actor     access.Actor
	WeekStart timeutil.Date
	Limit     int
}

// Validate normalizes the limit (default 20, max 100).
func (q *GetWeeklyLeaderboardQuery) Validate() error {
	if q.Actor.IsZero() {
		return shared.ErrNotAuthenticated
	}
	if q.Limit < 0 {
		return shared.NewDomainError("leaderboard", "Read", shared.ErrInvalidInput, "invalid_limit", "limit cannot be negative")
	}
	if q.Limit == 0 {
		q.Limit = 20
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	if !q.WeekStart.IsZero() && !timeutil.IsWeekStart(q.WeekStart) {
		return shared.ErrInvalidWeekStart
	}
	return nil
}

// GetWeeklyLeaderboardResult is the ranked board.
type GetWeeklyLeaderboardResult struct {
	WeekStart   timeutil.Date       `json:"week_start"`
	Entries     []leaderboard.Entry `json:"entries"`
	TotalRanked int                 `json:"total_ranked"`
	RewardTable []int               `json:"reward_table"`
	FromCache   bool                `json:"from_cache"`
	GeneratedAt time.Time           `json:"generated_at"`
	IsFinalized bool                `json:"is_finalized"`
}

// GetWeeklyLeaderboardHandler handles GetWeeklyLeaderboardQuery.
type GetWeeklyLeaderboardHandler struct {
	boards leaderboard.Repository
	days   daily.Repository
	cache  LeaderboardCache
	table  leaderboard.RewardTable
	clock  timeutil.Clock
	ttl    time.Duration
	logger *slog.Logger
}

// NewGetWeeklyLeaderboardHandler creates the handler. cache may be nil.
func NewGetWeeklyLeaderboardHandler(
	boards leaderboard.Repository,
	days daily.Repository,
	cache LeaderboardCache,
	table leaderboard.RewardTable,
	clock timeutil.Clock,
	ttl time.Duration,
	logger *slog.Logger,
) *GetWeeklyLeaderboardHandler {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if len(table) == 0 {
		table = leaderboard.DefaultRewardTable()
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &GetWeeklyLeaderboardHandler{
		boards: boards,
		days:   days,
		cache:  cache,
		table:  table,
		clock:  clock,
		ttl:    ttl,
		logger: logger,
	}
}

// Handle executes the query.
func (h *GetWeeklyLeaderboardHandler) Handle(ctx context.Context, q GetWeeklyLeaderboardQuery) (*GetWeeklyLeaderboardResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	now := h.clock.Now()
	week := q.WeekStart
	if week.IsZero() {
		week = timeutil.CurrentWeekStart(now)
	}
	_, end := timeutil.WeekBounds(week)

	entries, fromCache := h.cached(ctx, week)
	if !fromCache {
		var err error
		entries, err = h.compute(ctx, week, now)
		if err != nil {
			return nil, err
		}
		if h.cache != nil {
			if err := h.cache.SetWeek(ctx, week, entries, h.ttl); err != nil {
				h.logger.Warn("failed to cache weekly leaderboard", "week_start", week.String(), "error", err)
			}
		}
	}

	total := len(entries)
	if len(entries) > q.Limit {
		entries = entries[:q.Limit]
	}

	return &GetWeeklyLeaderboardResult{
		WeekStart:   week,
		Entries:     entries,
		TotalRanked: total,
		RewardTable: h.table,
		FromCache:   fromCache,
		GeneratedAt: now,
		IsFinalized: !now.Before(end),
	}, nil
}

func (h *GetWeeklyLeaderboardHandler) cached(ctx context.Context, week timeutil.Date) ([]leaderboard.Entry, bool) {
	if h.cache == nil {
		return nil, false
	}
	entries, ok, err := h.cache.GetWeek(ctx, week)
	if err != nil {
		h.logger.Warn("leaderboard cache read failed", "week_start", week.String(), "error", err)
		return nil, false
	}
	return entries, ok
}

// compute ranks the week and attaches each student's live streak, so a
// student who stopped practicing shows 0 without waiting for a login.
func (h *GetWeeklyLeaderboardHandler) compute(ctx context.Context, week timeutil.Date, now time.Time) ([]leaderboard.Entry, error) {
	from, to := timeutil.WeekBounds(week)
	totals, err := h.boards.WeeklyXP(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("aggregate weekly xp: %w", err)
	}

	entries := leaderboard.DenseRank(totals)
	today := timeutil.DateOf(now)
	for i := range entries {
		dates, err := h.days.PracticedDates(ctx, entries[i].StudentID, today)
		if err != nil {
			return nil, fmt.Errorf("streak for %s: %w", entries[i].StudentID, err)
		}
		entries[i].Streak = daily.ComputeStreak(today, dates)
	}
	return entries, nil
}
