package query

import (
	"context"
	"fmt"

	"github.com/studypets/studypets-core/internal/domain/access"
	"github.com/studypets/studypets-core/internal/domain/daily"
	"github.com/studypets/studypets-core/internal/domain/economy"
	"github.com/studypets/studypets-core/internal/domain/shared"
	"github.com/studypets/studypets-core/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// STREAK, WALLET AND DAILY STATUS QUERIES
// ══════════════════════════════════════════════════════════════════════════════

// StreakMode selects the persisted or the recomputed streak.
type StreakMode string

const (
	StreakLive   StreakMode = "live"
	StreakCached StreakMode = "cached"
)

// GetStreakQuery reads a student's streak.
type GetStreakQuery struct {
	Actor     access.Actor
	StudentID shared.StudentID
	Mode      StreakMode
}

// GetStreakResult is the streak and whether today already counts.
type GetStreakResult struct {
	StudentID      shared.StudentID `json:"student_id"`
	Streak         int              `json:"streak"`
	Mode           StreakMode       `json:"mode"`
	PracticedToday bool             `json:"practiced_today"`
	Today          timeutil.Date    `json:"today"`
}

// GetWalletQuery reads a student's balances and quota usage.
type GetWalletQuery struct {
	Actor     access.Actor
	StudentID shared.StudentID
}

// GetWalletResult is the economy record as shown to the student or a parent.
type GetWalletResult struct {
	StudentID     shared.StudentID `json:"student_id"`
	XP            int              `json:"xp"`
	Coins         int              `json:"coins"`
	Food          int              `json:"food"`
	CurrentStreak int              `json:"current_streak"`
	Tier          economy.Tier     `json:"subscription_tier"`
	SessionsToday int              `json:"sessions_today"`
	DailyLimit    int              `json:"daily_limit"`
}

// GetDailyStatusQuery reads a range of days; zero bounds mean today only.
type GetDailyStatusQuery struct {
	Actor     access.Actor
	StudentID shared.StudentID
	From      timeutil.Date
	To        timeutil.Date
}

// StudentHandler serves the per-student read models.
type StudentHandler struct {
	policy   *access.Policy
	wallets  economy.Repository
	days     daily.Repository
	sessions SessionCounter
	limits   economy.TierLimits
	clock    timeutil.Clock
}

// NewStudentHandler creates a StudentHandler.
func NewStudentHandler(policy *access.Policy, wallets economy.Repository, days daily.Repository, sessions SessionCounter, limits economy.TierLimits, clock timeutil.Clock) *StudentHandler {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	if limits == nil {
		limits = economy.DefaultTierLimits()
	}
	return &StudentHandler{
		policy:   policy,
		wallets:  wallets,
		days:     days,
		sessions: sessions,
		limits:   limits,
		clock:    clock,
	}
}

// Streak executes GetStreakQuery.
func (h *StudentHandler) Streak(ctx context.Context, q GetStreakQuery) (*GetStreakResult, error) {
	if err := h.policy.CanRead(ctx, q.Actor, q.StudentID); err != nil {
		return nil, err
	}
	if q.Mode == "" {
		q.Mode = StreakLive
	}

	today := timeutil.Today(h.clock)
	dates, err := h.days.PracticedDates(ctx, q.StudentID, today)
	if err != nil {
		return nil, fmt.Errorf("practiced dates: %w", err)
	}
	practicedToday := len(dates) > 0 && dates[0] == today

	result := &GetStreakResult{
		StudentID:      q.StudentID,
		Mode:           q.Mode,
		PracticedToday: practicedToday,
		Today:          today,
	}

	switch q.Mode {
	case StreakLive:
		result.Streak = daily.ComputeStreak(today, dates)
	case StreakCached:
		w, err := h.wallets.Get(ctx, q.StudentID)
		if err != nil && !shared.IsNotFound(err) {
			return nil, err
		}
		if w != nil {
			result.Streak = w.CurrentStreak
		}
	default:
		return nil, shared.NewDomainError("daily", "Streak", shared.ErrInvalidInput, "invalid_streak_mode", "mode must be live or cached")
	}
	return result, nil
}

// Wallet executes GetWalletQuery. Students without a record read as empty.
func (h *StudentHandler) Wallet(ctx context.Context, q GetWalletQuery) (*GetWalletResult, error) {
	if err := h.policy.CanRead(ctx, q.Actor, q.StudentID); err != nil {
		return nil, err
	}

	now := h.clock.Now()
	w, err := h.wallets.Get(ctx, q.StudentID)
	if err != nil {
		if !shared.IsNotFound(err) {
			return nil, err
		}
		w = economy.NewWallet(q.StudentID, now)
	}

	from, to := timeutil.DayBounds(timeutil.DateOf(now))
	used, err := h.sessions.CountCreatedBetween(ctx, q.StudentID, from, to)
	if err != nil {
		return nil, fmt.Errorf("count sessions: %w", err)
	}

	return &GetWalletResult{
		StudentID:     q.StudentID,
		XP:            w.XP,
		Coins:         w.Coins,
		Food:          w.Food,
		CurrentStreak: w.CurrentStreak,
		Tier:          w.Tier,
		SessionsToday: used,
		DailyLimit:    h.limits.SessionsPerDay(w.Tier),
	}, nil
}

// DailyStatus executes GetDailyStatusQuery. Days without a row are returned
// as empty statuses so the caller sees every day in the range.
func (h *StudentHandler) DailyStatus(ctx context.Context, q GetDailyStatusQuery) ([]daily.Status, error) {
	if err := h.policy.CanRead(ctx, q.Actor, q.StudentID); err != nil {
		return nil, err
	}

	today := timeutil.Today(h.clock)
	if q.From.IsZero() {
		q.From = today
	}
	if q.To.IsZero() {
		q.To = q.From
	}
	if q.To.Before(q.From) || timeutil.DaysBetween(q.From, q.To) > 62 {
		return nil, shared.NewDomainError("daily", "Range", shared.ErrInvalidInput, "invalid_range", "range must be ordered and at most 62 days")
	}

	rows, err := h.days.Range(ctx, q.StudentID, q.From, q.To)
	if err != nil {
		return nil, fmt.Errorf("daily range: %w", err)
	}
	byDate := make(map[timeutil.Date]daily.Status, len(rows))
	for _, r := range rows {
		byDate[r.Date] = r
	}

	out := make([]daily.Status, 0, timeutil.DaysBetween(q.From, q.To)+1)
	for d := q.From; !d.After(q.To); d = d.AddDays(1) {
		if s, ok := byDate[d]; ok {
			out = append(out, s)
			continue
		}
		out = append(out, *daily.Empty(q.StudentID, d))
	}
	return out, nil
}
