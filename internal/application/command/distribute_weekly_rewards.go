package command

import (
	"context"
	"fmt"
	"time"

	"github.com/studypets/studypets-core/internal/domain/economy"
	"github.com/studypets/studypets-core/internal/domain/leaderboard"
	"github.com/studypets/studypets-core/internal/domain/shared"
	"github.com/studypets/studypets-core/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// DISTRIBUTE WEEKLY REWARDS COMMAND
// Pays coins to the top dense ranks of a finished week, exactly once per week.
// ══════════════════════════════════════════════════════════════════════════════

// Locker is a cross-process mutex keyed by name.
type Locker interface {
	// TryLock acquires the lock; ok is false when someone else holds it.
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

// DistributeWeeklyRewardsCommand targets one week by its Monday.
type DistributeWeeklyRewardsCommand struct {
	WeekStart timeutil.Date
}

// DistributeWeeklyRewardsResult describes the payout.
type DistributeWeeklyRewardsResult struct {
	WeekStart          timeutil.Date
	AlreadyDistributed bool
	RankedStudents     int
	Rewards            []leaderboard.Reward
	CoinsPaid          int
}

// DistributeWeeklyRewardsHandler handles DistributeWeeklyRewardsCommand.
type DistributeWeeklyRewardsHandler struct {
	deps    Deps
	table   leaderboard.RewardTable
	locker  Locker
	lockTTL time.Duration
}

// NewDistributeWeeklyRewardsHandler creates a new handler. locker may be nil
// for single-instance deployments; the storage-level week lock still applies.
func NewDistributeWeeklyRewardsHandler(deps Deps, table leaderboard.RewardTable, locker Locker) *DistributeWeeklyRewardsHandler {
	if len(table) == 0 {
		table = leaderboard.DefaultRewardTable()
	}
	return &DistributeWeeklyRewardsHandler{
		deps:    deps.withDefaults(),
		table:   table,
		locker:  locker,
		lockTTL: 5 * time.Minute,
	}
}

// Handle executes the distribution. A week that was already paid returns a
// result with AlreadyDistributed set and changes nothing.
func (h *DistributeWeeklyRewardsHandler) Handle(ctx context.Context, cmd DistributeWeeklyRewardsCommand) (*DistributeWeeklyRewardsResult, error) {
	if err := leaderboard.ValidateWeek(cmd.WeekStart, h.deps.Clock.Now()); err != nil {
		return nil, err
	}

	if h.locker != nil {
		release, ok, err := h.locker.TryLock(ctx, "weekly_rewards:"+cmd.WeekStart.String(), h.lockTTL)
		if err != nil {
			return nil, fmt.Errorf("acquire distribution lock: %w", err)
		}
		if !ok {
			return nil, shared.ErrDistributionLocked.WithDetails(map[string]any{"week_start": cmd.WeekStart.String()})
		}
		defer release()
	}

	var result *DistributeWeeklyRewardsResult
	err := h.deps.inTx(ctx, "distribute_weekly_rewards", func(ctx context.Context) error {
		result = &DistributeWeeklyRewardsResult{WeekStart: cmd.WeekStart}

		if err := h.deps.Rewards.LockWeek(ctx, cmd.WeekStart); err != nil {
			return fmt.Errorf("lock week: %w", err)
		}
		done, err := h.deps.Rewards.HasRewards(ctx, cmd.WeekStart)
		if err != nil {
			return fmt.Errorf("check prior rewards: %w", err)
		}
		if done {
			result.AlreadyDistributed = true
			return nil
		}

		from, to := timeutil.WeekBounds(cmd.WeekStart)
		totals, err := h.deps.Rewards.WeeklyXP(ctx, from, to)
		if err != nil {
			return fmt.Errorf("aggregate weekly xp: %w", err)
		}
		ranked := leaderboard.DenseRank(totals)
		rewards := leaderboard.PlanRewards(cmd.WeekStart, ranked, h.table, h.deps.NewID, h.deps.Clock.Now())

		// Row and credit per student inside one transaction for the whole week.
		for i := range rewards {
			r := &rewards[i]
			if err := h.deps.Rewards.InsertReward(ctx, r); err != nil {
				return err
			}
			if _, err := h.deps.Wallets.GetOrCreate(ctx, r.StudentID); err != nil {
				return fmt.Errorf("load wallet %s: %w", r.StudentID, err)
			}
			if err := h.deps.Wallets.Credit(ctx, r.StudentID, economy.Credit{Coins: r.CoinsAwarded}); err != nil {
				return fmt.Errorf("credit %s: %w", r.StudentID, err)
			}
			result.CoinsPaid += r.CoinsAwarded
		}

		result.RankedStudents = len(ranked)
		result.Rewards = rewards
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.AlreadyDistributed {
		h.deps.Logger.Info("weekly rewards already distributed", "week_start", cmd.WeekStart.String())
		return result, nil
	}

	h.deps.Logger.Info("weekly rewards distributed",
		"week_start", cmd.WeekStart.String(),
		"ranked", result.RankedStudents,
		"recipients", len(result.Rewards),
		"coins_paid", result.CoinsPaid,
	)
	h.deps.publish(shared.NewWeeklyRewardsDistributedEvent(
		cmd.WeekStart.String(), len(result.Rewards), result.CoinsPaid, result.RankedStudents, h.deps.Clock.Now(),
	))

	return result, nil
}
