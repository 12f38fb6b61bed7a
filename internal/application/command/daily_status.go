package command

import (
	"context"
	"fmt"

	"github.com/studypets/studypets-core/internal/domain/daily"
	"github.com/studypets/studypets-core/internal/domain/economy"
	"github.com/studypets/studypets-core/internal/domain/shared"
	"github.com/studypets/studypets-core/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// DAILY STATUS COMMANDS
// Mood check-in and the once-a-day reward spin. Both touch today's status
// row, so both refresh the persisted streak in the same transaction.
// ══════════════════════════════════════════════════════════════════════════════

// SetMoodCommand records today's mood.
type SetMoodCommand struct {
	StudentID shared.StudentID
	Mood      string
}

// SpinCommand claims today's spin.
type SpinCommand struct {
	StudentID shared.StudentID
}

// DailyStatusResult reports today's status after the change.
type DailyStatusResult struct {
	Date          timeutil.Date `json:"date"`
	HasPracticed  bool          `json:"has_practiced"`
	Mood          *daily.Mood   `json:"mood"`
	HasSpun       bool          `json:"has_spun"`
	SpinReward    *int          `json:"spin_reward"`
	CoinsBalance  int           `json:"coins_balance"`
	CurrentStreak int           `json:"current_streak"`
}

// DailyStatusHandler handles SetMoodCommand and SpinCommand.
type DailyStatusHandler struct {
	deps  Deps
	wheel economy.SpinTable
}

// NewDailyStatusHandler creates a new DailyStatusHandler.
func NewDailyStatusHandler(deps Deps, wheel economy.SpinTable) *DailyStatusHandler {
	if len(wheel) == 0 {
		wheel = economy.DefaultSpinTable()
	}
	return &DailyStatusHandler{deps: deps.withDefaults(), wheel: wheel}
}

// SetMood executes the mood command.
func (h *DailyStatusHandler) SetMood(ctx context.Context, cmd SetMoodCommand) (*DailyStatusResult, error) {
	mood, err := daily.ParseMood(cmd.Mood)
	if err != nil {
		h.deps.logRejected("set_mood", cmd.StudentID, err)
		return nil, err
	}

	var result *DailyStatusResult
	err = h.deps.inTx(ctx, "set_mood", func(ctx context.Context) error {
		today := timeutil.Today(h.deps.Clock)
		if _, err := h.deps.Wallets.Lock(ctx, cmd.StudentID); err != nil {
			return fmt.Errorf("lock wallet: %w", err)
		}
		if err := h.deps.Daily.SetMood(ctx, cmd.StudentID, today, mood); err != nil {
			return fmt.Errorf("set mood: %w", err)
		}
		var err error
		result, err = h.snapshot(ctx, cmd.StudentID, today)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Spin executes the spin command. The reward is rolled server-side and
// checked against the wheel before it is credited.
func (h *DailyStatusHandler) Spin(ctx context.Context, cmd SpinCommand) (*DailyStatusResult, error) {
	var result *DailyStatusResult
	var reward int
	err := h.deps.inTx(ctx, "daily_spin", func(ctx context.Context) error {
		today := timeutil.Today(h.deps.Clock)
		if _, err := h.deps.Wallets.Lock(ctx, cmd.StudentID); err != nil {
			return fmt.Errorf("lock wallet: %w", err)
		}

		reward = h.wheel.Roll(h.deps.Rand)
		if err := h.wheel.Check(reward); err != nil {
			return err
		}
		if err := h.deps.Daily.ClaimSpin(ctx, cmd.StudentID, today, reward); err != nil {
			return err
		}
		if err := h.deps.Wallets.Credit(ctx, cmd.StudentID, economy.Credit{Coins: reward}); err != nil {
			return fmt.Errorf("credit spin: %w", err)
		}

		var err error
		result, err = h.snapshot(ctx, cmd.StudentID, today)
		return err
	})
	if err != nil {
		return nil, err
	}

	h.deps.Logger.Info("daily spin claimed",
		"student_id", cmd.StudentID,
		"reward", reward,
	)
	return result, nil
}

// snapshot refreshes the streak and reads back today's row and balances.
func (h *DailyStatusHandler) snapshot(ctx context.Context, studentID shared.StudentID, today timeutil.Date) (*DailyStatusResult, error) {
	streak, err := h.deps.refreshStreak(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("refresh streak: %w", err)
	}
	status, err := h.deps.Daily.Get(ctx, studentID, today)
	if err != nil {
		return nil, fmt.Errorf("read status: %w", err)
	}
	wallet, err := h.deps.Wallets.Get(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("read wallet: %w", err)
	}
	return &DailyStatusResult{
		Date:          status.Date,
		HasPracticed:  status.HasPracticed,
		Mood:          status.Mood,
		HasSpun:       status.HasSpun,
		SpinReward:    status.SpinReward,
		CoinsBalance:  wallet.Coins,
		CurrentStreak: streak,
	}, nil
}
