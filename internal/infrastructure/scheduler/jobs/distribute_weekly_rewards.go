// Package jobs contains the scheduled jobs run by the worker.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/studypets/studypets-core/internal/application/command"
	"github.com/studypets/studypets-core/internal/domain/shared"
	"github.com/studypets/studypets-core/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// DISTRIBUTE WEEKLY REWARDS JOB
// ══════════════════════════════════════════════════════════════════════════════

// JobNameDistributeWeeklyRewards is the scheduler name of the job.
const JobNameDistributeWeeklyRewards = "distribute_weekly_rewards"

// WeeklyRewardsDistributor pays out one finished week.
type WeeklyRewardsDistributor interface {
	Handle(ctx context.Context, cmd command.DistributeWeeklyRewardsCommand) (*command.DistributeWeeklyRewardsResult, error)
}

// RunStats describes the last run.
type RunStats struct {
	WeekStart          timeutil.Date
	StartedAt          time.Time
	Duration           time.Duration
	AlreadyDistributed bool
	Skipped            bool
	Recipients         int
	CoinsPaid          int
}

// DistributeWeeklyRewardsJob pays the previous platform week each time it
// runs. Re-running is harmless: a paid week reports AlreadyDistributed.
type DistributeWeeklyRewardsJob struct {
	distributor WeeklyRewardsDistributor
	clock       timeutil.Clock
	timeout     time.Duration
	logger      *slog.Logger

	lastStats atomic.Pointer[RunStats]
}

// NewDistributeWeeklyRewardsJob creates the job. A non-positive timeout
// defaults to five minutes.
func NewDistributeWeeklyRewardsJob(
	distributor WeeklyRewardsDistributor,
	clock timeutil.Clock,
	timeout time.Duration,
	logger *slog.Logger,
) *DistributeWeeklyRewardsJob {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DistributeWeeklyRewardsJob{
		distributor: distributor,
		clock:       clock,
		timeout:     timeout,
		logger:      logger.With("job", JobNameDistributeWeeklyRewards),
	}
}

// Name returns the job name.
func (j *DistributeWeeklyRewardsJob) Name() string {
	return JobNameDistributeWeeklyRewards
}

// Description returns a human-readable description.
func (j *DistributeWeeklyRewardsJob) Description() string {
	return "Pays leaderboard coins for the previous week"
}

// Run distributes the week that ended most recently.
func (j *DistributeWeeklyRewardsJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	startedAt := j.clock.Now()
	week := timeutil.PreviousWeekStart(startedAt)
	stats := &RunStats{WeekStart: week, StartedAt: startedAt}
	defer func() {
		stats.Duration = j.clock.Now().Sub(startedAt)
		j.lastStats.Store(stats)
	}()

	result, err := j.distributor.Handle(ctx, command.DistributeWeeklyRewardsCommand{WeekStart: week})
	if errors.Is(err, shared.ErrDistributionLocked) {
		stats.Skipped = true
		j.logger.Info("another worker is distributing, skipping", "week_start", week.String())
		return nil
	}
	if err != nil {
		return fmt.Errorf("distribute week %s: %w", week, err)
	}

	stats.AlreadyDistributed = result.AlreadyDistributed
	stats.Recipients = len(result.Rewards)
	stats.CoinsPaid = result.CoinsPaid
	return nil
}

// LastStats returns the stats of the most recent run, or nil.
func (j *DistributeWeeklyRewardsJob) LastStats() *RunStats {
	return j.lastStats.Load()
}
