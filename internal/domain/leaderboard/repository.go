package leaderboard

import (
	"context"
	"time"

	"github.com/studypets/studypets-core/internal/domain/shared"
	"github.com/studypets/studypets-core/pkg/timeutil"
)

// Repository is the aggregation boundary over completed sessions and the
// reward ledger. It only ever returns aggregated rows.
type Repository interface {
	// WeeklyXP sums xp_earned of sessions completed in [from, to) per student.
	WeeklyXP(ctx context.Context, from, to time.Time) ([]WeeklyXP, error)

	// LockWeek takes a transaction-scoped lock on the week so concurrent
	// distributions serialize.
	LockWeek(ctx context.Context, week timeutil.Date) error

	// HasRewards reports whether any reward row exists for the week.
	HasRewards(ctx context.Context, week timeutil.Date) (bool, error)

	// InsertReward stores one row; a duplicate (week, student) returns
	// shared.ErrWeekAlreadyDistributed.
	InsertReward(ctx context.Context, r *Reward) error

	// ListRewards returns the week's rows ordered by rank.
	ListRewards(ctx context.Context, week timeutil.Date) ([]Reward, error)

	// UnseenRewards returns the student's rows with seen_at unset, newest week first.
	UnseenRewards(ctx context.Context, studentID shared.StudentID) ([]Reward, error)

	// MarkSeen sets seen_at once. Returns shared.ErrRewardNotFound when the
	// row is missing or belongs to someone else.
	MarkSeen(ctx context.Context, studentID shared.StudentID, rewardID string, at time.Time) (*Reward, error)
}
