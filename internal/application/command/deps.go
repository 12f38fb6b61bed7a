// Package command contains write operations (CQRS - Commands).
//
// Every handler runs its whole operation inside one transaction obtained from
// shared.Transactor, retried as a unit on transient storage failures. Domain
// events are published only after the transaction commits.
package command

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/studypets/studypets-core/internal/domain/daily"
	"github.com/studypets/studypets-core/internal/domain/economy"
	"github.com/studypets/studypets-core/internal/domain/leaderboard"
	"github.com/studypets/studypets-core/internal/domain/pet"
	"github.com/studypets/studypets-core/internal/domain/practice"
	"github.com/studypets/studypets-core/internal/domain/shared"
	"github.com/studypets/studypets-core/pkg/retry"
	"github.com/studypets/studypets-core/pkg/timeutil"
)

// Deps bundles the ports shared by command handlers.
type Deps struct {
	Tx        shared.Transactor
	Wallets   economy.Repository
	Daily     daily.Repository
	Sessions  practice.SessionRepository
	Questions practice.QuestionCatalog
	Cycles    practice.CycleRepository
	Pets      pet.Repository
	Catalog   pet.Catalog
	Rewards   leaderboard.Repository
	Events    shared.EventPublisher
	Clock     timeutil.Clock
	Rand      shared.Rand
	Logger    *slog.Logger

	// NewID generates row ids. Defaults to random UUIDs.
	NewID func() string

	// TxAttempts bounds retries of a transaction on transient failures.
	TxAttempts int
}

// withDefaults fills optional dependencies.
func (d Deps) withDefaults() Deps {
	if d.Events == nil {
		d.Events = shared.NopPublisher{}
	}
	if d.Clock == nil {
		d.Clock = timeutil.SystemClock{}
	}
	if d.Rand == nil {
		d.Rand = shared.SystemRand{}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.NewID == nil {
		d.NewID = uuid.NewString
	}
	if d.TxAttempts <= 0 {
		d.TxAttempts = 3
	}
	return d
}

// inTx runs fn atomically, retrying the whole transaction on transient errors.
// fn must not leak partial results across attempts.
func (d Deps) inTx(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	return retry.Do(ctx, func(ctx context.Context) error {
		return d.Tx.WithinTx(ctx, fn)
	},
		retry.WithMaxAttempts(d.TxAttempts),
		retry.WithRetryIf(shared.IsRetryable),
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			d.Logger.Warn("retrying transaction",
				"op", op,
				"attempt", attempt,
				"delay", delay,
				"error", err,
			)
		}),
	)
}

// publish sends committed events; failures are logged, never returned.
func (d Deps) publish(events ...shared.Event) {
	for _, e := range events {
		if err := d.Events.Publish(e); err != nil {
			d.Logger.Error("failed to publish event",
				"event_type", e.EventType(),
				"aggregate_id", e.AggregateID(),
				"error", err,
			)
		}
	}
}

// refreshStreak recomputes the persisted streak from the daily ledger. It is
// called at the end of every daily status mutation, inside the same
// transaction, so the cached value never lags the practice history.
func (d Deps) refreshStreak(ctx context.Context, studentID shared.StudentID) (int, error) {
	today := timeutil.Today(d.Clock)
	dates, err := d.Daily.PracticedDates(ctx, studentID, today)
	if err != nil {
		return 0, err
	}
	streak := daily.ComputeStreak(today, dates)
	if err := d.Wallets.SetStreak(ctx, studentID, streak); err != nil {
		return 0, err
	}
	return streak, nil
}

// logRejected records caller mistakes at warn; other failures are left to
// the caller's error logging.
func (d Deps) logRejected(op string, studentID shared.StudentID, err error) {
	if shared.IsInvalidInput(err) {
		d.Logger.Warn("rejected invalid request",
			"op", op,
			"student_id", studentID,
			"error", err,
		)
	}
}
