package eventhandler

import (
	"context"
	"log/slog"
	"time"

	"github.com/studypets/studypets-core/internal/domain/shared"
	"github.com/studypets/studypets-core/pkg/timeutil"
)

// OnRewardsDistributedHandler drops the paid week's cached board so readers
// see the finalized ranking, and leaves an audit line.
type OnRewardsDistributedHandler struct {
	boards  BoardInvalidator
	logger  *slog.Logger
	timeout time.Duration
}

// NewOnRewardsDistributedHandler creates the handler.
func NewOnRewardsDistributedHandler(boards BoardInvalidator, logger *slog.Logger) *OnRewardsDistributedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OnRewardsDistributedHandler{
		boards:  boards,
		logger:  logger.With("handler", "on_rewards_distributed"),
		timeout: 5 * time.Second,
	}
}

// Handle implements shared.EventHandler.
func (h *OnRewardsDistributedHandler) Handle(event shared.Event) error {
	e, ok := event.(shared.WeeklyRewardsDistributedEvent)
	if !ok {
		return nil
	}

	week, err := timeutil.ParseDate(e.WeekStart)
	if err != nil {
		h.logger.Error("bad week in event", "week_start", e.WeekStart, "error", err)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()
	if err := h.boards.InvalidateWeek(ctx, week); err != nil {
		h.logger.Warn("failed to invalidate weekly board", "week_start", e.WeekStart, "error", err)
	}

	h.logger.Info("weekly payout recorded",
		"week_start", e.WeekStart,
		"recipients", e.Recipients,
		"coins_paid", e.CoinsPaid,
		"ranked", e.RankedCount,
	)
	return nil
}

// Register subscribes the handlers to the bus.
func Register(bus shared.EventSubscriber, boards BoardInvalidator, logger *slog.Logger) error {
	if err := bus.Subscribe(shared.EventSessionCompleted, NewOnSessionCompletedHandler(boards, logger).Handle); err != nil {
		return err
	}
	return bus.Subscribe(shared.EventWeeklyRewardsDistributed, NewOnRewardsDistributedHandler(boards, logger).Handle)
}
