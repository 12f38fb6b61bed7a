// Package eventhandler contains handlers for domain events.
package eventhandler

import (
	"context"
	"log/slog"
	"time"

	"github.com/studypets/studypets-core/internal/domain/shared"
	"github.com/studypets/studypets-core/pkg/timeutil"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON SESSION COMPLETED HANDLER
// A completed session changes the current week's XP totals, so the cached
// board for that week is dropped and rebuilt on the next read.
// ═══════════════════════════════════════════════════════════════════════════

// BoardInvalidator drops a cached weekly board.
type BoardInvalidator interface {
	InvalidateWeek(ctx context.Context, week timeutil.Date) error
}

// OnSessionCompletedHandler reacts to practice.session_completed.
type OnSessionCompletedHandler struct {
	boards  BoardInvalidator
	logger  *slog.Logger
	timeout time.Duration
}

// NewOnSessionCompletedHandler creates the handler.
func NewOnSessionCompletedHandler(boards BoardInvalidator, logger *slog.Logger) *OnSessionCompletedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OnSessionCompletedHandler{
		boards:  boards,
		logger:  logger.With("handler", "on_session_completed"),
		timeout: 5 * time.Second,
	}
}

// Handle implements shared.EventHandler.
func (h *OnSessionCompletedHandler) Handle(event shared.Event) error {
	e, ok := event.(shared.SessionCompletedEvent)
	if !ok {
		// Another instance's completion: the board lives in the shared Redis
		// and the publishing instance has already dropped it.
		h.logger.Debug("skipping remote event", "event_type", event.EventType())
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	week := timeutil.CurrentWeekStart(e.OccurredAt())
	if err := h.boards.InvalidateWeek(ctx, week); err != nil {
		h.logger.Warn("failed to invalidate weekly board",
			"session_id", e.AggregateID(),
			"week_start", week.String(),
			"error", err,
		)
		return err
	}

	h.logger.Debug("weekly board invalidated",
		"session_id", e.AggregateID(),
		"student_id", e.StudentID,
		"xp_earned", e.XPEarned,
	)
	return nil
}
