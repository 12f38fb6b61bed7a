package command

import (
	"context"
	"fmt"

	"github.com/studypets/studypets-core/internal/domain/economy"
	"github.com/studypets/studypets-core/internal/domain/practice"
	"github.com/studypets/studypets-core/internal/domain/shared"
	"github.com/studypets/studypets-core/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETE SESSION COMMAND
// Scores a session from its stored answers, credits the reward, marks the day
// practiced and refreshes the streak, all as one transaction.
// ══════════════════════════════════════════════════════════════════════════════

// CompleteSessionCommand identifies the session to complete.
type CompleteSessionCommand struct {
	StudentID shared.StudentID
	SessionID string
}

// CompleteSessionResult is the reward breakdown shown to the student.
type CompleteSessionResult struct {
	SessionID        string        `json:"session_id"`
	TotalQuestions   int           `json:"total_questions"`
	CorrectCount     int           `json:"correct_count"`
	TotalTimeSeconds int           `json:"total_time_seconds"`
	XPEarned         int           `json:"xp_earned"`
	CoinsEarned      int           `json:"coins_earned"`
	CurrentStreak    int           `json:"current_streak"`
	PracticedOn      timeutil.Date `json:"practiced_on"`
}

// CompleteSessionHandler handles CompleteSessionCommand.
type CompleteSessionHandler struct {
	deps    Deps
	formula practice.RewardFormula
}

// NewCompleteSessionHandler creates a new CompleteSessionHandler.
func NewCompleteSessionHandler(deps Deps, formula practice.RewardFormula) *CompleteSessionHandler {
	if formula == (practice.RewardFormula{}) {
		formula = practice.DefaultRewardFormula()
	}
	return &CompleteSessionHandler{deps: deps.withDefaults(), formula: formula}
}

// Handle executes the complete session command.
func (h *CompleteSessionHandler) Handle(ctx context.Context, cmd CompleteSessionCommand) (*CompleteSessionResult, error) {
	var result *CompleteSessionResult
	err := h.deps.inTx(ctx, "complete_session", func(ctx context.Context) error {
		now := h.deps.Clock.Now()

		session, err := h.deps.Sessions.GetForUpdate(ctx, cmd.SessionID)
		if err != nil {
			return err
		}
		if !session.OwnedBy(cmd.StudentID) {
			return shared.ErrSessionNotFound
		}

		// Authoritative score: recomputed from stored answer rows only.
		answers, err := h.deps.Sessions.ListAnswers(ctx, session.ID)
		if err != nil {
			return fmt.Errorf("list answers: %w", err)
		}
		reward, err := session.Complete(practice.TallyOf(answers), h.formula, now)
		if err != nil {
			return err
		}

		if err := h.deps.Sessions.SaveCompletion(ctx, session); err != nil {
			return fmt.Errorf("save completion: %w", err)
		}
		if _, err := h.deps.Wallets.GetOrCreate(ctx, cmd.StudentID); err != nil {
			return fmt.Errorf("load wallet: %w", err)
		}
		if err := h.deps.Wallets.Credit(ctx, cmd.StudentID, economy.Credit{XP: reward.XP, Coins: reward.Coins}); err != nil {
			return fmt.Errorf("credit reward: %w", err)
		}

		today := timeutil.DateOf(now)
		if err := h.deps.Daily.MarkPracticed(ctx, cmd.StudentID, today); err != nil {
			return fmt.Errorf("mark practiced: %w", err)
		}
		streak, err := h.deps.refreshStreak(ctx, cmd.StudentID)
		if err != nil {
			return fmt.Errorf("refresh streak: %w", err)
		}

		result = &CompleteSessionResult{
			SessionID:        session.ID,
			TotalQuestions:   session.TotalQuestions,
			CorrectCount:     session.CorrectCount,
			TotalTimeSeconds: session.TotalTimeSeconds,
			XPEarned:         reward.XP,
			CoinsEarned:      reward.Coins,
			CurrentStreak:    streak,
			PracticedOn:      today,
		}
		return nil
	})
	if err != nil {
		if shared.IsConflict(err) {
			h.deps.Logger.Warn("duplicate session completion rejected",
				"session_id", cmd.SessionID,
				"student_id", cmd.StudentID,
			)
		}
		return nil, err
	}

	h.deps.Logger.Info("practice session completed",
		"session_id", result.SessionID,
		"student_id", cmd.StudentID,
		"correct", result.CorrectCount,
		"total", result.TotalQuestions,
		"xp", result.XPEarned,
		"coins", result.CoinsEarned,
		"streak", result.CurrentStreak,
	)

	h.deps.publish(shared.NewSessionCompletedEvent(
		result.SessionID, cmd.StudentID.String(),
		result.CorrectCount, result.XPEarned, result.CoinsEarned, result.CurrentStreak,
		h.deps.Clock.Now(),
	))

	return result, nil
}
