package command

import (
	"context"
	"fmt"
	"time"

	"github.com/studypets/studypets-core/internal/domain/economy"
	"github.com/studypets/studypets-core/internal/domain/practice"
	"github.com/studypets/studypets-core/internal/domain/shared"
	"github.com/studypets/studypets-core/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// CREATE SESSION COMMAND
// Builds a practice session over a fixed, ordered question list and enforces
// the tier's daily session quota.
// ══════════════════════════════════════════════════════════════════════════════

// CreateSessionCommand contains the data to start a practice session.
type CreateSessionCommand struct {
	StudentID      shared.StudentID
	TopicID        string
	CurriculumRefs []string
	QuestionIDs    []string
	CycleNumber    int
}

// CreateSessionResult contains the new session and the quota state after it.
type CreateSessionResult struct {
	SessionID      string       `json:"session_id"`
	TotalQuestions int          `json:"total_questions"`
	Tier           economy.Tier `json:"tier"`
	SessionsToday  int          `json:"sessions_today"`
	DailyLimit     int          `json:"daily_limit"` // 0 = unlimited
	CreatedAt      time.Time    `json:"created_at"`
}

// CreateSessionHandler handles CreateSessionCommand.
type CreateSessionHandler struct {
	deps          Deps
	subscriptions economy.SubscriptionResolver
	limits        economy.TierLimits
}

// NewCreateSessionHandler creates a new CreateSessionHandler. A nil resolver
// reads the tier synced onto the wallet.
func NewCreateSessionHandler(deps Deps, subscriptions economy.SubscriptionResolver, limits economy.TierLimits) *CreateSessionHandler {
	deps = deps.withDefaults()
	if subscriptions == nil {
		subscriptions = economy.WalletTierResolver{Wallets: deps.Wallets}
	}
	if limits == nil {
		limits = economy.DefaultTierLimits()
	}
	return &CreateSessionHandler{deps: deps, subscriptions: subscriptions, limits: limits}
}

// Handle executes the create session command.
func (h *CreateSessionHandler) Handle(ctx context.Context, cmd CreateSessionCommand) (*CreateSessionResult, error) {
	now := h.deps.Clock.Now()

	session, err := practice.NewSession(h.deps.NewID(), cmd.StudentID, cmd.TopicID, cmd.CurriculumRefs, cmd.QuestionIDs, cmd.CycleNumber, now)
	if err != nil {
		h.deps.logRejected("create_session", cmd.StudentID, err)
		return nil, err
	}

	var result *CreateSessionResult
	err = h.deps.inTx(ctx, "create_session", func(ctx context.Context) error {
		// The wallet row lock serializes concurrent creates of one student,
		// so the count below cannot go stale before the insert.
		if _, err := h.deps.Wallets.Lock(ctx, cmd.StudentID); err != nil {
			return fmt.Errorf("lock wallet: %w", err)
		}

		tier, err := h.subscriptions.ActiveTier(ctx, cmd.StudentID)
		if err != nil {
			return fmt.Errorf("resolve tier: %w", err)
		}

		from, to := timeutil.DayBounds(timeutil.DateOf(now))
		used, err := h.deps.Sessions.CountCreatedBetween(ctx, cmd.StudentID, from, to)
		if err != nil {
			return fmt.Errorf("count sessions: %w", err)
		}
		if err := h.limits.CheckQuota(tier, used); err != nil {
			return err
		}

		if err := h.deps.Sessions.Create(ctx, session); err != nil {
			return fmt.Errorf("insert session: %w", err)
		}
		if err := h.deps.Cycles.MarkSeen(ctx, cmd.StudentID, session.TopicID, session.CycleNumber, session.QuestionIDs); err != nil {
			return fmt.Errorf("mark questions seen: %w", err)
		}

		result = &CreateSessionResult{
			SessionID:      session.ID,
			TotalQuestions: session.TotalQuestions,
			Tier:           tier,
			SessionsToday:  used + 1,
			DailyLimit:     h.limits.SessionsPerDay(tier),
			CreatedAt:      session.CreatedAt,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	h.deps.Logger.Info("practice session created",
		"session_id", result.SessionID,
		"student_id", cmd.StudentID,
		"topic_id", session.TopicID,
		"questions", result.TotalQuestions,
		"sessions_today", result.SessionsToday,
	)

	return result, nil
}
