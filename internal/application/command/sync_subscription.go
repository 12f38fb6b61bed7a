package command

import (
	"context"
	"fmt"

	"github.com/studypets/studypets-core/internal/domain/economy"
	"github.com/studypets/studypets-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SYNC SUBSCRIPTION TIER COMMAND
// Called by the billing integration once a subscription change is resolved.
// An empty tier means no active subscription.
// ══════════════════════════════════════════════════════════════════════════════

// SyncSubscriptionCommand carries the resolved tier.
type SyncSubscriptionCommand struct {
	StudentID shared.StudentID
	Tier      string
}

// SyncSubscriptionResult reports the stored tier.
type SyncSubscriptionResult struct {
	StudentID    shared.StudentID `json:"student_id"`
	PreviousTier economy.Tier     `json:"previous_tier"`
	Tier         economy.Tier     `json:"tier"`
}

// SyncSubscriptionHandler handles SyncSubscriptionCommand.
type SyncSubscriptionHandler struct {
	deps Deps
}

// NewSyncSubscriptionHandler creates a new SyncSubscriptionHandler.
func NewSyncSubscriptionHandler(deps Deps) *SyncSubscriptionHandler {
	return &SyncSubscriptionHandler{deps: deps.withDefaults()}
}

// Handle executes the sync command.
func (h *SyncSubscriptionHandler) Handle(ctx context.Context, cmd SyncSubscriptionCommand) (*SyncSubscriptionResult, error) {
	if !cmd.StudentID.IsValid() {
		return nil, shared.NewDomainError("economy", "SyncTier", shared.ErrInvalidInput, "invalid_student_id", "student id is required")
	}
	tier, err := economy.ParseTier(cmd.Tier)
	if err != nil {
		h.deps.logRejected("sync_subscription", cmd.StudentID, err)
		return nil, err
	}

	var result *SyncSubscriptionResult
	err = h.deps.inTx(ctx, "sync_subscription", func(ctx context.Context) error {
		wallet, err := h.deps.Wallets.Lock(ctx, cmd.StudentID)
		if err != nil {
			return fmt.Errorf("lock wallet: %w", err)
		}
		if err := h.deps.Wallets.SetTier(ctx, cmd.StudentID, tier); err != nil {
			return fmt.Errorf("set tier: %w", err)
		}
		result = &SyncSubscriptionResult{StudentID: cmd.StudentID, PreviousTier: wallet.Tier, Tier: tier}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.PreviousTier != result.Tier {
		h.deps.Logger.Info("subscription tier changed",
			"student_id", cmd.StudentID,
			"from", result.PreviousTier,
			"to", result.Tier,
		)
	}
	return result, nil
}
