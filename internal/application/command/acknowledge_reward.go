package command

import (
	"context"
	"time"

	"github.com/studypets/studypets-core/internal/domain/shared"
)

// AcknowledgeRewardCommand dismisses a weekly reward banner.
type AcknowledgeRewardCommand struct {
	StudentID shared.StudentID
	RewardID  string
}

// AcknowledgeRewardResult reports when the reward was first seen.
type AcknowledgeRewardResult struct {
	RewardID string    `json:"reward_id"`
	SeenAt   time.Time `json:"seen_at"`
}

// AcknowledgeRewardHandler handles AcknowledgeRewardCommand.
type AcknowledgeRewardHandler struct {
	deps Deps
}

// NewAcknowledgeRewardHandler creates a new AcknowledgeRewardHandler.
func NewAcknowledgeRewardHandler(deps Deps) *AcknowledgeRewardHandler {
	return &AcknowledgeRewardHandler{deps: deps.withDefaults()}
}

// Handle sets seen_at once; repeating it keeps the first timestamp.
func (h *AcknowledgeRewardHandler) Handle(ctx context.Context, cmd AcknowledgeRewardCommand) (*AcknowledgeRewardResult, error) {
	var result *AcknowledgeRewardResult
	err := h.deps.inTx(ctx, "acknowledge_reward", func(ctx context.Context) error {
		r, err := h.deps.Rewards.MarkSeen(ctx, cmd.StudentID, cmd.RewardID, h.deps.Clock.Now())
		if err != nil {
			return err
		}
		result = &AcknowledgeRewardResult{RewardID: r.ID, SeenAt: *r.SeenAt}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
