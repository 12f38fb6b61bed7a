package command

import (
	"context"
	"fmt"

	"github.com/studypets/studypets-core/internal/domain/pet"
	"github.com/studypets/studypets-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GACHA PULL COMMAND
// Single and ten-pull draws. The cost is deducted once, in the same
// transaction as every grant, so a failed pull never leaves a partial charge.
// ══════════════════════════════════════════════════════════════════════════════

// PullCommand requests one or many draws.
type PullCommand struct {
	StudentID shared.StudentID
	Multi     bool
}

// PulledPet is one draw.
type PulledPet struct {
	OwnedPetID string     `json:"owned_pet_id"`
	PetID      string     `json:"pet_id"`
	Name       string     `json:"name"`
	Rarity     pet.Rarity `json:"rarity"`
	Count      int        `json:"count"`
	IsNew      bool       `json:"is_new"`
}

// PullResult lists the draws in order.
type PullResult struct {
	Pets         []PulledPet `json:"pets"`
	CoinsSpent   int         `json:"coins_spent"`
	CoinsBalance int         `json:"coins_balance"`
}

// PullHandler handles PullCommand.
type PullHandler struct {
	deps    Deps
	balance pet.Balance
	roller  *pet.Roller
}

// NewPullHandler creates a new PullHandler.
func NewPullHandler(deps Deps, balance pet.Balance) *PullHandler {
	deps = deps.withDefaults()
	return &PullHandler{
		deps:    deps,
		balance: balance,
		roller:  pet.NewRoller(balance, deps.Rand),
	}
}

// Handle executes the pull command.
func (h *PullHandler) Handle(ctx context.Context, cmd PullCommand) (*PullResult, error) {
	cost, draws, source := h.balance.PullCost, 1, "pull"
	if cmd.Multi {
		cost, draws, source = h.balance.MultiPullCost, h.balance.MultiPullCount, "multi_pull"
	}

	var result *PullResult
	err := h.deps.inTx(ctx, source, func(ctx context.Context) error {
		now := h.deps.Clock.Now()

		catalog, err := h.deps.Catalog.ByRarity(ctx)
		if err != nil {
			return fmt.Errorf("load catalog: %w", err)
		}

		if _, err := h.deps.Wallets.GetOrCreate(ctx, cmd.StudentID); err != nil {
			return fmt.Errorf("load wallet: %w", err)
		}
		if err := h.deps.Wallets.Spend(ctx, cmd.StudentID, cost, 0); err != nil {
			return err
		}

		pulled := make([]PulledPet, 0, draws)
		for i := 0; i < draws; i++ {
			def, err := h.roller.Draw(catalog)
			if err != nil {
				return err
			}
			owned, err := h.deps.Pets.Grant(ctx, cmd.StudentID, def.ID, now)
			if err != nil {
				return fmt.Errorf("grant pet: %w", err)
			}
			pulled = append(pulled, PulledPet{
				OwnedPetID: owned.ID,
				PetID:      def.ID,
				Name:       def.Name,
				Rarity:     def.Rarity,
				Count:      owned.Count,
				IsNew:      owned.Count == 1,
			})
		}

		wallet, err := h.deps.Wallets.Get(ctx, cmd.StudentID)
		if err != nil {
			return fmt.Errorf("reload wallet: %w", err)
		}

		result = &PullResult{Pets: pulled, CoinsSpent: cost, CoinsBalance: wallet.Coins}
		return nil
	})
	if err != nil {
		return nil, err
	}

	now := h.deps.Clock.Now()
	events := make([]shared.Event, 0, len(result.Pets))
	for _, p := range result.Pets {
		events = append(events, shared.NewPetAcquiredEvent(cmd.StudentID.String(), p.PetID, string(p.Rarity), source, now))
	}
	h.deps.publish(events...)

	h.deps.Logger.Info("gacha pull",
		"student_id", cmd.StudentID,
		"source", source,
		"draws", len(result.Pets),
		"coins_spent", cost,
	)

	return result, nil
}
