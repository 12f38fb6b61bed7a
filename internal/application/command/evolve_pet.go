package command

import (
	"context"
	"fmt"

	"github.com/studypets/studypets-core/internal/domain/pet"
	"github.com/studypets/studypets-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// FEED / EVOLVE COMMANDS
// Food moves from the wallet into a pet's food_fed accumulator; evolving
// spends the accumulator once it reaches the tier's threshold.
// ══════════════════════════════════════════════════════════════════════════════

// FeedPetCommand transfers food to an owned pet.
type FeedPetCommand struct {
	StudentID  shared.StudentID
	OwnedPetID string
	Food       int
}

// FeedPetResult reports evolution progress. ReadyToEvolve is advisory.
type FeedPetResult struct {
	OwnedPetID    string `json:"owned_pet_id"`
	Tier          int    `json:"tier"`
	FoodFed       int    `json:"food_fed"`
	Required      int    `json:"required"`
	ReadyToEvolve bool   `json:"ready_to_evolve"`
	FoodBalance   int    `json:"food_balance"`
}

// EvolvePetCommand evolves an owned pet one tier.
type EvolvePetCommand struct {
	StudentID  shared.StudentID
	OwnedPetID string
}

// EvolvePetResult reports the new tier.
type EvolvePetResult struct {
	OwnedPetID   string `json:"owned_pet_id"`
	PreviousTier int    `json:"previous_tier"`
	Tier         int    `json:"tier"`
	IsMaxTier    bool   `json:"is_max_tier"`
}

// PetEvolutionHandler handles feeding and evolving.
type PetEvolutionHandler struct {
	deps    Deps
	balance pet.Balance
}

// NewPetEvolutionHandler creates a new PetEvolutionHandler.
func NewPetEvolutionHandler(deps Deps, balance pet.Balance) *PetEvolutionHandler {
	return &PetEvolutionHandler{deps: deps.withDefaults(), balance: balance}
}

// ownedForUpdate locks the stack and checks the caller owns it.
func (h *PetEvolutionHandler) ownedForUpdate(ctx context.Context, studentID shared.StudentID, ownedID string) (*pet.Owned, error) {
	owned, err := h.deps.Pets.GetForUpdate(ctx, ownedID)
	if err != nil {
		return nil, err
	}
	if !owned.OwnedBy(studentID) {
		return nil, shared.ErrPetNotFound
	}
	return owned, nil
}

// Feed executes the feed command.
func (h *PetEvolutionHandler) Feed(ctx context.Context, cmd FeedPetCommand) (*FeedPetResult, error) {
	var result *FeedPetResult
	err := h.deps.inTx(ctx, "feed_pet", func(ctx context.Context) error {
		owned, err := h.ownedForUpdate(ctx, cmd.StudentID, cmd.OwnedPetID)
		if err != nil {
			return err
		}
		if err := h.balance.FeedCheck(owned, cmd.Food); err != nil {
			return err
		}

		if err := h.deps.Wallets.Spend(ctx, cmd.StudentID, 0, cmd.Food); err != nil {
			return err
		}
		owned, err = h.deps.Pets.AddFood(ctx, owned.ID, cmd.Food)
		if err != nil {
			return fmt.Errorf("add food: %w", err)
		}

		wallet, err := h.deps.Wallets.Get(ctx, cmd.StudentID)
		if err != nil {
			return fmt.Errorf("reload wallet: %w", err)
		}

		required := h.balance.RequiredFood(owned.Tier)
		result = &FeedPetResult{
			OwnedPetID:    owned.ID,
			Tier:          owned.Tier,
			FoodFed:       owned.FoodFed,
			Required:      required,
			ReadyToEvolve: owned.FoodFed >= required,
			FoodBalance:   wallet.Food,
		}
		return nil
	})
	if err != nil {
		h.deps.logRejected("feed_pet", cmd.StudentID, err)
		return nil, err
	}
	return result, nil
}

// Evolve executes the evolve command.
func (h *PetEvolutionHandler) Evolve(ctx context.Context, cmd EvolvePetCommand) (*EvolvePetResult, error) {
	var result *EvolvePetResult
	err := h.deps.inTx(ctx, "evolve_pet", func(ctx context.Context) error {
		owned, err := h.ownedForUpdate(ctx, cmd.StudentID, cmd.OwnedPetID)
		if err != nil {
			return err
		}
		next, err := h.balance.EvolveCheck(owned)
		if err != nil {
			return err
		}

		previous := owned.Tier
		owned, err = h.deps.Pets.SetTier(ctx, owned.ID, next)
		if err != nil {
			return fmt.Errorf("evolve: %w", err)
		}

		result = &EvolvePetResult{
			OwnedPetID:   owned.ID,
			PreviousTier: previous,
			Tier:         owned.Tier,
			IsMaxTier:    owned.Tier >= h.balance.MaxTier,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	h.deps.Logger.Info("pet evolved",
		"student_id", cmd.StudentID,
		"owned_pet_id", result.OwnedPetID,
		"tier", result.Tier,
	)
	return result, nil
}
