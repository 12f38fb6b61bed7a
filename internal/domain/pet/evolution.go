package pet

import (
	"github.com/studypets/studypets-core/internal/domain/shared"
)

// FeedCheck validates a feed request against the stack.
func (b Balance) FeedCheck(o *Owned, food int) error {
	if food <= 0 {
		return shared.ErrNegativeAmount.WithMessage("food amount must be at least 1")
	}
	if o.Tier >= b.MaxTier {
		return shared.ErrPetMaxTier.WithDetails(map[string]any{"tier": o.Tier})
	}
	return nil
}

// EvolveCheck returns the tier the stack evolves into, or an error carrying
// the current and required food when the threshold is not met.
func (b Balance) EvolveCheck(o *Owned) (int, error) {
	if o.Tier >= b.MaxTier {
		return o.Tier, shared.ErrPetMaxTier.WithDetails(map[string]any{"tier": o.Tier})
	}
	required := b.RequiredFood(o.Tier)
	if o.FoodFed < required {
		return o.Tier, shared.ErrFoodThresholdNotMet.
			WithMessage("Not enough food fed yet, need %d more", required-o.FoodFed).
			WithDetails(map[string]any{"current": o.FoodFed, "required": required})
	}
	return o.Tier + 1, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// COMBINE
// ══════════════════════════════════════════════════════════════════════════════

// CombineInput is one resolved input stack.
type CombineInput struct {
	Owned      *Owned
	Definition *Definition
}

// CombinePlan is the validated consumption of a combine request.
type CombinePlan struct {
	Rarity  Rarity
	Consume map[string]int // owned id -> units
}

// CountIDs tallies how often each owned id appears, in first-seen order.
func CountIDs(ids []string) ([]string, map[string]int) {
	order := make([]string, 0, len(ids))
	counts := make(map[string]int, len(ids))
	for _, id := range ids {
		if counts[id] == 0 {
			order = append(order, id)
		}
		counts[id]++
	}
	return order, counts
}

// PlanCombine validates resolved inputs. ids is the raw request (duplicates
// allowed); inputs holds one entry per distinct id, already checked for
// ownership.
func (b Balance) PlanCombine(ids []string, inputs map[string]CombineInput) (CombinePlan, error) {
	if len(ids) != b.CombineInputs {
		return CombinePlan{}, shared.ErrInvalidPetCount.WithDetails(map[string]any{"supplied": len(ids), "required": b.CombineInputs})
	}

	order, counts := CountIDs(ids)
	var rarity Rarity
	for _, id := range order {
		in, ok := inputs[id]
		if !ok {
			return CombinePlan{}, shared.ErrPetNotFound.WithDetails(map[string]any{"owned_pet_id": id})
		}
		if rarity == "" {
			rarity = in.Definition.Rarity
		} else if in.Definition.Rarity != rarity {
			return CombinePlan{}, shared.ErrRarityMismatch
		}
	}

	if rarity == Legendary {
		return CombinePlan{}, shared.ErrLegendaryCombine
	}

	for _, id := range order {
		in, n := inputs[id], counts[id]
		if in.Owned.Count < n {
			return CombinePlan{}, shared.ErrInsufficientPetCount.WithDetails(map[string]any{
				"owned_pet_id": id,
				"owned":        in.Owned.Count,
				"required":     n,
			})
		}
	}

	return CombinePlan{Rarity: rarity, Consume: counts}, nil
}
