package command

import (
	"context"
	"fmt"

	"github.com/studypets/studypets-core/internal/domain/pet"
	"github.com/studypets/studypets-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMBINE PETS COMMAND
// Four units of one rarity become one unit of the same or next rarity.
// ══════════════════════════════════════════════════════════════════════════════

// CombinePetsCommand lists four owned-pet ids; repeats are allowed.
type CombinePetsCommand struct {
	StudentID   shared.StudentID
	OwnedPetIDs []string
}

// CombinePetsResult describes the produced pet.
type CombinePetsResult struct {
	Upgraded      bool       `json:"upgraded"`
	InputRarity   pet.Rarity `json:"input_rarity"`
	ResultRarity  pet.Rarity `json:"result_rarity"`
	PetID         string     `json:"pet_id"`
	PetName       string     `json:"pet_name"`
	OwnedPetID    string     `json:"owned_pet_id"`
	UnitsConsumed int        `json:"units_consumed"`
}

// CombinePetsHandler handles CombinePetsCommand.
type CombinePetsHandler struct {
	deps    Deps
	balance pet.Balance
	roller  *pet.Roller
}

// NewCombinePetsHandler creates a new CombinePetsHandler.
func NewCombinePetsHandler(deps Deps, balance pet.Balance) *CombinePetsHandler {
	deps = deps.withDefaults()
	return &CombinePetsHandler{
		deps:    deps,
		balance: balance,
		roller:  pet.NewRoller(balance, deps.Rand),
	}
}

// Handle executes the combine command.
func (h *CombinePetsHandler) Handle(ctx context.Context, cmd CombinePetsCommand) (*CombinePetsResult, error) {
	if len(cmd.OwnedPetIDs) != h.balance.CombineInputs {
		err := shared.ErrInvalidPetCount.WithDetails(map[string]any{"supplied": len(cmd.OwnedPetIDs), "required": h.balance.CombineInputs})
		h.deps.logRejected("combine_pets", cmd.StudentID, err)
		return nil, err
	}

	var result *CombinePetsResult
	err := h.deps.inTx(ctx, "combine_pets", func(ctx context.Context) error {
		now := h.deps.Clock.Now()

		order, _ := pet.CountIDs(cmd.OwnedPetIDs)
		inputs := make(map[string]pet.CombineInput, len(order))
		for _, id := range order {
			owned, err := h.deps.Pets.GetForUpdate(ctx, id)
			if err != nil {
				return err
			}
			if !owned.OwnedBy(cmd.StudentID) {
				return shared.ErrPetNotFound.WithDetails(map[string]any{"owned_pet_id": id})
			}
			def, err := h.deps.Catalog.Get(ctx, owned.PetID)
			if err != nil {
				return fmt.Errorf("load definition %s: %w", owned.PetID, err)
			}
			inputs[id] = pet.CombineInput{Owned: owned, Definition: def}
		}

		plan, err := h.balance.PlanCombine(cmd.OwnedPetIDs, inputs)
		if err != nil {
			return err
		}

		catalog, err := h.deps.Catalog.ByRarity(ctx)
		if err != nil {
			return fmt.Errorf("load catalog: %w", err)
		}

		target, upgraded := h.roller.RollUpgrade(plan.Rarity)
		def, err := h.roller.Pick(catalog, target)
		if err != nil {
			return err
		}

		consumed := 0
		for _, id := range order {
			n := plan.Consume[id]
			if err := h.deps.Pets.Consume(ctx, id, n); err != nil {
				return fmt.Errorf("consume %s: %w", id, err)
			}
			consumed += n
		}

		owned, err := h.deps.Pets.Grant(ctx, cmd.StudentID, def.ID, now)
		if err != nil {
			return fmt.Errorf("grant result: %w", err)
		}

		result = &CombinePetsResult{
			Upgraded:      upgraded,
			InputRarity:   plan.Rarity,
			ResultRarity:  def.Rarity,
			PetID:         def.ID,
			PetName:       def.Name,
			OwnedPetID:    owned.ID,
			UnitsConsumed: consumed,
		}
		return nil
	})
	if err != nil {
		h.deps.logRejected("combine_pets", cmd.StudentID, err)
		return nil, err
	}

	h.deps.Logger.Info("pets combined",
		"student_id", cmd.StudentID,
		"input_rarity", result.InputRarity,
		"result_rarity", result.ResultRarity,
		"upgraded", result.Upgraded,
	)
	h.deps.publish(shared.NewPetAcquiredEvent(cmd.StudentID.String(), result.PetID, string(result.ResultRarity), "combine", h.deps.Clock.Now()))

	return result, nil
}
