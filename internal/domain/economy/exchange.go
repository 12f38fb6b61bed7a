package economy

import (
	"fmt"

	"github.com/studypets/studypets-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// FOOD EXCHANGE
// ══════════════════════════════════════════════════════════════════════════════

// DefaultFoodPriceCoins is the coin price of one food unit.
const DefaultFoodPriceCoins = 5

// FoodExchange converts coins into pet food at a fixed price.
type FoodExchange struct {
	PriceCoins int
}

// Cost returns the coin cost of buying food units.
func (e FoodExchange) Cost(food int) (int, error) {
	if food <= 0 {
		return 0, shared.ErrNegativeAmount.WithMessage("food amount must be at least 1")
	}
	return food * e.PriceCoins, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DAILY SPIN
// ══════════════════════════════════════════════════════════════════════════════

// SpinSlot is one wedge of the daily spin wheel.
type SpinSlot struct {
	Coins  int
	Weight int
}

// SpinTable is the weighted set of allowed spin rewards.
type SpinTable []SpinSlot

// DefaultSpinTable returns the standard wheel.
func DefaultSpinTable() SpinTable {
	return SpinTable{
		{Coins: 5, Weight: 35},
		{Coins: 10, Weight: 30},
		{Coins: 20, Weight: 20},
		{Coins: 50, Weight: 10},
		{Coins: 100, Weight: 5},
	}
}

// Roll picks a reward with probability proportional to its weight.
func (t SpinTable) Roll(rng shared.Rand) int {
	total := 0
	for _, s := range t {
		total += s.Weight
	}
	if total <= 0 {
		return 0
	}
	n := rng.IntN(total)
	for _, s := range t {
		if n < s.Weight {
			return s.Coins
		}
		n -= s.Weight
	}
	return t[len(t)-1].Coins
}

// Check returns shared.ErrInvalidSpinReward when coins is not on the wheel.
func (t SpinTable) Check(coins int) error {
	for _, s := range t {
		if s.Coins == coins {
			return nil
		}
	}
	return shared.ErrInvalidSpinReward.WithDetails(map[string]any{"reward": coins})
}

// Validate checks the wheel is usable.
func (t SpinTable) Validate() error {
	if len(t) == 0 {
		return fmt.Errorf("spin table is empty")
	}
	for _, s := range t {
		if s.Coins <= 0 || s.Weight <= 0 {
			return fmt.Errorf("spin slot %+v must have positive coins and weight", s)
		}
	}
	return nil
}
