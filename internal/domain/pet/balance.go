package pet

import (
	"fmt"
)

// RarityWeight is one entry of the pull table.
type RarityWeight struct {
	Rarity Rarity
	Weight float64 // percent
}

// Balance holds the game-balance constants of the pet economy.
type Balance struct {
	PullCost       int
	MultiPullCost  int
	MultiPullCount int

	// Weights are checked in order against one cumulative draw, rarest first.
	Weights []RarityWeight

	// EvolutionFood maps a current tier to the food needed to leave it.
	EvolutionFood map[int]int
	MaxTier       int

	// CombineSuccess maps an input rarity to the chance of upgrading.
	CombineSuccess map[Rarity]float64
	CombineInputs  int
}

// DefaultBalance returns the standard constants.
func DefaultBalance() Balance {
	return Balance{
		PullCost:       100,
		MultiPullCost:  900,
		MultiPullCount: 10,
		Weights: []RarityWeight{
			{Rarity: Legendary, Weight: 1},
			{Rarity: Epic, Weight: 9},
			{Rarity: Rare, Weight: 30},
			{Rarity: Common, Weight: 60},
		},
		EvolutionFood: map[int]int{1: 10, 2: 25},
		MaxTier:       3,
		CombineSuccess: map[Rarity]float64{
			Common: 0.50,
			Rare:   0.35,
			Epic:   0.25,
		},
		CombineInputs: 4,
	}
}

// RequiredFood returns the food needed to evolve out of tier.
func (b Balance) RequiredFood(tier int) int {
	return b.EvolutionFood[tier]
}

// Validate checks the constants are coherent.
func (b Balance) Validate() error {
	if b.PullCost <= 0 || b.MultiPullCost <= 0 || b.MultiPullCount <= 0 {
		return fmt.Errorf("pull costs and multi-pull count must be positive")
	}
	total := 0.0
	for _, w := range b.Weights {
		if w.Rarity.Level() < 0 || w.Weight < 0 {
			return fmt.Errorf("invalid rarity weight %+v", w)
		}
		total += w.Weight
	}
	if total <= 0 {
		return fmt.Errorf("rarity weights must sum to a positive value")
	}
	if b.MaxTier < 1 {
		return fmt.Errorf("max tier must be at least 1")
	}
	for tier := 1; tier < b.MaxTier; tier++ {
		if b.EvolutionFood[tier] <= 0 {
			return fmt.Errorf("missing evolution threshold for tier %d", tier)
		}
	}
	for r, p := range b.CombineSuccess {
		if p < 0 || p > 1 {
			return fmt.Errorf("combine chance for %s must be within [0,1]", r)
		}
	}
	if b.CombineInputs < 2 {
		return fmt.Errorf("combine needs at least 2 inputs")
	}
	return nil
}
