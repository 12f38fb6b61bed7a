package pet

import (
	"github.com/studypets/studypets-core/internal/domain/shared"
)

// Roller draws rarities and definitions from an injected random source.
type Roller struct {
	balance Balance
	rng     shared.Rand
}

// NewRoller creates a Roller.
func NewRoller(balance Balance, rng shared.Rand) *Roller {
	if rng == nil {
		rng = shared.SystemRand{}
	}
	return &Roller{balance: balance, rng: rng}
}

// RollRarity draws one uniform value and walks the cumulative thresholds
// (legendary < 1, epic < 10, rare < 40, common otherwise with the defaults).
func (r *Roller) RollRarity() Rarity {
	total := 0.0
	for _, w := range r.balance.Weights {
		total += w.Weight
	}

	roll := r.rng.Float64() * total
	cumulative := 0.0
	for _, w := range r.balance.Weights {
		cumulative += w.Weight
		if roll < cumulative {
			return w.Rarity
		}
	}
	return r.balance.Weights[len(r.balance.Weights)-1].Rarity
}

// RollUpgrade decides the combine result rarity for inputs of rarity from.
func (r *Roller) RollUpgrade(from Rarity) (Rarity, bool) {
	next, ok := from.Next()
	if !ok {
		return from, false
	}
	if r.rng.Float64() < r.balance.CombineSuccess[from] {
		return next, true
	}
	return from, false
}

// Pick selects a definition of the wanted rarity uniformly at random. When
// that rarity has no definitions it falls back to the nearest lower rarity,
// then to the nearest higher one. Returns shared.ErrEmptyCatalog when the
// catalog is empty.
func (r *Roller) Pick(catalog map[Rarity][]Definition, want Rarity) (Definition, error) {
	level := want.Level()
	for l := level; l >= 0; l-- {
		if defs := catalog[Rarities[l]]; len(defs) > 0 {
			return defs[r.rng.IntN(len(defs))], nil
		}
	}
	for l := level + 1; l < len(Rarities); l++ {
		if defs := catalog[Rarities[l]]; len(defs) > 0 {
			return defs[r.rng.IntN(len(defs))], nil
		}
	}
	return Definition{}, shared.ErrEmptyCatalog
}

// Draw rolls a rarity and picks a definition.
func (r *Roller) Draw(catalog map[Rarity][]Definition) (Definition, error) {
	return r.Pick(catalog, r.RollRarity())
}
