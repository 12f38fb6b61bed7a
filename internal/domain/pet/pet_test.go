package pet

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studypets/studypets-core/internal/domain/shared"
)

// scriptedRand replays fixed values.
type scriptedRand struct {
	floats []float64
	ints   []int
}

func (s *scriptedRand) Float64() float64 {
	v := s.floats[0]
	s.floats = s.floats[1:]
	return v
}

func (s *scriptedRand) IntN(n int) int {
	if len(s.ints) == 0 {
		return 0
	}
	v := s.ints[0] % n
	s.ints = s.ints[1:]
	return v
}

func catalog() map[Rarity][]Definition {
	return map[Rarity][]Definition{
		Common:    {{ID: "cat", Rarity: Common}, {ID: "dog", Rarity: Common}},
		Rare:      {{ID: "fox", Rarity: Rare}},
		Epic:      {{ID: "owl", Rarity: Epic}},
		Legendary: {{ID: "dragon", Rarity: Legendary}},
	}
}

func TestRollRarity_CumulativeThresholds(t *testing.T) {
	tests := []struct {
		draw float64
		want Rarity
	}{
		{0.0, Legendary},
		{0.0099, Legendary},
		{0.01, Epic},
		{0.0999, Epic},
		{0.10, Rare},
		{0.3999, Rare},
		{0.40, Common},
		{0.9999, Common},
	}

	for _, tt := range tests {
		r := NewRoller(DefaultBalance(), &scriptedRand{floats: []float64{tt.draw}})
		assert.Equal(t, tt.want, r.RollRarity(), "draw %v", tt.draw)
	}
}

func TestRollRarity_DistributionConformance(t *testing.T) {
	const pulls = 100000
	r := NewRoller(DefaultBalance(), shared.NewSeededRand(42, 1337))

	counts := map[Rarity]int{}
	for i := 0; i < pulls; i++ {
		counts[r.RollRarity()]++
	}

	expected := map[Rarity]float64{Common: 0.60, Rare: 0.30, Epic: 0.09, Legendary: 0.01}
	for rarity, p := range expected {
		got := float64(counts[rarity]) / pulls
		// five standard deviations of a binomial proportion
		tolerance := 5 * math.Sqrt(p*(1-p)/pulls)
		assert.InDelta(t, p, got, tolerance, "rarity %s", rarity)
	}
}

func TestPick_FallsBackWhenRarityEmpty(t *testing.T) {
	r := NewRoller(DefaultBalance(), &scriptedRand{})
	cat := map[Rarity][]Definition{Common: {{ID: "cat", Rarity: Common}}}

	def, err := r.Pick(cat, Legendary)
	require.NoError(t, err)
	assert.Equal(t, "cat", def.ID)

	cat = map[Rarity][]Definition{Epic: {{ID: "owl", Rarity: Epic}}}
	def, err = r.Pick(cat, Common)
	require.NoError(t, err)
	assert.Equal(t, "owl", def.ID)

	_, err = r.Pick(map[Rarity][]Definition{}, Common)
	assert.True(t, errors.Is(err, shared.ErrEmptyCatalog))
}

func TestPick_Uniform(t *testing.T) {
	r := NewRoller(DefaultBalance(), &scriptedRand{ints: []int{1}})
	def, err := r.Pick(catalog(), Common)
	require.NoError(t, err)
	assert.Equal(t, "dog", def.ID)
}

func TestRollUpgrade(t *testing.T) {
	r := NewRoller(DefaultBalance(), &scriptedRand{floats: []float64{0.49, 0.50, 0.30, 0.24}})

	got, ok := r.RollUpgrade(Common)
	assert.True(t, ok)
	assert.Equal(t, Rare, got)

	got, ok = r.RollUpgrade(Common)
	assert.False(t, ok)
	assert.Equal(t, Common, got)

	got, ok = r.RollUpgrade(Rare)
	assert.True(t, ok)
	assert.Equal(t, Epic, got)

	got, ok = r.RollUpgrade(Epic)
	assert.True(t, ok)
	assert.Equal(t, Legendary, got)

	got, ok = r.RollUpgrade(Legendary)
	assert.False(t, ok)
	assert.Equal(t, Legendary, got)
}

func TestEvolveCheck(t *testing.T) {
	b := DefaultBalance()

	next, err := b.EvolveCheck(&Owned{Tier: 1, FoodFed: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, next)

	_, err = b.EvolveCheck(&Owned{Tier: 2, FoodFed: 20})
	require.Error(t, err)
	assert.True(t, shared.IsInsufficient(err))
	de, ok := shared.AsDomainError(err)
	require.True(t, ok)
	assert.Equal(t, 20, de.Details["current"])
	assert.Equal(t, 25, de.Details["required"])
	assert.Contains(t, de.Message, "need 5 more")

	_, err = b.EvolveCheck(&Owned{Tier: 3})
	assert.True(t, errors.Is(err, shared.ErrPetMaxTier))
}

func TestFeedCheck(t *testing.T) {
	b := DefaultBalance()
	assert.NoError(t, b.FeedCheck(&Owned{Tier: 2}, 5))
	assert.True(t, shared.IsInvalidInput(b.FeedCheck(&Owned{Tier: 1}, 0)))
	assert.True(t, errors.Is(b.FeedCheck(&Owned{Tier: 3}, 1), shared.ErrPetMaxTier))
}

func input(id string, count int, rarity Rarity) CombineInput {
	return CombineInput{
		Owned:      &Owned{ID: id, Count: count, Tier: 1},
		Definition: &Definition{ID: "def-" + id, Rarity: rarity},
	}
}

func TestPlanCombine(t *testing.T) {
	b := DefaultBalance()

	t.Run("same id four times", func(t *testing.T) {
		plan, err := b.PlanCombine([]string{"a", "a", "a", "a"}, map[string]CombineInput{"a": input("a", 4, Common)})
		require.NoError(t, err)
		assert.Equal(t, Common, plan.Rarity)
		assert.Equal(t, map[string]int{"a": 4}, plan.Consume)
	})

	t.Run("mixed ids", func(t *testing.T) {
		plan, err := b.PlanCombine([]string{"a", "b", "a", "c"}, map[string]CombineInput{
			"a": input("a", 2, Rare), "b": input("b", 1, Rare), "c": input("c", 1, Rare),
		})
		require.NoError(t, err)
		assert.Equal(t, map[string]int{"a": 2, "b": 1, "c": 1}, plan.Consume)
	})

	t.Run("wrong count", func(t *testing.T) {
		_, err := b.PlanCombine([]string{"a", "a", "a"}, map[string]CombineInput{"a": input("a", 4, Common)})
		assert.True(t, errors.Is(err, shared.ErrInvalidPetCount))
	})

	t.Run("count does not cover repeats", func(t *testing.T) {
		_, err := b.PlanCombine([]string{"a", "a", "a", "b"}, map[string]CombineInput{
			"a": input("a", 2, Common), "b": input("b", 1, Common),
		})
		assert.True(t, errors.Is(err, shared.ErrInsufficientPetCount))
	})

	t.Run("mismatched rarities", func(t *testing.T) {
		_, err := b.PlanCombine([]string{"a", "a", "b", "b"}, map[string]CombineInput{
			"a": input("a", 2, Common), "b": input("b", 2, Epic),
		})
		assert.True(t, errors.Is(err, shared.ErrRarityMismatch))
	})

	t.Run("legendary rejected", func(t *testing.T) {
		_, err := b.PlanCombine([]string{"a", "a", "a", "a"}, map[string]CombineInput{"a": input("a", 1, Legendary)})
		assert.True(t, errors.Is(err, shared.ErrLegendaryCombine))
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := b.PlanCombine([]string{"a", "a", "a", "z"}, map[string]CombineInput{"a": input("a", 4, Common)})
		assert.True(t, shared.IsNotFound(err))
	})
}

func TestRarity(t *testing.T) {
	next, ok := Epic.Next()
	assert.True(t, ok)
	assert.Equal(t, Legendary, next)

	_, err := ParseRarity("mythic")
	assert.True(t, shared.IsInvalidInput(err))
	assert.NoError(t, DefaultBalance().Validate())
}
