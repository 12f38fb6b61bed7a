package command

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studypets/studypets-core/internal/domain/economy"
	"github.com/studypets/studypets-core/internal/domain/pet"
	"github.com/studypets/studypets-core/internal/domain/shared"
)

func totalUnits(t *testing.T, f *fixture, student shared.StudentID) int {
	t.Helper()
	owned, err := f.deps.Pets.ListByStudent(f.ctx, student)
	require.NoError(t, err)
	n := 0
	for _, o := range owned {
		n += o.Count
	}
	return n
}

func TestPull_SingleAndMulti(t *testing.T) {
	f := newFixture(t)
	f.credit("s1", economy.Credit{Coins: 1000})
	pull := NewPullHandler(f.deps, pet.DefaultBalance())

	res, err := pull.Handle(f.ctx, PullCommand{StudentID: "s1"})
	require.NoError(t, err)
	require.Len(t, res.Pets, 1)
	assert.Equal(t, 100, res.CoinsSpent)
	assert.Equal(t, 900, res.CoinsBalance)
	assert.True(t, res.Pets[0].IsNew)

	res, err = pull.Handle(f.ctx, PullCommand{StudentID: "s1", Multi: true})
	require.NoError(t, err)
	assert.Len(t, res.Pets, 10)
	assert.Equal(t, 900, res.CoinsSpent)
	assert.Zero(t, res.CoinsBalance)

	assert.Equal(t, 11, totalUnits(t, f, "s1"))
	assert.Len(t, f.events.ofType(shared.EventPetAcquired), 11)
}

func TestPull_InsufficientCoinsChangesNothing(t *testing.T) {
	f := newFixture(t)
	f.credit("s1", economy.Credit{Coins: 899})

	_, err := NewPullHandler(f.deps, pet.DefaultBalance()).Handle(f.ctx, PullCommand{StudentID: "s1", Multi: true})
	require.ErrorIs(t, err, shared.ErrInsufficientCoins)

	assert.Equal(t, 899, f.wallet("s1").Coins)
	assert.Zero(t, totalUnits(t, f, "s1"))
	assert.Empty(t, f.events.ofType(shared.EventPetAcquired))
}

func TestPull_ConcurrentNeverOverspends(t *testing.T) {
	f := newFixture(t)
	f.credit("s1", economy.Credit{Coins: 250})
	pull := NewPullHandler(f.deps, pet.DefaultBalance())

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		rejected  int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := pull.Handle(f.ctx, PullCommand{StudentID: "s1"})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
			} else if shared.IsInsufficient(err) {
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 2, successes)
	assert.Equal(t, 3, rejected)
	assert.Equal(t, 50, f.wallet("s1").Coins)
	assert.Equal(t, 2, totalUnits(t, f, "s1"))
}

func TestFeedAndEvolve(t *testing.T) {
	f := newFixture(t)
	f.credit("s1", economy.Credit{Food: 40})
	owned, err := f.deps.Pets.Grant(f.ctx, "s1", "pup", f.clock.Now())
	require.NoError(t, err)

	h := NewPetEvolutionHandler(f.deps, pet.DefaultBalance())

	_, err = h.Evolve(f.ctx, EvolvePetCommand{StudentID: "s1", OwnedPetID: owned.ID})
	require.ErrorIs(t, err, shared.ErrFoodThresholdNotMet)

	fed, err := h.Feed(f.ctx, FeedPetCommand{StudentID: "s1", OwnedPetID: owned.ID, Food: 10})
	require.NoError(t, err)
	assert.Equal(t, 10, fed.FoodFed)
	assert.Equal(t, 10, fed.Required)
	assert.True(t, fed.ReadyToEvolve)
	assert.Equal(t, 30, fed.FoodBalance)

	evolved, err := h.Evolve(f.ctx, EvolvePetCommand{StudentID: "s1", OwnedPetID: owned.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, evolved.PreviousTier)
	assert.Equal(t, 2, evolved.Tier)
	assert.False(t, evolved.IsMaxTier)

	fed, err = h.Feed(f.ctx, FeedPetCommand{StudentID: "s1", OwnedPetID: owned.ID, Food: 30})
	require.NoError(t, err)
	assert.Equal(t, 30, fed.FoodFed)
	assert.Equal(t, 25, fed.Required)
	assert.Zero(t, fed.FoodBalance)

	evolved, err = h.Evolve(f.ctx, EvolvePetCommand{StudentID: "s1", OwnedPetID: owned.ID})
	require.NoError(t, err)
	assert.Equal(t, 3, evolved.Tier)
	assert.True(t, evolved.IsMaxTier)

	_, err = h.Evolve(f.ctx, EvolvePetCommand{StudentID: "s1", OwnedPetID: owned.ID})
	assert.ErrorIs(t, err, shared.ErrPetMaxTier)
}

func TestFeed_Rejections(t *testing.T) {
	f := newFixture(t)
	f.credit("s1", economy.Credit{Food: 3})
	owned, err := f.deps.Pets.Grant(f.ctx, "s1", "pup", f.clock.Now())
	require.NoError(t, err)

	h := NewPetEvolutionHandler(f.deps, pet.DefaultBalance())

	_, err = h.Feed(f.ctx, FeedPetCommand{StudentID: "s1", OwnedPetID: owned.ID, Food: 0})
	assert.True(t, shared.IsInvalidInput(err))

	_, err = h.Feed(f.ctx, FeedPetCommand{StudentID: "s1", OwnedPetID: owned.ID, Food: 5})
	assert.ErrorIs(t, err, shared.ErrInsufficientFood)

	_, err = h.Feed(f.ctx, FeedPetCommand{StudentID: "s2", OwnedPetID: owned.ID, Food: 1})
	assert.ErrorIs(t, err, shared.ErrPetNotFound)

	got, err := f.deps.Pets.Get(f.ctx, owned.ID)
	require.NoError(t, err)
	assert.Zero(t, got.FoodFed)
	assert.Equal(t, 3, f.wallet("s1").Food)
}

func TestCombine_UpgradeConservesUnits(t *testing.T) {
	f := newFixture(t)
	var stack *pet.Owned
	for i := 0; i < 5; i++ {
		var err error
		stack, err = f.deps.Pets.Grant(f.ctx, "s1", "pup", f.clock.Now())
		require.NoError(t, err)
	}
	f.deps.Rand = &scriptedRand{floats: []float64{0.10}}

	res, err := NewCombinePetsHandler(f.deps, pet.DefaultBalance()).Handle(f.ctx, CombinePetsCommand{
		StudentID:   "s1",
		OwnedPetIDs: []string{stack.ID, stack.ID, stack.ID, stack.ID},
	})
	require.NoError(t, err)
	assert.True(t, res.Upgraded)
	assert.Equal(t, pet.Common, res.InputRarity)
	assert.Equal(t, pet.Rare, res.ResultRarity)
	assert.Equal(t, "owl", res.PetID)
	assert.Equal(t, 4, res.UnitsConsumed)

	left, err := f.deps.Pets.Get(f.ctx, stack.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, left.Count)
	assert.Equal(t, 2, totalUnits(t, f, "s1"))
}

func TestCombine_FailedUpgradeKeepsRarity(t *testing.T) {
	f := newFixture(t)
	pup, err := f.deps.Pets.Grant(f.ctx, "s1", "pup", f.clock.Now())
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err = f.deps.Pets.Grant(f.ctx, "s1", "pup", f.clock.Now())
		require.NoError(t, err)
	}
	kit, err := f.deps.Pets.Grant(f.ctx, "s1", "kit", f.clock.Now())
	require.NoError(t, err)
	f.deps.Rand = &scriptedRand{floats: []float64{0.99}, ints: []int{0}}

	res, err := NewCombinePetsHandler(f.deps, pet.DefaultBalance()).Handle(f.ctx, CombinePetsCommand{
		StudentID:   "s1",
		OwnedPetIDs: []string{pup.ID, kit.ID, pup.ID, pup.ID},
	})
	require.NoError(t, err)
	assert.False(t, res.Upgraded)
	assert.Equal(t, pet.Common, res.ResultRarity)
	assert.Equal(t, "kit", res.PetID)

	// Both input stacks were emptied and removed; only the result remains.
	_, err = f.deps.Pets.Get(f.ctx, pup.ID)
	assert.ErrorIs(t, err, shared.ErrPetNotFound)
	assert.Equal(t, 1, totalUnits(t, f, "s1"))
}

func TestCombine_Rejections(t *testing.T) {
	f := newFixture(t)
	pup, err := f.deps.Pets.Grant(f.ctx, "s1", "pup", f.clock.Now())
	require.NoError(t, err)
	owl, err := f.deps.Pets.Grant(f.ctx, "s1", "owl", f.clock.Now())
	require.NoError(t, err)
	drake, err := f.deps.Pets.Grant(f.ctx, "s1", "drake", f.clock.Now())
	require.NoError(t, err)

	h := NewCombinePetsHandler(f.deps, pet.DefaultBalance())
	combine := func(student shared.StudentID, ids ...string) error {
		_, err := h.Handle(f.ctx, CombinePetsCommand{StudentID: student, OwnedPetIDs: ids})
		return err
	}

	assert.ErrorIs(t, combine("s1", pup.ID, pup.ID, pup.ID), shared.ErrInvalidPetCount)
	assert.ErrorIs(t, combine("s1", pup.ID, pup.ID, pup.ID, pup.ID), shared.ErrInsufficientPetCount)
	assert.ErrorIs(t, combine("s1", pup.ID, owl.ID, owl.ID, owl.ID), shared.ErrRarityMismatch)
	assert.ErrorIs(t, combine("s1", drake.ID, drake.ID, drake.ID, drake.ID), shared.ErrLegendaryCombine)
	assert.ErrorIs(t, combine("s2", pup.ID, pup.ID, pup.ID, pup.ID), shared.ErrPetNotFound)

	assert.Equal(t, 3, totalUnits(t, f, "s1"))
}

func TestExchangeFood(t *testing.T) {
	f := newFixture(t)
	f.credit("s1", economy.Credit{Coins: 60})
	h := NewExchangeFoodHandler(f.deps, economy.FoodExchange{})

	res, err := h.Handle(f.ctx, ExchangeFoodCommand{StudentID: "s1", Food: 10})
	require.NoError(t, err)
	assert.Equal(t, 50, res.CoinsSpent)
	assert.Equal(t, 10, res.CoinsBalance)
	assert.Equal(t, 10, res.FoodBalance)

	_, err = h.Handle(f.ctx, ExchangeFoodCommand{StudentID: "s1", Food: 3})
	assert.ErrorIs(t, err, shared.ErrInsufficientCoins)

	_, err = h.Handle(f.ctx, ExchangeFoodCommand{StudentID: "s1", Food: -1})
	assert.True(t, shared.IsInvalidInput(err))

	w := f.wallet("s1")
	assert.Equal(t, 10, w.Coins)
	assert.Equal(t, 10, w.Food)
}
