package economy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studypets/studypets-core/internal/domain/shared"
)

func TestParseTier(t *testing.T) {
	tier, err := ParseTier(" Plus ")
	require.NoError(t, err)
	assert.Equal(t, TierPlus, tier)

	tier, err = ParseTier("")
	require.NoError(t, err)
	assert.Equal(t, TierCore, tier)

	_, err = ParseTier("gold")
	assert.True(t, shared.IsInvalidInput(err))
}

func TestTierLimits_CheckQuota(t *testing.T) {
	limits := DefaultTierLimits()

	assert.NoError(t, limits.CheckQuota(TierCore, 2))

	err := limits.CheckQuota(TierCore, 3)
	require.Error(t, err)
	assert.True(t, shared.IsInsufficient(err))
	assert.True(t, errors.Is(err, shared.ErrDailySessionLimit))
	assert.Contains(t, err.Error(), "Daily session limit reached (3 of 3)")

	// pro is unlimited
	assert.NoError(t, limits.CheckQuota(TierPro, 500))

	// unknown tiers fall back to the default allowance
	assert.Error(t, limits.CheckQuota(Tier("legacy"), 3))
}

func TestTierLimits_Validate(t *testing.T) {
	assert.NoError(t, DefaultTierLimits().Validate())
	assert.Error(t, TierLimits{TierCore: 3}.Validate())
	assert.Error(t, TierLimits{TierCore: -1, TierPlus: 1, TierPro: 0}.Validate())
}

type stubWallets struct {
	Repository
	wallet *Wallet
	err    error
}

func (s stubWallets) Get(context.Context, shared.StudentID) (*Wallet, error) {
	return s.wallet, s.err
}

func TestWalletTierResolver(t *testing.T) {
	ctx := context.Background()

	r := WalletTierResolver{Wallets: stubWallets{err: shared.ErrWalletNotFound}}
	tier, err := r.ActiveTier(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, TierCore, tier)

	r = WalletTierResolver{Wallets: stubWallets{wallet: &Wallet{Tier: TierPro}}}
	tier, err = r.ActiveTier(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, TierPro, tier)
}

func TestCredit_Validate(t *testing.T) {
	assert.NoError(t, Credit{XP: 1}.Validate())
	assert.True(t, Credit{}.IsZero())
	assert.True(t, shared.IsInvalidInput(Credit{Coins: -1}.Validate()))
}

func TestFoodExchange_Cost(t *testing.T) {
	ex := FoodExchange{PriceCoins: DefaultFoodPriceCoins}

	cost, err := ex.Cost(4)
	require.NoError(t, err)
	assert.Equal(t, 20, cost)

	_, err = ex.Cost(0)
	assert.True(t, shared.IsInvalidInput(err))
}

func TestSpinTable_RollStaysOnWheel(t *testing.T) {
	table := DefaultSpinTable()
	require.NoError(t, table.Validate())

	rng := shared.NewSeededRand(7, 11)
	seen := map[int]int{}
	for i := 0; i < 10000; i++ {
		coins := table.Roll(rng)
		require.NoError(t, table.Check(coins))
		seen[coins]++
	}

	assert.Len(t, seen, len(table))
	assert.Greater(t, seen[5], seen[100])
}

func TestSpinTable_Check(t *testing.T) {
	err := DefaultSpinTable().Check(7)
	assert.True(t, shared.IsInvalidInput(err))
	assert.True(t, errors.Is(err, shared.ErrInvalidSpinReward))
}
