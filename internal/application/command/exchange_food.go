package command

import (
	"context"
	"fmt"

	"github.com/studypets/studypets-core/internal/domain/economy"
	"github.com/studypets/studypets-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// EXCHANGE COINS FOR FOOD COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// ExchangeFoodCommand buys food units with coins.
type ExchangeFoodCommand struct {
	StudentID shared.StudentID
	Food      int
}

// ExchangeFoodResult reports balances after the exchange.
type ExchangeFoodResult struct {
	FoodBought   int `json:"food_bought"`
	CoinsSpent   int `json:"coins_spent"`
	CoinsBalance int `json:"coins_balance"`
	FoodBalance  int `json:"food_balance"`
}

// ExchangeFoodHandler handles ExchangeFoodCommand.
type ExchangeFoodHandler struct {
	deps     Deps
	exchange economy.FoodExchange
}

// NewExchangeFoodHandler creates a new ExchangeFoodHandler.
func NewExchangeFoodHandler(deps Deps, exchange economy.FoodExchange) *ExchangeFoodHandler {
	if exchange.PriceCoins <= 0 {
		exchange.PriceCoins = economy.DefaultFoodPriceCoins
	}
	return &ExchangeFoodHandler{deps: deps.withDefaults(), exchange: exchange}
}

// Handle executes the exchange command.
func (h *ExchangeFoodHandler) Handle(ctx context.Context, cmd ExchangeFoodCommand) (*ExchangeFoodResult, error) {
	cost, err := h.exchange.Cost(cmd.Food)
	if err != nil {
		h.deps.logRejected("exchange_food", cmd.StudentID, err)
		return nil, err
	}

	var result *ExchangeFoodResult
	err = h.deps.inTx(ctx, "exchange_food", func(ctx context.Context) error {
		if _, err := h.deps.Wallets.GetOrCreate(ctx, cmd.StudentID); err != nil {
			return fmt.Errorf("load wallet: %w", err)
		}
		if err := h.deps.Wallets.Spend(ctx, cmd.StudentID, cost, 0); err != nil {
			return err
		}
		if err := h.deps.Wallets.Credit(ctx, cmd.StudentID, economy.Credit{Food: cmd.Food}); err != nil {
			return fmt.Errorf("credit food: %w", err)
		}
		wallet, err := h.deps.Wallets.Get(ctx, cmd.StudentID)
		if err != nil {
			return fmt.Errorf("reload wallet: %w", err)
		}
		result = &ExchangeFoodResult{
			FoodBought:   cmd.Food,
			CoinsSpent:   cost,
			CoinsBalance: wallet.Coins,
			FoodBalance:  wallet.Food,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
