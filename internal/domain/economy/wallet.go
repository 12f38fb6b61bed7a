// Package economy holds the Student Economy Record: xp, coins, food, the
// cached streak and the subscription tier. Balances change only through
// relative credits and guarded spends performed by the repository.
package economy

import (
	"context"
	"time"

	"github.com/studypets/studypets-core/internal/domain/shared"
)

// Wallet is the per-student economy record.
type Wallet struct {
	StudentID     shared.StudentID
	XP            int
	Coins         int
	Food          int
	CurrentStreak int
	Tier          Tier
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewWallet returns an empty record on the default tier.
func NewWallet(studentID shared.StudentID, now time.Time) *Wallet {
	return &Wallet{
		StudentID: studentID,
		Tier:      DefaultTier,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// CanAfford reports whether the balances cover the given spend.
func (w *Wallet) CanAfford(coins, food int) bool {
	return w.Coins >= coins && w.Food >= food
}

// Credit is a non-negative balance increase.
type Credit struct {
	XP    int
	Coins int
	Food  int
}

// Validate rejects negative deltas; credits never decrease a balance.
func (c Credit) Validate() error {
	if c.XP < 0 || c.Coins < 0 || c.Food < 0 {
		return shared.ErrNegativeAmount
	}
	return nil
}

// IsZero reports whether the credit changes nothing.
func (c Credit) IsZero() bool {
	return c.XP == 0 && c.Coins == 0 && c.Food == 0
}

// Repository persists wallets. Implementations must perform Credit and Spend
// as single atomic relative updates; Spend must check and deduct in the same
// statement so concurrent spends cannot drive a balance negative.
type Repository interface {
	// GetOrCreate returns the wallet, creating an empty one on first touch.
	GetOrCreate(ctx context.Context, studentID shared.StudentID) (*Wallet, error)

	// Get returns shared.ErrWalletNotFound when the student has no record.
	Get(ctx context.Context, studentID shared.StudentID) (*Wallet, error)

	// Lock is GetOrCreate plus a row lock held until the surrounding
	// transaction ends. It serializes per-student read-then-write sequences.
	Lock(ctx context.Context, studentID shared.StudentID) (*Wallet, error)

	// Credit adds the deltas.
	Credit(ctx context.Context, studentID shared.StudentID, c Credit) error

	// Spend deducts coins and food together or not at all, returning
	// shared.ErrInsufficientCoins or shared.ErrInsufficientFood.
	Spend(ctx context.Context, studentID shared.StudentID, coins, food int) error

	// SetStreak stores the recomputed streak.
	SetStreak(ctx context.Context, studentID shared.StudentID, streak int) error

	// SetTier stores the tier synced from the billing system.
	SetTier(ctx context.Context, studentID shared.StudentID, tier Tier) error
}

// ValidateSpend checks a spend request before it reaches storage.
func ValidateSpend(coins, food int) error {
	if coins < 0 || food < 0 || (coins == 0 && food == 0) {
		return shared.ErrNegativeAmount
	}
	return nil
}
