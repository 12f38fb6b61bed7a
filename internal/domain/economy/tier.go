package economy

import (
	"context"
	"fmt"
	"strings"

	"github.com/studypets/studypets-core/internal/domain/shared"
)

// Tier is a subscription tier.
type Tier string

const (
	TierCore Tier = "core"
	TierPlus Tier = "plus"
	TierPro  Tier = "pro"
)

// DefaultTier applies when no subscription is active.
const DefaultTier = TierCore

// IsValid checks if the tier is known.
func (t Tier) IsValid() bool {
	switch t {
	case TierCore, TierPlus, TierPro:
		return true
	}
	return false
}

// ParseTier parses a tier name; an empty string yields DefaultTier.
func ParseTier(s string) (Tier, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DefaultTier, nil
	}
	t := Tier(s)
	if !t.IsValid() {
		return "", shared.ErrInvalidTier.WithMessage("unknown subscription tier %q", s)
	}
	return t, nil
}

// TierLimits maps a tier to its sessions-per-day allowance. Zero means unlimited.
type TierLimits map[Tier]int

// DefaultTierLimits returns the standard allowances.
func DefaultTierLimits() TierLimits {
	return TierLimits{
		TierCore: 3,
		TierPlus: 10,
		TierPro:  0,
	}
}

// SessionsPerDay returns the limit for t, falling back to the default tier.
func (l TierLimits) SessionsPerDay(t Tier) int {
	if n, ok := l[t]; ok {
		return n
	}
	return l[DefaultTier]
}

// CheckQuota returns shared.ErrDailySessionLimit when used sessions already
// reach the tier's limit.
func (l TierLimits) CheckQuota(t Tier, used int) error {
	limit := l.SessionsPerDay(t)
	if limit > 0 && used >= limit {
		return shared.ErrDailySessionLimit.
			WithMessage("Daily session limit reached (%d of %d)", used, limit).
			WithDetails(map[string]any{"used": used, "limit": limit, "tier": string(t)})
	}
	return nil
}

// Validate checks every tier has a non-negative allowance.
func (l TierLimits) Validate() error {
	for _, t := range []Tier{TierCore, TierPlus, TierPro} {
		n, ok := l[t]
		if !ok {
			return fmt.Errorf("missing session limit for tier %s", t)
		}
		if n < 0 {
			return fmt.Errorf("session limit for tier %s cannot be negative", t)
		}
	}
	return nil
}

// SubscriptionResolver answers which tier is active for a student.
type SubscriptionResolver interface {
	ActiveTier(ctx context.Context, studentID shared.StudentID) (Tier, error)
}

// WalletTierResolver reads the tier synced onto the wallet.
type WalletTierResolver struct {
	Wallets Repository
}

// ActiveTier implements SubscriptionResolver. Missing wallets resolve to DefaultTier.
func (r WalletTierResolver) ActiveTier(ctx context.Context, studentID shared.StudentID) (Tier, error) {
	w, err := r.Wallets.Get(ctx, studentID)
	if err != nil {
		if shared.IsNotFound(err) {
			return DefaultTier, nil
		}
		return "", err
	}
	if !w.Tier.IsValid() {
		return DefaultTier, nil
	}
	return w.Tier, nil
}
