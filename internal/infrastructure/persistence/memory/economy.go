package memory

import (
	"context"
	"sort"

	"github.com/studypets/studypets-core/internal/domain/daily"
	"github.com/studypets/studypets-core/internal/domain/economy"
	"github.com/studypets/studypets-core/internal/domain/shared"
	"github.com/studypets/studypets-core/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// WALLETS
// ══════════════════════════════════════════════════════════════════════════════

type walletRepo struct {
	db *DB
}

func (r *walletRepo) getOrCreate(st *state, studentID shared.StudentID) economy.Wallet {
	w, ok := st.wallets[studentID]
	if !ok {
		w = *economy.NewWallet(studentID, r.db.now())
		st.wallets[studentID] = w
	}
	return w
}

func (r *walletRepo) GetOrCreate(ctx context.Context, studentID shared.StudentID) (*economy.Wallet, error) {
	var out economy.Wallet
	err := r.db.do(ctx, func(st *state) error {
		out = r.getOrCreate(st, studentID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *walletRepo) Get(ctx context.Context, studentID shared.StudentID) (*economy.Wallet, error) {
	var out economy.Wallet
	err := r.db.do(ctx, func(st *state) error {
		w, ok := st.wallets[studentID]
		if !ok {
			return shared.ErrWalletNotFound
		}
		out = w
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Lock is GetOrCreate; the store mutex already serializes transactions.
func (r *walletRepo) Lock(ctx context.Context, studentID shared.StudentID) (*economy.Wallet, error) {
	return r.GetOrCreate(ctx, studentID)
}

func (r *walletRepo) update(ctx context.Context, studentID shared.StudentID, fn func(w *economy.Wallet) error) error {
	return r.db.do(ctx, func(st *state) error {
		w, ok := st.wallets[studentID]
		if !ok {
			return shared.ErrWalletNotFound
		}
		if err := fn(&w); err != nil {
			return err
		}
		w.UpdatedAt = r.db.now()
		st.wallets[studentID] = w
		return nil
	})
}

func (r *walletRepo) Credit(ctx context.Context, studentID shared.StudentID, c economy.Credit) error {
	if err := c.Validate(); err != nil {
		return err
	}
	return r.update(ctx, studentID, func(w *economy.Wallet) error {
		w.XP += c.XP
		w.Coins += c.Coins
		w.Food += c.Food
		return nil
	})
}

func (r *walletRepo) Spend(ctx context.Context, studentID shared.StudentID, coins, food int) error {
	if err := economy.ValidateSpend(coins, food); err != nil {
		return err
	}
	return r.update(ctx, studentID, func(w *economy.Wallet) error {
		if w.Coins < coins {
			return shared.ErrInsufficientCoins.WithDetails(map[string]any{"required": coins, "available": w.Coins})
		}
		if w.Food < food {
			return shared.ErrInsufficientFood.WithDetails(map[string]any{"required": food, "available": w.Food})
		}
		w.Coins -= coins
		w.Food -= food
		return nil
	})
}

func (r *walletRepo) SetStreak(ctx context.Context, studentID shared.StudentID, streak int) error {
	return r.update(ctx, studentID, func(w *economy.Wallet) error {
		w.CurrentStreak = streak
		return nil
	})
}

func (r *walletRepo) SetTier(ctx context.Context, studentID shared.StudentID, tier economy.Tier) error {
	return r.db.do(ctx, func(st *state) error {
		w := r.getOrCreate(st, studentID)
		w.Tier = tier
		w.UpdatedAt = r.db.now()
		st.wallets[studentID] = w
		return nil
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// DAILY STATUS
// ══════════════════════════════════════════════════════════════════════════════

type dailyRepo struct {
	db *DB
}

func (r *dailyRepo) Get(ctx context.Context, studentID shared.StudentID, date timeutil.Date) (*daily.Status, error) {
	var out daily.Status
	err := r.db.do(ctx, func(st *state) error {
		s, ok := st.days[dayKey{studentID, date}]
		if !ok {
			return shared.ErrDailyStatusMissing
		}
		out = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// upsert applies fn to the day's row, creating it first when missing.
func (r *dailyRepo) upsert(ctx context.Context, studentID shared.StudentID, date timeutil.Date, fn func(s *daily.Status) error) error {
	return r.db.do(ctx, func(st *state) error {
		key := dayKey{studentID, date}
		now := r.db.now()
		s, ok := st.days[key]
		if !ok {
			s = *daily.Empty(studentID, date)
			s.CreatedAt = now
		}
		if err := fn(&s); err != nil {
			return err
		}
		s.UpdatedAt = now
		st.days[key] = s
		return nil
	})
}

func (r *dailyRepo) MarkPracticed(ctx context.Context, studentID shared.StudentID, date timeutil.Date) error {
	return r.upsert(ctx, studentID, date, func(s *daily.Status) error {
		s.HasPracticed = true
		return nil
	})
}

func (r *dailyRepo) SetMood(ctx context.Context, studentID shared.StudentID, date timeutil.Date, mood daily.Mood) error {
	return r.upsert(ctx, studentID, date, func(s *daily.Status) error {
		m := mood
		s.Mood = &m
		return nil
	})
}

func (r *dailyRepo) ClaimSpin(ctx context.Context, studentID shared.StudentID, date timeutil.Date, reward int) error {
	return r.upsert(ctx, studentID, date, func(s *daily.Status) error {
		if s.HasSpun {
			return shared.ErrSpinAlreadyUsed
		}
		v := reward
		s.HasSpun = true
		s.SpinReward = &v
		return nil
	})
}

func (r *dailyRepo) PracticedDates(ctx context.Context, studentID shared.StudentID, onOrBefore timeutil.Date) ([]timeutil.Date, error) {
	var out []timeutil.Date
	err := r.db.do(ctx, func(st *state) error {
		for k, s := range st.days {
			if k.student == studentID && s.HasPracticed && !k.date.After(onOrBefore) {
				out = append(out, k.date)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].After(out[j]) })
	return out, err
}

func (r *dailyRepo) Range(ctx context.Context, studentID shared.StudentID, from, to timeutil.Date) ([]daily.Status, error) {
	var out []daily.Status
	err := r.db.do(ctx, func(st *state) error {
		for k, s := range st.days {
			if k.student == studentID && !k.date.Before(from) && !k.date.After(to) {
				out = append(out, s)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, err
}
