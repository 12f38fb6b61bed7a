package memory

import (
	"context"
	"sort"
	"time"

	"github.com/studypets/studypets-core/internal/domain/access"
	"github.com/studypets/studypets-core/internal/domain/leaderboard"
	"github.com/studypets/studypets-core/internal/domain/shared"
	"github.com/studypets/studypets-core/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD AND REWARDS
// ══════════════════════════════════════════════════════════════════════════════

type leaderboardRepo struct {
	db *DB
}

func (r *leaderboardRepo) WeeklyXP(ctx context.Context, from, to time.Time) ([]leaderboard.WeeklyXP, error) {
	totals := make(map[shared.StudentID]int)
	names := make(map[shared.StudentID]string)
	err := r.db.do(ctx, func(st *state) error {
		for _, s := range st.sessions {
			if s.CompletedAt == nil || s.XPEarned == nil {
				continue
			}
			if s.CompletedAt.Before(from) || !s.CompletedAt.Before(to) {
				continue
			}
			totals[s.StudentID] += *s.XPEarned
			name, ok := st.profiles[s.StudentID]
			if !ok {
				name = s.StudentID.String()
			}
			names[s.StudentID] = name
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]leaderboard.WeeklyXP, 0, len(totals))
	for id, xp := range totals {
		out = append(out, leaderboard.WeeklyXP{StudentID: id, DisplayName: names[id], XP: xp})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentID < out[j].StudentID })
	return out, nil
}

// LockWeek is a no-op; the store mutex already serializes transactions.
func (r *leaderboardRepo) LockWeek(ctx context.Context, _ timeutil.Date) error {
	return ctx.Err()
}

func (r *leaderboardRepo) HasRewards(ctx context.Context, week timeutil.Date) (bool, error) {
	found := false
	err := r.db.do(ctx, func(st *state) error {
		for _, rw := range st.rewards {
			if rw.WeekStart == week {
				found = true
				return nil
			}
		}
		return nil
	})
	return found, err
}

func (r *leaderboardRepo) InsertReward(ctx context.Context, rw *leaderboard.Reward) error {
	return r.db.do(ctx, func(st *state) error {
		for _, existing := range st.rewards {
			if existing.WeekStart == rw.WeekStart && existing.StudentID == rw.StudentID {
				return shared.ErrWeekAlreadyDistributed.WithDetails(map[string]any{"week_start": rw.WeekStart.String()})
			}
		}
		st.rewards[rw.ID] = *rw
		return nil
	})
}

func (r *leaderboardRepo) ListRewards(ctx context.Context, week timeutil.Date) ([]leaderboard.Reward, error) {
	var out []leaderboard.Reward
	err := r.db.do(ctx, func(st *state) error {
		for _, rw := range st.rewards {
			if rw.WeekStart == week {
				out = append(out, rw)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rank != out[j].Rank {
			return out[i].Rank < out[j].Rank
		}
		return out[i].StudentID < out[j].StudentID
	})
	return out, err
}

func (r *leaderboardRepo) UnseenRewards(ctx context.Context, studentID shared.StudentID) ([]leaderboard.Reward, error) {
	var out []leaderboard.Reward
	err := r.db.do(ctx, func(st *state) error {
		for _, rw := range st.rewards {
			if rw.StudentID == studentID && rw.SeenAt == nil {
				out = append(out, rw)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].WeekStart.After(out[j].WeekStart) })
	return out, err
}

func (r *leaderboardRepo) MarkSeen(ctx context.Context, studentID shared.StudentID, rewardID string, at time.Time) (*leaderboard.Reward, error) {
	var out leaderboard.Reward
	err := r.db.do(ctx, func(st *state) error {
		rw, ok := st.rewards[rewardID]
		if !ok || rw.StudentID != studentID {
			return shared.ErrRewardNotFound
		}
		if rw.SeenAt == nil {
			seen := at
			rw.SeenAt = &seen
			st.rewards[rewardID] = rw
		}
		out = rw
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ACCESS
// ══════════════════════════════════════════════════════════════════════════════

type linkRepo struct {
	db *DB
}

func (r *linkRepo) IsLinked(ctx context.Context, parentID string, studentID shared.StudentID) (bool, error) {
	linked := false
	err := r.db.do(ctx, func(st *state) error {
		_, linked = st.links[parentID][studentID]
		return nil
	})
	return linked, err
}

func (r *linkRepo) ChildrenOf(ctx context.Context, parentID string) ([]shared.StudentID, error) {
	var out []shared.StudentID
	err := r.db.do(ctx, func(st *state) error {
		for id := range st.links[parentID] {
			out = append(out, id)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, err
}

type keyRepo struct {
	db *DB
}

func (r *keyRepo) CreateKey(ctx context.Context, k *access.IntegrationKey) error {
	return r.db.do(ctx, func(st *state) error {
		if _, exists := st.keys[k.ID]; exists {
			return shared.NewDomainError("access", "CreateKey", shared.ErrConflict, "key_exists", "integration key already exists")
		}
		st.keys[k.ID] = *k
		return nil
	})
}

func (r *keyRepo) GetKey(ctx context.Context, id string) (*access.IntegrationKey, error) {
	var out access.IntegrationKey
	err := r.db.do(ctx, func(st *state) error {
		k, ok := st.keys[id]
		if !ok {
			return shared.ErrKeyNotFound
		}
		out = k
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *keyRepo) RevokeKey(ctx context.Context, id string, at time.Time) error {
	return r.db.do(ctx, func(st *state) error {
		k, ok := st.keys[id]
		if !ok {
			return shared.ErrKeyNotFound
		}
		if k.RevokedAt == nil {
			revoked := at
			k.RevokedAt = &revoked
			st.keys[id] = k
		}
		return nil
	})
}
