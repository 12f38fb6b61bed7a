// Package leaderboard ranks students by weekly XP and plans the weekly coin payout.
//
// Weeks run from Monday 00:00 to the next Monday 00:00 in the platform
// timezone. Ranking is dense: equal XP shares a rank and no rank is skipped.
package leaderboard

import (
	"sort"
	"time"

	"github.com/studypets/studypets-core/internal/domain/shared"
	"github.com/studypets/studypets-core/pkg/timeutil"
)

// WeeklyXP is one student's XP from sessions completed in the week.
type WeeklyXP struct {
	StudentID   shared.StudentID
	DisplayName string
	XP          int
}

// Entry is one ranked row. It carries only aggregated, non-sensitive data.
type Entry struct {
	Rank        int              `json:"rank"`
	StudentID   shared.StudentID `json:"student_id"`
	DisplayName string           `json:"display_name"`
	WeeklyXP    int              `json:"weekly_xp"`
	Streak      int              `json:"streak"`
}

// DenseRank sorts by XP descending and assigns dense ranks. Students with no
// XP are dropped. Ties are ordered by display name, then id, for stable output.
func DenseRank(totals []WeeklyXP) []Entry {
	rows := make([]WeeklyXP, 0, len(totals))
	for _, t := range totals {
		if t.XP > 0 {
			rows = append(rows, t)
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].XP != rows[j].XP {
			return rows[i].XP > rows[j].XP
		}
		if rows[i].DisplayName != rows[j].DisplayName {
			return rows[i].DisplayName < rows[j].DisplayName
		}
		return rows[i].StudentID < rows[j].StudentID
	})

	entries := make([]Entry, 0, len(rows))
	rank := 0
	for i, row := range rows {
		if i == 0 || row.XP != rows[i-1].XP {
			rank++
		}
		entries = append(entries, Entry{
			Rank:        rank,
			StudentID:   row.StudentID,
			DisplayName: row.DisplayName,
			WeeklyXP:    row.XP,
		})
	}
	return entries
}

// ══════════════════════════════════════════════════════════════════════════════
// REWARDS
// ══════════════════════════════════════════════════════════════════════════════

// RewardTable holds coin amounts for ranks 1..len(table).
type RewardTable []int

// DefaultRewardTable returns the payout for the top 10 ranks.
func DefaultRewardTable() RewardTable {
	return RewardTable{500, 400, 300, 250, 200, 150, 125, 100, 75, 50}
}

// CoinsFor returns the payout of a rank, 0 outside the table.
func (t RewardTable) CoinsFor(rank int) int {
	if rank < 1 || rank > len(t) {
		return 0
	}
	return t[rank-1]
}

// Reward is one paid row, unique per (week, student).
type Reward struct {
	ID           string
	WeekStart    timeutil.Date
	StudentID    shared.StudentID
	Rank         int
	WeeklyXP     int
	CoinsAwarded int
	CreatedAt    time.Time
	SeenAt       *time.Time
}

// PlanRewards turns ranked entries into reward rows for every rank the table pays.
func PlanRewards(week timeutil.Date, ranked []Entry, table RewardTable, newID func() string, now time.Time) []Reward {
	rewards := make([]Reward, 0, len(table))
	for _, e := range ranked {
		coins := table.CoinsFor(e.Rank)
		if coins == 0 {
			continue
		}
		rewards = append(rewards, Reward{
			ID:           newID(),
			WeekStart:    week,
			StudentID:    e.StudentID,
			Rank:         e.Rank,
			WeeklyXP:     e.WeeklyXP,
			CoinsAwarded: coins,
			CreatedAt:    now,
		})
	}
	return rewards
}

// ValidateWeek checks week is a Monday whose week has fully ended at now.
func ValidateWeek(week timeutil.Date, now time.Time) error {
	if !timeutil.IsWeekStart(week) {
		return shared.ErrInvalidWeekStart.WithDetails(map[string]any{"week_start": week.String()})
	}
	if _, end := timeutil.WeekBounds(week); now.Before(end) {
		return shared.ErrWeekNotFinished.WithDetails(map[string]any{"week_start": week.String()})
	}
	return nil
}
