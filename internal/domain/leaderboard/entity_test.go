package leaderboard

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studypets/studypets-core/internal/domain/shared"
	"github.com/studypets/studypets-core/pkg/timeutil"
)

func TestDenseRank_TiesShareRankWithoutGaps(t *testing.T) {
	ranked := DenseRank([]WeeklyXP{
		{StudentID: "e", DisplayName: "Eve", XP: 100},
		{StudentID: "a", DisplayName: "Ana", XP: 300},
		{StudentID: "c", DisplayName: "Cai", XP: 200},
		{StudentID: "b", DisplayName: "Ben", XP: 200},
		{StudentID: "z", DisplayName: "Zed", XP: 0},
	})

	require.Len(t, ranked, 4)
	assert.Equal(t, []int{1, 2, 2, 3}, []int{ranked[0].Rank, ranked[1].Rank, ranked[2].Rank, ranked[3].Rank})
	assert.Equal(t, shared.StudentID("b"), ranked[1].StudentID)
	assert.Equal(t, shared.StudentID("c"), ranked[2].StudentID)
	assert.Equal(t, shared.StudentID("e"), ranked[3].StudentID)
}

func TestDenseRank_Empty(t *testing.T) {
	assert.Empty(t, DenseRank(nil))
}

func TestRewardTable(t *testing.T) {
	table := DefaultRewardTable()
	assert.Equal(t, 500, table.CoinsFor(1))
	assert.Equal(t, 50, table.CoinsFor(10))
	assert.Equal(t, 0, table.CoinsFor(11))
	assert.Equal(t, 0, table.CoinsFor(0))
}

func TestPlanRewards_TiesGetSameAmount(t *testing.T) {
	week := timeutil.NewDate(2024, 6, 10)
	totals := []WeeklyXP{
		{StudentID: "a", XP: 500},
		{StudentID: "b", XP: 400},
		{StudentID: "c", XP: 300},
		{StudentID: "d", XP: 300},
		{StudentID: "e", XP: 200},
	}

	n := 0
	newID := func() string { n++; return fmt.Sprintf("r%d", n) }
	rewards := PlanRewards(week, DenseRank(totals), DefaultRewardTable(), newID, time.Now())

	require.Len(t, rewards, 5)
	byStudent := map[shared.StudentID]Reward{}
	for _, r := range rewards {
		byStudent[r.StudentID] = r
	}
	assert.Equal(t, 300, byStudent["c"].CoinsAwarded)
	assert.Equal(t, 300, byStudent["d"].CoinsAwarded)
	assert.Equal(t, 3, byStudent["d"].Rank)
	// no gap after the tie: the next student is 4th, not 5th
	assert.Equal(t, 4, byStudent["e"].Rank)
	assert.Equal(t, 250, byStudent["e"].CoinsAwarded)
}

func TestPlanRewards_OnlyTopTenRanks(t *testing.T) {
	var totals []WeeklyXP
	for i := 0; i < 15; i++ {
		totals = append(totals, WeeklyXP{StudentID: shared.StudentID(fmt.Sprintf("s%02d", i)), XP: 1000 - i*10})
	}
	// a tie at rank 10 pays both students
	totals = append(totals, WeeklyXP{StudentID: "tie", XP: 1000 - 9*10})

	rewards := PlanRewards(timeutil.NewDate(2024, 6, 10), DenseRank(totals), DefaultRewardTable(), func() string { return "id" }, time.Now())

	assert.Len(t, rewards, 11)
	for _, r := range rewards {
		assert.LessOrEqual(t, r.Rank, 10)
	}
}

func TestValidateWeek(t *testing.T) {
	monday := timeutil.NewDate(2024, 6, 10)
	after := time.Date(2024, 6, 17, 0, 0, 0, 0, timeutil.PlatformTZ)

	assert.NoError(t, ValidateWeek(monday, after))

	err := ValidateWeek(monday, after.Add(-time.Second))
	assert.True(t, errors.Is(err, shared.ErrWeekNotFinished))

	err = ValidateWeek(monday.AddDays(1), after.AddDate(0, 0, 7))
	assert.True(t, errors.Is(err, shared.ErrInvalidWeekStart))
}
