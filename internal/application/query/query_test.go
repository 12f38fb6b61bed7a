package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studypets/studypets-core/internal/domain/access"
	"github.com/studypets/studypets-core/internal/domain/daily"
	"github.com/studypets/studypets-core/internal/domain/economy"
	"github.com/studypets/studypets-core/internal/domain/leaderboard"
	"github.com/studypets/studypets-core/internal/domain/pet"
	"github.com/studypets/studypets-core/internal/domain/practice"
	"github.com/studypets/studypets-core/internal/domain/shared"
	"github.com/studypets/studypets-core/internal/infrastructure/persistence/memory"
	"github.com/studypets/studypets-core/pkg/timeutil"
)

// wednesdayNoon is 2024-06-05 12:00 in the platform timezone.
var wednesdayNoon = time.Date(2024, 6, 5, 12, 0, 0, 0, timeutil.PlatformTZ)

var (
	alice  = access.Actor{UserID: "alice", Role: access.RoleStudent}
	bob    = access.Actor{UserID: "bob", Role: access.RoleStudent}
	parent = access.Actor{UserID: "p1", Role: access.RoleParent}
	admin  = access.Actor{UserID: "ops", Role: access.RoleAdmin}
)

type memoryCache struct {
	weeks map[timeutil.Date][]leaderboard.Entry
	sets  int
	fail  bool
}

func newMemoryCache() *memoryCache {
	return &memoryCache{weeks: make(map[timeutil.Date][]leaderboard.Entry)}
}

func (c *memoryCache) GetWeek(_ context.Context, week timeutil.Date) ([]leaderboard.Entry, bool, error) {
	if c.fail {
		return nil, false, errors.New("cache down")
	}
	e, ok := c.weeks[week]
	return e, ok, nil
}

func (c *memoryCache) SetWeek(_ context.Context, week timeutil.Date, entries []leaderboard.Entry, _ time.Duration) error {
	if c.fail {
		return errors.New("cache down")
	}
	c.sets++
	c.weeks[week] = entries
	return nil
}

func (c *memoryCache) InvalidateWeek(_ context.Context, week timeutil.Date) error {
	delete(c.weeks, week)
	return nil
}

// completed stores a finished session with the given number of correct answers.
func completed(t *testing.T, db *memory.DB, id string, student shared.StudentID, correct int, at time.Time) {
	t.Helper()
	ctx := context.Background()

	s, err := practice.NewSession(id, student, "fractions", nil, []string{"q1", "q2", "q3", "q4", "q5", "q6", "q7"}, 1, at)
	require.NoError(t, err)
	require.NoError(t, db.Sessions().Create(ctx, s))
	_, err = s.Complete(practice.Tally{Answered: correct, Correct: correct}, practice.DefaultRewardFormula(), at)
	require.NoError(t, err)
	require.NoError(t, db.Sessions().SaveCompletion(ctx, s))
	require.NoError(t, db.Daily().MarkPracticed(ctx, student, timeutil.DateOf(at)))
}

func seededBoard(t *testing.T) *memory.DB {
	t.Helper()
	db := memory.New()
	db.SetProfile("alice", "Alice")
	db.SetProfile("bob", "Bob")
	db.SetProfile("carol", "Carol")

	completed(t, db, "a1", "alice", 7, time.Date(2024, 6, 4, 9, 0, 0, 0, timeutil.PlatformTZ))
	completed(t, db, "a2", "alice", 0, time.Date(2024, 6, 5, 9, 0, 0, 0, timeutil.PlatformTZ))
	completed(t, db, "b1", "bob", 7, time.Date(2024, 6, 3, 9, 0, 0, 0, timeutil.PlatformTZ))
	completed(t, db, "b2", "bob", 0, time.Date(2024, 6, 3, 10, 0, 0, 0, timeutil.PlatformTZ))
	completed(t, db, "c1", "carol", 1, time.Date(2024, 6, 5, 8, 0, 0, 0, timeutil.PlatformTZ))
	// Previous week; must not count.
	completed(t, db, "c0", "carol", 7, time.Date(2024, 6, 2, 23, 59, 0, 0, timeutil.PlatformTZ))
	return db
}

func TestWeeklyLeaderboard_DenseRankWithLiveStreaks(t *testing.T) {
	db := seededBoard(t)
	cache := newMemoryCache()
	h := NewGetWeeklyLeaderboardHandler(db.Rewards(), db.Daily(), cache, nil, timeutil.NewFixedClock(wednesdayNoon), 0, nil)

	res, err := h.Handle(context.Background(), GetWeeklyLeaderboardQuery{Actor: alice})
	require.NoError(t, err)
	assert.Equal(t, timeutil.NewDate(2024, 6, 3), res.WeekStart)
	assert.False(t, res.FromCache)
	assert.False(t, res.IsFinalized)
	assert.Equal(t, 3, res.TotalRanked)
	assert.Equal(t, []int(leaderboard.DefaultRewardTable()), res.RewardTable)

	require.Len(t, res.Entries, 3)
	assert.Equal(t, leaderboard.Entry{Rank: 1, StudentID: "alice", DisplayName: "Alice", WeeklyXP: 155, Streak: 2}, res.Entries[0])
	assert.Equal(t, leaderboard.Entry{Rank: 1, StudentID: "bob", DisplayName: "Bob", WeeklyXP: 155, Streak: 0}, res.Entries[1])
	assert.Equal(t, leaderboard.Entry{Rank: 2, StudentID: "carol", DisplayName: "Carol", WeeklyXP: 40, Streak: 1}, res.Entries[2])

	res, err = h.Handle(context.Background(), GetWeeklyLeaderboardQuery{Actor: bob, Limit: 1})
	require.NoError(t, err)
	assert.True(t, res.FromCache)
	assert.Len(t, res.Entries, 1)
	assert.Equal(t, 3, res.TotalRanked)
	assert.Equal(t, 1, cache.sets)
}

func TestWeeklyLeaderboard_PastWeekIsFinalized(t *testing.T) {
	db := seededBoard(t)
	h := NewGetWeeklyLeaderboardHandler(db.Rewards(), db.Daily(), nil, nil, timeutil.NewFixedClock(wednesdayNoon), 0, nil)

	res, err := h.Handle(context.Background(), GetWeeklyLeaderboardQuery{Actor: admin, WeekStart: timeutil.NewDate(2024, 5, 27)})
	require.NoError(t, err)
	assert.True(t, res.IsFinalized)
	require.Len(t, res.Entries, 1)
	assert.Equal(t, shared.StudentID("carol"), res.Entries[0].StudentID)
	assert.Equal(t, 130, res.Entries[0].WeeklyXP)
}

func TestWeeklyLeaderboard_CacheFailureFallsBack(t *testing.T) {
	db := seededBoard(t)
	cache := newMemoryCache()
	cache.fail = true
	h := NewGetWeeklyLeaderboardHandler(db.Rewards(), db.Daily(), cache, nil, timeutil.NewFixedClock(wednesdayNoon), 0, nil)

	res, err := h.Handle(context.Background(), GetWeeklyLeaderboardQuery{Actor: alice})
	require.NoError(t, err)
	assert.Equal(t, 3, res.TotalRanked)
}

func TestWeeklyLeaderboard_Validation(t *testing.T) {
	db := memory.New()
	h := NewGetWeeklyLeaderboardHandler(db.Rewards(), db.Daily(), nil, nil, timeutil.NewFixedClock(wednesdayNoon), 0, nil)
	ctx := context.Background()

	_, err := h.Handle(ctx, GetWeeklyLeaderboardQuery{})
	assert.ErrorIs(t, err, shared.ErrNotAuthenticated)

	_, err = h.Handle(ctx, GetWeeklyLeaderboardQuery{Actor: alice, WeekStart: timeutil.NewDate(2024, 6, 5)})
	assert.ErrorIs(t, err, shared.ErrInvalidWeekStart)

	_, err = h.Handle(ctx, GetWeeklyLeaderboardQuery{Actor: alice, Limit: -1})
	assert.True(t, shared.IsInvalidInput(err))

	q := GetWeeklyLeaderboardQuery{Actor: alice, Limit: 500}
	require.NoError(t, q.Validate())
	assert.Equal(t, 100, q.Limit)

	res, err := h.Handle(ctx, GetWeeklyLeaderboardQuery{Actor: alice})
	require.NoError(t, err)
	assert.Empty(t, res.Entries)
}

func TestStudentHandler_StreakModes(t *testing.T) {
	db := seededBoard(t)
	ctx := context.Background()
	_, err := db.Wallets().GetOrCreate(ctx, "bob")
	require.NoError(t, err)
	require.NoError(t, db.Wallets().SetStreak(ctx, "bob", 9))
	h := NewStudentHandler(access.NewPolicy(db.Links()), db.Wallets(), db.Daily(), db.Sessions(), nil, timeutil.NewFixedClock(wednesdayNoon))

	live, err := h.Streak(ctx, GetStreakQuery{Actor: alice, StudentID: "alice"})
	require.NoError(t, err)
	assert.Equal(t, 2, live.Streak)
	assert.True(t, live.PracticedToday)
	assert.Equal(t, StreakLive, live.Mode)

	cached, err := h.Streak(ctx, GetStreakQuery{Actor: bob, StudentID: "bob", Mode: StreakCached})
	require.NoError(t, err)
	assert.Equal(t, 9, cached.Streak)

	live, err = h.Streak(ctx, GetStreakQuery{Actor: bob, StudentID: "bob"})
	require.NoError(t, err)
	assert.Zero(t, live.Streak)
	assert.False(t, live.PracticedToday)

	_, err = h.Streak(ctx, GetStreakQuery{Actor: bob, StudentID: "bob", Mode: "weekly"})
	assert.True(t, shared.IsInvalidInput(err))
}

func TestStudentHandler_Access(t *testing.T) {
	db := seededBoard(t)
	db.LinkParent("p1", "alice")
	ctx := context.Background()
	h := NewStudentHandler(access.NewPolicy(db.Links()), db.Wallets(), db.Daily(), db.Sessions(), nil, timeutil.NewFixedClock(wednesdayNoon))

	_, err := h.Streak(ctx, GetStreakQuery{Actor: bob, StudentID: "alice"})
	assert.ErrorIs(t, err, shared.ErrAccessDenied)

	_, err = h.Streak(ctx, GetStreakQuery{Actor: parent, StudentID: "alice"})
	assert.NoError(t, err)

	_, err = h.Streak(ctx, GetStreakQuery{Actor: parent, StudentID: "bob"})
	assert.ErrorIs(t, err, shared.ErrAccessDenied)

	_, err = h.Streak(ctx, GetStreakQuery{StudentID: "alice"})
	assert.ErrorIs(t, err, shared.ErrNotAuthenticated)

	_, err = h.Wallet(ctx, GetWalletQuery{Actor: admin, StudentID: "bob"})
	assert.NoError(t, err)
}

func TestStudentHandler_WalletQuota(t *testing.T) {
	db := memory.New()
	ctx := context.Background()
	now := wednesdayNoon
	_, err := db.Wallets().GetOrCreate(ctx, "alice")
	require.NoError(t, err)
	require.NoError(t, db.Wallets().Credit(ctx, "alice", economy.Credit{XP: 10, Coins: 20, Food: 3}))
	require.NoError(t, db.Wallets().SetTier(ctx, "alice", economy.TierPlus))
	completed(t, db, "a1", "alice", 1, now.Add(-time.Hour))
	completed(t, db, "a0", "alice", 1, now.Add(-24*time.Hour))

	h := NewStudentHandler(access.NewPolicy(db.Links()), db.Wallets(), db.Daily(), db.Sessions(), nil, timeutil.NewFixedClock(now))
	w, err := h.Wallet(ctx, GetWalletQuery{Actor: alice, StudentID: "alice"})
	require.NoError(t, err)
	assert.Equal(t, 20, w.Coins)
	assert.Equal(t, 3, w.Food)
	assert.Equal(t, economy.TierPlus, w.Tier)
	assert.Equal(t, 1, w.SessionsToday)
	assert.Equal(t, 10, w.DailyLimit)

	empty, err := h.Wallet(ctx, GetWalletQuery{Actor: bob, StudentID: "bob"})
	require.NoError(t, err)
	assert.Zero(t, empty.Coins)
	assert.Equal(t, economy.TierCore, empty.Tier)
	assert.Equal(t, 3, empty.DailyLimit)
}

func TestStudentHandler_DailyStatusFillsGaps(t *testing.T) {
	db := seededBoard(t)
	ctx := context.Background()
	require.NoError(t, db.Daily().SetMood(ctx, "alice", timeutil.NewDate(2024, 6, 3), daily.MoodHappy))
	h := NewStudentHandler(access.NewPolicy(db.Links()), db.Wallets(), db.Daily(), db.Sessions(), nil, timeutil.NewFixedClock(wednesdayNoon))

	days, err := h.DailyStatus(ctx, GetDailyStatusQuery{
		Actor:     alice,
		StudentID: "alice",
		From:      timeutil.NewDate(2024, 6, 2),
		To:        timeutil.NewDate(2024, 6, 5),
	})
	require.NoError(t, err)
	require.Len(t, days, 4)
	assert.False(t, days[0].HasPracticed)
	assert.Nil(t, days[0].Mood)
	require.NotNil(t, days[1].Mood)
	assert.Equal(t, daily.MoodHappy, *days[1].Mood)
	assert.True(t, days[2].HasPracticed)
	assert.True(t, days[3].HasPracticed)

	today, err := h.DailyStatus(ctx, GetDailyStatusQuery{Actor: alice, StudentID: "alice"})
	require.NoError(t, err)
	require.Len(t, today, 1)
	assert.Equal(t, timeutil.NewDate(2024, 6, 5), today[0].Date)

	_, err = h.DailyStatus(ctx, GetDailyStatusQuery{
		Actor:     alice,
		StudentID: "alice",
		From:      timeutil.NewDate(2024, 6, 5),
		To:        timeutil.NewDate(2024, 6, 1),
	})
	assert.True(t, shared.IsInvalidInput(err))
}

func TestPracticeHandler_SessionVisibility(t *testing.T) {
	db := seededBoard(t)
	ctx := context.Background()
	h := NewPracticeHandler(access.NewPolicy(db.Links()), db.Sessions(), db.Questions(), db.Cycles())

	s, err := h.Session(ctx, GetSessionQuery{Actor: alice, SessionID: "a1"})
	require.NoError(t, err)
	assert.Equal(t, "alice", s.StudentID)
	require.NotNil(t, s.XPEarned)
	assert.Equal(t, 130, *s.XPEarned)

	_, err = h.Session(ctx, GetSessionQuery{Actor: bob, SessionID: "a1"})
	assert.ErrorIs(t, err, shared.ErrSessionNotFound)

	list, err := h.Sessions(ctx, ListSessionsQuery{Actor: bob, StudentID: "bob"})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b2", list[0].ID)
}

func TestPracticeHandler_UnseenQuestions(t *testing.T) {
	db := memory.New()
	ctx := context.Background()
	for _, q := range []string{"q1", "q2", "q3"} {
		db.AddQuestion(practice.AnswerKey{QuestionID: q, TopicID: "fractions", Type: practice.QuestionSingleChoice, CorrectOptions: []string{"a"}})
	}
	h := NewPracticeHandler(access.NewPolicy(db.Links()), db.Sessions(), db.Questions(), db.Cycles())
	query := GetUnseenQuestionsQuery{Actor: alice, StudentID: "alice", TopicID: "fractions"}

	res, err := h.UnseenQuestions(ctx, query)
	require.NoError(t, err)
	assert.Equal(t, 1, res.CycleNumber)
	assert.Equal(t, []string{"q1", "q2", "q3"}, res.QuestionIDs)

	require.NoError(t, db.Cycles().MarkSeen(ctx, "alice", "fractions", 1, []string{"q2"}))
	res, err = h.UnseenQuestions(ctx, query)
	require.NoError(t, err)
	assert.Equal(t, []string{"q1", "q3"}, res.QuestionIDs)
	assert.False(t, res.RolledOver)

	require.NoError(t, db.Cycles().MarkSeen(ctx, "alice", "fractions", 1, []string{"q1", "q3"}))
	res, err = h.UnseenQuestions(ctx, query)
	require.NoError(t, err)
	assert.True(t, res.RolledOver)
	assert.Equal(t, 2, res.CycleNumber)
	assert.Len(t, res.QuestionIDs, 3)

	_, err = h.UnseenQuestions(ctx, GetUnseenQuestionsQuery{Actor: alice, StudentID: "alice"})
	assert.ErrorIs(t, err, shared.ErrInvalidTopic)
}

func TestCollectionHandler_PetsAndRewards(t *testing.T) {
	db := memory.New()
	ctx := context.Background()
	db.AddPetDefinition(pet.Definition{ID: "pup", Name: "Pup", Rarity: pet.Common})
	db.AddPetDefinition(pet.Definition{ID: "owl", Name: "Owl", Rarity: pet.Rare})
	now := wednesdayNoon

	for i := 0; i < 3; i++ {
		_, err := db.Pets().Grant(ctx, "alice", "pup", now)
		require.NoError(t, err)
	}
	owl, err := db.Pets().Grant(ctx, "alice", "owl", now)
	require.NoError(t, err)
	_, err = db.Pets().AddFood(ctx, owl.ID, 10)
	require.NoError(t, err)

	require.NoError(t, db.Rewards().InsertReward(ctx, &leaderboard.Reward{
		ID:           "r1",
		WeekStart:    timeutil.NewDate(2024, 5, 27),
		StudentID:    "alice",
		Rank:         2,
		WeeklyXP:     300,
		CoinsAwarded: 400,
		CreatedAt:    now,
	}))

	h := NewCollectionHandler(access.NewPolicy(db.Links()), db.Pets(), db.Rewards(), pet.DefaultBalance())

	res, err := h.Pets(ctx, ListPetsQuery{Actor: alice, StudentID: "alice"})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Total)
	assert.Equal(t, 3, res.ByRarity[pet.Common])
	require.Len(t, res.Pets, 2)
	assert.Equal(t, "owl", res.Pets[0].PetID)
	assert.True(t, res.Pets[0].CanEvolve)
	assert.Equal(t, 10, res.Pets[0].FoodRequired)
	assert.False(t, res.Pets[1].CanEvolve)

	rewards, err := h.UnseenRewards(ctx, ListUnseenRewardsQuery{Actor: alice, StudentID: "alice"})
	require.NoError(t, err)
	require.Len(t, rewards, 1)
	assert.Equal(t, 400, rewards[0].CoinsAwarded)

	_, err = db.Rewards().MarkSeen(ctx, "alice", "r1", now)
	require.NoError(t, err)
	rewards, err = h.UnseenRewards(ctx, ListUnseenRewardsQuery{Actor: alice, StudentID: "alice"})
	require.NoError(t, err)
	assert.Empty(t, rewards)

	_, err = h.Pets(ctx, ListPetsQuery{Actor: bob, StudentID: "alice"})
	assert.ErrorIs(t, err, shared.ErrAccessDenied)
}
