package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studypets/studypets-core/config"
	"github.com/studypets/studypets-core/internal/application/command"
	"github.com/studypets/studypets-core/internal/application/query"
	"github.com/studypets/studypets-core/internal/domain/access"
	"github.com/studypets/studypets-core/internal/domain/pet"
	"github.com/studypets/studypets-core/internal/domain/shared"
	"github.com/studypets/studypets-core/internal/infrastructure/persistence/memory"
	"github.com/studypets/studypets-core/internal/infrastructure/persistence/redis"
	"github.com/studypets/studypets-core/internal/infrastructure/scheduler/jobs"
	"github.com/studypets/studypets-core/pkg/timeutil"
)

func testConfig() *config.Config {
	return &config.Config{
		App:     config.AppConfig{Environment: config.EnvDevelopment},
		Redis:   config.RedisConfig{Disabled: true},
		Economy: config.DefaultBalance(),
	}
}

// Wednesday 2024-03-06 10:00 platform time.
func testClock() *timeutil.FixedClock {
	return timeutil.NewFixedClock(time.Date(2024, time.March, 6, 10, 0, 0, 0, timeutil.PlatformTZ))
}

func openTest(t *testing.T, cfg *config.Config, opts ...Option) *Infra {
	t.Helper()
	infra, err := Open(context.Background(), cfg, nil, append([]Option{WithClock(testClock())}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(infra.Close)
	return infra
}

func completeOneSession(t *testing.T, app *Application, student shared.StudentID) *command.CompleteSessionResult {
	t.Helper()
	ctx := context.Background()

	created, err := app.CreateSession.Handle(ctx, command.CreateSessionCommand{
		StudentID:   student,
		TopicID:     DemoTopicID,
		QuestionIDs: []string{"q-frac-1", "q-frac-2"},
		CycleNumber: 1,
	})
	require.NoError(t, err)

	_, err = app.SubmitAnswer.Handle(ctx, command.SubmitAnswerCommand{
		StudentID:        student,
		SessionID:        created.SessionID,
		QuestionID:       "q-frac-1",
		SelectedOptions:  []string{"b"},
		TimeSpentSeconds: 12,
	})
	require.NoError(t, err)

	done, err := app.CompleteSession.Handle(ctx, command.CompleteSessionCommand{
		StudentID: student,
		SessionID: created.SessionID,
	})
	require.NoError(t, err)
	return done
}

func TestOpen_DevelopmentWithoutDatabaseUsesSeededMemoryStore(t *testing.T) {
	infra := openTest(t, testConfig())

	assert.Nil(t, infra.DB)
	assert.Nil(t, infra.Cache)
	assert.Nil(t, infra.BoardCache())
	assert.Nil(t, infra.Locker())
	require.IsType(t, &memory.DB{}, infra.Store)

	byRarity, err := infra.Store.Catalog().ByRarity(context.Background())
	require.NoError(t, err)
	for _, r := range pet.Rarities {
		assert.NotEmpty(t, byRarity[r], "rarity %s", r)
	}

	ids, err := infra.Store.Questions().TopicQuestions(context.Background(), DemoTopicID)
	require.NoError(t, err)
	assert.Len(t, ids, len(demoQuestions))
}

func TestOpen_RequiresDatabaseOutsideDevelopment(t *testing.T) {
	cfg := testConfig()
	cfg.App.Environment = config.EnvProduction

	_, err := Open(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database URL is required")
}

func TestOpen_UsesGivenStore(t *testing.T) {
	db := memory.New()
	infra := openTest(t, testConfig(), WithStore(db))

	assert.Same(t, db, infra.Store)
	defs, err := db.Catalog().ByRarity(context.Background())
	require.NoError(t, err)
	assert.Empty(t, defs, "a given store is not seeded")
}

func TestApplication_PracticeFlowReachesLeaderboard(t *testing.T) {
	infra := openTest(t, testConfig())
	app := NewApplication(infra, WithRand(shared.NewSeededRand(1, 2)))
	ctx := context.Background()

	done := completeOneSession(t, app, "s1")
	assert.Equal(t, 1, done.CorrectCount)
	assert.Equal(t, 40, done.XPEarned)
	assert.Equal(t, 15, done.CoinsEarned)
	assert.Equal(t, 1, done.CurrentStreak)

	actor := access.Actor{UserID: "s1", Role: access.RoleStudent}
	wallet, err := app.Students.Wallet(ctx, query.GetWalletQuery{Actor: actor, StudentID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, 15, wallet.Coins)

	board, err := app.Leaderboard.Handle(ctx, query.GetWeeklyLeaderboardQuery{Actor: actor})
	require.NoError(t, err)
	require.Len(t, board.Entries, 1)
	assert.Equal(t, shared.StudentID("s1"), board.Entries[0].StudentID)
	assert.Equal(t, 40, board.Entries[0].WeeklyXP)
	assert.Equal(t, 1, board.Entries[0].Rank)
	assert.False(t, board.FromCache)
}

func TestApplication_WithRedisCachesAndInvalidatesBoard(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := testConfig()
	cfg.Redis.Disabled = false
	infra := openTest(t, cfg, WithCache(redis.NewCacheFromClient(client)))
	require.NotNil(t, infra.BoardCache())
	require.NotNil(t, infra.Locker())

	app := NewApplication(infra)
	ctx := context.Background()
	actor := access.Actor{UserID: "s1", Role: access.RoleStudent}

	first, err := app.Leaderboard.Handle(ctx, query.GetWeeklyLeaderboardQuery{Actor: actor})
	require.NoError(t, err)
	assert.False(t, first.FromCache)
	assert.Empty(t, first.Entries)

	second, err := app.Leaderboard.Handle(ctx, query.GetWeeklyLeaderboardQuery{Actor: actor})
	require.NoError(t, err)
	assert.True(t, second.FromCache)

	completeOneSession(t, app, "s1")

	// The session_completed handler drops the cached week.
	require.Eventually(t, func() bool {
		board, err := app.Leaderboard.Handle(ctx, query.GetWeeklyLeaderboardQuery{Actor: actor})
		return err == nil && len(board.Entries) == 1 && board.Entries[0].WeeklyXP == 40
	}, 2*time.Second, 20*time.Millisecond)
}

func TestNewScheduler_DistributesPreviousWeekOnce(t *testing.T) {
	clock := timeutil.NewFixedClock(time.Date(2024, time.February, 28, 9, 0, 0, 0, timeutil.PlatformTZ))
	cfg := testConfig()
	cfg.Scheduler.WeeklyRewardsCron = "5 0 * * 1"

	infra := openTest(t, cfg, WithClock(clock))
	app := NewApplication(infra)
	ctx := context.Background()

	completeOneSession(t, app, "s1")
	clock.Set(time.Date(2024, time.March, 6, 9, 0, 0, 0, timeutil.PlatformTZ))

	sched, err := NewScheduler(infra, app)
	require.NoError(t, err)
	require.Len(t, sched.ListJobs(), 1)

	for i := 0; i < 2; i++ {
		_, err = sched.RunNow(ctx, jobs.JobNameDistributeWeeklyRewards)
		require.NoError(t, err)
	}

	actor := access.Actor{UserID: "s1", Role: access.RoleStudent}
	wallet, err := app.Students.Wallet(ctx, query.GetWalletQuery{Actor: actor, StudentID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, 15+500, wallet.Coins)
}

func TestNewScheduler_RejectsBadCron(t *testing.T) {
	cfg := testConfig()
	cfg.Scheduler.WeeklyRewardsCron = "every monday"

	infra := openTest(t, cfg)
	_, err := NewScheduler(infra, NewApplication(infra))
	require.Error(t, err)
}
