package command

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studypets/studypets-core/internal/domain/economy"
	"github.com/studypets/studypets-core/internal/domain/practice"
	"github.com/studypets/studypets-core/internal/domain/shared"
	"github.com/studypets/studypets-core/pkg/timeutil"
)

func TestCompleteSession_RewardAndStreak(t *testing.T) {
	f := newFixture(t)

	done := f.practice("s1", 10, 7)
	assert.Equal(t, 10, done.TotalQuestions)
	assert.Equal(t, 7, done.CorrectCount)
	assert.Equal(t, 120, done.TotalTimeSeconds)
	assert.Equal(t, 130, done.XPEarned)
	assert.Equal(t, 45, done.CoinsEarned)
	assert.Equal(t, 1, done.CurrentStreak)
	assert.Equal(t, timeutil.NewDate(2024, 6, 3), done.PracticedOn)

	w := f.wallet("s1")
	assert.Equal(t, 130, w.XP)
	assert.Equal(t, 45, w.Coins)
	assert.Equal(t, 1, w.CurrentStreak)

	for i := 0; i < 3; i++ {
		f.nextDay()
		done = f.practice("s1", 2, 0)
	}
	assert.Equal(t, 4, done.CurrentStreak)
	assert.Equal(t, 4, f.wallet("s1").CurrentStreak)

	completed := f.events.ofType(shared.EventSessionCompleted)
	assert.Len(t, completed, 4)
}

func TestCompleteSession_ZeroCorrectStillPays(t *testing.T) {
	f := newFixture(t)

	done := f.practice("s1", 3, 0)
	assert.Equal(t, 25, done.XPEarned)
	assert.Equal(t, 10, done.CoinsEarned)
}

func TestCompleteSession_OnlyOnce(t *testing.T) {
	f := newFixture(t)

	created, err := NewCreateSessionHandler(f.deps, nil, nil).Handle(f.ctx, CreateSessionCommand{
		StudentID:   "s1",
		TopicID:     "fractions",
		QuestionIDs: f.questionIDs(2),
		CycleNumber: 1,
	})
	require.NoError(t, err)

	complete := NewCompleteSessionHandler(f.deps, practice.RewardFormula{})

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := complete.Handle(f.ctx, CompleteSessionCommand{StudentID: "s1", SessionID: created.SessionID})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case shared.IsConflict(err):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, 7, conflicts)

	w := f.wallet("s1")
	assert.Equal(t, 25, w.XP)
	assert.Equal(t, 10, w.Coins)
}

func TestCompleteSession_OtherStudentSeesNotFound(t *testing.T) {
	f := newFixture(t)

	created, err := NewCreateSessionHandler(f.deps, nil, nil).Handle(f.ctx, CreateSessionCommand{
		StudentID:   "s1",
		TopicID:     "fractions",
		QuestionIDs: f.questionIDs(1),
		CycleNumber: 1,
	})
	require.NoError(t, err)

	_, err = NewCompleteSessionHandler(f.deps, practice.RewardFormula{}).Handle(f.ctx, CompleteSessionCommand{
		StudentID: "s2",
		SessionID: created.SessionID,
	})
	assert.ErrorIs(t, err, shared.ErrSessionNotFound)
}

func TestCreateSession_TierQuota(t *testing.T) {
	f := newFixture(t)
	create := NewCreateSessionHandler(f.deps, nil, nil)
	cmd := CreateSessionCommand{
		StudentID:   "s1",
		TopicID:     "fractions",
		QuestionIDs: f.questionIDs(1),
		CycleNumber: 1,
	}

	for i := 1; i <= 3; i++ {
		res, err := create.Handle(f.ctx, cmd)
		require.NoError(t, err)
		assert.Equal(t, i, res.SessionsToday)
		assert.Equal(t, 3, res.DailyLimit)
		assert.Equal(t, economy.TierCore, res.Tier)
	}

	_, err := create.Handle(f.ctx, cmd)
	require.ErrorIs(t, err, shared.ErrDailySessionLimit)
	assert.True(t, shared.IsInsufficient(err))

	// The quota resets at the platform midnight.
	f.clock.Set(time.Date(2024, 6, 4, 0, 0, 1, 0, timeutil.PlatformTZ))
	res, err := create.Handle(f.ctx, cmd)
	require.NoError(t, err)
	assert.Equal(t, 1, res.SessionsToday)
}

func TestCreateSession_ProIsUnlimited(t *testing.T) {
	f := newFixture(t)

	_, err := NewSyncSubscriptionHandler(f.deps).Handle(f.ctx, SyncSubscriptionCommand{StudentID: "s1", Tier: "pro"})
	require.NoError(t, err)

	create := NewCreateSessionHandler(f.deps, nil, nil)
	for i := 0; i < 12; i++ {
		res, err := create.Handle(f.ctx, CreateSessionCommand{
			StudentID:   "s1",
			TopicID:     "fractions",
			QuestionIDs: f.questionIDs(1),
			CycleNumber: 1,
		})
		require.NoError(t, err)
		assert.Zero(t, res.DailyLimit)
	}
}

func TestCreateSession_RejectsInvalidInput(t *testing.T) {
	f := newFixture(t)
	create := NewCreateSessionHandler(f.deps, nil, nil)

	_, err := create.Handle(f.ctx, CreateSessionCommand{StudentID: "s1", TopicID: "fractions", CycleNumber: 1})
	assert.ErrorIs(t, err, shared.ErrEmptyQuestionList)

	_, err = create.Handle(f.ctx, CreateSessionCommand{
		StudentID:   "s1",
		TopicID:     "fractions",
		QuestionIDs: []string{"q1", "q1"},
		CycleNumber: 1,
	})
	assert.ErrorIs(t, err, shared.ErrDuplicateQuestion)

	// Rejected requests do not use up the quota.
	res, err := create.Handle(f.ctx, CreateSessionCommand{
		StudentID:   "s1",
		TopicID:     "fractions",
		QuestionIDs: f.questionIDs(1),
		CycleNumber: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.SessionsToday)
}

func TestSubmitAnswer_Errors(t *testing.T) {
	f := newFixture(t)

	created, err := NewCreateSessionHandler(f.deps, nil, nil).Handle(f.ctx, CreateSessionCommand{
		StudentID:   "s1",
		TopicID:     "fractions",
		QuestionIDs: f.questionIDs(2),
		CycleNumber: 1,
	})
	require.NoError(t, err)

	submit := NewSubmitAnswerHandler(f.deps)
	answer := func(student shared.StudentID, question string) error {
		_, err := submit.Handle(f.ctx, SubmitAnswerCommand{
			StudentID:       student,
			SessionID:       created.SessionID,
			QuestionID:      question,
			SelectedOptions: []string{"a"},
		})
		return err
	}

	res, err := submit.Handle(f.ctx, SubmitAnswerCommand{
		StudentID:       "s1",
		SessionID:       created.SessionID,
		QuestionID:      "q1",
		SelectedOptions: []string{"a"},
	})
	require.NoError(t, err)
	assert.True(t, res.IsCorrect)
	assert.Equal(t, 1, res.CorrectSoFar)

	assert.ErrorIs(t, answer("s1", "q1"), shared.ErrAnswerAlreadySubmitted)
	assert.ErrorIs(t, answer("s1", "q9"), shared.ErrQuestionNotInSession)
	assert.ErrorIs(t, answer("s2", "q2"), shared.ErrSessionNotFound)

	_, err = submit.Handle(f.ctx, SubmitAnswerCommand{StudentID: "s1", SessionID: "missing", QuestionID: "q1"})
	assert.ErrorIs(t, err, shared.ErrSessionNotFound)

	_, err = NewCompleteSessionHandler(f.deps, practice.RewardFormula{}).Handle(f.ctx, CompleteSessionCommand{
		StudentID: "s1",
		SessionID: created.SessionID,
	})
	require.NoError(t, err)
	assert.ErrorIs(t, answer("s1", "q2"), shared.ErrSessionAlreadyCompleted)
}

func TestCreateSession_MarksQuestionsSeen(t *testing.T) {
	f := newFixture(t)

	_, err := NewCreateSessionHandler(f.deps, nil, nil).Handle(f.ctx, CreateSessionCommand{
		StudentID:   "s1",
		TopicID:     "fractions",
		QuestionIDs: []string{"q3", "q1"},
		CycleNumber: 1,
	})
	require.NoError(t, err)

	seen, err := f.deps.Cycles.SeenInCycle(f.ctx, "s1", "fractions", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"q1", "q3"}, seen)
}
