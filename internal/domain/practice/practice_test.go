package practice

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studypets/studypets-core/internal/domain/shared"
)

var now = time.Date(2024, 6, 12, 9, 0, 0, 0, time.UTC)

func TestNewSession_Validation(t *testing.T) {
	tests := []struct {
		name  string
		topic string
		qs    []string
		cycle int
		want  error
	}{
		{"empty list", "t1", nil, 1, shared.ErrEmptyQuestionList},
		{"blank id", "t1", []string{"q1", " "}, 1, shared.ErrEmptyQuestionList},
		{"duplicate", "t1", []string{"q1", "q1"}, 1, shared.ErrDuplicateQuestion},
		{"zero cycle", "t1", []string{"q1"}, 0, shared.ErrInvalidCycle},
		{"no topic", "", []string{"q1"}, 1, shared.ErrInvalidTopic},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSession("s", "stu", tt.topic, nil, tt.qs, tt.cycle, now)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want))
			assert.True(t, shared.IsInvalidInput(err))
		})
	}
}

func TestNewSession_PreservesOrder(t *testing.T) {
	s, err := NewSession("s", "stu", "t1", []string{"math", "", "ch-2"}, []string{"q3", "q1", "q2"}, 2, now)
	require.NoError(t, err)

	assert.Equal(t, []string{"q3", "q1", "q2"}, s.QuestionIDs)
	assert.Equal(t, []string{"math", "ch-2"}, s.CurriculumRefs)
	assert.Equal(t, 3, s.TotalQuestions)
	assert.Equal(t, 0, s.CorrectCount)
	assert.Nil(t, s.XPEarned)
	assert.False(t, s.IsCompleted())
}

func TestRewardFormula(t *testing.T) {
	f := DefaultRewardFormula()
	for k := 0; k <= 20; k++ {
		r := f.For(k)
		assert.Equal(t, 25+15*k, r.XP)
		assert.Equal(t, 10+5*k, r.Coins)
	}

	// seven correct out of ten
	assert.Equal(t, Reward{XP: 130, Coins: 45}, f.For(7))
	assert.Equal(t, Reward{XP: 25, Coins: 10}, f.For(-3))
}

func TestSession_CompleteOnce(t *testing.T) {
	s, err := NewSession("s", "stu", "t1", nil, []string{"q1", "q2"}, 1, now)
	require.NoError(t, err)

	reward, err := s.Complete(Tally{Answered: 2, Correct: 1, TotalTimeSeconds: 40}, DefaultRewardFormula(), now)
	require.NoError(t, err)
	assert.Equal(t, Reward{XP: 40, Coins: 15}, reward)
	assert.Equal(t, 1, s.CorrectCount)
	assert.Equal(t, 40, s.TotalTimeSeconds)
	require.NotNil(t, s.XPEarned)
	assert.Equal(t, 40, *s.XPEarned)

	_, err = s.Complete(Tally{Correct: 2}, DefaultRewardFormula(), now)
	assert.True(t, errors.Is(err, shared.ErrSessionAlreadyCompleted))
	assert.True(t, shared.IsConflict(err))
	assert.Equal(t, 40, *s.XPEarned)
}

func TestAnswerKey_Grade(t *testing.T) {
	single := AnswerKey{Type: QuestionSingleChoice, CorrectOptions: []string{"b"}}
	assert.True(t, single.Grade([]string{"b"}, ""))
	assert.False(t, single.Grade([]string{"a"}, ""))
	assert.False(t, single.Grade([]string{"b", "a"}, ""))

	multi := AnswerKey{Type: QuestionMultiSelect, CorrectOptions: []string{"a", "c"}}
	assert.True(t, multi.Grade([]string{"c", "a"}, ""))
	assert.False(t, multi.Grade([]string{"a"}, ""))
	assert.False(t, multi.Grade([]string{"a", "b", "c"}, ""))

	text := AnswerKey{Type: QuestionText, AcceptedAnswers: []string{"Kuala Lumpur", "KL"}}
	assert.True(t, text.Grade(nil, "  kuala   lumpur "))
	assert.True(t, text.Grade(nil, "kl"))
	assert.False(t, text.Grade(nil, ""))
	assert.False(t, text.Grade(nil, "Penang"))
}

func TestNewAnswer(t *testing.T) {
	s, err := NewSession("s", "stu", "t1", nil, []string{"q1"}, 1, now)
	require.NoError(t, err)

	a, err := NewAnswer("a1", s, AnswerKey{QuestionID: "q1", Type: QuestionSingleChoice, CorrectOptions: []string{"x"}}, []string{"x"}, "", 12, now)
	require.NoError(t, err)
	assert.True(t, a.IsCorrect)

	_, err = NewAnswer("a2", s, AnswerKey{QuestionID: "q9"}, nil, "", 1, now)
	assert.True(t, errors.Is(err, shared.ErrQuestionNotInSession))

	_, err = NewAnswer("a3", s, AnswerKey{QuestionID: "q1"}, nil, "", -1, now)
	assert.True(t, shared.IsInvalidInput(err))
}

func TestTallyOf(t *testing.T) {
	tally := TallyOf([]Answer{
		{IsCorrect: true, TimeSpentSeconds: 10},
		{IsCorrect: false, TimeSpentSeconds: 5},
		{IsCorrect: true, TimeSpentSeconds: 7},
	})
	assert.Equal(t, Tally{Answered: 3, Correct: 2, TotalTimeSeconds: 22}, tally)
}

func TestPlanCycle(t *testing.T) {
	all := []string{"q1", "q2", "q3"}

	plan := PlanCycle("t1", 1, all, []string{"q2"})
	assert.Equal(t, 1, plan.CycleNumber)
	assert.Equal(t, []string{"q1", "q3"}, plan.Unseen)
	assert.False(t, plan.RolledOver)

	plan = PlanCycle("t1", 1, all, all)
	assert.Equal(t, 2, plan.CycleNumber)
	assert.Equal(t, all, plan.Unseen)
	assert.True(t, plan.RolledOver)

	plan = PlanCycle("t1", 0, nil, nil)
	assert.Equal(t, 1, plan.CycleNumber)
	assert.Empty(t, plan.Unseen)
}
