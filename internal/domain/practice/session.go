// Package practice models practice sessions, their answers, server-side
// grading, the reward formula and question cycling.
//
// A session moves created -> completed exactly once. Its score is always
// recomputed from stored answer rows at completion; client tallies are never
// trusted.
package practice

import (
	"strings"
	"time"

	"github.com/studypets/studypets-core/internal/domain/shared"
)

// Session is one practice attempt over a fixed, ordered question list.
type Session struct {
	ID               string
	StudentID        shared.StudentID
	TopicID          string
	CurriculumRefs   []string
	QuestionIDs      []string
	CycleNumber      int
	TotalQuestions   int
	CorrectCount     int
	XPEarned         *int
	CoinsEarned      *int
	TotalTimeSeconds int
	CreatedAt        time.Time
	CompletedAt      *time.Time
}

// NewSession validates the inputs and builds an uncompleted session.
func NewSession(id string, studentID shared.StudentID, topicID string, curriculumRefs, questionIDs []string, cycle int, now time.Time) (*Session, error) {
	topicID = strings.TrimSpace(topicID)
	if topicID == "" {
		return nil, shared.ErrInvalidTopic
	}
	if len(questionIDs) == 0 {
		return nil, shared.ErrEmptyQuestionList
	}
	if cycle < 1 {
		return nil, shared.ErrInvalidCycle
	}

	seen := make(map[string]struct{}, len(questionIDs))
	ordered := make([]string, 0, len(questionIDs))
	for _, q := range questionIDs {
		q = strings.TrimSpace(q)
		if q == "" {
			return nil, shared.ErrEmptyQuestionList.WithMessage("question ids must not be blank")
		}
		if _, dup := seen[q]; dup {
			return nil, shared.ErrDuplicateQuestion.WithDetails(map[string]any{"question_id": q})
		}
		seen[q] = struct{}{}
		ordered = append(ordered, q)
	}

	refs := make([]string, 0, len(curriculumRefs))
	for _, r := range curriculumRefs {
		if r = strings.TrimSpace(r); r != "" {
			refs = append(refs, r)
		}
	}

	return &Session{
		ID:             id,
		StudentID:      studentID,
		TopicID:        topicID,
		CurriculumRefs: refs,
		QuestionIDs:    ordered,
		CycleNumber:    cycle,
		TotalQuestions: len(ordered),
		CreatedAt:      now,
	}, nil
}

// IsCompleted reports whether the session reached its terminal state.
func (s *Session) IsCompleted() bool {
	return s.CompletedAt != nil
}

// OwnedBy reports whether the session belongs to the student.
func (s *Session) OwnedBy(studentID shared.StudentID) bool {
	return s.StudentID == studentID
}

// HasQuestion reports whether the question is part of the session.
func (s *Session) HasQuestion(questionID string) bool {
	for _, q := range s.QuestionIDs {
		if q == questionID {
			return true
		}
	}
	return false
}

// Complete applies the authoritative tally and the reward formula.
// It fails with shared.ErrSessionAlreadyCompleted on a second call.
func (s *Session) Complete(tally Tally, formula RewardFormula, now time.Time) (Reward, error) {
	if s.IsCompleted() {
		return Reward{}, shared.ErrSessionAlreadyCompleted.WithDetails(map[string]any{"session_id": s.ID})
	}

	reward := formula.For(tally.Correct)
	xp, coins := reward.XP, reward.Coins
	completedAt := now

	s.CorrectCount = tally.Correct
	s.TotalTimeSeconds = tally.TotalTimeSeconds
	s.XPEarned = &xp
	s.CoinsEarned = &coins
	s.CompletedAt = &completedAt

	return reward, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// REWARD FORMULA
// ══════════════════════════════════════════════════════════════════════════════

// Tally is the score recomputed from stored answers.
type Tally struct {
	Answered         int
	Correct          int
	TotalTimeSeconds int
}

// Reward is what a completed session credits.
type Reward struct {
	XP    int
	Coins int
}

// RewardFormula is linear in the number of correct answers.
type RewardFormula struct {
	BaseXP          int
	XPPerCorrect    int
	BaseCoins       int
	CoinsPerCorrect int
}

// DefaultRewardFormula: xp = 25 + 15k, coins = 10 + 5k.
func DefaultRewardFormula() RewardFormula {
	return RewardFormula{
		BaseXP:          25,
		XPPerCorrect:    15,
		BaseCoins:       10,
		CoinsPerCorrect: 5,
	}
}

// For returns the reward for k correct answers.
func (f RewardFormula) For(correct int) Reward {
	if correct < 0 {
		correct = 0
	}
	return Reward{
		XP:    f.BaseXP + f.XPPerCorrect*correct,
		Coins: f.BaseCoins + f.CoinsPerCorrect*correct,
	}
}
