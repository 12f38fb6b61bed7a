package query

import (
	"context"
	"fmt"
	"time"

	"github.com/studypets/studypets-core/internal/domain/access"
	"github.com/studypets/studypets-core/internal/domain/practice"
	"github.com/studypets/studypets-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PRACTICE QUERIES
// ══════════════════════════════════════════════════════════════════════════════

// SessionCounter counts sessions created in a window.
type SessionCounter interface {
	CountCreatedBetween(ctx context.Context, studentID shared.StudentID, from, to time.Time) (int, error)
}

// GetSessionQuery reads one session with its answers.
type GetSessionQuery struct {
	Actor     access.Actor
	SessionID string
}

// AnswerDTO is a graded answer as shown after submission.
type AnswerDTO struct {
	QuestionID       string    `json:"question_id"`
	IsCorrect        bool      `json:"is_correct"`
	TimeSpentSeconds int       `json:"time_spent_seconds"`
	AnsweredAt       time.Time `json:"answered_at"`
}

// SessionDTO is a session read model.
type SessionDTO struct {
	ID               string      `json:"id"`
	StudentID        string      `json:"student_id"`
	TopicID          string      `json:"topic_id"`
	CurriculumRefs   []string    `json:"curriculum_refs"`
	QuestionIDs      []string    `json:"question_ids"`
	CycleNumber      int         `json:"cycle_number"`
	TotalQuestions   int         `json:"total_questions"`
	CorrectCount     int         `json:"correct_count"`
	XPEarned         *int        `json:"xp_earned"`
	CoinsEarned      *int        `json:"coins_earned"`
	TotalTimeSeconds int         `json:"total_time_seconds"`
	CreatedAt        time.Time   `json:"created_at"`
	CompletedAt      *time.Time  `json:"completed_at"`
	Answers          []AnswerDTO `json:"answers,omitempty"`
}

func toSessionDTO(s *practice.Session) SessionDTO {
	return SessionDTO{
		ID:               s.ID,
		StudentID:        s.StudentID.String(),
		TopicID:          s.TopicID,
		CurriculumRefs:   s.CurriculumRefs,
		QuestionIDs:      s.QuestionIDs,
		CycleNumber:      s.CycleNumber,
		TotalQuestions:   s.TotalQuestions,
		CorrectCount:     s.CorrectCount,
		XPEarned:         s.XPEarned,
		CoinsEarned:      s.CoinsEarned,
		TotalTimeSeconds: s.TotalTimeSeconds,
		CreatedAt:        s.CreatedAt,
		CompletedAt:      s.CompletedAt,
	}
}

// ListSessionsQuery reads a student's recent sessions.
type ListSessionsQuery struct {
	Actor     access.Actor
	StudentID shared.StudentID
	Limit     int
}

// GetUnseenQuestionsQuery asks which questions remain in the topic's cycle.
type GetUnseenQuestionsQuery struct {
	Actor     access.Actor
	StudentID shared.StudentID
	TopicID   string
}

// UnseenQuestionsResult tells the client which cycle to start next and with what.
type UnseenQuestionsResult struct {
	TopicID     string   `json:"topic_id"`
	CycleNumber int      `json:"cycle_number"`
	QuestionIDs []string `json:"question_ids"`
	RolledOver  bool     `json:"rolled_over"`
}

// PracticeHandler serves session and cycling reads.
type PracticeHandler struct {
	policy    *access.Policy
	sessions  practice.SessionRepository
	questions practice.QuestionCatalog
	cycles    practice.CycleRepository
}

// NewPracticeHandler creates a PracticeHandler.
func NewPracticeHandler(policy *access.Policy, sessions practice.SessionRepository, questions practice.QuestionCatalog, cycles practice.CycleRepository) *PracticeHandler {
	return &PracticeHandler{policy: policy, sessions: sessions, questions: questions, cycles: cycles}
}

// Session executes GetSessionQuery. A session the caller may not read is
// reported as missing so ids cannot be probed.
func (h *PracticeHandler) Session(ctx context.Context, q GetSessionQuery) (*SessionDTO, error) {
	if q.Actor.IsZero() {
		return nil, shared.ErrNotAuthenticated
	}
	s, err := h.sessions.Get(ctx, q.SessionID)
	if err != nil {
		return nil, err
	}
	if err := h.policy.CanRead(ctx, q.Actor, s.StudentID); err != nil {
		if shared.IsForbidden(err) {
			return nil, shared.ErrSessionNotFound
		}
		return nil, err
	}

	answers, err := h.sessions.ListAnswers(ctx, s.ID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}

	dto := toSessionDTO(s)
	dto.Answers = make([]AnswerDTO, 0, len(answers))
	for _, a := range answers {
		dto.Answers = append(dto.Answers, AnswerDTO{
			QuestionID:       a.QuestionID,
			IsCorrect:        a.IsCorrect,
			TimeSpentSeconds: a.TimeSpentSeconds,
			AnsweredAt:       a.AnsweredAt,
		})
	}
	return &dto, nil
}

// Sessions executes ListSessionsQuery (limit default 20, max 100).
func (h *PracticeHandler) Sessions(ctx context.Context, q ListSessionsQuery) ([]SessionDTO, error) {
	if err := h.policy.CanRead(ctx, q.Actor, q.StudentID); err != nil {
		return nil, err
	}
	if q.Limit <= 0 {
		q.Limit = 20
	}
	if q.Limit > 100 {
		q.Limit = 100
	}

	rows, err := h.sessions.ListByStudent(ctx, q.StudentID, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	out := make([]SessionDTO, 0, len(rows))
	for i := range rows {
		out = append(out, toSessionDTO(&rows[i]))
	}
	return out, nil
}

// UnseenQuestions executes GetUnseenQuestionsQuery. A student with no progress
// starts at cycle 1 with the whole topic.
func (h *PracticeHandler) UnseenQuestions(ctx context.Context, q GetUnseenQuestionsQuery) (*UnseenQuestionsResult, error) {
	if err := h.policy.CanRead(ctx, q.Actor, q.StudentID); err != nil {
		return nil, err
	}
	if q.TopicID == "" {
		return nil, shared.ErrInvalidTopic
	}

	topic, err := h.questions.TopicQuestions(ctx, q.TopicID)
	if err != nil {
		return nil, fmt.Errorf("topic questions: %w", err)
	}

	cycle, err := h.cycles.CurrentCycle(ctx, q.StudentID, q.TopicID)
	if err != nil {
		return nil, fmt.Errorf("current cycle: %w", err)
	}
	var seen []string
	if cycle == 0 {
		cycle = 1
	} else {
		seen, err = h.cycles.SeenInCycle(ctx, q.StudentID, q.TopicID, cycle)
		if err != nil {
			return nil, fmt.Errorf("seen in cycle: %w", err)
		}
	}

	plan := practice.PlanCycle(q.TopicID, cycle, topic, seen)
	return &UnseenQuestionsResult{
		TopicID:     plan.TopicID,
		CycleNumber: plan.CycleNumber,
		QuestionIDs: plan.Unseen,
		RolledOver:  plan.RolledOver,
	}, nil
}
