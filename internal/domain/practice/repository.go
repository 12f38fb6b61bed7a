package practice

import (
	"context"
	"time"

	"github.com/studypets/studypets-core/internal/domain/shared"
)

// SessionRepository persists sessions and their answers.
type SessionRepository interface {
	// Create inserts the session and one ordered row per question.
	Create(ctx context.Context, s *Session) error

	// Get returns shared.ErrSessionNotFound when missing.
	Get(ctx context.Context, id string) (*Session, error)

	// GetForUpdate is Get plus a row lock held until the transaction ends.
	GetForUpdate(ctx context.Context, id string) (*Session, error)

	// CountCreatedBetween counts the student's sessions created in [from, to).
	CountCreatedBetween(ctx context.Context, studentID shared.StudentID, from, to time.Time) (int, error)

	// SaveCompletion writes the terminal state: counters, rewards, completed_at.
	SaveCompletion(ctx context.Context, s *Session) error

	// InsertAnswer stores a graded answer and, when correct, increments the
	// session's running correct_count. Returns shared.ErrAnswerAlreadySubmitted
	// on a second answer to the same question.
	InsertAnswer(ctx context.Context, a *Answer) error

	// ListAnswers returns the session's answers in answer order.
	ListAnswers(ctx context.Context, sessionID string) ([]Answer, error)

	// ListByStudent returns the student's most recent sessions, newest first.
	ListByStudent(ctx context.Context, studentID shared.StudentID, limit int) ([]Session, error)
}

// QuestionCatalog is the read side of the curriculum the core grades against.
type QuestionCatalog interface {
	// AnswerKey returns shared.ErrQuestionNotFound for unknown questions.
	AnswerKey(ctx context.Context, questionID string) (*AnswerKey, error)

	// TopicQuestions lists the topic's question ids in display order.
	TopicQuestions(ctx context.Context, topicID string) ([]string, error)
}

// CycleRepository records which questions a student has seen per topic and cycle.
type CycleRepository interface {
	// MarkSeen inserts progress rows, ignoring ones that already exist.
	MarkSeen(ctx context.Context, studentID shared.StudentID, topicID string, cycle int, questionIDs []string) error

	// CurrentCycle returns the highest cycle with progress, or 0 when none.
	CurrentCycle(ctx context.Context, studentID shared.StudentID, topicID string) (int, error)

	// SeenInCycle lists the question ids marked in the cycle.
	SeenInCycle(ctx context.Context, studentID shared.StudentID, topicID string, cycle int) ([]string, error)
}
