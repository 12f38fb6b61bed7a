package command

import (
	"context"
	"fmt"

	"github.com/studypets/studypets-core/internal/domain/practice"
	"github.com/studypets/studypets-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SUBMIT ANSWER COMMAND
// Grades one answer server-side and appends it to an open session.
// ══════════════════════════════════════════════════════════════════════════════

// SubmitAnswerCommand contains one answer.
type SubmitAnswerCommand struct {
	StudentID        shared.StudentID
	SessionID        string
	QuestionID       string
	SelectedOptions  []string
	TextAnswer       string
	TimeSpentSeconds int
}

// SubmitAnswerResult reports the graded answer.
type SubmitAnswerResult struct {
	AnswerID     string `json:"answer_id"`
	IsCorrect    bool   `json:"is_correct"`
	CorrectSoFar int    `json:"correct_so_far"`
}

// SubmitAnswerHandler handles SubmitAnswerCommand.
type SubmitAnswerHandler struct {
	deps Deps
}

// NewSubmitAnswerHandler creates a new SubmitAnswerHandler.
func NewSubmitAnswerHandler(deps Deps) *SubmitAnswerHandler {
	return &SubmitAnswerHandler{deps: deps.withDefaults()}
}

// Handle executes the submit answer command.
func (h *SubmitAnswerHandler) Handle(ctx context.Context, cmd SubmitAnswerCommand) (*SubmitAnswerResult, error) {
	var result *SubmitAnswerResult
	err := h.deps.inTx(ctx, "submit_answer", func(ctx context.Context) error {
		session, err := h.deps.Sessions.GetForUpdate(ctx, cmd.SessionID)
		if err != nil {
			return err
		}
		if !session.OwnedBy(cmd.StudentID) {
			return shared.ErrSessionNotFound
		}
		if session.IsCompleted() {
			return shared.ErrSessionAlreadyCompleted.WithDetails(map[string]any{"session_id": session.ID})
		}
		if !session.HasQuestion(cmd.QuestionID) {
			return shared.ErrQuestionNotInSession.WithDetails(map[string]any{"question_id": cmd.QuestionID})
		}

		key, err := h.deps.Questions.AnswerKey(ctx, cmd.QuestionID)
		if err != nil {
			return err
		}

		answer, err := practice.NewAnswer(h.deps.NewID(), session, *key, cmd.SelectedOptions, cmd.TextAnswer, cmd.TimeSpentSeconds, h.deps.Clock.Now())
		if err != nil {
			return err
		}
		if err := h.deps.Sessions.InsertAnswer(ctx, answer); err != nil {
			if shared.IsConflict(err) {
				return err
			}
			return fmt.Errorf("insert answer: %w", err)
		}

		correct := session.CorrectCount
		if answer.IsCorrect {
			correct++
		}
		result = &SubmitAnswerResult{
			AnswerID:     answer.ID,
			IsCorrect:    answer.IsCorrect,
			CorrectSoFar: correct,
		}
		return nil
	})
	if err != nil {
		h.deps.logRejected("submit_answer", cmd.StudentID, err)
		return nil, err
	}
	return result, nil
}
