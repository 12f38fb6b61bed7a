package practice

import (
	"sort"
	"strings"
	"time"

	"github.com/studypets/studypets-core/internal/domain/shared"
)

// QuestionType drives how an answer is graded.
type QuestionType string

const (
	QuestionSingleChoice QuestionType = "single_choice"
	QuestionMultiSelect  QuestionType = "multi_select"
	QuestionText         QuestionType = "text"
)

// Answer is one graded answer row, unique per (session, question).
type Answer struct {
	ID               string
	SessionID        string
	QuestionID       string
	SelectedOptions  []string
	TextAnswer       string
	IsCorrect        bool
	TimeSpentSeconds int
	AnsweredAt       time.Time
}

// AnswerKey is the authoritative solution of a question.
type AnswerKey struct {
	QuestionID      string
	TopicID         string
	Type            QuestionType
	CorrectOptions  []string
	AcceptedAnswers []string
}

// Grade checks a submission against the key.
//   - single choice: exactly one option, equal to the correct one
//   - multi select: same set of options, order ignored
//   - text: any accepted answer, ignoring case and surrounding whitespace
func (k AnswerKey) Grade(selected []string, text string) bool {
	switch k.Type {
	case QuestionSingleChoice:
		return len(selected) == 1 && len(k.CorrectOptions) == 1 && selected[0] == k.CorrectOptions[0]
	case QuestionMultiSelect:
		return sameSet(selected, k.CorrectOptions)
	case QuestionText:
		got := normalizeText(text)
		if got == "" {
			return false
		}
		for _, a := range k.AcceptedAnswers {
			if normalizeText(a) == got {
				return true
			}
		}
		return false
	}
	return false
}

func sameSet(a, b []string) bool {
	if len(a) == 0 || len(a) != len(b) {
		return false
	}
	x := append([]string(nil), a...)
	y := append([]string(nil), b...)
	sort.Strings(x)
	sort.Strings(y)
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}

func normalizeText(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// NewAnswer grades and builds an answer row for a session.
func NewAnswer(id string, s *Session, key AnswerKey, selected []string, text string, timeSpent int, now time.Time) (*Answer, error) {
	if !s.HasQuestion(key.QuestionID) {
		return nil, shared.ErrQuestionNotInSession.WithDetails(map[string]any{"question_id": key.QuestionID})
	}
	if timeSpent < 0 {
		return nil, shared.ErrInvalidTimeSpent
	}
	return &Answer{
		ID:               id,
		SessionID:        s.ID,
		QuestionID:       key.QuestionID,
		SelectedOptions:  selected,
		TextAnswer:       text,
		IsCorrect:        key.Grade(selected, text),
		TimeSpentSeconds: timeSpent,
		AnsweredAt:       now,
	}, nil
}

// TallyOf recomputes a tally from answer rows.
func TallyOf(answers []Answer) Tally {
	var t Tally
	for _, a := range answers {
		t.Answered++
		if a.IsCorrect {
			t.Correct++
		}
		t.TotalTimeSeconds += a.TimeSpentSeconds
	}
	return t
}
