package memory

import (
	"context"
	"sort"
	"time"

	"github.com/studypets/studypets-core/internal/domain/practice"
	"github.com/studypets/studypets-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SESSIONS AND ANSWERS
// ══════════════════════════════════════════════════════════════════════════════

type sessionRepo struct {
	db *DB
}

func (r *sessionRepo) Create(ctx context.Context, s *practice.Session) error {
	return r.db.do(ctx, func(st *state) error {
		if _, exists := st.sessions[s.ID]; exists {
			return shared.NewDomainError("practice", "Create", shared.ErrConflict, "session_exists", "session already exists")
		}
		st.sessions[s.ID] = *s
		return nil
	})
}

func (r *sessionRepo) Get(ctx context.Context, id string) (*practice.Session, error) {
	var out practice.Session
	err := r.db.do(ctx, func(st *state) error {
		s, ok := st.sessions[id]
		if !ok {
			return shared.ErrSessionNotFound
		}
		out = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *sessionRepo) GetForUpdate(ctx context.Context, id string) (*practice.Session, error) {
	return r.Get(ctx, id)
}

func (r *sessionRepo) CountCreatedBetween(ctx context.Context, studentID shared.StudentID, from, to time.Time) (int, error) {
	n := 0
	err := r.db.do(ctx, func(st *state) error {
		for _, s := range st.sessions {
			if s.StudentID == studentID && !s.CreatedAt.Before(from) && s.CreatedAt.Before(to) {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r *sessionRepo) SaveCompletion(ctx context.Context, s *practice.Session) error {
	return r.db.do(ctx, func(st *state) error {
		cur, ok := st.sessions[s.ID]
		if !ok {
			return shared.ErrSessionNotFound
		}
		if cur.CompletedAt != nil {
			return shared.ErrSessionAlreadyCompleted
		}
		cur.CorrectCount = s.CorrectCount
		cur.TotalTimeSeconds = s.TotalTimeSeconds
		cur.XPEarned = s.XPEarned
		cur.CoinsEarned = s.CoinsEarned
		cur.CompletedAt = s.CompletedAt
		st.sessions[s.ID] = cur
		return nil
	})
}

func (r *sessionRepo) InsertAnswer(ctx context.Context, a *practice.Answer) error {
	return r.db.do(ctx, func(st *state) error {
		s, ok := st.sessions[a.SessionID]
		if !ok {
			return shared.ErrSessionNotFound
		}
		for _, existing := range st.answers[a.SessionID] {
			if existing.QuestionID == a.QuestionID {
				return shared.ErrAnswerAlreadySubmitted.WithDetails(map[string]any{"question_id": a.QuestionID})
			}
		}
		st.answers[a.SessionID] = append(st.answers[a.SessionID], *a)
		if a.IsCorrect {
			s.CorrectCount++
			st.sessions[s.ID] = s
		}
		return nil
	})
}

func (r *sessionRepo) ListAnswers(ctx context.Context, sessionID string) ([]practice.Answer, error) {
	var out []practice.Answer
	err := r.db.do(ctx, func(st *state) error {
		out = append(out, st.answers[sessionID]...)
		return nil
	})
	return out, err
}

func (r *sessionRepo) ListByStudent(ctx context.Context, studentID shared.StudentID, limit int) ([]practice.Session, error) {
	var out []practice.Session
	err := r.db.do(ctx, func(st *state) error {
		for _, s := range st.sessions {
			if s.StudentID == studentID {
				out = append(out, s)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

// ══════════════════════════════════════════════════════════════════════════════
// QUESTION CATALOG AND CYCLES
// ══════════════════════════════════════════════════════════════════════════════

type questionRepo struct {
	db *DB
}

func (r *questionRepo) AnswerKey(ctx context.Context, questionID string) (*practice.AnswerKey, error) {
	var out practice.AnswerKey
	err := r.db.do(ctx, func(st *state) error {
		k, ok := st.questions[questionID]
		if !ok {
			return shared.ErrQuestionNotFound.WithDetails(map[string]any{"question_id": questionID})
		}
		out = k
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *questionRepo) TopicQuestions(ctx context.Context, topicID string) ([]string, error) {
	var out []string
	err := r.db.do(ctx, func(st *state) error {
		out = append(out, st.topics[topicID]...)
		return nil
	})
	return out, err
}

type cycleRepo struct {
	db *DB
}

func (r *cycleRepo) MarkSeen(ctx context.Context, studentID shared.StudentID, topicID string, cycle int, questionIDs []string) error {
	return r.db.do(ctx, func(st *state) error {
		key := cycleKey{studentID, topicID, cycle}
		set := st.seen[key]
		if set == nil {
			set = make(map[string]struct{}, len(questionIDs))
			st.seen[key] = set
		}
		for _, q := range questionIDs {
			set[q] = struct{}{}
		}
		return nil
	})
}

func (r *cycleRepo) CurrentCycle(ctx context.Context, studentID shared.StudentID, topicID string) (int, error) {
	current := 0
	err := r.db.do(ctx, func(st *state) error {
		for k, set := range st.seen {
			if k.student == studentID && k.topic == topicID && len(set) > 0 && k.cycle > current {
				current = k.cycle
			}
		}
		return nil
	})
	return current, err
}

func (r *cycleRepo) SeenInCycle(ctx context.Context, studentID shared.StudentID, topicID string, cycle int) ([]string, error) {
	var out []string
	err := r.db.do(ctx, func(st *state) error {
		for q := range st.seen[cycleKey{studentID, topicID, cycle}] {
			out = append(out, q)
		}
		return nil
	})
	sort.Strings(out)
	return out, err
}
