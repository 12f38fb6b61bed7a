package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/studypets/studypets-core/internal/domain/practice"
	"github.com/studypets/studypets-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SESSION REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// SessionRepository implements practice.SessionRepository for PostgreSQL.
type SessionRepository struct {
	conn *Connection
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(conn *Connection) *SessionRepository {
	return &SessionRepository{conn: conn}
}

const sessionColumns = `id, student_id, topic_id, curriculum_refs, cycle_number, total_questions,
	correct_count, xp_earned, coins_earned, total_time_seconds, created_at, completed_at,
	(SELECT COALESCE(array_agg(sq.question_id ORDER BY sq.position), '{}')
	 FROM practice_session_questions sq WHERE sq.session_id = practice_sessions.id)`

func scanSession(row interface{ Scan(...any) error }) (*practice.Session, error) {
	var (
		s       practice.Session
		student string
	)
	err := row.Scan(
		&s.ID,
		&student,
		&s.TopicID,
		&s.CurriculumRefs,
		&s.CycleNumber,
		&s.TotalQuestions,
		&s.CorrectCount,
		&s.XPEarned,
		&s.CoinsEarned,
		&s.TotalTimeSeconds,
		&s.CreatedAt,
		&s.CompletedAt,
		&s.QuestionIDs,
	)
	if err != nil {
		return nil, err
	}
	s.StudentID = shared.StudentID(student)
	return &s, nil
}

// Create inserts the session and its ordered question rows.
func (r *SessionRepository) Create(ctx context.Context, s *practice.Session) error {
	refs := s.CurriculumRefs
	if refs == nil {
		refs = []string{}
	}
	_, err := r.conn.Exec(ctx, `
		INSERT INTO practice_sessions
		(id, student_id, topic_id, curriculum_refs, cycle_number, total_questions, correct_count, total_time_seconds, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, 0, $7)
	`,
		s.ID,
		s.StudentID.String(),
		s.TopicID,
		refs,
		s.CycleNumber,
		s.TotalQuestions,
		s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	_, err = r.conn.Exec(ctx, `
		INSERT INTO practice_session_questions (session_id, position, question_id)
		SELECT $1, t.ord - 1, t.q
		FROM unnest($2::text[]) WITH ORDINALITY AS t(q, ord)
	`, s.ID, s.QuestionIDs)
	if err != nil {
		return fmt.Errorf("failed to insert session questions: %w", err)
	}
	return nil
}

func (r *SessionRepository) get(ctx context.Context, id, suffix string) (*practice.Session, error) {
	s, err := scanSession(r.conn.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM practice_sessions WHERE id = $1`+suffix, id))
	if IsNoRows(err) {
		return nil, shared.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return s, nil
}

// Get returns shared.ErrSessionNotFound when missing.
func (r *SessionRepository) Get(ctx context.Context, id string) (*practice.Session, error) {
	return r.get(ctx, id, "")
}

// GetForUpdate is Get plus a row lock held until the transaction ends.
func (r *SessionRepository) GetForUpdate(ctx context.Context, id string) (*practice.Session, error) {
	return r.get(ctx, id, " FOR UPDATE")
}

// CountCreatedBetween counts the student's sessions created in [from, to).
func (r *SessionRepository) CountCreatedBetween(ctx context.Context, studentID shared.StudentID, from, to time.Time) (int, error) {
	var n int
	err := r.conn.QueryRow(ctx, `
		SELECT COUNT(*) FROM practice_sessions
		WHERE student_id = $1 AND created_at >= $2 AND created_at < $3
	`, studentID.String(), from, to).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return n, nil
}

// SaveCompletion writes the terminal state. The completed_at guard keeps a
// second completion from overwriting the first.
func (r *SessionRepository) SaveCompletion(ctx context.Context, s *practice.Session) error {
	tag, err := r.conn.Exec(ctx, `
		UPDATE practice_sessions
		SET correct_count = $2, total_time_seconds = $3, xp_earned = $4, coins_earned = $5, completed_at = $6
		WHERE id = $1 AND completed_at IS NULL
	`,
		s.ID,
		s.CorrectCount,
		s.TotalTimeSeconds,
		s.XPEarned,
		s.CoinsEarned,
		s.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save completion: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	if _, err := r.Get(ctx, s.ID); err != nil {
		return err
	}
	return shared.ErrSessionAlreadyCompleted
}

// InsertAnswer stores the graded answer and bumps the running correct count.
func (r *SessionRepository) InsertAnswer(ctx context.Context, a *practice.Answer) error {
	selected := a.SelectedOptions
	if selected == nil {
		selected = []string{}
	}
	tag, err := r.conn.Exec(ctx, `
		INSERT INTO practice_answers
		(id, session_id, question_id, selected_options, text_answer, is_correct, time_spent_seconds, answered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (session_id, question_id) DO NOTHING
	`,
		a.ID,
		a.SessionID,
		a.QuestionID,
		selected,
		a.TextAnswer,
		a.IsCorrect,
		a.TimeSpentSeconds,
		a.AnsweredAt,
	)
	if IsForeignKeyViolation(err) {
		return shared.ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to insert answer: %w", err)
	}
	// A conflicting insert affects no row and leaves the transaction usable.
	if tag.RowsAffected() == 0 {
		return shared.ErrAnswerAlreadySubmitted.WithDetails(map[string]any{"question_id": a.QuestionID})
	}

	if a.IsCorrect {
		if _, err := r.conn.Exec(ctx, `
			UPDATE practice_sessions SET correct_count = correct_count + 1 WHERE id = $1
		`, a.SessionID); err != nil {
			return fmt.Errorf("failed to update correct count: %w", err)
		}
	}
	return nil
}

// ListAnswers returns the session's answers in answer order.
func (r *SessionRepository) ListAnswers(ctx context.Context, sessionID string) ([]practice.Answer, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT id, session_id, question_id, selected_options, text_answer, is_correct, time_spent_seconds, answered_at
		FROM practice_answers
		WHERE session_id = $1
		ORDER BY answered_at, id
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query answers: %w", err)
	}
	defer rows.Close()

	var out []practice.Answer
	for rows.Next() {
		var a practice.Answer
		if err := rows.Scan(
			&a.ID,
			&a.SessionID,
			&a.QuestionID,
			&a.SelectedOptions,
			&a.TextAnswer,
			&a.IsCorrect,
			&a.TimeSpentSeconds,
			&a.AnsweredAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan answer: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListByStudent returns the student's most recent sessions, newest first.
func (r *SessionRepository) ListByStudent(ctx context.Context, studentID shared.StudentID, limit int) ([]practice.Session, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.conn.Query(ctx,
		`SELECT `+sessionColumns+` FROM practice_sessions
		WHERE student_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`,
		studentID.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var out []practice.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// ══════════════════════════════════════════════════════════════════════════════
// QUESTION CATALOG
// ══════════════════════════════════════════════════════════════════════════════

// QuestionRepository implements practice.QuestionCatalog for PostgreSQL.
type QuestionRepository struct {
	conn *Connection
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(conn *Connection) *QuestionRepository {
	return &QuestionRepository{conn: conn}
}

// AnswerKey returns shared.ErrQuestionNotFound for unknown questions.
func (r *QuestionRepository) AnswerKey(ctx context.Context, questionID string) (*practice.AnswerKey, error) {
	var (
		k     practice.AnswerKey
		qType string
	)
	err := r.conn.QueryRow(ctx, `
		SELECT id, topic_id, question_type, correct_options, accepted_answers
		FROM questions
		WHERE id = $1
	`, questionID).Scan(&k.QuestionID, &k.TopicID, &qType, &k.CorrectOptions, &k.AcceptedAnswers)
	if IsNoRows(err) {
		return nil, shared.ErrQuestionNotFound.WithDetails(map[string]any{"question_id": questionID})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get answer key: %w", err)
	}
	k.Type = practice.QuestionType(qType)
	return &k, nil
}

// TopicQuestions lists the topic's question ids in display order.
func (r *QuestionRepository) TopicQuestions(ctx context.Context, topicID string) ([]string, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT id FROM questions WHERE topic_id = $1 ORDER BY position, id
	`, topicID)
	if err != nil {
		return nil, fmt.Errorf("failed to query topic questions: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan topic questions: %w", err)
	}
	return ids, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// QUESTION CYCLES
// ══════════════════════════════════════════════════════════════════════════════

// CycleRepository implements practice.CycleRepository for PostgreSQL.
type CycleRepository struct {
	conn *Connection
}

// NewCycleRepository creates a new CycleRepository.
func NewCycleRepository(conn *Connection) *CycleRepository {
	return &CycleRepository{conn: conn}
}

// MarkSeen inserts progress rows, ignoring ones that already exist.
func (r *CycleRepository) MarkSeen(ctx context.Context, studentID shared.StudentID, topicID string, cycle int, questionIDs []string) error {
	if len(questionIDs) == 0 {
		return nil
	}
	_, err := r.conn.Exec(ctx, `
		INSERT INTO question_cycle_progress (student_id, topic_id, cycle_number, question_id)
		SELECT $1, $2, $3, q FROM unnest($4::text[]) AS q
		ON CONFLICT DO NOTHING
	`, studentID.String(), topicID, cycle, questionIDs)
	if err != nil {
		return fmt.Errorf("failed to mark questions seen: %w", err)
	}
	return nil
}

// CurrentCycle returns the highest cycle with progress, or 0 when none.
func (r *CycleRepository) CurrentCycle(ctx context.Context, studentID shared.StudentID, topicID string) (int, error) {
	var cycle int
	err := r.conn.QueryRow(ctx, `
		SELECT COALESCE(MAX(cycle_number), 0) FROM question_cycle_progress
		WHERE student_id = $1 AND topic_id = $2
	`, studentID.String(), topicID).Scan(&cycle)
	if err != nil {
		return 0, fmt.Errorf("failed to get current cycle: %w", err)
	}
	return cycle, nil
}

// SeenInCycle lists the question ids marked in the cycle.
func (r *CycleRepository) SeenInCycle(ctx context.Context, studentID shared.StudentID, topicID string, cycle int) ([]string, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT question_id FROM question_cycle_progress
		WHERE student_id = $1 AND topic_id = $2 AND cycle_number = $3
		ORDER BY question_id
	`, studentID.String(), topicID, cycle)
	if err != nil {
		return nil, fmt.Errorf("failed to query seen questions: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan seen questions: %w", err)
	}
	return ids, nil
}
