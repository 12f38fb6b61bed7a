package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/studypets/studypets-core/internal/domain/leaderboard"
	"github.com/studypets/studypets-core/internal/domain/shared"
	"github.com/studypets/studypets-core/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardRepository implements leaderboard.Repository for PostgreSQL.
type LeaderboardRepository struct {
	conn *Connection
}

// NewLeaderboardRepository creates a new LeaderboardRepository.
func NewLeaderboardRepository(conn *Connection) *LeaderboardRepository {
	return &LeaderboardRepository{conn: conn}
}

// ─────────────────────────────────────────────────────────────────────────────
// WEEKLY XP
// ─────────────────────────────────────────────────────────────────────────────

// WeeklyXP sums xp_earned of sessions completed in [from, to) per student.
// Students without a profile fall back to their id as display name.
func (r *LeaderboardRepository) WeeklyXP(ctx context.Context, from, to time.Time) ([]leaderboard.WeeklyXP, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT s.student_id, COALESCE(p.display_name, s.student_id), SUM(s.xp_earned)
		FROM practice_sessions s
		LEFT JOIN student_profiles p ON p.student_id = s.student_id
		WHERE s.completed_at >= $1 AND s.completed_at < $2 AND s.xp_earned IS NOT NULL
		GROUP BY s.student_id, p.display_name
		ORDER BY s.student_id
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate weekly xp: %w", err)
	}
	defer rows.Close()

	var out []leaderboard.WeeklyXP
	for rows.Next() {
		var (
			w  leaderboard.WeeklyXP
			id string
		)
		if err := rows.Scan(&id, &w.DisplayName, &w.XP); err != nil {
			return nil, fmt.Errorf("failed to scan weekly xp: %w", err)
		}
		w.StudentID = shared.StudentID(id)
		out = append(out, w)
	}
	return out, rows.Err()
}

// ─────────────────────────────────────────────────────────────────────────────
// REWARD OPERATIONS
// ─────────────────────────────────────────────────────────────────────────────

// LockWeek takes a transaction-scoped advisory lock keyed by the week, so
// two distributors of the same week serialize on the database.
func (r *LeaderboardRepository) LockWeek(ctx context.Context, week timeutil.Date) error {
	_, err := r.conn.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "weekly_leaderboard_rewards:"+week.String())
	if err != nil {
		return fmt.Errorf("failed to lock week: %w", err)
	}
	return nil
}

// HasRewards reports whether any reward row exists for the week.
func (r *LeaderboardRepository) HasRewards(ctx context.Context, week timeutil.Date) (bool, error) {
	var exists bool
	err := r.conn.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM weekly_leaderboard_rewards WHERE week_start = $1)
	`, pgDate(week)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check rewards: %w", err)
	}
	return exists, nil
}

// InsertReward stores one row. A duplicate (week, student) is reported
// without aborting the surrounding transaction.
func (r *LeaderboardRepository) InsertReward(ctx context.Context, rw *leaderboard.Reward) error {
	tag, err := r.conn.Exec(ctx, `
		INSERT INTO weekly_leaderboard_rewards (id, week_start, student_id, rank, weekly_xp, coins_awarded, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (week_start, student_id) DO NOTHING
	`,
		rw.ID,
		pgDate(rw.WeekStart),
		rw.StudentID.String(),
		rw.Rank,
		rw.WeeklyXP,
		rw.CoinsAwarded,
		rw.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert reward: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrWeekAlreadyDistributed.WithDetails(map[string]any{"week_start": rw.WeekStart.String()})
	}
	return nil
}

const rewardColumns = `id, week_start, student_id, rank, weekly_xp, coins_awarded, created_at, seen_at`

func scanReward(row interface{ Scan(...any) error }) (*leaderboard.Reward, error) {
	var (
		rw      leaderboard.Reward
		week    time.Time
		student string
	)
	if err := row.Scan(&rw.ID, &week, &student, &rw.Rank, &rw.WeeklyXP, &rw.CoinsAwarded, &rw.CreatedAt, &rw.SeenAt); err != nil {
		return nil, err
	}
	rw.WeekStart = fromPGDate(week)
	rw.StudentID = shared.StudentID(student)
	return &rw, nil
}

func (r *LeaderboardRepository) listRewards(ctx context.Context, query string, args ...any) ([]leaderboard.Reward, error) {
	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query rewards: %w", err)
	}
	defer rows.Close()

	var out []leaderboard.Reward
	for rows.Next() {
		rw, err := scanReward(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reward: %w", err)
		}
		out = append(out, *rw)
	}
	return out, rows.Err()
}

// ListRewards returns the week's rows ordered by rank.
func (r *LeaderboardRepository) ListRewards(ctx context.Context, week timeutil.Date) ([]leaderboard.Reward, error) {
	return r.listRewards(ctx,
		`SELECT `+rewardColumns+` FROM weekly_leaderboard_rewards WHERE week_start = $1 ORDER BY rank, student_id`,
		pgDate(week))
}

// UnseenRewards returns the student's unacknowledged rows, newest week first.
func (r *LeaderboardRepository) UnseenRewards(ctx context.Context, studentID shared.StudentID) ([]leaderboard.Reward, error) {
	return r.listRewards(ctx,
		`SELECT `+rewardColumns+` FROM weekly_leaderboard_rewards
		WHERE student_id = $1 AND seen_at IS NULL
		ORDER BY week_start DESC`,
		studentID.String())
}

// MarkSeen sets seen_at once; later calls return the first timestamp.
func (r *LeaderboardRepository) MarkSeen(ctx context.Context, studentID shared.StudentID, rewardID string, at time.Time) (*leaderboard.Reward, error) {
	rw, err := scanReward(r.conn.QueryRow(ctx, `
		UPDATE weekly_leaderboard_rewards
		SET seen_at = COALESCE(seen_at, $3)
		WHERE id = $1 AND student_id = $2
		RETURNING `+rewardColumns,
		rewardID, studentID.String(), at))
	if IsNoRows(err) {
		return nil, shared.ErrRewardNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to mark reward seen: %w", err)
	}
	return rw, nil
}
