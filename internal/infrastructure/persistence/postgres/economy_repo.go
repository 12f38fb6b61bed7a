package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/studypets/studypets-core/internal/domain/daily"
	"github.com/studypets/studypets-core/internal/domain/economy"
	"github.com/studypets/studypets-core/internal/domain/shared"
	"github.com/studypets/studypets-core/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// WALLET REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// WalletRepository implements economy.Repository for PostgreSQL.
type WalletRepository struct {
	conn *Connection
}

// NewWalletRepository creates a new WalletRepository.
func NewWalletRepository(conn *Connection) *WalletRepository {
	return &WalletRepository{conn: conn}
}

const walletColumns = `student_id, xp, coins, food, current_streak, tier, created_at, updated_at`

func scanWallet(row interface{ Scan(...any) error }) (*economy.Wallet, error) {
	var (
		w    economy.Wallet
		id   string
		tier string
	)
	if err := row.Scan(&id, &w.XP, &w.Coins, &w.Food, &w.CurrentStreak, &tier, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return nil, err
	}
	w.StudentID = shared.StudentID(id)
	w.Tier = economy.Tier(tier)
	return &w, nil
}

// ensure creates the wallet row if it is missing.
func (r *WalletRepository) ensure(ctx context.Context, studentID shared.StudentID) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO student_economy (student_id)
		VALUES ($1)
		ON CONFLICT (student_id) DO NOTHING
	`, studentID.String())
	if err != nil {
		return fmt.Errorf("failed to create wallet: %w", err)
	}
	return nil
}

// GetOrCreate returns the wallet, creating an empty one on first touch.
func (r *WalletRepository) GetOrCreate(ctx context.Context, studentID shared.StudentID) (*economy.Wallet, error) {
	if err := r.ensure(ctx, studentID); err != nil {
		return nil, err
	}
	return r.Get(ctx, studentID)
}

// Get returns shared.ErrWalletNotFound when the student has no record.
func (r *WalletRepository) Get(ctx context.Context, studentID shared.StudentID) (*economy.Wallet, error) {
	w, err := scanWallet(r.conn.QueryRow(ctx,
		`SELECT `+walletColumns+` FROM student_economy WHERE student_id = $1`, studentID.String()))
	if IsNoRows(err) {
		return nil, shared.ErrWalletNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return w, nil
}

// Lock creates the wallet if needed and locks its row for the transaction.
func (r *WalletRepository) Lock(ctx context.Context, studentID shared.StudentID) (*economy.Wallet, error) {
	if err := r.ensure(ctx, studentID); err != nil {
		return nil, err
	}
	w, err := scanWallet(r.conn.QueryRow(ctx,
		`SELECT `+walletColumns+` FROM student_economy WHERE student_id = $1 FOR UPDATE`, studentID.String()))
	if err != nil {
		return nil, fmt.Errorf("failed to lock wallet: %w", err)
	}
	return w, nil
}

// Credit adds the deltas in one relative update.
func (r *WalletRepository) Credit(ctx context.Context, studentID shared.StudentID, c economy.Credit) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO student_economy (student_id, xp, coins, food)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (student_id) DO UPDATE SET
			xp = student_economy.xp + EXCLUDED.xp,
			coins = student_economy.coins + EXCLUDED.coins,
			food = student_economy.food + EXCLUDED.food,
			updated_at = NOW()
	`, studentID.String(), c.XP, c.Coins, c.Food)
	if err != nil {
		return fmt.Errorf("failed to credit wallet: %w", err)
	}
	return nil
}

// Spend checks and deducts in the same statement, so two concurrent spends
// can never both pass the balance check.
func (r *WalletRepository) Spend(ctx context.Context, studentID shared.StudentID, coins, food int) error {
	tag, err := r.conn.Exec(ctx, `
		UPDATE student_economy
		SET coins = coins - $2, food = food - $3, updated_at = NOW()
		WHERE student_id = $1 AND coins >= $2 AND food >= $3
	`, studentID.String(), coins, food)
	if err != nil {
		return fmt.Errorf("failed to spend: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	w, err := r.Get(ctx, studentID)
	if err != nil {
		if shared.IsNotFound(err) {
			return insufficientFor(economy.Wallet{}, coins, food)
		}
		return err
	}
	return insufficientFor(*w, coins, food)
}

func insufficientFor(w economy.Wallet, coins, food int) error {
	if w.Coins < coins {
		return shared.ErrInsufficientCoins.WithDetails(map[string]any{"required": coins, "available": w.Coins})
	}
	return shared.ErrInsufficientFood.WithDetails(map[string]any{"required": food, "available": w.Food})
}

// SetStreak stores the recomputed streak.
func (r *WalletRepository) SetStreak(ctx context.Context, studentID shared.StudentID, streak int) error {
	return r.set(ctx, studentID, `current_streak`, streak)
}

// SetTier stores the tier synced from the billing system.
func (r *WalletRepository) SetTier(ctx context.Context, studentID shared.StudentID, tier economy.Tier) error {
	return r.set(ctx, studentID, `tier`, string(tier))
}

func (r *WalletRepository) set(ctx context.Context, studentID shared.StudentID, column string, value any) error {
	tag, err := r.conn.Exec(ctx,
		`UPDATE student_economy SET `+column+` = $2, updated_at = NOW() WHERE student_id = $1`,
		studentID.String(), value)
	if err != nil {
		return fmt.Errorf("failed to update wallet %s: %w", column, err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrWalletNotFound
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DAILY STATUS REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// DailyRepository implements daily.Repository for PostgreSQL.
type DailyRepository struct {
	conn *Connection
}

// NewDailyRepository creates a new DailyRepository.
func NewDailyRepository(conn *Connection) *DailyRepository {
	return &DailyRepository{conn: conn}
}

// pgDate converts a platform-local date to the value pgx writes as DATE.
func pgDate(d timeutil.Date) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// fromPGDate reads a DATE column back.
func fromPGDate(t time.Time) timeutil.Date {
	return timeutil.NewDate(t.Year(), t.Month(), t.Day())
}

const dailyColumns = `student_id, date, has_practiced, mood, has_spun, spin_reward, created_at, updated_at`

func scanDaily(row interface{ Scan(...any) error }) (*daily.Status, error) {
	var (
		s    daily.Status
		id   string
		date time.Time
		mood *string
	)
	if err := row.Scan(&id, &date, &s.HasPracticed, &mood, &s.HasSpun, &s.SpinReward, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	s.StudentID = shared.StudentID(id)
	s.Date = fromPGDate(date)
	if mood != nil {
		m := daily.Mood(*mood)
		s.Mood = &m
	}
	return &s, nil
}

// Get returns shared.ErrDailyStatusMissing when no row exists.
func (r *DailyRepository) Get(ctx context.Context, studentID shared.StudentID, date timeutil.Date) (*daily.Status, error) {
	s, err := scanDaily(r.conn.QueryRow(ctx,
		`SELECT `+dailyColumns+` FROM daily_status WHERE student_id = $1 AND date = $2`,
		studentID.String(), pgDate(date)))
	if IsNoRows(err) {
		return nil, shared.ErrDailyStatusMissing
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get daily status: %w", err)
	}
	return s, nil
}

// MarkPracticed sets has_practiced, creating the row if needed.
func (r *DailyRepository) MarkPracticed(ctx context.Context, studentID shared.StudentID, date timeutil.Date) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO daily_status (student_id, date, has_practiced)
		VALUES ($1, $2, TRUE)
		ON CONFLICT (student_id, date) DO UPDATE SET
			has_practiced = TRUE,
			updated_at = NOW()
	`, studentID.String(), pgDate(date))
	if err != nil {
		return fmt.Errorf("failed to mark practiced: %w", err)
	}
	return nil
}

// SetMood stores the day's mood, creating the row if needed.
func (r *DailyRepository) SetMood(ctx context.Context, studentID shared.StudentID, date timeutil.Date, mood daily.Mood) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO daily_status (student_id, date, mood)
		VALUES ($1, $2, $3)
		ON CONFLICT (student_id, date) DO UPDATE SET
			mood = EXCLUDED.mood,
			updated_at = NOW()
	`, studentID.String(), pgDate(date), string(mood))
	if err != nil {
		return fmt.Errorf("failed to set mood: %w", err)
	}
	return nil
}

// ClaimSpin records the spin only if the day has none yet. The conditional
// upsert affects no row when has_spun is already true.
func (r *DailyRepository) ClaimSpin(ctx context.Context, studentID shared.StudentID, date timeutil.Date, reward int) error {
	tag, err := r.conn.Exec(ctx, `
		INSERT INTO daily_status (student_id, date, has_spun, spin_reward)
		VALUES ($1, $2, TRUE, $3)
		ON CONFLICT (student_id, date) DO UPDATE SET
			has_spun = TRUE,
			spin_reward = EXCLUDED.spin_reward,
			updated_at = NOW()
		WHERE daily_status.has_spun = FALSE
	`, studentID.String(), pgDate(date), reward)
	if err != nil {
		return fmt.Errorf("failed to claim spin: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrSpinAlreadyUsed
	}
	return nil
}

// PracticedDates lists practiced dates on or before the given date, newest first.
func (r *DailyRepository) PracticedDates(ctx context.Context, studentID shared.StudentID, onOrBefore timeutil.Date) ([]timeutil.Date, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT date FROM daily_status
		WHERE student_id = $1 AND has_practiced AND date <= $2
		ORDER BY date DESC
	`, studentID.String(), pgDate(onOrBefore))
	if err != nil {
		return nil, fmt.Errorf("failed to query practiced dates: %w", err)
	}
	defer rows.Close()

	var dates []timeutil.Date
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("failed to scan practiced date: %w", err)
		}
		dates = append(dates, fromPGDate(d))
	}
	return dates, rows.Err()
}

// Range lists existing rows in [from, to], oldest first.
func (r *DailyRepository) Range(ctx context.Context, studentID shared.StudentID, from, to timeutil.Date) ([]daily.Status, error) {
	rows, err := r.conn.Query(ctx,
		`SELECT `+dailyColumns+` FROM daily_status
		WHERE student_id = $1 AND date BETWEEN $2 AND $3
		ORDER BY date`,
		studentID.String(), pgDate(from), pgDate(to))
	if err != nil {
		return nil, fmt.Errorf("failed to query daily range: %w", err)
	}
	defer rows.Close()

	var out []daily.Status
	for rows.Next() {
		s, err := scanDaily(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan daily status: %w", err)
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}
