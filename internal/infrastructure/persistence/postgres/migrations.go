package postgres

import (
	"context"
	"fmt"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATOR
// Migrations are embedded and forward-only. Each one runs in its own
// transaction under a transaction-scoped advisory lock, so an API and a worker
// starting together apply it exactly once.
// ══════════════════════════════════════════════════════════════════════════════

const migrationLockKey = "studypets:schema_migrations"

// Migration is one embedded schema change.
type Migration struct {
	Version   int
	Name      string
	SQL       string
	AppliedAt time.Time
	IsApplied bool
}

// Migrations returns the embedded migrations in version order.
func Migrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_wallets_and_daily_status", SQL: migration001},
		{Version: 2, Name: "create_practice", SQL: migration002},
		{Version: 3, Name: "create_pets_and_rewards", SQL: migration003},
	}
}

// Migrator applies the embedded migrations.
type Migrator struct {
	conn       *Connection
	migrations []Migration
}

// NewMigrator creates a migrator over the embedded migrations.
func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{conn: conn, migrations: Migrations()}
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	_, err := m.conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	return nil
}

// Migrate applies every pending migration and returns how many it applied.
func (m *Migrator) Migrate(ctx context.Context) (int, error) {
	if err := m.ensureTable(ctx); err != nil {
		return 0, err
	}

	applied := 0
	for _, mig := range m.migrations {
		err := m.conn.WithinTx(ctx, func(ctx context.Context) error {
			if _, err := m.conn.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, migrationLockKey); err != nil {
				return err
			}
			var done bool
			if err := m.conn.QueryRow(ctx,
				`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)`, mig.Version,
			).Scan(&done); err != nil {
				return err
			}
			if done {
				return nil
			}
			if _, err := m.conn.Exec(ctx, mig.SQL); err != nil {
				return err
			}
			if _, err := m.conn.Exec(ctx,
				`INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, mig.Version, mig.Name,
			); err != nil {
				return err
			}
			applied++
			return nil
		})
		if err != nil {
			return applied, fmt.Errorf("migration %03d %s: %w", mig.Version, mig.Name, err)
		}
	}
	return applied, nil
}

// Status lists every embedded migration with its applied time, if any.
func (m *Migrator) Status(ctx context.Context) ([]Migration, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}

	rows, err := m.conn.Query(ctx, `SELECT version, applied_at FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("query schema_migrations: %w", err)
	}
	defer rows.Close()

	appliedAt := make(map[int]time.Time)
	for rows.Next() {
		var (
			version int
			at      time.Time
		)
		if err := rows.Scan(&version, &at); err != nil {
			return nil, fmt.Errorf("scan schema_migrations: %w", err)
		}
		appliedAt[version] = at
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]Migration, len(m.migrations))
	copy(out, m.migrations)
	for i := range out {
		if at, ok := appliedAt[out[i].Version]; ok {
			out[i].IsApplied = true
			out[i].AppliedAt = at
		}
	}
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: WALLETS, DAILY STATUS, PROFILES, ACCESS
// ══════════════════════════════════════════════════════════════════════════════

const migration001 = `
-- Migration: Create student_economy and daily status
-- Version: 001

-- Display names used by the leaderboard; owned by the identity service.
CREATE TABLE IF NOT EXISTS student_profiles (
    student_id TEXT PRIMARY KEY,
    display_name VARCHAR(100) NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

-- One economy record per student. Balances never go negative.
CREATE TABLE IF NOT EXISTS student_economy (
    student_id TEXT PRIMARY KEY,
    xp INTEGER NOT NULL DEFAULT 0,
    coins INTEGER NOT NULL DEFAULT 0,
    food INTEGER NOT NULL DEFAULT 0,
    current_streak INTEGER NOT NULL DEFAULT 0,
    tier VARCHAR(10) NOT NULL DEFAULT 'core',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT wallets_xp_non_negative CHECK (xp >= 0),
    CONSTRAINT wallets_coins_non_negative CHECK (coins >= 0),
    CONSTRAINT wallets_food_non_negative CHECK (food >= 0),
    CONSTRAINT wallets_streak_non_negative CHECK (current_streak >= 0),
    CONSTRAINT wallets_valid_tier CHECK (tier IN ('core', 'plus', 'pro'))
);

-- One row per student per platform-local calendar day.
CREATE TABLE IF NOT EXISTS daily_status (
    student_id TEXT NOT NULL,
    date DATE NOT NULL,
    has_practiced BOOLEAN NOT NULL DEFAULT FALSE,
    mood VARCHAR(20),
    has_spun BOOLEAN NOT NULL DEFAULT FALSE,
    spin_reward INTEGER,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (student_id, date),
    CONSTRAINT daily_status_valid_mood CHECK (mood IS NULL OR mood IN ('happy', 'excited', 'okay', 'tired', 'sad')),
    CONSTRAINT daily_status_spin_consistent CHECK (has_spun = (spin_reward IS NOT NULL))
);

CREATE INDEX IF NOT EXISTS idx_daily_status_practiced
    ON daily_status(student_id, date DESC) WHERE has_practiced;

-- Parent accounts may read their linked children's records.
CREATE TABLE IF NOT EXISTS parent_student_links (
    parent_id TEXT NOT NULL,
    student_id TEXT NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    PRIMARY KEY (parent_id, student_id)
);

-- Machine credentials; only a bcrypt hash of the secret is stored.
CREATE TABLE IF NOT EXISTS integration_keys (
    id TEXT PRIMARY KEY,
    name VARCHAR(100) NOT NULL,
    secret_hash BYTEA NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    revoked_at TIMESTAMP WITH TIME ZONE
);
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: PRACTICE SESSIONS, ANSWERS, QUESTION CYCLES
// ══════════════════════════════════════════════════════════════════════════════

const migration002 = `
-- Migration: Create practice tables
-- Version: 002

-- Curriculum read model. Written by the content pipeline, read for grading.
CREATE TABLE IF NOT EXISTS questions (
    id TEXT PRIMARY KEY,
    topic_id TEXT NOT NULL,
    position INTEGER NOT NULL DEFAULT 0,
    question_type VARCHAR(20) NOT NULL,
    correct_options TEXT[] NOT NULL DEFAULT '{}',
    accepted_answers TEXT[] NOT NULL DEFAULT '{}',

    CONSTRAINT questions_valid_type CHECK (question_type IN ('single_choice', 'multi_select', 'text'))
);

CREATE INDEX IF NOT EXISTS idx_questions_topic ON questions(topic_id, position, id);

CREATE TABLE IF NOT EXISTS practice_sessions (
    id TEXT PRIMARY KEY,
    student_id TEXT NOT NULL,
    topic_id TEXT NOT NULL,
    curriculum_refs TEXT[] NOT NULL DEFAULT '{}',
    cycle_number INTEGER NOT NULL,
    total_questions INTEGER NOT NULL,
    correct_count INTEGER NOT NULL DEFAULT 0,
    xp_earned INTEGER,
    coins_earned INTEGER,
    total_time_seconds INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    completed_at TIMESTAMP WITH TIME ZONE,

    CONSTRAINT practice_sessions_valid_cycle CHECK (cycle_number >= 1),
    CONSTRAINT practice_sessions_valid_total CHECK (total_questions > 0),
    CONSTRAINT practice_sessions_valid_correct CHECK (correct_count >= 0 AND correct_count <= total_questions),
    CONSTRAINT practice_sessions_rewards_on_completion CHECK (
        (completed_at IS NULL AND xp_earned IS NULL AND coins_earned IS NULL) OR
        (completed_at IS NOT NULL AND xp_earned IS NOT NULL AND coins_earned IS NOT NULL)
    )
);

-- Quota counting and history.
CREATE INDEX IF NOT EXISTS idx_practice_sessions_student_created
    ON practice_sessions(student_id, created_at DESC);

-- Weekly leaderboard aggregation.
CREATE INDEX IF NOT EXISTS idx_practice_sessions_completed
    ON practice_sessions(completed_at) WHERE completed_at IS NOT NULL;

-- Ordered question list of a session.
CREATE TABLE IF NOT EXISTS practice_session_questions (
    session_id TEXT NOT NULL REFERENCES practice_sessions(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    question_id TEXT NOT NULL,
    PRIMARY KEY (session_id, position),
    UNIQUE (session_id, question_id)
);

CREATE TABLE IF NOT EXISTS practice_answers (
    id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL REFERENCES practice_sessions(id) ON DELETE CASCADE,
    question_id TEXT NOT NULL,
    selected_options TEXT[] NOT NULL DEFAULT '{}',
    text_answer TEXT NOT NULL DEFAULT '',
    is_correct BOOLEAN NOT NULL,
    time_spent_seconds INTEGER NOT NULL DEFAULT 0,
    answered_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT session_answers_one_per_question UNIQUE (session_id, question_id),
    CONSTRAINT session_answers_valid_time CHECK (time_spent_seconds >= 0)
);

-- Which questions a student has seen per topic and cycle.
CREATE TABLE IF NOT EXISTS question_cycle_progress (
    student_id TEXT NOT NULL,
    topic_id TEXT NOT NULL,
    cycle_number INTEGER NOT NULL,
    question_id TEXT NOT NULL,
    seen_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    PRIMARY KEY (student_id, topic_id, cycle_number, question_id)
);
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: PETS AND WEEKLY REWARDS
// ══════════════════════════════════════════════════════════════════════════════

const migration003 = `
-- Migration: Create pet collection and weekly rewards
-- Version: 003

CREATE TABLE IF NOT EXISTS pet_definitions (
    id TEXT PRIMARY KEY,
    name VARCHAR(100) NOT NULL,
    rarity VARCHAR(20) NOT NULL,

    CONSTRAINT pet_definitions_valid_rarity CHECK (rarity IN ('common', 'rare', 'epic', 'legendary'))
);

CREATE INDEX IF NOT EXISTS idx_pet_definitions_rarity ON pet_definitions(rarity);

-- A stack per (student, pet). Duplicates raise count; a stack at zero is deleted.
CREATE TABLE IF NOT EXISTS owned_pets (
    id TEXT PRIMARY KEY,
    student_id TEXT NOT NULL,
    pet_id TEXT NOT NULL REFERENCES pet_definitions(id),
    count INTEGER NOT NULL DEFAULT 1,
    tier INTEGER NOT NULL DEFAULT 1,
    food_fed INTEGER NOT NULL DEFAULT 0,
    acquired_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT owned_pets_one_stack UNIQUE (student_id, pet_id),
    CONSTRAINT owned_pets_positive_count CHECK (count >= 1),
    CONSTRAINT owned_pets_valid_tier CHECK (tier BETWEEN 1 AND 3),
    CONSTRAINT owned_pets_valid_food CHECK (food_fed >= 0)
);

CREATE INDEX IF NOT EXISTS idx_owned_pets_student ON owned_pets(student_id, acquired_at);

-- The unique key makes a week's payout idempotent.
CREATE TABLE IF NOT EXISTS weekly_leaderboard_rewards (
    id TEXT PRIMARY KEY,
    week_start DATE NOT NULL,
    student_id TEXT NOT NULL,
    rank INTEGER NOT NULL,
    weekly_xp INTEGER NOT NULL,
    coins_awarded INTEGER NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    seen_at TIMESTAMP WITH TIME ZONE,

    CONSTRAINT weekly_rewards_once_per_week UNIQUE (week_start, student_id),
    CONSTRAINT weekly_rewards_monday CHECK (EXTRACT(ISODOW FROM week_start) = 1),
    CONSTRAINT weekly_rewards_valid_rank CHECK (rank >= 1),
    CONSTRAINT weekly_rewards_valid_coins CHECK (coins_awarded >= 0)
);

CREATE INDEX IF NOT EXISTS idx_weekly_rewards_unseen
    ON weekly_leaderboard_rewards(student_id, week_start DESC) WHERE seen_at IS NULL;
`
