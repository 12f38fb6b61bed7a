// Package memory is an in-process implementation of every repository port.
// It backs the application tests and local runs without Postgres.
//
// One mutex guards the whole store. WithinTx holds it for the duration of
// the transaction and restores a snapshot when fn fails, which gives the same
// all-or-nothing and serialization guarantees as the Postgres store.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/studypets/studypets-core/internal/domain/access"
	"github.com/studypets/studypets-core/internal/domain/daily"
	"github.com/studypets/studypets-core/internal/domain/economy"
	"github.com/studypets/studypets-core/internal/domain/leaderboard"
	"github.com/studypets/studypets-core/internal/domain/pet"
	"github.com/studypets/studypets-core/internal/domain/practice"
	"github.com/studypets/studypets-core/internal/domain/shared"
	"github.com/studypets/studypets-core/pkg/timeutil"
)

type dayKey struct {
	student shared.StudentID
	date    timeutil.Date
}

type cycleKey struct {
	student shared.StudentID
	topic   string
	cycle   int
}

type state struct {
	wallets   map[shared.StudentID]economy.Wallet
	profiles  map[shared.StudentID]string
	links     map[string]map[shared.StudentID]struct{}
	days      map[dayKey]daily.Status
	sessions  map[string]practice.Session
	answers   map[string][]practice.Answer
	questions map[string]practice.AnswerKey
	topics    map[string][]string
	seen      map[cycleKey]map[string]struct{}
	defs      map[string]pet.Definition
	owned     map[string]pet.Owned
	rewards   map[string]leaderboard.Reward
	keys      map[string]access.IntegrationKey
}

func newState() *state {
	return &state{
		wallets:   make(map[shared.StudentID]economy.Wallet),
		profiles:  make(map[shared.StudentID]string),
		links:     make(map[string]map[shared.StudentID]struct{}),
		days:      make(map[dayKey]daily.Status),
		sessions:  make(map[string]practice.Session),
		answers:   make(map[string][]practice.Answer),
		questions: make(map[string]practice.AnswerKey),
		topics:    make(map[string][]string),
		seen:      make(map[cycleKey]map[string]struct{}),
		defs:      make(map[string]pet.Definition),
		owned:     make(map[string]pet.Owned),
		rewards:   make(map[string]leaderboard.Reward),
		keys:      make(map[string]access.IntegrationKey),
	}
}

// clone copies every table. Rows are stored by value and their pointer
// fields are replaced, never mutated, so copying the maps is enough.
func (s *state) clone() *state {
	c := newState()
	copyMap(c.wallets, s.wallets)
	copyMap(c.profiles, s.profiles)
	for k, v := range s.links {
		inner := make(map[shared.StudentID]struct{}, len(v))
		copyMap(inner, v)
		c.links[k] = inner
	}
	copyMap(c.days, s.days)
	copyMap(c.sessions, s.sessions)
	for k, v := range s.answers {
		c.answers[k] = append([]practice.Answer(nil), v...)
	}
	copyMap(c.questions, s.questions)
	copyMap(c.topics, s.topics)
	for k, v := range s.seen {
		inner := make(map[string]struct{}, len(v))
		copyMap(inner, v)
		c.seen[k] = inner
	}
	copyMap(c.defs, s.defs)
	copyMap(c.owned, s.owned)
	copyMap(c.rewards, s.rewards)
	copyMap(c.keys, s.keys)
	return c
}

func copyMap[K comparable, V any](dst, src map[K]V) {
	for k, v := range src {
		dst[k] = v
	}
}

// DB is the in-memory store.
type DB struct {
	mu    sync.Mutex
	st    *state
	clock timeutil.Clock
	newID func() string
}

// Option configures a DB.
type Option func(*DB)

// WithClock sets the clock used for row timestamps.
func WithClock(c timeutil.Clock) Option {
	return func(db *DB) { db.clock = c }
}

// WithIDs sets the id generator for rows the store creates itself.
func WithIDs(newID func() string) Option {
	return func(db *DB) { db.newID = newID }
}

// New creates an empty store.
func New(opts ...Option) *DB {
	db := &DB{
		st:    newState(),
		clock: timeutil.SystemClock{},
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(db)
	}
	return db
}

type txKey struct{}

// WithinTx implements shared.Transactor. Nested calls join the outer transaction.
func (db *DB) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if db.inTx(ctx) {
		return fn(ctx)
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	snapshot := db.st.clone()
	if err := fn(context.WithValue(ctx, txKey{}, db)); err != nil {
		db.st = snapshot
		return err
	}
	return nil
}

func (db *DB) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(txKey{}).(*DB)
	return owner == db
}

// do runs fn against the current state, taking the lock unless ctx already
// belongs to a transaction on this store.
func (db *DB) do(ctx context.Context, fn func(st *state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if db.inTx(ctx) {
		return fn(db.st)
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	return fn(db.st)
}

func (db *DB) now() time.Time {
	return db.clock.Now()
}

// ══════════════════════════════════════════════════════════════════════════════
// SEEDING
// ══════════════════════════════════════════════════════════════════════════════

// SetProfile stores a student's display name.
func (db *DB) SetProfile(studentID shared.StudentID, displayName string) {
	_ = db.do(context.Background(), func(st *state) error {
		st.profiles[studentID] = displayName
		return nil
	})
}

// LinkParent records a parent/student relationship.
func (db *DB) LinkParent(parentID string, studentID shared.StudentID) {
	_ = db.do(context.Background(), func(st *state) error {
		if st.links[parentID] == nil {
			st.links[parentID] = make(map[shared.StudentID]struct{})
		}
		st.links[parentID][studentID] = struct{}{}
		return nil
	})
}

// AddQuestion adds a question to the catalog, appended to its topic.
func (db *DB) AddQuestion(key practice.AnswerKey) {
	_ = db.do(context.Background(), func(st *state) error {
		if _, exists := st.questions[key.QuestionID]; !exists {
			st.topics[key.TopicID] = append(st.topics[key.TopicID], key.QuestionID)
		}
		st.questions[key.QuestionID] = key
		return nil
	})
}

// AddPetDefinition adds a pet to the catalog.
func (db *DB) AddPetDefinition(def pet.Definition) {
	_ = db.do(context.Background(), func(st *state) error {
		st.defs[def.ID] = def
		return nil
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY ACCESSORS
// ══════════════════════════════════════════════════════════════════════════════

// Wallets returns the economy repository.
func (db *DB) Wallets() economy.Repository { return &walletRepo{db: db} }

// Daily returns the daily status repository.
func (db *DB) Daily() daily.Repository { return &dailyRepo{db: db} }

// Sessions returns the practice session repository.
func (db *DB) Sessions() practice.SessionRepository { return &sessionRepo{db: db} }

// Questions returns the question catalog.
func (db *DB) Questions() practice.QuestionCatalog { return &questionRepo{db: db} }

// Cycles returns the cycle progress repository.
func (db *DB) Cycles() practice.CycleRepository { return &cycleRepo{db: db} }

// Pets returns the owned pet repository.
func (db *DB) Pets() pet.Repository { return &petRepo{db: db} }

// Catalog returns the pet catalog.
func (db *DB) Catalog() pet.Catalog { return &catalogRepo{db: db} }

// Rewards returns the leaderboard repository.
func (db *DB) Rewards() leaderboard.Repository { return &leaderboardRepo{db: db} }

// Links returns the parent link repository.
func (db *DB) Links() access.LinkRepository { return &linkRepo{db: db} }

// Keys returns the integration key repository.
func (db *DB) Keys() access.KeyRepository { return &keyRepo{db: db} }

// Tx returns the store itself; it mirrors the Postgres store's accessor.
func (db *DB) Tx() shared.Transactor { return db }
