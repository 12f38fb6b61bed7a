package command

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/studypets/studypets-core/internal/domain/economy"
	"github.com/studypets/studypets-core/internal/domain/pet"
	"github.com/studypets/studypets-core/internal/domain/practice"
	"github.com/studypets/studypets-core/internal/domain/shared"
	"github.com/studypets/studypets-core/internal/infrastructure/persistence/memory"
	"github.com/studypets/studypets-core/pkg/timeutil"
)

// recorder collects published events.
type recorder struct {
	mu     sync.Mutex
	events []shared.Event
}

func (r *recorder) Publish(e shared.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) ofType(t shared.EventType) []shared.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []shared.Event
	for _, e := range r.events {
		if e.EventType() == t {
			out = append(out, e)
		}
	}
	return out
}

// scriptedRand replays fixed values, then repeats the last one.
type scriptedRand struct {
	floats []float64
	ints   []int
}

func (s *scriptedRand) Float64() float64 {
	v := s.floats[0]
	if len(s.floats) > 1 {
		s.floats = s.floats[1:]
	}
	return v
}

func (s *scriptedRand) IntN(n int) int {
	if len(s.ints) == 0 {
		return 0
	}
	v := s.ints[0]
	if len(s.ints) > 1 {
		s.ints = s.ints[1:]
	}
	return v % n
}

type fixture struct {
	t      *testing.T
	ctx    context.Context
	db     *memory.DB
	clock  *timeutil.FixedClock
	events *recorder
	deps   Deps
}

// monday10am is 2024-06-03 10:00 in the platform timezone.
var monday10am = time.Date(2024, 6, 3, 10, 0, 0, 0, timeutil.PlatformTZ)

func newFixture(t *testing.T) *fixture {
	t.Helper()

	clock := timeutil.NewFixedClock(monday10am)
	var seq atomic.Int64
	newID := func() string { return fmt.Sprintf("id-%04d", seq.Add(1)) }

	db := memory.New(memory.WithClock(clock), memory.WithIDs(newID))
	for i := 1; i <= 10; i++ {
		db.AddQuestion(practice.AnswerKey{
			QuestionID:     fmt.Sprintf("q%d", i),
			TopicID:        "fractions",
			Type:           practice.QuestionSingleChoice,
			CorrectOptions: []string{"a"},
		})
	}
	db.AddPetDefinition(pet.Definition{ID: "pup", Name: "Pup", Rarity: pet.Common})
	db.AddPetDefinition(pet.Definition{ID: "kit", Name: "Kit", Rarity: pet.Common})
	db.AddPetDefinition(pet.Definition{ID: "owl", Name: "Owl", Rarity: pet.Rare})
	db.AddPetDefinition(pet.Definition{ID: "fox", Name: "Fox", Rarity: pet.Epic})
	db.AddPetDefinition(pet.Definition{ID: "drake", Name: "Drake", Rarity: pet.Legendary})

	events := &recorder{}
	return &fixture{
		t:      t,
		ctx:    context.Background(),
		db:     db,
		clock:  clock,
		events: events,
		deps: Deps{
			Tx:        db,
			Wallets:   db.Wallets(),
			Daily:     db.Daily(),
			Sessions:  db.Sessions(),
			Questions: db.Questions(),
			Cycles:    db.Cycles(),
			Pets:      db.Pets(),
			Catalog:   db.Catalog(),
			Rewards:   db.Rewards(),
			Events:    events,
			Clock:     clock,
			Rand:      shared.NewSeededRand(7, 11),
			Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
			NewID:     newID,
		},
	}
}

func (f *fixture) questionIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("q%d", i+1)
	}
	return ids
}

// practice creates a session over n questions, answers correct of them
// right and completes it.
func (f *fixture) practice(student shared.StudentID, n, correct int) *CompleteSessionResult {
	f.t.Helper()

	created, err := NewCreateSessionHandler(f.deps, nil, nil).Handle(f.ctx, CreateSessionCommand{
		StudentID:   student,
		TopicID:     "fractions",
		QuestionIDs: f.questionIDs(n),
		CycleNumber: 1,
	})
	require.NoError(f.t, err)

	submit := NewSubmitAnswerHandler(f.deps)
	for i, q := range f.questionIDs(n) {
		option := "b"
		if i < correct {
			option = "a"
		}
		_, err := submit.Handle(f.ctx, SubmitAnswerCommand{
			StudentID:        student,
			SessionID:        created.SessionID,
			QuestionID:       q,
			SelectedOptions:  []string{option},
			TimeSpentSeconds: 12,
		})
		require.NoError(f.t, err)
	}

	done, err := NewCompleteSessionHandler(f.deps, practice.RewardFormula{}).Handle(f.ctx, CompleteSessionCommand{
		StudentID: student,
		SessionID: created.SessionID,
	})
	require.NoError(f.t, err)
	return done
}

func (f *fixture) credit(student shared.StudentID, c economy.Credit) {
	f.t.Helper()
	_, err := f.deps.Wallets.GetOrCreate(f.ctx, student)
	require.NoError(f.t, err)
	require.NoError(f.t, f.deps.Wallets.Credit(f.ctx, student, c))
}

func (f *fixture) wallet(student shared.StudentID) *economy.Wallet {
	f.t.Helper()
	w, err := f.deps.Wallets.Get(f.ctx, student)
	require.NoError(f.t, err)
	return w
}

func (f *fixture) nextDay() {
	f.clock.Advance(24 * time.Hour)
}
