package eventhandler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studypets/studypets-core/internal/domain/shared"
	"github.com/studypets/studypets-core/internal/infrastructure/messaging"
	"github.com/studypets/studypets-core/pkg/timeutil"
)

type boardsSpy struct {
	mu    sync.Mutex
	weeks []timeutil.Date
	err   error
}

func (b *boardsSpy) InvalidateWeek(_ context.Context, week timeutil.Date) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.weeks = append(b.weeks, week)
	return b.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOnSessionCompleted_InvalidatesCompletionWeek(t *testing.T) {
	boards := &boardsSpy{}
	h := NewOnSessionCompletedHandler(boards, quietLogger())

	// Sunday 23:30 local still belongs to the week starting Monday 2024-06-03.
	at := time.Date(2024, 6, 9, 23, 30, 0, 0, timeutil.PlatformTZ)
	require.NoError(t, h.Handle(shared.NewSessionCompletedEvent("sess-1", "s1", 7, 130, 45, 2, at)))

	assert.Equal(t, []timeutil.Date{timeutil.NewDate(2024, 6, 3)}, boards.weeks)
}

func TestOnSessionCompleted_IgnoresOtherEvents(t *testing.T) {
	boards := &boardsSpy{}
	h := NewOnSessionCompletedHandler(boards, quietLogger())

	require.NoError(t, h.Handle(shared.NewPetAcquiredEvent("s1", "pup", "common", "pull", time.Now())))
	assert.Empty(t, boards.weeks)
}

func TestOnSessionCompleted_ReportsCacheFailure(t *testing.T) {
	boards := &boardsSpy{err: errors.New("redis down")}
	h := NewOnSessionCompletedHandler(boards, quietLogger())

	err := h.Handle(shared.NewSessionCompletedEvent("sess-1", "s1", 0, 25, 10, 1, time.Now()))
	assert.Error(t, err)
}

func TestOnRewardsDistributed_InvalidatesPaidWeek(t *testing.T) {
	boards := &boardsSpy{err: errors.New("redis down")}
	h := NewOnRewardsDistributedHandler(boards, quietLogger())

	err := h.Handle(shared.NewWeeklyRewardsDistributedEvent("2024-06-03", 3, 1400, 3, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, []timeutil.Date{timeutil.NewDate(2024, 6, 3)}, boards.weeks)

	require.NoError(t, h.Handle(shared.NewWeeklyRewardsDistributedEvent("not-a-date", 0, 0, 0, time.Now())))
	assert.Len(t, boards.weeks, 1)
}

func TestRegister_WiresBothHandlers(t *testing.T) {
	bus := messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{AsyncMode: false, Logger: quietLogger()})
	defer bus.Close()
	boards := &boardsSpy{}

	require.NoError(t, Register(bus, boards, quietLogger()))

	at := time.Date(2024, 6, 12, 9, 0, 0, 0, timeutil.PlatformTZ)
	require.NoError(t, bus.Publish(shared.NewSessionCompletedEvent("sess-1", "s1", 1, 40, 15, 1, at)))
	require.NoError(t, bus.Publish(shared.NewWeeklyRewardsDistributedEvent("2024-06-03", 1, 500, 1, at)))

	assert.Equal(t, []timeutil.Date{
		timeutil.NewDate(2024, 6, 10),
		timeutil.NewDate(2024, 6, 3),
	}, boards.weeks)
}
