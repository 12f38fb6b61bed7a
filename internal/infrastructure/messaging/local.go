// Package messaging carries committed domain events to their handlers. The
// local bus dispatches inside one process; the Redis bus adds Pub/Sub fan-out
// so the API and the worker see each other's events.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/studypets/studypets-core/internal/domain/shared"
)

var (
	ErrEventBusClosed = errors.New("event bus is closed")

	// ErrHandlerPanic wraps a recovered handler panic.
	ErrHandlerPanic = errors.New("handler panicked")

	errNilHandler = errors.New("handler cannot be nil")
	errNilEvent   = errors.New("event cannot be nil")
)

// ══════════════════════════════════════════════════════════════════════════════
// LOCAL BUS
// ══════════════════════════════════════════════════════════════════════════════

// InMemoryEventBusConfig configures the local bus.
type InMemoryEventBusConfig struct {
	// AsyncMode hands each delivery to a goroutine bounded by WorkerPoolSize.
	// Off, Publish returns after every handler ran.
	AsyncMode      bool
	WorkerPoolSize int
	Logger         *slog.Logger
}

func DefaultInMemoryEventBusConfig() InMemoryEventBusConfig {
	return InMemoryEventBusConfig{AsyncMode: true, WorkerPoolSize: 10}
}

// InMemoryEventBus is an in-process shared.EventBus. A failing or panicking
// handler is logged and never reaches the publisher.
type InMemoryEventBus struct {
	async   bool
	slots   *semaphore.Weighted
	logger  *slog.Logger
	metrics *EventBusMetrics

	mu       sync.RWMutex
	byType   map[shared.EventType][]shared.EventHandler
	wildcard []shared.EventHandler
	closed   bool

	stop     context.Context
	stopFunc context.CancelFunc
	inflight sync.WaitGroup
}

func NewInMemoryEventBus(cfg InMemoryEventBusConfig) *InMemoryEventBus {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.WorkerPoolSize <= 0 {
		cfg.WorkerPoolSize = 10
	}
	stop, stopFunc := context.WithCancel(context.Background())
	return &InMemoryEventBus{
		async:    cfg.AsyncMode,
		slots:    semaphore.NewWeighted(int64(cfg.WorkerPoolSize)),
		logger:   cfg.Logger,
		metrics:  &EventBusMetrics{},
		byType:   make(map[shared.EventType][]shared.EventHandler),
		stop:     stop,
		stopFunc: stopFunc,
	}
}

func (b *InMemoryEventBus) Subscribe(eventType shared.EventType, handler shared.EventHandler) error {
	return b.register(func() { b.byType[eventType] = append(b.byType[eventType], handler) }, handler)
}

// SubscribeAll registers handler for every event type.
func (b *InMemoryEventBus) SubscribeAll(handler shared.EventHandler) error {
	return b.register(func() { b.wildcard = append(b.wildcard, handler) }, handler)
}

func (b *InMemoryEventBus) register(add func(), handler shared.EventHandler) error {
	if handler == nil {
		return errNilHandler
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrEventBusClosed
	}
	add()
	return nil
}

// Publish delivers event to the handlers subscribed to its type, then to the
// wildcard handlers.
func (b *InMemoryEventBus) Publish(event shared.Event) error {
	if event == nil {
		return errNilEvent
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrEventBusClosed
	}
	typed := b.byType[event.EventType()]
	targets := make([]shared.EventHandler, 0, len(typed)+len(b.wildcard))
	targets = append(append(targets, typed...), b.wildcard...)
	if b.async {
		b.inflight.Add(len(targets))
	}
	b.mu.RUnlock()

	b.metrics.published.Add(1)
	for _, h := range targets {
		if !b.async {
			b.deliver(event, h)
			continue
		}
		go func(h shared.EventHandler) {
			defer b.inflight.Done()
			if err := b.slots.Acquire(b.stop, 1); err != nil {
				return
			}
			defer b.slots.Release(1)
			b.deliver(event, h)
		}(h)
	}
	return nil
}

func (b *InMemoryEventBus) deliver(event shared.Event, h shared.EventHandler) {
	err := safeCall(event, h)
	b.metrics.executions.Add(1)
	if err != nil {
		b.metrics.failures.Add(1)
		b.logger.Error("event handler failed", "event_type", event.EventType(), "aggregate_id", event.AggregateID(), "error", err)
	}
}

func safeCall(event shared.Event, h shared.EventHandler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()
	return h(event)
}

// Close rejects further publishes and waits for deliveries already started.
// Deliveries still queued for a worker slot are dropped.
func (b *InMemoryEventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.stopFunc()
	b.inflight.Wait()
	b.logger.Info("event bus closed")
	return nil
}

func (b *InMemoryEventBus) Metrics() *EventBusMetrics { return b.metrics }

// ══════════════════════════════════════════════════════════════════════════════
// METRICS
// ══════════════════════════════════════════════════════════════════════════════

// EventBusMetrics counts publishes and handler outcomes.
type EventBusMetrics struct {
	published  atomic.Int64
	executions atomic.Int64
	failures   atomic.Int64
}

// EventBusMetricsSnapshot is a point-in-time copy of the counters.
type EventBusMetricsSnapshot struct {
	TotalPublished    int64
	TotalHandlerExecs int64
	HandlerFailures   int64
}

func (m *EventBusMetrics) Snapshot() EventBusMetricsSnapshot {
	return EventBusMetricsSnapshot{
		TotalPublished:    m.published.Load(),
		TotalHandlerExecs: m.executions.Load(),
		HandlerFailures:   m.failures.Load(),
	}
}
