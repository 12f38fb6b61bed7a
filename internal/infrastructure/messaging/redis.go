package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/studypets/studypets-core/internal/domain/shared"
)

const (
	defaultChannel = "studypets:events"
	publishTimeout = 2 * time.Second
)

// RedisEventBusConfig configures the fan-out bus.
type RedisEventBusConfig struct {
	Client *redis.Client

	// ChannelName defaults to "studypets:events".
	ChannelName string

	// InstanceID tags outgoing messages so an instance can skip its own.
	// Defaults to a random UUID.
	InstanceID string

	LocalBusConfig InMemoryEventBusConfig
	Logger         *slog.Logger
}

// RedisEventBus publishes every event to a Redis channel and runs local
// handlers for both its own events and those of other instances. An event is
// delivered once per instance: the publisher's copy runs locally and the echo
// from Redis is skipped.
//
// Remote events arrive as generic events carrying the JSON payload, so
// handlers that need the concrete type only react in the publishing process.
type RedisEventBus struct {
	local    *InMemoryEventBus
	client   *redis.Client
	sub      *redis.PubSub
	channel  string
	instance string
	logger   *slog.Logger

	closed atomic.Bool
	cancel context.CancelFunc
	done   sync.WaitGroup
}

// NewRedisEventBus subscribes before returning, so no message published after
// it returns is missed.
func NewRedisEventBus(ctx context.Context, cfg RedisEventBusConfig) (*RedisEventBus, error) {
	if cfg.Client == nil {
		return nil, errors.New("redis event bus: client is required")
	}
	if cfg.ChannelName == "" {
		cfg.ChannelName = defaultChannel
	}
	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.LocalBusConfig.Logger == nil {
		cfg.LocalBusConfig.Logger = cfg.Logger
	}

	sub := cfg.Client.Subscribe(ctx, cfg.ChannelName)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("redis event bus: subscribe %s: %w", cfg.ChannelName, err)
	}

	listenCtx, cancel := context.WithCancel(context.Background())
	b := &RedisEventBus{
		local:    NewInMemoryEventBus(cfg.LocalBusConfig),
		client:   cfg.Client,
		sub:      sub,
		channel:  cfg.ChannelName,
		instance: cfg.InstanceID,
		logger:   cfg.Logger,
		cancel:   cancel,
	}
	b.done.Add(1)
	go b.listen(listenCtx, sub.Channel())
	return b, nil
}

func (b *RedisEventBus) Subscribe(eventType shared.EventType, handler shared.EventHandler) error {
	return b.local.Subscribe(eventType, handler)
}

func (b *RedisEventBus) SubscribeAll(handler shared.EventHandler) error {
	return b.local.SubscribeAll(handler)
}

// Publish never fails because Redis is down: the local handlers still run and
// only other instances miss the event.
func (b *RedisEventBus) Publish(event shared.Event) error {
	if event == nil {
		return errNilEvent
	}
	if b.closed.Load() {
		return ErrEventBusClosed
	}

	msg, err := json.Marshal(wireEvent{
		Origin:      b.instance,
		Type:        event.EventType(),
		AggregateID: event.AggregateID(),
		OccurredAt:  event.OccurredAt(),
		Payload:     event.Payload(),
	})
	if err != nil {
		return fmt.Errorf("redis event bus: encode %s: %w", event.EventType(), err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := b.client.Publish(ctx, b.channel, msg).Err(); err != nil {
		b.logger.Error("failed to fan out event", "event_type", event.EventType(), "error", err)
	}
	return b.local.Publish(event)
}

func (b *RedisEventBus) listen(ctx context.Context, messages <-chan *redis.Message) {
	defer b.done.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			b.receive(msg.Payload)
		}
	}
}

func (b *RedisEventBus) receive(raw string) {
	var w wireEvent
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		b.logger.Error("dropping undecodable event", "error", err)
		return
	}
	if w.Origin == b.instance {
		return
	}
	if err := b.local.Publish(remoteEvent{w}); err != nil && !errors.Is(err, ErrEventBusClosed) {
		b.logger.Error("failed to dispatch remote event", "event_type", w.Type, "error", err)
	}
}

// Close stops listening and drains the local bus.
func (b *RedisEventBus) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	b.cancel()
	if err := b.sub.Close(); err != nil {
		b.logger.Warn("failed to close redis subscription", "error", err)
	}
	b.done.Wait()
	return b.local.Close()
}

// ─────────────────────────────────────────────────────────────────────────────
// Wire format
// ─────────────────────────────────────────────────────────────────────────────

type wireEvent struct {
	Origin      string           `json:"instance_id"`
	Type        shared.EventType `json:"event_type"`
	AggregateID string           `json:"aggregate_id"`
	OccurredAt  time.Time        `json:"occurred_at"`
	Payload     map[string]any   `json:"payload"`
}

// remoteEvent is an event decoded from another instance.
type remoteEvent struct{ w wireEvent }

func (e remoteEvent) EventType() shared.EventType { return e.w.Type }
func (e remoteEvent) AggregateID() string         { return e.w.AggregateID }
func (e remoteEvent) OccurredAt() time.Time       { return e.w.OccurredAt }
func (e remoteEvent) Payload() map[string]any     { return e.w.Payload }
