package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. Events are published after the transaction that
// produced them has committed.
const (
	// Practice events
	EventSessionCreated   EventType = "practice.session_created"
	EventSessionCompleted EventType = "practice.session_completed"

	// Daily status events
	EventDayPracticed  EventType = "daily.practiced"
	EventStreakUpdated EventType = "daily.streak_updated"
	EventDailySpin     EventType = "daily.spin"

	// Pet events
	EventPetAcquired EventType = "pet.acquired"
	EventPetEvolved  EventType = "pet.evolved"
	EventPetCombined EventType = "pet.combined"

	// Leaderboard events
	EventWeeklyRewardsDistributed EventType = "leaderboard.weekly_rewards_distributed"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	AggregateId string    `json:"aggregate_id"`
	Version     int       `json:"version"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string, at time.Time) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   at,
		AggregateId: aggregateID,
		Version:     1,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Practice Events
// ═══════════════════════════════════════════════════════════════════════════

// SessionCompletedEvent is emitted once per session, after rewards are credited.
type SessionCompletedEvent struct {
	BaseEvent
	StudentID    string `json:"student_id"`
	CorrectCount int    `json:"correct_count"`
	XPEarned     int    `json:"xp_earned"`
	CoinsEarned  int    `json:"coins_earned"`
	Streak       int    `json:"streak"`
}

// Payload implements Event interface.
func (e SessionCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":    e.StudentID,
		"correct_count": e.CorrectCount,
		"xp_earned":     e.XPEarned,
		"coins_earned":  e.CoinsEarned,
		"streak":        e.Streak,
	}
}

// NewSessionCompletedEvent creates a new SessionCompletedEvent.
func NewSessionCompletedEvent(sessionID, studentID string, correct, xp, coins, streak int, at time.Time) SessionCompletedEvent {
	return SessionCompletedEvent{
		BaseEvent:    NewBaseEvent(EventSessionCompleted, sessionID, at),
		StudentID:    studentID,
		CorrectCount: correct,
		XPEarned:     xp,
		CoinsEarned:  coins,
		Streak:       streak,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Pet Events
// ═══════════════════════════════════════════════════════════════════════════

// PetAcquiredEvent is emitted for every pet granted by a pull or combine.
type PetAcquiredEvent struct {
	BaseEvent
	StudentID string `json:"student_id"`
	PetID     string `json:"pet_id"`
	Rarity    string `json:"rarity"`
	Source    string `json:"source"` // pull | multi_pull | combine
}

// Payload implements Event interface.
func (e PetAcquiredEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id": e.StudentID,
		"pet_id":     e.PetID,
		"rarity":     e.Rarity,
		"source":     e.Source,
	}
}

// NewPetAcquiredEvent creates a new PetAcquiredEvent.
func NewPetAcquiredEvent(studentID, petID, rarity, source string, at time.Time) PetAcquiredEvent {
	return PetAcquiredEvent{
		BaseEvent: NewBaseEvent(EventPetAcquired, studentID, at),
		StudentID: studentID,
		PetID:     petID,
		Rarity:    rarity,
		Source:    source,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Leaderboard Events
// ═══════════════════════════════════════════════════════════════════════════

// WeeklyRewardsDistributedEvent is emitted once per week, after the payout commits.
type WeeklyRewardsDistributedEvent struct {
	BaseEvent
	WeekStart   string `json:"week_start"`
	Recipients  int    `json:"recipients"`
	CoinsPaid   int    `json:"coins_paid"`
	RankedCount int    `json:"ranked_count"`
}

// Payload implements Event interface.
func (e WeeklyRewardsDistributedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"week_start":   e.WeekStart,
		"recipients":   e.Recipients,
		"coins_paid":   e.CoinsPaid,
		"ranked_count": e.RankedCount,
	}
}

// NewWeeklyRewardsDistributedEvent creates a new WeeklyRewardsDistributedEvent.
func NewWeeklyRewardsDistributedEvent(weekStart string, recipients, coins, ranked int, at time.Time) WeeklyRewardsDistributedEvent {
	return WeeklyRewardsDistributedEvent{
		BaseEvent:   NewBaseEvent(EventWeeklyRewardsDistributed, weekStart, at),
		WeekStart:   weekStart,
		Recipients:  recipients,
		CoinsPaid:   coins,
		RankedCount: ranked,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Bus contracts
// ═══════════════════════════════════════════════════════════════════════════

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}

// NopPublisher drops every event.
type NopPublisher struct{}

// Publish implements EventPublisher.
func (NopPublisher) Publish(Event) error { return nil }
