package shared

import "time"

// EventType represents the type of domain event.
type EventType string

// Domain event types.
const (
	// EventProgressRecorded is emitted after every committed session update.
	EventProgressRecorded EventType = "progress.recorded"

	// EventLessonCompleted is emitted when a write leaves a lesson with every
	// session completed, which unlocks the next lesson.
	EventLessonCompleted EventType = "progress.lesson_completed"
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
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
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
		Timestamp:   at.UTC(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Progress Events
// ═══════════════════════════════════════════════════════════════════════════

// ProgressRecordedEvent is emitted when a session status update commits.
type ProgressRecordedEvent struct {
	BaseEvent
	UserID           string `json:"user_id"`
	LessonID         int    `json:"lesson_id"`
	SessionNumber    int    `json:"session_number"`
	Status           string `json:"status"`
	TimeSpentSeconds int    `json:"time_spent_seconds"`
}

// Payload implements Event interface.
func (e ProgressRecordedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":            e.UserID,
		"lesson_id":          e.LessonID,
		"session_number":     e.SessionNumber,
		"status":             e.Status,
		"time_spent_seconds": e.TimeSpentSeconds,
	}
}

// NewProgressRecordedEvent creates a new ProgressRecordedEvent.
func NewProgressRecordedEvent(userID string, lessonID, sessionNumber int, status string, timeSpent int, at time.Time) ProgressRecordedEvent {
	return ProgressRecordedEvent{
		BaseEvent:        NewBaseEvent(EventProgressRecorded, userID, at),
		UserID:           userID,
		LessonID:         lessonID,
		SessionNumber:    sessionNumber,
		Status:           status,
		TimeSpentSeconds: timeSpent,
	}
}

// LessonCompletedEvent is emitted when a lesson reaches five completed sessions.
type LessonCompletedEvent struct {
	BaseEvent
	UserID   string `json:"user_id"`
	LessonID int    `json:"lesson_id"`

	// UnlockedLessonID is the lesson that became accessible, zero after the last lesson.
	UnlockedLessonID int `json:"unlocked_lesson_id,omitempty"`
}

// Payload implements Event interface.
func (e LessonCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":            e.UserID,
		"lesson_id":          e.LessonID,
		"unlocked_lesson_id": e.UnlockedLessonID,
	}
}

// NewLessonCompletedEvent creates a new LessonCompletedEvent.
func NewLessonCompletedEvent(userID string, lessonID, unlockedLessonID int, at time.Time) LessonCompletedEvent {
	return LessonCompletedEvent{
		BaseEvent:        NewBaseEvent(EventLessonCompleted, userID, at),
		UserID:           userID,
		LessonID:         lessonID,
		UnlockedLessonID: unlockedLessonID,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Bus Interfaces
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
	// Subscribe registers a handler for a specific event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}

// NoopPublisher discards every event.
type NoopPublisher struct{}

// Publish implements EventPublisher.
func (NoopPublisher) Publish(Event) error { return nil }
