package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. Commands publish them after their transaction commits.
const (
	EventStudentCreated       EventType = "student.created"
	EventStudentDeleted       EventType = "student.deleted"
	EventStudentStatusChanged EventType = "student.status_changed"
	EventScoreChanged         EventType = "score.changed"
	EventTermFinalized        EventType = "term.finalized"
	EventExamStateChanged     EventType = "exam.state_changed"
	EventWeightsAssigned      EventType = "exam.weights_assigned"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Term returns the academic term the event belongs to.
	Term() string

	// Payload returns the event data as a map for logging.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	AggregateId string    `json:"aggregate_id"`
	TermCode    string    `json:"term"`
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

// Term implements Event interface.
func (e BaseEvent) Term() string {
	return e.TermCode
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID, term string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		AggregateId: aggregateID,
		TermCode:    term,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Student Events
// ═══════════════════════════════════════════════════════════════════════════

// StudentCreatedEvent is emitted when a student and its score row are created.
type StudentCreatedEvent struct {
	BaseEvent
	ScoreID string `json:"score_id"`
}

// Payload implements Event interface.
func (e StudentCreatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id": e.AggregateId,
		"score_id":   e.ScoreID,
		"term":       e.TermCode,
	}
}

// NewStudentCreatedEvent creates a new StudentCreatedEvent.
func NewStudentCreatedEvent(studentID, scoreID, term string) StudentCreatedEvent {
	return StudentCreatedEvent{
		BaseEvent: NewBaseEvent(EventStudentCreated, studentID, term),
		ScoreID:   scoreID,
	}
}

// StudentDeletedEvent is emitted after a student and its scores were removed.
type StudentDeletedEvent struct {
	BaseEvent
	DeletedScores int64 `json:"deleted_scores"`
}

// Payload implements Event interface.
func (e StudentDeletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":     e.AggregateId,
		"term":           e.TermCode,
		"deleted_scores": e.DeletedScores,
	}
}

// NewStudentDeletedEvent creates a new StudentDeletedEvent.
func NewStudentDeletedEvent(studentID, term string, deletedScores int64) StudentDeletedEvent {
	return StudentDeletedEvent{
		BaseEvent:     NewBaseEvent(EventStudentDeleted, studentID, term),
		DeletedScores: deletedScores,
	}
}

// StudentStatusChangedEvent is emitted when a student's status is set.
type StudentStatusChangedEvent struct {
	BaseEvent
	OldStatus     string `json:"old_status"`
	NewStatus     string `json:"new_status"`
	ScoresCleared bool   `json:"scores_cleared"`
}

// Payload implements Event interface.
func (e StudentStatusChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":     e.AggregateId,
		"term":           e.TermCode,
		"old_status":     e.OldStatus,
		"new_status":     e.NewStatus,
		"scores_cleared": e.ScoresCleared,
	}
}

// NewStudentStatusChangedEvent creates a new StudentStatusChangedEvent.
func NewStudentStatusChangedEvent(studentID, term, oldStatus, newStatus string, cleared bool) StudentStatusChangedEvent {
	return StudentStatusChangedEvent{
		BaseEvent:     NewBaseEvent(EventStudentStatusChanged, studentID, term),
		OldStatus:     oldStatus,
		NewStatus:     newStatus,
		ScoresCleared: cleared,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Score Events
// ═══════════════════════════════════════════════════════════════════════════

// ScoreChangedEvent is emitted when a slot of a score row is written or the row is removed.
type ScoreChangedEvent struct {
	BaseEvent
	StudentID string `json:"student_id"`
	Slot      string `json:"slot,omitempty"`
	Deleted   bool   `json:"deleted,omitempty"`
}

// Payload implements Event interface.
func (e ScoreChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"score_id":   e.AggregateId,
		"student_id": e.StudentID,
		"term":       e.TermCode,
		"slot":       e.Slot,
		"deleted":    e.Deleted,
	}
}

// NewScoreChangedEvent creates a new ScoreChangedEvent.
func NewScoreChangedEvent(scoreID, studentID, term, slot string) ScoreChangedEvent {
	return ScoreChangedEvent{
		BaseEvent: NewBaseEvent(EventScoreChanged, scoreID, term),
		StudentID: studentID,
		Slot:      slot,
	}
}

// NewScoreDeletedEvent creates a ScoreChangedEvent for a removed score row.
func NewScoreDeletedEvent(scoreID, studentID, term string) ScoreChangedEvent {
	return ScoreChangedEvent{
		BaseEvent: NewBaseEvent(EventScoreChanged, scoreID, term),
		StudentID: studentID,
		Deleted:   true,
	}
}

// TermFinalizedEvent is emitted after a finalize pass commits.
type TermFinalizedEvent struct {
	BaseEvent
	PassingThreshold float64 `json:"passing_threshold"`
	UpdatedCount     int     `json:"updated_count"`
}

// Payload implements Event interface.
func (e TermFinalizedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"term":              e.TermCode,
		"passing_threshold": e.PassingThreshold,
		"updated_count":     e.UpdatedCount,
	}
}

// NewTermFinalizedEvent creates a new TermFinalizedEvent.
func NewTermFinalizedEvent(term string, threshold float64, updated int) TermFinalizedEvent {
	return TermFinalizedEvent{
		BaseEvent:        NewBaseEvent(EventTermFinalized, term, term),
		PassingThreshold: threshold,
		UpdatedCount:     updated,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Exam Events
// ═══════════════════════════════════════════════════════════════════════════

// ExamStateChangedEvent is emitted whenever an exam changes state.
type ExamStateChangedEvent struct {
	BaseEvent
	From    string `json:"from"`
	To      string `json:"to"`
	Trigger string `json:"trigger"`
}

// Payload implements Event interface.
func (e ExamStateChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"exam_id": e.AggregateId,
		"term":    e.TermCode,
		"from":    e.From,
		"to":      e.To,
		"trigger": e.Trigger,
	}
}

// NewExamStateChangedEvent creates a new ExamStateChangedEvent.
func NewExamStateChangedEvent(examID, term, from, to, trigger string) ExamStateChangedEvent {
	return ExamStateChangedEvent{
		BaseEvent: NewBaseEvent(EventExamStateChanged, examID, term),
		From:      from,
		To:        to,
		Trigger:   trigger,
	}
}

// WeightsAssignedEvent is emitted after weights were stored for a term.
type WeightsAssignedEvent struct {
	BaseEvent
	Weights map[string]string `json:"weights"`
}

// Payload implements Event interface.
func (e WeightsAssignedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"term":    e.TermCode,
		"weights": e.Weights,
	}
}

// NewWeightsAssignedEvent creates a new WeightsAssignedEvent.
func NewWeightsAssignedEvent(term string, weights map[string]string) WeightsAssignedEvent {
	return WeightsAssignedEvent{
		BaseEvent: NewBaseEvent(EventWeightsAssigned, term, term),
		Weights:   weights,
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

// NopPublisher discards events.
type NopPublisher struct{}

// Publish implements EventPublisher.
func (NopPublisher) Publish(Event) error { return nil }
