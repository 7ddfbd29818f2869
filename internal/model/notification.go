package model

import "time"

// EventKind names a task lifecycle event sent to notification sinks.
type EventKind string

const (
	EventStatusChanged   EventKind = "task_status_changed"
	EventMembersAssigned EventKind = "task_members_assigned"
	EventReminderSet     EventKind = "task_reminder_set"
	EventReminderDue     EventKind = "task_reminder_due"
)

// Event is a lifecycle event emitted after a committed mutation.
type Event struct {
	// ID is assigned by the dispatcher when the event is queued.
	ID         string         `json:"id"`
	Kind       EventKind      `json:"event"`
	TaskID     string         `json:"task_id"`
	OccurredAt time.Time      `json:"occurred_at"`
	Payload    map[string]any `json:"payload"`
}

// Delivery status constants for the notification log.
const (
	DeliveryDelivered = "delivered"
	DeliveryFailed    = "failed"
	DeliveryDropped   = "dropped"
)

// Delivery records the outcome of sending one event.
type Delivery struct {
	ID        string    `json:"id" db:"id"`
	EventID   string    `json:"event_id" db:"event_id"`
	TaskID    string    `json:"task_id" db:"task_id"`
	Kind      EventKind `json:"event" db:"event_kind"`
	Status    string    `json:"status" db:"status"`
	Attempts  int       `json:"attempts" db:"attempts"`
	LastError string    `json:"last_error,omitempty" db:"last_error"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
