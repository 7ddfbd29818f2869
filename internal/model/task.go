package model

import (
	"fmt"
	"time"
)

// Status is the board column a task currently sits in.
type Status string

// Board statuses. The set is not ordered; any status may follow any other.
const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusVerified   Status = "verified"
)

// Statuses lists every board status in column order.
var Statuses = []Status{
	StatusPending,
	StatusInProgress,
	StatusCompleted,
	StatusVerified,
}

// Valid reports whether s is one of the known board statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusVerified:
		return true
	}
	return false
}

// Label returns the column heading for s.
func (s Status) Label() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusInProgress:
		return "In Progress"
	case StatusCompleted:
		return "Completed"
	case StatusVerified:
		return "Verified"
	}
	return string(s)
}

// ParseStatus converts a raw string into a Status.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown task status %q", raw)
	}
	return s, nil
}

// MaxAssignees is the capacity of a task's collaborator set.
const MaxAssignees = 10

// Normalized priority constants (lower number = higher priority).
const (
	PriorityUrgent = 1
	PriorityHigh   = 2
	PriorityMedium = 3
	PriorityLow    = 4
)

// Task is one unit of hotel work shown on the board.
type Task struct {
	// ID is empty until the task has been persisted.
	ID string `json:"id"`

	Title    string `json:"title"`
	Location string `json:"location"`
	Priority int    `json:"priority"`
	Status   Status `json:"status"`

	// AssignedTo is the authoritative, ordered and duplicate-free set of
	// collaborator user IDs.
	AssignedTo []string `json:"assigned_to"`

	// AssigneeName is a legacy single display name. It is shown by older
	// screens only and never consulted for membership.
	AssigneeName string `json:"assignee_name,omitempty"`

	// ReminderID references the task's active reminder, if any.
	ReminderID *string `json:"reminder_id,omitempty"`

	// Version is bumped on every assignment write and used for
	// compare-and-swap.
	Version int64 `json:"version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsPersisted reports whether the task has a store identity.
func (t Task) IsPersisted() bool {
	return t.ID != ""
}

// NewTask is the creation payload for a task. Reminder carries a reminder
// that was configured before the task had an identity.
type NewTask struct {
	Title        string
	Location     string
	Priority     int
	AssignedTo   []string
	AssigneeName string
	Reminder     *BufferedReminder
}

// User is a staff member that can be assigned to tasks. Users are looked
// up by the core, never modified by it.
type User struct {
	ID          string `json:"id" db:"id" yaml:"id"`
	DisplayName string `json:"display_name" db:"display_name" yaml:"display_name"`
	Role        string `json:"role" db:"role" yaml:"role"`
}
