package store

import (
	"context"
	"errors"
	"time"

	"github.com/nhle/hotel-ops/internal/model"
)

var (
	// ErrNotFound is returned when a point lookup or patch matches no row.
	ErrNotFound = errors.New("not found")

	// ErrVersionConflict is returned by CompareAndSwapAssignees when the
	// task was modified after the caller read it.
	ErrVersionConflict = errors.New("version conflict")

	// ErrInvalidTask is returned when a task fails field validation.
	ErrInvalidTask = errors.New("invalid task")
)

// TaskFilter controls filtering and pagination for task queries.
type TaskFilter struct {
	Status     *model.Status
	AssignedTo string // user ID; empty means any
	Limit      int
	Offset     int
}

// Assignment is a task's collaborator set together with the row version
// it was read at.
type Assignment struct {
	TaskID  string
	UserIDs []string
	Version int64
}

// Store defines the persistence interface for tasks, reminders, users
// and the notification log.
type Store interface {
	// === Tasks ===

	ListTasks(ctx context.Context, filter TaskFilter) ([]model.Task, error)
	GetTask(ctx context.Context, id string) (*model.Task, error)
	CreateTask(ctx context.Context, nt model.NewTask) (*model.Task, error)
	UpdateTaskStatus(ctx context.Context, id string, status model.Status, at time.Time) error
	GetAssignment(ctx context.Context, taskID string) (*Assignment, error)
	CompareAndSwapAssignees(ctx context.Context, taskID string, expectedVersion int64, userIDs []string, at time.Time) error
	SetTaskReminder(ctx context.Context, taskID, reminderID string, at time.Time) error

	// === Reminders ===

	CreateReminder(ctx context.Context, r model.Reminder) (*model.Reminder, error)
	GetReminder(ctx context.Context, id string) (*model.Reminder, error)
	GetActiveReminderForTask(ctx context.Context, taskID string) (*model.Reminder, error)
	DeactivateRemindersForTask(ctx context.Context, taskID, exceptID string) (int64, error)
	ListDueReminders(ctx context.Context, now time.Time, limit int) ([]model.Reminder, error)
	AdvanceReminder(ctx context.Context, id string, next *time.Time, fired int, active bool) error

	// === Users ===

	UpsertUsers(ctx context.Context, users []model.User) error
	GetUsers(ctx context.Context, ids []string) ([]model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)

	// === Notification log ===

	RecordDelivery(ctx context.Context, d model.Delivery) error
	ListDeliveries(ctx context.Context, taskID string) ([]model.Delivery, error)
}
