// Package reminder attaches reminders to tasks, buffering them in memory
// while the task has not been created yet.
package reminder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/hotel-ops/internal/model"
	"github.com/nhle/hotel-ops/internal/notify"
	"github.com/nhle/hotel-ops/internal/recurrence"
)

// Input is a reminder as entered by a user.
type Input struct {
	Message      string             `json:"message"`
	ScheduleType model.ScheduleType `json:"schedule_type"`
	StartDate    *time.Time         `json:"start_date,omitempty"`
	StartTime    string             `json:"start_time,omitempty"`
	Shifts       []model.Shift      `json:"shifts,omitempty"`

	// Recurrence is nil for a one-off reminder.
	Recurrence *model.Recurrence `json:"recurrence,omitempty"`
}

// Store is the subset of store.Store the buffer needs.
type Store interface {
	CreateReminder(ctx context.Context, r model.Reminder) (*model.Reminder, error)
	DeactivateRemindersForTask(ctx context.Context, taskID, exceptID string) (int64, error)
	SetTaskReminder(ctx context.Context, taskID, reminderID string, at time.Time) error
}

// Outcome is the result of BufferOrPersist. Exactly one of Reminder and
// Buffered is set.
type Outcome struct {
	Reminder *model.Reminder
	Buffered *model.BufferedReminder

	// Linked is false when the reminder row was saved but the task could
	// not be pointed at it.
	Linked bool
}

// Buffer normalizes reminder input and either persists it for a saved
// task or returns it buffered for an unsaved one.
type Buffer struct {
	store    Store
	engine   *recurrence.Engine
	notifier notify.Notifier
	logger   *zap.SugaredLogger
	now      func() time.Time
}

// NewBuffer creates a reminder buffer.
func NewBuffer(s Store, engine *recurrence.Engine, n notify.Notifier, logger *zap.SugaredLogger) *Buffer {
	return &Buffer{
		store:    s,
		engine:   engine,
		notifier: n,
		logger:   logger,
		now:      time.Now,
	}
}

// Normalize validates in and derives its frequency and first trigger.
func Normalize(engine *recurrence.Engine, in Input) (model.BufferedReminder, error) {
	scheduleType := in.ScheduleType
	if scheduleType == "" {
		scheduleType = model.ScheduleDatetime
	}

	if err := recurrence.Validate(in.Recurrence); err != nil {
		return model.BufferedReminder{}, err
	}
	if in.Recurrence != nil {
		rule := *in.Recurrence
		if rule.End.Kind == "" {
			rule.End.Kind = model.EndNever
		}
		if rule.End.Date != nil {
			d := engine.CalendarDate(*rule.End.Date)
			rule.End.Date = &d
		}
		in.Recurrence = &rule
	}

	startTime := strings.TrimSpace(in.StartTime)
	if startTime != "" {
		h, m, err := recurrence.ParseClock(startTime)
		if err != nil {
			return model.BufferedReminder{}, err
		}
		startTime = fmt.Sprintf("%02d:%02d", h, m)
	}

	var startDate *time.Time
	if in.StartDate != nil && !in.StartDate.IsZero() {
		d := engine.CalendarDate(*in.StartDate)
		startDate = &d
	}

	out := model.BufferedReminder{
		Message:      strings.TrimSpace(in.Message),
		ScheduleType: scheduleType,
		StartDate:    startDate,
		StartTime:    startTime,
		Recurrence:   in.Recurrence,
		Frequency:    recurrence.Classify(in.Recurrence),
	}

	switch scheduleType {
	case model.ScheduleDatetime:
		at, err := engine.FirstTrigger(startDate, startTime)
		if err != nil {
			return model.BufferedReminder{}, err
		}
		out.RemindAt = &at
	case model.ScheduleShifts:
		shifts, err := normalizeShifts(in.Shifts)
		if err != nil {
			return model.BufferedReminder{}, err
		}
		out.Shifts = shifts
	default:
		return model.BufferedReminder{}, &recurrence.ValidationError{
			Field:   "schedule_type",
			Message: fmt.Sprintf("must be datetime or shifts, got %q", scheduleType),
		}
	}

	return out, nil
}

func normalizeShifts(in []model.Shift) ([]model.Shift, error) {
	seen := make(map[model.Shift]bool, len(in))
	var out []model.Shift
	for _, s := range in {
		switch s {
		case model.ShiftMorning, model.ShiftEvening, model.ShiftNight:
		default:
			return nil, &recurrence.ValidationError{Field: "shifts", Message: fmt.Sprintf("unknown shift %q", s)}
		}
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil, &recurrence.ValidationError{Field: "shifts", Message: "at least one shift is required"}
	}
	return out, nil
}

// BufferOrPersist attaches in to task. A task without an ID gets the
// normalized reminder back in Outcome.Buffered and nothing is written.
// A saved task gets a new active reminder row that replaces its previous
// one, then its reminder reference is patched. A failed patch leaves the
// row unlinked and is only logged.
func (b *Buffer) BufferOrPersist(ctx context.Context, task model.Task, in Input) (*Outcome, error) {
	buffered, err := Normalize(b.engine, in)
	if err != nil {
		return nil, err
	}

	if !task.IsPersisted() {
		return &Outcome{Buffered: &buffered}, nil
	}

	rem, err := b.store.CreateReminder(ctx, buffered.ForTask(task.ID))
	if err != nil {
		return nil, fmt.Errorf("saving reminder for task %s: %w", task.ID, err)
	}

	if n, err := b.store.DeactivateRemindersForTask(ctx, task.ID, rem.ID); err != nil {
		b.logger.Warnw("previous reminders left active",
			"task_id", task.ID, "reminder_id", rem.ID, "error", err)
	} else if n > 0 {
		b.logger.Infow("replaced task reminder", "task_id", task.ID, "deactivated", n)
	}

	out := &Outcome{Reminder: rem, Linked: true}
	if err := b.store.SetTaskReminder(ctx, task.ID, rem.ID, b.now().UTC()); err != nil {
		out.Linked = false
		b.logger.Warnw("reminder saved but not linked to task",
			"task_id", task.ID, "reminder_id", rem.ID, "error", err)
	}

	b.notifier.Notify(notify.NewEvent(model.EventReminderSet, task.ID, map[string]any{
		"title":       task.Title,
		"reminder_id": rem.ID,
		"frequency":   rem.Frequency,
		"remind_at":   rem.RemindAt,
		"linked":      out.Linked,
	}))
	return out, nil
}
