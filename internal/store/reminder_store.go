package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nhle/hotel-ops/internal/model"
)

const reminderColumns = `id, task_id, message, schedule_type, start_date, start_time,
	shifts, interval_count, unit, weekdays, end_kind, end_date, end_count,
	frequency, remind_at, occurrences_fired, active, created_at, updated_at`

// reminderRow mirrors the reminders table. A NULL interval_count means
// the reminder has no recurrence rule.
type reminderRow struct {
	ID               string     `db:"id"`
	TaskID           *string    `db:"task_id"`
	Message          string     `db:"message"`
	ScheduleType     string     `db:"schedule_type"`
	StartDate        *time.Time `db:"start_date"`
	StartTime        string     `db:"start_time"`
	Shifts           string     `db:"shifts"`
	IntervalCount    *int       `db:"interval_count"`
	Unit             *string    `db:"unit"`
	Weekdays         int        `db:"weekdays"`
	EndKind          *string    `db:"end_kind"`
	EndDate          *time.Time `db:"end_date"`
	EndCount         *int       `db:"end_count"`
	Frequency        string     `db:"frequency"`
	RemindAt         *time.Time `db:"remind_at"`
	OccurrencesFired int        `db:"occurrences_fired"`
	Active           int        `db:"active"`
	CreatedAt        time.Time  `db:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at"`
}

func (r reminderRow) toModel() (model.Reminder, error) {
	rem := model.Reminder{
		ID:               r.ID,
		TaskID:           r.TaskID,
		Message:          r.Message,
		ScheduleType:     model.ScheduleType(r.ScheduleType),
		StartDate:        r.StartDate,
		StartTime:        r.StartTime,
		Frequency:        model.Frequency(r.Frequency),
		RemindAt:         r.RemindAt,
		OccurrencesFired: r.OccurrencesFired,
		Active:           r.Active != 0,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}

	if r.Shifts != "" {
		if err := json.Unmarshal([]byte(r.Shifts), &rem.Shifts); err != nil {
			return model.Reminder{}, fmt.Errorf("decoding shifts for reminder %s: %w", r.ID, err)
		}
	}

	if r.IntervalCount != nil {
		rule := &model.Recurrence{
			IntervalCount: *r.IntervalCount,
			Weekdays:      model.WeekdaySet(r.Weekdays),
			End:           model.EndCondition{Kind: model.EndNever},
		}
		if r.Unit != nil {
			rule.Unit = model.Unit(*r.Unit)
		}
		if r.EndKind != nil {
			rule.End.Kind = model.EndKind(*r.EndKind)
		}
		rule.End.Date = r.EndDate
		if r.EndCount != nil {
			rule.End.Count = *r.EndCount
		}
		rem.Recurrence = rule
	}

	return rem, nil
}

// reminderArgs flattens a reminder into column values in reminderColumns
// order.
func reminderArgs(r *model.Reminder) ([]interface{}, error) {
	shifts := r.Shifts
	if shifts == nil {
		shifts = []model.Shift{}
	}
	shiftsJSON, err := json.Marshal(shifts)
	if err != nil {
		return nil, fmt.Errorf("encoding shifts: %w", err)
	}

	var (
		interval *int
		unit     *string
		weekdays int
		endKind  *string
		endDate  *time.Time
		endCount *int
	)
	if rule := r.Recurrence; rule != nil {
		n := rule.IntervalCount
		u := string(rule.Unit)
		k := string(rule.End.Kind)
		if k == "" {
			k = string(model.EndNever)
		}
		interval, unit, endKind = &n, &u, &k
		weekdays = int(rule.Weekdays)
		if rule.End.Date != nil {
			d := rule.End.Date.UTC()
			endDate = &d
		}
		if rule.End.Kind == model.EndAfterOccurrences {
			c := rule.End.Count
			endCount = &c
		}
	}

	return []interface{}{
		r.ID, r.TaskID, r.Message, string(r.ScheduleType), utcPtr(r.StartDate), r.StartTime,
		string(shiftsJSON), interval, unit, weekdays, endKind, endDate, endCount,
		string(r.Frequency), utcPtr(r.RemindAt), r.OccurrencesFired, boolToInt(r.Active),
		r.CreatedAt, r.UpdatedAt,
	}, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func (s *SQLStore) insertReminder(ctx context.Context, ex sqlx.ExecerContext, r *model.Reminder, now time.Time) error {
	r.CreatedAt = now
	r.UpdatedAt = now

	args, err := reminderArgs(r)
	if err != nil {
		return fmt.Errorf("reminder %s: %w", r.ID, err)
	}

	_, err = ex.ExecContext(ctx, s.q(`
		INSERT INTO reminders (`+reminderColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		args...,
	)
	if err != nil {
		return fmt.Errorf("creating reminder %s: %w", r.ID, err)
	}
	return nil
}

// CreateReminder inserts a reminder. Generates a UUID if ID is empty.
func (s *SQLStore) CreateReminder(ctx context.Context, r model.Reminder) (*model.Reminder, error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if err := s.insertReminder(ctx, s.db, &r, time.Now().UTC()); err != nil {
		return nil, err
	}
	return &r, nil
}

// GetReminder retrieves a single reminder by ID.
func (s *SQLStore) GetReminder(ctx context.Context, id string) (*model.Reminder, error) {
	var row reminderRow
	err := s.db.GetContext(ctx, &row,
		s.q("SELECT "+reminderColumns+" FROM reminders WHERE id = ?"), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("reminder", id)
		}
		return nil, fmt.Errorf("getting reminder %s: %w", id, err)
	}

	rem, err := row.toModel()
	if err != nil {
		return nil, err
	}
	return &rem, nil
}

// GetActiveReminderForTask returns the newest active reminder of a task.
func (s *SQLStore) GetActiveReminderForTask(ctx context.Context, taskID string) (*model.Reminder, error) {
	var row reminderRow
	err := s.db.GetContext(ctx, &row, s.q(`
		SELECT `+reminderColumns+` FROM reminders
		WHERE task_id = ? AND active = 1
		ORDER BY created_at DESC, id DESC LIMIT 1`), taskID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("active reminder for task", taskID)
		}
		return nil, fmt.Errorf("getting active reminder of task %s: %w", taskID, err)
	}

	rem, err := row.toModel()
	if err != nil {
		return nil, err
	}
	return &rem, nil
}

// DeactivateRemindersForTask turns off every active reminder of a task
// except exceptID (which may be empty). It returns the number of
// reminders deactivated.
func (s *SQLStore) DeactivateRemindersForTask(ctx context.Context, taskID, exceptID string) (int64, error) {
	result, err := s.db.ExecContext(ctx, s.q(`
		UPDATE reminders SET active = 0, updated_at = ?
		WHERE task_id = ? AND active = 1 AND id <> ?`),
		time.Now().UTC(), taskID, exceptID,
	)
	if err != nil {
		return 0, fmt.Errorf("deactivating reminders of task %s: %w", taskID, err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}

// ListDueReminders returns active reminders whose next trigger is at or
// before now, oldest first.
func (s *SQLStore) ListDueReminders(ctx context.Context, now time.Time, limit int) ([]model.Reminder, error) {
	query := `
		SELECT ` + reminderColumns + ` FROM reminders
		WHERE active = 1 AND remind_at IS NOT NULL AND remind_at <= ?
		ORDER BY remind_at ASC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	var rows []reminderRow
	if err := s.db.SelectContext(ctx, &rows, s.q(query), now.UTC()); err != nil {
		return nil, fmt.Errorf("querying due reminders: %w", err)
	}

	reminders := make([]model.Reminder, 0, len(rows))
	for _, row := range rows {
		rem, err := row.toModel()
		if err != nil {
			return nil, err
		}
		reminders = append(reminders, rem)
	}
	return reminders, nil
}

// AdvanceReminder records a fired occurrence. next is the following
// trigger instant, or nil when the series is exhausted.
func (s *SQLStore) AdvanceReminder(ctx context.Context, id string, next *time.Time, fired int, active bool) error {
	result, err := s.db.ExecContext(ctx, s.q(`
		UPDATE reminders SET remind_at = ?, occurrences_fired = ?, active = ?, updated_at = ?
		WHERE id = ?`),
		utcPtr(next), fired, boolToInt(active), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("advancing reminder %s: %w", id, err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return notFound("reminder", id)
	}
	return nil
}
