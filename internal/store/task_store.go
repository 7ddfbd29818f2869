package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nhle/hotel-ops/internal/model"
)

const taskColumns = `id, title, location, priority, status, assigned_to,
	assignee_name, reminder_id, version, created_at, updated_at`

// taskRow mirrors the tasks table; assigned_to is a JSON array.
type taskRow struct {
	ID           string    `db:"id"`
	Title        string    `db:"title"`
	Location     string    `db:"location"`
	Priority     int       `db:"priority"`
	Status       string    `db:"status"`
	AssignedTo   string    `db:"assigned_to"`
	AssigneeName string    `db:"assignee_name"`
	ReminderID   *string   `db:"reminder_id"`
	Version      int64     `db:"version"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r taskRow) toModel() (model.Task, error) {
	t := model.Task{
		ID:           r.ID,
		Title:        r.Title,
		Location:     r.Location,
		Priority:     r.Priority,
		Status:       model.Status(r.Status),
		AssigneeName: r.AssigneeName,
		ReminderID:   r.ReminderID,
		Version:      r.Version,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	ids, err := decodeIDs(r.AssignedTo)
	if err != nil {
		return model.Task{}, fmt.Errorf("decoding assigned_to for task %s: %w", r.ID, err)
	}
	t.AssignedTo = ids
	return t, nil
}

func encodeIDs(ids []string) (string, error) {
	if ids == nil {
		ids = []string{}
	}
	b, err := json.Marshal(ids)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeIDs(raw string) ([]string, error) {
	ids := []string{}
	if raw == "" {
		return ids, nil
	}
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// ListTasks retrieves tasks matching the filter, most urgent first.
func (s *SQLStore) ListTasks(ctx context.Context, filter TaskFilter) ([]model.Task, error) {
	var conditions []string
	var args []interface{}

	if filter.Status != nil {
		conditions = append(conditions, "status = ?")
		args = append(args, string(*filter.Status))
	}
	if filter.AssignedTo != "" {
		// assigned_to is a JSON array of quoted IDs.
		conditions = append(conditions, "assigned_to LIKE ?")
		args = append(args, `%"`+filter.AssignedTo+`"%`)
	}

	query := "SELECT " + taskColumns + " FROM tasks"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY priority ASC, created_at ASC, id ASC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	var rows []taskRow
	if err := s.db.SelectContext(ctx, &rows, s.q(query), args...); err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}

	tasks := make([]model.Task, 0, len(rows))
	for _, r := range rows {
		t, err := r.toModel()
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// GetTask retrieves a single task by ID.
func (s *SQLStore) GetTask(ctx context.Context, id string) (*model.Task, error) {
	return getTask(ctx, s.db, s.q("SELECT "+taskColumns+" FROM tasks WHERE id = ?"), id)
}

func getTask(ctx context.Context, q sqlx.QueryerContext, query, id string) (*model.Task, error) {
	var r taskRow
	if err := sqlx.GetContext(ctx, q, &r, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("task", id)
		}
		return nil, fmt.Errorf("getting task %s: %w", id, err)
	}
	t, err := r.toModel()
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateTask inserts a new pending task. When nt carries a buffered
// reminder it is materialized and linked in the same transaction.
func (s *SQLStore) CreateTask(ctx context.Context, nt model.NewTask) (*model.Task, error) {
	if strings.TrimSpace(nt.Title) == "" {
		return nil, fmt.Errorf("%w: title must not be empty", ErrInvalidTask)
	}
	members := dedupe(nt.AssignedTo)
	if len(members) > model.MaxAssignees {
		return nil, fmt.Errorf("task has %d assignees, at most %d allowed", len(members), model.MaxAssignees)
	}
	if nt.Priority < model.PriorityUrgent || nt.Priority > model.PriorityLow {
		nt.Priority = model.PriorityMedium
	}

	assigned, err := encodeIDs(members)
	if err != nil {
		return nil, fmt.Errorf("encoding assigned_to: %w", err)
	}

	now := time.Now().UTC()
	id := uuid.New().String()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, s.q(`
		INSERT INTO tasks (
			id, title, location, priority, status, assigned_to,
			assignee_name, version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`),
		id, nt.Title, nt.Location, nt.Priority, string(model.StatusPending), assigned,
		nt.AssigneeName, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("creating task: %w", err)
	}

	if nt.Reminder != nil {
		rem := nt.Reminder.ForTask(id)
		rem.ID = uuid.New().String()
		if err := s.insertReminder(ctx, tx, &rem, now); err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx,
			s.q("UPDATE tasks SET reminder_id = ? WHERE id = ?"), rem.ID, id,
		); err != nil {
			return nil, fmt.Errorf("linking reminder %s to task %s: %w", rem.ID, id, err)
		}
	}

	task, err := getTask(ctx, tx, s.q("SELECT "+taskColumns+" FROM tasks WHERE id = ?"), id)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing task %s: %w", id, err)
	}
	return task, nil
}

// UpdateTaskStatus moves a task to a new board column.
func (s *SQLStore) UpdateTaskStatus(ctx context.Context, id string, status model.Status, at time.Time) error {
	if !status.Valid() {
		return fmt.Errorf("invalid status %q", status)
	}

	result, err := s.db.ExecContext(ctx,
		s.q("UPDATE tasks SET status = ?, updated_at = ? WHERE id = ?"),
		string(status), at.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("updating status of task %s: %w", id, err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return notFound("task", id)
	}
	return nil
}

// GetAssignment reads a task's collaborator set and row version.
func (s *SQLStore) GetAssignment(ctx context.Context, taskID string) (*Assignment, error) {
	var row struct {
		AssignedTo string `db:"assigned_to"`
		Version    int64  `db:"version"`
	}
	err := s.db.GetContext(ctx, &row,
		s.q("SELECT assigned_to, version FROM tasks WHERE id = ?"), taskID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("task", taskID)
		}
		return nil, fmt.Errorf("getting assignment of task %s: %w", taskID, err)
	}

	ids, err := decodeIDs(row.AssignedTo)
	if err != nil {
		return nil, fmt.Errorf("decoding assigned_to for task %s: %w", taskID, err)
	}
	return &Assignment{TaskID: taskID, UserIDs: ids, Version: row.Version}, nil
}

// CompareAndSwapAssignees replaces a task's collaborator set only if the
// row is still at expectedVersion. It returns ErrVersionConflict when a
// concurrent writer got there first.
func (s *SQLStore) CompareAndSwapAssignees(
	ctx context.Context,
	taskID string,
	expectedVersion int64,
	userIDs []string,
	at time.Time,
) error {
	if len(userIDs) > model.MaxAssignees {
		return fmt.Errorf("task %s: %d assignees exceeds limit of %d", taskID, len(userIDs), model.MaxAssignees)
	}
	encoded, err := encodeIDs(userIDs)
	if err != nil {
		return fmt.Errorf("encoding assigned_to: %w", err)
	}

	result, err := s.db.ExecContext(ctx, s.q(`
		UPDATE tasks SET assigned_to = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`),
		encoded, at.UTC(), taskID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("updating assignees of task %s: %w", taskID, err)
	}

	rows, _ := result.RowsAffected()
	if rows > 0 {
		return nil
	}

	var exists int
	if err := s.db.GetContext(ctx, &exists,
		s.q("SELECT COUNT(*) FROM tasks WHERE id = ?"), taskID); err != nil {
		return fmt.Errorf("checking task %s: %w", taskID, err)
	}
	if exists == 0 {
		return notFound("task", taskID)
	}
	return fmt.Errorf("task %s at version %d: %w", taskID, expectedVersion, ErrVersionConflict)
}

// SetTaskReminder points a task at its active reminder.
func (s *SQLStore) SetTaskReminder(ctx context.Context, taskID, reminderID string, at time.Time) error {
	result, err := s.db.ExecContext(ctx,
		s.q("UPDATE tasks SET reminder_id = ?, updated_at = ? WHERE id = ?"),
		reminderID, at.UTC(), taskID,
	)
	if err != nil {
		return fmt.Errorf("linking reminder %s to task %s: %w", reminderID, taskID, err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return notFound("task", taskID)
	}
	return nil
}

// dedupe returns ids with duplicates and empty entries removed, keeping
// first-seen order.
func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
