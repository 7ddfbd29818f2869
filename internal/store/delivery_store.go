package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/hotel-ops/internal/model"
)

// RecordDelivery appends one entry to the notification log.
func (s *SQLStore) RecordDelivery(ctx context.Context, d model.Delivery) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO notification_log (
			id, event_id, task_id, event_kind, status, attempts, last_error, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		d.ID, d.EventID, d.TaskID, string(d.Kind), d.Status, d.Attempts, d.LastError,
		d.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording delivery of event %s: %w", d.EventID, err)
	}
	return nil
}

// ListDeliveries returns the notification log for a task, newest first.
func (s *SQLStore) ListDeliveries(ctx context.Context, taskID string) ([]model.Delivery, error) {
	deliveries := []model.Delivery{}
	err := s.db.SelectContext(ctx, &deliveries, s.q(`
		SELECT id, event_id, task_id, event_kind, status, attempts, last_error, created_at
		FROM notification_log WHERE task_id = ?
		ORDER BY created_at DESC, id`), taskID)
	if err != nil {
		return nil, fmt.Errorf("querying deliveries of task %s: %w", taskID, err)
	}
	return deliveries, nil
}
