// Package scheduler fires due reminders and advances recurring ones to
// their next occurrence.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/hotel-ops/internal/model"
	"github.com/nhle/hotel-ops/internal/notify"
	"github.com/nhle/hotel-ops/internal/recurrence"
)

// tickTimeout is the maximum time allowed for a single tick.
const tickTimeout = 30 * time.Second

// Store is the subset of store.Store the scheduler needs.
type Store interface {
	ListDueReminders(ctx context.Context, now time.Time, limit int) ([]model.Reminder, error)
	AdvanceReminder(ctx context.Context, id string, next *time.Time, fired int, active bool) error
}

// TickResult summarizes one pass over the due reminders.
type TickResult struct {
	Fired       int
	Rescheduled int
	Finished    int
	Errors      int
}

// Scheduler polls the store for due reminders on a fixed interval.
type Scheduler struct {
	store     Store
	engine    *recurrence.Engine
	notifier  notify.Notifier
	logger    *zap.SugaredLogger
	interval  time.Duration
	batchSize int
	now       func() time.Time

	triggerCh chan struct{}
	stopCh    chan struct{}
	doneCh    chan struct{}
	mu        sync.Mutex
	running   bool
}

// New creates a scheduler. A zero interval polls every 30 seconds.
func New(s Store, engine *recurrence.Engine, n notify.Notifier, logger *zap.SugaredLogger, cfg model.SchedulerConfig) *Scheduler {
	interval := time.Duration(cfg.IntervalSec) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 100
	}
	return &Scheduler{
		store:     s,
		engine:    engine,
		notifier:  n,
		logger:    logger,
		interval:  interval,
		batchSize: batch,
		now:       time.Now,
		triggerCh: make(chan struct{}, 1),
	}
}

// Start launches the polling goroutine. It runs an initial tick
// immediately.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})

	go s.loop(s.stopCh, s.doneCh)
}

// Stop halts the polling goroutine and waits for the current tick.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	done := s.doneCh
	s.mu.Unlock()

	<-done
}

// Trigger requests an immediate tick without blocking.
func (s *Scheduler) Trigger() {
	select {
	case s.triggerCh <- struct{}{}:
	default:
		// A tick is already pending.
	}
}

func (s *Scheduler) loop(stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runTick()
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			s.runTick()
		case <-s.triggerCh:
			s.runTick()
		}
	}
}

func (s *Scheduler) runTick() {
	ctx, cancel := context.WithTimeout(context.Background(), tickTimeout)
	defer cancel()

	res := s.Tick(ctx)
	if res.Fired > 0 || res.Errors > 0 {
		s.logger.Infow("scheduler tick",
			"fired", res.Fired, "rescheduled", res.Rescheduled,
			"finished", res.Finished, "errors", res.Errors)
	}
}

// Tick fires every reminder due at the current time once. Each fired
// reminder emits task_reminder_due and is either moved to its next
// occurrence or deactivated.
func (s *Scheduler) Tick(ctx context.Context) TickResult {
	var res TickResult
	now := s.now()

	due, err := s.store.ListDueReminders(ctx, now, s.batchSize)
	if err != nil {
		s.logger.Errorw("listing due reminders", "error", err)
		res.Errors++
		return res
	}

	for _, r := range due {
		if r.RemindAt == nil {
			continue
		}

		next, fired, more := s.nextAfter(r, now, r.OccurrencesFired+1)

		var nextPtr *time.Time
		if more {
			nextPtr = &next
		}
		if err := s.store.AdvanceReminder(ctx, r.ID, nextPtr, fired, more); err != nil {
			// Not advanced: skip the notification so the next tick retries.
			s.logger.Warnw("advancing reminder", "reminder_id", r.ID, "error", err)
			res.Errors++
			continue
		}

		res.Fired++
		if more {
			res.Rescheduled++
		} else {
			res.Finished++
		}

		taskID := ""
		if r.TaskID != nil {
			taskID = *r.TaskID
		}
		s.notifier.Notify(notify.NewEvent(model.EventReminderDue, taskID, map[string]any{
			"reminder_id": r.ID,
			"message":     r.Message,
			"due_at":      *r.RemindAt,
			"frequency":   r.Frequency,
			"occurrence":  fired,
			"next_at":     nextPtr,
		}))
	}

	return res
}

// maxCatchUp bounds how many missed occurrences a single tick skips.
const maxCatchUp = 10000

// nextAfter returns the first occurrence after now and the updated fired
// count. Occurrences missed while the scheduler was down are skipped but
// still count towards an after-occurrences end condition.
func (s *Scheduler) nextAfter(r model.Reminder, now time.Time, fired int) (time.Time, int, bool) {
	if r.Recurrence == nil {
		return time.Time{}, fired, false
	}

	anchor := *r.RemindAt
	if r.StartDate != nil {
		// Start dates are stored as local midnight in UTC.
		sd := r.StartDate.In(s.engine.Location())
		if first, err := s.engine.FirstTrigger(&sd, r.StartTime); err == nil {
			anchor = first
		}
	}

	last := *r.RemindAt
	for i := 0; i < maxCatchUp; i++ {
		next, ok := s.engine.Next(anchor, last, r.Recurrence, fired)
		if !ok || !next.After(last) {
			return time.Time{}, fired, false
		}
		if next.After(now) {
			return next, fired, true
		}
		fired++
		last = next
	}
	return time.Time{}, fired, false
}
