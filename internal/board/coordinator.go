package board

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/hotel-ops/internal/model"
	"github.com/nhle/hotel-ops/internal/notify"
	"github.com/nhle/hotel-ops/internal/store"
)

var (
	// ErrMoveFailed wraps the store error of a move that could not be
	// persisted. The view has been resynchronized by the time it is
	// returned from Move.
	ErrMoveFailed = errors.New("move failed")

	// ErrUnknownTask is returned when the task is not on the board.
	ErrUnknownTask = errors.New("task is not on the board")
)

// TaskStore is the subset of store.Store the coordinator needs.
type TaskStore interface {
	ListTasks(ctx context.Context, filter store.TaskFilter) ([]model.Task, error)
	GetTask(ctx context.Context, id string) (*model.Task, error)
	UpdateTaskStatus(ctx context.Context, id string, status model.Status, at time.Time) error
}

// Move describes one status change of a task.
type Move struct {
	TaskID  string
	From    model.Status
	To      model.Status
	At      time.Time
	Before  model.Task
	Changed bool
}

// Coordinator drives status moves: optimistic view update, persist,
// notify on success, resync on failure.
type Coordinator struct {
	store    TaskStore
	notifier notify.Notifier
	view     *View
	logger   *zap.SugaredLogger
	now      func() time.Time
}

// NewCoordinator creates a coordinator. view may be nil for callers
// that only use MoveStored.
func NewCoordinator(s TaskStore, n notify.Notifier, view *View, logger *zap.SugaredLogger) *Coordinator {
	if view == nil {
		view = NewView(nil)
	}
	return &Coordinator{
		store:    s,
		notifier: n,
		view:     view,
		logger:   logger,
		now:      time.Now,
	}
}

// View returns the coordinator's board view.
func (c *Coordinator) View() *View {
	return c.view
}

// Begin applies the optimistic part of a move to the view. A move to the
// task's current column returns a Move with Changed false and touches
// nothing.
func (c *Coordinator) Begin(taskID string, to model.Status) (Move, error) {
	if !to.Valid() {
		return Move{}, fmt.Errorf("unknown task status %q", to)
	}

	task, ok := c.view.Get(taskID)
	if !ok {
		return Move{}, fmt.Errorf("%w: %s", ErrUnknownTask, taskID)
	}

	action, err := ActionFor(to)
	if err != nil {
		return Move{}, err
	}
	next, changed, err := Next(task.Status, action)
	if err != nil {
		return Move{}, err
	}

	m := Move{
		TaskID:  taskID,
		From:    task.Status,
		To:      next,
		At:      c.now().UTC(),
		Before:  task,
		Changed: changed,
	}
	if changed {
		c.view.setStatus(taskID, next, m.At)
	}
	return m, nil
}

// Commit persists a begun move and, on success, emits
// task_status_changed. On failure the view still holds the optimistic
// state; callers follow up with Resync.
func (c *Coordinator) Commit(ctx context.Context, m Move) error {
	if !m.Changed {
		return nil
	}

	if err := c.store.UpdateTaskStatus(ctx, m.TaskID, m.To, m.At); err != nil {
		return fmt.Errorf("%w: %w", ErrMoveFailed, err)
	}

	after := m.Before
	after.Status = m.To
	after.UpdatedAt = m.At
	c.notifier.Notify(statusEvent(m, after))
	return nil
}

// Resync reloads the full task list from the store into the view.
func (c *Coordinator) Resync(ctx context.Context) ([]model.Task, error) {
	tasks, err := c.store.ListTasks(ctx, store.TaskFilter{})
	if err != nil {
		return nil, fmt.Errorf("reloading board: %w", err)
	}
	c.view.Replace(tasks)
	return tasks, nil
}

// Move runs a full move: Begin, Commit, and Resync when the commit
// fails. The returned error wraps ErrMoveFailed on persistence failure.
func (c *Coordinator) Move(ctx context.Context, taskID string, to model.Status) (Move, error) {
	m, err := c.Begin(taskID, to)
	if err != nil || !m.Changed {
		return m, err
	}
	return m, c.Finish(ctx, m)
}

// Finish commits a begun move and resyncs the view when the commit
// fails. Callers driving an event loop run Begin synchronously and
// Finish in the background.
func (c *Coordinator) Finish(ctx context.Context, m Move) error {
	err := c.Commit(ctx, m)
	if err == nil {
		return nil
	}

	c.logger.Warnw("status move failed, resyncing board",
		"task_id", m.TaskID, "from", m.From, "to", m.To, "error", err)
	if _, rerr := c.Resync(ctx); rerr != nil {
		c.logger.Errorw("board resync failed", "error", rerr)
	}
	return err
}

// Apply runs Move for a named action such as reopen.
func (c *Coordinator) Apply(ctx context.Context, taskID string, a Action) (Move, error) {
	task, ok := c.view.Get(taskID)
	if !ok {
		return Move{}, fmt.Errorf("%w: %s", ErrUnknownTask, taskID)
	}
	to, _, err := Next(task.Status, a)
	if err != nil {
		return Move{}, err
	}
	return c.Move(ctx, taskID, to)
}

// MoveStored moves a task using the store as the source of truth
// instead of the view. It serves callers without a local board, such
// as the HTTP API. The view is refreshed only for tasks it already
// holds; it never gains tasks this way.
func (c *Coordinator) MoveStored(ctx context.Context, taskID string, to model.Status) (*model.Task, Move, error) {
	task, err := c.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, Move{}, err
	}

	action, err := ActionFor(to)
	if err != nil {
		return nil, Move{}, err
	}
	next, changed, err := Next(task.Status, action)
	if err != nil {
		return nil, Move{}, err
	}

	m := Move{
		TaskID:  taskID,
		From:    task.Status,
		To:      next,
		At:      c.now().UTC(),
		Before:  *task,
		Changed: changed,
	}
	if !changed {
		return task, m, nil
	}

	if err := c.Commit(ctx, m); err != nil {
		return nil, m, err
	}

	after := *task
	after.Status = next
	after.UpdatedAt = m.At
	if _, ok := c.view.Get(taskID); ok {
		c.view.Upsert(after)
	}
	return &after, m, nil
}

func statusEvent(m Move, after model.Task) model.Event {
	return notify.NewEvent(model.EventStatusChanged, m.TaskID, map[string]any{
		"title":  after.Title,
		"from":   m.From,
		"to":     m.To,
		"before": m.Before,
		"after":  after,
	})
}
