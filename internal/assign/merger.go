// Package assign merges newly selected collaborators into a task's
// assignee set without losing concurrent additions.
package assign

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/hotel-ops/internal/model"
	"github.com/nhle/hotel-ops/internal/notify"
	"github.com/nhle/hotel-ops/internal/store"
)

var (
	// ErrTooManyAssignees is returned when the merged set would exceed
	// model.MaxAssignees. Nothing is written.
	ErrTooManyAssignees = errors.New("too many assignees")

	// ErrUnknownUser is returned when a selected ID matches no user.
	ErrUnknownUser = errors.New("unknown user")

	// ErrNoSelection is returned for an empty selection.
	ErrNoSelection = errors.New("no users selected")
)

// Store is the subset of store.Store the merger needs.
type Store interface {
	GetAssignment(ctx context.Context, taskID string) (*store.Assignment, error)
	CompareAndSwapAssignees(ctx context.Context, taskID string, expectedVersion int64, userIDs []string, at time.Time) error
	GetUsers(ctx context.Context, ids []string) ([]model.User, error)
}

// Result describes a completed merge.
type Result struct {
	TaskID    string
	Assignees []string
	Added     []string
}

// Merger implements read-current, merge, compare-and-swap write back.
type Merger struct {
	store      Store
	notifier   notify.Notifier
	logger     *zap.SugaredLogger
	maxRetries int
	now        func() time.Time
}

// NewMerger creates a merger that retries a lost compare-and-swap up to
// maxRetries times.
func NewMerger(s Store, n notify.Notifier, logger *zap.SugaredLogger, maxRetries int) *Merger {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Merger{
		store:      s,
		notifier:   n,
		logger:     logger,
		maxRetries: maxRetries,
		now:        time.Now,
	}
}

// Merge returns current followed by the members of selected not already
// present, without duplicates, and the members that were added.
func Merge(current, selected []string) (merged, added []string) {
	seen := make(map[string]bool, len(current)+len(selected))
	merged = make([]string, 0, len(current)+len(selected))

	for _, id := range current {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		merged = append(merged, id)
	}
	for _, id := range selected {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		merged = append(merged, id)
		added = append(added, id)
	}
	return merged, added
}

// MergeAssign adds selected users to the task's assignee set. The set
// is re-read right before each write attempt. Only the newly added
// members are announced with task_members_assigned.
func (m *Merger) MergeAssign(ctx context.Context, taskID string, selected []string) (*Result, error) {
	_, wanted := Merge(nil, selected)
	if len(wanted) == 0 {
		return nil, ErrNoSelection
	}
	if len(wanted) > model.MaxAssignees {
		return nil, fmt.Errorf("%w: %d selected, at most %d allowed", ErrTooManyAssignees, len(wanted), model.MaxAssignees)
	}
	if err := m.CheckUsers(ctx, wanted); err != nil {
		return nil, err
	}

	for attempt := 0; attempt <= m.maxRetries; attempt++ {
		current, err := m.store.GetAssignment(ctx, taskID)
		if err != nil {
			return nil, fmt.Errorf("reading assignees of task %s: %w", taskID, err)
		}

		merged, added := Merge(current.UserIDs, wanted)
		if len(added) == 0 {
			return &Result{TaskID: taskID, Assignees: merged}, nil
		}
		if len(merged) > model.MaxAssignees {
			return nil, fmt.Errorf("%w: task %s would have %d, at most %d allowed",
				ErrTooManyAssignees, taskID, len(merged), model.MaxAssignees)
		}

		err = m.store.CompareAndSwapAssignees(ctx, taskID, current.Version, merged, m.now().UTC())
		if errors.Is(err, store.ErrVersionConflict) {
			m.logger.Infow("assignee write lost a race, retrying",
				"task_id", taskID, "attempt", attempt+1)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("writing assignees of task %s: %w", taskID, err)
		}

		m.notifier.Notify(notify.NewEvent(model.EventMembersAssigned, taskID, map[string]any{
			"added": added,
		}))
		return &Result{TaskID: taskID, Assignees: merged, Added: added}, nil
	}

	return nil, fmt.Errorf("merging assignees of task %s after %d attempts: %w",
		taskID, m.maxRetries+1, store.ErrVersionConflict)
}

// CheckUsers returns ErrUnknownUser naming every id that matches no user.
func (m *Merger) CheckUsers(ctx context.Context, ids []string) error {
	users, err := m.store.GetUsers(ctx, ids)
	if err != nil {
		return fmt.Errorf("looking up users: %w", err)
	}

	known := make(map[string]bool, len(users))
	for _, u := range users {
		known[u.ID] = true
	}
	var missing []string
	for _, id := range ids {
		if !known[id] {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrUnknownUser, strings.Join(missing, ", "))
	}
	return nil
}
