// Package board coordinates moves of tasks between Kanban columns.
package board

import (
	"fmt"

	"github.com/nhle/hotel-ops/internal/model"
)

// Action is a named board command. Dragging a card to a column is
// expressed as the action targeting that column.
type Action string

const (
	ActionStart    Action = "start"
	ActionComplete Action = "complete"
	ActionVerify   Action = "verify"
	ActionReopen   Action = "reopen"
)

// transitions is the board's state machine. Every status accepts every
// action; the board enforces no ordering and has no terminal state.
var transitions = map[model.Status]map[Action]model.Status{
	model.StatusPending: {
		ActionStart:    model.StatusInProgress,
		ActionComplete: model.StatusCompleted,
		ActionVerify:   model.StatusVerified,
		ActionReopen:   model.StatusPending,
	},
	model.StatusInProgress: {
		ActionStart:    model.StatusInProgress,
		ActionComplete: model.StatusCompleted,
		ActionVerify:   model.StatusVerified,
		ActionReopen:   model.StatusPending,
	},
	model.StatusCompleted: {
		ActionStart:    model.StatusInProgress,
		ActionComplete: model.StatusCompleted,
		ActionVerify:   model.StatusVerified,
		ActionReopen:   model.StatusPending,
	},
	model.StatusVerified: {
		ActionStart:    model.StatusInProgress,
		ActionComplete: model.StatusCompleted,
		ActionVerify:   model.StatusVerified,
		ActionReopen:   model.StatusPending,
	},
}

// Next returns the status reached by applying a in state from. changed
// is false when the action leaves the task where it is.
func Next(from model.Status, a Action) (to model.Status, changed bool, err error) {
	row, ok := transitions[from]
	if !ok {
		return "", false, fmt.Errorf("unknown task status %q", from)
	}
	to, ok = row[a]
	if !ok {
		return "", false, fmt.Errorf("unknown board action %q", a)
	}
	return to, to != from, nil
}

// ActionFor returns the action that moves a card into column to.
func ActionFor(to model.Status) (Action, error) {
	switch to {
	case model.StatusPending:
		return ActionReopen, nil
	case model.StatusInProgress:
		return ActionStart, nil
	case model.StatusCompleted:
		return ActionComplete, nil
	case model.StatusVerified:
		return ActionVerify, nil
	}
	return "", fmt.Errorf("unknown task status %q", to)
}

// ParseAction converts a raw string into an Action.
func ParseAction(raw string) (Action, error) {
	a := Action(raw)
	switch a {
	case ActionStart, ActionComplete, ActionVerify, ActionReopen:
		return a, nil
	}
	return "", fmt.Errorf("unknown board action %q", raw)
}

// Neighbor returns the column delta steps away from s in board order,
// clamped to the first and last columns.
func Neighbor(s model.Status, delta int) model.Status {
	idx := 0
	for i, st := range model.Statuses {
		if st == s {
			idx = i
			break
		}
	}
	idx += delta
	if idx < 0 {
		idx = 0
	}
	if idx >= len(model.Statuses) {
		idx = len(model.Statuses) - 1
	}
	return model.Statuses[idx]
}
