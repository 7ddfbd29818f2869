package app

import (
	"strconv"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/hotel-ops/internal/board"
	"github.com/nhle/hotel-ops/internal/model"
)

// handleBoardKey handles key presses while the board has focus.
func (m Model) handleBoardKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	k := m.keys

	switch {
	case key.Matches(msg, k.Quit):
		return m, tea.Quit

	case key.Matches(msg, k.Help):
		m.currentView = ViewHelp
		return m, nil

	case key.Matches(msg, k.Refresh):
		m.loading = true
		return m, tea.Batch(m.loadBoard(), m.loadUsers())

	case key.Matches(msg, k.Up):
		m.board.MoveCursor(-1)
	case key.Matches(msg, k.Down):
		m.board.MoveCursor(1)
	case key.Matches(msg, k.PrevColumn):
		m.board.FocusColumn(-1)
	case key.Matches(msg, k.NextColumn):
		m.board.FocusColumn(1)

	case key.Matches(msg, k.MoveLeft), key.Matches(msg, k.MoveRight):
		t, ok := m.board.Selected()
		if !ok {
			return m, nil
		}
		delta := 1
		if key.Matches(msg, k.MoveLeft) {
			delta = -1
		}
		return m.startMove(t, board.Neighbor(t.Status, delta))

	case key.Matches(msg, k.ToColumn):
		t, ok := m.board.Selected()
		if !ok {
			return m, nil
		}
		n, err := strconv.Atoi(msg.String())
		if err != nil || n < 1 || n > len(model.Statuses) {
			return m, nil
		}
		return m.startMove(t, model.Statuses[n-1])

	case key.Matches(msg, k.Reopen):
		t, ok := m.board.Selected()
		if !ok {
			return m, nil
		}
		to, _, err := board.Next(t.Status, board.ActionReopen)
		if err != nil {
			cmd := m.showError(err.Error())
			return m, cmd
		}
		return m.startMove(t, to)

	case key.Matches(msg, k.New):
		m.currentView = ViewNewTask
		cmd := m.taskForm.Start()
		return m, cmd

	case key.Matches(msg, k.Assign):
		t, ok := m.board.Selected()
		if !ok {
			return m, nil
		}
		if len(t.AssignedTo) >= model.MaxAssignees {
			cmd := m.showError("Task already has the maximum number of members")
			return m, cmd
		}
		cmd, ok := m.assignForm.Start(t, m.users)
		if !ok {
			cmd := m.showInfo("Everyone is already assigned")
			return m, cmd
		}
		m.currentView = ViewAssign
		return m, cmd

	case key.Matches(msg, k.Reminder):
		t, ok := m.board.Selected()
		if !ok {
			return m, nil
		}
		m.currentView = ViewReminder
		cmd := m.reminderForm.Start(t)
		return m, cmd
	}

	return m, nil
}

// startMove applies the move to the board at once and persists it in
// the background.
func (m Model) startMove(t model.Task, to model.Status) (tea.Model, tea.Cmd) {
	mv, err := m.deps.Coordinator.Begin(t.ID, to)
	if err != nil {
		cmd := m.showError(err.Error())
		return m, cmd
	}
	if !mv.Changed {
		return m, nil
	}

	m.board.SetTasks(m.deps.Coordinator.View().Tasks())
	m.board.Select(t.ID)
	return m, m.finishMove(mv)
}
