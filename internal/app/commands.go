package app

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/hotel-ops/internal/assign"
	"github.com/nhle/hotel-ops/internal/board"
	"github.com/nhle/hotel-ops/internal/model"
	"github.com/nhle/hotel-ops/internal/reminder"
)

type boardLoadedMsg struct {
	tasks []model.Task
	err   error
}

type usersLoadedMsg struct {
	users []model.User
	err   error
}

type moveDoneMsg struct {
	move board.Move
	err  error
}

type taskCreatedMsg struct {
	task *model.Task
	err  error
}

type assignDoneMsg struct {
	result *assign.Result
	err    error
}

type reminderDoneMsg struct {
	taskID  string
	outcome *reminder.Outcome
	err     error
}

type toastExpiredMsg struct {
	seq int
}

// loadBoard reloads every task into the coordinator's view.
func (m Model) loadBoard() tea.Cmd {
	c := m.deps.Coordinator
	return func() tea.Msg {
		tasks, err := c.Resync(context.Background())
		return boardLoadedMsg{tasks: tasks, err: err}
	}
}

func (m Model) loadUsers() tea.Cmd {
	s := m.deps.Store
	return func() tea.Msg {
		users, err := s.ListUsers(context.Background())
		return usersLoadedMsg{users: users, err: err}
	}
}

func (m Model) finishMove(mv board.Move) tea.Cmd {
	c := m.deps.Coordinator
	return func() tea.Msg {
		err := c.Finish(context.Background(), mv)
		return moveDoneMsg{move: mv, err: err}
	}
}

// createTask creates nt. A reminder entered before the task existed is
// buffered and saved with the task in one write.
func (m Model) createTask(nt model.NewTask, in *reminder.Input) tea.Cmd {
	s := m.deps.Store
	b := m.deps.Reminders
	return func() tea.Msg {
		ctx := context.Background()
		if in != nil {
			out, err := b.BufferOrPersist(ctx, model.Task{Title: nt.Title}, *in)
			if err != nil {
				return taskCreatedMsg{err: err}
			}
			nt.Reminder = out.Buffered
		}
		task, err := s.CreateTask(ctx, nt)
		return taskCreatedMsg{task: task, err: err}
	}
}

func (m Model) assign(taskID string, userIDs []string) tea.Cmd {
	mg := m.deps.Merger
	return func() tea.Msg {
		res, err := mg.MergeAssign(context.Background(), taskID, userIDs)
		return assignDoneMsg{result: res, err: err}
	}
}

func (m Model) setReminder(task model.Task, in reminder.Input) tea.Cmd {
	b := m.deps.Reminders
	return func() tea.Msg {
		out, err := b.BufferOrPersist(context.Background(), task, in)
		return reminderDoneMsg{taskID: task.ID, outcome: out, err: err}
	}
}
