package app

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/nhle/hotel-ops/internal/assign"
	"github.com/nhle/hotel-ops/internal/board"
	"github.com/nhle/hotel-ops/internal/keys"
	"github.com/nhle/hotel-ops/internal/model"
	"github.com/nhle/hotel-ops/internal/reminder"
	"github.com/nhle/hotel-ops/internal/ui"
	"github.com/nhle/hotel-ops/internal/ui/assignform"
	"github.com/nhle/hotel-ops/internal/ui/boardview"
	helpview "github.com/nhle/hotel-ops/internal/ui/help"
	"github.com/nhle/hotel-ops/internal/ui/reminderform"
	"github.com/nhle/hotel-ops/internal/ui/taskform"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewBoard ViewState = iota
	ViewHelp
	ViewNewTask
	ViewAssign
	ViewReminder
)

// defaultToastTTL is how long a status bar toast stays up.
const defaultToastTTL = 5 * time.Second

// Store is the subset of store.Store the board UI calls directly.
type Store interface {
	CreateTask(ctx context.Context, nt model.NewTask) (*model.Task, error)
	ListUsers(ctx context.Context) ([]model.User, error)
}

// Deps are the core components the UI drives.
type Deps struct {
	Store       Store
	Coordinator *board.Coordinator
	Merger      *assign.Merger
	Reminders   *reminder.Buffer
	Logger      *zap.SugaredLogger
}

type toast struct {
	text  string
	isErr bool
	seq   int
}

// Model is the root Bubble Tea model. It is the only place board state
// changes; store and notification work runs in tea.Cmds.
type Model struct {
	currentView ViewState
	layout      ui.Layout
	keys        *keys.KeyMap
	hints       help.Model
	deps        Deps

	board        boardview.Model
	helpView     helpview.Model
	taskForm     taskform.Model
	assignForm   assignform.Model
	reminderForm reminderform.Model

	users []model.User

	// pendingTask is a task form waiting for its reminder before the
	// task is created.
	pendingTask *model.NewTask

	toast    toast
	toastTTL time.Duration
	loading  bool
	ready    bool
}

// New creates the root model.
func New(d Deps) Model {
	k := keys.DefaultKeyMap()
	return Model{
		currentView:  ViewBoard,
		keys:         k,
		hints:        help.New(),
		deps:         d,
		board:        boardview.New(80, 24),
		helpView:     helpview.New(k, 80, 24),
		taskForm:     taskform.New(80, 24),
		assignForm:   assignform.New(80, 24),
		reminderForm: reminderform.New(80, 24),
		toastTTL:     defaultToastTTL,
		loading:      true,
	}
}

// Init loads the board and the staff list.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.loadBoard(), m.loadUsers())
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		m.hints.Width = msg.Width - 2
		w, h := m.layout.ContentWidth(), m.layout.ContentHeight()
		m.board.SetSize(w, h)
		m.helpView.SetSize(w, h)
		m.taskForm.SetSize(w, h)
		m.assignForm.SetSize(w, h)
		m.reminderForm.SetSize(w, h)
		// Forward to active view so huh forms can calculate their layout.
		return m.updateActiveView(msg)

	case boardLoadedMsg:
		m.loading = false
		if msg.err != nil {
			cmd := m.showError(fmt.Sprintf("Loading board: %v", msg.err))
			return m, cmd
		}
		m.board.SetTasks(msg.tasks)
		return m, nil

	case usersLoadedMsg:
		if msg.err != nil {
			cmd := m.showError(fmt.Sprintf("Loading staff: %v", msg.err))
			return m, cmd
		}
		m.users = msg.users
		m.board.SetUsers(msg.users)
		m.taskForm.SetUsers(msg.users)
		return m, nil

	case moveDoneMsg:
		// Success keeps the optimistic state; failure has already been
		// resynced by the coordinator.
		m.board.SetTasks(m.deps.Coordinator.View().Tasks())
		if msg.err != nil {
			cmd := m.showError(fmt.Sprintf("Could not move %q: %v", msg.move.Before.Title, msg.err))
			return m, cmd
		}
		return m, nil

	case taskCreatedMsg:
		if msg.err != nil {
			cmd := m.showError(fmt.Sprintf("Creating task: %v", msg.err))
			return m, cmd
		}
		m.deps.Coordinator.View().Upsert(*msg.task)
		m.board.SetTasks(m.deps.Coordinator.View().Tasks())
		m.board.Select(msg.task.ID)
		cmd := m.showInfo(fmt.Sprintf("Created %q", msg.task.Title))
		return m, cmd

	case assignDoneMsg:
		if msg.err != nil {
			cmd := m.showError(fmt.Sprintf("Assigning members: %v", msg.err))
			return m, cmd
		}
		if t, ok := m.deps.Coordinator.View().Get(msg.result.TaskID); ok {
			t.AssignedTo = msg.result.Assignees
			m.deps.Coordinator.View().Upsert(t)
			m.board.SetTasks(m.deps.Coordinator.View().Tasks())
		}
		cmd := m.showInfo(fmt.Sprintf("Added %d member(s)", len(msg.result.Added)))
		return m, cmd

	case reminderDoneMsg:
		if msg.err != nil {
			cmd := m.showError(fmt.Sprintf("Saving reminder: %v", msg.err))
			return m, cmd
		}
		if !msg.outcome.Linked {
			// The reminder row exists and will fire; only the card's
			// badge is missing until the next reload.
			cmd := m.showInfo("Reminder saved")
			return m, cmd
		}
		if t, ok := m.deps.Coordinator.View().Get(msg.taskID); ok {
			id := msg.outcome.Reminder.ID
			t.ReminderID = &id
			m.deps.Coordinator.View().Upsert(t)
			m.board.SetTasks(m.deps.Coordinator.View().Tasks())
		}
		cmd := m.showInfo("Reminder set")
		return m, cmd

	case toastExpiredMsg:
		if msg.seq == m.toast.seq {
			m.toast = toast{seq: m.toast.seq}
		}
		return m, nil

	case helpview.CloseMsg:
		m.currentView = ViewBoard
		return m, nil

	case taskform.SubmittedMsg:
		if msg.WithReminder {
			nt := msg.Task
			m.pendingTask = &nt
			m.currentView = ViewReminder
			cmd := m.reminderForm.Start(model.Task{Title: nt.Title})
			return m, cmd
		}
		m.currentView = ViewBoard
		return m, m.createTask(msg.Task, nil)

	case taskform.CancelMsg, assignform.CancelMsg:
		m.currentView = ViewBoard
		return m, nil

	case assignform.SubmittedMsg:
		m.currentView = ViewBoard
		return m, m.assign(msg.TaskID, msg.UserIDs)

	case reminderform.SubmittedMsg:
		m.currentView = ViewBoard
		if m.pendingTask != nil {
			nt := *m.pendingTask
			m.pendingTask = nil
			return m, m.createTask(nt, &msg.Input)
		}
		return m, m.setReminder(msg.Task, msg.Input)

	case reminderform.CancelMsg:
		m.currentView = ViewBoard
		if m.pendingTask != nil {
			// The task form was completed; only the reminder is dropped.
			nt := *m.pendingTask
			m.pendingTask = nil
			return m, m.createTask(nt, nil)
		}
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.currentView == ViewBoard {
			return m.handleBoardKey(msg)
		}
	}

	return m.updateActiveView(msg)
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewNewTask:
		m.taskForm, cmd = m.taskForm.Update(msg)
	case ViewAssign:
		m.assignForm, cmd = m.assignForm.Update(msg)
	case ViewReminder:
		m.reminderForm, cmd = m.reminderForm.Update(msg)
	}

	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader("Hotel Operations", m.headerStatus())

	var statusBar string
	switch {
	case m.toast.text != "" && m.toast.isErr:
		statusBar = m.layout.RenderToast(m.toast.text)
	case m.toast.text != "":
		statusBar = m.layout.RenderStatusBar(m.toast.text)
	default:
		statusBar = m.layout.RenderStatusBar(m.keyHints())
	}

	return m.layout.RenderWithFrame(header, m.renderContent(), statusBar)
}

func (m Model) renderContent() string {
	switch m.currentView {
	case ViewHelp:
		return m.helpView.View()
	case ViewNewTask:
		return m.taskForm.View()
	case ViewAssign:
		return m.assignForm.View()
	case ViewReminder:
		return m.reminderForm.View()
	default:
		return m.board.View()
	}
}

func (m Model) headerStatus() string {
	if m.loading {
		return "loading…"
	}
	total := 0
	for _, s := range model.Statuses {
		total += m.board.Count(s)
	}
	return fmt.Sprintf("%d tasks", total)
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	switch m.currentView {
	case ViewHelp:
		return "any key close"
	case ViewNewTask, ViewAssign, ViewReminder:
		return "enter next | esc cancel"
	default:
		return m.hints.ShortHelpView(m.keys.ShortHelp())
	}
}

func (m *Model) showError(text string) tea.Cmd {
	return m.setToast(text, true)
}

func (m *Model) showInfo(text string) tea.Cmd {
	return m.setToast(text, false)
}

func (m *Model) setToast(text string, isErr bool) tea.Cmd {
	seq := m.toast.seq + 1
	m.toast = toast{text: text, isErr: isErr, seq: seq}
	return tea.Tick(m.toastTTL, func(time.Time) tea.Msg {
		return toastExpiredMsg{seq: seq}
	})
}
