// Package taskform is the huh form for creating a task from the board.
package taskform

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/hotel-ops/internal/model"
	"github.com/nhle/hotel-ops/internal/theme"
)

// SubmittedMsg carries a completed form. WithReminder asks the parent to
// collect a reminder before the task is created.
type SubmittedMsg struct {
	Task         model.NewTask
	WithReminder bool
}

// CancelMsg is dispatched when the user aborts the form.
type CancelMsg struct{}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	title        string
	location     string
	priority     int
	assignees    []string
	withReminder bool
}

// Model is the Bubble Tea model for the new task form.
type Model struct {
	form   *huh.Form
	fb     *formBindings
	users  []model.User
	width  int
	height int
}

// New creates a new task form model.
func New(width, height int) Model {
	return Model{
		fb:     &formBindings{priority: model.PriorityMedium},
		width:  width,
		height: height,
	}
}

// SetUsers sets the staff offered in the assignee picker.
func (m *Model) SetUsers(users []model.User) {
	m.users = users
}

// Start resets the bindings and builds a fresh form.
func (m *Model) Start() tea.Cmd {
	*m.fb = formBindings{priority: model.PriorityMedium}
	m.form = m.build()
	return m.form.Init()
}

// Update handles messages for the form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		m.form = nil
		return m, m.submit()
	case huh.StateAborted:
		m.form = nil
		return m, func() tea.Msg { return CancelMsg{} }
	}
	return m, cmd
}

// View renders the form.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}

	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1).
		Render("New Task")

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(title + "\n" + m.form.View())
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m *Model) build() *huh.Form {
	fields := []huh.Field{
		huh.NewInput().
			Title("Title").
			Placeholder("What needs doing?").
			Value(&m.fb.title).
			Validate(validateRequired("Title")),
		huh.NewInput().
			Title("Location").
			Placeholder("Room, floor or area").
			Value(&m.fb.location),
		huh.NewSelect[int]().
			Title("Priority").
			Options(
				huh.NewOption("P1 - Urgent", model.PriorityUrgent),
				huh.NewOption("P2 - High", model.PriorityHigh),
				huh.NewOption("P3 - Medium", model.PriorityMedium),
				huh.NewOption("P4 - Low", model.PriorityLow),
			).
			Value(&m.fb.priority),
	}

	if len(m.users) > 0 {
		opts := make([]huh.Option[string], len(m.users))
		for i, u := range m.users {
			opts[i] = huh.NewOption(u.DisplayName, u.ID)
		}
		fields = append(fields, huh.NewMultiSelect[string]().
			Title("Assign to").
			Options(opts...).
			Limit(model.MaxAssignees).
			Value(&m.fb.assignees))
	}

	fields = append(fields, huh.NewConfirm().
		Title("Add a reminder?").
		Value(&m.fb.withReminder))

	return huh.NewForm(huh.NewGroup(fields...)).
		WithWidth(formWidth(m.width)).
		WithHeight(formHeight(m.height))
}

func (m Model) submit() tea.Cmd {
	nt := model.NewTask{
		Title:      strings.TrimSpace(m.fb.title),
		Location:   strings.TrimSpace(m.fb.location),
		Priority:   m.fb.priority,
		AssignedTo: append([]string(nil), m.fb.assignees...),
	}
	with := m.fb.withReminder
	return func() tea.Msg { return SubmittedMsg{Task: nt, WithReminder: with} }
}

func formWidth(w int) int {
	w -= 4
	if w < 40 {
		w = 40
	}
	if w > 100 {
		w = 100
	}
	return w
}

func formHeight(h int) int {
	h -= 4
	if h < 10 {
		h = 10
	}
	return h
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}
