// Package assignform is the member picker opened from a board card.
package assignform

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/hotel-ops/internal/model"
	"github.com/nhle/hotel-ops/internal/theme"
)

// SubmittedMsg carries the users picked for a task. Members already on
// the task are not offered, so every ID is a new selection.
type SubmittedMsg struct {
	TaskID  string
	UserIDs []string
}

// CancelMsg is dispatched when the picker is aborted.
type CancelMsg struct{}

// Model wraps a huh.MultiSelect of staff users.
type Model struct {
	form     *huh.Form
	selected *[]string
	task     model.Task
	width    int
	height   int
}

// New creates an idle picker.
func New(width, height int) Model {
	return Model{selected: new([]string), width: width, height: height}
}

// Start opens the picker for task, offering the users not yet assigned.
// It returns false when there is nobody left to add.
func (m *Model) Start(task model.Task, users []model.User) (tea.Cmd, bool) {
	assigned := make(map[string]bool, len(task.AssignedTo))
	for _, id := range task.AssignedTo {
		assigned[id] = true
	}

	var opts []huh.Option[string]
	for _, u := range users {
		if !assigned[u.ID] {
			opts = append(opts, huh.NewOption(u.DisplayName, u.ID))
		}
	}
	if len(opts) == 0 {
		return nil, false
	}

	room := model.MaxAssignees - len(task.AssignedTo)
	if room < 1 {
		room = 1
	}

	m.task = task
	*m.selected = nil
	m.form = huh.NewForm(huh.NewGroup(
		huh.NewMultiSelect[string]().
			Title(fmt.Sprintf("Add members to %q", task.Title)).
			Description(fmt.Sprintf("%d of %d places taken", len(task.AssignedTo), model.MaxAssignees)).
			Options(opts...).
			Limit(room).
			Value(m.selected),
	)).WithWidth(60)
	return m.form.Init(), true
}

// Update handles messages for the picker.
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
		out := SubmittedMsg{TaskID: m.task.ID, UserIDs: append([]string(nil), *m.selected...)}
		return m, func() tea.Msg { return out }
	case huh.StateAborted:
		m.form = nil
		return m, func() tea.Msg { return CancelMsg{} }
	}
	return m, cmd
}

// View renders the picker.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}
	return theme.PanelStyle.
		Width(lipgloss.Width(m.form.View()) + 4).
		Render(m.form.View())
}

// SetSize updates the picker dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}
