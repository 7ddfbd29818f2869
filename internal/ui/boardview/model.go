// Package boardview renders tasks as Kanban columns with a card cursor.
package boardview

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/hotel-ops/internal/model"
	"github.com/nhle/hotel-ops/internal/theme"
)

// Model holds the board's columns and cursor. It does no I/O; the root
// model feeds it tasks and asks it what is selected.
type Model struct {
	columns [][]model.Task
	cursor  []int
	focus   int
	users   map[string]string
	width   int
	height  int
}

// New creates an empty board.
func New(width, height int) Model {
	return Model{
		columns: make([][]model.Task, len(model.Statuses)),
		cursor:  make([]int, len(model.Statuses)),
		users:   make(map[string]string),
		width:   width,
		height:  height,
	}
}

// SetSize updates the board dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// SetUsers records display names for assignee IDs.
func (m *Model) SetUsers(users []model.User) {
	m.users = make(map[string]string, len(users))
	for _, u := range users {
		m.users[u.ID] = u.DisplayName
	}
}

// SetTasks regroups tasks by status. The selected card stays selected
// if it is still on the board.
func (m *Model) SetTasks(tasks []model.Task) {
	selected, hadSelection := m.Selected()

	for i := range m.columns {
		m.columns[i] = m.columns[i][:0]
	}
	for _, t := range tasks {
		if idx := columnIndex(t.Status); idx >= 0 {
			m.columns[idx] = append(m.columns[idx], t)
		}
	}

	if !hadSelection || !m.Select(selected.ID) {
		m.clampCursor(m.focus)
	}
}

// Select moves focus and cursor to the card with the given ID.
func (m *Model) Select(taskID string) bool {
	for col, tasks := range m.columns {
		for row, t := range tasks {
			if t.ID == taskID {
				m.focus = col
				m.cursor[col] = row
				return true
			}
		}
	}
	return false
}

// Selected returns the card under the cursor.
func (m Model) Selected() (model.Task, bool) {
	tasks := m.columns[m.focus]
	if len(tasks) == 0 {
		return model.Task{}, false
	}
	return tasks[m.cursor[m.focus]], true
}

// FocusedStatus returns the status of the focused column.
func (m Model) FocusedStatus() model.Status {
	return model.Statuses[m.focus]
}

// FocusColumn moves the focus delta columns, clamped to the board.
func (m *Model) FocusColumn(delta int) {
	m.focus += delta
	if m.focus < 0 {
		m.focus = 0
	}
	if m.focus >= len(m.columns) {
		m.focus = len(m.columns) - 1
	}
	m.clampCursor(m.focus)
}

// MoveCursor moves the card cursor delta rows within the focused column.
func (m *Model) MoveCursor(delta int) {
	m.cursor[m.focus] += delta
	m.clampCursor(m.focus)
}

// Count returns the number of cards in the column for s.
func (m Model) Count(s model.Status) int {
	if idx := columnIndex(s); idx >= 0 {
		return len(m.columns[idx])
	}
	return 0
}

func (m *Model) clampCursor(col int) {
	n := len(m.columns[col])
	switch {
	case n == 0:
		m.cursor[col] = 0
	case m.cursor[col] >= n:
		m.cursor[col] = n - 1
	case m.cursor[col] < 0:
		m.cursor[col] = 0
	}
}

func columnIndex(s model.Status) int {
	for i, st := range model.Statuses {
		if st == s {
			return i
		}
	}
	return -1
}

// View renders the columns side by side.
func (m Model) View() string {
	colWidth := m.width / len(m.columns)
	if colWidth < 16 {
		colWidth = 16
	}
	// Border and padding take four cells.
	inner := colWidth - 4

	rendered := make([]string, len(m.columns))
	for i, tasks := range m.columns {
		status := model.Statuses[i]
		var b strings.Builder
		b.WriteString(theme.StatusStyle(string(status)).Render(
			fmt.Sprintf("%s (%d)", status.Label(), len(tasks))))
		b.WriteString("\n")

		for row, t := range tasks {
			b.WriteString("\n")
			b.WriteString(m.renderCard(t, inner, i == m.focus && row == m.cursor[i]))
		}

		style := theme.ColumnStyle
		if i == m.focus {
			style = theme.FocusedColumnStyle
		}
		rendered[i] = style.Width(inner).Height(m.height - 2).Render(b.String())
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}

func (m Model) renderCard(t model.Task, width int, selected bool) string {
	title := truncate(t.Title, width-2)
	prio := theme.PriorityStyle(t.Priority).Render(fmt.Sprintf("P%d", t.Priority))

	line := prio + " " + title
	if selected {
		line = theme.SelectedCardStyle.Render(title)
	} else {
		line = theme.CardStyle.Render(line)
	}

	var meta []string
	if t.Location != "" {
		meta = append(meta, t.Location)
	}
	if names := m.assigneeNames(t); names != "" {
		meta = append(meta, names)
	}
	if t.ReminderID != nil {
		meta = append(meta, "⏰")
	}
	if len(meta) == 0 {
		return line
	}
	return line + "\n" + theme.DimmedStyle.Render(" "+truncate(strings.Join(meta, " · "), width-2))
}

func (m Model) assigneeNames(t model.Task) string {
	if len(t.AssignedTo) == 0 {
		return ""
	}
	names := make([]string, len(t.AssignedTo))
	for i, id := range t.AssignedTo {
		if n, ok := m.users[id]; ok && n != "" {
			names[i] = n
		} else {
			names[i] = id
		}
	}
	return strings.Join(names, ", ")
}

func truncate(s string, n int) string {
	if n <= 1 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
