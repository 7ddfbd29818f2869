package help

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/hotel-ops/internal/keys"
	"github.com/nhle/hotel-ops/internal/theme"
)

// CloseMsg asks the parent to leave the help overlay.
type CloseMsg struct{}

// sectionTitles label the groups returned by KeyMap.FullHelp, in order.
var sectionTitles = []string{"Cursor", "Move card", "Task", "General"}

// Model is the full key binding overlay.
type Model struct {
	keys   *keys.KeyMap
	width  int
	height int
}

// New creates a new help view model.
func New(keys *keys.KeyMap, width, height int) Model {
	return Model{keys: keys, width: width, height: height}
}

// Update handles messages for the help view. Any key closes it.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if _, ok := msg.(tea.KeyMsg); ok {
		return m, func() tea.Msg { return CloseMsg{} }
	}
	return m, nil
}

// View renders one block per binding group, side by side.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)
	headingStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorBlue)
	keyStyle := lipgloss.NewStyle().Foreground(theme.ColorYellow).Width(10)

	var blocks []string
	for i, group := range m.keys.FullHelp() {
		heading := ""
		if i < len(sectionTitles) {
			heading = sectionTitles[i]
		}
		blocks = append(blocks, renderGroup(heading, group, headingStyle, keyStyle))
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("Board Shortcuts"),
		lipgloss.JoinHorizontal(lipgloss.Top, blocks...),
		theme.DimmedStyle.Render("Press any key to close"),
	)

	return theme.PanelStyle.
		Width(m.width - 4).
		Height(m.height - 4).
		Render(content)
}

func renderGroup(heading string, bindings []key.Binding, headingStyle, keyStyle lipgloss.Style) string {
	var b strings.Builder
	b.WriteString(headingStyle.Render(heading))
	b.WriteString("\n")
	for _, kb := range bindings {
		if !kb.Enabled() {
			continue
		}
		h := kb.Help()
		fmt.Fprintf(&b, "%s%s\n", keyStyle.Render(h.Key), h.Desc)
	}
	return lipgloss.NewStyle().MarginRight(4).MarginBottom(1).Render(b.String())
}

// SetSize updates the help view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}
