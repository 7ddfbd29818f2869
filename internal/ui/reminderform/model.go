// Package reminderform collects a reminder schedule for a task.
package reminderform

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/hotel-ops/internal/model"
	"github.com/nhle/hotel-ops/internal/reminder"
	"github.com/nhle/hotel-ops/internal/theme"
)

// SubmittedMsg carries the entered reminder. Task has no ID when the
// reminder was set up while creating the task.
type SubmittedMsg struct {
	Task  model.Task
	Input reminder.Input
}

// CancelMsg is dispatched when the form is aborted.
type CancelMsg struct{}

const dateLayout = "2006-01-02"

// bindings holds raw field values. Conversion to reminder.Input happens
// once the form completes.
type bindings struct {
	message      string
	scheduleType string
	startDate    string
	startTime    string
	shifts       []string
	repeat       bool
	interval     string
	unit         string
	weekdays     []time.Weekday
	endKind      string
	endDate      string
	endCount     string
}

func defaults(today time.Time) bindings {
	return bindings{
		scheduleType: string(model.ScheduleDatetime),
		startDate:    today.Format(dateLayout),
		interval:     "1",
		unit:         string(model.UnitDay),
		endKind:      string(model.EndNever),
		endCount:     "1",
	}
}

// Model is the Bubble Tea model for the reminder form.
type Model struct {
	form   *huh.Form
	b      *bindings
	task   model.Task
	now    func() time.Time
	width  int
	height int
}

// New creates an idle reminder form.
func New(width, height int) Model {
	return Model{b: &bindings{}, now: time.Now, width: width, height: height}
}

// Start opens the form for task.
func (m *Model) Start(task model.Task) tea.Cmd {
	m.task = task
	*m.b = defaults(m.now())
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
		in, err := m.b.input()
		if err != nil {
			// Field validators make this unreachable for typed input.
			return m, func() tea.Msg { return CancelMsg{} }
		}
		out := SubmittedMsg{Task: m.task, Input: in}
		return m, func() tea.Msg { return out }
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

	heading := "Reminder"
	if m.task.Title != "" {
		heading = "Reminder for " + m.task.Title
	}
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1).
		Render(heading)

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
	b := m.b
	isShifts := func() bool { return b.scheduleType == string(model.ScheduleShifts) }
	repeats := func() bool { return !isShifts() && b.repeat }

	weekdayOpts := make([]huh.Option[time.Weekday], 0, 7)
	for d := time.Monday; ; d = (d + 1) % 7 {
		weekdayOpts = append(weekdayOpts, huh.NewOption(d.String(), d))
		if d == time.Sunday {
			break
		}
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Message").
				Placeholder("Optional note for the reminder").
				Value(&b.message),
			huh.NewSelect[string]().
				Title("Schedule").
				Options(
					huh.NewOption("At a date and time", string(model.ScheduleDatetime)),
					huh.NewOption("Every selected shift", string(model.ScheduleShifts)),
				).
				Value(&b.scheduleType),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Start date").
				Placeholder("YYYY-MM-DD").
				Value(&b.startDate).
				Validate(validateDate),
			huh.NewInput().
				Title("Time").
				Placeholder("HH:MM (default 09:00)").
				Value(&b.startTime).
				Validate(validateClock),
			huh.NewConfirm().
				Title("Repeat?").
				Value(&b.repeat),
		).WithHideFunc(isShifts),
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Shifts").
				Options(
					huh.NewOption("Morning", string(model.ShiftMorning)),
					huh.NewOption("Evening", string(model.ShiftEvening)),
					huh.NewOption("Night", string(model.ShiftNight)),
				).
				Value(&b.shifts).
				Validate(func(s []string) error {
					if len(s) == 0 {
						return fmt.Errorf("pick at least one shift")
					}
					return nil
				}),
		).WithHideFunc(func() bool { return !isShifts() }),
		huh.NewGroup(
			huh.NewInput().
				Title("Every").
				Value(&b.interval).
				Validate(validatePositive),
			huh.NewSelect[string]().
				Title("Unit").
				Options(
					huh.NewOption("Day(s)", string(model.UnitDay)),
					huh.NewOption("Week(s)", string(model.UnitWeek)),
					huh.NewOption("Month(s)", string(model.UnitMonth)),
				).
				Value(&b.unit),
			huh.NewMultiSelect[time.Weekday]().
				Title("On weekdays").
				Description("Leave empty to repeat on the start date's cadence").
				Options(weekdayOpts...).
				Value(&b.weekdays),
			huh.NewSelect[string]().
				Title("Ends").
				Options(
					huh.NewOption("Never", string(model.EndNever)),
					huh.NewOption("On a date", string(model.EndOnDate)),
					huh.NewOption("After a number of times", string(model.EndAfterOccurrences)),
				).
				Value(&b.endKind),
		).WithHideFunc(func() bool { return !repeats() }),
		huh.NewGroup(
			huh.NewInput().
				Title("End date").
				Placeholder("YYYY-MM-DD").
				Value(&b.endDate).
				Validate(validateDate),
		).WithHideFunc(func() bool { return !repeats() || b.endKind != string(model.EndOnDate) }),
		huh.NewGroup(
			huh.NewInput().
				Title("Occurrences").
				Value(&b.endCount).
				Validate(validatePositive),
		).WithHideFunc(func() bool { return !repeats() || b.endKind != string(model.EndAfterOccurrences) }),
	).WithWidth(formWidth(m.width))
}

// input converts the raw bindings into a reminder.Input.
func (b bindings) input() (reminder.Input, error) {
	in := reminder.Input{
		Message:      strings.TrimSpace(b.message),
		ScheduleType: model.ScheduleType(b.scheduleType),
	}

	if in.ScheduleType == model.ScheduleShifts {
		for _, s := range b.shifts {
			in.Shifts = append(in.Shifts, model.Shift(s))
		}
		return in, nil
	}

	d, err := time.Parse(dateLayout, strings.TrimSpace(b.startDate))
	if err != nil {
		return in, fmt.Errorf("start date: %w", err)
	}
	in.StartDate = &d
	in.StartTime = strings.TrimSpace(b.startTime)

	if !b.repeat {
		return in, nil
	}

	interval, err := strconv.Atoi(strings.TrimSpace(b.interval))
	if err != nil {
		return in, fmt.Errorf("interval: %w", err)
	}
	rule := &model.Recurrence{
		IntervalCount: interval,
		Unit:          model.Unit(b.unit),
		Weekdays:      model.NewWeekdaySet(b.weekdays...),
		End:           model.EndCondition{Kind: model.EndKind(b.endKind)},
	}

	switch rule.End.Kind {
	case model.EndOnDate:
		end, err := time.Parse(dateLayout, strings.TrimSpace(b.endDate))
		if err != nil {
			return in, fmt.Errorf("end date: %w", err)
		}
		rule.End.Date = &end
	case model.EndAfterOccurrences:
		n, err := strconv.Atoi(strings.TrimSpace(b.endCount))
		if err != nil {
			return in, fmt.Errorf("occurrences: %w", err)
		}
		rule.End.Count = n
	}

	in.Recurrence = rule
	return in, nil
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

func validateDate(s string) error {
	if _, err := time.Parse(dateLayout, strings.TrimSpace(s)); err != nil {
		return fmt.Errorf("use YYYY-MM-DD")
	}
	return nil
}

func validateClock(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if _, err := time.Parse("15:04", s); err != nil {
		return fmt.Errorf("use HH:MM (24-hour)")
	}
	return nil
}

func validatePositive(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return fmt.Errorf("must be a whole number of at least 1")
	}
	return nil
}
