package model

import (
	"strings"
	"time"
)

// ScheduleType selects how a reminder is triggered.
type ScheduleType string

const (
	ScheduleDatetime ScheduleType = "datetime"
	ScheduleShifts   ScheduleType = "shifts"
)

// Frequency is the stored classification of a reminder's recurrence.
type Frequency string

const (
	FrequencyOnce    Frequency = "once"
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyCustom  Frequency = "custom"
)

// Unit is the step size of a recurrence interval.
type Unit string

const (
	UnitDay   Unit = "day"
	UnitWeek  Unit = "week"
	UnitMonth Unit = "month"
)

// EndKind describes when a recurring reminder stops.
type EndKind string

const (
	EndNever            EndKind = "never"
	EndOnDate           EndKind = "on_date"
	EndAfterOccurrences EndKind = "after_occurrences"
)

// Shift is a staff shift used by shift-scheduled reminders.
type Shift string

const (
	ShiftMorning Shift = "morning"
	ShiftEvening Shift = "evening"
	ShiftNight   Shift = "night"
)

// WeekdaySet is a set of weekdays stored as a bitmask indexed by
// time.Weekday (bit 0 = Sunday).
type WeekdaySet uint8

// NewWeekdaySet builds a set from the given days.
func NewWeekdaySet(days ...time.Weekday) WeekdaySet {
	var s WeekdaySet
	for _, d := range days {
		s = s.With(d)
	}
	return s
}

// With returns s with d added.
func (s WeekdaySet) With(d time.Weekday) WeekdaySet {
	return s | 1<<uint(d)
}

// Has reports whether d is in the set.
func (s WeekdaySet) Has(d time.Weekday) bool {
	return s&(1<<uint(d)) != 0
}

// Empty reports whether no weekday flag is set.
func (s WeekdaySet) Empty() bool {
	return s&0x7f == 0
}

// Days returns the members of the set from Sunday to Saturday.
func (s WeekdaySet) Days() []time.Weekday {
	var days []time.Weekday
	for d := time.Sunday; d <= time.Saturday; d++ {
		if s.Has(d) {
			days = append(days, d)
		}
	}
	return days
}

// String renders the set as comma-separated short day names.
func (s WeekdaySet) String() string {
	days := s.Days()
	names := make([]string, len(days))
	for i, d := range days {
		names[i] = d.String()[:3]
	}
	return strings.Join(names, ",")
}

// EndCondition bounds a recurring series.
type EndCondition struct {
	Kind EndKind `json:"kind"`

	// Date is the last calendar date (inclusive) when Kind is EndOnDate.
	Date *time.Time `json:"date,omitempty"`

	// Count is the total number of occurrences when Kind is
	// EndAfterOccurrences.
	Count int `json:"count,omitempty"`
}

// Recurrence is a user-entered repetition rule. A nil *Recurrence means
// the reminder fires once.
type Recurrence struct {
	IntervalCount int          `json:"interval_count"`
	Unit          Unit         `json:"unit"`
	Weekdays      WeekdaySet   `json:"weekdays"`
	End           EndCondition `json:"end"`
}

// Reminder is a scheduled notification tied to a task.
type Reminder struct {
	ID string `json:"id"`

	// TaskID is nil only while the reminder belongs to an unsaved task.
	TaskID *string `json:"task_id,omitempty"`

	Message      string       `json:"message"`
	ScheduleType ScheduleType `json:"schedule_type"`
	StartDate    *time.Time   `json:"start_date,omitempty"`

	// StartTime is "HH:MM" local time; empty means the default time.
	StartTime string  `json:"start_time,omitempty"`
	Shifts    []Shift `json:"shifts,omitempty"`

	Recurrence *Recurrence `json:"recurrence,omitempty"`
	Frequency  Frequency   `json:"frequency"`

	// RemindAt is the next trigger instant. It starts as the first
	// trigger and is advanced by the scheduler.
	RemindAt *time.Time `json:"remind_at,omitempty"`

	OccurrencesFired int  `json:"occurrences_fired"`
	Active           bool `json:"active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BufferedReminder carries normalized reminder fields for a task that
// has not been created yet. It becomes a Reminder when the task is saved.
type BufferedReminder struct {
	Message      string       `json:"message"`
	ScheduleType ScheduleType `json:"schedule_type"`
	StartDate    *time.Time   `json:"start_date,omitempty"`
	StartTime    string       `json:"start_time,omitempty"`
	Shifts       []Shift      `json:"shifts,omitempty"`
	Recurrence   *Recurrence  `json:"recurrence,omitempty"`
	Frequency    Frequency    `json:"frequency"`
	RemindAt     *time.Time   `json:"remind_at,omitempty"`
}

// ForTask materializes the buffered fields as a reminder owned by taskID.
func (b BufferedReminder) ForTask(taskID string) Reminder {
	id := taskID
	return Reminder{
		TaskID:       &id,
		Message:      b.Message,
		ScheduleType: b.ScheduleType,
		StartDate:    b.StartDate,
		StartTime:    b.StartTime,
		Shifts:       b.Shifts,
		Recurrence:   b.Recurrence,
		Frequency:    b.Frequency,
		RemindAt:     b.RemindAt,
		Active:       true,
	}
}
