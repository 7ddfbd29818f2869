package recurrence

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultTime is the time of day used when a reminder has a start date
// but no start time.
const DefaultTime = "09:00"

// Engine computes trigger instants in a fixed "local" location.
type Engine struct {
	loc         *time.Location
	defaultHour int
	defaultMin  int
}

// NewEngine returns an engine that interprets dates and clock times in
// loc. A nil loc means time.Local.
func NewEngine(loc *time.Location) *Engine {
	if loc == nil {
		loc = time.Local
	}
	return &Engine{loc: loc, defaultHour: 9}
}

// WithDefaultTime overrides the 09:00 fallback with an "HH:MM" clock.
func (e *Engine) WithDefaultTime(clock string) (*Engine, error) {
	h, m, err := ParseClock(clock)
	if err != nil {
		return nil, err
	}
	cp := *e
	cp.defaultHour, cp.defaultMin = h, m
	return &cp, nil
}

// Location returns the location trigger instants are computed in.
func (e *Engine) Location() *time.Location {
	return e.loc
}

// CalendarDate returns midnight, in the engine's location, of the
// calendar date t shows in its own location.
func (e *Engine) CalendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, e.loc)
}

// FirstTrigger overlays startTime ("HH:MM") onto the calendar date of
// startDate in the engine's location, with seconds zeroed. An empty
// startTime falls back to the default time. A nil startDate is rejected.
func (e *Engine) FirstTrigger(startDate *time.Time, startTime string) (time.Time, error) {
	if startDate == nil || startDate.IsZero() {
		return time.Time{}, invalid("start_date", "required for datetime reminders")
	}

	hour, minute := e.defaultHour, e.defaultMin
	if strings.TrimSpace(startTime) != "" {
		var err error
		hour, minute, err = ParseClock(startTime)
		if err != nil {
			return time.Time{}, err
		}
	}

	y, m, d := startDate.Date()
	return time.Date(y, m, d, hour, minute, 0, 0, e.loc), nil
}

// ParseClock parses a 24-hour "HH:MM" clock value.
func ParseClock(clock string) (hour, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(clock), ":")
	if len(parts) != 2 {
		return 0, 0, invalid("start_time", "expected HH:MM, got %q", clock)
	}
	hour, herr := strconv.Atoi(parts[0])
	minute, merr := strconv.Atoi(parts[1])
	if herr != nil || merr != nil || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, invalid("start_time", "expected HH:MM, got %q", clock)
	}
	return hour, minute, nil
}

// FormatClock renders an instant's time of day as "HH:MM".
func FormatClock(t time.Time) string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}
