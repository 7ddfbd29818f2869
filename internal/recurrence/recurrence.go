// Package recurrence turns user-entered reminder rules into a stored
// frequency classification and concrete trigger instants.
//
// Classify is the only place a Frequency is derived from a Recurrence.
// Callers store its result next to the recurrence fields instead of
// re-deriving it.
package recurrence

import (
	"fmt"

	"github.com/nhle/hotel-ops/internal/model"
)

// ValidationError reports a rule that cannot be accepted.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Classify maps a recurrence rule to its frequency. The rules are applied
// in order:
//
//  1. no rule → once
//  2. any weekday selected → custom, whatever the interval
//  3. interval of 1 → daily, weekly or monthly by unit
//  4. anything else → custom
func Classify(r *model.Recurrence) model.Frequency {
	if r == nil {
		return model.FrequencyOnce
	}
	if !r.Weekdays.Empty() {
		return model.FrequencyCustom
	}
	if r.IntervalCount == 1 {
		switch r.Unit {
		case model.UnitDay:
			return model.FrequencyDaily
		case model.UnitWeek:
			return model.FrequencyWeekly
		case model.UnitMonth:
			return model.FrequencyMonthly
		}
	}
	return model.FrequencyCustom
}

// Validate checks the structural constraints of a rule. A nil rule is valid.
func Validate(r *model.Recurrence) error {
	if r == nil {
		return nil
	}
	if r.IntervalCount < 1 {
		return invalid("interval_count", "must be at least 1, got %d", r.IntervalCount)
	}
	switch r.Unit {
	case model.UnitDay, model.UnitWeek, model.UnitMonth:
	default:
		return invalid("unit", "must be day, week or month, got %q", r.Unit)
	}
	if r.Weekdays > 0x7f {
		return invalid("weekdays", "unknown weekday flags %#x", uint8(r.Weekdays))
	}

	switch r.End.Kind {
	case model.EndNever, "":
	case model.EndOnDate:
		if r.End.Date == nil {
			return invalid("end.date", "required when the rule ends on a date")
		}
	case model.EndAfterOccurrences:
		if r.End.Count < 1 {
			return invalid("end.count", "must be at least 1, got %d", r.End.Count)
		}
	default:
		return invalid("end.kind", "unknown end condition %q", r.End.Kind)
	}
	return nil
}
