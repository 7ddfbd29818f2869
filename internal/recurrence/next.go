package recurrence

import (
	"time"

	"github.com/nhle/hotel-ops/internal/model"
)

// Next returns the occurrence that follows last in the series that
// started at anchor (the first trigger). fired is the number of
// occurrences already delivered, last included. ok is false when the
// rule is exhausted or the reminder does not repeat.
//
// The time of day of every occurrence is the anchor's wall clock time in
// the engine's location, so daylight saving changes do not shift it.
//
// With weekdays selected, occurrences fall on those days in every week
// (unit=week: every IntervalCount-th week counted from the anchor's week).
// Otherwise the series steps by IntervalCount days, weeks or months;
// monthly steps clamp to the last day of shorter months.
func (e *Engine) Next(anchor, last time.Time, r *model.Recurrence, fired int) (next time.Time, ok bool) {
	if r == nil || r.IntervalCount < 1 {
		return time.Time{}, false
	}
	if r.End.Kind == model.EndAfterOccurrences && fired >= r.End.Count {
		return time.Time{}, false
	}

	anchor = anchor.In(e.loc)
	last = last.In(e.loc)

	switch {
	case !r.Weekdays.Empty():
		next = e.nextWeekday(anchor, last, r)
	case r.Unit == model.UnitDay:
		next = e.atAnchorClock(anchor, last.Year(), last.Month(), last.Day()+r.IntervalCount)
	case r.Unit == model.UnitWeek:
		next = e.atAnchorClock(anchor, last.Year(), last.Month(), last.Day()+7*r.IntervalCount)
	case r.Unit == model.UnitMonth:
		next = e.nextMonth(anchor, last, r.IntervalCount)
	default:
		return time.Time{}, false
	}

	if r.End.Kind == model.EndOnDate && r.End.Date != nil {
		ey, em, ed := r.End.Date.In(e.loc).Date()
		if dayNumber(next.Year(), next.Month(), next.Day()) > dayNumber(ey, em, ed) {
			return time.Time{}, false
		}
	}
	return next, true
}

func (e *Engine) nextWeekday(anchor, last time.Time, r *model.Recurrence) time.Time {
	stride := 1
	if r.Unit == model.UnitWeek {
		stride = r.IntervalCount
	}
	anchorWeek := weekStart(anchor)

	// Two full strides always contain a selected day of an active week.
	for i := 1; i <= 7*stride*2+7; i++ {
		d := time.Date(last.Year(), last.Month(), last.Day()+i, 0, 0, 0, 0, e.loc)
		if !r.Weekdays.Has(d.Weekday()) {
			continue
		}
		weeks := (dayNumber(d.Year(), d.Month(), d.Day()) - anchorWeek) / 7
		if weeks%stride != 0 {
			continue
		}
		return e.atAnchorClock(anchor, d.Year(), d.Month(), d.Day())
	}
	return time.Time{}
}

func (e *Engine) nextMonth(anchor, last time.Time, interval int) time.Time {
	elapsed := monthIndex(last) - monthIndex(anchor)
	step := elapsed - elapsed%interval + interval
	target := monthIndex(anchor) + step

	year, month := target/12, time.Month(target%12+1)
	day := anchor.Day()
	if n := daysIn(year, month); day > n {
		day = n
	}
	return e.atAnchorClock(anchor, year, month, day)
}

func (e *Engine) atAnchorClock(anchor time.Time, year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, anchor.Hour(), anchor.Minute(), 0, 0, e.loc)
}

// dayNumber is a location-free day count used for calendar arithmetic.
func dayNumber(year int, month time.Month, day int) int {
	return int(time.Date(year, month, day, 0, 0, 0, 0, time.UTC).Unix() / 86400)
}

// weekStart returns the day number of the Monday starting t's week.
func weekStart(t time.Time) int {
	offset := (int(t.Weekday()) + 6) % 7
	return dayNumber(t.Year(), t.Month(), t.Day()) - offset
}

func monthIndex(t time.Time) int {
	return t.Year()*12 + int(t.Month()) - 1
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
