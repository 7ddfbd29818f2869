package recurrence

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/hotel-ops/internal/model"
)

func mustLoad(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Skipf("timezone %s unavailable: %v", name, err)
	}
	return loc
}

func TestFirstTrigger_DefaultsToNineLocal(t *testing.T) {
	loc := mustLoad(t, "America/New_York")
	e := NewEngine(loc)

	for _, d := range []time.Time{
		time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 8, 23, 59, 59, 0, time.UTC),
		time.Date(2026, 7, 4, 12, 30, 0, 0, time.UTC),
		time.Date(2026, 11, 1, 4, 0, 0, 0, time.UTC),
	} {
		got, err := e.FirstTrigger(&d, "")
		require.NoError(t, err)
		assert.Equal(t, loc, got.Location())
		assert.Equal(t, 9, got.Hour())
		assert.Equal(t, 0, got.Minute())
		assert.Equal(t, 0, got.Second())
		assert.Equal(t, d.Day(), got.Day(), "calendar date must be kept")
	}
}

func TestFirstTrigger_OverlaysStartTime(t *testing.T) {
	e := NewEngine(time.UTC)
	d := time.Date(2026, 5, 2, 17, 45, 33, 120, time.UTC)

	got, err := e.FirstTrigger(&d, "07:30")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 5, 2, 7, 30, 0, 0, time.UTC), got)
}

func TestFirstTrigger_MissingStartDate(t *testing.T) {
	e := NewEngine(time.UTC)

	_, err := e.FirstTrigger(nil, "10:00")
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "start_date", verr.Field)
}

func TestFirstTrigger_BadClock(t *testing.T) {
	e := NewEngine(time.UTC)
	d := time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC)

	for _, clock := range []string{"9", "24:00", "12:60", "ab:cd", "1:2:3"} {
		_, err := e.FirstTrigger(&d, clock)
		assert.Error(t, err, clock)
	}
}

func TestWithDefaultTime(t *testing.T) {
	e, err := NewEngine(time.UTC).WithDefaultTime("06:15")
	require.NoError(t, err)
	d := time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC)

	got, err := e.FirstTrigger(&d, "")
	require.NoError(t, err)
	assert.Equal(t, "06:15", FormatClock(got))

	_, err = NewEngine(time.UTC).WithDefaultTime("late")
	assert.Error(t, err)
}

func TestNext_SimpleUnits(t *testing.T) {
	e := NewEngine(time.UTC)
	anchor := time.Date(2026, 1, 31, 8, 0, 0, 0, time.UTC)

	next, ok := e.Next(anchor, anchor, rule(3, model.UnitDay), 1)
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 2, 3, 8, 0, 0, 0, time.UTC), next)

	next, ok = e.Next(anchor, anchor, rule(2, model.UnitWeek), 1)
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 2, 14, 8, 0, 0, 0, time.UTC), next)
}

func TestNext_MonthlyClampsToMonthEnd(t *testing.T) {
	e := NewEngine(time.UTC)
	anchor := time.Date(2026, 1, 31, 8, 0, 0, 0, time.UTC)
	r := rule(1, model.UnitMonth)

	feb, ok := e.Next(anchor, anchor, r, 1)
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 2, 28, 8, 0, 0, 0, time.UTC), feb)

	mar, ok := e.Next(anchor, feb, r, 2)
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 3, 31, 8, 0, 0, 0, time.UTC), mar)
}

func TestNext_WeekdaysEveryOtherWeek(t *testing.T) {
	e := NewEngine(time.UTC)
	// Monday 2026-01-05.
	anchor := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	r := rule(2, model.UnitWeek, time.Monday, time.Thursday)

	var got []time.Time
	last := anchor
	for i := 1; i <= 4; i++ {
		next, ok := e.Next(anchor, last, r, i)
		require.True(t, ok)
		got = append(got, next)
		last = next
	}

	assert.Equal(t, []time.Time{
		time.Date(2026, 1, 8, 9, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 19, 9, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 22, 9, 0, 0, 0, time.UTC),
		time.Date(2026, 2, 2, 9, 0, 0, 0, time.UTC),
	}, got)
}

func TestNext_KeepsWallClockAcrossDST(t *testing.T) {
	loc := mustLoad(t, "Europe/Lisbon")
	e := NewEngine(loc)
	anchor := time.Date(2026, 3, 28, 9, 0, 0, 0, loc)

	next, ok := e.Next(anchor, anchor, rule(1, model.UnitDay), 1)
	require.True(t, ok)
	assert.Equal(t, 29, next.Day())
	assert.Equal(t, 9, next.Hour())
}

func TestNext_EndConditions(t *testing.T) {
	e := NewEngine(time.UTC)
	anchor := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

	t.Run("once", func(t *testing.T) {
		_, ok := e.Next(anchor, anchor, nil, 1)
		assert.False(t, ok)
	})

	t.Run("after occurrences", func(t *testing.T) {
		r := rule(1, model.UnitDay)
		r.End = model.EndCondition{Kind: model.EndAfterOccurrences, Count: 2}

		_, ok := e.Next(anchor, anchor, r, 1)
		assert.True(t, ok)
		_, ok = e.Next(anchor, anchor.AddDate(0, 0, 1), r, 2)
		assert.False(t, ok)
	})

	t.Run("on date is inclusive", func(t *testing.T) {
		end := time.Date(2026, 4, 3, 0, 0, 0, 0, time.UTC)
		r := rule(1, model.UnitDay)
		r.End = model.EndCondition{Kind: model.EndOnDate, Date: &end}

		next, ok := e.Next(anchor, anchor.AddDate(0, 0, 1), r, 2)
		require.True(t, ok)
		assert.Equal(t, 3, next.Day())

		_, ok = e.Next(anchor, next, r, 3)
		assert.False(t, ok)
	})
}

func TestNext_OnDateComparedInEngineLocation(t *testing.T) {
	loc := mustLoad(t, "Asia/Tokyo")
	e := NewEngine(loc)

	// Midnight 2026-03-10 in Tokyo, read back from the store as UTC.
	end := time.Date(2026, 3, 10, 0, 0, 0, 0, loc).UTC()
	require.Equal(t, 9, end.Day())

	r := rule(1, model.UnitDay)
	r.End = model.EndCondition{Kind: model.EndOnDate, Date: &end}
	anchor := time.Date(2026, 3, 8, 9, 0, 0, 0, loc).UTC()

	next, ok := e.Next(anchor, anchor.Add(24*time.Hour), r, 2)
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 3, 10, 9, 0, 0, 0, loc), next.In(loc))

	_, ok = e.Next(anchor, next, r, 3)
	assert.False(t, ok)
}

func TestCalendarDate_KeepsOwnDate(t *testing.T) {
	loc := mustLoad(t, "Asia/Tokyo")
	e := NewEngine(loc)

	got := e.CalendarDate(time.Date(2026, 6, 30, 23, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2026, 6, 30, 0, 0, 0, 0, loc), got)

	// Round-tripping through UTC keeps the date in the engine location.
	back := got.UTC().In(loc)
	assert.Equal(t, 30, back.Day())
}
