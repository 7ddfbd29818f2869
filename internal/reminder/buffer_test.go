package reminder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nhle/hotel-ops/internal/model"
	"github.com/nhle/hotel-ops/internal/recurrence"
	"github.com/nhle/hotel-ops/internal/store"
	"github.com/nhle/hotel-ops/tests/testutil"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []model.Event
}

func (r *recordingNotifier) Notify(ev model.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// countingStore counts writes and can fail the task link patch.
type countingStore struct {
	*store.SQLStore
	writes   int
	failLink error
}

func (c *countingStore) CreateReminder(ctx context.Context, r model.Reminder) (*model.Reminder, error) {
	c.writes++
	return c.SQLStore.CreateReminder(ctx, r)
}

func (c *countingStore) DeactivateRemindersForTask(ctx context.Context, taskID, exceptID string) (int64, error) {
	c.writes++
	return c.SQLStore.DeactivateRemindersForTask(ctx, taskID, exceptID)
}

func (c *countingStore) SetTaskReminder(ctx context.Context, taskID, reminderID string, at time.Time) error {
	c.writes++
	if c.failLink != nil {
		return c.failLink
	}
	return c.SQLStore.SetTaskReminder(ctx, taskID, reminderID, at)
}

func newBuffer(t *testing.T) (*Buffer, *countingStore, *recordingNotifier) {
	t.Helper()
	cs := &countingStore{SQLStore: testutil.NewTestStore(t)}
	n := &recordingNotifier{}
	return NewBuffer(cs, recurrence.NewEngine(time.UTC), n, zap.NewNop().Sugar()), cs, n
}

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestBufferOrPersist_UnsavedTaskIsBuffered(t *testing.T) {
	b, cs, n := newBuffer(t)

	out, err := b.BufferOrPersist(context.Background(), model.Task{Title: "draft"}, Input{
		StartDate: date(2026, 7, 1),
		Recurrence: &model.Recurrence{
			IntervalCount: 1,
			Unit:          model.UnitWeek,
			Weekdays:      model.NewWeekdaySet(time.Monday),
		},
	})
	require.NoError(t, err)

	assert.Nil(t, out.Reminder)
	require.NotNil(t, out.Buffered)
	assert.Equal(t, model.FrequencyCustom, out.Buffered.Frequency)
	require.NotNil(t, out.Buffered.RemindAt)
	assert.Equal(t, time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC), *out.Buffered.RemindAt)
	assert.Equal(t, 0, cs.writes, "buffering must not touch the store")
	assert.Empty(t, n.events)
}

func TestBufferOrPersist_BufferedFoldsIntoCreate(t *testing.T) {
	b, cs, _ := newBuffer(t)
	ctx := context.Background()

	out, err := b.BufferOrPersist(ctx, model.Task{}, Input{StartDate: date(2026, 7, 1), StartTime: "18:30"})
	require.NoError(t, err)

	task, err := cs.CreateTask(ctx, model.NewTask{Title: "Evening check", Reminder: out.Buffered})
	require.NoError(t, err)
	require.NotNil(t, task.ReminderID)

	rem, err := cs.GetReminder(ctx, *task.ReminderID)
	require.NoError(t, err)
	assert.Equal(t, model.FrequencyOnce, rem.Frequency)
	assert.Equal(t, "18:30", rem.StartTime)
	assert.True(t, time.Date(2026, 7, 1, 18, 30, 0, 0, time.UTC).Equal(*rem.RemindAt))
}

func TestBufferOrPersist_SavedTaskPersistsLinksAndNotifies(t *testing.T) {
	b, cs, n := newBuffer(t)
	ctx := context.Background()
	task := testutil.SeedTask(t, cs.SQLStore, "Check minibar")

	first, err := b.BufferOrPersist(ctx, task, Input{StartDate: date(2026, 7, 1)})
	require.NoError(t, err)
	second, err := b.BufferOrPersist(ctx, task, Input{
		StartDate:  date(2026, 7, 2),
		Recurrence: &model.Recurrence{IntervalCount: 1, Unit: model.UnitDay},
	})
	require.NoError(t, err)

	assert.True(t, second.Linked)
	assert.Equal(t, model.FrequencyDaily, second.Reminder.Frequency)

	got, err := cs.GetTask(ctx, task.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ReminderID)
	assert.Equal(t, second.Reminder.ID, *got.ReminderID)

	old, err := cs.GetReminder(ctx, first.Reminder.ID)
	require.NoError(t, err)
	assert.False(t, old.Active, "a new reminder replaces the previous one")

	require.Len(t, n.events, 2)
	assert.Equal(t, model.EventReminderSet, n.events[1].Kind)
	assert.Equal(t, task.ID, n.events[1].TaskID)
}

func TestBufferOrPersist_LinkFailureLeavesUnlinkedRow(t *testing.T) {
	b, cs, n := newBuffer(t)
	ctx := context.Background()
	task := testutil.SeedTask(t, cs.SQLStore, "Check minibar")
	cs.failLink = errors.New("timeout")

	out, err := b.BufferOrPersist(ctx, task, Input{StartDate: date(2026, 7, 1)})
	require.NoError(t, err)
	assert.False(t, out.Linked)

	rem, err := cs.GetReminder(ctx, out.Reminder.ID)
	require.NoError(t, err)
	assert.True(t, rem.Active)

	got, err := cs.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ReminderID)
	assert.Len(t, n.events, 1)
}

func TestNormalize_Validation(t *testing.T) {
	e := recurrence.NewEngine(time.UTC)

	tests := []struct {
		name  string
		in    Input
		field string
	}{
		{name: "datetime without date", in: Input{}, field: "start_date"},
		{name: "bad clock", in: Input{StartDate: date(2026, 1, 1), StartTime: "25:00"}, field: "start_time"},
		{name: "bad rule", in: Input{StartDate: date(2026, 1, 1), Recurrence: &model.Recurrence{Unit: model.UnitDay}}, field: "interval_count"},
		{name: "shifts without shifts", in: Input{ScheduleType: model.ScheduleShifts}, field: "shifts"},
		{name: "unknown shift", in: Input{ScheduleType: model.ScheduleShifts, Shifts: []model.Shift{"lunch"}}, field: "shifts"},
		{name: "unknown schedule", in: Input{ScheduleType: "cron"}, field: "schedule_type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(e, tt.in)
			var verr *recurrence.ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestNormalize_Shifts(t *testing.T) {
	out, err := Normalize(recurrence.NewEngine(time.UTC), Input{
		ScheduleType: model.ScheduleShifts,
		Shifts:       []model.Shift{model.ShiftNight, model.ShiftMorning, model.ShiftNight},
	})
	require.NoError(t, err)
	assert.Equal(t, []model.Shift{model.ShiftNight, model.ShiftMorning}, out.Shifts)
	assert.Nil(t, out.RemindAt)
	assert.Equal(t, model.FrequencyOnce, out.Frequency)
}

func TestNormalize_DefaultsEndToNever(t *testing.T) {
	out, err := Normalize(recurrence.NewEngine(time.UTC), Input{
		StartDate:  date(2026, 1, 1),
		StartTime:  "7:05",
		Recurrence: &model.Recurrence{IntervalCount: 2, Unit: model.UnitMonth},
	})
	require.NoError(t, err)
	assert.Equal(t, model.EndNever, out.Recurrence.End.Kind)
	assert.Equal(t, "07:05", out.StartTime)
	assert.Equal(t, model.FrequencyCustom, out.Frequency)
}

func TestNormalize_EndDateKeepsCalendarDayAcrossStore(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Skipf("timezone Asia/Tokyo unavailable: %v", err)
	}
	engine := recurrence.NewEngine(loc)
	cs := &countingStore{SQLStore: testutil.NewTestStore(t)}
	b := NewBuffer(cs, engine, &recordingNotifier{}, zap.NewNop().Sugar())
	ctx := context.Background()

	task := testutil.SeedTask(t, cs.SQLStore, "Check minibar")
	out, err := b.BufferOrPersist(ctx, task, Input{
		StartDate: date(2026, 3, 8),
		StartTime: "09:00",
		Recurrence: &model.Recurrence{
			IntervalCount: 1,
			Unit:          model.UnitDay,
			End:           model.EndCondition{Kind: model.EndOnDate, Date: date(2026, 3, 10)},
		},
	})
	require.NoError(t, err)

	rem, err := cs.GetReminder(ctx, out.Reminder.ID)
	require.NoError(t, err)
	require.NotNil(t, rem.Recurrence.End.Date)
	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, loc), rem.Recurrence.End.Date.In(loc))

	last := time.Date(2026, 3, 9, 9, 0, 0, 0, loc)
	next, ok := engine.Next(*rem.RemindAt, last, rem.Recurrence, 2)
	require.True(t, ok)
	assert.Equal(t, 10, next.In(loc).Day())
}
