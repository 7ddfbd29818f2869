package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nhle/hotel-ops/internal/model"
	"github.com/nhle/hotel-ops/internal/notify"
	"github.com/nhle/hotel-ops/internal/recurrence"
	reminderpkg "github.com/nhle/hotel-ops/internal/reminder"
	"github.com/nhle/hotel-ops/tests/testutil"
)

// A daily reminder entered in Tokyo and ending on a Tokyo date fires on
// every day up to and including that date after a store round trip.
func TestTick_StoredSeriesInNonUTCLocation(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Skipf("timezone Asia/Tokyo unavailable: %v", err)
	}
	ctx := context.Background()
	s := testutil.NewTestStore(t)
	engine := recurrence.NewEngine(loc)
	logger := zap.NewNop().Sugar()

	task := testutil.SeedTask(t, s, "Check minibar")
	start := time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	out, err := reminderpkg.NewBuffer(s, engine, notify.Nop{}, logger).BufferOrPersist(ctx, task, reminderpkg.Input{
		StartDate: &start,
		StartTime: "09:00",
		Recurrence: &model.Recurrence{
			IntervalCount: 1,
			Unit:          model.UnitDay,
			End:           model.EndCondition{Kind: model.EndOnDate, Date: &end},
		},
	})
	require.NoError(t, err)
	id := out.Reminder.ID

	at := func(day int) time.Time { return time.Date(2026, 3, day, 9, 0, 0, 0, loc) }

	n := &recordingNotifier{}
	sch := New(s, engine, n, logger, model.SchedulerConfig{IntervalSec: 3600})

	for _, day := range []int{8, 9} {
		sch.now = func() time.Time { return at(day).Add(time.Minute) }
		res := sch.Tick(ctx)
		require.Equal(t, TickResult{Fired: 1, Rescheduled: 1}, res, "day %d", day)

		rem, err := s.GetReminder(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, rem.RemindAt)
		assert.True(t, at(day+1).Equal(*rem.RemindAt), "next after day %d is %s", day, rem.RemindAt.In(loc))
	}

	sch.now = func() time.Time { return at(10).Add(time.Minute) }
	assert.Equal(t, TickResult{Fired: 1, Finished: 1}, sch.Tick(ctx))

	rem, err := s.GetReminder(ctx, id)
	require.NoError(t, err)
	assert.False(t, rem.Active)
	assert.Equal(t, 3, rem.OccurrencesFired)
	assert.Len(t, n.all(), 3)
}
