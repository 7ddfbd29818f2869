package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nhle/hotel-ops/internal/assign"
	"github.com/nhle/hotel-ops/internal/board"
	"github.com/nhle/hotel-ops/internal/draft"
	"github.com/nhle/hotel-ops/internal/model"
	"github.com/nhle/hotel-ops/internal/notify"
	"github.com/nhle/hotel-ops/internal/recurrence"
	"github.com/nhle/hotel-ops/internal/reminder"
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

func (r *recordingNotifier) kinds() []model.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.EventKind, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}

type fixture struct {
	store    *store.SQLStore
	notifier *recordingNotifier
	coord    *board.Coordinator
	handler  http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	s := testutil.NewTestStore(t)
	testutil.SeedUsers(t, s, "u-ana", "u-ben", "u-cho")
	n := &recordingNotifier{}
	logger := zap.NewNop().Sugar()

	coord := board.NewCoordinator(s, n, nil, logger)
	srv := New(Deps{
		Store:       s,
		Coordinator: coord,
		Merger:      assign.NewMerger(s, n, logger, 3),
		Reminders:   reminder.NewBuffer(s, recurrence.NewEngine(time.UTC), n, logger),
		Drafts:      draft.NewMemoryCache(time.Hour),
		Logger:      logger,
	})
	return &fixture{store: s, notifier: n, coord: coord, handler: srv.Handler()}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestCreateAndGetTask(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/tasks", map[string]any{
		"title":       "Replace shower head",
		"location":    "Room 204",
		"assigned_to": []string{"u-ana", "u-ana", "u-ben"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[model.Task](t, rec)
	assert.Equal(t, model.StatusPending, created.Status)
	assert.Equal(t, []string{"u-ana", "u-ben"}, created.AssignedTo)

	rec = f.do(t, http.MethodGet, "/api/v1/tasks/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Room 204", decode[model.Task](t, rec).Location)

	rec = f.do(t, http.MethodGet, "/api/v1/tasks/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateTask_Validation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		body map[string]any
		code int
	}{
		{name: "missing title", body: map[string]any{"location": "Lobby"}, code: http.StatusBadRequest},
		{name: "unknown user", body: map[string]any{"title": "x", "assigned_to": []string{"u-zed"}}, code: http.StatusUnprocessableEntity},
		{
			name: "too many assignees",
			body: map[string]any{"title": "x", "assigned_to": []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "11"}},
			code: http.StatusUnprocessableEntity,
		},
		{
			name: "draft and inline reminder",
			body: map[string]any{"title": "x", "draft_token": "t", "reminder": map[string]any{"start_date": "2026-07-01"}},
			code: http.StatusBadRequest,
		},
		{name: "unknown draft", body: map[string]any{"title": "x", "draft_token": "nope"}, code: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/api/v1/tasks", tt.body)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}

	tasks, err := f.store.ListTasks(context.Background(), store.TaskFilter{})
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestListTasks_Filters(t *testing.T) {
	f := newFixture(t)
	testutil.SeedTask(t, f.store, "Fix lamp", "u-ana")
	testutil.SeedTask(t, f.store, "Clean pool")

	rec := f.do(t, http.MethodGet, "/api/v1/tasks?assigned_to=u-ana", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[struct {
		Tasks []model.Task `json:"tasks"`
	}](t, rec)
	require.Len(t, got.Tasks, 1)
	assert.Equal(t, "Fix lamp", got.Tasks[0].Title)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/v1/tasks?status=done", nil).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/v1/tasks?limit=-1", nil).Code)
}

func TestDraftReminderFoldsIntoCreatedTask(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/reminders/drafts", map[string]any{
		"message":    "Check minibar",
		"start_date": "2026-07-01",
		"start_time": "18:30",
		"recurrence": map[string]any{"interval_count": 1, "unit": "day"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	draftResp := decode[struct {
		Token    string                 `json:"draft_token"`
		Reminder model.BufferedReminder `json:"reminder"`
	}](t, rec)
	assert.Equal(t, model.FrequencyDaily, draftResp.Reminder.Frequency)

	// Buffering wrote nothing and announced nothing.
	assert.Empty(t, f.notifier.kinds())

	rec = f.do(t, http.MethodPost, "/api/v1/tasks", map[string]any{
		"title":       "Evening minibar",
		"draft_token": draftResp.Token,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	task := decode[model.Task](t, rec)
	require.NotNil(t, task.ReminderID)

	rem, err := f.store.GetReminder(context.Background(), *task.ReminderID)
	require.NoError(t, err)
	assert.True(t, time.Date(2026, 7, 1, 18, 30, 0, 0, time.UTC).Equal(*rem.RemindAt))

	// Drafts are single use.
	rec = f.do(t, http.MethodPost, "/api/v1/tasks", map[string]any{
		"title":       "Again",
		"draft_token": draftResp.Token,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateTask_BlankTitleKeepsDraft(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/reminders/drafts", map[string]any{"start_date": "2026-07-01"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	token := decode[struct {
		Token string `json:"draft_token"`
	}](t, rec).Token

	rec = f.do(t, http.MethodPost, "/api/v1/tasks", map[string]any{"title": "   ", "draft_token": token})
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/api/v1/tasks", map[string]any{"title": "Fix lamp", "draft_token": token})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotNil(t, decode[model.Task](t, rec).ReminderID)
}

// failingCreateStore rejects every CreateTask with err.
type failingCreateStore struct {
	*store.SQLStore
	err error
}

func (f *failingCreateStore) CreateTask(context.Context, model.NewTask) (*model.Task, error) {
	return nil, f.err
}

func TestCreateTask_FailedCreateRestoresDraft(t *testing.T) {
	s := testutil.NewTestStore(t)
	fs := &failingCreateStore{SQLStore: s, err: errors.New("database is locked")}
	logger := zap.NewNop().Sugar()
	drafts := draft.NewMemoryCache(time.Hour)
	engine := recurrence.NewEngine(time.UTC)

	srv := New(Deps{
		Store:       fs,
		Coordinator: board.NewCoordinator(fs, notify.Nop{}, nil, logger),
		Merger:      assign.NewMerger(fs, notify.Nop{}, logger, 3),
		Reminders:   reminder.NewBuffer(fs, engine, notify.Nop{}, logger),
		Drafts:      drafts,
		Logger:      logger,
	})
	f := &fixture{store: s, notifier: &recordingNotifier{}, handler: srv.Handler()}

	day := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	buffered, err := reminder.Normalize(engine, reminder.Input{StartDate: &day})
	require.NoError(t, err)
	token, err := drafts.Put(context.Background(), buffered)
	require.NoError(t, err)

	rec := f.do(t, http.MethodPost, "/api/v1/tasks", map[string]any{"title": "Fix lamp", "draft_token": token})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	got, err := drafts.Take(context.Background(), token)
	require.NoError(t, err, "draft is available for a retry")
	assert.True(t, buffered.RemindAt.Equal(*got.RemindAt))
}

func TestMoveTask(t *testing.T) {
	f := newFixture(t)
	task := testutil.SeedTask(t, f.store, "Fix lamp")
	path := "/api/v1/tasks/" + task.ID + "/status"

	rec := f.do(t, http.MethodPatch, path, map[string]any{"to": "completed"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[moveResponse](t, rec)
	assert.True(t, resp.Changed)
	assert.Equal(t, model.StatusPending, resp.From)
	assert.Equal(t, model.StatusCompleted, resp.Task.Status)

	rec = f.do(t, http.MethodPatch, path, map[string]any{"action": "reopen"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.StatusPending, decode[moveResponse](t, rec).Task.Status)

	rec = f.do(t, http.MethodPatch, path, map[string]any{"to": "pending"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[moveResponse](t, rec).Changed)

	assert.Equal(t,
		[]model.EventKind{model.EventStatusChanged, model.EventStatusChanged},
		f.notifier.kinds())

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPatch, path, map[string]any{"to": "done"}).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPatch, path, map[string]any{}).Code)
	assert.Equal(t, http.StatusBadRequest,
		f.do(t, http.MethodPatch, path, map[string]any{"to": "pending", "action": "start"}).Code)
	assert.Equal(t, http.StatusNotFound,
		f.do(t, http.MethodPatch, "/api/v1/tasks/missing/status", map[string]any{"to": "verified"}).Code)
}

func TestAssignMembers(t *testing.T) {
	f := newFixture(t)
	task := testutil.SeedTask(t, f.store, "Fix lamp", "u-ana")
	path := "/api/v1/tasks/" + task.ID + "/assignees"

	rec := f.do(t, http.MethodPost, path, map[string]any{"user_ids": []string{"u-ana", "u-ben"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[struct {
		AssignedTo []string `json:"assigned_to"`
		Added      []string `json:"added"`
	}](t, rec)
	assert.Equal(t, []string{"u-ana", "u-ben"}, got.AssignedTo)
	assert.Equal(t, []string{"u-ben"}, got.Added)

	assert.Equal(t, http.StatusUnprocessableEntity,
		f.do(t, http.MethodPost, path, map[string]any{"user_ids": []string{}}).Code)
	assert.Equal(t, http.StatusUnprocessableEntity,
		f.do(t, http.MethodPost, path, map[string]any{"user_ids": []string{"u-zed"}}).Code)
	assert.Equal(t, http.StatusNotFound,
		f.do(t, http.MethodPost, "/api/v1/tasks/missing/assignees", map[string]any{"user_ids": []string{"u-cho"}}).Code)
}

func TestSetReminder(t *testing.T) {
	f := newFixture(t)
	task := testutil.SeedTask(t, f.store, "Fix lamp")
	path := "/api/v1/tasks/" + task.ID + "/reminder"

	rec := f.do(t, http.MethodPost, path, map[string]any{
		"schedule_type": "shifts",
		"shifts":        []string{"night"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	got := decode[struct {
		Reminder model.Reminder `json:"reminder"`
		Linked   bool           `json:"linked"`
	}](t, rec)
	assert.True(t, got.Linked)
	assert.Nil(t, got.Reminder.RemindAt)

	rec = f.do(t, http.MethodPost, path, map[string]any{"start_date": "2026-07-01", "start_time": "7pm"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "start_time", decode[map[string]any](t, rec)["field"])

	rec = f.do(t, http.MethodPost, path, map[string]any{"start_date": "July 1st"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListNotificationsAndUsers(t *testing.T) {
	f := newFixture(t)
	task := testutil.SeedTask(t, f.store, "Fix lamp")
	require.NoError(t, f.store.RecordDelivery(context.Background(), model.Delivery{
		EventID:  "ev-1",
		TaskID:   task.ID,
		Kind:     model.EventStatusChanged,
		Status:   model.DeliveryDelivered,
		Attempts: 1,
	}))

	rec := f.do(t, http.MethodGet, "/api/v1/tasks/"+task.ID+"/notifications", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[struct {
		Notifications []model.Delivery `json:"notifications"`
	}](t, rec)
	require.Len(t, got.Notifications, 1)
	assert.Equal(t, "ev-1", got.Notifications[0].EventID)

	rec = f.do(t, http.MethodGet, "/api/v1/users", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	users := decode[struct {
		Users []model.User `json:"users"`
	}](t, rec)
	assert.Len(t, users.Users, 3)
}

func TestRequestsDoNotGrowCoordinatorView(t *testing.T) {
	f := newFixture(t)

	for _, title := range []string{"Fix lamp", "Clean pool", "Restock towels"} {
		rec := f.do(t, http.MethodPost, "/api/v1/tasks", map[string]any{"title": title})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		id := decode[model.Task](t, rec).ID

		rec = f.do(t, http.MethodPatch, "/api/v1/tasks/"+id+"/status", map[string]any{"to": "in_progress"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	assert.Empty(t, f.coord.View().Tasks())
}
