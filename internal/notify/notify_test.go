package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nhle/hotel-ops/internal/model"
)

// fakeSink fails the first failures calls with err, then succeeds.
type fakeSink struct {
	mu       sync.Mutex
	failures int
	err      error
	sent     []model.Event
	calls    int
	block    chan struct{}
}

func (f *fakeSink) Name() string { return "fake" }

func (f *fakeSink) Send(_ context.Context, ev model.Event) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		return f.err
	}
	f.sent = append(f.sent, ev)
	return nil
}

func (f *fakeSink) snapshot() (int, []model.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls, append([]model.Event(nil), f.sent...)
}

type memRecorder struct {
	mu         sync.Mutex
	deliveries []model.Delivery
}

func (m *memRecorder) RecordDelivery(_ context.Context, d model.Delivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deliveries = append(m.deliveries, d)
	return nil
}

func (m *memRecorder) all() []model.Delivery {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Delivery(nil), m.deliveries...)
}

func fastOptions() Options {
	return Options{
		QueueSize:   8,
		Workers:     1,
		MaxAttempts: 3,
		BaseBackoff: time.Millisecond,
		MaxBackoff:  5 * time.Millisecond,
	}
}

func stop(t *testing.T, d *Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Stop(ctx))
}

func TestDispatcher_DeliversAndRecords(t *testing.T) {
	sink := &fakeSink{}
	rec := &memRecorder{}
	d := NewDispatcher(sink, rec, zap.NewNop().Sugar(), fastOptions())
	d.Start()

	d.Notify(NewEvent(model.EventStatusChanged, "t1", map[string]any{"to": "completed"}))
	stop(t, d)

	_, sent := sink.snapshot()
	require.Len(t, sent, 1)
	assert.NotEmpty(t, sent[0].ID)
	assert.Equal(t, "t1", sent[0].TaskID)

	deliveries := rec.all()
	require.Len(t, deliveries, 1)
	assert.Equal(t, model.DeliveryDelivered, deliveries[0].Status)
	assert.Equal(t, 1, deliveries[0].Attempts)
	assert.Equal(t, sent[0].ID, deliveries[0].EventID)
}

func TestDispatcher_RetriesTransientFailures(t *testing.T) {
	sink := &fakeSink{failures: 2, err: errors.New("503")}
	rec := &memRecorder{}
	d := NewDispatcher(sink, rec, zap.NewNop().Sugar(), fastOptions())
	d.Start()

	d.Notify(NewEvent(model.EventMembersAssigned, "t1", nil))

	require.Eventually(t, func() bool {
		_, sent := sink.snapshot()
		return len(sent) == 1
	}, 2*time.Second, 5*time.Millisecond)
	stop(t, d)

	calls, _ := sink.snapshot()
	assert.Equal(t, 3, calls)
	deliveries := rec.all()
	require.Len(t, deliveries, 1)
	assert.Equal(t, 3, deliveries[0].Attempts)
}

func TestDispatcher_GivesUpAfterMaxAttempts(t *testing.T) {
	sink := &fakeSink{failures: 100, err: errors.New("down")}
	rec := &memRecorder{}
	d := NewDispatcher(sink, rec, zap.NewNop().Sugar(), fastOptions())
	d.Start()

	d.Notify(NewEvent(model.EventReminderSet, "t1", nil))

	require.Eventually(t, func() bool { return len(rec.all()) == 1 }, 2*time.Second, 5*time.Millisecond)
	stop(t, d)

	calls, _ := sink.snapshot()
	assert.Equal(t, 3, calls)
	got := rec.all()[0]
	assert.Equal(t, model.DeliveryFailed, got.Status)
	assert.Equal(t, "down", got.LastError)
}

func TestDispatcher_PermanentErrorIsNotRetried(t *testing.T) {
	sink := &fakeSink{failures: 100, err: Permanent(errors.New("401"))}
	rec := &memRecorder{}
	d := NewDispatcher(sink, rec, zap.NewNop().Sugar(), fastOptions())
	d.Start()

	d.Notify(NewEvent(model.EventReminderSet, "t1", nil))

	require.Eventually(t, func() bool { return len(rec.all()) == 1 }, 2*time.Second, 5*time.Millisecond)
	stop(t, d)

	calls, _ := sink.snapshot()
	assert.Equal(t, 1, calls)
}

func TestDispatcher_NotifyNeverBlocks(t *testing.T) {
	sink := &fakeSink{block: make(chan struct{})}
	opts := fastOptions()
	opts.QueueSize = 1
	d := NewDispatcher(sink, nil, zap.NewNop().Sugar(), opts)
	d.Start()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 20; i++ {
			d.Notify(NewEvent(model.EventStatusChanged, "t1", nil))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Notify blocked on a full queue")
	}
	assert.Greater(t, d.Dropped(), int64(0))

	close(sink.block)
	stop(t, d)
}

func TestDispatcher_NotifyAfterStopDrops(t *testing.T) {
	sink := &fakeSink{}
	d := NewDispatcher(sink, nil, zap.NewNop().Sugar(), fastOptions())
	d.Start()
	stop(t, d)

	d.Notify(NewEvent(model.EventStatusChanged, "t1", nil))
	assert.Equal(t, int64(1), d.Dropped())
}

func TestBackoff_HonoursRetryAfterWithinCap(t *testing.T) {
	d := NewDispatcher(&fakeSink{}, nil, zap.NewNop().Sugar(), Options{
		BaseBackoff: 100 * time.Millisecond,
		MaxBackoff:  2 * time.Second,
	})

	assert.Equal(t, 100*time.Millisecond, d.backoff(1, errors.New("x")))
	assert.Equal(t, 400*time.Millisecond, d.backoff(3, errors.New("x")))
	assert.Equal(t, 2*time.Second, d.backoff(10, errors.New("x")))
	assert.Equal(t, time.Second, d.backoff(1, &RetryAfterError{Wait: time.Second, Err: errors.New("429")}))
	assert.Equal(t, 2*time.Second, d.backoff(1, &RetryAfterError{Wait: time.Hour, Err: errors.New("429")}))
}

func TestWebhookSink_PostsEvent(t *testing.T) {
	var got model.Event
	var auth, kind string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		kind = r.Header.Get("X-Hotelops-Event")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink := NewWebhookSink(srv.URL, "secret", time.Second)
	ev := NewEvent(model.EventStatusChanged, "t1", map[string]any{"from": "pending", "to": "completed"})
	ev.ID = "e1"

	require.NoError(t, sink.Send(context.Background(), ev))
	assert.Equal(t, "Bearer secret", auth)
	assert.Equal(t, "task_status_changed", kind)
	assert.Equal(t, "e1", got.ID)
	assert.Equal(t, model.EventStatusChanged, got.Kind)
	assert.Equal(t, "completed", got.Payload["to"])
}

func TestWebhookSink_ErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		retryHdr  string
		permanent bool
		wait      time.Duration
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, retryHdr: "3", wait: 3 * time.Second},
		{name: "server error", status: http.StatusBadGateway},
		{name: "unauthorized", status: http.StatusUnauthorized, permanent: true},
		{name: "bad request", status: http.StatusBadRequest, permanent: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.retryHdr != "" {
					w.Header().Set("Retry-After", tt.retryHdr)
				}
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			err := NewWebhookSink(srv.URL, "", time.Second).
				Send(context.Background(), NewEvent(model.EventReminderDue, "t1", nil))
			require.Error(t, err)
			assert.Equal(t, tt.permanent, IsPermanent(err))

			var ra *RetryAfterError
			if tt.wait > 0 {
				require.True(t, errors.As(err, &ra))
				assert.Equal(t, tt.wait, ra.Wait)
			}
		})
	}
}

func TestMultiSink(t *testing.T) {
	ok := &fakeSink{}
	transient := &fakeSink{failures: 1, err: errors.New("timeout")}
	hard := &fakeSink{failures: 1, err: Permanent(errors.New("401"))}
	ev := NewEvent(model.EventStatusChanged, "t1", nil)

	assert.NoError(t, MultiSink{ok}.Send(context.Background(), ev))

	err := MultiSink{ok, transient}.Send(context.Background(), ev)
	require.Error(t, err)
	assert.False(t, IsPermanent(err))

	err = MultiSink{ok, hard}.Send(context.Background(), ev)
	require.Error(t, err)
	assert.True(t, IsPermanent(err))
}

func TestBuildMessage(t *testing.T) {
	ev := NewEvent(model.EventStatusChanged, "t1", map[string]any{
		"title": "Fix shower",
		"from":  "pending",
		"to":    "in_progress",
	})

	raw, err := buildMessage("ops@hotel.example", ev)
	require.NoError(t, err)

	r, err := mail.CreateReader(strings.NewReader(string(raw)))
	require.NoError(t, err)

	subject, err := r.Header.Subject()
	require.NoError(t, err)
	assert.Equal(t, "[hotelops] Fix shower moved to in_progress", subject)
	assert.Equal(t, "task_status_changed", r.Header.Get("X-Hotelops-Event"))

	part, err := r.NextPart()
	require.NoError(t, err)
	body, err := io.ReadAll(part.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Task: t1")
	assert.Contains(t, string(body), `to: "in_progress"`)
}

func TestMailboxSink_SendHonoursContext(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	// The server accepts and then never says a word.
	accepted := make(chan net.Conn, 4)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				close(accepted)
				return
			}
			accepted <- conn
		}
	}()
	t.Cleanup(func() {
		ln.Close()
		for conn := range accepted {
			conn.Close()
		}
	})

	host, port, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	sink := NewMailboxSink(model.MailboxConfig{Host: host, Port: port, Username: "desk@hotel.test"}, "secret")

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	started := time.Now()
	err = sink.Send(ctx, NewEvent(model.EventReminderDue, "t1", map[string]any{"message": "check linen"}))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, IsPermanent(err))
	assert.Less(t, time.Since(started), 5*time.Second)
}

func TestDispatcher_NotifyRacingStopIsDeliveredOrDropped(t *testing.T) {
	for round := 0; round < 20; round++ {
		sink := &fakeSink{}
		opts := fastOptions()
		opts.QueueSize = 64
		d := NewDispatcher(sink, nil, zap.NewNop().Sugar(), opts)
		d.Start()

		const senders = 8
		var wg sync.WaitGroup
		for i := 0; i < senders; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				d.Notify(NewEvent(model.EventStatusChanged, "t1", nil))
			}()
		}
		stop(t, d)
		wg.Wait()

		_, sent := sink.snapshot()
		require.Equal(t, int64(senders), int64(len(sent))+d.Dropped(), "round %d", round)
	}
}

// slowRecorder blocks every write until release is closed and tracks
// how many writes were in flight at once.
type slowRecorder struct {
	release  chan struct{}
	inflight atomic.Int32
	peak     atomic.Int32
}

func (s *slowRecorder) RecordDelivery(context.Context, model.Delivery) error {
	n := s.inflight.Add(1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	<-s.release
	s.inflight.Add(-1)
	return nil
}

func TestDispatcher_DropRecordingIsBounded(t *testing.T) {
	rec := &slowRecorder{release: make(chan struct{})}
	d := NewDispatcher(&fakeSink{}, rec, zap.NewNop().Sugar(), fastOptions())

	// Never started, so every event is dropped.
	for i := 0; i < 100; i++ {
		d.Notify(NewEvent(model.EventStatusChanged, "t1", nil))
	}
	assert.Equal(t, int64(100), d.Dropped())

	assert.Eventually(t, func() bool {
		return rec.inflight.Load() == maxDropRecorders
	}, time.Second, time.Millisecond)
	assert.LessOrEqual(t, rec.peak.Load(), int32(maxDropRecorders))
	close(rec.release)
}
