package notify

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nhle/hotel-ops/internal/model"
)

// sendTimeout bounds a single delivery attempt.
const sendTimeout = 15 * time.Second

// maxDropRecorders caps the goroutines recording dropped events. Drops
// beyond it are still counted and logged.
const maxDropRecorders = 4

// DeliveryRecorder persists delivery outcomes.
type DeliveryRecorder interface {
	RecordDelivery(ctx context.Context, d model.Delivery) error
}

// Options tunes the dispatcher queue and retry policy.
type Options struct {
	QueueSize   int
	Workers     int
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// OptionsFromConfig converts the notify config section into Options.
func OptionsFromConfig(cfg model.NotifyConfig) Options {
	return Options{
		QueueSize:   cfg.QueueSize,
		Workers:     cfg.Workers,
		MaxAttempts: cfg.MaxAttempts,
		BaseBackoff: time.Duration(cfg.BaseBackoffMS) * time.Millisecond,
		MaxBackoff:  time.Duration(cfg.MaxBackoffSec) * time.Second,
	}
}

func (o Options) withDefaults() Options {
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.Workers <= 0 {
		o.Workers = 1
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 1
	}
	if o.BaseBackoff <= 0 {
		o.BaseBackoff = 500 * time.Millisecond
	}
	if o.MaxBackoff < o.BaseBackoff {
		o.MaxBackoff = o.BaseBackoff
	}
	return o
}

// Dispatcher is an outbound queue drained by a fixed set of workers.
// Notify never blocks: when the queue is full the event is dropped.
type Dispatcher struct {
	sink     Sink
	recorder DeliveryRecorder
	logger   *zap.SugaredLogger
	opts     Options

	queue   chan model.Event
	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
	dropped atomic.Int64

	dropSlots chan struct{}
}

var _ Notifier = (*Dispatcher)(nil)

// NewDispatcher creates a dispatcher for sink. recorder may be nil.
func NewDispatcher(sink Sink, recorder DeliveryRecorder, logger *zap.SugaredLogger, opts Options) *Dispatcher {
	opts = opts.withDefaults()
	return &Dispatcher{
		sink:     sink,
		recorder: recorder,
		logger:   logger,
		opts:     opts,
		queue:    make(chan model.Event, opts.QueueSize),
		stopCh:   make(chan struct{}),

		dropSlots: make(chan struct{}, maxDropRecorders),
	}
}

// Start launches the worker goroutines.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return
	}
	d.running = true

	for i := 0; i < d.opts.Workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
}

// Stop signals the workers to finish the queued events and waits for
// them, or for ctx to expire.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = false
	close(d.stopCh)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Notify queues ev for delivery. It assigns an event ID when missing.
func (d *Dispatcher) Notify(ev model.Event) {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}

	// The send happens under mu so Stop cannot close stopCh between the
	// running check and the enqueue.
	d.mu.Lock()
	running := d.running
	queued := false
	if running {
		select {
		case d.queue <- ev:
			queued = true
		default:
		}
	}
	d.mu.Unlock()
	if queued {
		return
	}

	d.dropped.Add(1)
	d.logger.Warnw("notification dropped",
		"event", ev.Kind, "event_id", ev.ID, "task_id", ev.TaskID, "running", running)

	select {
	case d.dropSlots <- struct{}{}:
		go func() {
			defer func() { <-d.dropSlots }()
			d.record(ev, model.DeliveryDropped, 0, errors.New("queue full or dispatcher stopped"))
		}()
	default:
	}
}

// Dropped returns the number of events dropped so far.
func (d *Dispatcher) Dropped() int64 {
	return d.dropped.Load()
}

func (d *Dispatcher) work() {
	defer d.wg.Done()

	for {
		select {
		case ev := <-d.queue:
			d.deliver(ev)
		case <-d.stopCh:
			// Drain what is already queued, then exit.
			for {
				select {
				case ev := <-d.queue:
					d.deliver(ev)
				default:
					return
				}
			}
		}
	}
}

// deliver sends ev with bounded retry and records the outcome.
func (d *Dispatcher) deliver(ev model.Event) {
	var lastErr error
	attempts := 0

	for attempts < d.opts.MaxAttempts {
		attempts++

		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		lastErr = d.sink.Send(ctx, ev)
		cancel()

		if lastErr == nil {
			d.record(ev, model.DeliveryDelivered, attempts, nil)
			return
		}
		if IsPermanent(lastErr) || attempts == d.opts.MaxAttempts {
			break
		}

		wait := d.backoff(attempts, lastErr)
		d.logger.Debugw("notification retry",
			"event", ev.Kind, "event_id", ev.ID, "attempt", attempts, "wait", wait.String(), "error", lastErr)

		select {
		case <-time.After(wait):
			continue
		case <-d.stopCh:
			// Shutting down: no further attempts for this event.
		}
		break
	}

	d.logger.Warnw("notification failed",
		"event", ev.Kind, "event_id", ev.ID, "task_id", ev.TaskID,
		"sink", d.sink.Name(), "attempts", attempts, "error", lastErr)
	d.record(ev, model.DeliveryFailed, attempts, lastErr)
}

// backoff returns the wait before attempt+1: exponential from
// BaseBackoff, capped at MaxBackoff, and never shorter than a
// Retry-After the sink reported.
func (d *Dispatcher) backoff(attempt int, err error) time.Duration {
	wait := d.opts.BaseBackoff << uint(attempt-1)
	if wait <= 0 || wait > d.opts.MaxBackoff {
		wait = d.opts.MaxBackoff
	}

	var ra *RetryAfterError
	if errors.As(err, &ra) && ra.Wait > wait {
		wait = ra.Wait
		if wait > d.opts.MaxBackoff {
			wait = d.opts.MaxBackoff
		}
	}
	return wait
}

func (d *Dispatcher) record(ev model.Event, status string, attempts int, err error) {
	if d.recorder == nil {
		return
	}

	entry := model.Delivery{
		EventID:   ev.ID,
		TaskID:    ev.TaskID,
		Kind:      ev.Kind,
		Status:    status,
		Attempts:  attempts,
		CreatedAt: time.Now().UTC(),
	}
	if err != nil {
		entry.LastError = err.Error()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if recErr := d.recorder.RecordDelivery(ctx, entry); recErr != nil {
		d.logger.Warnw("recording notification outcome",
			"event_id", ev.ID, "status", status, "error", recErr)
	}
}
