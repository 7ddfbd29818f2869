// Package notify delivers task lifecycle events to external sinks on a
// best-effort basis. Nothing in this package reports failures back to
// the mutation that produced an event.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nhle/hotel-ops/internal/model"
)

// Notifier accepts lifecycle events. Implementations must not block the
// caller on delivery.
type Notifier interface {
	Notify(ev model.Event)
}

// Sink sends one event to an external system.
type Sink interface {
	Name() string
	Send(ctx context.Context, ev model.Event) error
}

// Nop discards every event.
type Nop struct{}

// Notify implements Notifier.
func (Nop) Notify(model.Event) {}

// NewEvent builds an event stamped with the current time.
func NewEvent(kind model.EventKind, taskID string, payload map[string]any) model.Event {
	return model.Event{
		Kind:       kind,
		TaskID:     taskID,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// RetryAfterError asks the dispatcher to wait at least Wait before the
// next attempt.
type RetryAfterError struct {
	Wait time.Duration
	Err  error
}

func (e *RetryAfterError) Error() string {
	return fmt.Sprintf("%v (retry after %s)", e.Err, e.Wait)
}

func (e *RetryAfterError) Unwrap() error { return e.Err }

// MultiSink fans an event out to every sink. An event counts as sent
// only when all sinks accept it.
type MultiSink []Sink

// Name implements Sink.
func (m MultiSink) Name() string { return "multi" }

// Send implements Sink. The result is permanent only when every failing
// sink failed permanently.
func (m MultiSink) Send(ctx context.Context, ev model.Event) error {
	var errs []error
	permanent := true
	for _, s := range m {
		if err := s.Send(ctx, ev); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			if !IsPermanent(err) {
				permanent = false
			}
		}
	}
	if len(errs) == 0 {
		return nil
	}
	joined := errors.Join(errs...)
	if permanent {
		return Permanent(joined)
	}
	return joined
}
