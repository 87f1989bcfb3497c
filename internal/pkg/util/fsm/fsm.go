package fsm

import (
	"context"
	"errors"

	"github.com/looplab/fsm"
)

// WrapEvent adapts an error-returning callback to fsm.Callback.
// A returned error is stored on the event and surfaces from FSM.Event.
func WrapEvent(fn func(ctx context.Context, event *fsm.Event) error) fsm.Callback {
	return func(ctx context.Context, event *fsm.Event) {
		if err := fn(ctx, event); err != nil {
			event.Err = err
		}
	}
}

// IsNoop reports whether err only means that no transition happened:
// the event was not allowed from the current state, was cancelled by a guard,
// or pointed at the current state. A nil error is a completed transition.
func IsNoop(err error) bool {
	if err == nil {
		return false
	}

	var (
		noTransition fsm.NoTransitionError
		canceled     fsm.CanceledError
		invalid      fsm.InvalidEventError
	)
	return errors.As(err, &noTransition) || errors.As(err, &canceled) || errors.As(err, &invalid)
}
