package model

import (
	"context"

	"github.com/looplab/fsm"

	fsmutil "github.com/autopeer-io/remoteops/internal/pkg/util/fsm"
)

// Lifecycle events of a request.
const (
	// EventArmRetry parks an open request while a deferred retry is armed.
	EventArmRetry = "arm_retry"
	// EventSucceed applies a final success code.
	EventSucceed = "succeed"
	// EventFail applies a final failure code.
	EventFail = "fail"
	// EventExpire marks a request whose response arrived after the delivery cutoff.
	EventExpire = "expire"
	// EventTimeout marks a request whose timeout schedule fired without a response.
	EventTimeout = "time_out"
)

// stateOpen stands for StatusOpen, which the fsm cannot use as a state name.
const stateOpen = "OPEN"

var (
	openStates     = []string{stateOpen, string(StatusPending)}
	terminalStates = []string{string(StatusProcessedSuccess), string(StatusProcessedFailed), string(StatusTTLExpired)}
	finalSources   = append(append([]string{}, openStates...), terminalStates...)
)

var lifecycleEvents = fsm.Events{
	{Name: EventArmRetry, Src: []string{stateOpen}, Dst: string(StatusPending)},
	{Name: EventSucceed, Src: finalSources, Dst: string(StatusProcessedSuccess)},
	{Name: EventFail, Src: finalSources, Dst: string(StatusProcessedFailed)},
	{Name: EventExpire, Src: openStates, Dst: string(StatusTTLExpired)},
	{Name: EventTimeout, Src: openStates, Dst: string(StatusProcessedFailed)},
}

// Lifecycle computes status transitions of one request. A terminal status can
// only be replaced by a final response of a different correlation id.
type Lifecycle struct {
	fsm         *fsm.FSM
	correlation string
}

// NewLifecycle starts a lifecycle at the stored status.
func NewLifecycle(status Status, statusCorrelationID string) *Lifecycle {
	l := &Lifecycle{correlation: statusCorrelationID}
	l.fsm = fsm.NewFSM(stateOf(status), lifecycleEvents, fsm.Callbacks{
		"before_event": fsmutil.WrapEvent(l.guardSupersede),
		"enter_state":  fsmutil.WrapEvent(l.recordCorrelation),
	})
	return l
}

// Fire applies event on behalf of correlationID and reports whether the status changed.
func (l *Lifecycle) Fire(ctx context.Context, event, correlationID string) (bool, error) {
	err := l.fsm.Event(ctx, event, correlationID)
	switch {
	case err == nil:
		return true, nil
	case fsmutil.IsNoop(err):
		return false, nil
	default:
		return false, err
	}
}

// Status returns the current status.
func (l *Lifecycle) Status() Status {
	return statusOf(l.fsm.Current())
}

// CorrelationID returns the correlation id that produced the current status.
func (l *Lifecycle) CorrelationID() string {
	return l.correlation
}

// guardSupersede keeps a terminal status when the same correlation reports again.
func (l *Lifecycle) guardSupersede(_ context.Context, e *fsm.Event) error {
	if !statusOf(e.Src).IsTerminal() {
		return nil
	}
	if correlationArg(e) == l.correlation {
		e.Cancel(fsm.NoTransitionError{})
	}
	return nil
}

func (l *Lifecycle) recordCorrelation(_ context.Context, e *fsm.Event) error {
	l.correlation = correlationArg(e)
	return nil
}

func correlationArg(e *fsm.Event) string {
	if len(e.Args) == 0 {
		return ""
	}
	s, _ := e.Args[0].(string)
	return s
}

// EventFor returns the lifecycle event of a response code, or "" for continue codes.
func EventFor(code ResponseCode) string {
	switch {
	case code.IsContinue() || code == "":
		return ""
	case code.IsSuccess():
		return EventSucceed
	default:
		return EventFail
	}
}

func stateOf(s Status) string {
	if s == StatusOpen {
		return stateOpen
	}
	return string(s)
}

func statusOf(state string) Status {
	if state == stateOpen {
		return StatusOpen
	}
	return Status(state)
}
