package core

import (
	"context"
	stderrors "errors"
	"strings"

	apperrors "github.com/goliatone/go-errors"
)

const (
	ErrCodeMalformedEvent      = "RO_MALFORMED_EVENT"
	ErrCodeUnknownEvent        = "RO_UNKNOWN_EVENT"
	ErrCodeTransientIO         = "RO_TRANSIENT_IO"
	ErrCodeScheduleAckRejected = "RO_SCHEDULE_ACK_REJECTED"
)

// ErrNotFound is returned by stores for missing records.
var ErrNotFound = stderrors.New("record not found")

var (
	// ErrMalformedEvent marks events that can never be processed. They are dropped, not retried.
	ErrMalformedEvent = apperrors.New("malformed event", apperrors.CategoryBadInput).
				WithTextCode(ErrCodeMalformedEvent)
	// ErrUnknownEvent marks events without a registered handler.
	ErrUnknownEvent = apperrors.New("unknown event type", apperrors.CategoryBadInput).
			WithTextCode(ErrCodeUnknownEvent)
	// ErrScheduleAckRejected marks scheduler acks with valid=false.
	ErrScheduleAckRejected = apperrors.New("schedule ack rejected", apperrors.CategoryConflict).
				WithTextCode(ErrCodeScheduleAckRejected)
)

// Malformed returns ErrMalformedEvent specialised with message and source.
func Malformed(message string, source error) error {
	return specialise(ErrMalformedEvent, message, source, nil)
}

// AckRejected returns ErrScheduleAckRejected carrying the scheduler error code.
func AckRejected(scheduleID, errorCode string) error {
	return specialise(ErrScheduleAckRejected, "", nil, map[string]any{
		"scheduleId": scheduleID,
		"errorCode":  errorCode,
	})
}

// Unknown returns ErrUnknownEvent for eventType.
func Unknown(eventType string) error {
	return specialise(ErrUnknownEvent, "unknown event type "+eventType, nil, nil)
}

// Transient wraps an infrastructure error so that the event is redelivered.
func Transient(source error, message string) error {
	if source == nil {
		return nil
	}
	return apperrors.Wrap(source, apperrors.CategoryExternal, message).
		WithTextCode(ErrCodeTransientIO)
}

// Code returns the text code of err, or "" for foreign errors.
func Code(err error) string {
	var ge *apperrors.Error
	if stderrors.As(err, &ge) {
		return ge.TextCode
	}
	return ""
}

// IsRetryable reports whether redelivering the event may succeed.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return Code(err) == ErrCodeTransientIO
}

// IsMalformed reports whether err marks an unprocessable event.
func IsMalformed(err error) bool {
	return Code(err) == ErrCodeMalformedEvent
}

func specialise(base *apperrors.Error, message string, source error, metadata map[string]any) *apperrors.Error {
	err := base.Clone()
	if text := strings.TrimSpace(message); text != "" {
		err.Message = text
	}
	if source != nil {
		err.Source = source
	}
	if len(metadata) > 0 {
		err = err.WithMetadata(metadata)
	}
	return err
}
