package model

import (
	"encoding/json"
	"time"
)

// Request is one remote operation and the responses it collected.
type Request struct {
	RequestID        string
	VehicleID        string
	Family           Family
	MessageID        string
	CorrelationID    string
	BizTransactionID string
	Origin           string
	UserID           string
	ScheduleID       string
	DeliveryCutoff   time.Time
	Status           Status

	// StatusCorrelationID is the correlation id of the response that set Status.
	StatusCorrelationID string

	// Responses in arrival order. Only ever appended to.
	Responses []Response

	Payload   json.RawMessage
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Context returns the denormalized fields held by the correlation cache.
func (r *Request) Context() RequestContext {
	return RequestContext{
		Origin:     r.Origin,
		UserID:     r.UserID,
		ScheduleID: r.ScheduleID,
		Family:     r.Family,
	}
}

// ScheduleArmed reports whether a deferred execution is armed or being armed.
func (r *Request) ScheduleArmed() bool {
	return r.ScheduleID != "" || r.Status == StatusPending
}

// Response is one response of a request. Orphan responses have no request and
// therefore no origin or user.
type Response struct {
	MessageID       string
	RequestID       string
	VehicleID       string
	CorrelationID   string
	Code            ResponseCode
	Family          Family
	Origin          *string
	UserID          *string
	Qualifier       string
	Orphan          bool
	Synthetic       bool
	CustomExtension json.RawMessage
	ReceivedAt      time.Time
}

// RequestContext is the cached projection of a request used on the response path.
type RequestContext struct {
	Origin     string `json:"origin"`
	UserID     string `json:"userId"`
	ScheduleID string `json:"scheduleId,omitempty"`
	Family     Family `json:"family,omitempty"`
}

// ExpiryEntry records one delivery attempt and the deadline of its first response.
type ExpiryEntry struct {
	ID            uint64
	VehicleID     string
	RequestID     string
	CorrelationID string
	MessageID     string
	Cutoff        time.Time
	EnqueuedAt    time.Time
}

// Late reports whether a response received at now missed the window, given buffer.
func (e *ExpiryEntry) Late(now time.Time, buffer time.Duration) bool {
	return now.After(e.Cutoff.Add(buffer))
}

// DeliveryCutoff returns the deadline of a request sent at now under the retry policy:
// every attempt gets one interval, plus a fixed buffer.
func DeliveryCutoff(now time.Time, retryCount int, retryInterval, buffer time.Duration) time.Time {
	if retryCount < 0 {
		retryCount = 0
	}
	return now.Add(time.Duration(retryCount+1)*retryInterval + buffer)
}
