package core

import (
	"context"
	"time"

	"github.com/autopeer-io/remoteops/internal/processor/core/model"
)

// RequestStore is the durable, canonical store of requests and their responses.
type RequestStore interface {
	// Create persists a new request. It reports false when the request already exists.
	Create(ctx context.Context, req *model.Request) (bool, error)

	// Get returns the request with its responses in arrival order, or ErrNotFound.
	Get(ctx context.Context, vehicleID, requestID string) (*model.Request, error)

	// AppendResponse appends one response. It reports false when a response with
	// the same message id was already appended. Orphan responses are stored the same way.
	AppendResponse(ctx context.Context, resp *model.Response) (bool, error)

	// CompareAndSetStatus moves the status only if it still equals from/fromCorrelation.
	CompareAndSetStatus(ctx context.Context, vehicleID, requestID string, from model.Status, fromCorrelation string, to model.Status, correlationID string) (bool, error)

	// SetScheduleID records the armed schedule of a request.
	SetScheduleID(ctx context.Context, vehicleID, requestID, scheduleID string) error

	// ClearScheduleID removes scheduleID from the request if it is still the armed one.
	ClearScheduleID(ctx context.Context, vehicleID, requestID, scheduleID string) error
}

// ScheduleStore holds the schedule records acknowledged by the scheduler.
type ScheduleStore interface {
	// Save creates or replaces a schedule record.
	Save(ctx context.Context, s *model.Schedule) error

	// Get returns a schedule or ErrNotFound.
	Get(ctx context.Context, vehicleID, scheduleID string) (*model.Schedule, error)

	// MarkStatus moves a schedule to status if it is currently in one of from.
	MarkStatus(ctx context.Context, vehicleID, scheduleID string, status model.ScheduleStatus, from ...model.ScheduleStatus) (bool, error)
}

// ExpiryQueue holds one entry per delivery attempt until its first response.
type ExpiryQueue interface {
	// Enqueue adds an entry; enqueueing the same attempt twice is a no-op.
	Enqueue(ctx context.Context, e *model.ExpiryEntry) error

	// Peek returns the entry of the attempt, or the oldest entry of the request
	// when correlationID is empty. It returns nil when none is pending.
	Peek(ctx context.Context, vehicleID, requestID, correlationID string) (*model.ExpiryEntry, error)

	// Ack removes an entry once its response has been processed.
	Ack(ctx context.Context, e *model.ExpiryEntry) error

	// Purge removes entries whose cutoff is before t and returns how many were removed.
	Purge(ctx context.Context, before time.Time) (int64, error)
}

// Repository groups the durable stores.
type Repository interface {
	Requests() RequestStore
	Schedules() ScheduleStore
	Expiry() ExpiryQueue
}

// CorrelationCache is a disposable, TTL bound copy of request context.
// Misses are normal; callers fall back to the RequestStore.
type CorrelationCache interface {
	Get(ctx context.Context, vehicleID, requestID string) (*model.RequestContext, bool, error)
	Put(ctx context.Context, vehicleID, requestID string, rc model.RequestContext) error

	// SetScheduleID updates an existing entry in place and keeps its TTL.
	SetScheduleID(ctx context.Context, vehicleID, requestID, scheduleID string) error

	Delete(ctx context.Context, vehicleID, requestID string) error
}

// StatusCache keeps the RCPD status of a user and vehicle pair.
type StatusCache interface {
	PutRCPDStatus(ctx context.Context, userID, vehicleID string, status model.RCPDStatus) error
	GetRCPDStatus(ctx context.Context, userID, vehicleID string) (model.RCPDStatus, bool, error)
	DeleteRCPDStatus(ctx context.Context, userID, vehicleID string) error
}

// Cache groups the cache views.
type Cache interface {
	Correlation() CorrelationCache
	Status() StatusCache
}

// Publisher emits outbound events to the broker.
type Publisher interface {
	// PublishDeviceRequest sends an enriched request to the device routing sink.
	PublishDeviceRequest(ctx context.Context, ev *model.Event) error

	// PublishForward sends a correlated response to the consumer selected by qualifier.
	PublishForward(ctx context.Context, qualifier string, ev *model.Event) error

	// PublishNotification sends a notification to one sink.
	PublishNotification(ctx context.Context, sink string, ev *model.Event) error

	// PublishSchedule sends CREATE_SCHEDULE or DELETE_SCHEDULE to the scheduler.
	PublishSchedule(ctx context.Context, ev *model.Event) error
}

// SettingsLookup resolves settings owned by other services.
type SettingsLookup interface {
	// CallCenterName returns the call-center serving origin.
	CallCenterName(ctx context.Context, origin string) (string, error)
}
