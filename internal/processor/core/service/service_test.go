package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"k8s.io/apimachinery/pkg/util/sets"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/autopeer-io/remoteops/internal/processor/cache"
	"github.com/autopeer-io/remoteops/internal/processor/core"
	"github.com/autopeer-io/remoteops/internal/processor/core/model"
	"github.com/autopeer-io/remoteops/internal/processor/settings"
	"github.com/autopeer-io/remoteops/internal/processor/store"
	"github.com/autopeer-io/remoteops/pkg/options"
)

type forwarded struct {
	qualifier string
	ev        *model.Event
}

type notified struct {
	sink string
	ev   *model.Event
}

// recorder is a core.Publisher that keeps every outbound event.
type recorder struct {
	mu            sync.Mutex
	err           error
	device        []*model.Event
	forwards      []forwarded
	notifications []notified
	schedules     []*model.Event
}

func (r *recorder) PublishDeviceRequest(_ context.Context, ev *model.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return core.Transient(r.err, "publish")
	}
	r.device = append(r.device, ev)
	return nil
}

func (r *recorder) PublishForward(_ context.Context, qualifier string, ev *model.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return core.Transient(r.err, "publish")
	}
	r.forwards = append(r.forwards, forwarded{qualifier: qualifier, ev: ev})
	return nil
}

func (r *recorder) PublishNotification(_ context.Context, sink string, ev *model.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return core.Transient(r.err, "publish")
	}
	r.notifications = append(r.notifications, notified{sink: sink, ev: ev})
	return nil
}

func (r *recorder) PublishSchedule(_ context.Context, ev *model.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return core.Transient(r.err, "publish")
	}
	r.schedules = append(r.schedules, ev)
	return nil
}

func (r *recorder) schedulesOf(t model.EventType) []*model.Event {
	var out []*model.Event
	for _, ev := range r.schedules {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

type fixture struct {
	svc   *Service
	repo  *store.Repository
	cache *cache.Cache
	pub   *recorder
	clock *clocktesting.FakePassiveClock
}

var testStart = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, store.Migrate(db))

	clk := clocktesting.NewFakePassiveClock(testStart)
	repo := store.New(db, 0)
	c := cache.New(cache.NewMemoryStore(1000, time.Hour, clk), cache.Config{
		CorrelationTTL: 10 * time.Minute,
		StatusTTL:      time.Hour,
	})
	pub := &recorder{}

	settingsOpts := options.NewSettingsOptions()
	settingsOpts.CallCenters = map[string]string{"agent-portal": "east"}

	cfg := &Config{
		Retry:                 RetryPolicy{Count: 3, Interval: 30 * time.Second, TTLBuffer: 10 * time.Second},
		TTLCheckBuffer:        2 * time.Second,
		RecoverableRetryDelay: 5 * time.Minute,
		RCPDTimeout:           15 * time.Minute,
		DeviceErrors: map[string]model.ResponseCode{
			"DEVICE_STATUS_INACTIVE":  model.CodeFailVehicleNotConnected,
			"DEVICE_RETRIES_EXCEEDED": model.CodeFailDeliveryRetriesExceeded,
		},
		RecoverableErrors: sets.New("DEVICE_STATUS_INACTIVE"),
		Notifications: map[model.ResponseCode]string{
			model.CodeSuccess:                     "RO_SUCCESS",
			model.CodeFail:                        "RO_FAILED",
			model.CodeTimeOut:                     "RO_TIMED_OUT",
			model.CodeFailDeliveryRetriesExceeded: "RO_DELIVERY_FAILED",
		},
		NotificationSinks: []string{"push"},
		Clock:             clk,
	}

	svc := New(cfg, repo, c, pub, settings.NewStatic(settingsOpts))
	var seq int
	svc.newID = func() string {
		seq++
		return fmt.Sprintf("id-%d", seq)
	}

	return &fixture{svc: svc, repo: repo, cache: c, pub: pub, clock: clk}
}

func newEvent(t *testing.T, typ model.EventType, vid, rid string, payload any) *model.Event {
	t.Helper()
	ev, err := model.NewEvent(typ, vid, rid, payload)
	require.NoError(t, err)
	return ev
}

func requestEvent(t *testing.T, vid, rid string, family model.Family, correlationID string) *model.Event {
	ev := newEvent(t, model.EventRoRequest, vid, rid, model.RequestPayload{
		Family:  family,
		Origin:  "mobile",
		Command: "open",
	})
	ev.CorrelationID = correlationID
	ev.User.UserID = "user-1"
	return ev
}

func responseEvent(t *testing.T, vid, rid, messageID, correlationID string, code model.ResponseCode) *model.Event {
	ev := newEvent(t, model.EventRoResponse, vid, rid, model.ResponsePayload{
		ResponseCode: code,
		RoRequestID:  rid,
	})
	ev.MessageID = messageID
	ev.CorrelationID = correlationID
	return ev
}

func failureEvent(t *testing.T, vid, rid, errorCode string) *model.Event {
	return newEvent(t, model.EventDeviceMessageFailure, vid, rid, model.FailurePayload{
		ErrorCode: errorCode,
		FailedEvent: &model.Event{
			Type:      model.EventRoRequest,
			VehicleID: vid,
			RequestID: rid,
			MessageID: "device-msg-1",
		},
	})
}

func ackEvent(t *testing.T, vid, scheduleID string, op model.ScheduleOp, valid bool, errorCode string, original *model.Event) *model.Event {
	return newEvent(t, model.EventScheduleOpStatus, vid, original.RequestID, model.ScheduleAckPayload{
		ScheduleID:    scheduleID,
		Status:        op,
		Valid:         valid,
		ErrorCode:     errorCode,
		OriginalEvent: original,
	})
}

func firedEvent(t *testing.T, vid, scheduleID string, blob []byte) *model.Event {
	return newEvent(t, model.EventScheduleNotification, vid, "", model.ScheduleFiredPayload{
		ScheduleID: scheduleID,
		Payload:    blob,
	})
}

func decode[T any](t *testing.T, ev *model.Event) T {
	t.Helper()
	var v T
	require.NoError(t, ev.Decode(&v))
	return v
}

func (f *fixture) route(t *testing.T, ev *model.Event) {
	t.Helper()
	require.NoError(t, f.svc.Route(context.Background(), ev))
}

func (f *fixture) request(t *testing.T, vid, rid string) *model.Request {
	t.Helper()
	req, err := f.repo.Requests().Get(context.Background(), vid, rid)
	require.NoError(t, err)
	return req
}

var errBrokerDown = errors.New("broker down")
