package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/remoteops/internal/processor/core/model"
)

// armed routes a request and a recoverable failure and returns the CREATE_SCHEDULE command.
func armed(t *testing.T, f *fixture, family model.Family) *model.Event {
	t.Helper()
	f.route(t, requestEvent(t, "v1", "r1", family, "c1"))
	if family != model.FamilyRCPD {
		f.route(t, failureEvent(t, "v1", "r1", "DEVICE_STATUS_INACTIVE"))
	}
	creates := f.pub.schedulesOf(model.EventCreateSchedule)
	require.Len(t, creates, 1)
	return creates[0]
}

func TestCreateAckRecordsSchedule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	create := armed(t, f, model.FamilyDoors)

	f.route(t, ackEvent(t, "v1", "s1", model.ScheduleOpCreate, true, "", create))

	req := f.request(t, "v1", "r1")
	assert.Equal(t, "s1", req.ScheduleID)

	rc, ok, err := f.cache.Correlation().Get(ctx, "v1", "r1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "s1", rc.ScheduleID)

	sched, err := f.repo.Schedules().Get(ctx, "v1", "s1")
	require.NoError(t, err)
	assert.Equal(t, model.ScheduleActive, sched.Status)
	assert.Equal(t, "r1", sched.RequestID)

	// A final response deletes the armed schedule.
	f.route(t, responseEvent(t, "v1", "r1", "m1", "c1", model.CodeSuccess))
	deletes := f.pub.schedulesOf(model.EventDeleteSchedule)
	require.Len(t, deletes, 1)
	assert.Equal(t, "s1", decode[model.DeleteSchedulePayload](t, deletes[0]).ScheduleID)
	assert.Equal(t, model.StatusProcessedSuccess, f.request(t, "v1", "r1").Status)
}

func TestCreateAckForFinishedRequestDeletesSchedule(t *testing.T) {
	f := newFixture(t)
	create := armed(t, f, model.FamilyDoors)
	f.route(t, responseEvent(t, "v1", "r1", "m1", "c1", model.CodeSuccess))

	f.route(t, ackEvent(t, "v1", "s1", model.ScheduleOpCreate, true, "", create))

	deletes := f.pub.schedulesOf(model.EventDeleteSchedule)
	require.Len(t, deletes, 1)
	assert.Equal(t, "s1", decode[model.DeleteSchedulePayload](t, deletes[0]).ScheduleID)
	assert.Empty(t, f.request(t, "v1", "r1").ScheduleID)
}

func TestRejectedAckIsNotApplied(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	create := armed(t, f, model.FamilyDoors)

	f.route(t, ackEvent(t, "v1", "s1", model.ScheduleOpCreate, false, "QUOTA_EXCEEDED", create))

	assert.Empty(t, f.request(t, "v1", "r1").ScheduleID)
	_, err := f.repo.Schedules().Get(ctx, "v1", "s1")
	assert.Error(t, err)
}

func TestDeleteAck(t *testing.T) {
	tests := []struct {
		name      string
		valid     bool
		errorCode string
		applied   bool
	}{
		{name: "valid", valid: true, applied: true},
		{name: "already expired", valid: false, errorCode: model.ScheduleErrorExpired, applied: true},
		{name: "rejected", valid: false, errorCode: "NOT_FOUND", applied: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			create := armed(t, f, model.FamilyDoors)
			f.route(t, ackEvent(t, "v1", "s1", model.ScheduleOpCreate, true, "", create))

			f.route(t, ackEvent(t, "v1", "s1", model.ScheduleOpDelete, tt.valid, tt.errorCode, create))

			sched, err := f.repo.Schedules().Get(ctx, "v1", "s1")
			require.NoError(t, err)
			req := f.request(t, "v1", "r1")
			if tt.applied {
				assert.Equal(t, model.ScheduleDeleted, sched.Status)
				assert.Empty(t, req.ScheduleID)
			} else {
				assert.Equal(t, model.ScheduleActive, sched.Status)
				assert.Equal(t, "s1", req.ScheduleID)
			}
		})
	}
}

func TestScheduleFiredTimesOutRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	create := armed(t, f, model.FamilyDoors)
	f.route(t, ackEvent(t, "v1", "s1", model.ScheduleOpCreate, true, "", create))
	blob := decode[model.CreateSchedulePayload](t, create).NotificationPayload

	f.route(t, firedEvent(t, "v1", "s1", blob))

	req := f.request(t, "v1", "r1")
	assert.Equal(t, model.StatusProcessedFailed, req.Status)
	assert.Empty(t, req.ScheduleID)
	require.Len(t, req.Responses, 1)
	assert.Equal(t, model.CodeTimeOut, req.Responses[0].Code)
	assert.True(t, req.Responses[0].Synthetic)

	require.Len(t, f.pub.notifications, 1)
	assert.Equal(t, "RO_TIMED_OUT", decode[model.NotificationPayload](t, f.pub.notifications[0].ev).NotificationID)

	deletes := f.pub.schedulesOf(model.EventDeleteSchedule)
	require.Len(t, deletes, 1)

	sched, err := f.repo.Schedules().Get(ctx, "v1", "s1")
	require.NoError(t, err)
	assert.Equal(t, model.ScheduleExpired, sched.Status)

	// A redelivered fire does not notify twice.
	f.route(t, firedEvent(t, "v1", "s1", blob))
	assert.Len(t, f.pub.notifications, 1)
	assert.Len(t, f.request(t, "v1", "r1").Responses, 1)
}

func TestStaleScheduleFireIsIgnored(t *testing.T) {
	f := newFixture(t)
	f.route(t, requestEvent(t, "v1", "r1", model.FamilyDoors, "c1"))
	f.route(t, responseEvent(t, "v1", "r1", "m1", "c1", model.CodeSuccessContinue))

	blob, err := (&model.ScheduleContext{RequestID: "r1", VehicleID: "v1"}).Encode()
	require.NoError(t, err)
	f.route(t, firedEvent(t, "v1", "s1", blob))

	req := f.request(t, "v1", "r1")
	assert.Equal(t, model.StatusOpen, req.Status)
	assert.Len(t, req.Responses, 1)
	assert.Empty(t, f.pub.notifications)
	assert.Empty(t, f.pub.schedules)
}

func TestMalformedScheduleFireIsDropped(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.svc.Route(context.Background(), firedEvent(t, "v1", "s1", []byte("not a schedule context"))))
	assert.Empty(t, f.pub.notifications)
}

func TestRCPDLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	create := armed(t, f, model.FamilyRCPD)

	p := decode[model.CreateSchedulePayload](t, create)
	assert.Equal(t, f.svc.cfg.RCPDTimeout.Milliseconds(), p.DelayMs)
	assert.Equal(t, model.StatusPending, f.request(t, "v1", "r1").Status)

	st, ok, err := f.cache.Status().GetRCPDStatus(ctx, "user-1", "v1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, model.RCPDPending, st)

	f.route(t, ackEvent(t, "v1", "s1", model.ScheduleOpCreate, true, "", create))
	f.route(t, responseEvent(t, "v1", "r1", "m1", "c1", model.CodeSuccess))

	st, _, err = f.cache.Status().GetRCPDStatus(ctx, "user-1", "v1")
	require.NoError(t, err)
	assert.Equal(t, model.RCPDActive, st)
	assert.Len(t, f.pub.schedulesOf(model.EventDeleteSchedule), 1)
}

func TestRCPDTimeoutUpdatesStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	create := armed(t, f, model.FamilyRCPD)

	f.route(t, firedEvent(t, "v1", "s1", decode[model.CreateSchedulePayload](t, create).NotificationPayload))

	st, _, err := f.cache.Status().GetRCPDStatus(ctx, "user-1", "v1")
	require.NoError(t, err)
	assert.Equal(t, model.RCPDTimedOut, st)
}
