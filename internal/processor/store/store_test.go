package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"k8s.io/utils/ptr"

	"github.com/autopeer-io/remoteops/internal/processor/core"
	"github.com/autopeer-io/remoteops/internal/processor/core/model"
)

func newTestRepository(t *testing.T) *Repository {
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

	require.NoError(t, Migrate(db))
	return New(db, time.Second)
}

func seedRequest(t *testing.T, repo *Repository, vid, rid string) *model.Request {
	t.Helper()
	req := &model.Request{
		RequestID:      rid,
		VehicleID:      vid,
		Family:         model.FamilyDoors,
		MessageID:      "msg-" + rid,
		CorrelationID:  "corr-" + rid,
		Origin:         "mobile",
		UserID:         "user-1",
		DeliveryCutoff: time.Date(2026, 1, 1, 0, 1, 0, 0, time.UTC),
		Payload:        []byte(`{"family":"DOORS"}`),
	}
	created, err := repo.Requests().Create(context.Background(), req)
	require.NoError(t, err)
	require.True(t, created)
	return req
}

func TestRequestCreateIsIdempotent(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	seedRequest(t, repo, "v1", "r1")

	created, err := repo.Requests().Create(ctx, &model.Request{VehicleID: "v1", RequestID: "r1", MessageID: "other"})
	require.NoError(t, err)
	assert.False(t, created)

	got, err := repo.Requests().Get(ctx, "v1", "r1")
	require.NoError(t, err)
	assert.Equal(t, "msg-r1", got.MessageID)
	assert.Equal(t, model.StatusOpen, got.Status)
	assert.Equal(t, model.FamilyDoors, got.Family)
	assert.JSONEq(t, `{"family":"DOORS"}`, string(got.Payload))
	assert.Empty(t, got.Responses)
}

func TestRequestGetNotFound(t *testing.T) {
	repo := newTestRepository(t)

	_, err := repo.Requests().Get(context.Background(), "v1", "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestAppendResponseDedupesByMessageID(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	seedRequest(t, repo, "v1", "r1")

	resp := &model.Response{
		MessageID: "m1", RequestID: "r1", VehicleID: "v1", CorrelationID: "c1",
		Code: model.CodeSuccess, Origin: ptr.To("mobile"), UserID: ptr.To("user-1"),
		ReceivedAt: time.Now(),
	}
	appended, err := repo.Requests().AppendResponse(ctx, resp)
	require.NoError(t, err)
	assert.True(t, appended)

	appended, err = repo.Requests().AppendResponse(ctx, resp)
	require.NoError(t, err)
	assert.False(t, appended)

	got, err := repo.Requests().Get(ctx, "v1", "r1")
	require.NoError(t, err)
	require.Len(t, got.Responses, 1)
	assert.Equal(t, "mobile", *got.Responses[0].Origin)
}

func TestConcurrentAppendsAreAllKept(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	seedRequest(t, repo, "v1", "r1")

	const n = 20
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := repo.Requests().AppendResponse(ctx, &model.Response{
				MessageID:  fmt.Sprintf("m%d", i),
				RequestID:  "r1",
				VehicleID:  "v1",
				Code:       model.CodeSuccessContinue,
				ReceivedAt: time.Now(),
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := repo.Requests().Get(ctx, "v1", "r1")
	require.NoError(t, err)
	assert.Len(t, got.Responses, n)
}

func TestOrphanResponseHasNoOriginOrUser(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	appended, err := repo.Requests().AppendResponse(ctx, &model.Response{
		MessageID: "m1", RequestID: "ghost", VehicleID: "v1",
		Code: model.CodeSuccess, Orphan: true, ReceivedAt: time.Now(),
	})
	require.NoError(t, err)
	assert.True(t, appended)

	var rec responseRecord
	require.NoError(t, repo.db.Where("request_id = ?", "ghost").First(&rec).Error)
	assert.True(t, rec.Orphan)
	assert.Nil(t, rec.Origin)
	assert.Nil(t, rec.UserID)
}

func TestCompareAndSetStatus(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	seedRequest(t, repo, "v1", "r1")
	reqs := repo.Requests()

	ok, err := reqs.CompareAndSetStatus(ctx, "v1", "r1", model.StatusOpen, "", model.StatusProcessedSuccess, "c1")
	require.NoError(t, err)
	assert.True(t, ok)

	// A stale writer still expecting the open status loses.
	ok, err = reqs.CompareAndSetStatus(ctx, "v1", "r1", model.StatusOpen, "", model.StatusProcessedFailed, "c2")
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := reqs.Get(ctx, "v1", "r1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusProcessedSuccess, got.Status)
	assert.Equal(t, "c1", got.StatusCorrelationID)
}

func TestScheduleIDLifecycle(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	seedRequest(t, repo, "v1", "r1")
	reqs := repo.Requests()

	require.NoError(t, reqs.SetScheduleID(ctx, "v1", "r1", "s1"))
	assert.ErrorIs(t, reqs.SetScheduleID(ctx, "v1", "missing", "s1"), core.ErrNotFound)

	// Clearing a schedule that is no longer armed keeps the current one.
	require.NoError(t, reqs.ClearScheduleID(ctx, "v1", "r1", "s0"))
	got, err := reqs.Get(ctx, "v1", "r1")
	require.NoError(t, err)
	assert.Equal(t, "s1", got.ScheduleID)
	assert.True(t, got.ScheduleArmed())

	require.NoError(t, reqs.ClearScheduleID(ctx, "v1", "r1", "s1"))
	got, err = reqs.Get(ctx, "v1", "r1")
	require.NoError(t, err)
	assert.Empty(t, got.ScheduleID)
}

func TestScheduleStore(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	schedules := repo.Schedules()

	next := time.Date(2026, 1, 1, 0, 5, 0, 0, time.UTC)
	require.NoError(t, schedules.Save(ctx, &model.Schedule{
		ScheduleID: "s1", VehicleID: "v1", RequestID: "r1",
		Recurrence:      model.Recurrence{Type: model.RecurrenceNone},
		NextExecutionTs: next,
		Status:          model.ScheduleActive,
	}))

	got, err := schedules.Get(ctx, "v1", "s1")
	require.NoError(t, err)
	assert.Equal(t, "r1", got.RequestID)
	assert.Equal(t, model.ScheduleActive, got.Status)
	assert.True(t, next.Equal(got.NextExecutionTs))

	ok, err := schedules.MarkStatus(ctx, "v1", "s1", model.ScheduleDeleted, model.ScheduleActive)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = schedules.MarkStatus(ctx, "v1", "s1", model.ScheduleDeleted, model.ScheduleActive)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = schedules.Get(ctx, "v1", "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestExpiryQueue(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	q := repo.Expiry()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	first := &model.ExpiryEntry{VehicleID: "v1", RequestID: "r1", CorrelationID: "c1", Cutoff: base.Add(time.Minute), EnqueuedAt: base}
	second := &model.ExpiryEntry{VehicleID: "v1", RequestID: "r1", CorrelationID: "c2", Cutoff: base.Add(2 * time.Minute), EnqueuedAt: base}
	require.NoError(t, q.Enqueue(ctx, first))
	require.NoError(t, q.Enqueue(ctx, second))
	require.NoError(t, q.Enqueue(ctx, &model.ExpiryEntry{VehicleID: "v1", RequestID: "r1", CorrelationID: "c1", Cutoff: base}))

	got, err := q.Peek(ctx, "v1", "r1", "c2")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "c2", got.CorrelationID)

	got, err = q.Peek(ctx, "v1", "r1", "")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "c1", got.CorrelationID)
	assert.True(t, got.Cutoff.Equal(base.Add(time.Minute)))

	require.NoError(t, q.Ack(ctx, got))
	got, err = q.Peek(ctx, "v1", "r1", "c1")
	require.NoError(t, err)
	assert.Nil(t, got)

	purged, err := q.Purge(ctx, base.Add(3*time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 1, purged)

	got, err = q.Peek(ctx, "v1", "r1", "")
	require.NoError(t, err)
	assert.Nil(t, got)
}
