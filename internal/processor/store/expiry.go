package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/autopeer-io/remoteops/internal/processor/core/model"
)

type expiryQueue struct {
	r *Repository
}

func (q *expiryQueue) Enqueue(ctx context.Context, e *model.ExpiryEntry) error {
	db, cancel := q.r.session(ctx)
	defer cancel()

	enqueued := e.EnqueuedAt
	if enqueued.IsZero() {
		enqueued = time.Now()
	}
	rec := &expiryRecord{
		VehicleID:     e.VehicleID,
		RequestID:     e.RequestID,
		CorrelationID: e.CorrelationID,
		MessageID:     e.MessageID,
		Cutoff:        e.Cutoff.UTC(),
		EnqueuedAt:    enqueued.UTC(),
	}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(rec).Error; err != nil {
		return translate(err, "enqueue expiry entry")
	}
	e.ID = rec.ID
	return nil
}

func (q *expiryQueue) Peek(ctx context.Context, vehicleID, requestID, correlationID string) (*model.ExpiryEntry, error) {
	db, cancel := q.r.session(ctx)
	defer cancel()

	tx := db.Where("vehicle_id = ? AND request_id = ?", vehicleID, requestID)
	if correlationID != "" {
		tx = tx.Where("correlation_id = ?", correlationID)
	}

	var rec expiryRecord
	err := tx.Order("id ASC").First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, translate(err, "peek expiry entry")
	}
	return rec.toModel(), nil
}

func (q *expiryQueue) Ack(ctx context.Context, e *model.ExpiryEntry) error {
	if e == nil {
		return nil
	}

	db, cancel := q.r.session(ctx)
	defer cancel()

	tx := db.Where("vehicle_id = ? AND request_id = ? AND correlation_id = ?", e.VehicleID, e.RequestID, e.CorrelationID)
	if e.ID != 0 {
		tx = db.Where("id = ?", e.ID)
	}
	return translate(tx.Delete(&expiryRecord{}).Error, "ack expiry entry")
}

func (q *expiryQueue) Purge(ctx context.Context, before time.Time) (int64, error) {
	db, cancel := q.r.session(ctx)
	defer cancel()

	res := db.Where("cutoff < ?", before.UTC()).Delete(&expiryRecord{})
	if res.Error != nil {
		return 0, translate(res.Error, "purge expiry entries")
	}
	return res.RowsAffected, nil
}
