package store

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/autopeer-io/remoteops/internal/processor/core"
	"github.com/autopeer-io/remoteops/internal/processor/core/model"
)

type requestStore struct {
	r *Repository
}

func (s *requestStore) Create(ctx context.Context, req *model.Request) (bool, error) {
	db, cancel := s.r.session(ctx)
	defer cancel()

	rec := toRequestRecord(req)
	res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(rec)
	if res.Error != nil {
		return false, translate(res.Error, "create request")
	}
	return res.RowsAffected > 0, nil
}

func (s *requestStore) Get(ctx context.Context, vehicleID, requestID string) (*model.Request, error) {
	db, cancel := s.r.session(ctx)
	defer cancel()

	var rec requestRecord
	if err := db.Where("vehicle_id = ? AND request_id = ?", vehicleID, requestID).First(&rec).Error; err != nil {
		return nil, translate(err, "get request")
	}

	var rows []responseRecord
	if err := db.Where("vehicle_id = ? AND request_id = ?", vehicleID, requestID).
		Order("id ASC").Find(&rows).Error; err != nil {
		return nil, translate(err, "list responses")
	}

	req := rec.toModel()
	req.Responses = make([]model.Response, 0, len(rows))
	for i := range rows {
		req.Responses = append(req.Responses, rows[i].toModel())
	}
	return req, nil
}

func (s *requestStore) AppendResponse(ctx context.Context, resp *model.Response) (bool, error) {
	db, cancel := s.r.session(ctx)
	defer cancel()

	res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(toResponseRecord(resp))
	if res.Error != nil {
		return false, translate(res.Error, "append response")
	}
	return res.RowsAffected > 0, nil
}

func (s *requestStore) CompareAndSetStatus(ctx context.Context, vehicleID, requestID string,
	from model.Status, fromCorrelation string, to model.Status, correlationID string,
) (bool, error) {
	db, cancel := s.r.session(ctx)
	defer cancel()

	res := db.Model(&requestRecord{}).
		Where("vehicle_id = ? AND request_id = ? AND status = ? AND status_correlation_id = ?",
			vehicleID, requestID, string(from), fromCorrelation).
		Updates(map[string]any{
			"status":                string(to),
			"status_correlation_id": correlationID,
			"updated_at":            time.Now().UTC(),
		})
	if res.Error != nil {
		return false, translate(res.Error, "update request status")
	}
	return res.RowsAffected > 0, nil
}

func (s *requestStore) SetScheduleID(ctx context.Context, vehicleID, requestID, scheduleID string) error {
	db, cancel := s.r.session(ctx)
	defer cancel()

	res := s.scoped(db, vehicleID, requestID).Updates(map[string]any{
		"schedule_id": scheduleID,
		"updated_at":  time.Now().UTC(),
	})
	if res.Error != nil {
		return translate(res.Error, "set schedule id")
	}
	if res.RowsAffected == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (s *requestStore) ClearScheduleID(ctx context.Context, vehicleID, requestID, scheduleID string) error {
	db, cancel := s.r.session(ctx)
	defer cancel()

	err := s.scoped(db, vehicleID, requestID).
		Where("schedule_id = ?", scheduleID).
		Updates(map[string]any{
			"schedule_id": "",
			"updated_at":  time.Now().UTC(),
		}).Error
	return translate(err, "clear schedule id")
}

func (s *requestStore) scoped(db *gorm.DB, vehicleID, requestID string) *gorm.DB {
	return db.Model(&requestRecord{}).Where("vehicle_id = ? AND request_id = ?", vehicleID, requestID)
}
