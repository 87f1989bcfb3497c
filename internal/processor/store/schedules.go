package store

import (
	"context"
	"time"

	"gorm.io/gorm/clause"

	"github.com/autopeer-io/remoteops/internal/processor/core/model"
)

type scheduleStore struct {
	r *Repository
}

func (s *scheduleStore) Save(ctx context.Context, sched *model.Schedule) error {
	db, cancel := s.r.session(ctx)
	defer cancel()

	err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "vehicle_id"}, {Name: "schedule_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"request_id", "recurrence_type", "recurrence_expr", "next_execution_ts", "status", "updated_on",
		}),
	}).Create(toScheduleRecord(sched)).Error
	return translate(err, "save schedule")
}

func (s *scheduleStore) Get(ctx context.Context, vehicleID, scheduleID string) (*model.Schedule, error) {
	db, cancel := s.r.session(ctx)
	defer cancel()

	var rec scheduleRecord
	if err := db.Where("vehicle_id = ? AND schedule_id = ?", vehicleID, scheduleID).First(&rec).Error; err != nil {
		return nil, translate(err, "get schedule")
	}
	return rec.toModel(), nil
}

func (s *scheduleStore) MarkStatus(ctx context.Context, vehicleID, scheduleID string,
	status model.ScheduleStatus, from ...model.ScheduleStatus,
) (bool, error) {
	db, cancel := s.r.session(ctx)
	defer cancel()

	q := db.Model(&scheduleRecord{}).Where("vehicle_id = ? AND schedule_id = ?", vehicleID, scheduleID)
	if len(from) > 0 {
		states := make([]string, 0, len(from))
		for _, st := range from {
			states = append(states, string(st))
		}
		q = q.Where("status IN ?", states)
	}

	res := q.Updates(map[string]any{
		"status":     string(status),
		"updated_on": time.Now().UTC(),
	})
	if res.Error != nil {
		return false, translate(res.Error, "mark schedule")
	}
	return res.RowsAffected > 0, nil
}
