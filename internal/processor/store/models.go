package store

import (
	"time"

	"gorm.io/datatypes"

	"github.com/autopeer-io/remoteops/internal/processor/core/model"
)

// requestRecord is the row of one request. (vehicle_id, request_id) is unique.
type requestRecord struct {
	ID                  uint64 `gorm:"primaryKey;autoIncrement"`
	VehicleID           string `gorm:"size:64;not null;uniqueIndex:idx_ro_requests_key,priority:1"`
	RequestID           string `gorm:"size:128;not null;uniqueIndex:idx_ro_requests_key,priority:2"`
	Family              string `gorm:"size:32"`
	MessageID           string `gorm:"size:64"`
	CorrelationID       string `gorm:"size:128"`
	BizTransactionID    string `gorm:"size:128"`
	Origin              string `gorm:"size:64"`
	UserID              string `gorm:"size:128"`
	ScheduleID          string `gorm:"size:128"`
	DeliveryCutoff      time.Time
	Status              string `gorm:"size:32;not null;default:'';index"`
	StatusCorrelationID string `gorm:"size:128;not null;default:''"`
	Payload             datatypes.JSON
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func (requestRecord) TableName() string { return "ro_requests" }

// responseRecord is one appended response. Rows are never updated; the auto
// increment id gives the arrival order. (vehicle_id, request_id, message_id) is unique.
type responseRecord struct {
	ID              uint64  `gorm:"primaryKey;autoIncrement"`
	VehicleID       string  `gorm:"size:64;not null;uniqueIndex:idx_ro_responses_dedupe,priority:1"`
	RequestID       string  `gorm:"size:128;not null;uniqueIndex:idx_ro_responses_dedupe,priority:2"`
	MessageID       string  `gorm:"size:192;not null;uniqueIndex:idx_ro_responses_dedupe,priority:3"`
	CorrelationID   string  `gorm:"size:128"`
	Code            string  `gorm:"size:64;not null"`
	Family          string  `gorm:"size:32"`
	Origin          *string `gorm:"size:64"`
	UserID          *string `gorm:"size:128"`
	Qualifier       string  `gorm:"size:128"`
	Orphan          bool    `gorm:"not null;default:false;index"`
	Synthetic       bool    `gorm:"not null;default:false"`
	CustomExtension datatypes.JSON
	ReceivedAt      time.Time
}

func (responseRecord) TableName() string { return "ro_responses" }

// scheduleRecord is one schedule known to the scheduler. (vehicle_id, schedule_id) is unique.
type scheduleRecord struct {
	ID              uint64 `gorm:"primaryKey;autoIncrement"`
	VehicleID       string `gorm:"size:64;not null;uniqueIndex:idx_ro_schedules_key,priority:1"`
	ScheduleID      string `gorm:"size:128;not null;uniqueIndex:idx_ro_schedules_key,priority:2"`
	RequestID       string `gorm:"size:128;index"`
	RecurrenceType  string `gorm:"size:16"`
	RecurrenceExpr  string `gorm:"size:128"`
	NextExecutionTs time.Time
	Status          string    `gorm:"size:16;not null;index"`
	CreatedOn       time.Time `gorm:"autoCreateTime"`
	UpdatedOn       time.Time `gorm:"autoUpdateTime"`
}

func (scheduleRecord) TableName() string { return "ro_schedules" }

// expiryRecord is one pending delivery attempt. (vehicle_id, request_id, correlation_id) is unique.
type expiryRecord struct {
	ID            uint64 `gorm:"primaryKey;autoIncrement"`
	VehicleID     string `gorm:"size:64;not null;uniqueIndex:idx_ro_expiry_key,priority:1"`
	RequestID     string `gorm:"size:128;not null;uniqueIndex:idx_ro_expiry_key,priority:2"`
	CorrelationID string `gorm:"size:128;not null;uniqueIndex:idx_ro_expiry_key,priority:3"`
	MessageID     string `gorm:"size:64"`
	Cutoff        time.Time `gorm:"index"`
	EnqueuedAt    time.Time
}

func (expiryRecord) TableName() string { return "ro_expiry_queue" }

// Models lists every table managed by this package.
func Models() []any {
	return []any{&requestRecord{}, &responseRecord{}, &scheduleRecord{}, &expiryRecord{}}
}

func toRequestRecord(r *model.Request) *requestRecord {
	return &requestRecord{
		VehicleID:           r.VehicleID,
		RequestID:           r.RequestID,
		Family:              string(r.Family),
		MessageID:           r.MessageID,
		CorrelationID:       r.CorrelationID,
		BizTransactionID:    r.BizTransactionID,
		Origin:              r.Origin,
		UserID:              r.UserID,
		ScheduleID:          r.ScheduleID,
		DeliveryCutoff:      r.DeliveryCutoff.UTC(),
		Status:              string(r.Status),
		StatusCorrelationID: r.StatusCorrelationID,
		Payload:             datatypes.JSON(r.Payload),
	}
}

func (rec *requestRecord) toModel() *model.Request {
	return &model.Request{
		RequestID:           rec.RequestID,
		VehicleID:           rec.VehicleID,
		Family:              model.Family(rec.Family),
		MessageID:           rec.MessageID,
		CorrelationID:       rec.CorrelationID,
		BizTransactionID:    rec.BizTransactionID,
		Origin:              rec.Origin,
		UserID:              rec.UserID,
		ScheduleID:          rec.ScheduleID,
		DeliveryCutoff:      rec.DeliveryCutoff,
		Status:              model.Status(rec.Status),
		StatusCorrelationID: rec.StatusCorrelationID,
		Payload:             []byte(rec.Payload),
		CreatedAt:           rec.CreatedAt,
		UpdatedAt:           rec.UpdatedAt,
	}
}

func toResponseRecord(r *model.Response) *responseRecord {
	return &responseRecord{
		VehicleID:       r.VehicleID,
		RequestID:       r.RequestID,
		MessageID:       r.MessageID,
		CorrelationID:   r.CorrelationID,
		Code:            string(r.Code),
		Family:          string(r.Family),
		Origin:          r.Origin,
		UserID:          r.UserID,
		Qualifier:       r.Qualifier,
		Orphan:          r.Orphan,
		Synthetic:       r.Synthetic,
		CustomExtension: datatypes.JSON(r.CustomExtension),
		ReceivedAt:      r.ReceivedAt.UTC(),
	}
}

func (rec *responseRecord) toModel() model.Response {
	return model.Response{
		MessageID:       rec.MessageID,
		RequestID:       rec.RequestID,
		VehicleID:       rec.VehicleID,
		CorrelationID:   rec.CorrelationID,
		Code:            model.ResponseCode(rec.Code),
		Family:          model.Family(rec.Family),
		Origin:          rec.Origin,
		UserID:          rec.UserID,
		Qualifier:       rec.Qualifier,
		Orphan:          rec.Orphan,
		Synthetic:       rec.Synthetic,
		CustomExtension: []byte(rec.CustomExtension),
		ReceivedAt:      rec.ReceivedAt,
	}
}

func toScheduleRecord(s *model.Schedule) *scheduleRecord {
	return &scheduleRecord{
		VehicleID:       s.VehicleID,
		ScheduleID:      s.ScheduleID,
		RequestID:       s.RequestID,
		RecurrenceType:  string(s.Recurrence.Type),
		RecurrenceExpr:  s.Recurrence.Expression,
		NextExecutionTs: s.NextExecutionTs.UTC(),
		Status:          string(s.Status),
	}
}

func (rec *scheduleRecord) toModel() *model.Schedule {
	return &model.Schedule{
		ScheduleID: rec.ScheduleID,
		VehicleID:  rec.VehicleID,
		RequestID:  rec.RequestID,
		Recurrence: model.Recurrence{
			Type:       model.RecurrenceType(rec.RecurrenceType),
			Expression: rec.RecurrenceExpr,
		},
		NextExecutionTs: rec.NextExecutionTs,
		Status:          model.ScheduleStatus(rec.Status),
		CreatedOn:       rec.CreatedOn,
		UpdatedOn:       rec.UpdatedOn,
	}
}

func (rec *expiryRecord) toModel() *model.ExpiryEntry {
	return &model.ExpiryEntry{
		ID:            rec.ID,
		VehicleID:     rec.VehicleID,
		RequestID:     rec.RequestID,
		CorrelationID: rec.CorrelationID,
		MessageID:     rec.MessageID,
		Cutoff:        rec.Cutoff,
		EnqueuedAt:    rec.EnqueuedAt,
	}
}
