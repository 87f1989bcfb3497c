package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"k8s.io/utils/ptr"

	"github.com/autopeer-io/remoteops/internal/processor/core"
	"github.com/autopeer-io/remoteops/internal/processor/core/model"
	"github.com/autopeer-io/remoteops/pkg/log"
)

// timeoutMessagePrefix marks the synthetic response appended when a schedule fires.
const timeoutMessagePrefix = "timeout:"

// CreateSchedule asks the external scheduler to call back after delay, or on
// the recurrence. The callback carries the encoded schedule context of req.
func (s *Service) CreateSchedule(ctx context.Context, req *model.Request, delay time.Duration, recurrence model.Recurrence) error {
	now := s.now()
	next, err := recurrence.Next(now, delay)
	if err != nil {
		return core.Malformed("invalid schedule recurrence", err)
	}

	sc := &model.ScheduleContext{
		RequestID:        req.RequestID,
		BizTransactionID: req.BizTransactionID,
		VehicleID:        req.VehicleID,
		EventID:          req.MessageID,
		UserID:           req.UserID,
		Origin:           req.Origin,
		Family:           req.Family,
	}
	blob, err := sc.Encode()
	if err != nil {
		return fmt.Errorf("encode schedule context: %w", err)
	}

	ev, err := model.NewEvent(model.EventCreateSchedule, req.VehicleID, req.RequestID, model.CreateSchedulePayload{
		RequestID:           req.RequestID,
		DelayMs:             delay.Milliseconds(),
		Recurrence:          recurrence,
		NextExecutionTs:     next.UnixMilli(),
		NotificationPayload: blob,
	})
	if err != nil {
		return err
	}
	ev.MessageID = s.newID()
	ev.Timestamp = now.UnixMilli()
	ev.BizTransactionID = req.BizTransactionID
	ev.User.UserID = req.UserID
	ev.Origin = req.Origin

	log.FromContext(ctx).Info("Creating schedule", "delay", delay, "nextExecution", next)
	return s.publisher.PublishSchedule(ctx, ev)
}

// DeleteSchedule asks the external scheduler to drop scheduleID.
func (s *Service) DeleteSchedule(ctx context.Context, vehicleID, requestID, scheduleID string) error {
	ev, err := model.NewEvent(model.EventDeleteSchedule, vehicleID, requestID, model.DeleteSchedulePayload{
		ScheduleID: scheduleID,
		RequestID:  requestID,
	})
	if err != nil {
		return err
	}
	ev.MessageID = s.newID()
	ev.Timestamp = s.now().UnixMilli()

	log.FromContext(ctx).Info("Deleting schedule", "scheduleID", scheduleID)
	return s.publisher.PublishSchedule(ctx, ev)
}

// armSchedule creates a one-shot schedule and parks the request in PENDING,
// which marks the schedule as armed until the scheduler acknowledges it.
func (s *Service) armSchedule(ctx context.Context, req *model.Request, delay time.Duration) error {
	if err := s.CreateSchedule(ctx, req, delay, model.Recurrence{Type: model.RecurrenceNone}); err != nil {
		return err
	}
	_, _, err := s.transition(ctx, req.VehicleID, req.RequestID, model.EventArmRetry, req.StatusCorrelationID)
	return err
}

// onScheduleAck applies the scheduler's acknowledgement of a create or delete.
func (s *Service) onScheduleAck(ctx context.Context, ev *model.Event) error {
	var p model.ScheduleAckPayload
	if err := ev.Decode(&p); err != nil {
		return core.Malformed("undecodable schedule ack", err)
	}
	if p.ScheduleID == "" {
		return core.Malformed("schedule ack without schedule id", nil)
	}

	requestID := ev.RequestID
	if p.OriginalEvent != nil && p.OriginalEvent.RequestID != "" {
		requestID = p.OriginalEvent.RequestID
	}
	ctx = log.IntoContext(ctx, "scheduleID", p.ScheduleID, "requestID", requestID, "op", p.Status)

	switch p.Status {
	case model.ScheduleOpCreate:
		return s.onCreateAck(ctx, ev.VehicleID, requestID, &p)
	case model.ScheduleOpDelete:
		return s.onDeleteAck(ctx, ev.VehicleID, requestID, &p)
	default:
		return core.Malformed(fmt.Sprintf("unknown schedule op %q", p.Status), nil)
	}
}

func (s *Service) onCreateAck(ctx context.Context, vehicleID, requestID string, p *model.ScheduleAckPayload) error {
	logger := log.FromContext(ctx)
	if !p.Valid {
		logger.Error(core.AckRejected(p.ScheduleID, p.ErrorCode), "Schedule creation rejected")
		return nil
	}
	if requestID == "" {
		return core.Malformed("create ack without request id", nil)
	}

	req, err := s.repo.Requests().Get(ctx, vehicleID, requestID)
	if errors.Is(err, core.ErrNotFound) {
		logger.Warn("Create ack for unknown request")
		return nil
	}
	if err != nil {
		return err
	}

	sched := &model.Schedule{
		ScheduleID: p.ScheduleID,
		VehicleID:  vehicleID,
		RequestID:  requestID,
		Recurrence: model.Recurrence{Type: model.RecurrenceNone},
		Status:     model.ScheduleActive,
	}
	var created model.CreateSchedulePayload
	if p.OriginalEvent != nil && p.OriginalEvent.Decode(&created) == nil {
		sched.Recurrence = created.Recurrence
		sched.NextExecutionTs = time.UnixMilli(created.NextExecutionTs)
	}
	if err := s.repo.Schedules().Save(ctx, sched); err != nil {
		return err
	}

	if req.Status.IsTerminal() {
		logger.Info("Request finished before its schedule was acknowledged")
		return s.DeleteSchedule(ctx, vehicleID, requestID, p.ScheduleID)
	}

	if err := s.repo.Requests().SetScheduleID(ctx, vehicleID, requestID, p.ScheduleID); err != nil {
		return err
	}
	if err := s.cache.Correlation().SetScheduleID(ctx, vehicleID, requestID, p.ScheduleID); err != nil {
		logger.Warn("Failed to update correlation cache", "error", err)
	}
	logger.Info("Schedule armed")
	return nil
}

func (s *Service) onDeleteAck(ctx context.Context, vehicleID, requestID string, p *model.ScheduleAckPayload) error {
	logger := log.FromContext(ctx)
	if !p.Valid && p.ErrorCode != model.ScheduleErrorExpired {
		logger.Error(core.AckRejected(p.ScheduleID, p.ErrorCode), "Schedule deletion rejected")
		return nil
	}

	if _, err := s.repo.Schedules().MarkStatus(ctx, vehicleID, p.ScheduleID, model.ScheduleDeleted, model.ScheduleActive); err != nil {
		return err
	}
	if requestID != "" {
		if err := s.clearSchedule(ctx, vehicleID, requestID, p.ScheduleID); err != nil {
			return err
		}
	}
	logger.Info("Schedule removed")
	return nil
}

// clearSchedule drops scheduleID from the request and from the cached context
// when it is still the armed one.
func (s *Service) clearSchedule(ctx context.Context, vehicleID, requestID, scheduleID string) error {
	if err := s.repo.Requests().ClearScheduleID(ctx, vehicleID, requestID, scheduleID); err != nil {
		return err
	}

	rc, ok, err := s.cache.Correlation().Get(ctx, vehicleID, requestID)
	if err != nil || !ok || rc.ScheduleID != scheduleID {
		return nil
	}
	if err := s.cache.Correlation().SetScheduleID(ctx, vehicleID, requestID, ""); err != nil {
		log.FromContext(ctx).Warn("Failed to update correlation cache", "error", err)
	}
	return nil
}

// onScheduleFired handles the scheduler callback. A request that already got
// an answer makes the fire stale; otherwise the request times out.
func (s *Service) onScheduleFired(ctx context.Context, ev *model.Event) error {
	var p model.ScheduleFiredPayload
	if err := ev.Decode(&p); err != nil {
		return core.Malformed("undecodable schedule notification", err)
	}
	sc, err := model.DecodeScheduleContext(p.Payload)
	if err != nil {
		return core.Malformed("undecodable schedule context", err)
	}

	vehicleID, requestID := sc.VehicleID, sc.RequestID
	ctx = log.IntoContext(ctx, "scheduleID", p.ScheduleID, "requestID", requestID)
	logger := log.FromContext(ctx)

	req, err := s.repo.Requests().Get(ctx, vehicleID, requestID)
	if errors.Is(err, core.ErrNotFound) {
		logger.Warn("Schedule fired for unknown request")
		return nil
	}
	if err != nil {
		return err
	}

	timeoutID := timeoutMessagePrefix + p.ScheduleID
	if staleFire(req, timeoutID) {
		logger.Info("Ignoring stale schedule fire", "status", req.Status, "responses", len(req.Responses))
		return nil
	}

	appended, err := s.repo.Requests().AppendResponse(ctx, &model.Response{
		MessageID:     timeoutID,
		RequestID:     requestID,
		VehicleID:     vehicleID,
		CorrelationID: req.CorrelationID,
		Code:          model.CodeTimeOut,
		Family:        req.Family,
		Origin:        ptr.To(req.Origin),
		UserID:        ptr.To(req.UserID),
		Synthetic:     true,
		ReceivedAt:    s.now(),
	})
	if err != nil {
		return err
	}

	changed, current, err := s.transition(ctx, vehicleID, requestID, model.EventTimeout, timeoutID)
	if err != nil {
		return err
	}
	if appended || changed {
		s.Emit(ctx, vehicleID, requestID, req.UserID, model.CodeTimeOut)
		if req.Family == model.FamilyRCPD && req.UserID != "" {
			if err := s.cache.Status().PutRCPDStatus(ctx, req.UserID, vehicleID, model.RCPDTimedOut); err != nil {
				logger.Warn("Failed to write RCPD status", "error", err)
			}
		}
	}

	if _, err := s.repo.Schedules().MarkStatus(ctx, vehicleID, p.ScheduleID, model.ScheduleExpired, model.ScheduleActive); err != nil {
		return err
	}
	if err := s.clearSchedule(ctx, vehicleID, requestID, p.ScheduleID); err != nil {
		return err
	}

	logger.Info("Request timed out", "status", current.Status)
	return s.DeleteSchedule(ctx, vehicleID, requestID, p.ScheduleID)
}

// staleFire reports whether the request was answered by anything other than
// the timeout of this very schedule.
func staleFire(req *model.Request, timeoutID string) bool {
	for _, r := range req.Responses {
		if r.MessageID != timeoutID {
			return true
		}
	}
	return req.Status.IsTerminal() && req.StatusCorrelationID != timeoutID
}
