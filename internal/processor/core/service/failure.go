package service

import (
	"context"
	"errors"

	"k8s.io/utils/ptr"

	"github.com/autopeer-io/remoteops/internal/processor/core"
	"github.com/autopeer-io/remoteops/internal/processor/core/model"
	"github.com/autopeer-io/remoteops/pkg/log"
)

// onDeviceFailure turns a device delivery failure into a domain outcome.
// Recoverable errors arm a single deferred retry; every other mapped error
// fails the request with a synthetic response.
func (s *Service) onDeviceFailure(ctx context.Context, ev *model.Event) error {
	var p model.FailurePayload
	if err := ev.Decode(&p); err != nil {
		return core.Malformed("undecodable device failure", err)
	}
	if p.FailedEvent == nil || p.FailedEvent.RequestID == "" {
		return core.Malformed("device failure without failed request", nil)
	}

	failed := p.FailedEvent
	vehicleID, requestID := ev.VehicleID, failed.RequestID
	ctx = log.IntoContext(ctx, "requestID", requestID, "errorCode", p.ErrorCode)
	logger := log.FromContext(ctx)

	code, ok := s.cfg.DeviceErrors[p.ErrorCode]
	if !ok {
		logger.Info("Ignoring unmapped device error")
		return nil
	}

	req, err := s.repo.Requests().Get(ctx, vehicleID, requestID)
	if errors.Is(err, core.ErrNotFound) {
		logger.Warn("Device failure for unknown request")
		return nil
	}
	if err != nil {
		return err
	}
	if req.Status.IsTerminal() {
		logger.Info("Request already finished", "status", req.Status)
		return nil
	}

	if s.cfg.RecoverableErrors.Has(p.ErrorCode) {
		if s.scheduleArmed(ctx, req) {
			logger.Debug("Retry already armed")
			return nil
		}
		logger.Info("Device unreachable, arming retry", "delay", s.cfg.RecoverableRetryDelay)
		return s.armSchedule(ctx, req, s.cfg.RecoverableRetryDelay)
	}

	correlationID := failed.CorrelationID
	if correlationID == "" {
		correlationID = req.CorrelationID
	}

	appended, err := s.repo.Requests().AppendResponse(ctx, &model.Response{
		MessageID:     failedMessageID(failed, req) + ":" + p.ErrorCode,
		RequestID:     requestID,
		VehicleID:     vehicleID,
		CorrelationID: correlationID,
		Code:          code,
		Family:        req.Family,
		Origin:        ptr.To(req.Origin),
		UserID:        ptr.To(req.UserID),
		Synthetic:     true,
		ReceivedAt:    s.now(),
	})
	if err != nil {
		return err
	}

	changed, current, err := s.transition(ctx, vehicleID, requestID, model.EventFail, correlationID)
	if err != nil {
		return err
	}
	if appended || changed {
		s.Emit(ctx, vehicleID, requestID, req.UserID, code)
		if req.Family == model.FamilyRCPD && req.UserID != "" {
			if err := s.cache.Status().PutRCPDStatus(ctx, req.UserID, vehicleID, model.RCPDFailed); err != nil {
				logger.Warn("Failed to write RCPD status", "error", err)
			}
		}
	}

	if current.ScheduleID != "" {
		if err := s.DeleteSchedule(ctx, vehicleID, requestID, current.ScheduleID); err != nil {
			return err
		}
	}

	// The attempt is over; its response window no longer applies.
	entry, err := s.repo.Expiry().Peek(ctx, vehicleID, requestID, correlationID)
	if err != nil || entry == nil {
		return err
	}
	return s.repo.Expiry().Ack(ctx, entry)
}

// scheduleArmed checks the cached context first, then the stored request.
func (s *Service) scheduleArmed(ctx context.Context, req *model.Request) bool {
	rc, ok, err := s.cache.Correlation().Get(ctx, req.VehicleID, req.RequestID)
	if err == nil && ok && rc.ScheduleID != "" {
		return true
	}
	return req.ScheduleArmed()
}

func failedMessageID(failed *model.Event, req *model.Request) string {
	if failed.MessageID != "" {
		return failed.MessageID
	}
	return req.MessageID
}
