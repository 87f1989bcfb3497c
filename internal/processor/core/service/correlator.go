package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"k8s.io/utils/ptr"

	"github.com/autopeer-io/remoteops/internal/pkg/metrics"
	"github.com/autopeer-io/remoteops/internal/processor/core"
	"github.com/autopeer-io/remoteops/internal/processor/core/model"
	"github.com/autopeer-io/remoteops/pkg/log"
)

// onRequest persists a new request, primes the correlation cache and the
// expiry queue, and hands the enriched request to the device router.
// Redelivered requests reuse the stored delivery identity.
func (s *Service) onRequest(ctx context.Context, ev *model.Event) error {
	var p model.RequestPayload
	if err := ev.Decode(&p); err != nil {
		return core.Malformed("undecodable request payload", err)
	}
	if ev.RequestID == "" {
		return core.Malformed("request without request id", nil)
	}

	now := s.now()
	retryCount, retryInterval := s.cfg.Retry.Count, s.cfg.Retry.Interval
	if p.RetryCount != nil {
		retryCount = *p.RetryCount
	}
	if p.RetryIntervalMs != nil {
		retryInterval = time.Duration(*p.RetryIntervalMs) * time.Millisecond
	}

	origin := p.Origin
	if origin == "" {
		origin = ev.Origin
	}

	out := ev.Clone()
	out.MessageID = s.newID()
	out.Timestamp = now.UnixMilli()
	out.Origin = origin
	out.ResponseExpected = true
	out.DeviceRoutable = true
	if out.CorrelationID == "" {
		out.CorrelationID = out.MessageID
	}

	req := &model.Request{
		RequestID:        ev.RequestID,
		VehicleID:        ev.VehicleID,
		Family:           p.Family,
		MessageID:        out.MessageID,
		CorrelationID:    out.CorrelationID,
		BizTransactionID: ev.BizTransactionID,
		Origin:           origin,
		UserID:           ev.User.UserID,
		DeliveryCutoff:   model.DeliveryCutoff(now, retryCount, retryInterval, s.cfg.Retry.TTLBuffer),
		Payload:          ev.Payload,
	}

	created, err := s.repo.Requests().Create(ctx, req)
	if err != nil {
		return err
	}
	if !created {
		existing, err := s.repo.Requests().Get(ctx, ev.VehicleID, ev.RequestID)
		if err != nil {
			return err
		}
		log.FromContext(ctx).Info("Request already stored, resuming delivery", "messageID", existing.MessageID)
		req = existing
		out.MessageID = existing.MessageID
		out.CorrelationID = existing.CorrelationID
	}

	s.putContext(ctx, req)

	if err := s.repo.Expiry().Enqueue(ctx, &model.ExpiryEntry{
		VehicleID:     req.VehicleID,
		RequestID:     req.RequestID,
		CorrelationID: req.CorrelationID,
		MessageID:     req.MessageID,
		Cutoff:        req.DeliveryCutoff,
		EnqueuedAt:    now,
	}); err != nil {
		return err
	}

	if req.Family == model.FamilyRCPD && !req.Status.IsTerminal() && !req.ScheduleArmed() {
		if err := s.startRCPD(ctx, req); err != nil {
			return err
		}
	}

	return s.publisher.PublishDeviceRequest(ctx, out)
}

// startRCPD records the pending RCPD status and arms the RCPD timeout.
func (s *Service) startRCPD(ctx context.Context, req *model.Request) error {
	if req.UserID != "" {
		if err := s.cache.Status().PutRCPDStatus(ctx, req.UserID, req.VehicleID, model.RCPDPending); err != nil {
			log.FromContext(ctx).Warn("Failed to write RCPD status", "error", err)
		}
	}
	return s.armSchedule(ctx, req, s.cfg.RCPDTimeout)
}

// onResponse correlates a response with its request, appends it and applies
// the lifecycle. Responses without a request are stored as orphans.
func (s *Service) onResponse(ctx context.Context, ev *model.Event) error {
	var p model.ResponsePayload
	if err := ev.Decode(&p); err != nil {
		return core.Malformed("undecodable response payload", err)
	}
	if p.ResponseCode == "" {
		return core.Malformed("response without response code", nil)
	}
	requestID := p.RoRequestID
	if requestID == "" {
		requestID = ev.RequestID
	}
	if requestID == "" {
		return core.Malformed("response without request id", nil)
	}

	vehicleID := ev.VehicleID
	now := s.now()
	ctx = log.IntoContext(ctx, "requestID", requestID, "responseCode", p.ResponseCode, "correlationID", ev.CorrelationID)
	logger := log.FromContext(ctx)

	entry, err := s.repo.Expiry().Peek(ctx, vehicleID, requestID, ev.CorrelationID)
	if err != nil {
		return err
	}
	late := entry != nil && entry.Late(now, s.cfg.TTLCheckBuffer)

	rc, found, err := s.resolveContext(ctx, vehicleID, requestID)
	if err != nil {
		return err
	}

	resp := &model.Response{
		MessageID:       responseMessageID(ev, p.ResponseCode),
		RequestID:       requestID,
		VehicleID:       vehicleID,
		CorrelationID:   ev.CorrelationID,
		Code:            p.ResponseCode,
		Family:          p.Family,
		CustomExtension: p.CustomExtension,
		ReceivedAt:      now,
	}

	if !found {
		resp.Orphan = true
		appended, err := s.repo.Requests().AppendResponse(ctx, resp)
		if err != nil {
			return err
		}
		if appended {
			metrics.ResponsesTotal.WithLabelValues("orphan").Inc()
		}
		logger.Info("Stored orphan response")
		return nil
	}

	cutoff := time.Time{}
	if entry != nil {
		cutoff = entry.Cutoff
	} else {
		// No pending attempt matched: the device answered under another
		// correlation or the entry was purged. Judge the first answer
		// against the stored cutoff instead.
		late, cutoff, err = s.lateWithoutEntry(ctx, vehicleID, requestID, resp.MessageID, now)
		if err != nil {
			return err
		}
	}

	if resp.Family == "" {
		resp.Family = rc.Family
	}
	qualifier, err := s.qualifier(ctx, resp.Family, rc.Origin)
	if err != nil {
		return err
	}
	resp.Origin = ptr.To(rc.Origin)
	resp.UserID = ptr.To(rc.UserID)
	resp.Qualifier = qualifier

	appended, err := s.repo.Requests().AppendResponse(ctx, resp)
	if err != nil {
		return err
	}
	if !appended {
		metrics.ResponsesTotal.WithLabelValues("duplicate").Inc()
	}

	if late {
		return s.absorbLate(ctx, vehicleID, requestID, ev.CorrelationID, cutoff, entry)
	}

	fwd := ev.Clone()
	fwd.RequestID = requestID
	fwd.Qualifier = qualifier
	if fwd.Origin == "" {
		fwd.Origin = rc.Origin
	}
	if fwd.User.UserID == "" {
		fwd.User.UserID = rc.UserID
	}
	if err := s.publisher.PublishForward(ctx, qualifier, fwd); err != nil {
		return err
	}

	changed := false
	if p.ResponseCode.IsFinal() {
		var current *model.Request
		changed, current, err = s.transition(ctx, vehicleID, requestID, model.EventFor(p.ResponseCode), ev.CorrelationID)
		if errors.Is(err, core.ErrNotFound) {
			logger.Warn("Request vanished while applying response")
			return nil
		}
		if err != nil {
			return err
		}

		if appended || changed {
			s.Emit(ctx, vehicleID, requestID, rc.UserID, p.ResponseCode)
		}

		if current.Status.IsTerminal() {
			scheduleID := current.ScheduleID
			if scheduleID == "" {
				scheduleID = rc.ScheduleID
			}
			if scheduleID != "" {
				if err := s.DeleteSchedule(ctx, vehicleID, requestID, scheduleID); err != nil {
					return err
				}
			}
		}

		if resp.Family == model.FamilyRCPD && rc.UserID != "" && changed {
			if err := s.cache.Status().PutRCPDStatus(ctx, rc.UserID, vehicleID, model.RCPDStatusFor(p.ResponseCode)); err != nil {
				logger.Warn("Failed to write RCPD status", "error", err)
			}
		}
	}

	if appended {
		metrics.ResponsesTotal.WithLabelValues("correlated").Inc()
	}
	if entry == nil {
		return nil
	}
	return s.repo.Expiry().Ack(ctx, entry)
}

// absorbLate handles a response that arrived after the delivery cutoff: the
// request expires if still open, no forward and no notification are emitted.
// entry may be nil when lateness was judged on the stored cutoff.
func (s *Service) absorbLate(ctx context.Context, vehicleID, requestID, correlationID string, cutoff time.Time, entry *model.ExpiryEntry) error {
	metrics.ResponsesTotal.WithLabelValues("late").Inc()

	changed, current, err := s.transition(ctx, vehicleID, requestID, model.EventExpire, correlationID)
	if errors.Is(err, core.ErrNotFound) {
		return s.repo.Expiry().Ack(ctx, entry)
	}
	if err != nil {
		return err
	}
	if changed && current.ScheduleID != "" {
		if err := s.DeleteSchedule(ctx, vehicleID, requestID, current.ScheduleID); err != nil {
			return err
		}
	}

	log.FromContext(ctx).Info("Late response absorbed", "cutoff", cutoff, "status", current.Status)
	return s.repo.Expiry().Ack(ctx, entry)
}

// lateWithoutEntry reports whether the response messageID is the first answer
// of the request and arrived after the stored delivery cutoff. Later steps of
// a multi-step exchange are never late.
func (s *Service) lateWithoutEntry(ctx context.Context, vehicleID, requestID, messageID string, now time.Time) (bool, time.Time, error) {
	req, err := s.repo.Requests().Get(ctx, vehicleID, requestID)
	if errors.Is(err, core.ErrNotFound) {
		return false, time.Time{}, nil
	}
	if err != nil {
		return false, time.Time{}, err
	}

	for _, r := range req.Responses {
		if r.MessageID != messageID {
			return false, req.DeliveryCutoff, nil
		}
	}
	if req.DeliveryCutoff.IsZero() {
		return false, req.DeliveryCutoff, nil
	}
	return now.After(req.DeliveryCutoff.Add(s.cfg.TTLCheckBuffer)), req.DeliveryCutoff, nil
}

// resolveContext looks the request context up in the cache first and falls
// back to the request store, repopulating the cache on a store hit.
func (s *Service) resolveContext(ctx context.Context, vehicleID, requestID string) (*model.RequestContext, bool, error) {
	rc, ok, err := s.cache.Correlation().Get(ctx, vehicleID, requestID)
	switch {
	case err != nil:
		log.FromContext(ctx).Warn("Correlation cache unavailable, reading request store", "error", err)
	case ok:
		return rc, true, nil
	}

	req, err := s.repo.Requests().Get(ctx, vehicleID, requestID)
	if errors.Is(err, core.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	s.putContext(ctx, req)
	stored := req.Context()
	return &stored, true, nil
}

// responseMessageID is the dedupe key of a response. Producers that do not
// stamp message ids are deduplicated on correlation, code and timestamp.
func responseMessageID(ev *model.Event, code model.ResponseCode) string {
	if ev.MessageID != "" {
		return ev.MessageID
	}
	return fmt.Sprintf("%s/%s/%d", ev.CorrelationID, code, ev.Timestamp)
}
