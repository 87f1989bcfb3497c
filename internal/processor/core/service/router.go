package service

import (
	"context"
	"time"

	"github.com/autopeer-io/remoteops/internal/pkg/metrics"
	"github.com/autopeer-io/remoteops/internal/processor/core"
	"github.com/autopeer-io/remoteops/internal/processor/core/model"
	"github.com/autopeer-io/remoteops/pkg/log"
)

// Handler processes one event of a given type.
type Handler func(ctx context.Context, ev *model.Event) error

// Route dispatches ev to the handler registered for its type. Invalid events
// and domain failures are logged and dropped; only retryable errors are returned,
// so that the caller can redeliver the event.
func (s *Service) Route(ctx context.Context, ev *model.Event) error {
	if ev == nil {
		log.FromContext(ctx).Warn("Dropping nil event")
		metrics.EventsTotal.WithLabelValues("", "dropped").Inc()
		return nil
	}

	eventType := string(ev.Type)
	ctx = log.IntoContext(ctx, "eventType", eventType, "vehicleID", ev.VehicleID, "requestID", ev.RequestID)
	logger := log.FromContext(ctx)

	handler, ok := s.handlers[ev.Type]
	switch {
	case !ok:
		logger.Warn("Dropping event", "error", core.Unknown(eventType))
		metrics.EventsTotal.WithLabelValues(eventType, "dropped").Inc()
		return nil
	case ev.VehicleID == "":
		logger.Warn("Dropping event without vehicle id")
		metrics.EventsTotal.WithLabelValues(eventType, "dropped").Inc()
		return nil
	case !ev.HasPayload():
		logger.Warn("Dropping event without payload")
		metrics.EventsTotal.WithLabelValues(eventType, "dropped").Inc()
		return nil
	}

	start := time.Now()
	err := handler(ctx, ev)
	metrics.HandlerLatency.WithLabelValues(eventType).Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		metrics.EventsTotal.WithLabelValues(eventType, "handled").Inc()
		return nil
	case core.IsRetryable(err):
		metrics.EventsTotal.WithLabelValues(eventType, "failed").Inc()
		return err
	case core.IsMalformed(err):
		logger.Warn("Dropping malformed event", "error", err)
	default:
		logger.Error(err, "Event handling failed")
	}
	metrics.EventsTotal.WithLabelValues(eventType, "dropped").Inc()
	return nil
}

// Handles reports whether a handler is registered for t.
func (s *Service) Handles(t model.EventType) bool {
	_, ok := s.handlers[t]
	return ok
}
