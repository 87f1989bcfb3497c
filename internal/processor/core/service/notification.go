package service

import (
	"context"

	"github.com/autopeer-io/remoteops/internal/pkg/metrics"
	"github.com/autopeer-io/remoteops/internal/processor/core/model"
	"github.com/autopeer-io/remoteops/pkg/log"
)

// Emit sends a GENERIC_NOTIFICATION for code to every configured sink.
// Intermediate steps are never notified. Codes without a mapping and sink
// failures are logged; Emit never fails.
func (s *Service) Emit(ctx context.Context, vehicleID, requestID, userID string, code model.ResponseCode) {
	logger := log.FromContext(ctx)

	if code.IsContinue() {
		logger.Debug("Intermediate step is not notified", "responseCode", code)
		return
	}
	notificationID, ok := s.cfg.Notifications[code]
	if !ok {
		logger.Debug("No notification mapped", "responseCode", code)
		return
	}
	if len(s.cfg.NotificationSinks) == 0 {
		logger.Debug("No notification sink configured")
		return
	}

	ev, err := model.NewEvent(model.EventGenericNotification, vehicleID, requestID, model.NotificationPayload{
		RequestID:      requestID,
		VehicleID:      vehicleID,
		UserID:         userID,
		ResponseCode:   code,
		NotificationID: notificationID,
	})
	if err != nil {
		logger.Error(err, "Failed to build notification")
		return
	}
	ev.MessageID = s.newID()
	ev.Timestamp = s.now().UnixMilli()
	ev.User.UserID = userID

	for _, sink := range s.cfg.NotificationSinks {
		if err := s.publisher.PublishNotification(ctx, sink, ev); err != nil {
			logger.Error(err, "Failed to publish notification", "sink", sink, "notificationID", notificationID)
			continue
		}
		metrics.NotificationsTotal.WithLabelValues(string(code)).Inc()
	}
}
