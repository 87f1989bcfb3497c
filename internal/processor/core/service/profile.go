package service

import (
	"context"

	"github.com/autopeer-io/remoteops/internal/processor/core"
	"github.com/autopeer-io/remoteops/internal/processor/core/model"
	"github.com/autopeer-io/remoteops/pkg/log"
)

// onProfileChanged drops the RCPD status of a user who is no longer
// associated with the vehicle.
func (s *Service) onProfileChanged(ctx context.Context, ev *model.Event) error {
	var p model.ProfileChangedPayload
	if err := ev.Decode(&p); err != nil {
		return core.Malformed("undecodable profile change", err)
	}
	vehicleID := p.VehicleID
	if vehicleID == "" {
		vehicleID = ev.VehicleID
	}

	for _, c := range p.Changes {
		if c.Key != model.ProfileKeyUserID || c.OldValue == "" || c.OldValue == c.NewValue {
			continue
		}
		if err := s.cache.Status().DeleteRCPDStatus(ctx, c.OldValue, vehicleID); err != nil {
			return err
		}
		log.FromContext(ctx).Info("Removed RCPD status of previous user", "userID", c.OldValue)
	}
	return nil
}
