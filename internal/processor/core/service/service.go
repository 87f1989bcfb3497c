package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/client-go/util/retry"
	"k8s.io/utils/clock"

	"github.com/autopeer-io/remoteops/internal/processor/core"
	"github.com/autopeer-io/remoteops/internal/processor/core/model"
	"github.com/autopeer-io/remoteops/pkg/log"
)

// RetryPolicy is the device delivery retry policy used to compute delivery cutoffs.
type RetryPolicy struct {
	Count     int
	Interval  time.Duration
	TTLBuffer time.Duration
}

// Config is the immutable configuration of the service.
type Config struct {
	Retry RetryPolicy

	// TTLCheckBuffer is the grace added to a cutoff before a response counts as late.
	TTLCheckBuffer time.Duration

	// RecoverableRetryDelay is the delay of the schedule armed when a device is unreachable.
	RecoverableRetryDelay time.Duration

	// RCPDTimeout is the delay of the timeout schedule armed for every RCPD request.
	RCPDTimeout time.Duration

	// DeviceErrors maps device error codes to response codes. Unmapped codes are only logged.
	DeviceErrors map[string]model.ResponseCode

	// RecoverableErrors are device error codes that arm a deferred retry.
	RecoverableErrors sets.Set[string]

	// Notifications maps response codes to external notification ids.
	Notifications map[model.ResponseCode]string

	// NotificationSinks receive every notification. Empty disables notifications.
	NotificationSinks []string

	Clock clock.PassiveClock
}

// Service holds the event handlers of the processor: the router, the
// request/response correlator, the device-failure handler, the scheduler
// gateway, the notification emitter and the profile-change handler.
type Service struct {
	cfg       *Config
	repo      core.Repository
	cache     core.Cache
	publisher core.Publisher
	settings  core.SettingsLookup
	clock     clock.PassiveClock
	newID     func() string

	handlers map[model.EventType]Handler
}

// New wires a Service. settings may be nil when no remote-inhibit requests are expected.
func New(cfg *Config, repo core.Repository, cache core.Cache, publisher core.Publisher, settings core.SettingsLookup) *Service {
	c := *cfg
	s := &Service{
		cfg:       &c,
		repo:      repo,
		cache:     cache,
		publisher: publisher,
		settings:  settings,
		clock:     cfg.Clock,
		newID:     uuid.NewString,
	}
	if s.clock == nil {
		s.clock = clock.RealClock{}
	}
	if s.cfg.RecoverableErrors == nil {
		s.cfg.RecoverableErrors = sets.New[string]()
	}

	s.handlers = map[model.EventType]Handler{
		model.EventRoRequest:             s.onRequest,
		model.EventRoResponse:            s.onResponse,
		model.EventDeviceMessageFailure:  s.onDeviceFailure,
		model.EventScheduleOpStatus:      s.onScheduleAck,
		model.EventScheduleNotification:  s.onScheduleFired,
		model.EventVehicleProfileChanged: s.onProfileChanged,
	}
	return s
}

var errStatusConflict = errors.New("request status changed concurrently")

// transition applies a lifecycle event to the stored request. The status is
// written with a compare-and-set and the event is re-evaluated on conflict.
// It returns the request as it is after the call.
func (s *Service) transition(ctx context.Context, vehicleID, requestID, event, correlationID string) (bool, *model.Request, error) {
	var (
		changed bool
		current *model.Request
	)

	err := retry.OnError(retry.DefaultRetry, func(err error) bool {
		return errors.Is(err, errStatusConflict)
	}, func() error {
		req, err := s.repo.Requests().Get(ctx, vehicleID, requestID)
		if err != nil {
			return err
		}
		current = req

		lc := model.NewLifecycle(req.Status, req.StatusCorrelationID)
		ok, err := lc.Fire(ctx, event, correlationID)
		if err != nil {
			return err
		}
		if !ok {
			changed = false
			return nil
		}

		swapped, err := s.repo.Requests().CompareAndSetStatus(ctx, vehicleID, requestID,
			req.Status, req.StatusCorrelationID, lc.Status(), lc.CorrelationID())
		if err != nil {
			return err
		}
		if !swapped {
			return errStatusConflict
		}

		req.Status = lc.Status()
		req.StatusCorrelationID = lc.CorrelationID()
		changed = true
		return nil
	})
	if errors.Is(err, errStatusConflict) {
		return false, current, core.Transient(err, "apply "+event)
	}
	return changed, current, err
}

// putContext refreshes the correlation cache. Failures are logged only.
func (s *Service) putContext(ctx context.Context, req *model.Request) {
	if err := s.cache.Correlation().Put(ctx, req.VehicleID, req.RequestID, req.Context()); err != nil {
		log.FromContext(ctx).Warn("Failed to write correlation cache", "error", err)
	}
}

func (s *Service) now() time.Time {
	return s.clock.Now()
}
