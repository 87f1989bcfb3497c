package mqtt

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/autopeer-io/remoteops/internal/pkg/metrics"
	"github.com/autopeer-io/remoteops/internal/pkg/mqtt/paths"
	"github.com/autopeer-io/remoteops/internal/pkg/partition"
	"github.com/autopeer-io/remoteops/internal/processor/core/model"
	"github.com/autopeer-io/remoteops/pkg/log"
	pkgmqtt "github.com/autopeer-io/remoteops/pkg/mqtt"
	"github.com/autopeer-io/remoteops/pkg/mqtt/topic"
)

// Router handles one decoded event.
type Router interface {
	Route(ctx context.Context, ev *model.Event) error
}

// inbound lists the consumed segments and the event type they carry.
var inbound = map[string]model.EventType{
	paths.RoRequest:            model.EventRoRequest,
	paths.RoResponse:           model.EventRoResponse,
	paths.DeviceFailure:        model.EventDeviceMessageFailure,
	paths.ScheduleStatus:       model.EventScheduleOpStatus,
	paths.ScheduleNotification: model.EventScheduleNotification,
	paths.VehicleProfile:       model.EventVehicleProfileChanged,
}

// Server implements the MQTT ingress layer. Messages are decoded on the
// receive path and handed to the partition pool keyed by vehicle id.
type Server struct {
	client pkgmqtt.Client
	topics *topic.Builder
	group  string
	qos    int
	pool   *partition.Pool
	router Router
}

// NewServer creates the ingress server. An empty group subscribes without $share.
func NewServer(client pkgmqtt.Client, builder *topic.Builder, group string, qos int, pool *partition.Pool, router Router) *Server {
	return &Server{
		client: client,
		topics: builder,
		group:  group,
		qos:    qos,
		pool:   pool,
		router: router,
	}
}

// Start runs the partition pool, connects to the broker and subscribes to
// every inbound stream. On shutdown the client disconnects first, then the
// pool drains the events already accepted.
func (s *Server) Start(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.pool.Start(gctx)
	})

	g.Go(func() error {
		if err := s.client.Start(gctx); err != nil {
			return err
		}

		defer func() {
			log.Info("Disconnecting MQTT client...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			s.client.Disconnect(shutdownCtx)
			log.Info("MQTT client disconnected")
		}()

		log.Info("Waiting for MQTT connection...")
		if err := s.client.AwaitConnection(gctx); err != nil {
			return err
		}
		log.Info("MQTT Connected")

		if err := wait.PollUntilContextCancel(gctx, 10*time.Millisecond, true, func(context.Context) (bool, error) {
			return s.pool.Started(), nil
		}); err != nil {
			return nil
		}

		if err := s.subscribe(gctx); err != nil {
			return err
		}

		<-gctx.Done()
		return nil
	})

	return g.Wait()
}

func (s *Server) subscribe(ctx context.Context) error {
	builder := s.topics
	if s.group != "" {
		builder = s.topics.Shared(s.group)
	}

	for segment, eventType := range inbound {
		filter := builder.BuildWildcard(segment)
		if err := s.client.Subscribe(ctx, filter, s.qos, s.handler(segment, eventType)); err != nil {
			return fmt.Errorf("failed to subscribe to topic: %s, err: %w", filter, err)
		}
		log.Debug("Subscribed", "topic", filter)
	}
	return nil
}

func (s *Server) handler(segment string, eventType model.EventType) pkgmqtt.MessageHandler {
	decode := EnvelopeDecoder(s.topics, segment, eventType)

	return func(ctx context.Context, t string, payload []byte) {
		ev, err := decode(t, payload)
		if err != nil {
			log.Warn("Dropping message", "topic", t, "error", err)
			metrics.EventsTotal.WithLabelValues(string(eventType), "dropped").Inc()
			return
		}

		if err := s.pool.Submit(ctx, ev.Key(), func(ctx context.Context) error {
			return s.router.Route(ctx, ev)
		}); err != nil {
			log.Error(err, "Failed to queue event", "topic", t, "eventType", ev.Type)
		}
	}
}
