package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/autopeer-io/remoteops/internal/pkg/metrics"
	"github.com/autopeer-io/remoteops/internal/pkg/mqtt/paths"
	"github.com/autopeer-io/remoteops/internal/processor/core"
	"github.com/autopeer-io/remoteops/internal/processor/core/model"
	pkgmqtt "github.com/autopeer-io/remoteops/pkg/mqtt"
	"github.com/autopeer-io/remoteops/pkg/mqtt/topic"
)

var _ core.Publisher = (*MQTTPublisher)(nil)

// defaultQualifier names the forward stream of responses without a qualifier.
const defaultQualifier = "default"

var segmentReplacer = strings.NewReplacer("/", "_", "+", "_", "#", "_")

// MQTTPublisher serializes outbound events as JSON envelopes and publishes
// them on {root}/{segment}/{vehicleID}.
type MQTTPublisher struct {
	client  pkgmqtt.Client
	topics  *topic.Builder
	qos     int
	timeout time.Duration
}

// NewMQTTPublisher publishes through client. timeout bounds every publish.
func NewMQTTPublisher(client pkgmqtt.Client, topics *topic.Builder, qos int, timeout time.Duration) *MQTTPublisher {
	return &MQTTPublisher{client: client, topics: topics, qos: qos, timeout: timeout}
}

func (p *MQTTPublisher) PublishDeviceRequest(ctx context.Context, ev *model.Event) error {
	return p.publish(ctx, paths.DeviceCommand, ev)
}

func (p *MQTTPublisher) PublishForward(ctx context.Context, qualifier string, ev *model.Event) error {
	if qualifier == "" {
		qualifier = defaultQualifier
	}
	return p.publish(ctx, paths.Sub(paths.Forward, segmentReplacer.Replace(qualifier)), ev)
}

func (p *MQTTPublisher) PublishNotification(ctx context.Context, sink string, ev *model.Event) error {
	return p.publish(ctx, paths.Sub(paths.Notification, segmentReplacer.Replace(sink)), ev)
}

func (p *MQTTPublisher) PublishSchedule(ctx context.Context, ev *model.Event) error {
	switch ev.Type {
	case model.EventCreateSchedule:
		metrics.ScheduleCommandsTotal.WithLabelValues("create").Inc()
		return p.publish(ctx, paths.ScheduleCreate, ev)
	case model.EventDeleteSchedule:
		metrics.ScheduleCommandsTotal.WithLabelValues("delete").Inc()
		return p.publish(ctx, paths.ScheduleDelete, ev)
	default:
		return fmt.Errorf("event type %s is not a schedule command", ev.Type)
	}
}

func (p *MQTTPublisher) publish(ctx context.Context, segment string, ev *model.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", ev.Type, err)
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	t := p.topics.Build(segment, ev.VehicleID)
	if err := p.client.Publish(ctx, t, p.qos, false, payload); err != nil {
		return core.Transient(err, "publish to "+t)
	}
	return nil
}
