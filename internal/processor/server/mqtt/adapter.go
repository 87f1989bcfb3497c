package mqtt

import (
	"encoding/json"

	"github.com/autopeer-io/remoteops/internal/processor/core"
	"github.com/autopeer-io/remoteops/internal/processor/core/model"
	"github.com/autopeer-io/remoteops/pkg/mqtt/topic"
)

// Decoder turns a message received on a segment's topic into an event envelope.
type Decoder func(topic string, payload []byte) (*model.Event, error)

// EnvelopeDecoder decodes JSON envelopes published on segment. Envelopes
// without a type or vehicle id inherit them from the segment and the topic.
func EnvelopeDecoder(topics *topic.Builder, segment string, eventType model.EventType) Decoder {
	return func(t string, payload []byte) (*model.Event, error) {
		var ev model.Event
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, core.Malformed("undecodable envelope on "+t, err)
		}

		if ev.Type == "" {
			ev.Type = eventType
		}
		if ev.VehicleID == "" {
			if id, ok := topics.ID(segment, t); ok {
				ev.VehicleID = id
			}
		}
		return &ev, nil
	}
}
