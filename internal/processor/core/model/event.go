package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType is the routing tag of an event envelope.
type EventType string

// Inbound event types.
const (
	EventRoRequest             EventType = "RO_REQUEST"
	EventRoResponse            EventType = "RO_RESPONSE"
	EventDeviceMessageFailure  EventType = "DEVICE_MESSAGE_FAILURE"
	EventScheduleOpStatus      EventType = "SCHEDULE_OP_STATUS"
	EventScheduleNotification  EventType = "SCHEDULE_NOTIFICATION"
	EventVehicleProfileChanged EventType = "VEHICLE_PROFILE_CHANGED"
)

// Outbound event types.
const (
	EventGenericNotification EventType = "GENERIC_NOTIFICATION"
	EventCreateSchedule      EventType = "CREATE_SCHEDULE"
	EventDeleteSchedule      EventType = "DELETE_SCHEDULE"
)

// UserContext identifies the user on whose behalf a command runs.
type UserContext struct {
	UserID string `json:"userId,omitempty"`
	Role   string `json:"role,omitempty"`
}

// Event is the envelope of every message on the broker.
// VehicleID is the partition key; Payload is decoded according to Type.
type Event struct {
	MessageID        string          `json:"messageId,omitempty"`
	Type             EventType       `json:"eventType"`
	VehicleID        string          `json:"vehicleId"`
	RequestID        string          `json:"requestId,omitempty"`
	CorrelationID    string          `json:"correlationId,omitempty"`
	BizTransactionID string          `json:"bizTransactionId,omitempty"`
	Timestamp        int64           `json:"timestamp,omitempty"`
	User             UserContext     `json:"userContext"`
	Origin           string          `json:"origin,omitempty"`
	Qualifier        string          `json:"qualifier,omitempty"`
	ResponseExpected bool            `json:"responseExpected,omitempty"`
	DeviceRoutable   bool            `json:"deviceRoutable,omitempty"`
	Payload          json.RawMessage `json:"payload,omitempty"`
}

// Key returns the partition key of the event.
func (e *Event) Key() string {
	return e.VehicleID
}

// Time returns the event timestamp.
func (e *Event) Time() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// HasPayload reports whether a non-null payload is present.
func (e *Event) HasPayload() bool {
	return len(e.Payload) > 0 && string(e.Payload) != "null"
}

// Decode unmarshals the payload into v.
func (e *Event) Decode(v any) error {
	if !e.HasPayload() {
		return fmt.Errorf("%s event has no payload", e.Type)
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return nil
}

// Clone returns a deep copy of the envelope.
func (e *Event) Clone() *Event {
	c := *e
	if e.Payload != nil {
		c.Payload = append(json.RawMessage(nil), e.Payload...)
	}
	return &c
}

// NewEvent builds an envelope around payload.
func NewEvent(t EventType, vehicleID, requestID string, payload any) (*Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", t, err)
	}
	return &Event{
		Type:      t,
		VehicleID: vehicleID,
		RequestID: requestID,
		Payload:   raw,
	}, nil
}
