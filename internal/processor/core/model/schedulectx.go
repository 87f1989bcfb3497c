package model

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// ScheduleContext is the request identity carried through the external scheduler
// and handed back when a schedule fires. The encoding does not depend on the family.
type ScheduleContext struct {
	RequestID        string
	BizTransactionID string
	VehicleID        string
	EventID          string
	UserID           string
	Role             string
	Origin           string
	Family           Family
}

const (
	fieldRequestID        = "requestId"
	fieldBizTransactionID = "bizTransactionId"
	fieldVehicleID        = "vehicleId"
	fieldEventID          = "eventId"
	fieldUserID           = "userId"
	fieldRole             = "role"
	fieldOrigin           = "origin"
	fieldFamily           = "family"
)

// Encode serializes the context as a protobuf Struct.
func (c *ScheduleContext) Encode() ([]byte, error) {
	s, err := structpb.NewStruct(map[string]any{
		fieldRequestID:        c.RequestID,
		fieldBizTransactionID: c.BizTransactionID,
		fieldVehicleID:        c.VehicleID,
		fieldEventID:          c.EventID,
		fieldUserID:           c.UserID,
		fieldRole:             c.Role,
		fieldOrigin:           c.Origin,
		fieldFamily:           string(c.Family),
	})
	if err != nil {
		return nil, fmt.Errorf("build schedule context: %w", err)
	}
	return proto.Marshal(s)
}

// DecodeScheduleContext parses a blob produced by Encode. Request and vehicle ids are required.
func DecodeScheduleContext(b []byte) (*ScheduleContext, error) {
	if len(b) == 0 {
		return nil, errors.New("empty schedule context")
	}

	var s structpb.Struct
	if err := proto.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("unmarshal schedule context: %w", err)
	}

	get := func(key string) string {
		return s.GetFields()[key].GetStringValue()
	}
	c := &ScheduleContext{
		RequestID:        get(fieldRequestID),
		BizTransactionID: get(fieldBizTransactionID),
		VehicleID:        get(fieldVehicleID),
		EventID:          get(fieldEventID),
		UserID:           get(fieldUserID),
		Role:             get(fieldRole),
		Origin:           get(fieldOrigin),
		Family:           Family(get(fieldFamily)),
	}
	if c.RequestID == "" || c.VehicleID == "" {
		return nil, errors.New("schedule context lacks request or vehicle id")
	}
	return c, nil
}
