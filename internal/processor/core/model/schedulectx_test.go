package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleContextRoundTrip(t *testing.T) {
	in := &ScheduleContext{
		RequestID:        "R1",
		BizTransactionID: "S1",
		VehicleID:        "V1",
		EventID:          "M1",
		UserID:           "U1",
		Role:             "OWNER",
		Origin:           "MOBILE",
		Family:           FamilyRCPD,
	}

	blob, err := in.Encode()
	require.NoError(t, err)

	out, err := DecodeScheduleContext(blob)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestDecodeScheduleContextRejectsGarbage(t *testing.T) {
	_, err := DecodeScheduleContext(nil)
	assert.Error(t, err)

	_, err = DecodeScheduleContext([]byte{0xff, 0xff, 0xff})
	assert.Error(t, err)

	blob, err := (&ScheduleContext{VehicleID: "V1"}).Encode()
	require.NoError(t, err)
	_, err = DecodeScheduleContext(blob)
	assert.Error(t, err)
}

func TestEventDecode(t *testing.T) {
	ev, err := NewEvent(EventRoResponse, "V1", "R1", ResponsePayload{ResponseCode: CodeSuccess, RoRequestID: "R1"})
	require.NoError(t, err)

	var p ResponsePayload
	require.NoError(t, ev.Decode(&p))
	assert.Equal(t, CodeSuccess, p.ResponseCode)

	empty := &Event{Type: EventRoResponse, Payload: []byte("null")}
	assert.Error(t, empty.Decode(&p))

	clone := ev.Clone()
	clone.Payload[0] = ' '
	assert.NotEqual(t, clone.Payload[0], ev.Payload[0])
}
