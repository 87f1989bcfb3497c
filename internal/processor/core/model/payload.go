package model

import "encoding/json"

// Family is the command family of a request.
type Family string

const (
	FamilyDoors         Family = "DOORS"
	FamilyEngine        Family = "ENGINE"
	FamilyClimate       Family = "CLIMATE"
	FamilyHornLights    Family = "HORN_LIGHTS"
	FamilyAlarm         Family = "ALARM"
	FamilyTrunk         Family = "TRUNK"
	FamilyLiftgate      Family = "LIFTGATE"
	FamilyGlovebox      Family = "GLOVEBOX"
	FamilyWindows       Family = "WINDOWS"
	FamilyRemoteInhibit Family = "REMOTE_INHIBIT"
	FamilyRCPD          Family = "RCPD"
)

// RequestPayload is the payload of RO_REQUEST.
type RequestPayload struct {
	Family     Family         `json:"family"`
	Origin     string         `json:"origin"`
	Command    string         `json:"command,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty"`

	// Optional overrides of the configured delivery retry policy.
	RetryCount      *int   `json:"retryCount,omitempty"`
	RetryIntervalMs *int64 `json:"retryIntervalMs,omitempty"`
}

// ResponsePayload is the payload of RO_RESPONSE.
type ResponsePayload struct {
	ResponseCode    ResponseCode    `json:"responseCode"`
	RoRequestID     string          `json:"roRequestId"`
	Family          Family          `json:"family,omitempty"`
	CustomExtension json.RawMessage `json:"customExtension,omitempty"`
}

// FailurePayload is the payload of DEVICE_MESSAGE_FAILURE.
type FailurePayload struct {
	ErrorCode   string `json:"errorCode"`
	FailedEvent *Event `json:"failedEvent"`
}

// ScheduleOp is the operation acknowledged by SCHEDULE_OP_STATUS.
type ScheduleOp string

const (
	ScheduleOpCreate ScheduleOp = "CREATE"
	ScheduleOpDelete ScheduleOp = "DELETE"
)

// ScheduleErrorExpired is the ack error code of a delete for a schedule that already fired.
const ScheduleErrorExpired = "EXPIRED_SCHEDULE"

// ScheduleAckPayload is the payload of SCHEDULE_OP_STATUS.
type ScheduleAckPayload struct {
	ScheduleID    string     `json:"scheduleId"`
	Status        ScheduleOp `json:"status"`
	Valid         bool       `json:"valid"`
	ErrorCode     string     `json:"errorCode,omitempty"`
	OriginalEvent *Event     `json:"originalEvent,omitempty"`
}

// ScheduleFiredPayload is the payload of SCHEDULE_NOTIFICATION. Payload holds
// the encoded ScheduleContext and is base64 in JSON.
type ScheduleFiredPayload struct {
	ScheduleID string `json:"scheduleId"`
	Payload    []byte `json:"payload"`
}

// ProfileChange is one changed attribute of a vehicle profile.
type ProfileChange struct {
	Key      string `json:"key"`
	OldValue string `json:"oldValue,omitempty"`
	NewValue string `json:"newValue,omitempty"`
}

// ProfileKeyUserID is the profile attribute holding the associated user.
const ProfileKeyUserID = "userId"

// ProfileChangedPayload is the payload of VEHICLE_PROFILE_CHANGED.
type ProfileChangedPayload struct {
	VehicleID string          `json:"vehicleId"`
	Changes   []ProfileChange `json:"changes"`
}

// NotificationPayload is the payload of GENERIC_NOTIFICATION.
type NotificationPayload struct {
	RequestID      string       `json:"requestId"`
	VehicleID      string       `json:"vehicleId"`
	UserID         string       `json:"userId,omitempty"`
	ResponseCode   ResponseCode `json:"responseCode"`
	NotificationID string       `json:"notificationId"`
}

// CreateSchedulePayload is the payload of CREATE_SCHEDULE.
type CreateSchedulePayload struct {
	RequestID           string     `json:"requestId"`
	DelayMs             int64      `json:"delayMs"`
	Recurrence          Recurrence `json:"recurrence"`
	NextExecutionTs     int64      `json:"nextExecutionTs"`
	NotificationPayload []byte     `json:"notificationPayload"`
}

// DeleteSchedulePayload is the payload of DELETE_SCHEDULE.
type DeleteSchedulePayload struct {
	ScheduleID string `json:"scheduleId"`
	RequestID  string `json:"requestId"`
}
