package paths

// Topic segments of the remote-operations event streams.
// Every topic is {root}/{segment}/{vehicleID}; the vehicle id doubles as the partition key.

// GroupProcessor is the shared subscription group of all processor replicas.
const GroupProcessor = "ro-processor"

// Inbound: streams consumed by the processor.
const (
	// RoRequest carries RO_REQUEST events produced by the API layer.
	// Pattern: {root}/ro/request/{vehicleID}
	RoRequest = "ro/request"

	// RoResponse carries RO_RESPONSE events from devices and backends.
	// Pattern: {root}/ro/response/{vehicleID}
	RoResponse = "ro/response"

	// DeviceFailure carries DEVICE_MESSAGE_FAILURE events from the device router.
	// Pattern: {root}/device/failure/{vehicleID}
	DeviceFailure = "device/failure"

	// ScheduleStatus carries SCHEDULE_OP_STATUS acknowledgements.
	// Pattern: {root}/schedule/status/{vehicleID}
	ScheduleStatus = "schedule/status"

	// ScheduleNotification carries SCHEDULE_NOTIFICATION fire callbacks.
	// Pattern: {root}/schedule/notification/{vehicleID}
	ScheduleNotification = "schedule/notification"

	// VehicleProfile carries VEHICLE_PROFILE_CHANGED events.
	// Pattern: {root}/vehicle/profile/{vehicleID}
	VehicleProfile = "vehicle/profile"
)

// Outbound: streams produced by the processor.
const (
	// DeviceCommand receives enriched RO_REQUEST events for device delivery.
	// Pattern: {root}/device/command/{vehicleID}
	DeviceCommand = "device/command"

	// Forward receives correlated responses; the qualifier is appended as a sub-segment.
	// Pattern: {root}/ro/forward/{qualifier}/{vehicleID}
	Forward = "ro/forward"

	// Notification receives GENERIC_NOTIFICATION events; the sink is appended as a sub-segment.
	// Pattern: {root}/notification/{sink}/{vehicleID}
	Notification = "notification"

	// ScheduleCreate receives CREATE_SCHEDULE commands.
	// Pattern: {root}/schedule/create/{vehicleID}
	ScheduleCreate = "schedule/create"

	// ScheduleDelete receives DELETE_SCHEDULE commands.
	// Pattern: {root}/schedule/delete/{vehicleID}
	ScheduleDelete = "schedule/delete"
)

// Sub joins a segment with a dynamic sub-segment such as a qualifier or sink name.
func Sub(segment, name string) string {
	return segment + "/" + name
}
