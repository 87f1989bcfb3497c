package model

// ResponseCode is the outcome reported by a response.
type ResponseCode string

const (
	CodeSuccess                     ResponseCode = "SUCCESS"
	CodeFail                        ResponseCode = "FAIL"
	CodeSuccessContinue             ResponseCode = "SUCCESS_CONTINUE"
	CodeCustomExtension             ResponseCode = "CUSTOM_EXTENSION"
	CodeTimeOut                     ResponseCode = "TIME_OUT"
	CodeFailMessageDeliveryTimedOut ResponseCode = "FAIL_MESSAGE_DELIVERY_TIMED_OUT"
	CodeFailVehicleNotConnected     ResponseCode = "FAIL_VEHICLE_NOT_CONNECTED"
	CodeFailDeliveryRetriesExceeded ResponseCode = "FAIL_DELIVERY_RETRIES_EXCEEDED"
)

// IsContinue reports whether the code marks an intermediate step.
func (c ResponseCode) IsContinue() bool {
	return c == CodeSuccessContinue
}

// IsSuccess reports whether a final code is a success.
func (c ResponseCode) IsSuccess() bool {
	return c == CodeSuccess || c == CodeCustomExtension
}

// IsFinal reports whether the code closes a request.
func (c ResponseCode) IsFinal() bool {
	return c != "" && !c.IsContinue()
}

// Status is the derived state of a request. The empty status means open.
type Status string

const (
	StatusOpen             Status = ""
	StatusPending          Status = "PENDING"
	StatusProcessedSuccess Status = "PROCESSED_SUCCESS"
	StatusProcessedFailed  Status = "PROCESSED_FAILED"
	StatusTTLExpired       Status = "TTL_EXPIRED"
)

// IsTerminal reports whether the request is done.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusProcessedSuccess, StatusProcessedFailed, StatusTTLExpired:
		return true
	}
	return false
}

// RCPDStatus is the value kept in the RCPD status cache.
type RCPDStatus string

const (
	RCPDPending  RCPDStatus = "PENDING"
	RCPDActive   RCPDStatus = "ACTIVE"
	RCPDFailed   RCPDStatus = "FAILED"
	RCPDTimedOut RCPDStatus = "TIMED_OUT"
)

// RCPDStatusFor maps a final response code to the RCPD status it leaves behind.
func RCPDStatusFor(code ResponseCode) RCPDStatus {
	switch {
	case code.IsSuccess():
		return RCPDActive
	case code == CodeTimeOut:
		return RCPDTimedOut
	default:
		return RCPDFailed
	}
}
