package protocol

// Error codes carried in ResponseFrame.Error.Code.
const (
	ErrProtocol           = "PROTOCOL_ERROR"
	ErrUnknownMethod      = "UNKNOWN_METHOD"
	ErrChannelUnavailable = "CHANNEL_UNAVAILABLE"
	ErrUnknownSkill       = "UNKNOWN_SKILL"
	ErrPairingNotFound    = "PAIRING_NOT_FOUND"
	ErrAlreadyRunning     = "ALREADY_RUNNING"
	ErrConnectionClosing  = "CONNECTION_CLOSING"
	ErrStorageUnavailable = "STORAGE_UNAVAILABLE"
	ErrInvalidRequest     = "INVALID_REQUEST"
	ErrUnauthorized       = "UNAUTHORIZED"
	ErrNotFound           = "NOT_FOUND"
	ErrInternal           = "INTERNAL_ERROR"
)

// ErrorPayload is the error half of a ResponseFrame.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *ErrorPayload) Error() string {
	if e == nil {
		return ""
	}
	return e.Code + ": " + e.Message
}
