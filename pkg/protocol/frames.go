package protocol

import (
	"encoding/json"
	"time"
)

// ProtocolVersion is bumped only for incompatible frame changes. New optional
// fields do not bump it.
const ProtocolVersion = 1

// RequestFrame is an inbound client request. ID correlates the eventual
// ResponseFrame; it must be unique per connection among in-flight requests.
type RequestFrame struct {
	Type   string          `json:"type,omitempty"`
	ID     string          `json:"requestId"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// ResponseFrame is the correlated reply to a RequestFrame. Exactly one is
// emitted per request unless the connection drops mid-flight.
type ResponseFrame struct {
	Type    string        `json:"type"`
	ID      string        `json:"requestId"`
	Success bool          `json:"success"`
	Result  interface{}   `json:"result,omitempty"`
	Error   *ErrorPayload `json:"error,omitempty"`
}

// EventFrame is an uncorrelated broadcast notification. Type carries the
// event name ("health", "presence", ...); Seq is a monotonic global counter
// so clients can detect gaps.
type EventFrame struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload,omitempty"`
	Seq       uint64      `json:"seq"`
	Timestamp int64       `json:"timestamp"`
}

// Frame discriminators for correlated frames. Event frames carry the event
// name in type instead; anything that is not a response is an event on the
// client side.
const (
	FrameRequest  = "request"
	FrameResponse = "response"
)

// NewOKResponse builds a success response for a request id.
func NewOKResponse(id string, result interface{}) *ResponseFrame {
	return &ResponseFrame{Type: FrameResponse, ID: id, Success: true, Result: result}
}

// NewErrorResponse builds a failure response with a typed error code.
func NewErrorResponse(id string, code string, message string) *ResponseFrame {
	return &ResponseFrame{
		Type:    FrameResponse,
		ID:      id,
		Success: false,
		Error:   &ErrorPayload{Code: code, Message: message},
	}
}

// NewEvent builds an event frame with the current timestamp. Seq is assigned
// by the gateway at broadcast time.
func NewEvent(event string, payload interface{}) *EventFrame {
	return &EventFrame{
		Type:      event,
		Payload:   payload,
		Timestamp: time.Now().UnixMilli(),
	}
}
