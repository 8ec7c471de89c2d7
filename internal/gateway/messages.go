package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/stockpit/timersync/internal/models"
)

// MessageType represents the type of sync message
type MessageType string

const (
	MessageTypeSyncRequest    MessageType = "sync_request"
	MessageTypeTimerStarted   MessageType = "timer_started"
	MessageTypeTimerUpdated   MessageType = "timer_updated"
	MessageTypeTimerCompleted MessageType = "timer_completed"
	MessageTypeTimersSync     MessageType = "timers_sync"
)

// inboundTypes are the message types clients are allowed to send.
// timers_sync is outbound only.
var inboundTypes = map[MessageType]bool{
	MessageTypeSyncRequest:    true,
	MessageTypeTimerStarted:   true,
	MessageTypeTimerUpdated:   true,
	MessageTypeTimerCompleted: true,
}

// Message is the wire-level envelope exchanged with clients
type Message struct {
	Type     MessageType    `json:"type"`
	UserID   string         `json:"userId,omitempty"`
	DeviceID string         `json:"deviceId,omitempty"`
	Timer    *models.Timer  `json:"timer,omitempty"`
	Timers   []models.Timer `json:"timers,omitempty"`
}

// ErrorMessage is the reply sent for malformed or unrecognized input
type ErrorMessage struct {
	Error string `json:"error"`
}

// DecodeError reports why an inbound payload could not be decoded.
// It is always recoverable: the connection stays open and the client
// receives an ErrorMessage reply.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode message: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("decode message: %s", e.Reason)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// DecodeMessage parses raw inbound bytes into a typed Message.
// Unknown fields are ignored for forward compatibility. A missing or
// unrecognized type, or a missing userId/deviceId, fails decode.
func DecodeMessage(data []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, &DecodeError{Reason: "invalid message format", Err: err}
	}

	if !inboundTypes[m.Type] {
		return nil, &DecodeError{Reason: fmt.Sprintf("unrecognized message type %q", m.Type)}
	}

	if m.UserID == "" || m.DeviceID == "" {
		return nil, &DecodeError{Reason: "userId and deviceId are required"}
	}

	return &m, nil
}

// EncodeMessage serializes an outbound message. Marshaling a well-formed
// Message cannot fail; the error return exists so callers can log instead
// of sending garbage if a partially constructed Timer ever slips through.
func EncodeMessage(m *Message) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return data, nil
}

// encodeErrorMessage builds the error reply for a protocol violation
func encodeErrorMessage(reason string) []byte {
	data, _ := json.Marshal(ErrorMessage{Error: reason})
	return data
}
