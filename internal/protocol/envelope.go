package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// MaxEnvelopeBytes bounds decode memory use for one inbound frame.
const MaxEnvelopeBytes = 4 * 1024 * 1024

// Envelope is one unit exchanged over the session channel.
//
// Timestamp is epoch milliseconds at creation, informational only; it is
// never used for ordering or expiry.
type Envelope struct {
	MessageType MessageType     `json:"messageType"`
	CommandType CommandType     `json:"commandType"`
	Data        json.RawMessage `json:"data,omitempty"`
	RequestID   string          `json:"requestId,omitempty"`
	Timestamp   int64           `json:"timestamp"`
}

// NewCommand builds a command envelope around an operation payload.
// A nil payload leaves the data leg empty (ping carries none).
func NewCommand(cmd CommandType, payload any, requestID string) (Envelope, error) {
	env := Envelope{
		MessageType: MessageCommand,
		CommandType: cmd,
		RequestID:   requestID,
		Timestamp:   time.Now().UnixMilli(),
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return Envelope{}, fmt.Errorf("%w: marshal %s payload: %v", ErrInvalidCommand, cmd, err)
		}
		env.Data = data
	}
	return env, nil
}

// NewResponse builds a response envelope, echoing the requestId it answers.
func NewResponse(cmd CommandType, payload any, requestID string) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: marshal %s payload: %v", ErrInvalidCommand, cmd, err)
	}
	return Envelope{
		MessageType: MessageResponse,
		CommandType: cmd,
		Data:        data,
		RequestID:   requestID,
		Timestamp:   time.Now().UnixMilli(),
	}, nil
}

// Validate checks the envelope discriminators. Unknown command types are
// accepted on purpose: an inbound push for an operation this build does not
// know is surfaced to subscribers, not rejected at the codec.
func (e Envelope) Validate() error {
	if !e.MessageType.Known() {
		return fmt.Errorf("%w: %q", ErrUnknownMessageType, e.MessageType)
	}
	if e.CommandType == "" {
		return fmt.Errorf("%w: empty", ErrUnknownCommandType)
	}
	return nil
}

func (e Envelope) Encode() ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(e)
}

// Decode parses one inbound frame into an Envelope.
func Decode(raw []byte) (Envelope, error) {
	if len(raw) > MaxEnvelopeBytes {
		return Envelope{}, ErrEnvelopeTooLarge
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if err := env.Validate(); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

// DecodeData unmarshals the payload leg into out.
func (e Envelope) DecodeData(out any) error {
	if len(e.Data) == 0 {
		return ErrMissingPayload
	}
	if err := json.Unmarshal(e.Data, out); err != nil {
		return fmt.Errorf("%w: %s payload: %v", ErrMalformedEnvelope, e.CommandType, err)
	}
	return nil
}

// StatusProbe is the slice of every response payload the session layer is
// allowed to inspect for correlation; the rest of the payload stays opaque.
type StatusProbe struct {
	Status    Status `json:"status"`
	Message   string `json:"message"`
	ErrorCode string `json:"errorCode"`
}

// ProbeStatus peeks at a response payload's status field. ok is false when
// the payload is absent or not an object.
func ProbeStatus(data json.RawMessage) (StatusProbe, bool) {
	if len(data) == 0 {
		return StatusProbe{}, false
	}
	var probe StatusProbe
	if err := json.Unmarshal(data, &probe); err != nil {
		return StatusProbe{}, false
	}
	return probe, true
}
