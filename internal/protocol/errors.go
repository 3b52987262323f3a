package protocol

import "errors"

var (
	ErrMalformedEnvelope  = errors.New("protocol: malformed envelope")
	ErrEnvelopeTooLarge   = errors.New("protocol: envelope too large")
	ErrUnknownMessageType = errors.New("protocol: unknown message type")
	ErrUnknownCommandType = errors.New("protocol: unknown command type")
	ErrMissingPayload     = errors.New("protocol: missing payload")
	ErrInvalidCommand     = errors.New("protocol: invalid command payload")
	ErrInvalidModel       = errors.New("protocol: invalid model definition")
)
