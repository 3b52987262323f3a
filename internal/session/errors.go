package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/neuroforge/trainlink/internal/protocol"
)

var (
	ErrNotConnected = errors.New("session: not connected")
	ErrClientClosed = errors.New("session: client closed")
	ErrHostRequired = errors.New("session: host required")
)

// TransportError is a connection-level failure before or around open.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("session: transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// TimeoutError reports that no matching response arrived inside the
// request window.
type TimeoutError struct {
	Command protocol.CommandType
	After   time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("session: %s request timed out after %s", e.Command, e.After)
}

// RemoteError carries a failure the remote endpoint signaled in a
// response payload.
type RemoteError struct {
	Command   protocol.CommandType
	Message   string
	ErrorCode string
}

func (e *RemoteError) Error() string {
	if e.ErrorCode != "" {
		return fmt.Sprintf("session: remote %s failed: %s (code=%s)", e.Command, e.Message, e.ErrorCode)
	}
	return fmt.Sprintf("session: remote %s failed: %s", e.Command, e.Message)
}
