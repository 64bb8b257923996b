package live

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned by Send before the connection is open.
	// Commands are never buffered.
	ErrNotConnected = errors.New("not connected")

	// ErrSessionClosed is returned after Close.
	ErrSessionClosed = errors.New("session closed")

	// ErrThrottled is returned when step commands arrive faster than allowed.
	ErrThrottled = errors.New("command throttled")

	// ErrUnsupported is returned when a command has no form in the session's dialect.
	ErrUnsupported = errors.New("command not supported by this session")
)

// TransportError means the connection failed to open or broke mid-session.
// The session is marked disconnected and is not retried.
type TransportError struct {
	Op  string // dial, read, write
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError means one inbound message could not be understood. The
// message is dropped and the session continues.
type ProtocolError struct {
	Type string // envelope type, empty if the envelope itself was malformed
	Err  error
}

func (e *ProtocolError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("malformed envelope: %v", e.Err)
	}
	return fmt.Sprintf("malformed %s payload: %v", e.Type, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }
