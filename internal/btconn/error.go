package btconn

import (
	"errors"
	"fmt"
)

// Terminal failures of a handshake attempt.
var (
	// ErrUnreachable means the TCP connection could not be established.
	ErrUnreachable = errors.New("peer unreachable")
	// ErrShortRead means the peer did not send a complete handshake.
	ErrShortRead = errors.New("short handshake read")
	// ErrContentMismatch means the peer answered for a different info hash.
	ErrContentMismatch = errors.New("info hash mismatch")
)

// Error describes why a handshake with a peer failed.
type Error struct {
	Addr string
	// Kind is one of the Err* values of this package.
	Kind error
	// Err is the underlying error, if any.
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Err != e.Kind {
		return fmt.Sprintf("%s: %s: %s", e.Addr, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Addr, e.Kind)
}

// Is matches the failure kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

func newError(addr string, kind, err error) *Error {
	return &Error{Addr: addr, Kind: kind, Err: err}
}
