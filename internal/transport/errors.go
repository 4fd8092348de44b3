package transport

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidParams       = errors.New("transport: invalid params")
	ErrUnsupported         = errors.New("transport: link not supported on this platform")
	ErrConnectionMismatch  = errors.New("transport: discovered brick does not match requested host")
	ErrInvalidAnnouncement = errors.New("transport: invalid discovery announcement")
	ErrHandshakeRejected   = errors.New("transport: unlock handshake rejected")
	ErrAmbiguousDevice     = errors.New("transport: multiple bricks found, host required")
	ErrDeviceNotFound      = errors.New("transport: brick not found")
	ErrFrameTooLarge       = errors.New("transport: frame exceeds receive buffer")
)

// LinkError is the uniform failure of a transport operation.
type LinkError struct {
	Kind Kind   // Link that failed
	Op   string // "connect", "handshake", "send", "receive", "close"
	Err  error
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("transport: %s %s: %v", e.Kind, e.Op, e.Err)
}

func (e *LinkError) Unwrap() error {
	return e.Err
}

func linkErr(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	var le *LinkError
	if errors.As(err, &le) {
		return err
	}
	return &LinkError{Kind: kind, Op: op, Err: err}
}

// AsLinkError extracts a LinkError from an error chain, if present.
func AsLinkError(err error) (*LinkError, bool) {
	var le *LinkError
	if errors.As(err, &le) {
		return le, true
	}
	return nil, false
}
