package session

import (
	"errors"
	"fmt"
)

var (
	ErrNotConnected     = errors.New("session: no brick connected")
	ErrDuplicateCounter = errors.New("session: duplicate reply counter, protocol out of sync")
	ErrRetriesExhausted = errors.New("session: short read retries exhausted")
	ErrInvalidPolicy    = errors.New("session: invalid sync policy")
)

// DirectCommandError is a direct command the brick answered with an error.
type DirectCommandError struct {
	Counter uint16
	Status  byte // reply type byte, DirectReplyError for a plain failure
	Frame   []byte
}

func (e *DirectCommandError) Error() string {
	return fmt.Sprintf("session: direct command counter=%d replied error status=0x%02X", e.Counter, e.Status)
}

// SystemCommandError is a system command the brick answered with an error.
type SystemCommandError struct {
	Counter uint16
	Command byte // echoed system command
	Status  byte // system return status
	Frame   []byte
}

func (e *SystemCommandError) Error() string {
	return fmt.Sprintf("session: system command 0x%02X counter=%d replied error status=0x%02X", e.Command, e.Counter, e.Status)
}

func AsDirectCommandError(err error) (*DirectCommandError, bool) {
	var de *DirectCommandError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

func AsSystemCommandError(err error) (*SystemCommandError, bool) {
	var se *SystemCommandError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
