package navcomm

import (
	"errors"
)

type unrecoverableError struct {
	error
}

func (e unrecoverableError) Error() string {
	if e.error == nil {
		return "unrecoverable error"
	}
	return e.error.Error()
}

func (e unrecoverableError) Unwrap() error {
	return e.error
}

// Unrecoverable wraps an error in `unrecoverableError` struct. Drivers do not
// retry connecting after an unrecoverable error.
func Unrecoverable(err error) error {
	return unrecoverableError{err}
}

// IsRecoverable checks if error is an instance of `unrecoverableError`
func IsRecoverable(err error) bool {
	var ue unrecoverableError
	return !errors.As(err, &ue)
}

var (
	ErrUnsupported  = errors.New("unsupported transport/protocol combination")
	ErrClosed       = errors.New("driver closed")
	ErrAlreadyOpen  = errors.New("driver already open")
	ErrNotConnected = errors.New("driver not connected")
	ErrNoRoute      = errors.New("no active driver for destination")
	ErrWrongPayload = errors.New("payload does not match driver protocol")
	ErrDecode       = errors.New("decode error")
	ErrDroppedUnit  = errors.New("dispatch queue full, unit dropped")
	ErrNilDriver    = errors.New("driver is nil")
	ErrBusClosed    = errors.New("message bus closed")
)
