package sgip

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrInvalidLength is returned when a frame announces a commandLength
	// smaller than the header or larger than MaxFrameLen.
	ErrInvalidLength = errors.New("invalid PDU length")

	// ErrUnknownCommandID is the cause of a RecoverableError produced for
	// command ids with no registered PDU variant.
	ErrUnknownCommandID = errors.New("unsupported or unknown command id")

	// ErrInvalidField is the cause of encode failures for out of range fields.
	ErrInvalidField = errors.New("invalid PDU field")
)

// UnrecoverableError signals a codec failure after which the byte stream
// can no longer be trusted. The connection should be dropped.
type UnrecoverableError struct {
	PDU PDU // may be nil
	Err error
}

func (e *UnrecoverableError) Error() string {
	if e.PDU != nil {
		return fmt.Sprintf("unrecoverable PDU error: %v [%s]", e.Err, e.PDU.CommandID())
	}
	return "unrecoverable PDU error: " + e.Err.Error()
}

// Cause implements the github.com/pkg/errors causer.
func (e *UnrecoverableError) Cause() error { return e.Err }

// Unwrap returns the underlying error.
func (e *UnrecoverableError) Unwrap() error { return e.Err }

// RecoverableError signals a PDU that could not be processed while the
// stream itself is still in sync.
type RecoverableError struct {
	PDU PDU // partially decoded PDU, may be nil
	Err error
}

func (e *RecoverableError) Error() string {
	if e.PDU != nil {
		return fmt.Sprintf("recoverable PDU error: %v [%s]", e.Err, e.PDU.CommandID())
	}
	return "recoverable PDU error: " + e.Err.Error()
}

// Cause implements the github.com/pkg/errors causer.
func (e *RecoverableError) Cause() error { return e.Err }

// Unwrap returns the underlying error.
func (e *RecoverableError) Unwrap() error { return e.Err }

// IsUnrecoverable reports whether err is, or wraps, an UnrecoverableError.
func IsUnrecoverable(err error) bool {
	var e *UnrecoverableError
	return errors.As(err, &e)
}

// IsRecoverable reports whether err is, or wraps, a RecoverableError.
func IsRecoverable(err error) bool {
	var e *RecoverableError
	return errors.As(err, &e)
}

// IsUnknownCommandID reports whether err was raised for an unknown command id.
func IsUnknownCommandID(err error) bool {
	return errors.Is(err, ErrUnknownCommandID)
}

func unrecoverable(p PDU, err error) error {
	return &UnrecoverableError{PDU: p, Err: err}
}

func invalidField(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidField, format, args...)
}
