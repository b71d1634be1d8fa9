package session

import (
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/skycoin/sgip/pkg/sgip"
)

var (
	// ErrChannelClosed fails requests still awaited when the transport
	// goes down.
	ErrChannelClosed = errors.New("channel closed")

	// ErrResponseTimeout is the cause of a TimeoutError raised while
	// awaiting a response.
	ErrResponseTimeout = errors.New("response timeout")

	// ErrRequestCancelled is the cause of a RecoverableError returned when
	// a request was cancelled before its response arrived.
	ErrRequestCancelled = errors.New("request cancelled")

	// ErrUnexpectedResponse is returned when a response of the wrong
	// variant completes a request.
	ErrUnexpectedResponse = errors.New("unexpected response type")
)

// TimeoutError is returned when a request cannot be sent or answered in
// time.
type TimeoutError struct {
	Request sgip.Request
	Timeout time.Duration
	Err     error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%v: unable to get response within [%s] for %s", e.Err, e.Timeout, e.Request.CommandID())
}

// Cause implements the github.com/pkg/errors causer.
func (e *TimeoutError) Cause() error { return e.Err }

// Unwrap returns the underlying error.
func (e *TimeoutError) Unwrap() error { return e.Err }

// ChannelError reports a transport level failure.
type ChannelError struct {
	Msg string
	Err error
}

func (e *ChannelError) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	return e.Msg + ": " + e.Err.Error()
}

// Cause implements the github.com/pkg/errors causer.
func (e *ChannelError) Cause() error { return e.Err }

// Unwrap returns the underlying error.
func (e *ChannelError) Unwrap() error { return e.Err }

// BindRejectedError is returned by Bind when the gateway answers with a
// non zero result, or with something other than a BindResp.
type BindRejectedError struct {
	Resp sgip.Response
}

func (e *BindRejectedError) Error() string {
	if r, ok := e.Resp.(*sgip.BindResp); ok {
		return fmt.Sprintf("bind rejected with result [0x%02X]", r.Result)
	}
	return fmt.Sprintf("bind rejected: unexpected response %v", e.Resp)
}

// IsTimeout reports whether err is, or wraps, a TimeoutError.
func IsTimeout(err error) bool {
	var e *TimeoutError
	return errors.As(err, &e)
}

// IsChannelError reports whether err is, or wraps, a ChannelError.
func IsChannelError(err error) bool {
	var e *ChannelError
	return errors.As(err, &e)
}
