package client

import (
	"fmt"
	"time"
)

// ConnectTimeoutError is returned when the gateway does not accept the TCP
// connection within the connect timeout.
type ConnectTimeoutError struct {
	Host    string
	Port    int
	Timeout time.Duration
	Err     error
}

func (e *ConnectTimeoutError) Error() string {
	return fmt.Sprintf("unable to connect to host [%s] and port [%d] within %s", e.Host, e.Port, e.Timeout)
}

// Unwrap returns the underlying error.
func (e *ConnectTimeoutError) Unwrap() error { return e.Err }

// ConnectError is returned for any other dial failure.
type ConnectError struct {
	Host string
	Port int
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("unable to connect to host [%s] and port [%d]: %v", e.Host, e.Port, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConnectError) Unwrap() error { return e.Err }
