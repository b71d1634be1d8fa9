// Package testhelpers provides helpers for testing.
package testhelpers

import (
	"testing"
	"time"
)

// Timeout bounds every wait performed by this package.
const Timeout = 5 * time.Second

// WithinTimeout receives one value from ch, failing the test if none
// arrives within Timeout.
func WithinTimeout[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(Timeout):
		t.Fatalf("nothing received within %s", Timeout)
		var zero T
		return zero
	}
}

// Closed fails the test if ch is not closed within Timeout.
func Closed(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(Timeout):
		t.Fatalf("channel not closed within %s", Timeout)
	}
}
