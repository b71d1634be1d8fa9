package windowing

import (
	"cmp"
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// CallerState tells the receiving side whether anyone is blocked on a
// future, so that a late response can be told apart from an async one.
type CallerState int32

// Caller states.
const (
	CallerNotWaiting CallerState = iota
	CallerWaiting
	CallerWaitingTimedOut
)

func (s CallerState) String() string {
	switch s {
	case CallerNotWaiting:
		return "NOT_WAITING"
	case CallerWaiting:
		return "WAITING"
	case CallerWaitingTimedOut:
		return "WAITING_TIMED_OUT"
	default:
		return "UNKNOWN"
	}
}

// Future is the completion slot of one request admitted into a Window. It
// stays readable after the window forgets it.
type Future[K cmp.Ordered, Req, Resp any] struct {
	window *Window[K, Req, Resp]

	key          K
	request      Req
	offerTimeout time.Duration
	windowSize   int
	offerTime    time.Time
	acceptTime   time.Time
	expireTime   time.Time

	callerState int32

	mu          sync.Mutex
	response    Resp
	hasResponse bool
	cause       error
	doneTime    time.Time
	done        chan struct{}
}

// Key returns the window key.
func (f *Future[K, Req, Resp]) Key() K { return f.key }

// Request returns the request payload.
func (f *Future[K, Req, Resp]) Request() Req { return f.request }

// WindowSize returns the number of outstanding requests, this one
// included, at the time of acceptance.
func (f *Future[K, Req, Resp]) WindowSize() int { return f.windowSize }

// OfferTime returns when Offer was called.
func (f *Future[K, Req, Resp]) OfferTime() time.Time { return f.offerTime }

// AcceptTime returns when the request got a slot.
func (f *Future[K, Req, Resp]) AcceptTime() time.Time { return f.acceptTime }

// ExpireTime returns the expiry deadline, zero if the request never expires.
func (f *Future[K, Req, Resp]) ExpireTime() time.Time { return f.expireTime }

// HasExpireTime reports whether the request can expire.
func (f *Future[K, Req, Resp]) HasExpireTime() bool { return !f.expireTime.IsZero() }

// CallerState returns the caller state hint.
func (f *Future[K, Req, Resp]) CallerState() CallerState {
	return CallerState(atomic.LoadInt32(&f.callerState))
}

func (f *Future[K, Req, Resp]) setCallerState(s CallerState) {
	atomic.StoreInt32(&f.callerState, int32(s))
}

// IsCallerWaiting reports whether a caller is blocked on the future.
func (f *Future[K, Req, Resp]) IsCallerWaiting() bool { return f.CallerState() == CallerWaiting }

// Done returns a channel closed on the terminal transition.
func (f *Future[K, Req, Resp]) Done() <-chan struct{} { return f.done }

// IsDone reports whether the future reached a terminal state.
func (f *Future[K, Req, Resp]) IsDone() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// IsSuccess reports whether the future completed with a response.
func (f *Future[K, Req, Resp]) IsSuccess() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hasResponse
}

// IsCancelled reports whether the future finished with neither a response
// nor a cause.
func (f *Future[K, Req, Resp]) IsCancelled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.doneTime.IsZero() && !f.hasResponse && f.cause == nil
}

// Response returns the response and whether one was received.
func (f *Future[K, Req, Resp]) Response() (Resp, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.response, f.hasResponse
}

// Cause returns the failure cause, if any.
func (f *Future[K, Req, Resp]) Cause() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cause
}

// DoneTime returns when the future finished, zero while outstanding.
func (f *Future[K, Req, Resp]) DoneTime() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.doneTime
}

// OfferToAccept returns how long the request waited for a slot.
func (f *Future[K, Req, Resp]) OfferToAccept() time.Duration { return f.acceptTime.Sub(f.offerTime) }

// OfferToDone returns the time from offer to completion, -1 while outstanding.
func (f *Future[K, Req, Resp]) OfferToDone() time.Duration {
	done := f.DoneTime()
	if done.IsZero() {
		return -1
	}
	return done.Sub(f.offerTime)
}

// AcceptToDone returns the time from acceptance to completion, -1 while
// outstanding.
func (f *Future[K, Req, Resp]) AcceptToDone() time.Duration {
	done := f.DoneTime()
	if done.IsZero() {
		return -1
	}
	return done.Sub(f.acceptTime)
}

func (f *Future[K, Req, Resp]) terminate(now time.Time, set func()) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.doneTime.IsZero() {
		return false
	}
	set()
	f.doneTime = now
	close(f.done)
	return true
}

func (f *Future[K, Req, Resp]) setResponse(resp Resp, now time.Time) bool {
	return f.terminate(now, func() { f.response, f.hasResponse = resp, true })
}

func (f *Future[K, Req, Resp]) setCause(cause error, now time.Time) bool {
	return f.terminate(now, func() { f.cause = cause })
}

func (f *Future[K, Req, Resp]) setCancelled(now time.Time) bool {
	return f.terminate(now, func() {})
}

func (f *Future[K, Req, Resp]) finish(apply func(now time.Time) bool) {
	f.window.mu.Lock()
	defer f.window.mu.Unlock()
	f.window.finish(f, apply)
}

// Complete finishes the future with resp and removes it from its window.
// Calls after the first terminal transition have no effect.
func (f *Future[K, Req, Resp]) Complete(resp Resp) {
	f.finish(func(now time.Time) bool { return f.setResponse(resp, now) })
}

// Fail finishes the future with cause and removes it from its window.
func (f *Future[K, Req, Resp]) Fail(cause error) {
	if cause == nil {
		panic("windowing: nil cause, use Cancel instead")
	}
	f.finish(func(now time.Time) bool { return f.setCause(cause, now) })
}

// Cancel finishes the future without response and removes it from its window.
func (f *Future[K, Req, Resp]) Cancel() {
	f.finish(func(now time.Time) bool { return f.setCancelled(now) })
}

// Await waits for the time left of the original offer timeout once the
// slot wait is subtracted.
func (f *Future[K, Req, Resp]) Await(ctx context.Context) (bool, error) {
	return f.AwaitTimeout(ctx, f.offerTimeout-f.OfferToAccept())
}

// AwaitTimeout marks the caller as waiting and blocks until the future is
// done, timeout elapses or ctx is done. It returns false on timeout, after
// marking the caller as timed out. A done ctx returns its error.
func (f *Future[K, Req, Resp]) AwaitTimeout(ctx context.Context, timeout time.Duration) (bool, error) {
	f.setCallerState(CallerWaiting)
	if f.IsDone() {
		return true, nil
	}
	if timeout <= 0 {
		f.setCallerState(CallerWaitingTimedOut)
		return false, nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-f.done:
		return true, nil
	case <-timer.C:
		if f.IsDone() {
			return true, nil
		}
		f.setCallerState(CallerWaitingTimedOut)
		return false, nil
	case <-ctx.Done():
		if f.IsDone() {
			return true, nil
		}
		f.setCallerState(CallerWaitingTimedOut)
		return false, ctx.Err()
	}
}
