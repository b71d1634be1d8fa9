// Package windowing correlates in-flight requests with their responses and
// bounds how many requests may be outstanding at once.
package windowing

import (
	"cmp"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/skycoin/skycoin/src/util/logging"
)

var log = logging.MustGetLogger("windowing")

var (
	// ErrDuplicateKey is returned by Offer when the key is already outstanding.
	ErrDuplicateKey = errors.New("key already exists in the window")

	// ErrOfferTimeout is returned by Offer when no slot freed in time.
	ErrOfferTimeout = errors.New("unable to accept offer within timeout (window full)")

	// ErrPendingOfferAborted is returned to offers waiting for a slot when
	// AbortPendingOffers is called.
	ErrPendingOfferAborted = errors.New("pending offer aborted")

	// ErrInvalidSize is returned by NewWindow for a non-positive size.
	ErrInvalidSize = errors.New("window size must be > 0")

	// ErrNegativeTimeout is returned by Offer for a negative offer timeout.
	ErrNegativeTimeout = errors.New("offer timeout must be >= 0")
)

// Listener observes a Window. Listeners are registered with Subscribe and
// must be removed with Unsubscribe by their owner.
type Listener[K cmp.Ordered, Req, Resp any] interface {
	Expired(f *Future[K, Req, Resp])
}

// Window is a fixed capacity table of outstanding requests keyed by K.
// All mutations happen under one mutex; waiters for a free slot are woken
// together whenever a request leaves the window.
type Window[K cmp.Ordered, Req, Resp any] struct {
	maxSize int

	mu            sync.Mutex
	futures       map[K]*Future[K, Req, Resp]
	changed       chan struct{} // closed and replaced on every removal
	pendingOffers int
	offersAborted bool

	lmu       sync.RWMutex
	listeners []Listener[K, Req, Resp]

	monMu   sync.Mutex
	monStop chan struct{}
	monDone chan struct{}
}

// NewWindow creates a Window admitting at most size outstanding requests.
func NewWindow[K cmp.Ordered, Req, Resp any](size int) (*Window[K, Req, Resp], error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}
	return &Window[K, Req, Resp]{
		maxSize: size,
		futures: make(map[K]*Future[K, Req, Resp], size*2),
		changed: make(chan struct{}),
	}, nil
}

// MaxSize returns the capacity of the window.
func (w *Window[K, Req, Resp]) MaxSize() int { return w.maxSize }

// Size returns the number of outstanding requests.
func (w *Window[K, Req, Resp]) Size() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.futures)
}

// FreeSize returns the number of free slots.
func (w *Window[K, Req, Resp]) FreeSize() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.maxSize - len(w.futures)
}

// ContainsKey reports whether key is outstanding.
func (w *Window[K, Req, Resp]) ContainsKey(key K) bool {
	w.mu.Lock()
	_, ok := w.futures[key]
	w.mu.Unlock()
	return ok
}

// Get returns the outstanding future for key or nil.
func (w *Window[K, Req, Resp]) Get(key K) *Future[K, Req, Resp] {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.futures[key]
}

// PendingOfferCount returns the number of offers waiting for a free slot.
func (w *Window[K, Req, Resp]) PendingOfferCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pendingOffers
}

// SortedSnapshot returns the outstanding futures ordered by key.
func (w *Window[K, Req, Resp]) SortedSnapshot() []*Future[K, Req, Resp] {
	w.mu.Lock()
	out := make([]*Future[K, Req, Resp], 0, len(w.futures))
	for _, f := range w.futures {
		out = append(out, f)
	}
	w.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].key < out[j].key })
	return out
}

// Subscribe registers l for expiry notifications. Registering the same
// listener twice has no effect.
func (w *Window[K, Req, Resp]) Subscribe(l Listener[K, Req, Resp]) {
	w.lmu.Lock()
	defer w.lmu.Unlock()
	for _, existing := range w.listeners {
		if existing == l {
			return
		}
	}
	w.listeners = append(w.listeners, l)
}

// Unsubscribe removes l.
func (w *Window[K, Req, Resp]) Unsubscribe(l Listener[K, Req, Resp]) {
	w.lmu.Lock()
	defer w.lmu.Unlock()
	for i, existing := range w.listeners {
		if existing == l {
			w.listeners = append(w.listeners[:i], w.listeners[i+1:]...)
			return
		}
	}
}

func (w *Window[K, Req, Resp]) subscribers() []Listener[K, Req, Resp] {
	w.lmu.RLock()
	defer w.lmu.RUnlock()
	return append([]Listener[K, Req, Resp](nil), w.listeners...)
}

// Offer admits a request under key. When the window is full it waits up to
// offerTimeout for a slot. A zero offerTimeout still admits immediately if
// a slot is free. A positive expireTimeout makes the request eligible for
// CancelAllExpired once it elapses after acceptance. callerWaiting seeds
// the caller state hint of the returned future.
func (w *Window[K, Req, Resp]) Offer(ctx context.Context, key K, req Req, offerTimeout, expireTimeout time.Duration,
	callerWaiting bool) (*Future[K, Req, Resp], error) {

	if offerTimeout < 0 {
		return nil, ErrNegativeTimeout
	}
	offerTime := time.Now()

	w.mu.Lock()
	if _, ok := w.futures[key]; ok {
		w.mu.Unlock()
		return nil, errors.Wrapf(ErrDuplicateKey, "key [%v]", key)
	}

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for len(w.futures) >= w.maxSize {
		elapsed := time.Since(offerTime)
		if elapsed >= offerTimeout {
			w.mu.Unlock()
			return nil, errors.Wrapf(ErrOfferTimeout, "waited %s", offerTimeout)
		}
		if w.offersAborted {
			w.mu.Unlock()
			return nil, ErrPendingOfferAborted
		}
		if timer == nil {
			timer = time.NewTimer(offerTimeout - elapsed)
		}

		changed := w.changed
		w.pendingOffers++
		w.mu.Unlock()

		select {
		case <-changed:
		case <-timer.C:
		case <-ctx.Done():
		}

		w.mu.Lock()
		if w.endPendingOffer() {
			w.mu.Unlock()
			return nil, ErrPendingOfferAborted
		}
		if err := ctx.Err(); err != nil {
			w.mu.Unlock()
			return nil, err
		}
	}
	defer w.mu.Unlock()

	// Another offer may have taken the key while we waited.
	if _, ok := w.futures[key]; ok {
		return nil, errors.Wrapf(ErrDuplicateKey, "key [%v]", key)
	}

	f := &Future[K, Req, Resp]{
		window:       w,
		key:          key,
		request:      req,
		offerTimeout: offerTimeout,
		windowSize:   len(w.futures) + 1,
		offerTime:    offerTime,
		acceptTime:   time.Now(),
		done:         make(chan struct{}),
	}
	if expireTimeout > 0 {
		f.expireTime = f.acceptTime.Add(expireTimeout)
	}
	if callerWaiting {
		f.setCallerState(CallerWaiting)
	}
	w.futures[key] = f
	return f, nil
}

// endPendingOffer must be called with mu held. It reports whether the
// waiting offer was aborted. The abort flag resets once no offer waits.
func (w *Window[K, Req, Resp]) endPendingOffer() bool {
	w.pendingOffers--
	aborted := w.offersAborted
	if w.pendingOffers == 0 {
		w.offersAborted = false
	}
	return aborted
}

// AbortPendingOffers fails every offer currently waiting for a slot with
// ErrPendingOfferAborted. It reports whether any offer was waiting.
func (w *Window[K, Req, Resp]) AbortPendingOffers() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pendingOffers == 0 {
		return false
	}
	w.offersAborted = true
	w.broadcast()
	return true
}

// broadcast wakes every waiter. Must be called with mu held.
func (w *Window[K, Req, Resp]) broadcast() {
	close(w.changed)
	w.changed = make(chan struct{})
}

// finish removes f (if it is still the one registered under its key),
// applies the terminal transition and wakes waiters. Must be called with mu
// held.
func (w *Window[K, Req, Resp]) finish(f *Future[K, Req, Resp], apply func(now time.Time) bool) bool {
	if cur, ok := w.futures[f.key]; ok && cur == f {
		delete(w.futures, f.key)
	}
	if !apply(time.Now()) {
		return false
	}
	w.broadcast()
	return true
}

func (w *Window[K, Req, Resp]) remove(key K, apply func(f *Future[K, Req, Resp], now time.Time) bool) *Future[K, Req, Resp] {
	w.mu.Lock()
	defer w.mu.Unlock()

	f, ok := w.futures[key]
	if !ok {
		return nil
	}
	w.finish(f, func(now time.Time) bool { return apply(f, now) })
	return f
}

// Complete finishes the request under key with resp. It returns the
// completed future, or nil if key is not outstanding.
func (w *Window[K, Req, Resp]) Complete(key K, resp Resp) *Future[K, Req, Resp] {
	return w.remove(key, func(f *Future[K, Req, Resp], now time.Time) bool {
		return f.setResponse(resp, now)
	})
}

// Fail finishes the request under key with cause. It returns the failed
// future, or nil if key is not outstanding.
func (w *Window[K, Req, Resp]) Fail(key K, cause error) *Future[K, Req, Resp] {
	if cause == nil {
		panic("windowing: nil cause, use Cancel instead")
	}
	return w.remove(key, func(f *Future[K, Req, Resp], now time.Time) bool {
		return f.setCause(cause, now)
	})
}

// Cancel finishes the request under key without response or cause. It
// returns the cancelled future, or nil if key is not outstanding.
func (w *Window[K, Req, Resp]) Cancel(key K) *Future[K, Req, Resp] {
	return w.remove(key, func(f *Future[K, Req, Resp], now time.Time) bool {
		return f.setCancelled(now)
	})
}

func (w *Window[K, Req, Resp]) removeAll(match func(f *Future[K, Req, Resp], now time.Time) bool,
	apply func(f *Future[K, Req, Resp], now time.Time) bool) []*Future[K, Req, Resp] {

	w.mu.Lock()
	defer w.mu.Unlock()

	var out []*Future[K, Req, Resp]
	now := time.Now()
	for key, f := range w.futures {
		if !match(f, now) {
			continue
		}
		delete(w.futures, key)
		apply(f, now)
		out = append(out, f)
	}
	if len(out) > 0 {
		w.broadcast()
	}
	return out
}

// FailAll fails every outstanding request with cause.
func (w *Window[K, Req, Resp]) FailAll(cause error) []*Future[K, Req, Resp] {
	return w.removeAll(
		func(*Future[K, Req, Resp], time.Time) bool { return true },
		func(f *Future[K, Req, Resp], now time.Time) bool { return f.setCause(cause, now) })
}

// CancelAll cancels every outstanding request.
func (w *Window[K, Req, Resp]) CancelAll() []*Future[K, Req, Resp] {
	return w.removeAll(
		func(*Future[K, Req, Resp], time.Time) bool { return true },
		func(f *Future[K, Req, Resp], now time.Time) bool { return f.setCancelled(now) })
}

// CancelAllExpired cancels every request whose expiry time has passed and
// returns them.
func (w *Window[K, Req, Resp]) CancelAllExpired() []*Future[K, Req, Resp] {
	return w.removeAll(
		func(f *Future[K, Req, Resp], now time.Time) bool {
			return f.HasExpireTime() && !now.Before(f.expireTime)
		},
		func(f *Future[K, Req, Resp], now time.Time) bool { return f.setCancelled(now) })
}

// Destroy aborts pending offers, cancels every outstanding request, drops
// all listeners and stops the monitor.
func (w *Window[K, Req, Resp]) Destroy() {
	w.AbortPendingOffers()
	if cancelled := w.CancelAll(); len(cancelled) > 0 {
		log.Debugf("Cancelled %d outstanding requests on destroy", len(cancelled))
	}
	w.lmu.Lock()
	w.listeners = nil
	w.lmu.Unlock()
	w.StopMonitor()
}
