package windowing

import (
	"cmp"
	"time"
)

// StartMonitor runs a background sweep every interval that cancels
// expired requests and notifies subscribed listeners once per expired
// future. It returns false when interval is not positive. Starting an
// already running monitor has no effect.
func (w *Window[K, Req, Resp]) StartMonitor(interval time.Duration) bool {
	if interval <= 0 {
		return false
	}

	w.monMu.Lock()
	defer w.monMu.Unlock()
	if w.monStop != nil {
		return true
	}
	w.monStop = make(chan struct{})
	w.monDone = make(chan struct{})
	go w.monitor(interval, w.monStop, w.monDone)
	return true
}

// StopMonitor stops the sweep started by StartMonitor and waits for it to
// return.
func (w *Window[K, Req, Resp]) StopMonitor() {
	w.monMu.Lock()
	stop, done := w.monStop, w.monDone
	w.monStop, w.monDone = nil, nil
	w.monMu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (w *Window[K, Req, Resp]) monitor(interval time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			w.sweep()
		}
	}
}

func (w *Window[K, Req, Resp]) sweep() {
	expired := w.CancelAllExpired()
	if len(expired) == 0 {
		return
	}
	log.Debugf("Monitor found %d expired requests (window size %d)", len(expired), w.Size())

	listeners := w.subscribers()
	for _, f := range expired {
		for _, l := range listeners {
			notifyExpired(l, f)
		}
	}
}

func notifyExpired[K cmp.Ordered, Req, Resp any](l Listener[K, Req, Resp], f *Future[K, Req, Resp]) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("Ignoring panic in window listener")
		}
	}()
	l.Expired(f)
}
