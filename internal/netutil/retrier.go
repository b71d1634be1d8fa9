// Package netutil holds network helpers shared by the client.
package netutil

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/skycoin/skycoin/src/util/logging"
)

// ErrThresholdReached is returned when attempts keep failing past the
// retry threshold. The last attempt's error is wrapped in it.
var ErrThresholdReached = errors.New("threshold timeout has been reached")

// RetryFunc is one attempt.
type RetryFunc func(ctx context.Context) error

// Retrier repeats a failing attempt with exponential backoff until it
// succeeds, fails with a final error or the threshold passes.
type Retrier struct {
	backoff   time.Duration
	factor    uint32
	threshold time.Duration
	final     func(error) bool
	log       logrus.FieldLogger
}

// NewRetrier returns a Retrier waiting backoff after the first failure and
// multiplying the wait by factor after each further one. No attempt starts
// once threshold has passed since the first failure.
func NewRetrier(backoff, threshold time.Duration, factor uint32) *Retrier {
	return &Retrier{
		backoff:   backoff,
		factor:    factor,
		threshold: threshold,
		final:     func(error) bool { return false },
		log:       logging.MustGetLogger("retrier"),
	}
}

// WithFinalErrors makes errors matching final stop the retries at once.
func (r *Retrier) WithFinalErrors(final func(error) bool) *Retrier {
	r.final = final
	return r
}

// WithLogger sets the logger failures are reported to.
func (r *Retrier) WithLogger(l logrus.FieldLogger) *Retrier {
	r.log = l
	return r
}

// Do runs f until it returns nil. A done ctx ends the retries with the
// context error.
func (r *Retrier) Do(ctx context.Context, f RetryFunc) error {
	var deadline time.Time
	backoff := r.backoff

	for attempt := 1; ; attempt++ {
		err := f(ctx)
		if err == nil || r.final(err) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		now := time.Now()
		if deadline.IsZero() {
			deadline = now.Add(r.threshold)
		}
		if !now.Add(backoff).Before(deadline) {
			return errors.Wrapf(ErrThresholdReached, "after %d attempts: %v", attempt, err)
		}
		r.log.WithError(err).Warnf("Attempt %d failed, retrying in %s", attempt, backoff)

		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		backoff *= time.Duration(r.factor)
	}
}
