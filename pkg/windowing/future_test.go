package windowing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFuture_AwaitTimeout(t *testing.T) {
	w := newTestWindow(t, 2)
	ctx := context.Background()

	t.Run("timed_out", func(t *testing.T) {
		f, err := w.Offer(ctx, 1, "a", time.Second, 0, false)
		require.NoError(t, err)
		defer f.Cancel()

		ok, err := f.AwaitTimeout(ctx, 20*time.Millisecond)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, CallerWaitingTimedOut, f.CallerState())
		assert.False(t, f.IsDone())
	})

	t.Run("completed_while_waiting", func(t *testing.T) {
		f, err := w.Offer(ctx, 2, "b", time.Second, 0, false)
		require.NoError(t, err)

		go func() {
			time.Sleep(10 * time.Millisecond)
			w.Complete(2, "resp")
		}()

		ok, err := f.AwaitTimeout(ctx, 5*time.Second)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.True(t, f.IsSuccess())
		assert.Equal(t, CallerWaiting, f.CallerState())
	})

	t.Run("already_done", func(t *testing.T) {
		f, err := w.Offer(ctx, 3, "c", time.Second, 0, false)
		require.NoError(t, err)
		f.Fail(errors.New("gone"))

		ok, err := f.AwaitTimeout(ctx, 0)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("context_cancelled", func(t *testing.T) {
		f, err := w.Offer(ctx, 4, "d", time.Second, 0, false)
		require.NoError(t, err)
		defer f.Cancel()

		cctx, cancel := context.WithCancel(ctx)
		cancel()
		ok, err := f.AwaitTimeout(cctx, time.Second)
		assert.False(t, ok)
		assert.Equal(t, context.Canceled, err)
	})
}

func TestFuture_AwaitUsesRemainingOfferTime(t *testing.T) {
	w := newTestWindow(t, 1)
	ctx := context.Background()

	f, err := w.Offer(ctx, 1, "a", 30*time.Millisecond, 0, true)
	require.NoError(t, err)

	start := time.Now()
	ok, err := f.Await(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, time.Since(start) < time.Second)
	assert.Equal(t, CallerWaitingTimedOut, f.CallerState())
}

func TestFuture_FailWakesWaiter(t *testing.T) {
	w := newTestWindow(t, 1)
	ctx := context.Background()
	cause := errors.New("channel closed")

	f, err := w.Offer(ctx, 1, "a", 10*time.Second, 0, true)
	require.NoError(t, err)

	go func() {
		time.Sleep(10 * time.Millisecond)
		w.FailAll(cause)
	}()

	start := time.Now()
	ok, err := f.Await(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, time.Since(start) < time.Second)
	assert.Equal(t, cause, f.Cause())
	_, hasResp := f.Response()
	assert.False(t, hasResp)
}

func TestCallerState_String(t *testing.T) {
	assert.Equal(t, "NOT_WAITING", CallerNotWaiting.String())
	assert.Equal(t, "WAITING", CallerWaiting.String())
	assert.Equal(t, "WAITING_TIMED_OUT", CallerWaitingTimedOut.String())
}
