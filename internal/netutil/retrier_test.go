package netutil

import (
	"context"
	"errors"
	"log"
	"os"
	"testing"
	"time"

	"github.com/skycoin/skycoin/src/util/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	loggingLevel, ok := os.LookupEnv("TEST_LOGGING_LEVEL")
	if ok {
		lvl, err := logging.LevelFromString(loggingLevel)
		if err != nil {
			log.Fatal(err)
		}
		logging.SetLevel(lvl)
	} else {
		logging.Disable()
	}

	os.Exit(m.Run())
}

func TestRetrier_Do(t *testing.T) {
	r := NewRetrier(10*time.Millisecond, 200*time.Millisecond, 2)
	foo := errors.New("foo")

	failUntil := func(n int, calls *int) RetryFunc {
		return func(context.Context) error {
			*calls++
			if *calls >= n {
				return nil
			}
			return foo
		}
	}

	t.Run("should retry", func(t *testing.T) {
		var calls int
		require.NoError(t, r.Do(context.Background(), failUntil(3, &calls)))
		assert.Equal(t, 3, calls)
	})

	t.Run("if retry reaches threshold should error", func(t *testing.T) {
		var calls int
		err := r.Do(context.Background(), failUntil(100, &calls))
		require.True(t, errors.Is(err, ErrThresholdReached))
		assert.Contains(t, err.Error(), "foo")
		assert.Less(t, calls, 100)
	})

	t.Run("should return final errors instead of retry", func(t *testing.T) {
		bar := errors.New("bar")
		fr := NewRetrier(10*time.Millisecond, time.Second, 2).
			WithFinalErrors(func(err error) bool { return errors.Is(err, bar) })

		var calls int
		err := fr.Do(context.Background(), func(context.Context) error {
			calls++
			return bar
		})
		assert.Equal(t, bar, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("should stop on context done", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		var calls int
		err := NewRetrier(time.Hour, 2*time.Hour, 2).Do(ctx, func(context.Context) error {
			calls++
			cancel()
			return foo
		})
		assert.Equal(t, context.Canceled, err)
		assert.Equal(t, 1, calls)
	})
}
