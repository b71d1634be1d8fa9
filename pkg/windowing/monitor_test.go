package windowing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingListener struct {
	mu      sync.Mutex
	expired map[uint32]int
}

func (l *recordingListener) Expired(f *Future[uint32, string, string]) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.expired == nil {
		l.expired = make(map[uint32]int)
	}
	l.expired[f.Key()]++
}

func (l *recordingListener) count(key uint32) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.expired[key]
}

type panickingListener struct{}

func (panickingListener) Expired(*Future[uint32, string, string]) { panic("listener failure") }

func TestWindow_Monitor(t *testing.T) {
	w := newTestWindow(t, 4)
	defer w.Destroy()

	l1, l2 := &recordingListener{}, &recordingListener{}
	w.Subscribe(&panickingListener{})
	w.Subscribe(l1)
	w.Subscribe(l2)
	w.Subscribe(l1)

	assert.False(t, w.StartMonitor(0))
	require.True(t, w.StartMonitor(5*time.Millisecond))

	ctx := context.Background()
	expiring, err := w.Offer(ctx, 1, "a", 0, 20*time.Millisecond, false)
	require.NoError(t, err)
	_, err = w.Offer(ctx, 2, "b", 0, time.Hour, false)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return l1.count(1) == 1 && l2.count(1) == 1 }, time.Second, time.Millisecond)
	assert.True(t, expiring.IsCancelled())
	assert.False(t, w.ContainsKey(1))
	assert.True(t, w.ContainsKey(2))

	// Later sweeps do not notify the same future again.
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, l1.count(1))
	assert.Equal(t, 1, l2.count(1))
	assert.Equal(t, 0, l1.count(2))
}

func TestWindow_MonitorUnsubscribe(t *testing.T) {
	w := newTestWindow(t, 2)
	defer w.Destroy()

	l := &recordingListener{}
	w.Subscribe(l)
	w.Unsubscribe(l)
	require.True(t, w.StartMonitor(2*time.Millisecond))

	_, err := w.Offer(context.Background(), 1, "a", 0, time.Millisecond, false)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return !w.ContainsKey(1) }, time.Second, time.Millisecond)
	assert.Equal(t, 0, l.count(1))
}

func TestWindow_StopMonitor(t *testing.T) {
	w := newTestWindow(t, 2)
	w.StopMonitor()

	require.True(t, w.StartMonitor(time.Millisecond))
	require.True(t, w.StartMonitor(time.Millisecond))
	w.StopMonitor()
	w.StopMonitor()

	f, err := w.Offer(context.Background(), 1, "a", 0, time.Millisecond, false)
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)
	assert.False(t, f.IsDone(), "no sweep runs after StopMonitor")
}
