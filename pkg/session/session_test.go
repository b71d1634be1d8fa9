package session

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/skycoin/skycoin/src/util/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skycoin/sgip/pkg/sgip"
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

// fakeTransport decodes every written frame and hands it to onWrite.
type fakeTransport struct {
	mu       sync.Mutex
	written  []sgip.PDU
	closed   bool
	writeErr error
	onWrite  func(p sgip.PDU)
}

func (tp *fakeTransport) Write(b []byte) error {
	tp.mu.Lock()
	if tp.writeErr != nil {
		tp.mu.Unlock()
		return tp.writeErr
	}
	p, n, err := sgip.Decode(b)
	if err != nil {
		tp.mu.Unlock()
		return err
	}
	if n != len(b) {
		tp.mu.Unlock()
		return errors.New("short frame")
	}
	tp.written = append(tp.written, p)
	onWrite := tp.onWrite
	tp.mu.Unlock()

	if onWrite != nil {
		onWrite(p)
	}
	return nil
}

func (tp *fakeTransport) Close() error {
	tp.mu.Lock()
	tp.closed = true
	tp.mu.Unlock()
	return nil
}

func (tp *fakeTransport) IsActive() bool {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	return !tp.closed
}

func (tp *fakeTransport) setOnWrite(fn func(p sgip.PDU)) {
	tp.mu.Lock()
	tp.onWrite = fn
	tp.mu.Unlock()
}

func (tp *fakeTransport) sent() []sgip.PDU {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	return append([]sgip.PDU(nil), tp.written...)
}

type handlerEvents struct {
	closed     int
	requests   []sgip.Request
	expired    []sgip.Request
	async      []*AsyncPduResponse
	unexpected []sgip.Response
	errs       map[string][]error
}

type recordingHandler struct {
	*DefaultHandler

	mu sync.Mutex
	ev handlerEvents

	vetoDispatch bool
	vetoReceived bool
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{
		DefaultHandler: NewDefaultHandler(),
		ev:             handlerEvents{errs: make(map[string][]error)},
	}
}

func (h *recordingHandler) do(fn func(ev *handlerEvents)) {
	h.mu.Lock()
	fn(&h.ev)
	h.mu.Unlock()
}

func (h *recordingHandler) ChannelUnexpectedlyClosed() {
	h.do(func(ev *handlerEvents) { ev.closed++ })
}

func (h *recordingHandler) PduRequestReceived(req sgip.Request) sgip.Response {
	h.do(func(ev *handlerEvents) { ev.requests = append(ev.requests, req) })
	return h.DefaultHandler.PduRequestReceived(req)
}

func (h *recordingHandler) PduRequestExpired(req sgip.Request) {
	h.do(func(ev *handlerEvents) { ev.expired = append(ev.expired, req) })
}

func (h *recordingHandler) ExpectedPduResponseReceived(resp *AsyncPduResponse) {
	h.do(func(ev *handlerEvents) { ev.async = append(ev.async, resp) })
}

func (h *recordingHandler) UnexpectedPduResponseReceived(resp sgip.Response) {
	h.do(func(ev *handlerEvents) { ev.unexpected = append(ev.unexpected, resp) })
}

func (h *recordingHandler) addErr(kind string, err error) {
	h.do(func(ev *handlerEvents) { ev.errs[kind] = append(ev.errs[kind], err) })
}

func (h *recordingHandler) UnrecoverablePduError(err error) { h.addErr("unrecoverable", err) }
func (h *recordingHandler) RecoverablePduError(err error)   { h.addErr("recoverable", err) }
func (h *recordingHandler) UnknownError(err error)          { h.addErr("unknown", err) }

func (h *recordingHandler) PduReceived(sgip.PDU) bool { return !h.vetoReceived }
func (h *recordingHandler) PduDispatch(sgip.PDU) bool { return !h.vetoDispatch }

func (h *recordingHandler) snapshot() handlerEvents {
	h.mu.Lock()
	defer h.mu.Unlock()
	errs := make(map[string][]error, len(h.ev.errs))
	for k, v := range h.ev.errs {
		errs[k] = append([]error(nil), v...)
	}
	return handlerEvents{
		closed:     h.ev.closed,
		requests:   append([]sgip.Request(nil), h.ev.requests...),
		expired:    append([]sgip.Request(nil), h.ev.expired...),
		async:      append([]*AsyncPduResponse(nil), h.ev.async...),
		unexpected: append([]sgip.Response(nil), h.ev.unexpected...),
		errs:       errs,
	}
}

func newTestSession(t *testing.T, conf Config, h Handler, opts ...Option) (*Session, *fakeTransport) {
	tp := &fakeTransport{}
	s, err := New(conf, tp, h, opts...)
	require.NoError(t, err)
	t.Cleanup(s.Destroy)
	return s, tp
}

func testConfig() Config {
	conf := DefaultConfig()
	conf.SourceNodeID = 3000012345
	conf.LoginName = "sp"
	conf.LoginPassword = "secret"
	return conf
}

// answerWith replies to every request of the written type with the response
// built by fn.
func answerWith(s *Session, fn func(req sgip.Request) sgip.Response) func(p sgip.PDU) {
	return func(p sgip.PDU) {
		req, ok := p.(sgip.Request)
		if !ok {
			return
		}
		if resp := fn(req); resp != nil {
			s.PduReceived(resp)
		}
	}
}

func TestSession_Bind(t *testing.T) {
	ctx := context.Background()

	t.Run("accepted", func(t *testing.T) {
		h := newRecordingHandler()
		s, tp := newTestSession(t, testConfig(), h)
		tp.setOnWrite(answerWith(s, func(req sgip.Request) sgip.Response { return req.CreateResponse() }))

		require.True(t, s.IsOpen())
		resp, err := s.Bind(ctx, &sgip.Bind{LoginType: sgip.LoginSPToSMG, LoginName: "sp", LoginPassword: "secret"}, time.Second)
		require.NoError(t, err)
		assert.Equal(t, uint8(sgip.ResultOK), resp.Result)
		assert.True(t, s.IsBound())
		assert.False(t, s.BoundTime().IsZero())

		sent := tp.sent()
		require.Len(t, sent, 1)
		bind, ok := sent[0].(*sgip.Bind)
		require.True(t, ok)
		assert.Equal(t, "sp", bind.LoginName)
		assert.Equal(t, uint32(3000012345), bind.SourceNodeID())
		assert.Equal(t, uint32(0), bind.SequenceNumber())
		assert.NotZero(t, bind.Timestamp())
		assert.Equal(t, 0, s.Window().Size())
	})

	t.Run("rejected", func(t *testing.T) {
		h := newRecordingHandler()
		s, tp := newTestSession(t, testConfig(), h)
		tp.setOnWrite(answerWith(s, func(req sgip.Request) sgip.Response {
			resp := req.CreateResponse().(*sgip.BindResp)
			resp.Result = sgip.ResultInvalidLogin
			return resp
		}))

		_, err := s.Bind(ctx, &sgip.Bind{LoginName: "sp"}, time.Second)
		var rejected *BindRejectedError
		require.True(t, errors.As(err, &rejected))
		assert.Equal(t, "bind rejected with result [0x01]", err.Error())
		assert.True(t, s.IsClosed())
		assert.False(t, tp.IsActive())
	})

	t.Run("timeout", func(t *testing.T) {
		s, tp := newTestSession(t, testConfig(), newRecordingHandler())

		_, err := s.Bind(ctx, &sgip.Bind{LoginName: "sp"}, 20*time.Millisecond)
		require.Error(t, err)
		assert.True(t, IsTimeout(err))
		assert.True(t, errors.Is(err, ErrResponseTimeout))
		var timeoutErr *TimeoutError
		require.True(t, errors.As(err, &timeoutErr))
		assert.Equal(t, 20*time.Millisecond, timeoutErr.Timeout)
		assert.True(t, s.IsClosed())
		assert.False(t, tp.IsActive())
		assert.Equal(t, 0, s.Window().Size())
	})
}

func TestSession_CallerSequenceNumberIsKept(t *testing.T) {
	s, tp := newTestSession(t, testConfig(), newRecordingHandler())
	tp.setOnWrite(answerWith(s, func(req sgip.Request) sgip.Response { return req.CreateResponse() }))

	sub := sgip.NewSubmit("1065", "8613000000000", []byte("hello"))
	sub.SetSequenceNumber(77)
	sub.SetSourceNodeID(42)

	resp, err := s.Submit(context.Background(), sub, time.Second)
	require.NoError(t, err)
	assert.Equal(t, uint32(77), resp.SequenceNumber())

	sent := tp.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, uint32(77), sent[0].SequenceNumber())
	assert.Equal(t, uint32(42), sent[0].SourceNodeID())

	// The session counter is untouched by caller assigned numbers.
	_, err = s.Submit(context.Background(), sgip.NewSubmit("1065", "8613000000000", []byte("again")), time.Second)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), tp.sent()[1].SequenceNumber())
}

func TestSession_ChannelInactiveFailsWaitingCaller(t *testing.T) {
	h := newRecordingHandler()
	s, _ := newTestSession(t, testConfig(), h)

	errCh := make(chan error, 1)
	go func() {
		_, err := s.SendRequestAndGetResponse(context.Background(), sgip.NewSubmit("1065", "861", []byte("x")), 10*time.Second)
		errCh <- err
	}()

	require.Eventually(t, func() bool {
		f := s.Window().Get(0)
		return f != nil && f.IsCallerWaiting()
	}, time.Second, time.Millisecond)

	start := time.Now()
	s.ChannelInactive()

	select {
	case err := <-errCh:
		require.Error(t, err)
		assert.True(t, IsChannelError(err))
		assert.True(t, errors.Is(err, ErrChannelClosed))
	case <-time.After(5 * time.Second):
		t.Fatal("caller was not woken by channel close")
	}
	assert.True(t, time.Since(start) < 5*time.Second)
	assert.Equal(t, 1, h.snapshot().closed)
	assert.True(t, s.IsClosed())
}

func TestSession_ChannelInactiveAfterClose(t *testing.T) {
	h := newRecordingHandler()
	s, tp := newTestSession(t, testConfig(), h)

	require.NoError(t, s.Close())
	assert.False(t, tp.IsActive())
	s.ChannelInactive()

	assert.Equal(t, 0, h.snapshot().closed)
	assert.True(t, s.IsClosed())
}

func TestSession_ResponseRouting(t *testing.T) {
	ctx := context.Background()

	t.Run("async", func(t *testing.T) {
		h := newRecordingHandler()
		conf := testConfig()
		conf.WindowSize = 4
		s, tp := newTestSession(t, conf, h)

		f, err := s.SubmitAsync(ctx, sgip.NewSubmit("1065", "861", []byte("x")))
		require.NoError(t, err)
		require.Len(t, tp.sent(), 1)

		resp := f.Request().CreateResponse()
		s.PduReceived(resp)

		snap := h.snapshot()
		require.Len(t, snap.async, 1)
		assert.Equal(t, resp, snap.async[0].Response)
		assert.Equal(t, 1, snap.async[0].WindowSize)
		assert.True(t, f.IsSuccess())
		assert.Empty(t, snap.unexpected)
	})

	t.Run("unknown_sequence", func(t *testing.T) {
		h := newRecordingHandler()
		s, _ := newTestSession(t, testConfig(), h)

		resp := &sgip.SubmitResp{}
		resp.SetSequenceNumber(999)
		s.PduReceived(resp)

		snap := h.snapshot()
		require.Len(t, snap.unexpected, 1)
		assert.Equal(t, resp, snap.unexpected[0])
	})

	t.Run("late", func(t *testing.T) {
		h := newRecordingHandler()
		s, tp := newTestSession(t, testConfig(), h)

		_, err := s.Submit(ctx, sgip.NewSubmit("1065", "861", []byte("x")), 20*time.Millisecond)
		require.True(t, IsTimeout(err))

		sent := tp.sent()
		require.Len(t, sent, 1)
		s.PduReceived(sent[0].(sgip.Request).CreateResponse())

		snap := h.snapshot()
		assert.Len(t, snap.unexpected, 1)
		assert.Empty(t, snap.async)
	})
}

func TestSession_RequestReceived(t *testing.T) {
	deliver := func(seq uint32) *sgip.Deliver {
		d := &sgip.Deliver{UserNumber: "8613000000000", SPNumber: "1065", Content: []byte("hi")}
		d.SetSequenceNumber(seq)
		d.SetSourceNodeID(1)
		d.SetTimestamp(1019120000)
		return d
	}

	t.Run("inline", func(t *testing.T) {
		h := newRecordingHandler()
		s, tp := newTestSession(t, testConfig(), h)

		s.PduReceived(deliver(5))

		sent := tp.sent()
		require.Len(t, sent, 1)
		resp, ok := sent[0].(*sgip.DeliverResp)
		require.True(t, ok)
		assert.Equal(t, uint32(5), resp.SequenceNumber())
		assert.Equal(t, uint32(1), resp.SourceNodeID())
		assert.Equal(t, uint32(1019120000), resp.Timestamp())
		assert.Len(t, h.snapshot().requests, 1)
	})

	t.Run("pool", func(t *testing.T) {
		conf := testConfig()
		conf.HandlerPoolSize = 2
		h := newRecordingHandler()
		s, tp := newTestSession(t, conf, h)

		for i := uint32(0); i < 10; i++ {
			s.PduReceived(deliver(i))
		}
		require.Eventually(t, func() bool { return len(tp.sent()) == 10 }, 5*time.Second, time.Millisecond)
		assert.Len(t, h.snapshot().requests, 10)
	})

	t.Run("received_veto", func(t *testing.T) {
		h := newRecordingHandler()
		h.vetoReceived = true
		s, tp := newTestSession(t, testConfig(), h)

		s.PduReceived(deliver(6))
		assert.Empty(t, tp.sent())
		assert.Empty(t, h.snapshot().requests)
	})
}

func TestSession_DispatchVeto(t *testing.T) {
	h := newRecordingHandler()
	h.vetoDispatch = true
	s, tp := newTestSession(t, testConfig(), h)

	_, err := s.SendRequestAndGetResponse(context.Background(), sgip.NewSubmit("1065", "861", []byte("x")), time.Second)
	require.Error(t, err)
	assert.True(t, sgip.IsRecoverable(err))
	assert.True(t, errors.Is(err, ErrRequestCancelled))
	assert.Empty(t, tp.sent())
	assert.Equal(t, 0, s.Window().Size())

	resp := &sgip.DeliverResp{}
	require.NoError(t, s.SendResponsePdu(resp))
	assert.Empty(t, tp.sent())
}

func TestSession_WriteFailure(t *testing.T) {
	s, tp := newTestSession(t, testConfig(), newRecordingHandler())
	tp.writeErr = errors.New("broken pipe")

	_, err := s.SendRequestAndGetResponse(context.Background(), sgip.NewSubmit("1065", "861", []byte("x")), time.Second)
	require.Error(t, err)
	assert.True(t, IsChannelError(err))
	assert.Equal(t, 0, s.Window().Size())
}

func TestSession_RequestExpired(t *testing.T) {
	conf := testConfig()
	conf.RequestExpiryTimeout = Duration(20 * time.Millisecond)
	conf.WindowMonitorInterval = Duration(5 * time.Millisecond)
	h := newRecordingHandler()
	s, _ := newTestSession(t, conf, h)

	f, err := s.SubmitAsync(context.Background(), sgip.NewSubmit("1065", "861", []byte("x")))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(h.snapshot().expired) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, f.Request(), h.snapshot().expired[0])
	assert.True(t, f.IsCancelled())
}

func TestSession_ExceptionCaught(t *testing.T) {
	h := newRecordingHandler()
	s, _ := newTestSession(t, testConfig(), h)

	unrecoverable := &sgip.UnrecoverableError{Err: sgip.ErrInvalidLength}
	recoverable := &sgip.RecoverableError{Err: sgip.ErrUnknownCommandID}
	other := errors.New("connection reset")

	s.ExceptionCaught(unrecoverable)
	s.ExceptionCaught(recoverable)
	s.ExceptionCaught(other)

	snap := h.snapshot()
	assert.Equal(t, []error{unrecoverable}, snap.errs["unrecoverable"])
	assert.Equal(t, []error{recoverable}, snap.errs["recoverable"])
	assert.Equal(t, []error{other}, snap.errs["unknown"])

	require.NoError(t, s.Close())
	s.ExceptionCaught(other)
	assert.Len(t, h.snapshot().errs["unknown"], 1)
}

func TestSession_Unbind(t *testing.T) {
	h := newRecordingHandler()
	s, tp := newTestSession(t, testConfig(), h)
	tp.setOnWrite(answerWith(s, func(req sgip.Request) sgip.Response { return req.CreateResponse() }))

	_, err := s.Bind(context.Background(), &sgip.Bind{LoginName: "sp"}, time.Second)
	require.NoError(t, err)

	s.Unbind(context.Background(), time.Second)
	assert.True(t, s.IsClosed())
	assert.False(t, tp.IsActive())

	sent := tp.sent()
	require.Len(t, sent, 2)
	assert.Equal(t, sgip.CmdUnbind, sent[1].CommandID())

	s.ChannelInactive()
	assert.Equal(t, 0, h.snapshot().closed)
}

func TestSession_Destroy(t *testing.T) {
	conf := testConfig()
	conf.WindowSize = 2
	s, _ := newTestSession(t, conf, newRecordingHandler())

	f, err := s.SubmitAsync(context.Background(), sgip.NewSubmit("1065", "861", []byte("x")))
	require.NoError(t, err)

	s.Destroy()
	assert.True(t, f.IsCancelled())
	assert.True(t, s.IsClosed())
	assert.Equal(t, discardHandler, s.Handler())
}

func TestSession_LogStore(t *testing.T) {
	store := InMemoryLogStore()
	s, tp := newTestSession(t, testConfig(), newRecordingHandler(), SetLogStore(store))
	tp.setOnWrite(answerWith(s, func(req sgip.Request) sgip.Response { return req.CreateResponse() }))

	_, err := s.Bind(context.Background(), &sgip.Bind{LoginName: "sp"}, time.Second)
	require.NoError(t, err)

	entry, err := store.Entry(s.ID())
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, uint64(1), entry.SentPDUs)
	assert.Equal(t, uint64(sgip.HeaderLen+41), entry.SentBytes)
	assert.Equal(t, uint64(1), entry.ReceivedPDUs)
	assert.Equal(t, s.LogEntry(), *entry)
}

func TestNew_InvalidConfig(t *testing.T) {
	conf := testConfig()
	conf.WindowSize = 0
	_, err := New(conf, &fakeTransport{}, nil)
	require.Error(t, err)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "OPEN", StateOpen.String())
	assert.Equal(t, "BOUND", StateBound.String())
	assert.Equal(t, "CLOSED", StateClosed.String())
}
