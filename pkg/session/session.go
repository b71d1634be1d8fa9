// Package session implements the SGIP session state machine on top of a
// send window.
package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/skycoin/skycoin/src/util/logging"

	"github.com/skycoin/sgip/internal/metrics"
	"github.com/skycoin/sgip/pkg/sgip"
	"github.com/skycoin/sgip/pkg/windowing"
)

var log = logging.MustGetLogger("session")

// State of a Session.
type State int32

// Session states.
const (
	StateOpen State = iota
	StateBinding
	StateBound
	StateUnbinding
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "OPEN"
	case StateBinding:
		return "BINDING"
	case StateBound:
		return "BOUND"
	case StateUnbinding:
		return "UNBINDING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Transport carries encoded frames. Inbound traffic reaches the session
// through PduReceived, ExceptionCaught and ChannelInactive.
type Transport interface {
	Write(b []byte) error
	Close() error
	IsActive() bool
}

// Future is a request outstanding in the send window.
type Future = windowing.Future[uint32, sgip.Request, sgip.Response]

type sendWindow = windowing.Window[uint32, sgip.Request, sgip.Response]

// Option configures a Session.
type Option func(s *Session) error

// SetLogger sets the logger of the session.
func SetLogger(l logrus.FieldLogger) Option {
	return func(s *Session) error {
		s.log = l
		return nil
	}
}

// SetRecorder sets the metrics recorder of the session.
func SetRecorder(m metrics.Recorder) Option {
	return func(s *Session) error {
		s.metrics = m
		return nil
	}
}

// SetLogStore sets the store receiving the traffic counters of the session.
func SetLogStore(ls LogStore) Option {
	return func(s *Session) error {
		s.store = ls
		return nil
	}
}

// Session is one bound (or binding) SGIP association over a Transport.
type Session struct {
	id   uuid.UUID
	conf Config
	tp   Transport
	log  logrus.FieldLogger

	state     int32
	seq       uint32
	boundTime int64

	window  *sendWindow
	expiry  *expiryListener
	pool    *ants.PoolWithFunc
	metrics metrics.Recorder
	store   LogStore

	hmu     sync.RWMutex
	handler Handler

	emu   sync.Mutex
	entry LogEntry

	destroyOnce sync.Once
}

// New creates a Session in the open state. A nil handler is replaced by a
// DefaultHandler.
func New(conf Config, tp Transport, handler Handler, opts ...Option) (*Session, error) {
	if err := conf.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid session config")
	}
	w, err := windowing.NewWindow[uint32, sgip.Request, sgip.Response](conf.WindowSize)
	if err != nil {
		return nil, err
	}
	if handler == nil {
		handler = NewDefaultHandler()
	}

	id := uuid.New()
	s := &Session{
		id:      id,
		conf:    conf,
		tp:      tp,
		log:     log,
		window:  w,
		metrics: metrics.NewDummy(),
		handler: handler,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.log = s.log.WithField("session", conf.Name).WithField("id", id)

	if conf.HandlerPoolSize > 0 {
		s.pool, err = ants.NewPoolWithFunc(conf.HandlerPoolSize, func(i interface{}) {
			s.processRequest(i.(sgip.Request))
		}, ants.WithPanicHandler(func(p interface{}) {
			s.log.WithField("panic", p).Error("Handler panicked while processing request")
		}))
		if err != nil {
			return nil, errors.Wrap(err, "failed to create handler pool")
		}
	}

	s.expiry = &expiryListener{s: s}
	w.Subscribe(s.expiry)
	if w.StartMonitor(conf.WindowMonitorInterval.D()) {
		s.log.Debugf("Window monitor started with interval %s", conf.WindowMonitorInterval)
	}
	return s, nil
}

// ID returns the unique id of the session.
func (s *Session) ID() uuid.UUID { return s.id }

// Config returns the session configuration.
func (s *Session) Config() Config { return s.conf }

// Window returns the send window.
func (s *Session) Window() *windowing.Window[uint32, sgip.Request, sgip.Response] { return s.window }

// State returns the current state.
func (s *Session) State() State { return State(atomic.LoadInt32(&s.state)) }

func (s *Session) setState(st State) {
	if old := State(atomic.SwapInt32(&s.state, int32(st))); old != st {
		s.log.Debugf("State changed %s -> %s", old, st)
	}
}

// IsOpen reports whether the session was created and never bound.
func (s *Session) IsOpen() bool { return s.State() == StateOpen }

// IsBinding reports whether a bind is in flight.
func (s *Session) IsBinding() bool { return s.State() == StateBinding }

// IsBound reports whether the session is bound.
func (s *Session) IsBound() bool { return s.State() == StateBound }

// IsUnbinding reports whether the session is going down.
func (s *Session) IsUnbinding() bool { return s.State() == StateUnbinding }

// IsClosed reports whether the session is closed.
func (s *Session) IsClosed() bool { return s.State() == StateClosed }

// BoundTime returns when the session got bound, zero if it never did.
func (s *Session) BoundTime() time.Time {
	ns := atomic.LoadInt64(&s.boundTime)
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Handler returns the current handler.
func (s *Session) Handler() Handler {
	s.hmu.RLock()
	h := s.handler
	s.hmu.RUnlock()
	if h == nil {
		return discardHandler
	}
	return h
}

var discardHandler Handler = &DefaultHandler{Log: logging.MustGetLogger("session-handler")}

// LogEntry returns a snapshot of the traffic counters.
func (s *Session) LogEntry() LogEntry {
	s.emu.Lock()
	defer s.emu.Unlock()
	return s.entry
}

func (s *Session) record(update func(e *LogEntry)) {
	s.emu.Lock()
	update(&s.entry)
	entry := s.entry
	s.emu.Unlock()

	if s.store != nil {
		if err := s.store.Record(s.id, &entry); err != nil {
			s.log.WithError(err).Warn("Failed to record log entry")
		}
	}
}

// Bind sends req and waits for the answer. The session is bound on a zero
// result; on any failure it is closed.
func (s *Session) Bind(ctx context.Context, req *sgip.Bind, timeout time.Duration) (*sgip.BindResp, error) {
	s.setState(StateBinding)

	resp, err := s.SendRequestAndGetResponse(ctx, req, timeout)
	if err != nil {
		s.closeQuietly()
		return nil, err
	}
	bindResp, ok := resp.(*sgip.BindResp)
	if !ok || bindResp.Result != sgip.ResultOK {
		s.closeQuietly()
		return bindResp, &BindRejectedError{Resp: resp}
	}

	atomic.StoreInt64(&s.boundTime, time.Now().UnixNano())
	s.setState(StateBound)
	s.log.Info("Session bound")
	return bindResp, nil
}

// Submit sends req and waits for its SubmitResp.
func (s *Session) Submit(ctx context.Context, req *sgip.Submit, timeout time.Duration) (*sgip.SubmitResp, error) {
	resp, err := s.SendRequestAndGetResponse(ctx, req, timeout)
	if err != nil {
		return nil, err
	}
	submitResp, ok := resp.(*sgip.SubmitResp)
	if !ok {
		return nil, errors.Wrapf(ErrUnexpectedResponse, "got %s for SUBMIT", resp.CommandID())
	}
	return submitResp, nil
}

// SubmitAsync sends req without waiting. The response is delivered to
// Handler.ExpectedPduResponseReceived.
func (s *Session) SubmitAsync(ctx context.Context, req *sgip.Submit) (*Future, error) {
	return s.SendRequestPdu(ctx, req, s.conf.WindowWaitTimeout.D(), false)
}

// SendRequestAndGetResponse sends req and waits up to timeout for its
// response.
func (s *Session) SendRequestAndGetResponse(ctx context.Context, req sgip.Request, timeout time.Duration) (sgip.Response, error) {
	start := time.Now()
	resp, err := s.sendRequestAndGetResponse(ctx, req, timeout)
	s.metrics.Record(req.CommandID().String(), time.Since(start), err != nil)
	return resp, err
}

func (s *Session) sendRequestAndGetResponse(ctx context.Context, req sgip.Request, timeout time.Duration) (sgip.Response, error) {
	f, err := s.SendRequestPdu(ctx, req, timeout, true)
	if err != nil {
		return nil, err
	}

	done, err := f.Await(ctx)
	if err != nil {
		f.Cancel()
		return nil, err
	}
	if !done {
		f.Cancel()
		return nil, &TimeoutError{Request: req, Timeout: timeout, Err: ErrResponseTimeout}
	}

	if resp, ok := f.Response(); ok {
		return resp, nil
	}
	if cause := f.Cause(); cause != nil {
		if errors.Is(cause, ErrChannelClosed) {
			return nil, &ChannelError{Msg: "channel was closed after sending request, but before receiving response", Err: cause}
		}
		return nil, &sgip.UnrecoverableError{PDU: req, Err: cause}
	}
	return nil, &sgip.RecoverableError{PDU: req, Err: ErrRequestCancelled}
}

func (s *Session) fillHeader(p sgip.PDU, nextSeq bool) {
	if !p.HasSourceNodeID() {
		p.SetSourceNodeID(s.conf.SourceNodeID)
	}
	if !p.HasTimestamp() {
		p.SetTimestamp(sgip.Timestamp(time.Now()))
	}
	if nextSeq && !p.HasSequenceNumber() {
		p.SetSequenceNumber(atomic.AddUint32(&s.seq, 1) - 1)
	}
}

// SendRequestPdu completes the header of req, admits it into the send
// window and writes it. A sequence number set by the caller is kept. With
// synchronous false the response is routed to
// Handler.ExpectedPduResponseReceived.
func (s *Session) SendRequestPdu(ctx context.Context, req sgip.Request, timeout time.Duration, synchronous bool) (*Future, error) {
	s.fillHeader(req, true)

	f, err := s.window.Offer(ctx, req.SequenceNumber(), req, timeout, s.conf.RequestExpiryTimeout.D(), synchronous)
	switch {
	case err == nil:
	case errors.Is(err, windowing.ErrDuplicateKey):
		return nil, &sgip.UnrecoverableError{PDU: req, Err: err}
	case errors.Is(err, windowing.ErrOfferTimeout):
		return nil, &TimeoutError{Request: req, Timeout: timeout, Err: err}
	default:
		return nil, err
	}
	s.metrics.SetWindowSize(s.window.Size())

	if !s.dispatch(req) {
		s.log.WithField("pdu", req).Info("Dispatched request PDU discarded")
		f.Cancel()
		return f, nil
	}

	if s.conf.LogPduEnabled {
		if synchronous {
			s.log.Infof("sync send PDU: %s", req)
		} else {
			s.log.Infof("async send PDU: %s", req)
		}
	}
	if err := s.write(req); err != nil {
		f.Fail(err)
		return nil, err
	}
	return f, nil
}

// SendResponsePdu completes the header of resp and writes it.
func (s *Session) SendResponsePdu(resp sgip.Response) error {
	s.fillHeader(resp, false)

	if !s.dispatch(resp) {
		s.log.WithField("pdu", resp).Info("Dispatched response PDU discarded")
		return nil
	}
	if s.conf.LogPduEnabled {
		s.log.Infof("send PDU: %s", resp)
	}
	return s.write(resp)
}

func (s *Session) dispatch(p sgip.PDU) bool {
	if l, ok := s.Handler().(Listener); ok {
		return l.PduDispatch(p)
	}
	return true
}

func (s *Session) write(p sgip.PDU) error {
	b, err := sgip.Encode(p)
	if err != nil {
		return err
	}
	if err := s.tp.Write(b); err != nil {
		return &ChannelError{Msg: "failed to write PDU", Err: err}
	}
	s.record(func(e *LogEntry) {
		e.SentPDUs++
		e.SentBytes += uint64(len(b))
	})
	return nil
}

// PduReceived routes a decoded inbound PDU. Requests go to the handler
// and its response, if any, is sent back. Responses complete the matching
// request in the send window.
func (s *Session) PduReceived(pdu sgip.PDU) {
	s.record(func(e *LogEntry) {
		e.ReceivedPDUs++
		e.ReceivedBytes += uint64(pdu.CommandLength())
	})
	if s.conf.LogPduEnabled {
		s.log.Infof("received PDU: %s", pdu)
	}

	if l, ok := s.Handler().(Listener); ok && !l.PduReceived(pdu) {
		s.log.WithField("pdu", pdu).Info("Received PDU discarded")
		return
	}

	switch p := pdu.(type) {
	case sgip.Request:
		s.requestReceived(p)
	case sgip.Response:
		s.responseReceived(p)
	}
}

func (s *Session) requestReceived(req sgip.Request) {
	if s.pool != nil {
		err := s.pool.Invoke(req)
		if err == nil {
			return
		}
		s.log.WithError(err).Warn("Handler pool unavailable, processing request inline")
	}
	s.processRequest(req)
}

func (s *Session) processRequest(req sgip.Request) {
	resp := s.Handler().PduRequestReceived(req)
	if resp == nil {
		return
	}
	if err := s.SendResponsePdu(resp); err != nil {
		s.log.WithError(err).Warnf("Failed to send response to %s", req.CommandID())
	}
}

func (s *Session) responseReceived(resp sgip.Response) {
	f := s.window.Complete(resp.SequenceNumber(), resp)
	s.metrics.SetWindowSize(s.window.Size())
	if f == nil {
		s.log.WithField("pdu", resp).Warn("Received response with no outstanding request")
		s.Handler().UnexpectedPduResponseReceived(resp)
		return
	}

	switch f.CallerState() {
	case windowing.CallerWaiting:
		s.log.Debugf("Caller waiting for request seq [%d]", resp.SequenceNumber())
	case windowing.CallerNotWaiting:
		s.Handler().ExpectedPduResponseReceived(newAsyncPduResponse(f))
	default:
		s.log.Debugf("Caller timed out waiting for request seq [%d]", resp.SequenceNumber())
		s.Handler().UnexpectedPduResponseReceived(resp)
	}
}

// ExceptionCaught classifies a transport or codec error and hands it to
// the handler.
func (s *Session) ExceptionCaught(err error) {
	h := s.Handler()
	switch {
	case sgip.IsUnrecoverable(err):
		h.UnrecoverablePduError(err)
	case sgip.IsRecoverable(err):
		h.RecoverablePduError(err)
	default:
		if st := s.State(); st == StateUnbinding || st == StateClosed {
			s.log.WithError(err).Debugf("Error caught while session is %s", st)
			return
		}
		h.UnknownError(err)
	}
}

// ChannelInactive fails every request a caller is waiting on and reports
// the close to the handler unless the session was going down anyway.
func (s *Session) ChannelInactive() {
	for _, f := range s.window.SortedSnapshot() {
		if f.IsCallerWaiting() {
			f.Fail(ErrChannelClosed)
		}
	}

	if st := s.State(); st != StateUnbinding && st != StateClosed {
		s.Handler().ChannelUnexpectedlyClosed()
	}
	s.setState(StateClosed)
}

// Unbind sends an Unbind if the transport is still up, waits up to timeout
// for its response and closes the session.
func (s *Session) Unbind(ctx context.Context, timeout time.Duration) {
	if s.tp.IsActive() {
		s.setState(StateUnbinding)
		if _, err := s.SendRequestAndGetResponse(ctx, &sgip.Unbind{}, timeout); err != nil {
			s.log.WithError(err).Info("Did not receive unbind response, closing anyway")
		}
	}
	s.closeQuietly()
}

// Close closes the transport and moves the session to the closed state.
func (s *Session) Close() error {
	var err error
	if s.tp.IsActive() {
		s.setState(StateUnbinding)
		if err = s.tp.Close(); err != nil {
			s.log.WithError(err).Warn("Failed to close transport")
		}
	}
	s.setState(StateClosed)
	return err
}

func (s *Session) closeQuietly() {
	_ = s.Close() // nolint: errcheck
}

// Destroy closes the session, cancels everything left in the window and
// drops the handler.
func (s *Session) Destroy() {
	s.destroyOnce.Do(func() {
		s.closeQuietly()
		s.window.Unsubscribe(s.expiry)
		s.window.Destroy()
		if s.pool != nil {
			s.pool.Release()
		}

		s.hmu.Lock()
		s.handler = nil
		s.hmu.Unlock()
	})
}

type expiryListener struct {
	s *Session
}

func (l *expiryListener) Expired(f *Future) {
	l.s.Handler().PduRequestExpired(f.Request())
}
