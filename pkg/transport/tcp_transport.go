// Package transport carries SGIP frames over TCP.
package transport

import (
	"bufio"
	"context"
	"encoding/hex"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/skycoin/skycoin/src/util/logging"

	"github.com/skycoin/sgip/pkg/sgip"
)

var log = logging.MustGetLogger("transport")

// ErrClosed is returned by Write once the transport is closed.
var ErrClosed = errors.New("transport closed")

// Listener receives the inbound events of a transport. All calls happen on
// the read loop goroutine.
type Listener interface {
	PduReceived(pdu sgip.PDU)
	ExceptionCaught(err error)
	ChannelInactive()
}

// Config configures a TCPTransport.
type Config struct {
	// WriteTimeout bounds every Write; zero or negative means none.
	WriteTimeout time.Duration
	// LogBytes hex dumps every frame read or written.
	LogBytes bool
	// MaxFrameLen caps the announced commandLength of inbound frames.
	MaxFrameLen uint32
	Logger      logrus.FieldLogger
}

// DefaultConfig returns a Config with no write timeout.
func DefaultConfig() Config {
	return Config{MaxFrameLen: sgip.MaxFrameLen}
}

// TCPTransport implements session.Transport over a net.Conn.
type TCPTransport struct {
	conn net.Conn
	conf Config
	log  logrus.FieldLogger

	wmu    sync.Mutex
	active int32
	once   sync.Once
	serve  sync.Once
	done   chan struct{}
}

// NewTCPTransport wraps conn. Serve must be called to start reading.
func NewTCPTransport(conn net.Conn, conf Config) *TCPTransport {
	if conf.MaxFrameLen == 0 {
		conf.MaxFrameLen = sgip.MaxFrameLen
	}
	l := conf.Logger
	if l == nil {
		l = log.WithField("remote", conn.RemoteAddr())
	}
	return &TCPTransport{
		conn:   conn,
		conf:   conf,
		log:    l,
		active: 1,
		done:   make(chan struct{}),
	}
}

// Dial connects to addr. The dial is bounded by ctx.
func Dial(ctx context.Context, addr string, conf Config) (*TCPTransport, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return NewTCPTransport(conn, conf), nil
}

// Serve starts the read loop delivering inbound events to l. Only the
// first call has effect.
func (tp *TCPTransport) Serve(l Listener) {
	tp.serve.Do(func() {
		go tp.readLoop(l)
	})
}

func (tp *TCPTransport) readLoop(l Listener) {
	defer func() {
		atomic.StoreInt32(&tp.active, 0)
		l.ChannelInactive()
		close(tp.done)
	}()

	r := bufio.NewReader(tp.conn)
	for {
		frame, err := sgip.ReadFrame(r, tp.conf.MaxFrameLen)
		if err != nil {
			tp.readFailed(l, err)
			return
		}
		if tp.conf.LogBytes {
			tp.log.Infof("read bytes: [%s]", hex.EncodeToString(frame))
		}

		pdu, err := sgip.DecodeFrame(uint32(len(frame)), frame)
		if err != nil {
			l.ExceptionCaught(err)
			if sgip.IsUnrecoverable(err) {
				tp.closeConn() // nolint: errcheck
				return
			}
			continue
		}
		l.PduReceived(pdu)
	}
}

func (tp *TCPTransport) readFailed(l Listener, err error) {
	defer tp.closeConn() // nolint: errcheck

	if errors.Is(err, io.EOF) {
		tp.log.Debug("Remote closed the connection")
		return
	}
	if !tp.IsActive() {
		tp.log.WithError(err).Debug("Read loop stopped by close")
		return
	}
	l.ExceptionCaught(err)
}

// Write writes one encoded frame. Concurrent writes are serialised.
func (tp *TCPTransport) Write(b []byte) error {
	if !tp.IsActive() {
		return ErrClosed
	}

	tp.wmu.Lock()
	defer tp.wmu.Unlock()

	if tp.conf.WriteTimeout > 0 {
		if err := tp.conn.SetWriteDeadline(time.Now().Add(tp.conf.WriteTimeout)); err != nil {
			return err
		}
	}
	if tp.conf.LogBytes {
		tp.log.Infof("write bytes: [%s]", hex.EncodeToString(b))
	}
	_, err := tp.conn.Write(b)
	return err
}

// Close closes the connection. The read loop then reports ChannelInactive.
func (tp *TCPTransport) Close() error {
	if tp == nil {
		return nil
	}
	atomic.StoreInt32(&tp.active, 0)
	return tp.closeConn()
}

func (tp *TCPTransport) closeConn() error {
	var err error
	tp.once.Do(func() {
		err = tp.conn.Close()
	})
	return err
}

// IsActive reports whether the transport has not been closed.
func (tp *TCPTransport) IsActive() bool {
	return atomic.LoadInt32(&tp.active) == 1
}

// Done is closed once the read loop has returned.
func (tp *TCPTransport) Done() <-chan struct{} { return tp.done }

// LocalAddr returns the local address of the connection.
func (tp *TCPTransport) LocalAddr() net.Addr { return tp.conn.LocalAddr() }

// RemoteAddr returns the remote address of the connection.
func (tp *TCPTransport) RemoteAddr() net.Addr { return tp.conn.RemoteAddr() }
