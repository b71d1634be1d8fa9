// Package client connects to an SGIP gateway and binds sessions.
package client

import (
	"context"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/skycoin/skycoin/src/util/logging"

	"github.com/skycoin/sgip/internal/metrics"
	"github.com/skycoin/sgip/internal/netutil"
	"github.com/skycoin/sgip/pkg/session"
	"github.com/skycoin/sgip/pkg/sgip"
	"github.com/skycoin/sgip/pkg/transport"
)

var log = logging.MustGetLogger("client")

// Option configures a Client.
type Option func(c *Client) error

// SetLogger sets the logger used by the client and its sessions.
func SetLogger(l logrus.FieldLogger) Option {
	return func(c *Client) error {
		c.log = l
		return nil
	}
}

// SetRecorder sets the metrics recorder handed to every session.
func SetRecorder(m metrics.Recorder) Option {
	return func(c *Client) error {
		c.metrics = m
		return nil
	}
}

// SetLogStore sets the log store handed to every session.
func SetLogStore(ls session.LogStore) Option {
	return func(c *Client) error {
		c.store = ls
		return nil
	}
}

// Client opens SGIP sessions and keeps track of them until Close.
type Client struct {
	log     logrus.FieldLogger
	metrics metrics.Recorder
	store   session.LogStore

	mu       sync.Mutex
	sessions map[uuid.UUID]*session.Session
}

// New creates a Client.
func New(opts ...Option) (*Client, error) {
	c := &Client{
		log:      log,
		metrics:  metrics.NewDummy(),
		store:    session.InMemoryLogStore(),
		sessions: make(map[uuid.UUID]*session.Session),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// LogStore returns the store collecting session traffic counters.
func (c *Client) LogStore() session.LogStore { return c.store }

// Bind dials the gateway described by conf, starts reading and performs
// the bind. On any failure the connection is released and nil returned.
// A recoverable error raised during the bind is reported as unrecoverable.
func (c *Client) Bind(ctx context.Context, conf *Config, h session.Handler) (*session.Session, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	tp, err := c.connect(ctx, conf)
	if err != nil {
		return nil, err
	}

	s, err := session.New(conf.Session, tp, h,
		session.SetLogger(c.log),
		session.SetRecorder(c.metrics),
		session.SetLogStore(c.store))
	if err != nil {
		tp.Close() // nolint: errcheck
		return nil, err
	}
	tp.Serve(s)

	bind := &sgip.Bind{
		LoginType:     conf.Session.LoginType,
		LoginName:     conf.Session.LoginName,
		LoginPassword: conf.Session.LoginPassword,
	}
	if _, err := s.Bind(ctx, bind, conf.Session.BindTimeout.D()); err != nil {
		s.Destroy()
		if sgip.IsRecoverable(err) {
			err = &sgip.UnrecoverableError{PDU: bind, Err: err}
		}
		return nil, err
	}
	if !s.IsBound() {
		s.Destroy()
		return nil, errors.Errorf("session %s not bound after bind", s.ID())
	}

	c.mu.Lock()
	c.sessions[s.ID()] = s
	c.mu.Unlock()

	c.log.WithField("remote", tp.RemoteAddr()).Infof("Session %s bound", s.ID())
	return s, nil
}

func (c *Client) connect(ctx context.Context, conf *Config) (*transport.TCPTransport, error) {
	threshold := conf.Connection.RetryThreshold.D()
	if threshold <= 0 {
		return c.dial(ctx, conf)
	}

	var tp *transport.TCPTransport
	var lastErr error
	r := netutil.NewRetrier(retryBackoff, threshold, retryFactor).
		WithLogger(c.log.WithField("remote", conf.Connection.Address()))
	err := r.Do(ctx, func(ctx context.Context) error {
		tp, lastErr = c.dial(ctx, conf)
		return lastErr
	})
	if err != nil {
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, err
	}
	return tp, nil
}

func (c *Client) dial(ctx context.Context, conf *Config) (*transport.TCPTransport, error) {
	host, port := conf.Connection.Host, conf.Connection.Port
	timeout := conf.Connection.ConnectTimeout.D()

	dctx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		dctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tpConf := transport.DefaultConfig()
	tpConf.WriteTimeout = conf.Session.WriteTimeout.D()
	tpConf.LogBytes = conf.Session.LogBytesEnabled
	tpConf.Logger = c.log.WithField("remote", conf.Connection.Address())

	tp, err := transport.Dial(dctx, conf.Connection.Address(), tpConf)
	if err == nil {
		return tp, nil
	}

	var netErr net.Error
	if errors.Is(dctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil ||
		errors.As(err, &netErr) && netErr.Timeout() {
		return nil, &ConnectTimeoutError{Host: host, Port: port, Timeout: timeout, Err: err}
	}
	return nil, &ConnectError{Host: host, Port: port, Err: err}
}

// Sessions returns the sessions bound by this client and not yet released.
func (c *Client) Sessions() []*session.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*session.Session, 0, len(c.sessions))
	for _, s := range c.sessions {
		out = append(out, s)
	}
	return out
}

// Release forgets s and destroys it.
func (c *Client) Release(s *session.Session) {
	c.mu.Lock()
	delete(c.sessions, s.ID())
	c.mu.Unlock()
	s.Destroy()
}

// Close destroys every session bound by this client.
func (c *Client) Close() error {
	for _, s := range c.Sessions() {
		c.Release(s)
	}
	return nil
}
