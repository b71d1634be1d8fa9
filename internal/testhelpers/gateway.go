package testhelpers

import (
	"bufio"
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/nettest"

	"github.com/skycoin/sgip/pkg/sgip"
)

// ReplyFunc builds the gateway answer to req. Returning nil sends nothing.
type ReplyFunc func(req sgip.Request) sgip.Response

// Echo answers every request with its default successful response.
func Echo(req sgip.Request) sgip.Response { return req.CreateResponse() }

// Gateway is a minimal SMG serving on a local TCP listener. It records
// every PDU it decodes and answers requests through its ReplyFunc.
type Gateway struct {
	l     net.Listener
	reply ReplyFunc

	mu       sync.Mutex
	received []sgip.PDU
	conns    []net.Conn
	wmu      sync.Mutex

	wg sync.WaitGroup
}

// NewGateway starts a Gateway and registers its shutdown with t.Cleanup.
// A nil reply uses Echo.
func NewGateway(t *testing.T, reply ReplyFunc) *Gateway {
	l, err := nettest.NewLocalListener("tcp")
	require.NoError(t, err)
	if reply == nil {
		reply = Echo
	}

	g := &Gateway{l: l, reply: reply}
	g.wg.Add(1)
	go g.serve()
	t.Cleanup(g.Close)
	return g
}

// Addr returns the listening address.
func (g *Gateway) Addr() string { return g.l.Addr().String() }

// Received returns the PDUs decoded so far.
func (g *Gateway) Received() []sgip.PDU {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]sgip.PDU(nil), g.received...)
}

// Connections returns the number of open accepted connections.
func (g *Gateway) Connections() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.conns)
}

// Send writes p to every accepted connection.
func (g *Gateway) Send(p sgip.PDU) error {
	b, err := sgip.Encode(p)
	if err != nil {
		return err
	}
	return g.SendRaw(b)
}

// SendRaw writes b unchanged to every accepted connection.
func (g *Gateway) SendRaw(b []byte) error {
	g.mu.Lock()
	conns := append([]net.Conn(nil), g.conns...)
	g.mu.Unlock()

	g.wmu.Lock()
	defer g.wmu.Unlock()
	for _, conn := range conns {
		if _, err := conn.Write(b); err != nil {
			return err
		}
	}
	return nil
}

// DropConnections closes every accepted connection, keeping the listener.
func (g *Gateway) DropConnections() {
	g.mu.Lock()
	conns := g.conns
	g.conns = nil
	g.mu.Unlock()
	for _, conn := range conns {
		conn.Close() // nolint: errcheck
	}
}

// Close stops the listener and drops every connection.
func (g *Gateway) Close() {
	g.l.Close() // nolint: errcheck
	g.DropConnections()
	g.wg.Wait()
}

func (g *Gateway) serve() {
	defer g.wg.Done()
	for {
		conn, err := g.l.Accept()
		if err != nil {
			return
		}
		g.mu.Lock()
		g.conns = append(g.conns, conn)
		g.mu.Unlock()

		g.wg.Add(1)
		go g.handle(conn)
	}
}

func (g *Gateway) handle(conn net.Conn) {
	defer g.wg.Done()
	defer conn.Close() // nolint: errcheck

	r := bufio.NewReader(conn)
	for {
		frame, err := sgip.ReadFrame(r, sgip.MaxFrameLen)
		if err != nil {
			return
		}
		p, err := sgip.DecodeFrame(uint32(len(frame)), frame)
		if err != nil {
			continue
		}
		g.mu.Lock()
		g.received = append(g.received, p)
		g.mu.Unlock()

		req, ok := p.(sgip.Request)
		if !ok {
			continue
		}
		resp := g.reply(req)
		if resp == nil {
			continue
		}
		b, err := sgip.Encode(resp)
		if err != nil {
			return
		}
		g.wmu.Lock()
		_, err = conn.Write(b)
		g.wmu.Unlock()
		if err != nil {
			return
		}
	}
}
