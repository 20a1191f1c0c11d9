package pool

import (
	"io"
	"net"
	"sync"
	"time"
)

type fakeAddr struct {
	network string
	addr    string
}

func (a fakeAddr) Network() string { return a.network }
func (a fakeAddr) String() string  { return a.addr }

// fakeConn is a minimal net.Conn double. Read always returns io.EOF;
// tests that need real data exchange don't need it here — the pool
// never inspects payload bytes.
type fakeConn struct {
	mu       sync.Mutex
	closed   bool
	closeErr error
	local    net.Addr
	remote   net.Addr
}

func newFakeTCPConn(remoteHost string) *fakeConn {
	return &fakeConn{
		local:  fakeAddr{"tcp", "127.0.0.1:0"},
		remote: fakeAddr{"tcp", remoteHost},
	}
}

func (c *fakeConn) Read(b []byte) (int, error)  { return 0, io.EOF }
func (c *fakeConn) Write(b []byte) (int, error) { return len(b), nil }

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return c.closeErr
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) LocalAddr() net.Addr                { return c.local }
func (c *fakeConn) RemoteAddr() net.Addr               { return c.remote }
func (c *fakeConn) SetDeadline(time.Time) error        { return nil }
func (c *fakeConn) SetReadDeadline(time.Time) error     { return nil }
func (c *fakeConn) SetWriteDeadline(time.Time) error    { return nil }

// fakePacketConn additionally satisfies net.PacketConn, which is how the
// pool's newRecord tells a UDP socket apart from a TCP one.
type fakePacketConn struct {
	fakeConn
}

func newFakeUDPConn(remoteHost string) *fakePacketConn {
	return &fakePacketConn{fakeConn{
		local:  fakeAddr{"udp", "127.0.0.1:0"},
		remote: fakeAddr{"udp", remoteHost},
	}}
}

func (c *fakePacketConn) ReadFrom(b []byte) (int, net.Addr, error) {
	return 0, c.remote, io.EOF
}

func (c *fakePacketConn) WriteTo(b []byte, addr net.Addr) (int, error) {
	return len(b), nil
}

// countingDialer builds a Config.Dialer that mints a fresh fakeConn per
// call and counts how many times it was invoked.
func countingDialer(udp bool) (dial func(Protocol) (net.Conn, error), calls func() int) {
	var mu sync.Mutex
	n := 0
	dial = func(Protocol) (net.Conn, error) {
		mu.Lock()
		n++
		mu.Unlock()
		if udp {
			return newFakeUDPConn("203.0.113.10:9"), nil
		}
		return newFakeTCPConn("203.0.113.10:9"), nil
	}
	calls = func() int {
		mu.Lock()
		defer mu.Unlock()
		return n
	}
	return dial, calls
}
