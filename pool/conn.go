package pool

import (
	"net"
	"sync"
)

// Conn wraps a pooled endpoint. Callers must call exactly one of Release
// or ReleaseUnhealthy when done; both are safe to call more than once —
// only the first call has any effect.
type Conn struct {
	pool *Pool
	rec  *record

	once sync.Once
}

// ID returns the pool-internal identifier for this endpoint, useful for
// log correlation.
func (c *Conn) ID() uint64 {
	return c.rec.id
}

// Protocol reports whether this endpoint is TCP or UDP.
func (c *Conn) Protocol() Protocol {
	return c.rec.protocol
}

// IPVersion reports the endpoint's address family.
func (c *Conn) IPVersion() IPVersion {
	return c.rec.ipFamily
}

// TCPConn returns the underlying stream connection. ok is false if this
// endpoint is not TCP.
func (c *Conn) TCPConn() (net.Conn, bool) {
	return c.rec.tcpConn()
}

// UDPConn returns the underlying datagram socket. ok is false if this
// endpoint is not UDP.
func (c *Conn) UDPConn() (*net.UDPConn, bool) {
	return c.rec.udpConn()
}

// Release returns the endpoint to the pool as healthy, making it eligible
// for reuse by the next borrower.
func (c *Conn) Release() {
	c.once.Do(func() {
		c.pool.release(c.rec, true)
	})
}

// ReleaseUnhealthy returns the endpoint marked unhealthy; the pool closes
// it rather than recycling it, and accounts it as an unhealthy closure.
func (c *Conn) ReleaseUnhealthy() {
	c.once.Do(func() {
		c.pool.release(c.rec, false)
	})
}
