package pool

import (
	"io"
	"net"
	"sync/atomic"
	"time"
)

// record is the pool's internal bookkeeping for one live endpoint. It is
// never exposed directly to callers — Conn (see conn.go) wraps it with a
// borrower-safe, one-shot release path.
type record struct {
	id       uint64
	conn     net.Conn
	protocol Protocol
	ipFamily IPVersion

	createdAt time.Time

	// lastUsedAt and lastHealthCheckAt are unix-nanosecond timestamps,
	// read and written with atomic.Int64 so is_expired/is_idle_too_long/
	// is_leaked can be evaluated from any goroutine (reaper, borrower,
	// returner) without a record-level mutex.
	lastUsedAt        atomic.Int64
	lastHealthCheckAt atomic.Int64

	inUse      atomic.Bool
	healthy    atomic.Bool
	reuseCount atomic.Int64

	// dirtyUDPBuffer is set on return of a UDP endpoint whose peer may
	// have sent a stray datagram during the checkout; borrow() drains it
	// lazily before handing the endpoint back out (see udputil.go).
	dirtyUDPBuffer atomic.Bool

	closeHook func() error
}

func newRecord(id uint64, conn net.Conn, closeHook func() error) *record {
	now := time.Now()
	protocol := ProtocolTCP
	if _, ok := conn.(net.PacketConn); ok {
		protocol = ProtocolUDP
	}

	r := &record{
		id:        id,
		conn:      conn,
		protocol:  protocol,
		ipFamily:  detectIPFamily(conn),
		createdAt: now,
		closeHook: closeHook,
	}
	r.healthy.Store(true)
	r.lastUsedAt.Store(now.UnixNano())
	r.lastHealthCheckAt.Store(now.UnixNano())
	return r
}

func detectIPFamily(conn net.Conn) IPVersion {
	if addr := conn.RemoteAddr(); addr != nil {
		if v := detectIPVersion(addr); v != IPVersionUnknown {
			return v
		}
	}
	return detectIPVersion(conn.LocalAddr())
}

// tcpConn returns the underlying stream connection, if this record is TCP.
func (r *record) tcpConn() (net.Conn, bool) {
	if r.protocol != ProtocolTCP {
		return nil, false
	}
	return r.conn, true
}

// udpConn returns the underlying datagram socket, if this record is UDP.
func (r *record) udpConn() (*net.UDPConn, bool) {
	if r.protocol != ProtocolUDP {
		return nil, false
	}
	uc, ok := r.conn.(*net.UDPConn)
	return uc, ok
}

// markInUse marks the record checked out and refreshes last-used.
func (r *record) markInUse() {
	r.inUse.Store(true)
	r.lastUsedAt.Store(time.Now().UnixNano())
}

// markIdle marks the record idle and refreshes last-used. The healthy
// return path bumps reuseCount via incrementReuse right after it, so a
// later idle pop counts as a reuse only once the record has completed at
// least one borrow (a warm-floor record's first borrow is not a reuse).
func (r *record) markIdle() {
	r.inUse.Store(false)
	r.lastUsedAt.Store(time.Now().UnixNano())
}

func (r *record) incrementReuse() {
	r.reuseCount.Add(1)
}

func (r *record) updateHealth(healthy bool) {
	r.healthy.Store(healthy)
	r.lastHealthCheckAt.Store(time.Now().UnixNano())
}

func (r *record) isExpired(maxLifetime time.Duration) bool {
	if maxLifetime <= 0 {
		return false
	}
	return time.Since(r.createdAt) > maxLifetime
}

func (r *record) isIdleTooLong(idleTimeout time.Duration) bool {
	if idleTimeout <= 0 {
		return false
	}
	if r.inUse.Load() {
		return false
	}
	last := time.Unix(0, r.lastUsedAt.Load())
	return time.Since(last) > idleTimeout
}

func (r *record) isLeaked(leakTimeout time.Duration) bool {
	if leakTimeout <= 0 || !r.inUse.Load() {
		return false
	}
	last := time.Unix(0, r.lastUsedAt.Load())
	return time.Since(last) > leakTimeout
}

func (r *record) healthCheckStale(interval time.Duration) bool {
	if interval <= 0 {
		return false
	}
	last := time.Unix(0, r.lastHealthCheckAt.Load())
	return time.Since(last) > interval
}

// age reports how long ago the record was created.
func (r *record) age() time.Duration {
	return time.Since(r.createdAt)
}

// close invokes the close hook (if any) and the underlying conn's Close,
// tolerating either being nil/already-closed.
func (r *record) close() error {
	var err error
	if r.closeHook != nil {
		err = r.closeHook()
	}
	if c, ok := r.conn.(io.Closer); ok {
		if cerr := c.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
