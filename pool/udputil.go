package pool

import (
	"errors"
	"net"
	"os"
	"time"
)

const maxUDPDatagramSize = 65507

// clearUDPReadBuffer drains up to maxPackets stray datagrams off conn,
// bounded by an overall timeout, so a UDP endpoint handed back out after
// a checkout never hands the next borrower a datagram left over from the
// previous one. Called lazily at borrow time, never at return time, so a
// returner never pays for network I/O (§4.6).
func clearUDPReadBuffer(conn *net.UDPConn, timeout time.Duration, maxPackets int) error {
	if timeout <= 0 {
		timeout = 100 * time.Millisecond
	}
	if maxPackets <= 0 {
		maxPackets = 100
	}
	defer conn.SetReadDeadline(time.Time{})

	deadline := time.Now().Add(timeout)
	buf := make([]byte, maxUDPDatagramSize)

	for i := 0; i < maxPackets; i++ {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil
		}
		readDeadline := remaining
		if step := 50 * time.Millisecond; readDeadline > step {
			readDeadline = step
		}
		if err := conn.SetReadDeadline(time.Now().Add(readDeadline)); err != nil {
			return err
		}

		_, err := conn.Read(buf)
		if err == nil {
			continue
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil
		}
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return nil
		}
		// Any other error (connection closed, etc.) — treat the buffer
		// as clean; the caller's health check will catch a dead socket.
		return nil
	}
	return nil
}

// hasUDPDataBuffered reports whether conn has at least one datagram ready
// to read right now. Nothing in the pool calls it; the pool's hygiene
// path is clearUDPReadBuffer.
func hasUDPDataBuffered(conn *net.UDPConn) bool {
	if err := conn.SetReadDeadline(time.Now().Add(time.Millisecond)); err != nil {
		return false
	}
	defer conn.SetReadDeadline(time.Time{})

	buf := make([]byte, 1)
	_, err := conn.Read(buf)
	if err == nil {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return false
	}
	return true
}
