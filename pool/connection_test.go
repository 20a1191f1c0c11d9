package pool

import (
	"testing"
	"time"
)

func TestNewRecordDetectsProtocolAndFamily(t *testing.T) {
	tcp := newRecord(1, newFakeTCPConn("192.0.2.1:80"), nil)
	if tcp.protocol != ProtocolTCP {
		t.Errorf("tcp record protocol = %v, want TCP", tcp.protocol)
	}
	if tcp.ipFamily != IPVersionIPv4 {
		t.Errorf("tcp record family = %v, want IPv4", tcp.ipFamily)
	}

	udp := newRecord(2, newFakeUDPConn("[2001:db8::1]:53"), nil)
	if udp.protocol != ProtocolUDP {
		t.Errorf("udp record protocol = %v, want UDP", udp.protocol)
	}
	if udp.ipFamily != IPVersionIPv6 {
		t.Errorf("udp record family = %v, want IPv6", udp.ipFamily)
	}
}

func TestRecordLifecycleFlags(t *testing.T) {
	r := newRecord(1, newFakeTCPConn("192.0.2.1:80"), nil)

	if r.isExpired(time.Hour) {
		t.Error("fresh record should not be expired")
	}
	if r.isIdleTooLong(time.Hour) {
		t.Error("fresh record with near-zero idle time should not be idle-too-long")
	}

	r.markInUse()
	if !r.inUse.Load() {
		t.Error("markInUse did not set inUse")
	}
	if r.isIdleTooLong(time.Nanosecond) {
		t.Error("in-use record must never report idle-too-long")
	}

	r.markIdle()
	if r.inUse.Load() {
		t.Error("markIdle did not clear inUse")
	}

	r.lastUsedAt.Store(time.Now().Add(-time.Hour).UnixNano())
	if !r.isIdleTooLong(time.Minute) {
		t.Error("expected idle-too-long after backdating lastUsedAt")
	}
}

func TestRecordIsLeaked(t *testing.T) {
	r := newRecord(1, newFakeTCPConn("192.0.2.1:80"), nil)
	r.markInUse()

	if r.isLeaked(time.Hour) {
		t.Error("freshly borrowed record should not be leaked")
	}

	r.lastUsedAt.Store(time.Now().Add(-time.Hour).UnixNano())
	if !r.isLeaked(time.Minute) {
		t.Error("expected leaked after backdating lastUsedAt on an in-use record")
	}

	r.markIdle()
	if r.isLeaked(time.Nanosecond) {
		t.Error("idle record must never report leaked")
	}
}

func TestRecordClose(t *testing.T) {
	conn := newFakeTCPConn("192.0.2.1:80")
	hookCalled := false
	r := newRecord(1, conn, func() error {
		hookCalled = true
		return nil
	})

	if err := r.close(); err != nil {
		t.Fatalf("close() returned error: %v", err)
	}
	if !hookCalled {
		t.Error("close hook was not invoked")
	}
	if !conn.isClosed() {
		t.Error("underlying conn was not closed")
	}
}
