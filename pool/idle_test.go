package pool

import (
	"testing"
	"time"
)

func TestIdleRegistryCapacityGate(t *testing.T) {
	idl := newIdleRegistry(2)

	if !idl.tryInsert(1, ProtocolTCP, IPVersionIPv4) {
		t.Fatal("first insert should succeed")
	}
	if !idl.tryInsert(2, ProtocolTCP, IPVersionIPv4) {
		t.Fatal("second insert should succeed")
	}
	if idl.tryInsert(3, ProtocolTCP, IPVersionIPv4) {
		t.Fatal("third insert should be rejected once at capacity")
	}
	if idl.size() != 2 {
		t.Fatalf("size = %d, want 2", idl.size())
	}
}

func TestIdleRegistryPopFIFO(t *testing.T) {
	idl := newIdleRegistry(10)
	idl.tryInsert(1, ProtocolTCP, IPVersionIPv4)
	idl.tryInsert(2, ProtocolTCP, IPVersionIPv4)
	idl.tryInsert(3, ProtocolTCP, IPVersionIPv4)

	id, found, expired := idl.popForBorrow(CategoryAny, 0)
	if !found || id != 1 {
		t.Fatalf("popForBorrow = (%d, %v), want (1, true)", id, found)
	}
	if len(expired) != 0 {
		t.Fatalf("unexpected expired entries: %v", expired)
	}
	if idl.size() != 2 {
		t.Fatalf("size after one pop = %d, want 2", idl.size())
	}
}

func TestIdleRegistryCategoryQueues(t *testing.T) {
	idl := newIdleRegistry(10)
	idl.tryInsert(1, ProtocolTCP, IPVersionIPv4)
	idl.tryInsert(2, ProtocolUDP, IPVersionIPv6)

	id, found, _ := idl.popForBorrow(CategoryUDP, 0)
	if !found || id != 2 {
		t.Fatalf("popForBorrow(UDP) = (%d, %v), want (2, true)", id, found)
	}

	if _, found, _ := idl.popForBorrow(CategoryUDP, 0); found {
		t.Error("no UDP entries should remain")
	}

	id, found, _ = idl.popForBorrow(CategoryTCP, 0)
	if !found || id != 1 {
		t.Fatalf("popForBorrow(TCP) = (%d, %v), want (1, true)", id, found)
	}
}

func TestIdleRegistryExpiresStaleHead(t *testing.T) {
	idl := newIdleRegistry(10)
	idl.tryInsert(1, ProtocolTCP, IPVersionIPv4)
	time.Sleep(5 * time.Millisecond)
	idl.tryInsert(2, ProtocolTCP, IPVersionIPv4)

	id, found, expired := idl.popForBorrow(CategoryAny, time.Millisecond)
	if len(expired) != 1 || expired[0] != 1 {
		t.Fatalf("expired = %v, want [1]", expired)
	}
	if !found || id != 2 {
		t.Fatalf("popForBorrow after expiry = (%d, %v), want (2, true)", id, found)
	}
	if idl.size() != 0 {
		t.Fatalf("size = %d, want 0", idl.size())
	}
}

func TestIdleRegistryRemoveByID(t *testing.T) {
	idl := newIdleRegistry(10)
	idl.tryInsert(1, ProtocolTCP, IPVersionIPv4)

	if !idl.removeByID(1) {
		t.Fatal("removeByID(1) should succeed")
	}
	if idl.removeByID(1) {
		t.Fatal("removeByID(1) twice should fail the second time")
	}
	if idl.size() != 0 {
		t.Fatalf("size = %d, want 0", idl.size())
	}
}

func TestIdleRegistryDrainAll(t *testing.T) {
	idl := newIdleRegistry(10)
	idl.tryInsert(1, ProtocolTCP, IPVersionIPv4)
	idl.tryInsert(2, ProtocolUDP, IPVersionIPv6)

	ids := idl.drainAll()
	if len(ids) != 2 {
		t.Fatalf("drainAll returned %d ids, want 2", len(ids))
	}
	if idl.size() != 0 {
		t.Fatalf("size after drainAll = %d, want 0", idl.size())
	}
	if idl.tryInsert(3, ProtocolTCP, IPVersionIPv4); idl.size() != 1 {
		t.Fatal("registry should be reusable after drainAll")
	}
}
