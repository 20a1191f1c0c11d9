package pool

import (
	"container/list"
	"sync"
	"sync/atomic"
	"time"
)

// Category selects which secondary queue a borrow is served from.
// CategoryAny is the wildcard — it is served from the primary FIFO
// directly, tie-broken by insertion order like every other queue.
type Category int

const (
	CategoryAny Category = iota
	CategoryTCP
	CategoryUDP
	CategoryIPv4
	CategoryIPv6
)

// idleEntry is the light tuple the spec describes ({id, inserted_at}) —
// but here it also carries back-references to its position in every
// secondary queue it belongs to, so a single removal (tombstone or pop)
// keeps the primary queue and every secondary queue consistent in one
// critical section. The spec's original (Rust) structure lazily skips
// tombstones it finds stale in a secondary queue because each queue is
// an independent VecDeque; container/list plus these back-references let
// removeLocked evict a record from every queue it is a member of
// atomically, which makes the lazy-tombstone-skip step of §4.3 a no-op
// by construction (see DESIGN.md).
type idleEntry struct {
	id         uint64
	protocol   Protocol
	ipFamily   IPVersion
	insertedAt time.Time

	primaryEl *list.Element
	protoEl   *list.Element
	familyEl  *list.Element
}

// idleRegistry is the composite idle cache described in §4.3: a primary
// FIFO over insertion instant plus per-category secondary queues, gated
// by a CAS'd count so the registry never structurally exceeds maxIdle
// even under many concurrent returners.
type idleRegistry struct {
	maxIdle int
	count   atomic.Int64

	mu      sync.Mutex
	primary *list.List
	tcp     *list.List
	udp     *list.List
	ipv4    *list.List
	ipv6    *list.List
	byID    map[uint64]*idleEntry
}

func newIdleRegistry(maxIdle int) *idleRegistry {
	return &idleRegistry{
		maxIdle: maxIdle,
		primary: list.New(),
		tcp:     list.New(),
		udp:     list.New(),
		ipv4:    list.New(),
		ipv6:    list.New(),
		byID:    make(map[uint64]*idleEntry),
	}
}

// size returns the registry's current count, authoritative for capacity
// admission per §4.3.
func (idl *idleRegistry) size() int {
	return int(idl.count.Load())
}

// tryInsert gates entry with a CAS against maxIdle (0 means unbounded —
// validated away at config time, MaxIdleConnections must be > 0, but the
// check is kept defensive here) and, on success, structurally enqueues
// into the primary queue plus whichever secondary queues apply.
func (idl *idleRegistry) tryInsert(id uint64, protocol Protocol, family IPVersion) bool {
	for {
		n := idl.count.Load()
		if idl.maxIdle > 0 && int(n) >= idl.maxIdle {
			return false
		}
		if idl.count.CompareAndSwap(n, n+1) {
			break
		}
	}

	idl.mu.Lock()
	defer idl.mu.Unlock()

	e := &idleEntry{
		id:         id,
		protocol:   protocol,
		ipFamily:   family,
		insertedAt: time.Now(),
	}
	e.primaryEl = idl.primary.PushBack(e)
	switch protocol {
	case ProtocolTCP:
		e.protoEl = idl.tcp.PushBack(e)
	case ProtocolUDP:
		e.protoEl = idl.udp.PushBack(e)
	}
	switch family {
	case IPVersionIPv4:
		e.familyEl = idl.ipv4.PushBack(e)
	case IPVersionIPv6:
		e.familyEl = idl.ipv6.PushBack(e)
	}
	idl.byID[id] = e
	return true
}

func (idl *idleRegistry) queueFor(cat Category) *list.List {
	switch cat {
	case CategoryTCP:
		return idl.tcp
	case CategoryUDP:
		return idl.udp
	case CategoryIPv4:
		return idl.ipv4
	case CategoryIPv6:
		return idl.ipv6
	default:
		return idl.primary
	}
}

// removeLocked detaches e from every queue it belongs to and the byID
// index, and decrements count. Caller must hold mu.
func (idl *idleRegistry) removeLocked(e *idleEntry) {
	idl.primary.Remove(e.primaryEl)
	if e.protoEl != nil {
		switch e.protocol {
		case ProtocolTCP:
			idl.tcp.Remove(e.protoEl)
		case ProtocolUDP:
			idl.udp.Remove(e.protoEl)
		}
	}
	if e.familyEl != nil {
		switch e.ipFamily {
		case IPVersionIPv4:
			idl.ipv4.Remove(e.familyEl)
		case IPVersionIPv6:
			idl.ipv6.Remove(e.familyEl)
		}
	}
	delete(idl.byID, e.id)
	idl.count.Add(-1)
}

// removeByID evicts a single record's bookkeeping out-of-band (used by
// the reaper when it finds an idle record expired by lifetime/idle-sweep
// rather than through popForBorrow).
func (idl *idleRegistry) removeByID(id uint64) bool {
	idl.mu.Lock()
	defer idl.mu.Unlock()
	e, ok := idl.byID[id]
	if !ok {
		return false
	}
	idl.removeLocked(e)
	return true
}

// popForBorrow implements the §4.3 pop algorithm: first tombstone-evict
// every primary entry older than idleTimeout, then dequeue the head of
// the category queue (or primary, for CategoryAny). Returns the borrowed
// id (if any) and the ids evicted along the way for the caller to close
// through the census.
func (idl *idleRegistry) popForBorrow(cat Category, idleTimeout time.Duration) (id uint64, found bool, expired []uint64) {
	idl.mu.Lock()
	defer idl.mu.Unlock()

	if idleTimeout > 0 {
		for {
			front := idl.primary.Front()
			if front == nil {
				break
			}
			e := front.Value.(*idleEntry)
			if time.Since(e.insertedAt) <= idleTimeout {
				break
			}
			idl.removeLocked(e)
			expired = append(expired, e.id)
		}
	}

	q := idl.queueFor(cat)
	front := q.Front()
	if front == nil {
		return 0, false, expired
	}
	e := front.Value.(*idleEntry)
	idl.removeLocked(e)
	return e.id, true, expired
}

// drainAll removes and returns every idle id, used by Close to hand the
// whole idle set to the engine for closing.
func (idl *idleRegistry) drainAll() []uint64 {
	idl.mu.Lock()
	defer idl.mu.Unlock()

	ids := make([]uint64, 0, idl.primary.Len())
	for e := idl.primary.Front(); e != nil; {
		next := e.Next()
		entry := e.Value.(*idleEntry)
		ids = append(ids, entry.id)
		e = next
	}
	idl.primary.Init()
	idl.tcp.Init()
	idl.udp.Init()
	idl.ipv4.Init()
	idl.ipv6.Init()
	idl.byID = make(map[uint64]*idleEntry)
	idl.count.Store(0)
	return ids
}
