package pool

import (
	"container/list"
	"sync"
)

// waiter parks one blocked Borrow call. A signal only wakes it up to
// retry the fast and admit paths from the top (§4.5.1) — it never
// carries a record directly, so the woken borrower always re-validates
// against the idle registry and census under their own locks.
type waiter struct {
	category Category
	wake     chan struct{}
}

// waiterQueue is the FIFO queue of blocked borrowers described in §4.5: a
// returner (or the reaper) walks it front-to-back looking for the first
// waiter whose requested category matches the record becoming available.
type waiterQueue struct {
	mu      sync.Mutex
	waiters *list.List // list of *waiter
	index   map[*waiter]*list.Element
}

func newWaiterQueue() *waiterQueue {
	return &waiterQueue{
		waiters: list.New(),
		index:   make(map[*waiter]*list.Element),
	}
}

// enqueue registers a new waiter for category and returns it. Callers
// must call dequeue when they stop waiting (delivered or gave up) to keep
// the queue from accumulating stale entries.
func (q *waiterQueue) enqueue(category Category) *waiter {
	w := &waiter{category: category, wake: make(chan struct{}, 1)}
	q.mu.Lock()
	el := q.waiters.PushBack(w)
	q.index[w] = el
	q.mu.Unlock()
	return w
}

// dequeue removes w from the queue unconditionally. Safe to call whether
// or not w was already signaled.
func (q *waiterQueue) dequeue(w *waiter) {
	q.mu.Lock()
	if el, ok := q.index[w]; ok {
		q.waiters.Remove(el)
		delete(q.index, w)
	}
	q.mu.Unlock()
}

// signalOne wakes the longest-waiting waiter whose category matches the
// record that just became available, removing it from the queue. Returns
// true if a waiter was found and signaled.
func (q *waiterQueue) signalOne(protocol Protocol, family IPVersion) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for el := q.waiters.Front(); el != nil; el = el.Next() {
		w := el.Value.(*waiter)
		if !categoryMatches(w.category, protocol, family) {
			continue
		}
		q.waiters.Remove(el)
		delete(q.index, w)
		w.wake <- struct{}{}
		return true
	}
	return false
}

// signalAll wakes and removes every parked waiter regardless of category,
// used by Close to unblock every blocked Borrow with ErrPoolClosed.
func (q *waiterQueue) signalAll() {
	q.mu.Lock()
	defer q.mu.Unlock()

	for el := q.waiters.Front(); el != nil; el = el.Next() {
		w := el.Value.(*waiter)
		w.wake <- struct{}{}
	}
	q.waiters.Init()
	q.index = make(map[*waiter]*list.Element)
}

// len reports the number of parked waiters.
func (q *waiterQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.waiters.Len()
}

func categoryMatches(category Category, protocol Protocol, family IPVersion) bool {
	switch category {
	case CategoryAny:
		return true
	case CategoryTCP:
		return protocol == ProtocolTCP
	case CategoryUDP:
		return protocol == ProtocolUDP
	case CategoryIPv4:
		return family == IPVersionIPv4
	case CategoryIPv6:
		return family == IPVersionIPv6
	default:
		return false
	}
}
