package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// Pool is a bounded cache of live TCP/UDP endpoints. Borrow hands out a
// ready connection — reused from idle when one matches, freshly dialed or
// accepted when the pool has room, or parked behind a FIFO wait queue
// when neither applies. A single background reaper keeps the warm floor
// filled and reclaims idle-expired, lifetime-expired, and leaked
// endpoints. See New.
type Pool struct {
	cfg Config

	cns       *census
	idle      *idleRegistry
	admission *admissionController
	waiters   *waiterQueue
	stats     *statsCollector
	reaper    *reaper

	closed    atomic.Bool
	closeOnce sync.Once
}

// New validates cfg, wires up the pool's components, warms the pool to
// Config.MinConnections, and starts the background reaper.
func New(cfg Config) (*Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Pool{
		cfg:   cfg,
		cns:   newCensus(),
		idle:  newIdleRegistry(cfg.MaxIdleConnections),
		stats: newStatsCollector(),
	}
	p.admission = newAdmissionController(&p.cfg, p.cns, p.stats)
	p.waiters = newWaiterQueue()
	p.reaper = newReaper(p)

	if cfg.MinConnections > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), warmupBudget(cfg))
		p.warmTo(ctx, cfg.MinConnections)
		cancel()
	}

	p.reaper.start()
	return p, nil
}

func warmupBudget(cfg Config) time.Duration {
	budget := cfg.ConnectionTimeout * time.Duration(cfg.MinConnections+1)
	if budget <= 0 {
		budget = 5 * time.Second
	}
	return budget
}

func (p *Pool) warmTo(ctx context.Context, target int) {
	for p.cns.len() < target {
		rec, err := p.admission.admit(ctx, ProtocolUnknown)
		if err != nil {
			p.cfg.Logger.Warn().Err(err).Msg("pool: warm-up admission failed")
			return
		}
		if !p.idle.tryInsert(rec.id, rec.protocol, rec.ipFamily) {
			p.evictRecord(rec.id, false)
			return
		}
		p.stats.recordMovedToIdle(rec.protocol, rec.ipFamily)
	}
}

// Borrow checks out a connection of any protocol/family, blocking up to
// Config.GetConnectionTimeout.
func (p *Pool) Borrow() (*Conn, error) {
	return p.borrow(context.Background(), CategoryAny, ProtocolUnknown)
}

// BorrowContext checks out a connection of any protocol/family, blocking
// until one is available, ctx is done, or Config.GetConnectionTimeout
// elapses (whichever is first — ctx never extends the default deadline,
// it can only shorten it).
func (p *Pool) BorrowContext(ctx context.Context) (*Conn, error) {
	return p.borrow(ctx, CategoryAny, ProtocolUnknown)
}

// BorrowTCP checks out a TCP connection specifically.
func (p *Pool) BorrowTCP(ctx context.Context) (*Conn, error) {
	return p.borrow(ctx, CategoryTCP, ProtocolTCP)
}

// BorrowUDP checks out a UDP connection specifically.
func (p *Pool) BorrowUDP(ctx context.Context) (*Conn, error) {
	return p.borrow(ctx, CategoryUDP, ProtocolUDP)
}

// BorrowIPv4 checks out a connection whose peer/local address is IPv4.
func (p *Pool) BorrowIPv4(ctx context.Context) (*Conn, error) {
	return p.borrow(ctx, CategoryIPv4, ProtocolUnknown)
}

// BorrowIPv6 checks out a connection whose peer/local address is IPv6.
func (p *Pool) BorrowIPv6(ctx context.Context) (*Conn, error) {
	return p.borrow(ctx, CategoryIPv6, ProtocolUnknown)
}

// Stats returns a point-in-time snapshot of pool counters.
func (p *Pool) Stats() Stats {
	return p.stats.snapshot()
}

// Close shuts the pool down: it signals the reaper, waits for it to exit,
// wakes every parked waiter with ErrPoolClosed, and closes every census
// record (idle and checked-out alike). Idempotent.
func (p *Pool) Close() error {
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		p.reaper.stop()

		for _, id := range p.idle.drainAll() {
			p.evictRecord(id, true)
		}
		for _, rec := range p.cns.snapshot() {
			p.evictRecord(rec.id, false)
		}

		p.waiters.signalAll()
	})
	return nil
}

func (p *Pool) borrow(ctx context.Context, category Category, wantProtocol Protocol) (*Conn, error) {
	if p.closed.Load() {
		return nil, ErrPoolClosed
	}
	p.stats.recordGetRequest()
	start := time.Now()

	ctx, cancel := p.applyDeadline(ctx)
	defer cancel()

	for {
		if p.closed.Load() {
			p.stats.recordGetTime(time.Since(start))
			p.stats.recordFailed()
			return nil, ErrPoolClosed
		}

		rec, retry, err := p.tryFastPath(ctx, category)
		if err != nil {
			p.stats.recordGetTime(time.Since(start))
			p.stats.recordFailed()
			return nil, err
		}
		if rec != nil {
			p.stats.recordGetTime(time.Since(start))
			p.stats.recordSuccessful()
			return &Conn{pool: p, rec: rec}, nil
		}
		if retry {
			continue
		}

		rec, err = p.admission.admit(ctx, wantProtocol)
		if err == nil {
			rec.markInUse()
			if p.cfg.OnBorrow != nil {
				p.cfg.OnBorrow(rec.conn)
			}
			p.stats.recordGetTime(time.Since(start))
			p.stats.recordSuccessful()
			return &Conn{pool: p, rec: rec}, nil
		}
		if !errors.Is(err, ErrPoolExhausted) {
			p.stats.recordGetTime(time.Since(start))
			p.stats.recordFailed()
			return nil, categoryError(category, err)
		}

		w := p.waiters.enqueue(category)
		select {
		case <-w.wake:
			continue
		case <-ctx.Done():
			p.waiters.dequeue(w)
			p.stats.recordGetTime(time.Since(start))
			p.stats.recordTimeout()
			return nil, ErrGetConnectionTimeout
		}
	}
}

func categoryError(category Category, err error) error {
	switch category {
	case CategoryTCP, CategoryUDP:
		return errors.Join(err, ErrNoConnectionForProtocol)
	case CategoryIPv4, CategoryIPv6:
		return errors.Join(err, ErrNoConnectionForIPVersion)
	default:
		return err
	}
}

// applyDeadline ensures ctx carries a deadline no later than
// GetConnectionTimeout from now; an explicit deadline on ctx can only
// shorten that, never extend it, per §5's "deadline is the sole control".
func (p *Pool) applyDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.cfg.GetConnectionTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	deadline := time.Now().Add(p.cfg.GetConnectionTimeout)
	if existing, ok := ctx.Deadline(); ok && existing.Before(deadline) {
		return context.WithCancel(ctx)
	}
	return context.WithDeadline(ctx, deadline)
}

// tryFastPath pops an idle record for category, runs the pop-time health
// check and UDP drain, and marks it in-use. retry is true when the caller
// should loop back to the top (a stale census entry or a failed health
// check consumed an idle slot without producing a usable record).
func (p *Pool) tryFastPath(ctx context.Context, category Category) (rec *record, retry bool, err error) {
	id, found, expired := p.idle.popForBorrow(category, p.cfg.IdleTimeout)
	for _, eid := range expired {
		p.evictRecord(eid, true)
	}
	if !found {
		return nil, false, nil
	}

	r, ok := p.cns.get(id)
	if !ok {
		return nil, true, nil
	}

	if p.cfg.HealthChecker != nil && p.cfg.EnableHealthCheck && r.healthCheckStale(p.cfg.HealthCheckInterval) {
		healthy := p.runHealthCheck(ctx, r)
		r.updateHealth(healthy)
		p.stats.recordHealthCheck(healthy)
		if !healthy {
			p.evictRecord(id, true)
			return nil, true, nil
		}
	}

	if r.protocol == ProtocolUDP && r.dirtyUDPBuffer.Load() {
		if uc, ok := r.udpConn(); ok {
			_ = clearUDPReadBuffer(uc, p.cfg.UDPBufferClearTimeout, p.cfg.MaxBufferClearPackets)
		}
		r.dirtyUDPBuffer.Store(false)
	}

	r.markInUse()
	p.stats.recordMovedToActive(r.protocol, r.ipFamily)
	if r.reuseCount.Load() > 0 {
		p.stats.recordReused()
	}
	if p.cfg.OnBorrow != nil {
		p.cfg.OnBorrow(r.conn)
	}
	return r, false, nil
}

func (p *Pool) runHealthCheck(ctx context.Context, r *record) bool {
	timeout := p.cfg.HealthCheckTimeout
	hctx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		hctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	result := make(chan bool, 1)
	go func() { result <- p.cfg.HealthChecker(r.conn) }()

	select {
	case ok := <-result:
		return ok
	case <-hctx.Done():
		return false
	}
}

// release is called by Conn.Release/ReleaseUnhealthy, implementing
// §4.5.2's return path.
func (p *Pool) release(r *record, healthy bool) {
	if !healthy {
		r.updateHealth(false)
		p.stats.recordUnhealthyClosed()
		p.evictRecord(r.id, false)
		return
	}

	r.markIdle()
	r.incrementReuse()
	if p.cfg.OnReturn != nil {
		p.cfg.OnReturn(r.conn)
	}
	if r.protocol == ProtocolUDP && p.cfg.ClearUDPBufferOnReturn {
		r.dirtyUDPBuffer.Store(true)
	}

	if p.closed.Load() {
		p.evictRecord(r.id, false)
		return
	}

	if !p.idle.tryInsert(r.id, r.protocol, r.ipFamily) {
		p.evictRecord(r.id, false)
		return
	}
	p.stats.recordMovedToIdle(r.protocol, r.ipFamily)
	p.waiters.signalOne(r.protocol, r.ipFamily)
}

// evictRecord removes id from the census (releasing its admission slot)
// and closes the underlying handle. wasIdle controls which stats bucket
// the eviction is charged against.
func (p *Pool) evictRecord(id uint64, wasIdle bool) {
	rec, ok := p.cns.remove(id)
	if !ok {
		return
	}
	p.admission.release()
	if err := rec.close(); err != nil {
		p.stats.recordConnError()
	}
	p.stats.recordEvicted(rec.protocol, rec.ipFamily, wasIdle)
}
