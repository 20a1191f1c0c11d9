package pool

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"
)

// admissionController enforces MaxConnections and mints new records
// through the configured factory, per §4.4. admittedCount is the
// reservation ledger — it is incremented before the factory call and
// decremented again on any failure, so a slow or failing dial never lets
// the pool overshoot its cap.
type admissionController struct {
	cfg      *Config
	max      int
	admitted atomic.Int64
	census   *census
	stats    *statsCollector
	nextID   atomic.Uint64
}

func newAdmissionController(cfg *Config, c *census, s *statsCollector) *admissionController {
	return &admissionController{
		cfg:    cfg,
		max:    cfg.MaxConnections,
		census: c,
		stats:  s,
	}
}

func (a *admissionController) size() int64 {
	return a.admitted.Load()
}

// reserve CAS-increments admitted against max (0 = unbounded). Returns
// false if the cap would be exceeded.
func (a *admissionController) reserve() bool {
	for {
		n := a.admitted.Load()
		if a.max > 0 && n >= int64(a.max) {
			return false
		}
		if a.admitted.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

func (a *admissionController) release() {
	a.admitted.Add(-1)
}

// admit runs the full admission sequence: reserve a slot, invoke the
// factory bounded by ConnectionTimeout, mint a collision-free id, run
// OnCreated, insert into the census. On any failure the reservation is
// released and the error reflects the failure point.
func (a *admissionController) admit(ctx context.Context, wantProtocol Protocol) (*record, error) {
	if !a.reserve() {
		return nil, ErrPoolExhausted
	}

	conn, err := a.dial(ctx, wantProtocol)
	if err != nil {
		a.release()
		a.stats.recordConnError()
		return nil, fmt.Errorf("netconnpool: factory failed: %w", err)
	}

	id := a.mintID()
	rec := newRecord(id, conn, a.closeHookFor(conn))

	if a.cfg.OnCreated != nil {
		if err := a.cfg.OnCreated(conn); err != nil {
			_ = rec.close()
			a.release()
			return nil, fmt.Errorf("netconnpool: OnCreated failed: %w", err)
		}
	}

	a.census.insert(rec)
	a.stats.recordAdmitted(rec.protocol, rec.ipFamily)
	return rec, nil
}

func (a *admissionController) closeHookFor(conn net.Conn) func() error {
	if a.cfg.CloseConn == nil {
		return nil
	}
	return func() error { return a.cfg.CloseConn(conn) }
}

func (a *admissionController) dial(ctx context.Context, wantProtocol Protocol) (net.Conn, error) {
	timeout := a.cfg.ConnectionTimeout
	dctx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		dctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type result struct {
		conn net.Conn
		err  error
	}
	ch := make(chan result, 1)

	go func() {
		switch a.cfg.Mode {
		case ModeServer:
			acceptor := a.cfg.Acceptor
			if acceptor == nil {
				acceptor = defaultAcceptor
			}
			conn, err := acceptor(a.cfg.Listener)
			ch <- result{conn, err}
		default:
			conn, err := a.cfg.Dialer(wantProtocol)
			ch <- result{conn, err}
		}
	}()

	select {
	case r := <-ch:
		return r.conn, r.err
	case <-dctx.Done():
		// The factory call itself is not cancellable (net.Dial/Accept
		// have no context variant here), so the goroutine above may
		// still complete later and leak a connection we never close.
		// Drain it in the background so we don't leave a dangling fd.
		go func() {
			if r := <-ch; r.conn != nil {
				_ = r.conn.Close()
			}
		}()
		return nil, dctx.Err()
	}
}

func defaultAcceptor(l net.Listener) (net.Conn, error) {
	return l.Accept()
}

// mintID produces the next id from the pool's monotonic 64-bit counter,
// skipping any id still live in the census. A collision is only possible
// after the counter wraps, but the retry loop keeps the invariant exact.
func (a *admissionController) mintID() uint64 {
	for {
		id := a.nextID.Add(1)
		if id == 0 {
			continue
		}
		if !a.census.has(id) {
			return id
		}
	}
}
