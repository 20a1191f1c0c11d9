package pool

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"
)

// reaper is the single background worker described in §4.7: one ticker
// loop that replenishes the warm floor, sweeps expired/idle-too-long
// records, reclaims leaked ones, and (optionally) publishes stats,
// structured the way provider/healthpoller.go runs its poll loop.
type reaper struct {
	pool     *Pool
	interval time.Duration

	sf singleflight.Group

	cancel context.CancelFunc
	done   chan struct{}
}

func newReaper(p *Pool) *reaper {
	interval := p.cfg.HealthCheckInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &reaper{
		pool:     p,
		interval: interval,
		done:     make(chan struct{}),
	}
}

func (r *reaper) start() {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	go r.loop(ctx)
}

func (r *reaper) stop() {
	if r.cancel != nil {
		r.cancel()
	}
	<-r.done
}

func (r *reaper) loop(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *reaper) tick(ctx context.Context) {
	if r.pool.closed.Load() {
		return
	}

	r.replenishWarmFloor(ctx)
	r.sweepExpiredAndIdle()
	r.sweepLeaked()

	if r.pool.cfg.StatsSink != nil {
		r.pool.cfg.StatsSink.Publish(r.pool.stats.snapshot())
	}
}

// replenishWarmFloor admits up to MinConnections best-effort, logging and
// retrying failures on the next tick rather than blocking this one.
// singleflight collapses this with any concurrent call to the same
// routine. Close does not call it; a replenish already in progress when
// Close runs stops at its next closed-flag check.
func (r *reaper) replenishWarmFloor(ctx context.Context) {
	if r.pool.cfg.MinConnections <= 0 {
		return
	}

	_, _, _ = r.sf.Do("warmfloor", func() (interface{}, error) {
		for {
			if r.pool.closed.Load() {
				return nil, nil
			}
			if int(r.pool.cns.len()) >= r.pool.cfg.MinConnections {
				return nil, nil
			}
			rec, err := r.pool.admission.admit(ctx, ProtocolUnknown)
			if err != nil {
				r.pool.cfg.Logger.Warn().
					Err(err).
					Msg("reaper: warm floor admission failed")
				return nil, err
			}
			if !r.pool.idle.tryInsert(rec.id, rec.protocol, rec.ipFamily) {
				// Idle registry is already at MaxIdleConnections; close
				// the spare rather than leak it outside any accounting.
				r.pool.evictRecord(rec.id, false)
				return nil, nil
			}
			r.pool.stats.recordMovedToIdle(rec.protocol, rec.ipFamily)
			r.pool.waiters.signalOne(rec.protocol, rec.ipFamily)
		}
	})
}

// sweepExpiredAndIdle walks the census once, evicting anything idle past
// IdleTimeout or idle and past MaxLifetime, per §4.7 step 3. Lifetime
// eviction only applies from the idle state; a checked-out record is
// reclaimed on expiry solely through the leak path, never out from under
// its borrower.
func (r *reaper) sweepExpiredAndIdle() {
	for _, rec := range r.pool.cns.snapshot() {
		if rec.inUse.Load() {
			continue
		}
		if rec.isExpired(r.pool.cfg.MaxLifetime) || rec.isIdleTooLong(r.pool.cfg.IdleTimeout) {
			r.pool.idle.removeByID(rec.id)
			r.pool.evictRecord(rec.id, true)
			r.pool.waiters.signalOne(rec.protocol, rec.ipFamily)
		}
	}
}

// sweepLeaked flags records checked out past ConnectionLeakTimeout and
// force-evicts anything held twice that long, per §4.7 step 4.
func (r *reaper) sweepLeaked() {
	leakTimeout := r.pool.cfg.ConnectionLeakTimeout
	if leakTimeout <= 0 {
		return
	}

	for _, rec := range r.pool.cns.snapshot() {
		if !rec.isLeaked(leakTimeout) {
			continue
		}
		r.pool.stats.recordLeaked()
		r.pool.cfg.Logger.Warn().
			Uint64("conn_id", rec.id).
			Dur("leak_timeout", leakTimeout).
			Msg("reaper: connection leak detected")

		if rec.isLeaked(2 * leakTimeout) {
			r.pool.cfg.Logger.Warn().
				Uint64("conn_id", rec.id).
				Msg("reaper: force-evicting leaked connection")
			r.pool.evictRecord(rec.id, false)
			r.pool.waiters.signalOne(rec.protocol, rec.ipFamily)
		}
	}
}
