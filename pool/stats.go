package pool

import (
	"sync/atomic"
	"time"
)

// Stats is a point-in-time snapshot of pool counters. It is not atomic
// across fields — callers tolerate bounded skew while the pool is under
// load, and the documented equalities hold once the system quiesces.
type Stats struct {
	TotalCreated int64
	TotalClosed  int64
	CurrentTotal int64

	CurrentIdle   int64
	CurrentActive int64

	CurrentTCP     int64
	CurrentUDP     int64
	CurrentTCPIdle int64
	CurrentUDPIdle int64

	CurrentIPv4     int64
	CurrentIPv6     int64
	CurrentIPv4Idle int64
	CurrentIPv6Idle int64

	TotalGetRequests int64
	SuccessfulGets   int64
	FailedGets       int64
	TimeoutGets      int64

	HealthCheckAttempts int64
	HealthCheckFailures int64
	UnhealthyClosed     int64

	ConnectionErrors   int64
	LeakedConnections  int64
	TotalReused        int64
	AverageReuseCount  float64

	TotalGetTime   time.Duration
	AverageGetTime time.Duration
}

// statsCollector holds all pool counters as independent atomics, so the
// borrow/return fast path never takes a lock to record telemetry — each
// counter has exactly one logical writer discipline (admission/eviction
// adjust totals, idle<->checked-out moves adjust the idle variants), per
// §4.2.
type statsCollector struct {
	totalCreated atomic.Int64
	totalClosed  atomic.Int64
	currentTotal atomic.Int64

	currentIdle   atomic.Int64
	currentActive atomic.Int64

	currentTCP     atomic.Int64
	currentUDP     atomic.Int64
	currentTCPIdle atomic.Int64
	currentUDPIdle atomic.Int64

	currentIPv4     atomic.Int64
	currentIPv6     atomic.Int64
	currentIPv4Idle atomic.Int64
	currentIPv6Idle atomic.Int64

	totalGetRequests atomic.Int64
	successfulGets   atomic.Int64
	failedGets       atomic.Int64
	timeoutGets      atomic.Int64

	healthCheckAttempts atomic.Int64
	healthCheckFailures atomic.Int64
	unhealthyClosed     atomic.Int64

	connectionErrors  atomic.Int64
	leakedConnections atomic.Int64
	totalReused       atomic.Int64

	totalGetTimeNanos atomic.Int64
}

func newStatsCollector() *statsCollector {
	return &statsCollector{}
}

// saturatingAdd adds delta to a, clamping at int64 bounds on overflow
// instead of wrapping, and reports whether it clamped. The collector's
// record* methods ignore that report, so a clamp is not logged.
func saturatingAdd(a *atomic.Int64, delta int64) (overflowed bool) {
	for {
		old := a.Load()
		sum := old + delta
		// Overflow check via sign comparison, independent of delta's sign.
		if delta > 0 && sum < old {
			sum = int64Max
			overflowed = true
		} else if delta < 0 && sum > old {
			sum = int64Min
			overflowed = true
		}
		if a.CompareAndSwap(old, sum) {
			return overflowed
		}
	}
}

const (
	int64Max = 1<<63 - 1
	int64Min = -1 << 63
)

func (s *statsCollector) recordCreated() {
	saturatingAdd(&s.totalCreated, 1)
	saturatingAdd(&s.currentTotal, 1)
}

func (s *statsCollector) recordClosed() {
	saturatingAdd(&s.totalClosed, 1)
	saturatingAdd(&s.currentTotal, -1)
}

func (s *statsCollector) recordUnhealthyClosed() {
	saturatingAdd(&s.unhealthyClosed, 1)
}

func (s *statsCollector) adjustIdle(delta int64)   { saturatingAdd(&s.currentIdle, delta) }
func (s *statsCollector) adjustActive(delta int64) { saturatingAdd(&s.currentActive, delta) }

func (s *statsCollector) adjustCategory(protocol Protocol, family IPVersion, activeDelta, idleDelta int64) {
	switch protocol {
	case ProtocolTCP:
		saturatingAdd(&s.currentTCP, activeDelta)
		saturatingAdd(&s.currentTCPIdle, idleDelta)
	case ProtocolUDP:
		saturatingAdd(&s.currentUDP, activeDelta)
		saturatingAdd(&s.currentUDPIdle, idleDelta)
	}
	switch family {
	case IPVersionIPv4:
		saturatingAdd(&s.currentIPv4, activeDelta)
		saturatingAdd(&s.currentIPv4Idle, idleDelta)
	case IPVersionIPv6:
		saturatingAdd(&s.currentIPv6, activeDelta)
		saturatingAdd(&s.currentIPv6Idle, idleDelta)
	}
}

// recordAdmitted adjusts total + category-total counters for a newly
// admitted record, counting it as active. The warm-up and warm-floor
// paths follow it with recordMovedToIdle.
func (s *statsCollector) recordAdmitted(protocol Protocol, family IPVersion) {
	s.recordCreated()
	s.adjustActive(1)
	s.adjustCategory(protocol, family, 1, 0)
}

// recordEvicted adjusts total + category-total counters for a record
// leaving the pool, whichever state (idle or checked-out) it was in.
func (s *statsCollector) recordEvicted(protocol Protocol, family IPVersion, wasIdle bool) {
	s.recordClosed()
	if wasIdle {
		s.adjustIdle(-1)
		s.adjustCategory(protocol, family, 0, -1)
	} else {
		s.adjustActive(-1)
		s.adjustCategory(protocol, family, -1, 0)
	}
}

// recordMovedToIdle adjusts counters when a checked-out record becomes idle.
func (s *statsCollector) recordMovedToIdle(protocol Protocol, family IPVersion) {
	s.adjustActive(-1)
	s.adjustIdle(1)
	s.adjustCategory(protocol, family, -1, 1)
}

// recordMovedToActive adjusts counters when an idle record is borrowed.
func (s *statsCollector) recordMovedToActive(protocol Protocol, family IPVersion) {
	s.adjustIdle(-1)
	s.adjustActive(1)
	s.adjustCategory(protocol, family, 1, -1)
}

func (s *statsCollector) recordGetRequest()  { saturatingAdd(&s.totalGetRequests, 1) }
func (s *statsCollector) recordSuccessful()  { saturatingAdd(&s.successfulGets, 1) }
func (s *statsCollector) recordFailed()      { saturatingAdd(&s.failedGets, 1) }
func (s *statsCollector) recordTimeout()     { saturatingAdd(&s.timeoutGets, 1) }
func (s *statsCollector) recordReused()      { saturatingAdd(&s.totalReused, 1) }
func (s *statsCollector) recordLeaked()      { saturatingAdd(&s.leakedConnections, 1) }
func (s *statsCollector) recordConnError()   { saturatingAdd(&s.connectionErrors, 1) }
func (s *statsCollector) recordHealthCheck(ok bool) {
	saturatingAdd(&s.healthCheckAttempts, 1)
	if !ok {
		saturatingAdd(&s.healthCheckFailures, 1)
	}
}

func (s *statsCollector) recordGetTime(d time.Duration) {
	saturatingAdd(&s.totalGetTimeNanos, d.Nanoseconds())
}

// snapshot returns a point-in-time copy, computing derived averages on
// read rather than on every write (kept off the hot path, per §4.2).
func (s *statsCollector) snapshot() Stats {
	successful := s.successfulGets.Load()
	totalTime := s.totalGetTimeNanos.Load()
	var avgGetTime time.Duration
	if successful > 0 {
		avgGetTime = time.Duration(totalTime / successful)
	}

	created := s.totalCreated.Load()
	reused := s.totalReused.Load()
	var avgReuse float64
	if created > 0 {
		avgReuse = float64(reused) / float64(created)
	}

	return Stats{
		TotalCreated: created,
		TotalClosed:  s.totalClosed.Load(),
		CurrentTotal: s.currentTotal.Load(),

		CurrentIdle:   s.currentIdle.Load(),
		CurrentActive: s.currentActive.Load(),

		CurrentTCP:     s.currentTCP.Load(),
		CurrentUDP:     s.currentUDP.Load(),
		CurrentTCPIdle: s.currentTCPIdle.Load(),
		CurrentUDPIdle: s.currentUDPIdle.Load(),

		CurrentIPv4:     s.currentIPv4.Load(),
		CurrentIPv6:     s.currentIPv6.Load(),
		CurrentIPv4Idle: s.currentIPv4Idle.Load(),
		CurrentIPv6Idle: s.currentIPv6Idle.Load(),

		TotalGetRequests: s.totalGetRequests.Load(),
		SuccessfulGets:   successful,
		FailedGets:       s.failedGets.Load(),
		TimeoutGets:      s.timeoutGets.Load(),

		HealthCheckAttempts: s.healthCheckAttempts.Load(),
		HealthCheckFailures: s.healthCheckFailures.Load(),
		UnhealthyClosed:     s.unhealthyClosed.Load(),

		ConnectionErrors:  s.connectionErrors.Load(),
		LeakedConnections: s.leakedConnections.Load(),
		TotalReused:       reused,
		AverageReuseCount: avgReuse,

		TotalGetTime:   time.Duration(totalTime),
		AverageGetTime: avgGetTime,
	}
}
