package pool

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestSaturatingAddClampsOnOverflow(t *testing.T) {
	var a atomic.Int64
	a.Store(int64Max - 1)

	if overflowed := saturatingAdd(&a, 10); !overflowed {
		t.Fatal("expected overflow to be reported")
	}
	if a.Load() != int64Max {
		t.Fatalf("value = %d, want clamp at int64Max", a.Load())
	}

	a.Store(int64Min + 1)
	if overflowed := saturatingAdd(&a, -10); !overflowed {
		t.Fatal("expected underflow to be reported")
	}
	if a.Load() != int64Min {
		t.Fatalf("value = %d, want clamp at int64Min", a.Load())
	}
}

func TestStatsCollectorAdmitReuseEvict(t *testing.T) {
	s := newStatsCollector()

	s.recordAdmitted(ProtocolTCP, IPVersionIPv4)
	snap := s.snapshot()
	if snap.TotalCreated != 1 || snap.CurrentActive != 1 || snap.CurrentTCP != 1 {
		t.Fatalf("snapshot after admit = %+v", snap)
	}

	s.recordMovedToIdle(ProtocolTCP, IPVersionIPv4)
	s.recordMovedToActive(ProtocolTCP, IPVersionIPv4)
	s.recordReused()

	snap = s.snapshot()
	if snap.CurrentIdle != 0 || snap.CurrentActive != 1 {
		t.Fatalf("snapshot after move-idle/move-active = %+v", snap)
	}
	if snap.TotalReused != 1 {
		t.Fatalf("TotalReused = %d, want 1", snap.TotalReused)
	}
	if snap.AverageReuseCount != 1.0 {
		t.Fatalf("AverageReuseCount = %v, want 1.0", snap.AverageReuseCount)
	}

	s.recordEvicted(ProtocolTCP, IPVersionIPv4, false)
	snap = s.snapshot()
	if snap.CurrentTotal != 0 || snap.CurrentActive != 0 {
		t.Fatalf("snapshot after evict = %+v", snap)
	}
}

func TestStatsCollectorGetTimeAverage(t *testing.T) {
	s := newStatsCollector()
	s.recordSuccessful()
	s.recordGetTime(100 * time.Millisecond)
	s.recordSuccessful()
	s.recordGetTime(300 * time.Millisecond)

	snap := s.snapshot()
	if snap.AverageGetTime != 200*time.Millisecond {
		t.Fatalf("AverageGetTime = %v, want 200ms", snap.AverageGetTime)
	}
}

func TestStatsCollectorConcurrentSaturatingAdd(t *testing.T) {
	s := newStatsCollector()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.recordGetRequest()
		}()
	}
	wg.Wait()

	if got := s.snapshot().TotalGetRequests; got != 100 {
		t.Fatalf("TotalGetRequests = %d, want 100", got)
	}
}
