package coost

import (
	"sync"
	"time"
)

// SchedulerMetrics is a point-in-time snapshot of one scheduler's load
// signal (cumulative CPU time), resume-latency percentiles, and queue
// depth.
type SchedulerMetrics struct {
	ID            int
	CPUTimeNS     int64
	ResumeP50     time.Duration
	ResumeP99     time.Duration
	StackEvictions uint64
	PendingTimers int
}

// schedulerMetrics is the live, mutable counterpart owned by a [Scheduler]:
// a mutex-guarded pair of P² estimators sampling resume latency.
type schedulerMetrics struct {
	mu  sync.Mutex
	p50 *quantileEstimator
	p99 *quantileEstimator
}

func newSchedulerMetrics() *schedulerMetrics {
	return &schedulerMetrics{
		p50: newQuantileEstimator(0.50),
		p99: newQuantileEstimator(0.99),
	}
}

func (m *schedulerMetrics) record(d time.Duration) {
	m.mu.Lock()
	m.p50.observe(float64(d))
	m.p99.observe(float64(d))
	m.mu.Unlock()
}

func (m *schedulerMetrics) snapshot() (p50, p99 time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return time.Duration(m.p50.value()), time.Duration(m.p99.value())
}

// Metrics returns a snapshot of this scheduler's load signal and
// resume-latency percentiles.
func (s *Scheduler) Metrics() SchedulerMetrics {
	p50, p99 := s.metrics.snapshot()
	return SchedulerMetrics{
		ID:             s.id,
		CPUTimeNS:      s.CPUTimeNS(),
		ResumeP50:      p50,
		ResumeP99:      p99,
		StackEvictions: s.arena.evictions,
		PendingTimers:  s.timers.len(),
	}
}

// ManagerMetrics aggregates every scheduler's snapshot plus the
// load-balance signal the routing policy optimizes for: the ratio between
// the busiest and least-busy scheduler's cumulative CPU time.
type ManagerMetrics struct {
	Schedulers []SchedulerMetrics
	// LoadRatio is max(CPUTimeNS)/min(CPUTimeNS) across schedulers, or 1 if
	// any scheduler has not done any work yet.
	LoadRatio float64
}

// Metrics returns a snapshot across every scheduler owned by the manager.
func (m *Manager) Metrics() ManagerMetrics {
	out := ManagerMetrics{Schedulers: make([]SchedulerMetrics, len(m.scheds))}
	var min, max int64 = -1, 0
	for i, s := range m.scheds {
		sm := s.Metrics()
		out.Schedulers[i] = sm
		if sm.CPUTimeNS > max {
			max = sm.CPUTimeNS
		}
		if min < 0 || sm.CPUTimeNS < min {
			min = sm.CPUTimeNS
		}
	}
	if min <= 0 {
		out.LoadRatio = 1
	} else {
		out.LoadRatio = float64(max) / float64(min)
	}
	return out
}
