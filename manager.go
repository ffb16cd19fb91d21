package coost

import (
	"math/rand"
	"sync"
	"sync/atomic"
)

// Manager is the process-wide scheduler manager: it owns a fixed set of
// [Scheduler]s, created once at construction, and routes newly spawned
// coroutines across them by load.
type Manager struct {
	scheds []*Scheduler

	// firstAssignCount counts coroutines routed via the initial round-robin
	// phase; once every scheduler has received its first coroutine,
	// nextSched switches to power-of-two-choices.
	firstAssignCount atomic.Int64
	roundRobin       atomic.Int64

	mask     int64 // scheds-1 when len(scheds) is a power of two, else 0
	powerOf2 bool

	// lastSeen holds each calling goroutine's last-observed CPU-time
	// snapshot per scheduler; a scheduler is judged busy only if its
	// counter increased since this caller last looked.
	lastSeen sync.Map // goroutine id -> []int64, len(scheds)

}

// NewManager creates N = min(requested, runtime.NumCPU()) schedulers, each
// with its own event-loop goroutine. With WithMainThreadScheduler,
// scheduler 0 instead runs on whichever goroutine later calls [Manager.MainLoop].
func NewManager(opts ...Option) (*Manager, error) {
	cfg := resolveOptions(opts)
	m := &Manager{
		scheds:   make([]*Scheduler, 0, cfg.schedulerCount),
		powerOf2: cfg.schedulerCount&(cfg.schedulerCount-1) == 0,
	}
	if m.powerOf2 {
		m.mask = int64(cfg.schedulerCount - 1)
	}
	for i := 0; i < cfg.schedulerCount; i++ {
		s, err := newScheduler(i, cfg.stackNumPerSched, cfg.schedulerLogLevel, m)
		if err != nil {
			for _, prev := range m.scheds {
				prev.Stop()
			}
			return nil, WrapError("coost: creating scheduler", err)
		}
		s.osThread = cfg.mainThreadSched && i == 0
		m.scheds = append(m.scheds, s)
	}
	for _, s := range m.scheds {
		if s.osThread {
			continue
		}
		go s.run()
	}
	return m, nil
}

// MainLoop runs scheduler 0 on the calling goroutine; only valid when the
// manager was built with [WithMainThreadScheduler]. It blocks until [Manager.Stop]
// is called.
func (m *Manager) MainLoop() {
	if len(m.scheds) == 0 || !m.scheds[0].osThread {
		fatalf("MainLoop", "manager was not created with WithMainThreadScheduler")
	}
	m.scheds[0].run()
}

// SchedNum returns the number of schedulers this manager owns.
func (m *Manager) SchedNum() int { return len(m.scheds) }

// Scheduler returns the i'th scheduler, panicking with a [FatalError] if out
// of range.
func (m *Manager) Scheduler(i int) *Scheduler {
	if i < 0 || i >= len(m.scheds) {
		fatalf("Scheduler", "index %d out of range [0,%d)", i, len(m.scheds))
	}
	return m.scheds[i]
}

// Go spawns fn as a new coroutine, routed to a scheduler per the
// power-of-two-choices load policy. Thread-safe.
func (m *Manager) Go(fn func()) {
	m.nextSched().Go(fn)
}

// nextSched routes round-robin until every scheduler has received its
// first coroutine, then power-of-two-choices by CPU time.
func (m *Manager) nextSched() *Scheduler {
	n := int64(len(m.scheds))
	if m.firstAssignCount.Load() < n {
		idx := m.roundRobin.Add(1) - 1
		if idx < n {
			m.firstAssignCount.Add(1)
			return m.scheds[idx]
		}
	}

	i := m.sampleIndex()
	j := m.neighborIndex(i)
	a, b := m.scheds[i], m.scheds[j]

	snap := m.snapshotFor()
	aBusy := snap[i] != 0 && a.CPUTimeNS() > snap[i]
	bBusy := snap[j] != 0 && b.CPUTimeNS() > snap[j]
	snap[i], snap[j] = a.CPUTimeNS(), b.CPUTimeNS()

	var chosen *Scheduler
	switch {
	case aBusy && !bBusy:
		chosen = b
	case bBusy && !aBusy:
		chosen = a
	default:
		// Both busy, both idle, or this is the first observation for one of
		// them: stay sticky on i.
		chosen = a
	}
	return chosen
}

func (m *Manager) sampleIndex() int64 {
	n := int64(len(m.scheds))
	if n == 1 {
		return 0
	}
	if m.powerOf2 {
		return rand.Int63() & m.mask
	}
	return rand.Int63n(n)
}

func (m *Manager) neighborIndex(i int64) int64 {
	n := int64(len(m.scheds))
	if n == 1 {
		return 0
	}
	if m.powerOf2 {
		return (i + 1) & m.mask
	}
	return (i + 1) % n
}

// snapshotFor returns (creating if needed) the calling goroutine's
// thread-local CPU-time snapshot slice.
func (m *Manager) snapshotFor() []int64 {
	gid := goroutineID()
	if v, ok := m.lastSeen.Load(gid); ok {
		return v.([]int64)
	}
	snap := make([]int64, len(m.scheds))
	actual, _ := m.lastSeen.LoadOrStore(gid, snap)
	return actual.([]int64)
}

// Stop stops every scheduler and waits for all their event loops to exit.
// Idempotent. The manager itself has no background goroutine of its own to
// tear down, only the schedulers it owns.
func (m *Manager) Stop() {
	for _, s := range m.scheds {
		s.Stop()
	}
}
