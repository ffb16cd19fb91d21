package coost

import "sync/atomic"

// schedState is the lifecycle state of a [Scheduler].
//
//	Awake (0) -> Running (3)       [Scheduler.run starts]
//	Running -> Sleeping (2)        [blocking poll, via CAS]
//	Sleeping -> Running            [poll wakes, via CAS]
//	Running/Sleeping -> Stopping (4) [Stop()]
//	Stopping -> Stopped (1)        [loop drains and exits]
//
// Values are deliberately non-sequential: Stopped is 1 and Sleeping is 2 so
// that a stray zero-value state compares as Awake, never as terminal.
type schedState uint32

const (
	stateAwake schedState = iota
	stateStopped
	stateSleeping
	stateRunning
	stateStopping
)

func (s schedState) String() string {
	switch s {
	case stateAwake:
		return "awake"
	case stateRunning:
		return "running"
	case stateSleeping:
		return "sleeping"
	case stateStopping:
		return "stopping"
	case stateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// fastState is a lock-free state machine, cache-line padded so the hot
// CAS path in the scheduler's poll loop never false-shares with neighboring
// fields.
type fastState struct {
	_ [64]byte
	v atomic.Uint32
	_ [60]byte
}

func newFastState() *fastState {
	s := &fastState{}
	s.v.Store(uint32(stateAwake))
	return s
}

func (s *fastState) Load() schedState { return schedState(s.v.Load()) }

func (s *fastState) Store(v schedState) { s.v.Store(uint32(v)) }

func (s *fastState) TryTransition(from, to schedState) bool {
	return s.v.CompareAndSwap(uint32(from), uint32(to))
}

func (s *fastState) IsTerminal() bool { return s.Load() == stateStopped }

// waitState is the tri-state used by every wait record: the race between a
// signaler and a timer resolves to exactly one of Ready or TimedOut, via a
// single CAS from Pending.
type waitState uint32

const (
	waitPending waitState = iota
	waitReady
	waitTimedOut
)
