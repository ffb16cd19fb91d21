package coost

import "sync/atomic"

// localIndexBits is the number of low bits of a Coroutine's 64-bit id
// reserved for its local index within the owning scheduler's pool; the
// remaining high bits carry the scheduler id.
const localIndexBits = 32

// Coroutine is an independently schedulable execution context: a goroutine
// parked on a [handoff], with a stable id, a fixed owning scheduler, a
// closure to run on first resume, an optional wait record while parked on
// a sync primitive, and a timer handle.
type Coroutine struct {
	id         uint64
	sched      *Scheduler
	localIndex uint32

	closure func()

	hf *handoff

	// wait is non-nil while the coroutine is parked on a sync primitive or
	// channel; exactly one of the signaler or the timer resolves it.
	wait *waitRecord

	// timer is the handle into the scheduler's timer wheel for the current
	// suspension, or the zero value (end-sentinel) when none is armed.
	timer timerHandle

	// lastTimedOut records whether the most recent resume was due to the
	// timer winning the wait-record race; surfaced via Timeout().
	lastTimedOut atomic.Bool

	// slot is the stack-arena slot index this coroutine is steered to:
	// co.localIndex mod stackNum.
	slot int

	// generation distinguishes reused descriptors sharing the same local
	// index: timer entries and I/O waiters stamp it at registration, and a
	// resolution whose stamp no longer matches is dropped as stale.
	generation uint32
}

// ID returns the coroutine's stable 64-bit id: scheduler id in the high
// bits, local index in the low bits.
func (c *Coroutine) ID() uint64 { return c.id }

// Scheduler returns the coroutine's fixed owning scheduler.
func (c *Coroutine) Scheduler() *Scheduler { return c.sched }

func makeCoroutineID(schedID int, localIndex uint32) uint64 {
	return uint64(schedID)<<localIndexBits | uint64(localIndex)
}

// schedulerIDFromCoroutineID extracts the high-bits scheduler id.
func schedulerIDFromCoroutineID(id uint64) int {
	return int(id >> localIndexBits)
}
