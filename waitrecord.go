package coost

import "sync/atomic"

// waitRecord is the rendezvous object used by every sync primitive and by
// [Channel]. A coroutine waiter parks with co set; a non-coroutine (plain
// goroutine) waiter leaves co nil and waits on its primitive's condition
// variable, rechecking the record's outcome.
//
// Exactly one of two parties resolves a waitRecord: a signaler (mutex
// unlock, event signal, channel handoff) or a timer (deadline reached).
// Both race a single CompareAndSwap against state; the loser's action is a
// no-op, so at most one side ever wins.
type waitRecord struct {
	state atomic.Uint32 // waitState

	co *Coroutine // nil for a non-coroutine (OS thread) waiter

	// done is closed exactly once, by whichever side wins the CAS. No waiter
	// in this package blocks on it: thread waiters use condition variables
	// and coroutine waiters are resumed by the scheduler.
	done chan struct{}

	timer timerHandle // not set by any caller; the armed timer lives in Coroutine.timer
}

func newWaitRecord(co *Coroutine) *waitRecord {
	return &waitRecord{
		co:   co,
		done: make(chan struct{}),
	}
}

// signal attempts to resolve the record as Ready. Returns true if this call
// won the race (i.e. the timer had not already fired).
func (w *waitRecord) signal() bool {
	if !w.state.CompareAndSwap(uint32(waitPending), uint32(waitReady)) {
		return false
	}
	close(w.done)
	return true
}

// expire attempts to resolve the record as TimedOut. Returns true if this
// call won the race (i.e. no signaler had already claimed it).
func (w *waitRecord) expire() bool {
	if !w.state.CompareAndSwap(uint32(waitPending), uint32(waitTimedOut)) {
		return false
	}
	close(w.done)
	return true
}

func (w *waitRecord) outcome() waitState {
	return waitState(w.state.Load())
}

// timedOut reports whether this record resolved via the timer side of the
// race. Valid only after the record has reached a terminal state.
func (w *waitRecord) timedOut() bool {
	return w.outcome() == waitTimedOut
}
