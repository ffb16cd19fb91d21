package coost

import (
	"sync"
	"time"
)

// Event is a coroutine-aware manual/auto-reset event.
// Waiters are split into two classes exactly like [Mutex]: parked
// coroutines (woken via their owning scheduler's ready mailbox) and plain
// goroutines (woken via an internal condition variable).
type Event struct {
	mu          sync.Mutex
	cv          *sync.Cond
	manualReset bool
	signaled    bool

	coWaiters     []*mutexWaiter // reused waiter shape: co + wait record
	threadWaiters int
}

// NewEvent constructs an [Event]. manualReset controls whether a successful
// wait clears the signal (auto-reset) or leaves it set for every future
// waiter until the next [Event.Reset] (manual-reset).
func NewEvent(manualReset, initiallySignaled bool) *Event {
	e := &Event{manualReset: manualReset, signaled: initiallySignaled}
	e.cv = sync.NewCond(&e.mu)
	return e
}

// Signal wakes every coroutine waiter via a CAS race against any concurrent
// timer, and notifies all thread waiters via the condition variable.
// If no waiter was present, the event goes sticky until the next
// waiter consumes it (manual-reset semantics apply regardless, since a
// manual-reset event that was never waited on should still read as
// signaled).
func (e *Event) Signal() {
	e.mu.Lock()
	woke := false
	// Every entry in coWaiters is resolved by this call, whether it wins its
	// CAS or was already claimed by a timer -- so the list always ends up
	// empty, reusing its backing array.
	cleared := e.coWaiters[:0]
	for _, w := range e.coWaiters {
		if w.wr.signal() {
			woke = true
			wakeCoroutine(w.co)
		}
	}
	e.coWaiters = cleared
	switch {
	case e.manualReset:
		e.signaled = true
	case e.threadWaiters > 0:
		// Thread waiters have no CAS-protected wait record of their own: the
		// only way to wake one is to flip signaled and let whichever one
		// reacquires e.mu first (inside its cv.Wait loop) consume it, per
		// auto-reset's single-winner contract.
		woke = true
		e.signaled = true
	case !woke:
		// Nobody was waiting: stay sticky until the next Wait consumes it.
		e.signaled = true
	}
	if e.threadWaiters > 0 {
		e.cv.Broadcast()
	}
	e.mu.Unlock()
}

// Reset clears the signaled state of a manual-reset event.
func (e *Event) Reset() {
	e.mu.Lock()
	e.signaled = false
	e.mu.Unlock()
}

// Wait blocks until the event is signaled or timeoutMS elapses. A negative
// timeoutMS disables the timer. Returns true if the event was observed
// signaled, false on timeout.
func (e *Event) Wait(timeoutMS int64) bool {
	e.mu.Lock()
	if e.signaled {
		if !e.manualReset {
			e.signaled = false
		}
		e.mu.Unlock()
		return true
	}
	if timeoutMS == 0 {
		e.mu.Unlock()
		return false
	}

	co := currentCoroutine()
	if co == nil {
		e.threadWaiters++
		var deadlineMS int64 = -1
		if timeoutMS >= 0 {
			deadlineMS = nowMillis() + timeoutMS
		}
		for !e.signaled {
			if deadlineMS < 0 {
				e.cv.Wait()
				continue
			}
			remaining := deadlineMS - nowMillis()
			if remaining <= 0 {
				e.threadWaiters--
				e.mu.Unlock()
				return false
			}
			waitCondTimeout(e.cv, remaining)
		}
		e.threadWaiters--
		if !e.manualReset {
			e.signaled = false
		}
		e.mu.Unlock()
		return true
	}

	wr := newWaitRecord(co)
	w := &mutexWaiter{co: co, wr: wr}
	e.coWaiters = append(e.coWaiters, w)
	e.mu.Unlock()

	co.sched.parkCurrent(co, wr, timeoutMS)
	return !co.lastTimedOut.Load()
}

// waitCondTimeout blocks on cv (which must be held by the caller, exactly
// like a plain cv.Wait) for at most remainingMS before waking it itself.
// sync.Cond has no native timeout; this is the standard Go workaround of
// racing a timer's Broadcast against the real one. The caller always
// rechecks its own predicate in a loop afterward, so a spurious wake from
// the timer firing at the same moment as a real signal is harmless.
func waitCondTimeout(cv *sync.Cond, remainingMS int64) {
	t := time.AfterFunc(time.Duration(remainingMS)*time.Millisecond, cv.Broadcast)
	defer t.Stop()
	cv.Wait()
}
