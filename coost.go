// Package-level facade: a lazily initialized, process-wide default
// [Manager]. Construction is thread-safe and idempotent.
package coost

import (
	"sync"
	"time"
)

var (
	defaultMgrOnce sync.Once
	defaultMgr     *Manager
	defaultMgrErr  error
)

// DefaultManager returns the process-wide [Manager], constructing it with
// default options on first use. Thread-safe and idempotent.
func DefaultManager() (*Manager, error) {
	defaultMgrOnce.Do(func() {
		defaultMgr, defaultMgrErr = NewManager()
	})
	return defaultMgr, defaultMgrErr
}

// Go submits fn to be spawned as a coroutine on the default manager.
// Thread-safe; panics with a [FatalError] if the default manager failed to
// initialize (e.g. the platform readiness backend could not be opened).
func Go(fn func()) {
	mgr, err := DefaultManager()
	if err != nil {
		fatalf("Go", "default manager unavailable: %v", err)
	}
	mgr.Go(fn)
}

// CurrentScheduler returns the [Scheduler] executing the calling coroutine,
// or nil if the caller is not a coroutine.
func CurrentScheduler() *Scheduler {
	if co := currentCoroutine(); co != nil {
		return co.sched
	}
	return nil
}

// SchedulerAt returns the default manager's i'th scheduler.
func SchedulerAt(i int) *Scheduler {
	mgr, err := DefaultManager()
	if err != nil {
		fatalf("SchedulerAt", "default manager unavailable: %v", err)
	}
	return mgr.Scheduler(i)
}

// SchedNum returns the default manager's scheduler count.
func SchedNum() int {
	mgr, err := DefaultManager()
	if err != nil {
		return 0
	}
	return mgr.SchedNum()
}

// CoroutineID returns the calling coroutine's id and true, or (0, false) if
// the caller is not a coroutine.
func CoroutineID() (uint64, bool) {
	co := currentCoroutine()
	if co == nil {
		return 0, false
	}
	return co.id, true
}

// Yield gives up the calling coroutine's turn. Normally the coroutine is
// requeued on its own scheduler's ready mailbox and runs again on a later
// tick; if a bare timer was armed via [AddTimer], the coroutine instead
// stays suspended until that timer fires. Calling Yield outside a
// coroutine is equivalent to runtime.Gosched.
func Yield() {
	yieldOrGosched()
}

// Sleep parks the calling coroutine for ms milliseconds via a pure timer
// wait (no signaler can ever resolve it early). Outside a coroutine, Sleep
// falls back to time.Sleep.
func Sleep(ms int64) {
	co := currentCoroutine()
	if co == nil {
		time.Sleep(time.Duration(ms) * time.Millisecond)
		return
	}
	wr := newWaitRecord(co)
	co.sched.parkCurrent(co, wr, ms)
}

// Timeout reports whether the calling coroutine's most recent suspension
// (sync primitive wait, channel operation, I/O wait, or timer) was resolved
// by a timer rather than a signaler. Valid only from inside a coroutine.
func Timeout() bool {
	co := currentCoroutine()
	if co == nil {
		return false
	}
	return co.lastTimedOut.Load()
}

// AddTimer arms a bare timer on the calling coroutine, to be combined with
// a subsequent [Yield]: the yield suspends the coroutine, rather than
// requeuing it, until the timer fires. Must be called from a coroutine.
func AddTimer(ms int64) {
	co := currentCoroutine()
	if co == nil {
		fatalf("AddTimer", "must be called from a coroutine")
	}
	co.wait = newWaitRecord(co)
	co.timer = co.sched.timers.add(nowMillis()+ms, co)
}

// OnStack reports whether ptr points into the calling coroutine's own live
// stack, for callers deciding whether a scratch copy is required before
// parking. Go goroutine stacks are never evacuated out from under a
// suspended goroutine, so there is never a dangling-pointer hazard to
// guard against; OnStack always reports false and exists so callers
// written against fixed-slot runtimes keep working.
func OnStack(ptr any) bool { return false }

// IODirection distinguishes a read-readiness from a write-readiness wait
// on a file descriptor.
type IODirection = ioDirection

const (
	IORead  = ioRead
	IOWrite = ioWrite
)

// AddIOEvent registers the calling coroutine as fd's waiter for dir and
// parks it until the backend reports readiness or timeoutMS elapses (a
// negative timeoutMS disables the timer). Must be called from a coroutine.
func AddIOEvent(fd int, dir IODirection, timeoutMS int64) error {
	co := currentCoroutine()
	if co == nil {
		fatalf("AddIOEvent", "must be called from a coroutine")
	}
	wr := newWaitRecord(co)
	return co.sched.addIOWaiter(fd, dir, co, wr, timeoutMS)
}

// DelIOEvent unregisters the calling coroutine's waiter for fd's dir
// direction. Must be called from a coroutine.
func DelIOEvent(fd int, dir IODirection) error {
	co := currentCoroutine()
	if co == nil {
		fatalf("DelIOEvent", "must be called from a coroutine")
	}
	return co.sched.delIOEvent(fd, dir)
}

// DelAllIOEvents unregisters every direction's waiter for fd. Must be
// called from a coroutine.
func DelAllIOEvents(fd int) error {
	co := currentCoroutine()
	if co == nil {
		fatalf("DelAllIOEvents", "must be called from a coroutine")
	}
	return co.sched.delAllIOEvents(fd)
}
