package coost

import "sync"

// taskManager is the scheduler's mailbox: two MPSC queues, "new closures"
// to spawn as coroutines and "ready coroutines" to resume, each guarded by
// a single mutex. Any goroutine may push; only the owning scheduler
// drains. Pushes are genuinely contended across threads, so a plain mutex
// around a slice beats a lock-free single-consumer ring here.
type taskManager struct {
	mu sync.Mutex

	closures    []func()
	closuresBuf []func() // double-buffer, swapped in on drain

	ready    []*Coroutine
	readyBuf []*Coroutine // double-buffer, swapped in on drain

	// wake is called when a push finds both queues empty (the mailbox as a
	// whole goes from empty to non-empty) -- the scheduler's self-pipe
	// signal, so a sleeping poll notices new work.
	wake func()
}

func newTaskManager(wake func()) *taskManager {
	return &taskManager{wake: wake}
}

// pushClosure enqueues a new closure to be spawned as a coroutine.
func (tm *taskManager) pushClosure(fn func()) {
	tm.mu.Lock()
	wasEmpty := len(tm.closures) == 0 && len(tm.ready) == 0
	tm.closures = append(tm.closures, fn)
	tm.mu.Unlock()
	if wasEmpty && tm.wake != nil {
		tm.wake()
	}
}

// pushReady enqueues an already-live coroutine to be resumed.
func (tm *taskManager) pushReady(co *Coroutine) {
	tm.mu.Lock()
	wasEmpty := len(tm.closures) == 0 && len(tm.ready) == 0
	tm.ready = append(tm.ready, co)
	tm.mu.Unlock()
	if wasEmpty && tm.wake != nil {
		tm.wake()
	}
}

// taskManagerShrinkThreshold caps how large a drained buffer may grow
// before it is dropped instead of reused: on drain, a buffer with capacity
// >= 8192 and occupancy <= half is replaced, shedding peaks.
const taskManagerShrinkThreshold = 8192

// drain swaps both queues out under a single lock. The live queue is
// replaced by its double-buffer twin so the returned slice and the fresh
// live queue never alias the same backing array; an
// oversized-but-mostly-empty twin is dropped instead of reused, shedding
// the peak.
func (tm *taskManager) drain() (closures []func(), ready []*Coroutine) {
	tm.mu.Lock()
	drainedClosures, drainedReady := tm.closures, tm.ready
	tm.closures, tm.closuresBuf = shrinkBuf(tm.closuresBuf, len(drainedClosures)), drainedClosures[:0]
	tm.ready, tm.readyBuf = shrinkReadyBuf(tm.readyBuf, len(drainedReady)), drainedReady[:0]
	tm.mu.Unlock()
	return drainedClosures, drainedReady
}

func shrinkBuf(buf []func(), drainedLen int) []func() {
	if cap(buf) >= taskManagerShrinkThreshold && drainedLen <= cap(buf)/2 {
		return nil
	}
	return buf
}

func shrinkReadyBuf(buf []*Coroutine, drainedLen int) []*Coroutine {
	if cap(buf) >= taskManagerShrinkThreshold && drainedLen <= cap(buf)/2 {
		return nil
	}
	return buf
}
