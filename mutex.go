package coost

import "sync"

// lockState is the mutex's logical state: free, held, or about to be
// handed off to a non-coroutine waiter that just won the CV race.
type lockState int32

const (
	lockFree lockState = iota
	lockHeld
	lockHandingOff
)

// Mutex is a coroutine-aware mutex: a FIFO wait-queue of parked coroutines
// (resumed via a ready-mailbox push on hand-off) plus an internal OS
// mutex/condition-variable pair used only by non-coroutine waiters, so a
// plain goroutine calling Lock never needs to know whether it is contending
// with coroutines or other threads.
type Mutex struct {
	mu    sync.Mutex
	cv    *sync.Cond
	state lockState
	queue []*mutexWaiter
}

type mutexWaiter struct {
	co *Coroutine // nil for a non-coroutine (thread) waiter
	wr *waitRecord
}

// NewMutex constructs an unlocked [Mutex].
func NewMutex() *Mutex {
	m := &Mutex{}
	m.cv = sync.NewCond(&m.mu)
	return m
}

// Lock acquires the mutex, parking the calling coroutine (or blocking the
// calling OS thread) if it is already held.
func (m *Mutex) Lock() {
	m.mu.Lock()
	if m.state == lockFree {
		m.state = lockHeld
		m.mu.Unlock()
		return
	}

	co := currentCoroutine()
	w := &mutexWaiter{co: co}
	if co != nil {
		w.wr = newWaitRecord(co)
	}
	m.queue = append(m.queue, w)
	m.mu.Unlock()

	if co == nil {
		m.mu.Lock()
		for {
			// Wait for this waiter's specific handoff: it is unblocked either
			// by being popped to lockHandingOff (see unlock) or spuriously by
			// another waiter's notify, so re-check our own position.
			if m.state == lockHandingOff && len(m.queue) > 0 && m.queue[0] == w {
				m.queue = m.queue[1:]
				m.state = lockHeld
				m.mu.Unlock()
				return
			}
			m.cv.Wait()
		}
	}

	// Coroutine path: the queue entry is popped and pushed to our own
	// scheduler's ready mailbox by Unlock; we just park.
	co.sched.parkCurrent(co, w.wr, -1)
}

// TryLock attempts to acquire the mutex without blocking.
func (m *Mutex) TryLock() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == lockFree {
		m.state = lockHeld
		return true
	}
	return false
}

// Unlock releases the mutex, handing it directly to the front of the FIFO
// wait-queue if non-empty; the lock remains logically held and transfers
// to that waiter.
func (m *Mutex) Unlock() {
	m.mu.Lock()
	if len(m.queue) == 0 {
		m.state = lockFree
		m.mu.Unlock()
		return
	}
	front := m.queue[0]
	if front.co != nil {
		m.queue = m.queue[1:]
		m.mu.Unlock()
		// Lock remains logically held; resuming the coroutine on its own
		// ready mailbox transfers ownership without ever observing unlocked.
		if front.wr.signal() {
			wakeCoroutine(front.co)
		} else {
			// front already timed out (mutex has no timeouts today, kept for
			// symmetry with the wait-record protocol); retry with the next
			// waiter.
			m.Unlock()
		}
		return
	}
	// Hand off to a thread waiter: it claims the lock itself on wake.
	m.state = lockHandingOff
	m.cv.Broadcast()
	m.mu.Unlock()
}

// wakeCoroutine hands a parked coroutine back to its owning scheduler's
// ready mailbox. This is the only safe way to wake a coroutine from an
// arbitrary signaler goroutine: the mailbox is the one piece of scheduler
// state that is safe to touch from any thread. The scheduler's own drain
// loop performs the actual resume, including cancelling any outstanding
// timer for this wait.
func wakeCoroutine(co *Coroutine) {
	co.sched.tasks.pushReady(co)
}
