package coost

import (
	"sync"
	"sync/atomic"
	"time"
)

// processStart anchors the monotonic millisecond clock every scheduler's
// timer wheel shares.
var processStart = time.Now()

func nowMillis() int64 { return time.Since(processStart).Milliseconds() }

// ioWaiter records the coroutine (by local index and generation) parked on
// each direction of an fd: at most one waiting reader and one waiting
// writer. The generation stamp lets a readiness event for a recycled
// descriptor be dropped instead of resolving the wrong coroutine.
type ioWaiter struct {
	readIdx, writeIdx uint32
	readGen, writeGen uint32
	hasRead, hasWrite bool
}

// Scheduler owns one event loop's worth of cooperative execution: a
// coroutine pool, stack arena, timer wheel, task mailbox and readiness
// backend, run through a single tick loop. Coroutine resume/yield is
// implemented via [handoff].
type Scheduler struct {
	id       int
	stackNum int
	mgr      *Manager
	log      *schedLogger

	pool    *coroutinePool
	arena   *stackArena
	timers  *timerWheel
	tasks   *taskManager
	be      backend
	metrics *schedulerMetrics

	state *fastState

	cpuTimeNS atomic.Int64

	ioMu      sync.Mutex
	ioWaiters map[int]*ioWaiter

	stopped  chan struct{}
	stopOnce sync.Once

	// osThread is true for a scheduler whose run() executes on the
	// goroutine that called it directly (a main-thread scheduler), rather
	// than one spawned internally by the manager.
	osThread bool
}

func newScheduler(id, stackNum int, logLevel LogLevel, mgr *Manager) (*Scheduler, error) {
	be, err := newPlatformBackend()
	if err != nil {
		return nil, err
	}
	s := &Scheduler{
		id:        id,
		stackNum:  stackNum,
		mgr:       mgr,
		log:       newSchedLogger(id, logLevel),
		timers:    newTimerWheel(),
		be:        be,
		state:     newFastState(),
		ioWaiters: make(map[int]*ioWaiter),
		stopped:   make(chan struct{}),
		metrics:   newSchedulerMetrics(),
	}
	s.pool = newCoroutinePool(s)
	s.arena = newStackArena(s)
	s.tasks = newTaskManager(s.be.signal)
	return s, nil
}

// CPUTimeNS returns the scheduler's cumulative CPU-time counter, the load
// signal the manager's power-of-two-choices policy samples.
func (s *Scheduler) CPUTimeNS() int64 { return s.cpuTimeNS.Load() }

// ID returns the scheduler's index within its manager.
func (s *Scheduler) ID() int { return s.id }

// Go submits a new closure to be spawned as a coroutine on this scheduler.
// Thread-safe; may be called from any goroutine.
func (s *Scheduler) Go(fn func()) {
	if s.state.Load() == stateStopped {
		return
	}
	s.tasks.pushClosure(fn)
}

// run is the scheduler's event loop; it blocks until Stop is called and
// the loop drains.
func (s *Scheduler) run() {
	if !s.state.TryTransition(stateAwake, stateRunning) {
		return
	}
	defer close(s.stopped)
	for {
		st := s.state.Load()
		if st == stateStopping {
			s.drainOnce()
			s.state.Store(stateStopped)
			_ = s.be.close()
			return
		}
		s.tick()
	}
}

// tick is a single iteration of the event loop: poll readiness, drain the
// mailbox, then fire due timers.
func (s *Scheduler) tick() {
	// Poll the readiness backend and resolve events to coroutines, resuming
	// I/O-ready coroutines before anything else.
	s.pollOnce()

	// Drain the task manager -- spawn new closures, resume ready
	// coroutines.
	closures, ready := s.tasks.drain()
	for _, fn := range closures {
		s.spawn(fn)
	}
	for _, co := range ready {
		// A coroutine reaching the ready mailbox was woken by a signaler on
		// some other goroutine; any timer it armed for the same wait must be
		// cancelled here, on the owning scheduler's own goroutine, since
		// timerWheel is scheduler-local and not concurrency-safe.
		s.timers.cancel(co.timer)
		s.resume(co, false)
	}

	// Timers due last.
	due, _ := s.timers.checkDue(nowMillis())
	for _, co := range due {
		co.lastTimedOut.Store(true)
		s.resume(co, true)
	}
}

// pollOnce blocks the scheduler goroutine in the readiness backend for up
// to the timeout implied by pending timers/tasks, then resolves any
// events into resumed (or cross-scheduler-pushed) coroutines.
func (s *Scheduler) pollOnce() {
	timeout := s.calculateTimeout()
	s.state.TryTransition(stateRunning, stateSleeping)
	events, err := s.be.wait(nil, timeout)
	s.state.TryTransition(stateSleeping, stateRunning)
	if err != nil {
		s.log.warn("poll", "backend wait failed", func(b logBuilder) logBuilder {
			return b.Str("error", err.Error())
		})
		return
	}
	for _, ev := range events {
		if s.be.isSelfSignal(ev) {
			s.be.drainSelfSignal()
			continue
		}
		s.dispatchIOEvent(ev)
	}
}

func (s *Scheduler) calculateTimeout() int {
	const maxWaitMS = 10_000
	wait := maxWaitMS
	_, nextDeadline := s.timers.checkDue(nowMillis() - 1<<40) // peek without popping anything due
	if nextDeadline >= 0 {
		delta := int(nextDeadline - nowMillis())
		if delta < 0 {
			delta = 0
		}
		if delta < wait {
			wait = delta
		}
	}
	if wait > 0 && wait < 1 {
		wait = 1
	}
	return wait
}

// dispatchIOEvent resolves a readiness event to its waiting coroutine (per
// direction) and resumes it. ioWaiters is scheduler-local, so the waiter
// always belongs to this scheduler.
func (s *Scheduler) dispatchIOEvent(ev pollEvent) {
	s.ioMu.Lock()
	w, ok := s.ioWaiters[ev.fd]
	var idx, gen uint32
	var found bool
	if ok {
		if ev.dir == ioRead && w.hasRead {
			idx, gen, found = w.readIdx, w.readGen, true
			w.hasRead = false
		} else if ev.dir == ioWrite && w.hasWrite {
			idx, gen, found = w.writeIdx, w.writeGen, true
			w.hasWrite = false
		}
		if !w.hasRead && !w.hasWrite {
			delete(s.ioWaiters, ev.fd)
		}
	}
	s.ioMu.Unlock()
	if !found {
		return
	}
	co := s.pool.byLocalIndex(idx)
	if co == nil || co.generation != gen || co.wait == nil {
		return
	}
	if co.wait.signal() {
		s.timers.cancel(co.timer)
		s.resume(co, false)
	}
}

// spawn allocates a coroutine descriptor for fn and resumes it for the
// first time.
func (s *Scheduler) spawn(fn func()) *Coroutine {
	co := s.pool.alloc(fn)
	co.hf = newHandoff()
	s.arena.assign(co)
	go s.runCoroutineEntry(co)
	s.resume(co, false)
	return co
}

// runCoroutineEntry is the trampoline every coroutine goroutine runs: it
// blocks for its first resume, runs the closure to completion (recovering
// any panic so errors never propagate across schedulers), then jumps back
// one final time with exited=true.
func (s *Scheduler) runCoroutineEntry(co *Coroutine) {
	<-co.hf.resumeCh
	registerCurrent(co)
	defer func() {
		unregisterCurrent()
		if r := recover(); r != nil {
			s.log.error("coroutine", "panic recovered", func(b logBuilder) logBuilder {
				return b.Str("recover", errorString(r))
			})
		}
		co.hf.terminate()
	}()
	co.closure()
}

func errorString(r any) string {
	if err, ok := r.(error); ok {
		return err.Error()
	}
	return "panic"
}

// resume jumps into an already-allocated coroutine and, on
// yield/terminate, accounts for elapsed CPU time and releases resources.
func (s *Scheduler) resume(co *Coroutine, timedOut bool) {
	start := time.Now()
	y := co.hf.jump(resumeArg{timedOut: timedOut})
	elapsed := time.Since(start)
	s.cpuTimeNS.Add(elapsed.Nanoseconds())
	s.metrics.record(elapsed)
	if y.exited {
		s.arena.release(co)
		s.pool.release(co)
	}
}

// yieldCurrent is called by [Yield] from inside a coroutine's own
// goroutine; it is the only legal caller of handoff.yield.
func (s *Scheduler) yieldCurrent(co *Coroutine) resumeArg {
	return co.hf.yield()
}

// yieldAndRequeue gives up the coroutine's turn: it is placed back on its
// own scheduler's ready mailbox so it runs again on a later tick, with no
// signaler or timer involved.
func (s *Scheduler) yieldAndRequeue(co *Coroutine) {
	s.tasks.pushReady(co)
	s.yieldCurrent(co)
}

// suspendCurrent parks the coroutine on an already-armed wait record (see
// AddTimer) without requeuing it; the timer, or a signaler holding the
// record, performs the resume.
func (s *Scheduler) suspendCurrent(co *Coroutine) {
	arg := s.yieldCurrent(co)
	co.wait = nil
	co.lastTimedOut.Store(arg.timedOut)
}

// parkCurrent suspends the current coroutine on wr, arming a timer if
// timeoutMS >= 0. It must be called from inside the coroutine's own
// goroutine.
func (s *Scheduler) parkCurrent(co *Coroutine, wr *waitRecord, timeoutMS int64) {
	co.wait = wr
	if timeoutMS >= 0 {
		co.timer = s.timers.add(nowMillis()+timeoutMS, co)
	} else {
		co.timer = timerHandle{}
	}
	arg := s.yieldCurrent(co)
	co.wait = nil
	co.lastTimedOut.Store(arg.timedOut)
}

// addIOWaiter registers the current coroutine as fd's read/write waiter
// and parks it: a socket wait is just another wait-record suspension keyed
// by fd instead of a signaler.
func (s *Scheduler) addIOWaiter(fd int, dir ioDirection, co *Coroutine, wr *waitRecord, timeoutMS int64) error {
	s.ioMu.Lock()
	w, ok := s.ioWaiters[fd]
	if !ok {
		w = &ioWaiter{}
		s.ioWaiters[fd] = w
	}
	switch dir {
	case ioRead:
		if w.hasRead {
			s.ioMu.Unlock()
			return ErrFDAlreadyRegistered
		}
		w.hasRead, w.readIdx, w.readGen = true, co.localIndex, co.generation
	case ioWrite:
		if w.hasWrite {
			s.ioMu.Unlock()
			return ErrFDAlreadyRegistered
		}
		w.hasWrite, w.writeIdx, w.writeGen = true, co.localIndex, co.generation
	}
	s.ioMu.Unlock()
	if err := s.be.addEvent(fd, dir); err != nil {
		s.ioMu.Lock()
		if w, ok := s.ioWaiters[fd]; ok {
			if dir == ioRead {
				w.hasRead = false
			} else {
				w.hasWrite = false
			}
			if !w.hasRead && !w.hasWrite {
				delete(s.ioWaiters, fd)
			}
		}
		s.ioMu.Unlock()
		return err
	}
	s.parkCurrent(co, wr, timeoutMS)
	return nil
}

// delIOEvent removes a single direction's waiter for fd.
func (s *Scheduler) delIOEvent(fd int, dir ioDirection) error {
	s.ioMu.Lock()
	w, ok := s.ioWaiters[fd]
	if ok {
		if dir == ioRead {
			w.hasRead = false
		} else {
			w.hasWrite = false
		}
		if !w.hasRead && !w.hasWrite {
			delete(s.ioWaiters, fd)
		}
	}
	s.ioMu.Unlock()
	return s.be.delEvent(fd, dir)
}

// delAllIOEvents removes every waiter for fd.
func (s *Scheduler) delAllIOEvents(fd int) error {
	s.ioMu.Lock()
	delete(s.ioWaiters, fd)
	s.ioMu.Unlock()
	return s.be.delAllEvents(fd)
}

// drainOnce runs the remaining queued work once before the loop exits; it
// does not loop to a fixed point, since parked coroutines are abandoned on
// stop.
func (s *Scheduler) drainOnce() {
	closures, ready := s.tasks.drain()
	for _, fn := range closures {
		s.spawn(fn)
	}
	for _, co := range ready {
		s.timers.cancel(co.timer)
		s.resume(co, false)
	}
}

// Stop requests the scheduler's event loop to exit. It is idempotent and
// returns once the loop has exited; coroutines still parked on a sync
// primitive, channel, or timer at that point are abandoned.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		for {
			cur := s.state.Load()
			if cur == stateStopped || cur == stateStopping {
				break
			}
			if s.state.TryTransition(cur, stateStopping) {
				if cur == stateAwake {
					// The loop never started (e.g. a main-thread scheduler
					// whose MainLoop was never entered); winning the CAS from
					// Awake means run() can no longer start, so finalize here.
					s.state.Store(stateStopped)
					_ = s.be.close()
					close(s.stopped)
				} else {
					s.be.signal()
				}
				break
			}
		}
	})
	<-s.stopped
}
