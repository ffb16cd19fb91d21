// Package coost provides a multi-threaded scheduler that multiplexes many
// lightweight, stackful coroutines over a small pool of OS threads, plus the
// coroutine-aware synchronization primitives (mutex, event, wait group,
// channel, object pool) needed to write cooperatively scheduled network
// code without blocking an OS thread on every I/O wait.
//
// # Architecture
//
// Each [Scheduler] owns one OS thread and runs an event loop: it resumes
// ready coroutines, polls an OS readiness backend (epoll on Linux, kqueue on
// Darwin, IOCP on Windows) for socket readiness, and fires due timers. A
// [Manager] owns a fixed set of schedulers and distributes newly spawned
// coroutines across them by a power-of-two-choices load policy; once a
// coroutine has been resumed on a scheduler it never migrates.
//
// A coroutine is a goroutine parked on a rendezvous handoff rather than a
// hand-assembled stack: Go goroutines already have independent, growable
// call stacks, so there is no need to reimplement context switching in
// assembly to get "stackful" semantics. Yield points are explicit: blocking
// synchronization, channel operations, I/O waits, [Sleep], and timers.
// Nothing preempts a coroutine that never yields.
//
// # Usage
//
//	mgr, err := coost.NewManager()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer mgr.Stop()
//
//	ch := coost.NewChannel[int](8, -1)
//	mgr.Go(func() {
//	    for i := 0; i < 10; i++ {
//	        ch.Write(i, false)
//	    }
//	    ch.Close()
//	})
//	mgr.Go(func() {
//	    var v int
//	    for ch.Read(&v) {
//	        fmt.Println(v)
//	    }
//	})
//
// # Thread safety
//
// [Manager.Go], the sync primitives, and [Channel] are safe to call from any
// goroutine, coroutine or not — non-coroutine callers fall back to native OS
// blocking. Scheduler-local structures (the coroutine pool, the stack
// arena, the timer wheel) are touched only by their owning scheduler thread.
package coost
