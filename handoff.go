package coost

// handoff is the runtime's context switcher: a pair of unbuffered,
// single-slot rendezvous channels between a coroutine's goroutine and the
// scheduler goroutine that resumes it.
//
// Go goroutines already have independent, growable stacks managed by the
// runtime, so there is no machine context to save or restore by hand --
// "switching" a coroutine in is just unblocking its goroutine by sending
// on resumeCh, and "yielding" is blocking that same goroutine on resumeCh
// again after notifying the scheduler via yieldCh.
// Both operations are a single unbuffered send/receive pair, which is the
// closest Go equivalent to a synchronous context jump: control does not
// return to the sender until the receiver is ready to run.
type handoff struct {
	resumeCh chan resumeArg // scheduler -> coroutine
	yieldCh  chan yieldArg  // coroutine -> scheduler
}

// resumeArg carries the reason a parked coroutine is being resumed.
type resumeArg struct {
	timedOut bool
}

// yieldArg carries the reason a running coroutine gave control back to its
// scheduler: either it yielded normally (exited=false) or its closure
// returned (exited=true).
type yieldArg struct {
	exited bool
}

func newHandoff() *handoff {
	return &handoff{
		resumeCh: make(chan resumeArg),
		yieldCh:  make(chan yieldArg),
	}
}

// jump is called by the scheduler goroutine to transfer control into the
// coroutine and block until it yields or terminates.
func (h *handoff) jump(arg resumeArg) yieldArg {
	h.resumeCh <- arg
	return <-h.yieldCh
}

// yield is called from inside the coroutine's own goroutine to give control
// back to the scheduler and block until resumed.
func (h *handoff) yield() resumeArg {
	h.yieldCh <- yieldArg{}
	return <-h.resumeCh
}

// terminate is called once, from inside the coroutine's goroutine, right
// before it returns; the closure never returns control any other way.
func (h *handoff) terminate() {
	h.yieldCh <- yieldArg{exited: true}
}
