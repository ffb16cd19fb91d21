package coost

import (
	"runtime"
	"sync"
)

// chanDoneFlags holds each goroutine's most recent [Channel] operation
// outcome: operations publish success on a per-goroutine boolean rather
// than returning a status struct, since operations are frequent and most
// callers only check the boolean return value anyway. Keyed by goroutineID
// so it works uniformly for coroutine and plain-thread callers, same as
// [currentCoroutines].
var chanDoneFlags sync.Map // goroutine id (uint64) -> bool

func setChanDone(ok bool) {
	chanDoneFlags.Store(goroutineID(), ok)
}

// ChannelOpDone returns whether the calling goroutine's most recent
// [Channel] operation succeeded.
func ChannelOpDone() bool {
	v, ok := chanDoneFlags.Load(goroutineID())
	if !ok {
		return false
	}
	return v.(bool)
}

// yieldOrGosched gives up the calling goroutine's turn: [Yield] for a
// coroutine (so its scheduler can make progress), runtime.Gosched for a
// plain goroutine. Used by [Channel.Close]'s spin-wait for a concurrent
// closer to finish.
func yieldOrGosched() {
	if co := currentCoroutine(); co != nil {
		if co.wait != nil {
			// A bare timer armed via AddTimer: suspend until it fires
			// instead of requeuing immediately.
			co.sched.suspendCurrent(co)
			return
		}
		co.sched.yieldAndRequeue(co)
		return
	}
	runtime.Gosched()
}
