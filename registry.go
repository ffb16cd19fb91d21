package coost

import (
	"runtime"
	"sync"
)

// currentCoroutines maps a running goroutine's id to the [Coroutine] it is
// currently executing, so package-level facade calls (Yield, Sleep,
// AddTimer, ...) can find "the current coroutine" without threading a
// context value through every call. Keyed by the goroutine id parsed from
// runtime.Stack's "goroutine N [...]" header, since a coroutine and its
// saved context are simply a goroutine here, not a raw stack pointer.
var currentCoroutines sync.Map // goroutine id (uint64) -> *Coroutine

func registerCurrent(co *Coroutine) {
	currentCoroutines.Store(goroutineID(), co)
}

func unregisterCurrent() {
	currentCoroutines.Delete(goroutineID())
}

// currentCoroutine returns the [Coroutine] running on the calling
// goroutine, or nil if the calling goroutine is not a coroutine (e.g. a
// plain thread caller falling back to OS primitives).
func currentCoroutine() *Coroutine {
	v, ok := currentCoroutines.Load(goroutineID())
	if !ok {
		return nil
	}
	return v.(*Coroutine)
}

// goroutineID parses the current goroutine's id out of its runtime.Stack
// header.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}
