package coost

import (
	"sync"
)

// CopyFunc optionally replaces the plain assignment used whenever an
// element leaves a writer's hands -- into a buffer slot or directly into a
// reader's destination -- useful for types needing custom clone semantics
// (e.g. deep-copying a buffer) rather than Go's default shallow value
// copy. isMove hints that the source will not be used again.
type CopyFunc[T any] func(dst *T, src T, isMove bool)

// DestroyFunc optionally runs when an element is discarded without being
// delivered to a reader: a parked writer's value drained by [Channel.Close].
// Values already in the buffer survive Close and are never destroyed.
type DestroyFunc[T any] func(obj *T)

// chanWaiter is one parked reader or writer in a [Channel]'s FIFO
// wait-queue. The queue holds producers when the buffer is full and
// consumers when it is empty, never both at once.
type chanWaiter[T any] struct {
	co  *Coroutine // nil for a non-coroutine (thread) waiter
	wr  *waitRecord
	val T    // writer's scratch value; unused for a reader
	ptr *T   // for a reader: where to deliver the value on wake
	closed bool // set by Close when this waiter is drained instead of served
}

// Channel is a bounded, typed pipe usable from coroutines and plain
// goroutines alike: a ring buffer of capacity elements, a single mutex
// guarding all state, FIFO wait-queues for producers and consumers,
// per-operation timeouts, and idempotent close semantics.
type Channel[T any] struct {
	mu  sync.Mutex
	cv  *sync.Cond
	buf ring[T]

	writeWaiters []*chanWaiter[T]
	readWaiters  []*chanWaiter[T]

	closed int32 // 0 open, 1 closing, 2 closed

	defaultTimeoutMS int64
	copyFn           CopyFunc[T]
	destroyFn        DestroyFunc[T]
}

// ChannelOption configures a [Channel] at construction time.
type ChannelOption[T any] func(*Channel[T])

// WithCopyFunc installs a custom copy/move hook.
func WithCopyFunc[T any](fn CopyFunc[T]) ChannelOption[T] {
	return func(c *Channel[T]) { c.copyFn = fn }
}

// WithDestroyFunc installs a custom destroy hook, invoked whenever an
// in-flight element (a parked writer's value) is discarded by Close instead
// of delivered.
func WithDestroyFunc[T any](fn DestroyFunc[T]) ChannelOption[T] {
	return func(c *Channel[T]) { c.destroyFn = fn }
}

// NewChannel constructs a [Channel] with the given buffer capacity (0 for
// an unbuffered/rendezvous channel) and default per-operation timeout in
// milliseconds; a negative timeout disables the timer.
func NewChannel[T any](capacity int, defaultTimeoutMS int64, opts ...ChannelOption[T]) *Channel[T] {
	c := &Channel[T]{
		buf:              newRing[T](capacity),
		defaultTimeoutMS: defaultTimeoutMS,
	}
	c.cv = sync.NewCond(&c.mu)
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Channel[T]) copy(dst *T, src T, isMove bool) {
	if c.copyFn != nil {
		c.copyFn(dst, src, isMove)
		return
	}
	*dst = src
}

func (c *Channel[T]) destroy(v *T) {
	if c.destroyFn != nil {
		c.destroyFn(v)
	}
	var zero T
	*v = zero
}

// Write enqueues v, blocking (with the channel's default timeout) if the
// buffer is full and no reader is waiting. isMove hints the copy hook that
// the caller will not use v again. Returns false (and marks this
// goroutine's [ChannelOpDone] false) on timeout or if the channel is closed.
func (c *Channel[T]) Write(v T, isMove bool) bool {
	return c.WriteTimeout(v, isMove, c.defaultTimeoutMS)
}

// WriteTimeout is [Channel.Write] with an explicit timeout in milliseconds;
// a negative timeout disables the timer.
func (c *Channel[T]) WriteTimeout(v T, isMove bool, timeoutMS int64) bool {
	c.mu.Lock()
	if c.closed != 0 {
		c.mu.Unlock()
		setChanDone(false)
		return false
	}

	for len(c.readWaiters) > 0 {
		w := c.popReader()
		if !w.wr.signal() {
			// Reader already timed out; it drops its own queue entry on
			// resume. Try the next one.
			continue
		}
		c.copy(w.ptr, v, isMove)
		c.mu.Unlock()
		c.notifyWaiter(w)
		setChanDone(true)
		return true
	}

	if c.buf.cap() > 0 && !c.buf.full {
		var slot T
		c.copy(&slot, v, isMove)
		c.buf.push(slot)
		c.mu.Unlock()
		setChanDone(true)
		return true
	}

	// Full (or unbuffered with no reader): park as a writer.
	co := currentCoroutine()
	w := &chanWaiter[T]{co: co, val: v, wr: newWaitRecord(co)}
	c.writeWaiters = append(c.writeWaiters, w)

	if co == nil {
		ok := c.waitThread(w, timeoutMS)
		if !ok {
			c.removeWriteWaiter(w)
		}
		c.mu.Unlock()
		setChanDone(ok)
		return ok
	}
	c.mu.Unlock()

	co.sched.parkCurrent(co, w.wr, timeoutMS)
	ok := !co.lastTimedOut.Load() && !w.closed
	if !ok {
		c.mu.Lock()
		c.removeWriteWaiter(w)
		c.mu.Unlock()
	}
	setChanDone(ok)
	return ok
}

// Read dequeues the next element into dst, blocking (with the channel's
// default timeout) if the buffer is empty and no writer is waiting. Returns
// false if the wait times out, or if the channel is closed and drained.
func (c *Channel[T]) Read(dst *T) bool {
	return c.ReadTimeout(dst, c.defaultTimeoutMS)
}

// ReadTimeout is [Channel.Read] with an explicit timeout in milliseconds; a
// negative timeout disables the timer.
func (c *Channel[T]) ReadTimeout(dst *T, timeoutMS int64) bool {
	c.mu.Lock()

	if !c.buf.empty() {
		*dst = c.buf.pop()
		c.promoteWriter()
		c.mu.Unlock()
		setChanDone(true)
		return true
	}

	for len(c.writeWaiters) > 0 {
		w := c.popWriter()
		if !w.wr.signal() {
			// Writer already timed out; its value must not be delivered.
			continue
		}
		c.copy(dst, w.val, true)
		c.mu.Unlock()
		c.notifyWaiter(w)
		setChanDone(true)
		return true
	}

	if c.closed != 0 {
		c.mu.Unlock()
		setChanDone(false)
		return false
	}

	co := currentCoroutine()
	w := &chanWaiter[T]{co: co, ptr: dst, wr: newWaitRecord(co)}
	c.readWaiters = append(c.readWaiters, w)

	if co == nil {
		ok := c.waitThread(w, timeoutMS)
		if !ok {
			c.removeReadWaiter(w)
		}
		c.mu.Unlock()
		setChanDone(ok)
		return ok
	}
	c.mu.Unlock()

	co.sched.parkCurrent(co, w.wr, timeoutMS)
	ok := !co.lastTimedOut.Load() && !w.closed
	if !ok {
		c.mu.Lock()
		c.removeReadWaiter(w)
		c.mu.Unlock()
	}
	setChanDone(ok)
	return ok
}

// promoteWriter moves the earliest waiting writer's value into the slot a
// Read just freed, so a full buffer keeps flowing without an extra
// park/resume round trip. Must be called with c.mu held.
func (c *Channel[T]) promoteWriter() {
	if c.buf.cap() == 0 {
		return
	}
	for len(c.writeWaiters) > 0 && !c.buf.full {
		w := c.popWriter()
		if !w.wr.signal() {
			// Timed-out writer: its value must not be delivered.
			continue
		}
		var slot T
		c.copy(&slot, w.val, true)
		c.buf.push(slot)
		c.notifyWaiter(w)
		return
	}
}

func (c *Channel[T]) popReader() *chanWaiter[T] {
	w := c.readWaiters[0]
	c.readWaiters = c.readWaiters[1:]
	return w
}

func (c *Channel[T]) popWriter() *chanWaiter[T] {
	w := c.writeWaiters[0]
	c.writeWaiters = c.writeWaiters[1:]
	return w
}

func (c *Channel[T]) removeReadWaiter(target *chanWaiter[T]) {
	c.readWaiters = removeWaiter(c.readWaiters, target)
}

func (c *Channel[T]) removeWriteWaiter(target *chanWaiter[T]) {
	c.writeWaiters = removeWaiter(c.writeWaiters, target)
}

func removeWaiter[T any](waiters []*chanWaiter[T], target *chanWaiter[T]) []*chanWaiter[T] {
	for i, w := range waiters {
		if w == target {
			return append(waiters[:i], waiters[i+1:]...)
		}
	}
	return waiters
}

// notifyWaiter wakes a waiter whose wait record the caller has already
// resolved by winning w.wr.signal()'s CAS -- a coroutine via its owning
// scheduler's ready mailbox, a thread via the condition variable. The
// winning CAS is what makes the preceding value handoff safe: a parked
// coroutine stays parked until the mailbox push, and a waiting thread
// cannot observe the record before re-acquiring c.mu.
func (c *Channel[T]) notifyWaiter(w *chanWaiter[T]) {
	if w.co != nil {
		wakeCoroutine(w.co)
		return
	}
	c.cv.Broadcast()
}

// waitThread blocks a non-coroutine caller on c.cv until w.wr is resolved or
// the timeout elapses. Must be called with c.mu held; it is released and reacquired internally
// since the thread path uses the condition variable, not parkCurrent.
func (c *Channel[T]) waitThread(w *chanWaiter[T], timeoutMS int64) bool {
	var deadlineMS int64 = -1
	if timeoutMS >= 0 {
		deadlineMS = nowMillis() + timeoutMS
	}
	for w.wr.outcome() == waitPending {
		if deadlineMS < 0 {
			c.cv.Wait()
			continue
		}
		remaining := deadlineMS - nowMillis()
		if remaining <= 0 {
			w.wr.expire()
			return w.wr.outcome() == waitReady && !w.closed
		}
		waitCondTimeout(c.cv, remaining)
	}
	return w.wr.outcome() == waitReady && !w.closed
}

// Close idempotently closes the channel. The first caller
// drains every parked reader and writer with a closed result, wakes them,
// then marks the channel fully closed; concurrent callers spin briefly
// until that transition completes.
func (c *Channel[T]) Close() error {
	c.mu.Lock()
	for {
		switch c.closed {
		case 0:
			goto drain
		case 2:
			c.mu.Unlock()
			return nil
		default: // 1: another goroutine is draining right now
			c.mu.Unlock()
			yieldOrGosched()
			c.mu.Lock()
		}
	}
drain:
	c.closed = 1
	readers, writers := c.readWaiters, c.writeWaiters
	c.readWaiters, c.writeWaiters = nil, nil
	for _, w := range readers {
		w.closed = true
		if w.wr.signal() && w.co != nil {
			wakeCoroutine(w.co)
		}
	}
	for _, w := range writers {
		w.closed = true
		c.destroy(&w.val)
		if w.wr.signal() && w.co != nil {
			wakeCoroutine(w.co)
		}
	}
	c.closed = 2
	c.cv.Broadcast()
	c.mu.Unlock()
	return nil
}

// IsClosed reports whether Close has completed.
func (c *Channel[T]) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed == 2
}

// Len returns the number of buffered elements.
func (c *Channel[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.len()
}

// Cap returns the channel's buffer capacity.
func (c *Channel[T]) Cap() int { return c.buf.cap() }
