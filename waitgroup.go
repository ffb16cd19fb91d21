package coost

import "sync"

// WaitGroup is a coroutine-aware counting barrier built atop [Event]: a
// counter initialized to N, released when it reaches zero.
type WaitGroup struct {
	mu      sync.Mutex
	counter int64
	ev      *Event
}

// NewWaitGroup constructs a [WaitGroup] with its counter initialized to n.
func NewWaitGroup(n int64) *WaitGroup {
	return &WaitGroup{counter: n, ev: NewEvent(true, n == 0)}
}

// Add adjusts the counter by delta (which may be negative).
func (g *WaitGroup) Add(delta int64) {
	g.mu.Lock()
	wasZero := g.counter == 0
	g.counter += delta
	zero := g.counter == 0
	neg := g.counter < 0
	g.mu.Unlock()
	if neg {
		fatalf("WaitGroup.Add", "counter went negative")
	}
	switch {
	case zero:
		g.ev.Signal()
	case wasZero:
		// Counter left zero again: re-arm the manual-reset event so a
		// concurrent Wait blocks instead of observing the stale signal from
		// the last time the counter hit zero.
		g.ev.Reset()
	}
}

// Done decrements the counter by one; reaching zero signals every waiter.
// Decrementing past zero is a fatal invariant violation.
func (g *WaitGroup) Done() {
	g.mu.Lock()
	g.counter--
	if g.counter < 0 {
		g.mu.Unlock()
		fatalf("WaitGroup.Done", "counter underflow")
	}
	zero := g.counter == 0
	g.mu.Unlock()
	if zero {
		g.ev.Signal()
	}
}

// Wait blocks until the counter reaches zero. It never returns before the
// counter has actually reached zero at least once since the call began.
func (g *WaitGroup) Wait() {
	for {
		g.mu.Lock()
		done := g.counter == 0
		g.mu.Unlock()
		if done {
			return
		}
		if g.ev.Wait(-1) {
			g.mu.Lock()
			done = g.counter == 0
			g.mu.Unlock()
			if done {
				return
			}
			// Manual-reset event still reads signaled but counter moved
			// again (Add after a Done-to-zero then more work queued); loop
			// and re-check rather than return early.
			continue
		}
	}
}

// Load returns the current counter value.
func (g *WaitGroup) Load() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.counter
}
