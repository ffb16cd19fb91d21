package coost

// stackArena models a fixed array of stackNum reusable stack slots.
//
// A fiber runtime with fixed stack addresses would need an
// evacuate/restore dance here, copying a suspended fiber's live bytes out
// to a spill buffer before reusing its slot. A Go goroutine's stack is
// already independently managed and grown/shrunk by the runtime; there are
// no fixed addresses to fight over, so there is nothing to copy. What the
// arena still usefully models is the slot assignment policy (coroutine
// steered to localIndex mod stackNum) and slot contention accounting: when
// two live, still-suspended coroutines are steered to the same slot, that
// is surfaced as a metric/log event instead of a byte copy.
//
// Not safe for concurrent use: only the owning scheduler touches it.
type stackArena struct {
	sched     *Scheduler
	occupants []*Coroutine // index == slot
	evictions uint64        // slot-contention count, exposed via Metrics
}

func newStackArena(sched *Scheduler) *stackArena {
	return &stackArena{
		sched:     sched,
		occupants: make([]*Coroutine, sched.stackNum),
	}
}

// assign steers co to its slot, evicting (accounting-only) any different
// coroutine that still occupies it.
func (a *stackArena) assign(co *Coroutine) {
	slot := co.slot
	if prev := a.occupants[slot]; prev != nil && prev != co {
		a.evictions++
		a.sched.log.debug("stackarena", "slot contention", func(b logBuilder) logBuilder {
			return b.Int("slot", slot)
		})
	}
	a.occupants[slot] = co
}

// release clears a coroutine's slot once it terminates.
func (a *stackArena) release(co *Coroutine) {
	if a.occupants[co.slot] == co {
		a.occupants[co.slot] = nil
	}
}
