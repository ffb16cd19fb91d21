package coost

import "container/heap"

// timerHandle identifies an entry in a timerWheel. The zero value is the
// end-sentinel a coroutine's timer field holds while no timer is armed.
type timerHandle struct {
	id    uint64
	valid bool
}

// timerEntry is (deadline, coroutine), ordered by deadline with ties
// broken by insertion order. gen is the coroutine's generation at arming
// time; a mismatch at expiry means the descriptor was recycled and the
// entry is stale.
type timerEntry struct {
	id         uint64
	deadlineMS int64
	seq        uint64
	co         *Coroutine
	gen        uint32
	index      int // heap index, maintained by container/heap
}

// timerWheel is a scheduler-local ordered map (deadline -> coroutine)
// backed by container/heap; a binary min-heap is the natural container for
// an insert, delete, pop-all-due workload.
//
// Not safe for concurrent use: only the owning scheduler touches it.
type timerWheel struct {
	entries timerHeapImpl
	nextSeq uint64
	byID    map[uint64]*timerEntry
	nextID  uint64
}

func newTimerWheel() *timerWheel {
	return &timerWheel{
		byID: make(map[uint64]*timerEntry),
	}
}

// add inserts a new timer entry and returns a stable handle the coroutine
// should keep so it can cancel the timer later.
func (tw *timerWheel) add(deadlineMS int64, co *Coroutine) timerHandle {
	tw.nextID++
	id := tw.nextID
	tw.nextSeq++
	e := &timerEntry{id: id, deadlineMS: deadlineMS, seq: tw.nextSeq, co: co, gen: co.generation}
	heap.Push(&tw.entries, e)
	tw.byID[id] = e
	return timerHandle{id: id, valid: true}
}

// cancel removes a timer entry in O(log n). Canceling an already-fired or
// unknown handle is a silent no-op — the caller (e.g. a signaler that won
// the wait-record race) may race harmlessly against an already-popped
// timer.
func (tw *timerWheel) cancel(h timerHandle) {
	if !h.valid {
		return
	}
	e, ok := tw.byID[h.id]
	if !ok {
		return
	}
	delete(tw.byID, h.id)
	heap.Remove(&tw.entries, e.index)
}

// checkDue pops every entry whose deadline has passed, CASing each
// coroutine's wait record from Pending to TimedOut. A
// coroutine whose record was already claimed by a signaler is silently
// dropped — the signaler won the race — as is an entry whose coroutine
// descriptor was recycled since arming (generation mismatch). It returns
// the coroutines to resume and the next deadline (or -1 if the wheel is
// empty), which the scheduler uses to size its next backend poll.
func (tw *timerWheel) checkDue(nowMS int64) (due []*Coroutine, nextDeadlineMS int64) {
	for len(tw.entries) > 0 && tw.entries[0].deadlineMS <= nowMS {
		e := heap.Pop(&tw.entries).(*timerEntry)
		delete(tw.byID, e.id)
		if e.co.generation != e.gen {
			continue
		}
		if e.co.wait != nil && e.co.wait.expire() {
			due = append(due, e.co)
		}
	}
	if len(tw.entries) == 0 {
		return due, -1
	}
	return due, tw.entries[0].deadlineMS
}

func (tw *timerWheel) len() int { return len(tw.entries) }

// timerHeapImpl implements heap.Interface over *timerEntry.
type timerHeapImpl []*timerEntry

func (h timerHeapImpl) Len() int { return len(h) }

func (h timerHeapImpl) Less(i, j int) bool {
	if h[i].deadlineMS != h[j].deadlineMS {
		return h[i].deadlineMS < h[j].deadlineMS
	}
	return h[i].seq < h[j].seq
}

func (h timerHeapImpl) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeapImpl) Push(x any) {
	e := x.(*timerEntry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *timerHeapImpl) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}
