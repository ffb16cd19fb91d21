package coost

// coroutinePool is the scheduler-local descriptor allocator: index
// 0 is reserved for the scheduler's own "main" context, descriptors are
// never relocated, and a freed descriptor is recycled via a free list
// rather than returned to the runtime allocator.
//
// Not safe for concurrent use: only the owning scheduler touches it.
type coroutinePool struct {
	sched    *Scheduler
	slots    []*Coroutine // index == localIndex; nil until first use
	freeList []uint32     // recycled local indices, LIFO
	next     uint32       // next never-used local index (starts at 1)
}

func newCoroutinePool(sched *Scheduler) *coroutinePool {
	p := &coroutinePool{sched: sched, next: 1}
	p.slots = make([]*Coroutine, 1, 64)
	p.slots[0] = &Coroutine{id: makeCoroutineID(sched.id, 0), sched: sched, localIndex: 0}
	return p
}

// alloc returns a fresh or recycled coroutine descriptor for the given
// closure, ready to be resumed for the first time.
func (p *coroutinePool) alloc(closure func()) *Coroutine {
	var co *Coroutine
	if n := len(p.freeList); n > 0 {
		idx := p.freeList[n-1]
		p.freeList = p.freeList[:n-1]
		co = p.slots[idx]
		co.generation++
	} else {
		idx := p.next
		p.next++
		co = &Coroutine{
			id:         makeCoroutineID(p.sched.id, idx),
			sched:      p.sched,
			localIndex: idx,
		}
		if int(idx) >= len(p.slots) {
			p.slots = append(p.slots, co)
		} else {
			p.slots[idx] = co
		}
	}

	co.closure = closure
	co.hf = nil
	co.wait = nil
	co.timer = timerHandle{}
	co.lastTimedOut.Store(false)
	co.slot = int(co.localIndex) % p.sched.stackNum
	return co
}

// release clears a coroutine's transient fields and returns it to the free
// list; its local index and id remain reserved in case the descriptor is
// reused.
func (p *coroutinePool) release(co *Coroutine) {
	co.closure = nil
	co.hf = nil
	co.wait = nil
	co.timer = timerHandle{}
	p.freeList = append(p.freeList, co.localIndex)
}

// byLocalIndex is an O(1) lookup used by the readiness path, which only
// knows a waiter's local index.
func (p *coroutinePool) byLocalIndex(idx uint32) *Coroutine {
	if int(idx) >= len(p.slots) {
		return nil
	}
	return p.slots[idx]
}

func (p *coroutinePool) main() *Coroutine { return p.slots[0] }
