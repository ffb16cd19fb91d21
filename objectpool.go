package coost

// Pool is a per-scheduler object pool: one free list per scheduler,
// touched only by coroutines pinned to that scheduler (the same
// single-owner-at-a-time cooperative invariant [Scheduler] itself relies
// on), with optional create/destroy callbacks and a capacity cap per
// scheduler.
//
// sync.Pool is not usable here: its contents can be GC'd at any safepoint,
// and it has no per-shard drain hook for [Pool.Clear]; this pool is a plain
// slice-backed free list per scheduler instead.
type Pool[T any] struct {
	mgr     *Manager
	shards  []poolShard[T]
	create  func() T
	destroy func(T)
	cap     int
}

type poolShard[T any] struct {
	free []T
}

// NewPool constructs a [Pool] with one shard per scheduler owned by mgr.
// create is invoked by [Pool.Get] on an empty shard (may be nil, in which
// case Get returns the zero value); destroy is invoked by [Pool.Put] when a
// shard is already at capacity and by [Pool.Clear]. capacity <= 0 means
// unbounded.
func NewPool[T any](mgr *Manager, create func() T, destroy func(T), capacity int) *Pool[T] {
	return &Pool[T]{
		mgr:     mgr,
		shards:  make([]poolShard[T], mgr.SchedNum()),
		create:  create,
		destroy: destroy,
		cap:     capacity,
	}
}

// Get pops a value from the calling coroutine's scheduler shard, or
// constructs one via the create callback if the shard is empty. Must be
// called from a coroutine, so the owning scheduler id is defined.
func (p *Pool[T]) Get() T {
	shard := p.currentShard("Get")
	if n := len(shard.free); n > 0 {
		v := shard.free[n-1]
		shard.free = shard.free[:n-1]
		return v
	}
	if p.create != nil {
		return p.create()
	}
	var zero T
	return zero
}

// Put pushes v onto the calling coroutine's scheduler shard, or invokes the
// destroy callback if the shard is already at its capacity cap.
func (p *Pool[T]) Put(v T) {
	shard := p.currentShard("Put")
	if p.cap > 0 && len(shard.free) >= p.cap {
		if p.destroy != nil {
			p.destroy(v)
		}
		return
	}
	shard.free = append(shard.free, v)
}

func (p *Pool[T]) currentShard(op string) *poolShard[T] {
	co := currentCoroutine()
	if co == nil {
		fatalf(op, "must be called from a coroutine")
	}
	return &p.shards[co.sched.id]
}

// Clear drains every scheduler's shard, invoking destroy (if set) on each
// surviving value. If the manager's schedulers are running
// it spawns one draining coroutine per scheduler synchronized by a
// [WaitGroup] barrier -- draining each shard from inside its own owning
// scheduler, so no lock is needed -- otherwise it drains every shard
// linearly from the calling goroutine.
func (p *Pool[T]) Clear() {
	if p.allSchedulersStopped() {
		for i := range p.shards {
			p.drainShard(i)
		}
		return
	}

	wg := NewWaitGroup(int64(p.mgr.SchedNum()))
	for i := 0; i < p.mgr.SchedNum(); i++ {
		id := i
		p.mgr.Scheduler(id).Go(func() {
			p.drainShard(id)
			wg.Done()
		})
	}
	wg.Wait()
}

func (p *Pool[T]) allSchedulersStopped() bool {
	for i := 0; i < p.mgr.SchedNum(); i++ {
		if p.mgr.Scheduler(i).state.Load() != stateStopped {
			return false
		}
	}
	return true
}

func (p *Pool[T]) drainShard(id int) {
	shard := &p.shards[id]
	if p.destroy != nil {
		for _, v := range shard.free {
			p.destroy(v)
		}
	}
	shard.free = nil
}
