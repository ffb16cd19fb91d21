package coost

import (
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_SchedNumClampedToCPUCount(t *testing.T) {
	mgr := newTestManager(t, WithSchedulerCount(runtime.NumCPU()*4))
	assert.Equal(t, runtime.NumCPU(), mgr.SchedNum())
}

func TestManager_SchedulerAccessorBounds(t *testing.T) {
	mgr := newTestManager(t, WithSchedulerCount(1))

	assert.NotNil(t, mgr.Scheduler(0))
	assert.PanicsWithError(t, "coost: fatal: Scheduler: index 1 out of range [0,1)", func() {
		mgr.Scheduler(1)
	})
	assert.Panics(t, func() { mgr.Scheduler(-1) })
}

func TestManager_FirstAssignmentsAreRoundRobin(t *testing.T) {
	mgr := newTestManager(t, WithSchedulerCount(2))
	if mgr.SchedNum() < 2 {
		t.Skip("needs at least two schedulers")
	}

	seen := make(map[int]bool)
	for i := 0; i < mgr.SchedNum(); i++ {
		seen[mgr.nextSched().ID()] = true
	}
	assert.Len(t, seen, mgr.SchedNum(),
		"every scheduler receives exactly one of the first N assignments")
}

func TestManager_NextSchedAlwaysReturnsOwnedScheduler(t *testing.T) {
	mgr := newTestManager(t, WithSchedulerCount(3))

	for i := 0; i < 1000; i++ {
		s := mgr.nextSched()
		require.NotNil(t, s)
		require.Less(t, s.ID(), mgr.SchedNum())
	}
}

func TestManager_NextSchedIsSafeFromConcurrentCallers(t *testing.T) {
	mgr := newTestManager(t, WithSchedulerCount(2))

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				_ = mgr.nextSched()
			}
		}()
	}
	wg.Wait()
}

func TestManager_GoDistributesAcrossSchedulers(t *testing.T) {
	mgr := newTestManager(t, WithSchedulerCount(2))
	if mgr.SchedNum() < 2 {
		t.Skip("needs at least two schedulers")
	}

	var wg sync.WaitGroup
	const n = 64
	wg.Add(n)
	for i := 0; i < n; i++ {
		mgr.Go(func() {
			defer wg.Done()
			deadline := time.Now().Add(time.Millisecond)
			for time.Now().Before(deadline) {
			}
		})
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("spawned coroutines never completed")
	}

	for i := 0; i < mgr.SchedNum(); i++ {
		assert.Positivef(t, mgr.Scheduler(i).CPUTimeNS(),
			"scheduler %d received no work", i)
	}
}

func TestManager_StopIsIdempotent(t *testing.T) {
	mgr, err := NewManager(WithSchedulerCount(1))
	require.NoError(t, err)
	mgr.Stop()
	mgr.Stop()
	assert.True(t, mgr.Scheduler(0).state.IsTerminal())
}

func TestManager_MainLoopRequiresOption(t *testing.T) {
	mgr := newTestManager(t, WithSchedulerCount(1))
	assert.Panics(t, func() { mgr.MainLoop() })
}

func TestManager_MainThreadSchedulerRunsOnCaller(t *testing.T) {
	mgr, err := NewManager(WithSchedulerCount(1), WithMainThreadScheduler(true))
	require.NoError(t, err)

	ran := make(chan struct{})
	mgr.Go(func() { close(ran) })

	loopDone := make(chan struct{})
	go func() {
		mgr.MainLoop()
		close(loopDone)
	}()

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("main-thread scheduler never ran the coroutine")
	}

	mgr.Stop()
	select {
	case <-loopDone:
	case <-time.After(2 * time.Second):
		t.Fatal("MainLoop did not return after Stop")
	}
}

func TestDefaultManager_SingletonIsStable(t *testing.T) {
	a, err := DefaultManager()
	require.NoError(t, err)
	b, err := DefaultManager()
	require.NoError(t, err)
	assert.Same(t, a, b)
}
