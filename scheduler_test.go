package coost

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, opts ...Option) *Manager {
	t.Helper()
	mgr, err := NewManager(opts...)
	require.NoError(t, err)
	t.Cleanup(mgr.Stop)
	return mgr
}

func TestScheduler_RunsSpawnedClosure(t *testing.T) {
	mgr := newTestManager(t, WithSchedulerCount(1))

	done := make(chan uint64, 1)
	mgr.Go(func() {
		id, ok := CoroutineID()
		require.True(t, ok, "closure runs as a coroutine")
		done <- id
	})

	select {
	case id := <-done:
		assert.Equal(t, 0, schedulerIDFromCoroutineID(id))
	case <-time.After(2 * time.Second):
		t.Fatal("spawned closure never ran")
	}
}

func TestScheduler_SleepResumesViaTimer(t *testing.T) {
	mgr := newTestManager(t, WithSchedulerCount(1))

	done := make(chan time.Duration, 1)
	mgr.Go(func() {
		start := time.Now()
		Sleep(30)
		if !Timeout() {
			t.Error("a pure timer wait must resolve as a timeout")
		}
		done <- time.Since(start)
	})

	select {
	case elapsed := <-done:
		assert.GreaterOrEqual(t, elapsed, 25*time.Millisecond)
	case <-time.After(2 * time.Second):
		t.Fatal("sleeping coroutine never woke")
	}
}

func TestScheduler_YieldRequeuesAndContinues(t *testing.T) {
	mgr := newTestManager(t, WithSchedulerCount(1))

	done := make(chan int, 1)
	mgr.Go(func() {
		n := 0
		for i := 0; i < 5; i++ {
			Yield()
			n++
		}
		done <- n
	})

	select {
	case n := <-done:
		assert.Equal(t, 5, n)
	case <-time.After(2 * time.Second):
		t.Fatal("yielding coroutine never completed")
	}
}

func TestScheduler_InterleavesCoroutinesOnOneThread(t *testing.T) {
	mgr := newTestManager(t, WithSchedulerCount(1))

	var turns atomic.Int64
	done := make(chan struct{}, 2)
	for i := 0; i < 2; i++ {
		mgr.Go(func() {
			for j := 0; j < 10; j++ {
				turns.Add(1)
				Yield()
			}
			done <- struct{}{}
		})
	}

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("coroutines starved each other on a single scheduler")
		}
	}
	assert.Equal(t, int64(20), turns.Load())
}

func TestScheduler_SpawnFromInsideCoroutine(t *testing.T) {
	mgr := newTestManager(t, WithSchedulerCount(1))

	done := make(chan string, 1)
	mgr.Go(func() {
		mgr.Go(func() { done <- "child" })
	})

	select {
	case v := <-done:
		assert.Equal(t, "child", v)
	case <-time.After(2 * time.Second):
		t.Fatal("nested spawn never ran")
	}
}

func TestScheduler_CPUTimeAccrues(t *testing.T) {
	mgr := newTestManager(t, WithSchedulerCount(1))

	done := make(chan struct{})
	mgr.Go(func() {
		deadline := time.Now().Add(5 * time.Millisecond)
		for time.Now().Before(deadline) {
		}
		close(done)
	})
	<-done

	assert.Positive(t, mgr.Scheduler(0).CPUTimeNS())
}

func TestScheduler_StopIsIdempotent(t *testing.T) {
	mgr, err := NewManager(WithSchedulerCount(1))
	require.NoError(t, err)

	s := mgr.Scheduler(0)
	s.Stop()
	s.Stop()
	assert.True(t, s.state.IsTerminal())
}

func TestScheduler_StopBeforeLoopStarts(t *testing.T) {
	s, err := newScheduler(0, 8, LevelDisabled, nil)
	require.NoError(t, err)

	finished := make(chan struct{})
	go func() {
		s.Stop()
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("Stop hung on a scheduler whose loop never ran")
	}
	assert.True(t, s.state.IsTerminal())
}

func TestScheduler_StopAbandonsParkedCoroutines(t *testing.T) {
	mgr, err := NewManager(WithSchedulerCount(1))
	require.NoError(t, err)

	ev := NewEvent(false, false)
	parked := make(chan struct{})
	mgr.Go(func() {
		close(parked)
		ev.Wait(-1) // never signaled; abandoned by Stop
	})
	<-parked

	stopped := make(chan struct{})
	go func() {
		mgr.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return while a coroutine was still parked")
	}
}

func TestScheduler_GoAfterStopIsDropped(t *testing.T) {
	mgr, err := NewManager(WithSchedulerCount(1))
	require.NoError(t, err)
	mgr.Stop()

	ran := make(chan struct{}, 1)
	mgr.Scheduler(0).Go(func() { ran <- struct{}{} })

	select {
	case <-ran:
		t.Fatal("a closure submitted after Stop must not run")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestScheduler_AddTimerThenYieldObservesTimeout(t *testing.T) {
	mgr := newTestManager(t, WithSchedulerCount(1))

	done := make(chan bool, 1)
	mgr.Go(func() {
		AddTimer(20)
		co := currentCoroutine()
		co.sched.yieldCurrent(co)
		done <- Timeout()
	})

	select {
	case timedOut := <-done:
		assert.True(t, timedOut, "a bare timer resumes its coroutine with the timeout marker")
	case <-time.After(2 * time.Second):
		t.Fatal("timer never resumed the parked coroutine")
	}
}
