package coost

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskManager_DrainReturnsPushedWork(t *testing.T) {
	var wakes int
	tm := newTaskManager(func() { wakes++ })

	var ran []int
	tm.pushClosure(func() { ran = append(ran, 1) })
	tm.pushClosure(func() { ran = append(ran, 2) })

	co := &Coroutine{}
	tm.pushReady(co)

	closures, ready := tm.drain()
	require.Len(t, closures, 2)
	require.Len(t, ready, 1)
	assert.Same(t, co, ready[0])
	assert.Equal(t, 1, wakes, "wake fires once per empty->non-empty transition, not per push")

	closures, ready = tm.drain()
	assert.Empty(t, closures)
	assert.Empty(t, ready)
}

func TestTaskManager_WakeFiresOnlyOnEmptyToNonEmptyTransition(t *testing.T) {
	var wakes int
	tm := newTaskManager(func() { wakes++ })

	tm.pushClosure(func() {})
	tm.pushClosure(func() {})
	tm.pushReady(&Coroutine{})
	assert.Equal(t, 1, wakes)

	tm.drain()
	tm.pushClosure(func() {})
	assert.Equal(t, 2, wakes)
}

func TestTaskManager_ConcurrentPushesAllSurviveDrain(t *testing.T) {
	tm := newTaskManager(nil)
	const n = 500
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			tm.pushClosure(func() {})
		}()
	}
	wg.Wait()

	closures, _ := tm.drain()
	assert.Len(t, closures, n)
}

func TestTaskManager_DrainShrinksOversizedBuffer(t *testing.T) {
	buf := make([]func(), 0, taskManagerShrinkThreshold)
	shrunk := shrinkBuf(buf, 1)
	assert.Nil(t, shrunk)

	small := make([]func(), 0, 16)
	kept := shrinkBuf(small, 1)
	assert.Equal(t, 16, cap(kept))
}
