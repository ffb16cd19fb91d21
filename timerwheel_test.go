package coost

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerWheel_DueOrdering(t *testing.T) {
	tw := newTimerWheel()
	coA := &Coroutine{}
	coB := &Coroutine{}
	coC := &Coroutine{}
	coA.wait = newWaitRecord(coA)
	coB.wait = newWaitRecord(coB)
	coC.wait = newWaitRecord(coC)

	tw.add(30, coC)
	tw.add(10, coA)
	tw.add(20, coB)

	due, next := tw.checkDue(15)
	require.Len(t, due, 1)
	assert.Same(t, coA, due[0])
	assert.EqualValues(t, 20, next)

	due, next = tw.checkDue(1000)
	require.Len(t, due, 2)
	assert.Same(t, coB, due[0])
	assert.Same(t, coC, due[1])
	assert.EqualValues(t, -1, next)
}

func TestTimerWheel_CancelRemovesEntry(t *testing.T) {
	tw := newTimerWheel()
	co := &Coroutine{}
	co.wait = newWaitRecord(co)
	h := tw.add(10, co)
	assert.Equal(t, 1, tw.len())
	tw.cancel(h)
	assert.Equal(t, 0, tw.len())
	due, next := tw.checkDue(1000)
	assert.Empty(t, due)
	assert.EqualValues(t, -1, next)
}

func TestTimerWheel_CancelUnknownHandleIsNoop(t *testing.T) {
	tw := newTimerWheel()
	tw.cancel(timerHandle{})
	tw.cancel(timerHandle{id: 999, valid: true})
	assert.Equal(t, 0, tw.len())
}

// An entry armed against a descriptor that has since been recycled
// (generation bumped by the pool) must be dropped, leaving the new
// occupant's wait untouched.
func TestTimerWheel_RecycledDescriptorEntryIsStale(t *testing.T) {
	tw := newTimerWheel()
	co := &Coroutine{}
	co.wait = newWaitRecord(co)
	tw.add(10, co)

	co.generation++

	due, _ := tw.checkDue(1000)
	assert.Empty(t, due)
	assert.Equal(t, waitPending, co.wait.outcome())
}

// A coroutine whose wait record was already resolved by a signaler must
// not show up as "due" even though its timer entry is still in the heap.
func TestTimerWheel_SignalerWinsRaceDropsTimerEntry(t *testing.T) {
	tw := newTimerWheel()
	co := &Coroutine{}
	co.wait = newWaitRecord(co)
	tw.add(10, co)

	require.True(t, co.wait.signal())

	due, _ := tw.checkDue(1000)
	assert.Empty(t, due)
}
