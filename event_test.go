package coost

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEvent_ManualResetStaysSignaled(t *testing.T) {
	e := NewEvent(true, false)
	assert.False(t, e.Wait(0))
	e.Signal()
	assert.True(t, e.Wait(0))
	assert.True(t, e.Wait(0), "manual-reset stays signaled across repeated waits")
	e.Reset()
	assert.False(t, e.Wait(0))
}

func TestEvent_AutoResetConsumedByOneWaiter(t *testing.T) {
	e := NewEvent(false, false)

	var wg sync.WaitGroup
	results := make(chan bool, 2)
	wg.Add(2)
	for i := 0; i < 2; i++ {
		go func() {
			defer wg.Done()
			results <- e.Wait(200)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	e.Signal()
	wg.Wait()
	close(results)

	trueCount := 0
	for r := range results {
		if r {
			trueCount++
		}
	}
	assert.Equal(t, 1, trueCount, "auto-reset wakes exactly one waiter per signal")
}

func TestEvent_WaitTimesOut(t *testing.T) {
	e := NewEvent(true, false)
	start := time.Now()
	ok := e.Wait(30)
	assert.False(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 25*time.Millisecond)
}

func TestEvent_InitiallySignaled(t *testing.T) {
	e := NewEvent(true, true)
	assert.True(t, e.Wait(0))
}

func TestEvent_SignalWithNoWaitersStaysSticky(t *testing.T) {
	e := NewEvent(false, false)
	e.Signal()
	assert.True(t, e.Wait(0))
}
