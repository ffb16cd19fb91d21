package coost

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMutex_TryLock(t *testing.T) {
	m := NewMutex()
	assert.True(t, m.TryLock())
	assert.False(t, m.TryLock(), "already held")
	m.Unlock()
	assert.True(t, m.TryLock())
}

func TestMutex_ThreadContenders_MutualExclusion(t *testing.T) {
	m := NewMutex()
	var counter int
	var wg sync.WaitGroup
	const n = 50
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			m.Lock()
			defer m.Unlock()
			local := counter
			time.Sleep(time.Millisecond)
			counter = local + 1
		}()
	}
	wg.Wait()
	assert.Equal(t, n, counter)
}

func TestMutex_UnlockHandsOffToWaitingThread(t *testing.T) {
	m := NewMutex()
	m.Lock()

	acquired := make(chan struct{})
	go func() {
		m.Lock()
		close(acquired)
		m.Unlock()
	}()

	// Give the waiter time to enqueue before we unlock.
	time.Sleep(20 * time.Millisecond)
	m.Unlock()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("waiter never acquired the handed-off lock")
	}
}

func TestMutex_UnlockOnFreeMutexIsIdleNoop(t *testing.T) {
	m := NewMutex()
	require.Equal(t, lockFree, m.state)
	m.Unlock()
	assert.Equal(t, lockFree, m.state)
}
