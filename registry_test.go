package coost

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCurrentCoroutine_NilOutsideCoroutine(t *testing.T) {
	assert.Nil(t, currentCoroutine())
}

func TestRegisterCurrent_RoundTrip(t *testing.T) {
	done := make(chan struct{})
	co := &Coroutine{id: 42}
	go func() {
		defer close(done)
		registerCurrent(co)
		defer unregisterCurrent()
		assert.Same(t, co, currentCoroutine())
	}()
	<-done
}

func TestGoroutineID_DistinctAcrossGoroutines(t *testing.T) {
	var wg sync.WaitGroup
	ids := make(chan uint64, 2)
	wg.Add(2)
	for i := 0; i < 2; i++ {
		go func() {
			defer wg.Done()
			ids <- goroutineID()
		}()
	}
	wg.Wait()
	close(ids)
	seen := map[uint64]bool{}
	for id := range ids {
		assert.NotZero(t, id)
		assert.False(t, seen[id], "goroutine ids must be unique")
		seen[id] = true
	}
}
