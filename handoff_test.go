package coost

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandoff_JumpYieldRoundTrip(t *testing.T) {
	h := newHandoff()
	var observed []bool

	go func() {
		arg := <-h.resumeCh
		observed = append(observed, arg.timedOut)
		arg = h.yield()
		observed = append(observed, arg.timedOut)
		h.terminate()
	}()

	y := h.jump(resumeArg{timedOut: false})
	assert.False(t, y.exited, "first yield is a suspension, not termination")

	y = h.jump(resumeArg{timedOut: true})
	assert.True(t, y.exited, "terminate reports exited")

	require.Equal(t, []bool{false, true}, observed,
		"each resume delivers its own timedOut marker")
}

func TestHandoff_JumpBlocksUntilYield(t *testing.T) {
	h := newHandoff()
	released := make(chan struct{})

	go func() {
		<-h.resumeCh
		time.Sleep(30 * time.Millisecond)
		close(released)
		h.terminate()
	}()

	y := h.jump(resumeArg{})
	select {
	case <-released:
	default:
		t.Fatal("jump returned before the coroutine side gave control back")
	}
	assert.True(t, y.exited)
}
