//go:build linux

package coost

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func newTestBackend(t *testing.T) backend {
	t.Helper()
	b, err := newPlatformBackend()
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.close() })
	return b
}

func testPipe(t *testing.T) (r, w int) {
	t.Helper()
	var fds [2]int
	require.NoError(t, unix.Pipe(fds[:]))
	t.Cleanup(func() {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

func TestEpollBackend_WaitTimesOutEmpty(t *testing.T) {
	b := newTestBackend(t)
	events, err := b.wait(nil, 0)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestEpollBackend_ReportsReadReadiness(t *testing.T) {
	b := newTestBackend(t)
	r, w := testPipe(t)

	require.NoError(t, b.addEvent(r, ioRead))
	_, err := unix.Write(w, []byte{1})
	require.NoError(t, err)

	events, err := b.wait(nil, 1000)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, r, events[0].fd)
	assert.Equal(t, ioRead, events[0].dir)
}

func TestEpollBackend_DuplicateRegistrationRejected(t *testing.T) {
	b := newTestBackend(t)
	r, _ := testPipe(t)

	require.NoError(t, b.addEvent(r, ioRead))
	assert.ErrorIs(t, b.addEvent(r, ioRead), ErrFDAlreadyRegistered)
	require.NoError(t, b.addEvent(r, ioWrite), "the other direction is still free")
}

func TestEpollBackend_DelEventUnknownFD(t *testing.T) {
	b := newTestBackend(t)
	assert.ErrorIs(t, b.delEvent(12345, ioRead), ErrFDNotRegistered)
	assert.ErrorIs(t, b.delAllEvents(12345), ErrFDNotRegistered)
}

func TestEpollBackend_DelEventDropsDirection(t *testing.T) {
	b := newTestBackend(t)
	r, w := testPipe(t)

	require.NoError(t, b.addEvent(r, ioRead))
	require.NoError(t, b.delEvent(r, ioRead))

	_, err := unix.Write(w, []byte{1})
	require.NoError(t, err)
	events, err := b.wait(nil, 0)
	require.NoError(t, err)
	assert.Empty(t, events, "a deregistered fd must not surface events")
}

func TestEpollBackend_SignalWakesWaitAsSelfSignal(t *testing.T) {
	b := newTestBackend(t)

	got := make(chan []pollEvent, 1)
	go func() {
		events, err := b.wait(nil, 5000)
		if err != nil {
			t.Error(err)
		}
		got <- events
	}()

	time.Sleep(20 * time.Millisecond) // let the waiter block first
	b.signal()

	select {
	case events := <-got:
		require.Len(t, events, 1)
		assert.True(t, b.isSelfSignal(events[0]))
		b.drainSelfSignal()
	case <-time.After(2 * time.Second):
		t.Fatal("signal never woke the blocked wait")
	}
}

func TestAddIOEvent_ParksUntilReadable(t *testing.T) {
	mgr := newTestManager(t, WithSchedulerCount(1))
	r, w := testPipe(t)

	done := make(chan bool, 1)
	mgr.Go(func() {
		if err := AddIOEvent(r, IORead, 5000); err != nil {
			t.Error(err)
			done <- false
			return
		}
		done <- !Timeout()
	})

	time.Sleep(30 * time.Millisecond) // let the coroutine park on the fd
	_, err := unix.Write(w, []byte{1})
	require.NoError(t, err)

	select {
	case woken := <-done:
		assert.True(t, woken, "readiness, not the timer, must resolve the wait")
	case <-time.After(5 * time.Second):
		t.Fatal("coroutine never woke on fd readiness")
	}
}

func TestAddIOEvent_TimesOutWithoutReadiness(t *testing.T) {
	mgr := newTestManager(t, WithSchedulerCount(1))
	r, _ := testPipe(t)

	done := make(chan bool, 1)
	mgr.Go(func() {
		if err := AddIOEvent(r, IORead, 30); err != nil {
			t.Error(err)
			done <- false
			return
		}
		done <- Timeout()
	})

	select {
	case timedOut := <-done:
		assert.True(t, timedOut, "no data ever arrives, so the timer must win")
	case <-time.After(5 * time.Second):
		t.Fatal("coroutine neither woke nor timed out")
	}
}
