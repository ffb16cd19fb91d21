package coost

import (
	"errors"
	"fmt"
)

// Standard operation-outcome errors. These are non-fatal: callers are
// expected to check for them (or the boolean "done" flag on [Channel]) in
// the ordinary course of using the runtime.
var (
	// ErrSchedulerStopped names a stopped scheduler or manager. No function
	// in this package returns it: [Scheduler.Go] silently drops a closure
	// submitted after Stop.
	ErrSchedulerStopped = errors.New("coost: scheduler stopped")

	// ErrTimeout names a wait that expired before being signaled. No
	// function in this package returns it: waitable operations report a
	// timeout through their boolean result and [Timeout].
	ErrTimeout = errors.New("coost: operation timed out")

	// ErrChannelClosed names an operation on a closed channel. No function
	// in this package returns it: [Channel] operations report failure
	// through their boolean result and [ChannelOpDone].
	ErrChannelClosed = errors.New("coost: channel closed")

	// ErrPollerClosed names a readiness backend that has been shut down. No
	// backend operation in this package returns it.
	ErrPollerClosed = errors.New("coost: poller closed")

	// ErrFDAlreadyRegistered is returned by AddIOEvent when the fd/direction
	// pair is already registered.
	ErrFDAlreadyRegistered = errors.New("coost: fd already registered for this direction")

	// ErrFDNotRegistered is returned by DelIOEvent when no waiter is
	// registered for the fd/direction pair.
	ErrFDNotRegistered = errors.New("coost: fd not registered")
)

// FatalError marks a programming error: calling a coroutine-only
// API from a non-coroutine thread, a WaitGroup counter underflow, an
// out-of-range scheduler index, or [Manager.MainLoop] on a manager built
// without [WithMainThreadScheduler]. Wait-record states are not checked for
// corruption. These are not meant to be recovered from by
// caller logic; the runtime panics with a FatalError so the failure carries
// a diagnostic instead of a bare string.
type FatalError struct {
	Op     string
	Detail string
}

func (e *FatalError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("coost: fatal: %s", e.Op)
	}
	return fmt.Sprintf("coost: fatal: %s: %s", e.Op, e.Detail)
}

func fatalf(op, format string, args ...any) {
	panic(&FatalError{Op: op, Detail: fmt.Sprintf(format, args...)})
}

// WrapError attaches a cause to a message, satisfying errors.Is/As against
// cause via %w.
func WrapError(message string, cause error) error {
	return fmt.Errorf("%s: %w", message, cause)
}
