//go:build windows

package coost

import (
	"sync"
	"syscall"

	"golang.org/x/sys/windows"
)

// iocpBackend is the Windows [backend]: one IOCP handle per scheduler,
// handles associated via CreateIoCompletionPort, and
// PostQueuedCompletionStatus as the wake mechanism in place of a
// self-pipe. A completion-based port could carry the waiting coroutine
// pointer directly in the per-I/O OVERLAPPED block; this backend instead
// encodes (fd, direction) in the completion key and lets the scheduler's
// waiter table resolve the coroutine, keeping the readiness-style contract
// the other platforms share.
type iocpBackend struct {
	iocp windows.Handle

	mu  sync.RWMutex
	fds map[int]*fdWaiters
}

const wakeCompletionKey = ^uintptr(0)

func newPlatformBackend() (backend, error) {
	iocp, err := windows.CreateIoCompletionPort(windows.InvalidHandle, 0, 0, 0)
	if err != nil {
		return nil, err
	}
	return &iocpBackend{iocp: iocp, fds: make(map[int]*fdWaiters)}, nil
}

func completionKey(fd int, dir ioDirection) uintptr {
	k := uintptr(fd) << 1
	if dir == ioWrite {
		k |= 1
	}
	return k
}

func (b *iocpBackend) addEvent(fd int, dir ioDirection) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	w, ok := b.fds[fd]
	if !ok {
		w = &fdWaiters{}
		b.fds[fd] = w
		if _, err := windows.CreateIoCompletionPort(windows.Handle(fd), b.iocp, completionKey(fd, ioRead), 0); err != nil {
			delete(b.fds, fd)
			return err
		}
	}
	switch dir {
	case ioRead:
		if w.read {
			return ErrFDAlreadyRegistered
		}
		w.read = true
	case ioWrite:
		if w.write {
			return ErrFDAlreadyRegistered
		}
		w.write = true
	}
	return nil
}

func (b *iocpBackend) delEvent(fd int, dir ioDirection) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	w, ok := b.fds[fd]
	if !ok {
		return ErrFDNotRegistered
	}
	switch dir {
	case ioRead:
		if !w.read {
			return ErrFDNotRegistered
		}
		w.read = false
	case ioWrite:
		if !w.write {
			return ErrFDNotRegistered
		}
		w.write = false
	}
	if !w.read && !w.write {
		delete(b.fds, fd)
	}
	return nil
}

func (b *iocpBackend) delAllEvents(fd int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.fds[fd]; !ok {
		return ErrFDNotRegistered
	}
	delete(b.fds, fd)
	return nil
}

func (b *iocpBackend) wait(dst []pollEvent, timeoutMS int) ([]pollEvent, error) {
	var timeout *uint32
	if timeoutMS >= 0 {
		t := uint32(timeoutMS)
		timeout = &t
	}
	var bytes uint32
	var key uintptr
	var overlapped *windows.Overlapped
	err := windows.GetQueuedCompletionStatus(b.iocp, &bytes, &key, &overlapped, timeout)
	if err != nil {
		if errno, ok := err.(syscall.Errno); ok && errno == windows.WAIT_TIMEOUT {
			return dst, nil
		}
		return dst, err
	}
	if key == wakeCompletionKey {
		return append(dst, pollEvent{fd: -1}), nil
	}
	fd := int(key >> 1)
	dir := ioRead
	if key&1 != 0 {
		dir = ioWrite
	}
	return append(dst, pollEvent{fd: fd, dir: dir}), nil
}

func (b *iocpBackend) isSelfSignal(ev pollEvent) bool { return ev.fd == -1 }

func (b *iocpBackend) drainSelfSignal() {}

func (b *iocpBackend) signal() {
	_ = windows.PostQueuedCompletionStatus(b.iocp, 0, wakeCompletionKey, nil)
}

func (b *iocpBackend) close() error {
	return windows.CloseHandle(b.iocp)
}
