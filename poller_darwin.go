//go:build darwin

package coost

import (
	"sync"
	"syscall"

	"golang.org/x/sys/unix"
)

// kqueueBackend is the Darwin [backend]: one kqueue instance per
// scheduler, EVFILT_READ/EVFILT_WRITE kevents per fd, and a self-pipe wake
// mechanism since Darwin has no eventfd.
type kqueueBackend struct {
	kq           int
	wakeR, wakeW int
	eventBuf     [256]unix.Kevent_t

	mu  sync.RWMutex
	fds map[int]*fdWaiters
}

func newPlatformBackend() (backend, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	var fds [2]int
	if err := syscall.Pipe(fds[:]); err != nil {
		_ = unix.Close(kq)
		return nil, err
	}
	syscall.CloseOnExec(fds[0])
	syscall.CloseOnExec(fds[1])
	_ = syscall.SetNonblock(fds[0], true)
	_ = syscall.SetNonblock(fds[1], true)

	b := &kqueueBackend{kq: kq, wakeR: fds[0], wakeW: fds[1], fds: make(map[int]*fdWaiters)}
	_, err = unix.Kevent(kq, []unix.Kevent_t{{
		Ident:  uint64(fds[0]),
		Filter: unix.EVFILT_READ,
		Flags:  unix.EV_ADD | unix.EV_ENABLE,
	}}, nil, nil)
	if err != nil {
		_ = unix.Close(kq)
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
		return nil, err
	}
	return b, nil
}

func (b *kqueueBackend) addEvent(fd int, dir ioDirection) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	w, ok := b.fds[fd]
	if !ok {
		w = &fdWaiters{}
		b.fds[fd] = w
	}
	var filter int16
	switch dir {
	case ioRead:
		if w.read {
			return ErrFDAlreadyRegistered
		}
		w.read = true
		filter = unix.EVFILT_READ
	case ioWrite:
		if w.write {
			return ErrFDAlreadyRegistered
		}
		w.write = true
		filter = unix.EVFILT_WRITE
	}
	_, err := unix.Kevent(b.kq, []unix.Kevent_t{{
		Ident:  uint64(fd),
		Filter: filter,
		Flags:  unix.EV_ADD | unix.EV_ENABLE,
	}}, nil, nil)
	return err
}

func (b *kqueueBackend) delEvent(fd int, dir ioDirection) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	w, ok := b.fds[fd]
	if !ok {
		return ErrFDNotRegistered
	}
	var filter int16
	switch dir {
	case ioRead:
		if !w.read {
			return ErrFDNotRegistered
		}
		w.read = false
		filter = unix.EVFILT_READ
	case ioWrite:
		if !w.write {
			return ErrFDNotRegistered
		}
		w.write = false
		filter = unix.EVFILT_WRITE
	}
	_, _ = unix.Kevent(b.kq, []unix.Kevent_t{{
		Ident:  uint64(fd),
		Filter: filter,
		Flags:  unix.EV_DELETE,
	}}, nil, nil)
	if !w.read && !w.write {
		delete(b.fds, fd)
	}
	return nil
}

func (b *kqueueBackend) delAllEvents(fd int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	w, ok := b.fds[fd]
	if !ok {
		return ErrFDNotRegistered
	}
	if w.read {
		_, _ = unix.Kevent(b.kq, []unix.Kevent_t{{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_DELETE}}, nil, nil)
	}
	if w.write {
		_, _ = unix.Kevent(b.kq, []unix.Kevent_t{{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_DELETE}}, nil, nil)
	}
	delete(b.fds, fd)
	return nil
}

func (b *kqueueBackend) wait(dst []pollEvent, timeoutMS int) ([]pollEvent, error) {
	var ts *unix.Timespec
	if timeoutMS >= 0 {
		t := unix.NsecToTimespec(int64(timeoutMS) * 1e6)
		ts = &t
	}
	n, err := unix.Kevent(b.kq, nil, b.eventBuf[:], ts)
	if err != nil {
		if err == unix.EINTR {
			return dst, nil
		}
		return dst, err
	}
	for i := 0; i < n; i++ {
		kev := b.eventBuf[i]
		fd := int(kev.Ident)
		if fd == b.wakeR {
			dst = append(dst, pollEvent{fd: fd})
			continue
		}
		errored := kev.Flags&unix.EV_ERROR != 0 || kev.Flags&unix.EV_EOF != 0
		switch kev.Filter {
		case unix.EVFILT_READ:
			dst = append(dst, pollEvent{fd: fd, dir: ioRead, err: errored})
		case unix.EVFILT_WRITE:
			dst = append(dst, pollEvent{fd: fd, dir: ioWrite, err: errored})
		}
	}
	return dst, nil
}

func (b *kqueueBackend) isSelfSignal(ev pollEvent) bool { return ev.fd == b.wakeR }

func (b *kqueueBackend) signal() {
	_, _ = syscall.Write(b.wakeW, []byte{0})
}

func (b *kqueueBackend) drainSelfSignal() {
	var buf [64]byte
	for {
		if _, err := syscall.Read(b.wakeR, buf[:]); err != nil {
			return
		}
	}
}

func (b *kqueueBackend) close() error {
	_ = unix.Close(b.wakeR)
	_ = unix.Close(b.wakeW)
	return unix.Close(b.kq)
}
