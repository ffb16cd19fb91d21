//go:build linux

package coost

import (
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// epollBackend is the Linux [backend]: one epoll instance per scheduler,
// direct fd-indexed registration, and an eventfd self-signal.
type epollBackend struct {
	epfd     int
	wakeFD   int
	eventBuf [256]unix.EpollEvent

	mu  sync.RWMutex
	fds map[int]*fdWaiters
}

func newPlatformBackend() (backend, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	wakeFD, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		_ = unix.Close(epfd)
		return nil, err
	}
	b := &epollBackend{epfd: epfd, wakeFD: wakeFD, fds: make(map[int]*fdWaiters)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakeFD, &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(wakeFD),
	}); err != nil {
		_ = unix.Close(epfd)
		_ = unix.Close(wakeFD)
		return nil, err
	}
	return b, nil
}

func (b *epollBackend) addEvent(fd int, dir ioDirection) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	w, ok := b.fds[fd]
	op := uint32(unix.EPOLL_CTL_ADD)
	if ok {
		op = unix.EPOLL_CTL_MOD
	} else {
		w = &fdWaiters{}
		b.fds[fd] = w
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
	ev := &unix.EpollEvent{Fd: int32(fd), Events: waiterEpollMask(w)}
	return unix.EpollCtl(b.epfd, int(op), fd, ev)
}

func (b *epollBackend) delEvent(fd int, dir ioDirection) error {
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
		return unix.EpollCtl(b.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	}
	ev := &unix.EpollEvent{Fd: int32(fd), Events: waiterEpollMask(w)}
	return unix.EpollCtl(b.epfd, unix.EPOLL_CTL_MOD, fd, ev)
}

func (b *epollBackend) delAllEvents(fd int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.fds[fd]; !ok {
		return ErrFDNotRegistered
	}
	delete(b.fds, fd)
	return unix.EpollCtl(b.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

func waiterEpollMask(w *fdWaiters) uint32 {
	var m uint32
	if w.read {
		m |= unix.EPOLLIN
	}
	if w.write {
		m |= unix.EPOLLOUT
	}
	return m
}

func (b *epollBackend) wait(dst []pollEvent, timeoutMS int) ([]pollEvent, error) {
	n, err := unix.EpollWait(b.epfd, b.eventBuf[:], timeoutMS)
	if err != nil {
		if err == unix.EINTR {
			return dst, nil
		}
		return dst, err
	}
	for i := 0; i < n; i++ {
		ev := b.eventBuf[i]
		fd := int(ev.Fd)
		if fd == b.wakeFD {
			dst = append(dst, pollEvent{fd: fd})
			continue
		}
		errored := ev.Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0
		if ev.Events&unix.EPOLLIN != 0 || errored {
			dst = append(dst, pollEvent{fd: fd, dir: ioRead, err: errored})
		}
		if ev.Events&unix.EPOLLOUT != 0 || errored {
			dst = append(dst, pollEvent{fd: fd, dir: ioWrite, err: errored})
		}
	}
	return dst, nil
}

func (b *epollBackend) isSelfSignal(ev pollEvent) bool { return ev.fd == b.wakeFD }

func (b *epollBackend) signal() {
	one := uint64(1)
	buf := (*[8]byte)(unsafe.Pointer(&one))
	_, _ = unix.Write(b.wakeFD, buf[:])
}

func (b *epollBackend) drainSelfSignal() {
	var buf [8]byte
	for {
		if _, err := unix.Read(b.wakeFD, buf[:]); err != nil {
			return
		}
	}
}

func (b *epollBackend) close() error {
	_ = unix.Close(b.wakeFD)
	return unix.Close(b.epfd)
}
