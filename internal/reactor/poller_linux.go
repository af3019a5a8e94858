//go:build linux

package reactor

import (
	"sync"

	"golang.org/x/sys/unix"
)

// epollPoller is the Linux poller backend: epoll for readiness, an
// eventfd (unix.Eventfd) for cross-thread wakeups, generalized from
// "register an arbitrary fd with an inline callback" to "register a
// handle id with the reactor's signal bookkeeping", since this reactor
// dispatches readiness back through
// AwaitSignal's wait-id contract rather than invoking a callback
// in-poller.
type epollPoller struct {
	mu      sync.Mutex
	epfd    int
	wakeFd  int
	fdToID  map[int]uint32
	idToFd  map[uint32]int
	closed  bool
}

func newPlatformPoller() (poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, &SignalError{Op: "epoll_create1", Err: err}
	}
	wakeFd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		_ = unix.Close(epfd)
		return nil, &SignalError{Op: "eventfd", Err: err}
	}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakeFd, &unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakeFd)}); err != nil {
		_ = unix.Close(epfd)
		_ = unix.Close(wakeFd)
		return nil, &SignalError{Op: "epoll_ctl(wake)", Err: err}
	}
	return &epollPoller{
		epfd:   epfd,
		wakeFd: wakeFd,
		fdToID: make(map[int]uint32),
		idToFd: make(map[uint32]int),
	}, nil
}

func signalsToEpoll(s Signals) uint32 {
	var ev uint32
	if s&SignalRead != 0 {
		ev |= unix.EPOLLIN
	}
	if s&SignalWrite != 0 {
		ev |= unix.EPOLLOUT
	}
	return ev | unix.EPOLLERR | unix.EPOLLHUP // close+error always implicit
}

func epollToSignals(ev uint32) Signals {
	var s Signals
	if ev&unix.EPOLLIN != 0 {
		s |= SignalRead
	}
	if ev&unix.EPOLLOUT != 0 {
		s |= SignalWrite
	}
	if ev&unix.EPOLLERR != 0 {
		s |= SignalError
	}
	if ev&unix.EPOLLHUP != 0 {
		s |= SignalClose
	}
	return s
}

func (p *epollPoller) registerWait(handleID uint32, fd int, signals Signals) error {
	p.mu.Lock()
	p.fdToID[fd] = handleID
	p.idToFd[handleID] = fd
	p.mu.Unlock()
	ev := &unix.EpollEvent{Events: signalsToEpoll(signals), Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, ev); err != nil {
		return &SignalError{Op: "epoll_ctl(add)", Err: err}
	}
	return nil
}

func (p *epollPoller) cancelWait(handleID uint32) error {
	p.mu.Lock()
	fd, ok := p.idToFd[handleID]
	if ok {
		delete(p.idToFd, handleID)
		delete(p.fdToID, fd)
	}
	p.mu.Unlock()
	if !ok {
		return ErrHandleNotFound
	}
	_ = unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	return nil
}

func (p *epollPoller) wait(timeoutNanos int64) ([]signalEvent, error) {
	timeoutMs := -1
	if timeoutNanos >= 0 {
		timeoutMs = int(timeoutNanos / 1_000_000)
	}
	var buf [64]unix.EpollEvent
	n, err := unix.EpollWait(p.epfd, buf[:], timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, &SignalError{Op: "epoll_wait", Err: err}
	}
	var out []signalEvent
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := 0; i < n; i++ {
		fd := int(buf[i].Fd)
		if fd == p.wakeFd {
			drainEventfd(p.wakeFd)
			continue
		}
		if id, ok := p.fdToID[fd]; ok {
			out = append(out, signalEvent{handleID: id, signals: epollToSignals(buf[i].Events)})
		}
	}
	return out, nil
}

func drainEventfd(fd int) {
	var buf [8]byte
	for {
		if _, err := unix.Read(fd, buf[:]); err != nil {
			return
		}
	}
}

func (p *epollPoller) wake() {
	buf := [8]byte{0, 0, 0, 0, 0, 0, 0, 1}
	_, _ = unix.Write(p.wakeFd, buf[:])
}

func (p *epollPoller) close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	_ = unix.Close(p.wakeFd)
	return unix.Close(p.epfd)
}
