//go:build darwin

package reactor

import (
	"sync"
	"syscall"

	"golang.org/x/sys/unix"
)

// kqueuePoller is the Darwin/BSD poller backend: kqueue for readiness,
// a self-pipe for cross-thread wakeups (syscall.Pipe, non-blocking,
// close-on-exec).
type kqueuePoller struct {
	mu             sync.Mutex
	kq             int
	wakeRead       int
	wakeWrite      int
	fdToID         map[int]uint32
	idToFd         map[uint32]int
	closed         bool
}

func newPlatformPoller() (poller, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, &SignalError{Op: "kqueue", Err: err}
	}
	var fds [2]int
	if err := syscall.Pipe(fds[:]); err != nil {
		_ = unix.Close(kq)
		return nil, &SignalError{Op: "pipe", Err: err}
	}
	_ = syscall.SetNonblock(fds[0], true)
	_ = syscall.SetNonblock(fds[1], true)
	syscall.CloseOnExec(fds[0])
	syscall.CloseOnExec(fds[1])

	p := &kqueuePoller{
		kq:        kq,
		wakeRead:  fds[0],
		wakeWrite: fds[1],
		fdToID:    make(map[int]uint32),
		idToFd:    make(map[uint32]int),
	}
	changes := []unix.Kevent_t{{
		Ident:  uint64(p.wakeRead),
		Filter: unix.EVFILT_READ,
		Flags:  unix.EV_ADD | unix.EV_CLEAR,
	}}
	if _, err := unix.Kevent(kq, changes, nil, nil); err != nil {
		_ = unix.Close(kq)
		_ = syscall.Close(p.wakeRead)
		_ = syscall.Close(p.wakeWrite)
		return nil, &SignalError{Op: "kevent(wake)", Err: err}
	}
	return p, nil
}

func (p *kqueuePoller) registerWait(handleID uint32, fd int, signals Signals) error {
	p.mu.Lock()
	p.fdToID[fd] = handleID
	p.idToFd[handleID] = fd
	p.mu.Unlock()

	var changes []unix.Kevent_t
	if signals&SignalRead != 0 {
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_ADD})
	}
	if signals&SignalWrite != 0 {
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_ADD})
	}
	if len(changes) == 0 {
		return nil
	}
	if _, err := unix.Kevent(p.kq, changes, nil, nil); err != nil {
		return &SignalError{Op: "kevent(add)", Err: err}
	}
	return nil
}

func (p *kqueuePoller) cancelWait(handleID uint32) error {
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
	changes := []unix.Kevent_t{
		{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_DELETE},
		{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_DELETE},
	}
	_, _ = unix.Kevent(p.kq, changes, nil, nil) // either filter may legitimately not be registered
	return nil
}

func (p *kqueuePoller) wait(timeoutNanos int64) ([]signalEvent, error) {
	var ts *unix.Timespec
	if timeoutNanos >= 0 {
		t := unix.NsecToTimespec(timeoutNanos)
		ts = &t
	}
	var buf [64]unix.Kevent_t
	n, err := unix.Kevent(p.kq, nil, buf[:], ts)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, &SignalError{Op: "kevent(wait)", Err: err}
	}
	var out []signalEvent
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := 0; i < n; i++ {
		fd := int(buf[i].Ident)
		if fd == p.wakeRead {
			drainPipe(p.wakeRead)
			continue
		}
		id, ok := p.fdToID[fd]
		if !ok {
			continue
		}
		var s Signals
		switch buf[i].Filter {
		case unix.EVFILT_READ:
			s = SignalRead
		case unix.EVFILT_WRITE:
			s = SignalWrite
		}
		if buf[i].Flags&unix.EV_EOF != 0 {
			s |= SignalClose
		}
		if buf[i].Flags&unix.EV_ERROR != 0 {
			s |= SignalError
		}
		out = append(out, signalEvent{handleID: id, signals: s})
	}
	return out, nil
}

func drainPipe(fd int) {
	var buf [256]byte
	for {
		if _, err := syscall.Read(fd, buf[:]); err != nil {
			return
		}
	}
}

func (p *kqueuePoller) wake() {
	_, _ = syscall.Write(p.wakeWrite, []byte{1})
}

func (p *kqueuePoller) close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	_ = syscall.Close(p.wakeRead)
	_ = syscall.Close(p.wakeWrite)
	return unix.Close(p.kq)
}
