//go:build windows

package reactor

import (
	"sync"
	"syscall"

	"golang.org/x/sys/windows"
)

// iocpPoller is the Windows poller backend: an I/O completion port.
// Associates handles via CreateIoCompletionPort, waking with
// PostQueuedCompletionStatus, and using GetQueuedCompletionStatus's
// WAIT_TIMEOUT/overlapped==nil conventions to distinguish a timeout, a
// wake, and a real completion.
//
// Overlapped completions (file/socket handle readiness, and the
// process-exit/Read/Write/Close family in process_windows.go) carry
// their originating handleID in the completion key, so wait can
// attribute each one without a separate fd table the way the unix
// backends need.
type iocpPoller struct {
	mu     sync.Mutex
	iocp   windows.Handle
	closed bool
}

func newPlatformPoller() (poller, error) {
	iocp, err := windows.CreateIoCompletionPort(windows.InvalidHandle, 0, 0, 0)
	if err != nil {
		return nil, &SignalError{Op: "CreateIoCompletionPort", Err: err}
	}
	return &iocpPoller{iocp: iocp}, nil
}

func (p *iocpPoller) registerWait(handleID uint32, fd int, signals Signals) error {
	h := windows.Handle(fd)
	_, err := windows.CreateIoCompletionPort(h, p.iocp, uintptr(handleID), 0)
	if err != nil {
		return &SignalError{Op: "CreateIoCompletionPort(handle)", Err: err}
	}
	return nil
}

// cancelWait is the one backend where in-flight requests can actually
// be cancelled (spec.md §4.2.4): the caller is expected to mark the
// operation's buffer kCancelledOperation before the completion
// packet's natural arrival; this method itself only needs to report
// support, since the handle table owns the per-operation state.
func (p *iocpPoller) cancelWait(handleID uint32) error {
	return nil
}

func (p *iocpPoller) wait(timeoutNanos int64) ([]signalEvent, error) {
	var timeout uint32 = windows.INFINITE
	if timeoutNanos >= 0 {
		timeout = uint32(timeoutNanos / 1_000_000)
	}
	var bytes uint32
	var key uintptr
	var overlapped *windows.Overlapped
	err := windows.GetQueuedCompletionStatus(p.iocp, &bytes, &key, &overlapped, timeout)
	if err != nil {
		if errno, ok := err.(syscall.Errno); ok && errno == windows.WAIT_TIMEOUT {
			return nil, nil
		}
		return nil, &SignalError{Op: "GetQueuedCompletionStatus", Err: err}
	}
	if overlapped == nil {
		// A wake() call (PostQueuedCompletionStatus with key 0, no overlapped).
		return nil, nil
	}
	return []signalEvent{{handleID: uint32(key), signals: SignalRead | SignalWrite}}, nil
}

func (p *iocpPoller) wake() {
	_ = windows.PostQueuedCompletionStatus(p.iocp, 0, 0, nil)
}

func (p *iocpPoller) close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return windows.CloseHandle(p.iocp)
}
