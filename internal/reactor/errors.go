package reactor

import "errors"

// ErrUnsupportedOperation is returned for an operation the active
// backend cannot perform: the blocking fallback backend returns it from
// AwaitSignal and CancelSignalWait, AwaitSignal returns it for a handle
// that is not a file descriptor, and the Windows process/pipe calls
// return it when the reactor is not on the IOCP backend.
var ErrUnsupportedOperation = errors.New("reactor: operation not supported on this backend")

// ErrHandleNotFound is returned when a handle id passed to AwaitSignal
// isn't present in the HandleMap, or a wait id passed to
// CancelSignalWait has no pending wait.
var ErrHandleNotFound = errors.New("reactor: handle not found")

// ErrClosed is returned by PostMessage once Exit has been called.
var ErrClosed = errors.New("reactor: closed")

// SignalError reports a platform poller failure (an epoll_ctl/kevent/
// IOCP call that failed), wrapping the underlying OS error.
type SignalError struct {
	Op  string
	Err error
}

func (e *SignalError) Error() string { return "reactor: " + e.Op + ": " + e.Err.Error() }
func (e *SignalError) Unwrap() error { return e.Err }
