package reactor

// Signals is the subscription bitmask passed to AwaitSignal. Close and
// Error are always implicitly subscribed by AwaitSignal itself (spec.md
// §4.2.1: "ORs in close+error subscriptions implicitly so those can
// never be missed"); Signals only needs to distinguish Read/Write at
// the call site.
type Signals uint8

const (
	SignalRead Signals = 1 << iota
	SignalWrite
	SignalError
	SignalClose
)

// signalEvent is one readiness notification returned from a poller wait.
type signalEvent struct {
	handleID uint32
	signals  Signals
}

// poller is the per-platform readiness-notification backend: epoll on
// Linux, kqueue on Darwin, IOCP on Windows, and a condition-variable
// blocking fallback elsewhere. The Reactor never sees which one is
// active (spec.md §9 Redesign Flags: "the isolate never sees the
// variant").
type poller interface {
	// registerWait subscribes fd (as identified by handleID, for event
	// attribution) for signals.
	registerWait(handleID uint32, fd int, signals Signals) error
	// cancelWait drops a prior subscription. The epoll and kqueue
	// backends deregister the descriptor, IOCP returns nil, and the
	// blocking fallback returns ErrUnsupportedOperation.
	cancelWait(handleID uint32) error
	// wait blocks up to timeoutNanos (a negative value means infinite)
	// for a readiness event or an external wake, returning whatever
	// events are ready.
	wait(timeoutNanos int64) ([]signalEvent, error)
	// wake unblocks a concurrent wait call; safe to call from any goroutine.
	wake()
	close() error
}
