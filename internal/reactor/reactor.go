// Package reactor implements the per-isolate event loop: a
// single-threaded cooperative dispatcher for timers, OS readiness
// events and cross-isolate messages, fronted by a pluggable poller
// backend (epoll, kqueue, IOCP, or a portable blocking fallback).
package reactor

import (
	"sync"
	"time"
)

// ExitInterrupted is the exit code Interrupt sets, mirroring a
// SIGINT-driven shutdown.
const ExitInterrupted = 2

type waitEntry struct {
	handleID uint32
	signals  Signals
}

// Reactor is the event loop for a single isolate. It is not safe for
// concurrent use except where individual methods document otherwise
// (PostMessage and Interrupt are the only ones safe to call from
// another goroutine; everything else must run on the loop's own
// goroutine, matching spec.md §4.2's single-threaded-per-isolate
// contract).
type Reactor struct {
	poller  poller
	handles *handleMap
	queue   *messageQueue

	mu sync.Mutex

	waits       map[uint32]waitEntry
	nextWaitID  uint32
	openPorts   int
	wakeupNanos int64

	exitSet  bool
	exitCode int
}

// New builds a Reactor bound to the platform's default poller unless
// overridden by opts.
func New(opts ...Option) (*Reactor, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}
	return &Reactor{
		poller:  cfg.poller,
		handles: newHandleMap(),
		queue:   &messageQueue{},
		waits:   make(map[uint32]waitEntry),
	}, nil
}

func nowNanos() int64 { return time.Now().UnixNano() }

// AwaitSignal subscribes to signals on handleID, implicitly ORing in
// close and error so those can never be missed (spec.md §4.2.1), and
// returns a wait id that CancelSignalWait can later reference.
func (r *Reactor) AwaitSignal(handleID uint32, signals Signals) (uint32, error) {
	fdv, ok := r.handles.Get(handleID)
	if !ok {
		return 0, ErrHandleNotFound
	}
	fd, ok := fdv.(int)
	if !ok {
		return 0, ErrUnsupportedOperation
	}
	signals |= SignalClose | SignalError

	r.mu.Lock()
	waitID := r.nextWaitID
	r.nextWaitID++
	r.waits[waitID] = waitEntry{handleID: handleID, signals: signals}
	r.mu.Unlock()

	if err := r.poller.registerWait(handleID, fd, signals); err != nil {
		r.mu.Lock()
		delete(r.waits, waitID)
		r.mu.Unlock()
		return 0, err
	}
	return waitID, nil
}

// CancelSignalWait drops a pending wait. The wait's bookkeeping entry is
// removed first, so it will not be redelivered; the backend then drops
// the OS subscription (epoll and kqueue deregister the descriptor, IOCP
// does nothing) or, on the blocking fallback, returns
// ErrUnsupportedOperation.
func (r *Reactor) CancelSignalWait(waitID uint32) error {
	r.mu.Lock()
	entry, ok := r.waits[waitID]
	if ok {
		delete(r.waits, waitID)
	}
	r.mu.Unlock()
	if !ok {
		return ErrHandleNotFound
	}
	return r.poller.cancelWait(entry.handleID)
}

// PostMessage enqueues msg for delivery on the loop's next iteration.
// Safe to call concurrently from any goroutine (spec.md §4.2.1:
// "thread-safe FIFO per sender").
func (r *Reactor) PostMessage(msg any) error {
	r.mu.Lock()
	closed := r.exitSet
	r.mu.Unlock()
	if closed {
		return ErrClosed
	}
	r.queue.push(msg)
	r.poller.wake()
	return nil
}

// MessageEpilogue updates the timer deadline after the embedder has
// finished processing a batch of dispatched work, per spec.md §4.2.1.
// newWakeupNanos of 0 means "no pending timer". If the loop would
// otherwise have nothing left to do — no open ports, no pending
// signal waits, and no timer — it exits with code 0.
func (r *Reactor) MessageEpilogue(newWakeupNanos int64) {
	r.mu.Lock()
	r.wakeupNanos = newWakeupNanos
	idle := r.openPorts == 0 && len(r.waits) == 0 && r.wakeupNanos == 0 && r.queue.empty()
	r.mu.Unlock()
	if idle {
		r.Exit(0)
	}
}

// Exit requests the loop stop with the given code. The first call
// wins; later calls are ignored.
func (r *Reactor) Exit(code int) {
	r.mu.Lock()
	if !r.exitSet {
		r.exitSet = true
		r.exitCode = code
	}
	r.mu.Unlock()
	r.poller.wake()
}

// Interrupt requests shutdown with ExitInterrupted, mirroring an
// external SIGINT. Safe to call from any goroutine.
func (r *Reactor) Interrupt() {
	r.Exit(ExitInterrupted)
}

// Dispatcher receives events the loop pulls off the poller or message
// queue. The isolate interpreter implements this.
type Dispatcher interface {
	DispatchSignal(waitID uint32, handleID uint32, signals Signals)
	DispatchMessage(msg any)
	DispatchWakeup()
}

// timeoutFor computes the poller wait timeout per spec.md §4.2.3:
// zero if work is already queued or a deadline has passed, infinite
// if there is no deadline and nothing queued, else the remaining
// interval.
func (r *Reactor) timeoutFor(now int64) int64 {
	if !r.queue.empty() {
		return 0
	}
	if r.wakeupNanos == 0 {
		return -1
	}
	if r.wakeupNanos <= now {
		return 0
	}
	return r.wakeupNanos - now
}

// Run blocks dispatching timer, signal and message events to d until
// Exit is called, then closes open ports, drains the remaining
// message queue, and returns the exit code (spec.md §4.2.1).
func (r *Reactor) Run(d Dispatcher) int {
	for {
		r.mu.Lock()
		if r.exitSet {
			code := r.exitCode
			r.mu.Unlock()
			r.shutdown(d)
			return code
		}
		timeout := r.timeoutFor(nowNanos())
		r.mu.Unlock()

		events, _ := r.poller.wait(timeout)

		r.mu.Lock()
		fired := r.wakeupNanos != 0 && r.wakeupNanos <= nowNanos()
		if fired {
			r.wakeupNanos = 0
		}
		r.mu.Unlock()
		if fired {
			d.DispatchWakeup()
		}

		for _, ev := range events {
			r.mu.Lock()
			var matched []uint32
			for id, entry := range r.waits {
				if entry.handleID == ev.handleID && entry.signals&ev.signals != 0 {
					matched = append(matched, id)
					delete(r.waits, id)
				}
			}
			r.mu.Unlock()
			for _, id := range matched {
				d.DispatchSignal(id, ev.handleID, ev.signals)
			}
		}

		for _, msg := range r.queue.drain() {
			d.DispatchMessage(msg)
		}

		r.mu.Lock()
		exitSet := r.exitSet
		code := r.exitCode
		r.mu.Unlock()
		if exitSet {
			r.shutdown(d)
			return code
		}
	}
}

func (r *Reactor) shutdown(d Dispatcher) {
	r.mu.Lock()
	r.openPorts = 0
	r.waits = make(map[uint32]waitEntry)
	r.mu.Unlock()
	_ = r.poller.close()
	for _, msg := range r.queue.drain() {
		d.DispatchMessage(msg)
	}
}

// OpenPort and ClosePort track externally-visible handles that keep
// the loop alive even with no pending wait (e.g. a listening socket
// that hasn't accepted yet), feeding MessageEpilogue's idle check.
func (r *Reactor) OpenPort() {
	r.mu.Lock()
	r.openPorts++
	r.mu.Unlock()
}

func (r *Reactor) ClosePort() {
	r.mu.Lock()
	if r.openPorts > 0 {
		r.openPorts--
	}
	r.mu.Unlock()
}

// RegisterHandle associates fd with a handle id in the reactor's
// handle table, making it eligible for AwaitSignal.
func (r *Reactor) RegisterHandle(fd int) uint32 {
	return r.handles.Insert(fd)
}
