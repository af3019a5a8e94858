// Package isolate ties one heap, one reactor and one interpreter
// together into a unit of concurrent execution, and maintains the
// process-global list of all isolates used for InterruptAll.
//
// Grounded on original_source/src/vm/isolate.h for the owns-one-of-each
// shape and the global isolates list, adapted from a single static
// Isolate class with a C++ intrusive linked list into a Manager that
// constructs isolates sharing one pool and one interpreter factory,
// and a plain Go slice-free doubly-linked list guarded by a mutex
// (following _teacher_eventloop's habit of bundling state behind one
// struct with Run/Shutdown rather than exposing the list directly).
package isolate

import (
	"sync"

	"github.com/nimbusvm/nimbusvm/internal/heap"
	"github.com/nimbusvm/nimbusvm/internal/pool"
	"github.com/nimbusvm/nimbusvm/internal/reactor"
)

// Interpreter is the external consumer of reactor events, per spec.md
// §6.4. It is identical in shape to reactor.Dispatcher; spec.md's
// DispatchSignal(handle_id, status, signal_bits, count) collapses here
// into DispatchSignal(waitID, handleID, signals) since this reactor's
// poller already reports accumulated signal bits per event rather
// than a separate repeat count.
type Interpreter = reactor.Dispatcher

// InterpreterFactory builds the Interpreter for a freshly constructed
// Isolate. It is called once per isolate (including spawned children)
// so each gets its own interpreter bound to its own heap and reactor.
type InterpreterFactory func(iso *Isolate) Interpreter

// Isolate owns one heap, one reactor, and one interpreter, and is
// strictly single-threaded: only the pool worker currently running it
// ever touches its heap (spec.md §5).
type Isolate struct {
	manager *Manager
	heap    *heap.Heap
	reactor *reactor.Reactor
	interp  Interpreter

	done chan int

	// next/prev are only ever touched while holding manager.listMu.
	next, prev *Isolate
}

// Heap returns the isolate's heap.
func (iso *Isolate) Heap() *heap.Heap { return iso.heap }

// Reactor returns the isolate's reactor, e.g. so the interpreter's
// native code can call PostMessage/AwaitSignal/Exit on it.
func (iso *Isolate) Reactor() *reactor.Reactor { return iso.reactor }

// Start submits the isolate to the pool to run its reactor loop to
// completion. Returns a channel that receives the exit code exactly
// once, when Run() returns.
func (iso *Isolate) Start() <-chan int {
	ok := iso.manager.pool.Run(func() {
		code := iso.reactor.Run(iso.interp)
		iso.manager.remove(iso)
		iso.done <- code
		close(iso.done)
	})
	if !ok {
		// Pool is shutting down; report as interrupted rather than
		// silently hanging a caller waiting on the returned channel.
		iso.manager.remove(iso)
		iso.done <- reactor.ExitInterrupted
		close(iso.done)
	}
	return iso.done
}

// Interrupt requests this isolate's reactor stop with ExitInterrupted.
func (iso *Isolate) Interrupt() { iso.reactor.Interrupt() }

// Spawn creates a child isolate sharing this isolate's Manager and
// posts payload as its first message, matching spec.md's "an isolate
// may spawn a child isolate by posting its initial message payload;
// the pool assigns the child to a worker."
func (iso *Isolate) Spawn(payload []byte) (*Isolate, error) {
	child, err := iso.manager.newIsolate()
	if err != nil {
		return nil, err
	}
	if err := child.reactor.PostMessage(payload); err != nil {
		return nil, err
	}
	child.Start()
	return child, nil
}

// Manager constructs isolates that share a pool, a set of heap/reactor
// construction options, and an interpreter factory, and tracks every
// live isolate on a global list for InterruptAll.
type Manager struct {
	pool        *pool.Pool
	heapOpts    []heap.Option
	reactorOpts []reactor.Option
	factory     InterpreterFactory

	listMu sync.Mutex
	head   *Isolate
}

// NewManager constructs a Manager. p is the worker pool every isolate
// it creates is submitted to.
func NewManager(p *pool.Pool, factory InterpreterFactory, heapOpts []heap.Option, reactorOpts []reactor.Option) *Manager {
	return &Manager{pool: p, heapOpts: heapOpts, reactorOpts: reactorOpts, factory: factory}
}

// NewIsolate constructs a top-level isolate (the "initial isolate" of
// spec.md §6.1), registered on the global list but not yet started.
func (m *Manager) NewIsolate() (*Isolate, error) {
	return m.newIsolate()
}

func (m *Manager) newIsolate() (*Isolate, error) {
	h, err := heap.New(m.heapOpts...)
	if err != nil {
		return nil, err
	}
	r, err := reactor.New(m.reactorOpts...)
	if err != nil {
		return nil, err
	}
	iso := &Isolate{manager: m, heap: h, reactor: r, done: make(chan int, 1)}
	iso.interp = m.factory(iso)
	m.add(iso)
	return iso, nil
}

func (m *Manager) add(iso *Isolate) {
	m.listMu.Lock()
	defer m.listMu.Unlock()
	iso.next = m.head
	if m.head != nil {
		m.head.prev = iso
	}
	m.head = iso
}

func (m *Manager) remove(iso *Isolate) {
	m.listMu.Lock()
	defer m.listMu.Unlock()
	if iso.prev != nil {
		iso.prev.next = iso.next
	} else if m.head == iso {
		m.head = iso.next
	}
	if iso.next != nil {
		iso.next.prev = iso.prev
	}
	iso.next, iso.prev = nil, nil
}

// InterruptAll walks the isolate list and calls Interrupt on every
// live isolate's reactor, matching spec.md's "Any pending OS requests
// are not revoked, only ignored" cooperative-cancellation model.
func (m *Manager) InterruptAll() {
	m.listMu.Lock()
	var isolates []*Isolate
	for cur := m.head; cur != nil; cur = cur.next {
		isolates = append(isolates, cur)
	}
	m.listMu.Unlock()
	for _, iso := range isolates {
		iso.Interrupt()
	}
}
