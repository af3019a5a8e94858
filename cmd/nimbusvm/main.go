// Command nimbusvm is the process entry spec.md §6.1 describes:
//
//	nimbusvm <snapshot-path> [isolate args...]
//
// It reads the snapshot file into memory, installs SIGINT as a global interrupt
// (§6.3), creates the initial isolate, posts the snapshot bytes as its
// first message, and exits with that isolate's exit code — or 2 if
// interrupted, or -1 on a usage error.
//
// The bytecode interpreter and the snapshot's cluster format are both
// explicitly out of the core's scope (spec.md §1): bootstrapInterpreterFactory
// below stands in for the real interpreter factory a language build
// would supply, using internal/snapshot only for its documented
// primitives (the root-count/back-ref trailer), not a real object
// graph. A real distribution wires its own InterpreterFactory into
// isolate.NewManager in place of this one.
package main

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/nimbusvm/nimbusvm/internal/isolate"
	"github.com/nimbusvm/nimbusvm/internal/pool"
	"github.com/nimbusvm/nimbusvm/internal/reactor"
	"github.com/nimbusvm/nimbusvm/internal/snapshot"
	"github.com/nimbusvm/nimbusvm/internal/vmlog"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: nimbusvm <snapshot-path> [isolate args...]")
		return -1
	}
	snapshotPath := args[0]

	data, err := os.ReadFile(snapshotPath)
	if err != nil {
		vmlog.Error(vmlog.CategoryIsolate, "failed to read snapshot", err, map[string]any{"path": snapshotPath})
		fmt.Fprintf(os.Stderr, "nimbusvm: %v\n", err)
		return -1
	}

	p := pool.New()
	defer p.Shutdown()

	m := isolate.NewManager(p, bootstrapInterpreterFactory, nil, nil)

	initial, err := m.NewIsolate()
	if err != nil {
		vmlog.Error(vmlog.CategoryIsolate, "failed to create initial isolate", err, nil)
		fmt.Fprintf(os.Stderr, "nimbusvm: %v\n", err)
		return -1
	}
	if err := initial.Reactor().PostMessage(data); err != nil {
		vmlog.Error(vmlog.CategoryIsolate, "failed to post initial snapshot message", err, nil)
		fmt.Fprintf(os.Stderr, "nimbusvm: %v\n", err)
		return -1
	}
	done := initial.Start()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)
	go func() {
		if _, ok := <-sigCh; ok {
			vmlog.Info(vmlog.CategoryIsolate, "received interrupt, shutting down all isolates", nil)
			m.InterruptAll()
		}
	}()

	return <-done
}

// bootstrapInterpreterFactory builds a stand-in Interpreter that
// satisfies scenario 1 of spec.md §8 ("Minimal run: ... a snapshot
// containing only a scheduler that immediately exits with code 0"):
// it treats the first dispatched message as snapshot bytes, uses
// snapshot.Deserialize with no clusters registered (equivalent to an
// empty object graph) to read the root-count trailer, and exits 0
// once that succeeds. A real interpreter replaces this wholesale.
func bootstrapInterpreterFactory(iso *isolate.Isolate) isolate.Interpreter {
	return &bootstrapInterpreter{iso: iso}
}

type bootstrapInterpreter struct {
	iso *isolate.Isolate
}

func (b *bootstrapInterpreter) DispatchMessage(msg any) {
	payload, ok := msg.([]byte)
	if !ok {
		b.iso.Reactor().Exit(-1)
		return
	}
	if _, err := snapshot.Deserialize(b.iso.Heap(), payload, nil); err != nil {
		vmlog.Error(vmlog.CategoryIsolate, "snapshot decode failed", err, nil)
		b.iso.Reactor().Exit(-1)
		return
	}
	b.iso.Reactor().Exit(0)
}

func (b *bootstrapInterpreter) DispatchWakeup() {}

func (b *bootstrapInterpreter) DispatchSignal(waitID, handleID uint32, signals reactor.Signals) {}
