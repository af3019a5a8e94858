package isolate

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nimbusvm/nimbusvm/internal/pool"
	"github.com/nimbusvm/nimbusvm/internal/reactor"
)

// recordingInterpreter is a minimal Dispatcher that exits as soon as it
// sees the first message, echoing it into received and exiting with
// exitCode.
type recordingInterpreter struct {
	iso      *Isolate
	exitCode int

	mu       sync.Mutex
	received []any
}

func (ri *recordingInterpreter) DispatchMessage(msg any) {
	ri.mu.Lock()
	ri.received = append(ri.received, msg)
	ri.mu.Unlock()
	ri.iso.Reactor().Exit(ri.exitCode)
}

func (ri *recordingInterpreter) DispatchWakeup()                                    {}
func (ri *recordingInterpreter) DispatchSignal(uint32, uint32, reactor.Signals) {}

func newTestManager(t *testing.T, exitCode int) (*Manager, *pool.Pool) {
	t.Helper()
	p := pool.New()
	t.Cleanup(p.Shutdown)
	var mu sync.Mutex
	var interps []*recordingInterpreter
	m := NewManager(p, func(iso *Isolate) Interpreter {
		ri := &recordingInterpreter{iso: iso, exitCode: exitCode}
		mu.Lock()
		interps = append(interps, ri)
		mu.Unlock()
		return ri
	}, nil, nil)
	return m, p
}

func TestIsolateRunsToExitCode(t *testing.T) {
	m, _ := newTestManager(t, 0)
	iso, err := m.NewIsolate()
	require.NoError(t, err)

	require.NoError(t, iso.Reactor().PostMessage("go"))
	done := iso.Start()

	select {
	case code := <-done:
		require.Equal(t, 0, code)
	case <-time.After(time.Second):
		t.Fatal("isolate never exited")
	}
}

func TestIsolateIdleExitsWithZero(t *testing.T) {
	m, _ := newTestManager(t, 0)
	iso, err := m.NewIsolate()
	require.NoError(t, err)

	done := iso.Start()
	iso.Reactor().MessageEpilogue(0)

	select {
	case code := <-done:
		require.Equal(t, 0, code)
	case <-time.After(time.Second):
		t.Fatal("idle isolate never exited")
	}
}

func TestManagerInterruptAllSetsExitCodeTwo(t *testing.T) {
	m, _ := newTestManager(t, 0)
	iso1, err := m.NewIsolate()
	require.NoError(t, err)
	iso2, err := m.NewIsolate()
	require.NoError(t, err)

	done1 := iso1.Start()
	done2 := iso2.Start()

	m.InterruptAll()

	for _, done := range []<-chan int{done1, done2} {
		select {
		case code := <-done:
			require.Equal(t, reactor.ExitInterrupted, code)
		case <-time.After(time.Second):
			t.Fatal("isolate was not interrupted")
		}
	}
}

func TestSpawnDeliversPayloadToChild(t *testing.T) {
	m, _ := newTestManager(t, 0)
	parent, err := m.NewIsolate()
	require.NoError(t, err)
	parentDone := parent.Start()
	parent.Reactor().MessageEpilogue(0)
	<-parentDone

	child, err := parent.Spawn([]byte("ping"))
	require.NoError(t, err)

	select {
	case code := <-child.done:
		require.Equal(t, 0, code)
	case <-time.After(time.Second):
		t.Fatal("child isolate never exited")
	}
}

func TestManagerRemovesIsolateFromListOnExit(t *testing.T) {
	m, _ := newTestManager(t, 0)
	iso, err := m.NewIsolate()
	require.NoError(t, err)
	done := iso.Start()
	iso.Reactor().MessageEpilogue(0)
	<-done

	m.listMu.Lock()
	defer m.listMu.Unlock()
	for cur := m.head; cur != nil; cur = cur.next {
		require.NotSame(t, iso, cur)
	}
}
