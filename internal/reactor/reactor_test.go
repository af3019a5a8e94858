package reactor

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakePoller is a deterministic, purely in-memory stand-in for the
// platform pollers, used so reactor tests don't depend on real fds or
// OS timing.
type fakePoller struct {
	mu      sync.Mutex
	woken   chan struct{}
	closed  bool
	wakeCnt int
}

func newFakePoller() *fakePoller {
	return &fakePoller{woken: make(chan struct{}, 64)}
}

func (p *fakePoller) registerWait(handleID uint32, fd int, signals Signals) error {
	return nil
}
func (p *fakePoller) cancelWait(handleID uint32) error { return nil }

func (p *fakePoller) wait(timeoutNanos int64) ([]signalEvent, error) {
	if timeoutNanos < 0 {
		<-p.woken
		return nil, nil
	}
	select {
	case <-p.woken:
	case <-time.After(time.Duration(timeoutNanos)):
	}
	return nil, nil
}

func (p *fakePoller) wake() {
	p.mu.Lock()
	p.wakeCnt++
	p.mu.Unlock()
	select {
	case p.woken <- struct{}{}:
	default:
	}
}

func (p *fakePoller) close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

type recordingDispatcher struct {
	mu       sync.Mutex
	messages []any
	wakeups  int
	signals  int
}

func (d *recordingDispatcher) DispatchSignal(waitID, handleID uint32, signals Signals) {
	d.mu.Lock()
	d.signals++
	d.mu.Unlock()
}

func (d *recordingDispatcher) DispatchMessage(msg any) {
	d.mu.Lock()
	d.messages = append(d.messages, msg)
	d.mu.Unlock()
}

func (d *recordingDispatcher) DispatchWakeup() {
	d.mu.Lock()
	d.wakeups++
	d.mu.Unlock()
}

func newTestReactor(t *testing.T) (*Reactor, *fakePoller) {
	t.Helper()
	fp := newFakePoller()
	r, err := New(withPoller(fp))
	require.NoError(t, err)
	return r, fp
}

func TestReactorRunDispatchesPostedMessagesThenExits(t *testing.T) {
	r, _ := newTestReactor(t)
	d := &recordingDispatcher{}
	require.NoError(t, r.PostMessage("hello"))

	done := make(chan int, 1)
	go func() { done <- r.Run(d) }()

	// give the loop a moment to drain the message, then ask it to stop.
	require.Eventually(t, func() bool {
		d.mu.Lock()
		defer d.mu.Unlock()
		return len(d.messages) == 1
	}, time.Second, time.Millisecond)
	r.Exit(0)

	code := <-done
	require.Equal(t, 0, code)
	require.Equal(t, []any{"hello"}, d.messages)
}

func TestReactorMessageEpilogueIdleExitsWithZero(t *testing.T) {
	r, _ := newTestReactor(t)
	d := &recordingDispatcher{}
	done := make(chan int, 1)
	go func() { done <- r.Run(d) }()

	// No open ports, no pending waits, no wakeup: MessageEpilogue(0)
	// must trigger an exit(0) per spec.md's idle-exit rule.
	r.MessageEpilogue(0)

	code := <-done
	require.Equal(t, 0, code)
}

func TestReactorMessageEpilogueStaysOpenWithPendingWakeup(t *testing.T) {
	r, fp := newTestReactor(t)
	d := &recordingDispatcher{}
	done := make(chan int, 1)
	go func() { done <- r.Run(d) }()

	r.MessageEpilogue(nowNanos() + int64(50*time.Millisecond))

	select {
	case <-done:
		t.Fatal("reactor exited despite a pending wakeup deadline")
	case <-time.After(20 * time.Millisecond):
	}
	_ = fp
	r.Exit(0)
	<-done
}

func TestReactorInterruptSetsExitCodeTwo(t *testing.T) {
	r, _ := newTestReactor(t)
	d := &recordingDispatcher{}
	done := make(chan int, 1)
	go func() { done <- r.Run(d) }()

	r.Interrupt()
	code := <-done
	require.Equal(t, ExitInterrupted, code)
}

func TestReactorPostMessageAfterExitReturnsClosed(t *testing.T) {
	r, _ := newTestReactor(t)
	r.Exit(0)
	err := r.PostMessage("too late")
	require.ErrorIs(t, err, ErrClosed)
}

func TestReactorCancelSignalWaitUnknownID(t *testing.T) {
	r, _ := newTestReactor(t)
	err := r.CancelSignalWait(999)
	require.ErrorIs(t, err, ErrHandleNotFound)
}

func TestReactorAwaitSignalUnknownHandle(t *testing.T) {
	r, _ := newTestReactor(t)
	_, err := r.AwaitSignal(999, SignalRead)
	require.ErrorIs(t, err, ErrHandleNotFound)
}

func TestReactorAwaitSignalRegistersAndCancels(t *testing.T) {
	r, _ := newTestReactor(t)
	handleID := r.RegisterHandle(42)
	waitID, err := r.AwaitSignal(handleID, SignalRead)
	require.NoError(t, err)
	require.NoError(t, r.CancelSignalWait(waitID))
	// A second cancel of the same id is no longer tracked.
	err = r.CancelSignalWait(waitID)
	require.ErrorIs(t, err, ErrHandleNotFound)
}
