// Package pool implements the cooperative worker pool that
// multiplexes isolates onto OS threads (goroutines, in this port),
// recycling workers with a bounded idle lifetime.
//
// The list-splicing algorithm (all_workers/idle_workers, the
// shutdown-rendezvous via an exit monitor, the join list drained
// lazily on the next idle transition or by Shutdown) is grounded on
// the original psoup::ThreadPool/Worker from thread_pool.cc. Go has no
// "join a goroutine" primitive, so each worker's exited channel stands
// in for a thread-join id: closing it is the join point, and the
// self-join-avoidance invariant (the thread calling Shutdown never
// joins itself) holds structurally here since no worker goroutine
// ever calls Shutdown on its own pool.
package pool

import (
	"sync"
	"time"
)

// Task is a unit of work submitted to the pool.
type Task func()

// Pool recycles workers with a bounded idle lifetime.
type Pool struct {
	mu           sync.Mutex
	shuttingDown bool
	allHead      *worker
	idleHead     *worker
	countStarted int
	countStopped int
	countRunning int
	countIdle    int
	joinList     []chan struct{}

	exitMu       sync.Mutex
	exitCond     *sync.Cond
	shutdownHead *worker

	idleTimeout time.Duration
}

// New constructs a Pool. opts configures the idle timeout; it defaults
// to 5 seconds, matching spec.md §4.3.
func New(opts ...Option) *Pool {
	cfg := resolveOptions(opts)
	p := &Pool{idleTimeout: cfg.idleTimeout}
	p.exitCond = sync.NewCond(&p.exitMu)
	return p
}

// Run assigns task to an idle worker, or starts a new one if none is
// idle. Returns false if the pool is shutting down.
func (p *Pool) Run(task Task) bool {
	p.mu.Lock()
	if p.shuttingDown {
		p.mu.Unlock()
		return false
	}
	var w *worker
	started := false
	if p.idleHead == nil {
		w = spawnWorker(p)
		started = true
		p.countStarted++
		w.allNext = p.allHead
		p.allHead = w
		w.owned = true
		p.countRunning++
	} else {
		w = p.idleHead
		p.idleHead = w.idleNext
		w.idleNext = nil
		p.countIdle--
		p.countRunning++
	}
	p.mu.Unlock()

	if started {
		go w.loop(task)
	} else {
		w.taskCh <- task
	}
	return true
}

// Shutdown unlinks every worker, notifies them all, waits for each to
// acknowledge via the exit monitor, then joins every recorded exit
// channel. Per spec.md §4.3, J1 (count_started == count_stopped) holds
// the moment Shutdown returns.
func (p *Pool) Shutdown() {
	// shuttingDown flips to true and every worker is added to the
	// shutdown list in one critical section spanning both mu and
	// exitMu. That ordering matters: any worker that later observes
	// shuttingDown under mu is thereby guaranteed to already be on
	// shutdownHead, so its own exit path (finishWorkerShutdown) always
	// finds itself on the list instead of racing a concurrent add.
	p.mu.Lock()
	p.shuttingDown = true
	saved := p.allHead
	p.allHead = nil
	p.idleHead = nil
	for cur := saved; cur != nil; cur = cur.allNext {
		cur.idleNext = nil
		cur.owned = false
		p.countStopped++
	}
	p.countIdle = 0
	p.countRunning = 0

	p.exitMu.Lock()
	for cur := saved; cur != nil; cur = cur.allNext {
		p.addToShutdownListLocked(cur)
	}
	p.mu.Unlock()

	for cur := saved; cur != nil; cur = cur.allNext {
		close(cur.shutdownCh)
	}
	for p.shutdownHead != nil {
		p.exitCond.Wait()
	}
	p.exitMu.Unlock()

	p.mu.Lock()
	list := p.joinList
	p.joinList = nil
	p.mu.Unlock()
	for _, ch := range list {
		<-ch
	}
}

// Stats reports the pool's current bookkeeping counters, primarily for
// tests exercising J1/J2.
type Stats struct {
	Started, Stopped, Running, Idle int
}

func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{Started: p.countStarted, Stopped: p.countStopped, Running: p.countRunning, Idle: p.countIdle}
}

func (p *Pool) removeFromIdleListLocked(w *worker) bool {
	if p.idleHead == nil {
		return false
	}
	if p.idleHead == w {
		p.idleHead = w.idleNext
		w.idleNext = nil
		return true
	}
	for cur := p.idleHead; cur.idleNext != nil; cur = cur.idleNext {
		if cur.idleNext == w {
			cur.idleNext = w.idleNext
			w.idleNext = nil
			return true
		}
	}
	return false
}

func (p *Pool) removeFromAllListLocked(w *worker) bool {
	if p.allHead == nil {
		return false
	}
	if p.allHead == w {
		p.allHead = w.allNext
		w.allNext = nil
		w.owned = false
		return true
	}
	for cur := p.allHead; cur.allNext != nil; cur = cur.allNext {
		if cur.allNext == w {
			cur.allNext = w.allNext
			w.allNext = nil
			w.owned = false
			return true
		}
	}
	return false
}

func (p *Pool) addToShutdownListLocked(w *worker) {
	w.shutdownNext = p.shutdownHead
	p.shutdownHead = w
}

func (p *Pool) removeFromShutdownListLocked(w *worker) {
	if p.shutdownHead == w {
		p.shutdownHead = w.shutdownNext
		w.shutdownNext = nil
		return
	}
	for cur := p.shutdownHead; cur != nil && cur.shutdownNext != nil; cur = cur.shutdownNext {
		if cur.shutdownNext == w {
			cur.shutdownNext = w.shutdownNext
			w.shutdownNext = nil
			return
		}
	}
}

// setIdleAndReapExited moves w onto the idle list, first draining any
// exit channels accumulated since the last idle transition (mirroring
// SetIdleAndReapExited in thread_pool.cc). Returns false if the pool
// shut down in the interim, in which case w must exit instead.
func (p *Pool) setIdleAndReapExited(w *worker) bool {
	p.mu.Lock()
	if p.shuttingDown {
		p.mu.Unlock()
		return false
	}
	list := p.joinList
	p.joinList = nil
	p.mu.Unlock()

	for _, ch := range list {
		<-ch
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.shuttingDown {
		return false
	}
	w.idleNext = p.idleHead
	p.idleHead = w
	p.countIdle++
	p.countRunning--
	return true
}

// releaseIdleWorker unlinks w after its idle deadline expired with no
// new task assigned. Returns false if the pool is shutting down (in
// which case w must take the shutdown exit path instead) or if w was
// concurrently reassigned a task.
func (p *Pool) releaseIdleWorker(w *worker) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.shuttingDown {
		return false
	}
	if !p.removeFromIdleListLocked(w) {
		return false
	}
	p.removeFromAllListLocked(w)
	p.countStopped++
	p.countIdle--
	p.joinList = append(p.joinList, w.exited)
	return true
}

// finishWorkerShutdown is called by a worker that observed its
// shutdownCh closed. It closes its exit channel (the join point) and
// records it for Shutdown's final join loop, then rendezvous through
// the exit monitor.
func (p *Pool) finishWorkerShutdown(w *worker) {
	close(w.exited)

	p.mu.Lock()
	p.joinList = append(p.joinList, w.exited)
	p.mu.Unlock()

	p.exitMu.Lock()
	p.removeFromShutdownListLocked(w)
	p.exitCond.Broadcast()
	p.exitMu.Unlock()
}
