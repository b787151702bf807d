// Package eventloop implements the single-threaded event loop: a
// timer min-heap, a bounded thread pool for blocking work, a
// non-blocking TCP reactor, a signal dispatcher, and an idempotent
// interrupt, all drained into one FIFO of ready completions that the
// owning thread (the runtime core's loop thread) consumes.
//
// Grounded on internal/eventloop/eventloop.go's channel-drain-then-
// requeue idiom (generalized here from "fetches only" to "any
// completion") and on grafana-k6's js/eventloop RegisterCallback /
// wakeup() coalescing-channel idiom for the interrupt primitive.
package eventloop

import (
	"container/heap"
	"sync"
	"time"
)

// Completion is a unit of ready work delivered by a worker thread,
// the TCP reactor, or the signal dispatcher. Run executes on the loop
// thread and must not block.
type Completion struct {
	Run func()
}

// Loop is the event loop. All mutating methods besides the ones
// explicitly documented as callable from any goroutine are intended
// to be called from the loop thread only; the LoopHandle returned by
// Handle is the cross-thread-safe submission surface.
type Loop struct {
	mu sync.Mutex

	timers   timerHeap
	timerIdx map[int]*timer
	nextID   int

	ready chan Completion

	pool *workerPool

	reactor *tcpReactor

	signals *signalDispatcher

	interrupt chan struct{}
}

// New creates an event loop with a thread pool of the given size
// (pass the number of logical cores for the conventional default).
func New(poolSize int) *Loop {
	l := &Loop{
		timerIdx:  make(map[int]*timer),
		ready:     make(chan Completion, 256),
		interrupt: make(chan struct{}, 1),
	}
	l.pool = newWorkerPool(poolSize, l.ready)
	l.reactor = newTCPReactor(l.ready)
	l.signals = newSignalDispatcher(l.ready)
	heap.Init(&l.timers)
	return l
}

// Handle returns the cloneable capability bundle other components use
// to submit work and wake the loop.
func (l *Loop) Handle() *LoopHandle {
	return &LoopHandle{loop: l}
}

// HasPendingEvents reports whether the loop has any future work:
// true iff timers are non-empty, TCP resources are active, signal
// subscriptions are active, thread-pool tasks are in flight, or the
// completion FIFO is non-empty.
func (l *Loop) HasPendingEvents() bool {
	l.mu.Lock()
	timersPending := l.timers.Len() > 0
	l.mu.Unlock()
	return timersPending ||
		l.reactor.hasActive() ||
		l.signals.hasActive() ||
		l.pool.inFlight() > 0 ||
		len(l.ready) > 0
}

// Poll runs one tick iteration:
//  1. drain the completions FIFO, invoking each callback;
//  2. expire timers whose deadline has passed, reinserting repeaters;
//  3. compute the next wait deadline;
//  4. park until a completion arrives, the deadline elapses, or an
//     interrupt fires.
func (l *Loop) Poll() {
	l.drainReady()
	l.runExpiredTimers()

	wait, hasWait := l.nextWait()
	if !hasWait {
		return
	}

	if wait <= 0 {
		return
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case c := <-l.ready:
		c.Run()
	case <-timer.C:
	case <-l.interrupt:
	}
}

// drainReady runs every completion currently queued, without blocking.
func (l *Loop) drainReady() {
	for {
		select {
		case c := <-l.ready:
			c.Run()
		default:
			return
		}
	}
}

// runExpiredTimers fires every timer whose deadline has elapsed,
// earliest first, reinserting repeating timers with deadline +=
// period.
func (l *Loop) runExpiredTimers() {
	now := time.Now()
	for {
		l.mu.Lock()
		if l.timers.Len() == 0 {
			l.mu.Unlock()
			return
		}
		next := l.timers[0]
		if next.deadline.After(now) {
			l.mu.Unlock()
			return
		}
		heap.Pop(&l.timers)
		if next.repeat > 0 {
			next.deadline = next.deadline.Add(next.repeat)
			next.seq = l.nextSeq()
			heap.Push(&l.timers, next)
		} else {
			delete(l.timerIdx, next.id)
		}
		cb := next.callback
		l.mu.Unlock()
		if cb != nil {
			cb()
		}
	}
}

func (l *Loop) nextSeq() int {
	l.nextID++
	return l.nextID
}

// nextWait computes how long Poll may park: the time until the next
// timer, capped at 50ms while thread-pool tasks, TCP connections or
// signal subscriptions are active; (0, false) when there is nothing to
// wait for. Pending interrupts are not consulted here: Poll's select
// returns as soon as one is queued or a completion arrives.
func (l *Loop) nextWait() (time.Duration, bool) {
	l.mu.Lock()
	hasTimer := l.timers.Len() > 0
	var timerWait time.Duration
	if hasTimer {
		timerWait = time.Until(l.timers[0].deadline)
	}
	l.mu.Unlock()

	if l.pool.inFlight() > 0 || l.reactor.hasActive() || l.signals.hasActive() {
		if !hasTimer || timerWait > 50*time.Millisecond {
			return 50 * time.Millisecond, true
		}
	}

	if hasTimer {
		return timerWait, true
	}

	return 0, false
}

// Close tears down the thread pool, TCP reactor, and signal
// dispatcher. The loop must not be polled after Close.
func (l *Loop) Close() {
	l.pool.close()
	l.reactor.close()
	l.signals.close()
}
