// Package binding implements the binding bridge: the queue of
// PendingFutures a native call enqueues work against, and the two
// templates (Promise, Callback) bindings are built from.
//
// Grounded on internal/eventloop/eventloop.go's PendingFetch/
// FetchResult/DrainPendingFetches triple, generalized here from
// "HTTP fetch only" to any async native operation, and on
// grafana-k6's RegisterCallback discipline: a future's Settle must be
// invoked exactly once.
package binding

import "sync"

// Settle delivers a future's outcome to the engine so it can resolve
// or reject the corresponding JS promise (or invoke the corresponding
// JS callback). Engine backends supply this closure; the binding
// package never touches JS values directly.
type Settle func(result any, err error)

// PendingFuture is a single async native operation identified by ID,
// not yet materialized into JS.
type PendingFuture struct {
	ID     uint64
	settle Settle
}

// completion pairs a future with its outcome, queued until the next
// drain.
type completion struct {
	future *PendingFuture
	result any
	err    error
}

// Queue is the pending-futures queue: a FIFO of completions that
// Drain materializes once per runtime tick, never more than once per
// future.
type Queue struct {
	mu        sync.Mutex
	nextID    uint64
	outstanding map[uint64]bool
	ready     []completion
}

// NewQueue creates an empty pending-futures queue.
func NewQueue() *Queue {
	return &Queue{outstanding: make(map[uint64]bool)}
}

// New registers a new PendingFuture bound to settle, to be invoked
// when Complete is called for it. The future is "outstanding" until
// then.
func (q *Queue) New(settle Settle) *PendingFuture {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.nextID++
	f := &PendingFuture{ID: q.nextID, settle: settle}
	q.outstanding[f.ID] = true
	return f
}

// Complete enqueues f's outcome for the next Drain. Calling Complete
// more than once for the same future is a programmer error in the
// caller (a native binding); Complete is a no-op for a future that is
// not outstanding, preserving "materialize at most once" even if a
// binding misbehaves.
func (q *Queue) Complete(f *PendingFuture, result any, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.outstanding[f.ID] {
		return
	}
	delete(q.outstanding, f.ID)
	q.ready = append(q.ready, completion{future: f, result: result, err: err})
}

// Drain materializes every completion queued since the last Drain, in
// FIFO order, then clears the queue. Must be called from the loop
// thread, once per tick, before the next-tick queue and microtask
// checkpoint run.
func (q *Queue) Drain() {
	q.mu.Lock()
	batch := q.ready
	q.ready = nil
	q.mu.Unlock()

	for _, c := range batch {
		c.future.settle(c.result, c.err)
	}
}

// HasOutstanding reports whether any future is registered but not yet
// completed, or completed but not yet drained, used to decide whether the runtime still has pending work.
func (q *Queue) HasOutstanding() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.outstanding) > 0 || len(q.ready) > 0
}

// OutstandingCount reports how many futures are registered but not yet
// completed, backing the promise binding's peek contract.
func (q *Queue) OutstandingCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.outstanding)
}
