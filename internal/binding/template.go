package binding

import "github.com/dunerun/dune/internal/eventloop"

// Promise implements the Promise binding template: a native binding
// that does exactly one unit of work and resolves or rejects a single
// JS promise with its outcome. work runs on the thread pool so it may
// block; settle runs back on the loop thread via Drain.
func Promise(q *Queue, handle *eventloop.LoopHandle, work func() (any, error), settle Settle) *PendingFuture {
	f := q.New(settle)
	handle.Spawn(func() any {
		result, err := work()
		return workResult{result: result, err: err}
	}, func(r any) {
		wr := r.(workResult)
		q.Complete(f, wr.result, wr.err)
	})
	return f
}

type workResult struct {
	result any
	err    error
}

// Stream implements the Callback binding template: a native binding
// that delivers a series of events rather than a single settle (TCP
// reads, signal deliveries, repeating timers). Each event goes
// through its own single-use PendingFuture so that emit, like
// Promise's settle, is materialized at most once per queued event and
// always on the loop thread.
type Stream struct {
	q      *Queue
	onItem func(data any)
	onErr  func(err error)
	onDone func()
}

// NewStream creates a Stream whose callbacks fire through q's Drain.
func NewStream(q *Queue, onItem func(data any), onErr func(err error), onDone func()) *Stream {
	return &Stream{q: q, onItem: onItem, onErr: onErr, onDone: onDone}
}

// Emit enqueues one data item for delivery on the next Drain.
func (s *Stream) Emit(data any) {
	f := s.q.New(func(result any, err error) {
		if s.onItem != nil {
			s.onItem(result)
		}
	})
	s.q.Complete(f, data, nil)
}

// Fail enqueues a terminal error for delivery on the next Drain.
func (s *Stream) Fail(err error) {
	f := s.q.New(func(result any, err error) {
		if s.onErr != nil {
			s.onErr(err)
		}
	})
	s.q.Complete(f, nil, err)
}

// Done enqueues the stream's terminal completion (EOF, stop signal).
func (s *Stream) Done() {
	f := s.q.New(func(result any, err error) {
		if s.onDone != nil {
			s.onDone()
		}
	})
	s.q.Complete(f, nil, nil)
}
