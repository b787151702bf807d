package eventloop

import (
	"container/heap"
	"os"
	"time"
)

// LoopHandle is the capability surface bindings use to schedule work
// on a Loop. Every method is safe to
// call from any goroutine; callbacks passed in always run on the loop
// thread.
type LoopHandle struct {
	loop *Loop
}

// Spawn submits blocking work fn to the thread pool, delivering its
// result to done on the loop thread.
func (h *LoopHandle) Spawn(fn func() any, done func(result any)) {
	h.loop.pool.Submit(fn, done)
	h.Interrupt()
}

// Timer schedules callback to run after delay, repeating every delay
// if repeat is true, and returns an id usable with RemoveTimer.
func (h *LoopHandle) Timer(delay time.Duration, repeat bool, callback func()) int {
	l := h.loop
	l.mu.Lock()
	l.nextID++
	id := l.nextID
	var period time.Duration
	if repeat {
		period = delay
	}
	t := &timer{
		id:       id,
		deadline: time.Now().Add(delay),
		repeat:   period,
		callback: callback,
		seq:      l.nextSeq(),
	}
	l.timerIdx[id] = t
	heap.Push(&l.timers, t)
	l.mu.Unlock()
	h.Interrupt()
	return id
}

// RemoveTimer cancels a pending timer. A no-op if id is unknown or
// already fired (and not a repeater).
func (h *LoopHandle) RemoveTimer(id int) {
	l := h.loop
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.timerIdx[id]
	if !ok {
		return
	}
	delete(l.timerIdx, id)
	if t.index >= 0 {
		heap.Remove(&l.timers, t.index)
	}
}

// TCPConnect dials addr, reporting the resulting connection id (or
// error) via onDone.
func (h *LoopHandle) TCPConnect(addr string, onDone func(id int, err error)) {
	h.loop.reactor.Connect(addr, func(id int, err error) {
		onDone(id, err)
	})
	h.Interrupt()
}

// TCPReadStart begins streaming reads on connection id.
func (h *LoopHandle) TCPReadStart(id int, onData func([]byte), onErr func(error), onEOF func()) {
	h.loop.reactor.ReadStart(id, onData, onErr, onEOF)
}

// TCPWrite writes buf to connection id.
func (h *LoopHandle) TCPWrite(id int, buf []byte, onDone func(err error)) {
	h.loop.reactor.Write(id, buf, onDone)
	h.Interrupt()
}

// TCPClose closes connection id.
func (h *LoopHandle) TCPClose(id int) {
	h.loop.reactor.Close(id)
}

// SignalStart subscribes to sig, invoking handler each time it fires.
func (h *LoopHandle) SignalStart(sig os.Signal, handler func()) {
	h.loop.signals.Start(sig, handler)
}

// SignalStop unsubscribes from sig.
func (h *LoopHandle) SignalStop(sig os.Signal) {
	h.loop.signals.Stop(sig)
}

// Interrupt wakes a parked Poll call. Idempotent: multiple calls
// before the loop wakes coalesce into a single wakeup, matching
// an idempotent interrupt: multiple wakes coalesce into one.
func (h *LoopHandle) Interrupt() {
	select {
	case h.loop.interrupt <- struct{}{}:
	default:
	}
}

// HasPending reports whether the loop has any pending timers,
// connections, signal subscriptions, or in-flight pool work.
func (h *LoopHandle) HasPending() bool {
	return h.loop.HasPendingEvents()
}
