// Package runtimecore is the Runtime Core (spec §4.5): it owns the
// module graph and engine, orchestrates resolve → load → fetch →
// instantiate → evaluate, then drives the tick loop until no source
// of future work remains, performing exception capture and
// pretty-printing along the way.
//
// Grounded on original_source/src/main.rs's run_event_loop shape
// (materialize futures, next tick, microtasks, poll, check exceptions,
// repeat) with the loop's own has_pending_work() predicate from
// internal/eventloop and internal/binding generalized to include the
// next-tick queue this package adds.
package runtimecore

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dunerun/dune/internal/binding"
	"github.com/dunerun/dune/internal/eventloop"
	"github.com/dunerun/dune/internal/loader"
	"github.com/dunerun/dune/internal/modgraph"
	"github.com/dunerun/dune/internal/resolve"
	"github.com/dunerun/dune/internal/specifier"
)

// Engine is the full surface the Runtime Core drives: module
// compile/instantiate/evaluate (satisfying internal/modgraph.Engine),
// microtask pumping, and the RegisterFunc/Eval bridge
// internal/bindings packages install their polyfills through.
// internal/v8engine.Runtime and internal/quickjsengine.Runtime both
// satisfy it.
type Engine interface {
	modgraph.Engine
	RunMicrotasks()
	RegisterFunc(name string, fn any) error
	Eval(source, filename string) error
	Close()
}

// InspectorHook lets an attached inspector observe and gate each tick,
// satisfied by internal/inspector.Server. Optional: Run works without
// one.
type InspectorHook interface {
	// PollSessions drains any inbound CDP messages into the engine's
	// debugger session. Called once per tick, after microtasks.
	PollSessions()
	// WaitForDebugger blocks until a client has attached and sent
	// Runtime.runIfWaitingForDebugger, used only for --inspect-brk.
	WaitForDebugger()
}

// Core owns the module graph, the engine, and the event loop, and
// drives the tick sequence.
type Core struct {
	graph    *modgraph.Graph
	engine   Engine
	loop     *eventloop.Loop
	handle   *eventloop.LoopHandle
	Queue    *binding.Queue
	NextTick *nextTickQueue

	inspector  InspectorHook
	breakOnRun bool

	runID      string
	timeOrigin time.Time
	stderr     io.Writer

	asyncMu  sync.Mutex
	asyncErr *Exception
}

// New creates a Core wired to resolver/loader r/l, engine, and an
// event loop with poolSize worker threads. Each Core is tagged with a
// fresh run id (SPEC_FULL.md §6.2) for log correlation across this
// run's tick sequence and any attached inspector sessions.
func New(r *resolve.Resolver, l *loader.Loader, engine Engine, poolSize int) *Core {
	loop := eventloop.New(poolSize)
	return &Core{
		graph:      modgraph.New(r, l),
		engine:     engine,
		loop:       loop,
		handle:     loop.Handle(),
		Queue:      binding.NewQueue(),
		NextTick:   newNextTickQueue(),
		runID:      uuid.NewString(),
		timeOrigin: time.Now(),
		stderr:     os.Stderr,
	}
}

// RunID is this Core's run-correlation id, logged alongside uncaught
// exceptions and usable by an attached inspector for session tagging.
func (c *Core) RunID() string { return c.runID }

// Handle returns the LoopHandle bindings register themselves against.
func (c *Core) Handle() *eventloop.LoopHandle { return c.handle }

// TimeOrigin is the instant this Core was created, the perf_hooks
// binding's performance.timeOrigin reference point (spec §3's
// RuntimeState.time_origin).
func (c *Core) TimeOrigin() time.Time { return c.timeOrigin }

// AttachInspector installs hook, to be polled once per tick.
// breakOnRun mirrors --inspect-brk: the tick sequence blocks before
// its first iteration until a client attaches and resumes.
func (c *Core) AttachInspector(hook InspectorHook, breakOnRun bool) {
	c.inspector = hook
	c.breakOnRun = breakOnRun
}

// NextTickPush schedules fn to run during the next tick's next-tick
// phase, backing process.nextTick.
func (c *Core) NextTickPush(fn func()) { c.NextTick.push(fn) }

// ReportUncaught records message (an async callback's uncaught
// exception text, relayed via the bindings package's __reportUncaught
// wiring) for the next tick's uncaught-exception check, satisfying
// internal/bindings.UncaughtReporter. The first reported exception
// wins; later ones in the same tick are dropped, matching "the
// process exits on the first uncaught exception" (spec §7).
func (c *Core) ReportUncaught(message string) {
	c.asyncMu.Lock()
	defer c.asyncMu.Unlock()
	if c.asyncErr == nil {
		c.asyncErr = captureException(fmt.Errorf("%s", message), "")
	}
}

// takeAsyncException returns and clears any exception ReportUncaught
// recorded since the last call.
func (c *Core) takeAsyncException() *Exception {
	c.asyncMu.Lock()
	defer c.asyncMu.Unlock()
	exc := c.asyncErr
	c.asyncErr = nil
	return exc
}

// Run resolves, loads, and evaluates entry, then drives the tick loop
// to completion. Returns the process exit code: 0 on a clean run, 1 on
// an uncaught exception (resolution, load, instantiation, or runtime),
// matching spec §7's exit-code policy.
func (c *Core) Run(entry specifier.Specifier) int {
	if err := c.graph.Fetch(entry); err != nil {
		fmt.Fprintf(c.stderr, "%s\n", err)
		return 1
	}

	if err := c.graph.Instantiate(c.engine); err != nil {
		fmt.Fprintf(c.stderr, "%s\n", err)
		return 1
	}

	if c.inspector != nil && c.breakOnRun {
		c.inspector.WaitForDebugger()
	}

	if err := c.graph.Evaluate(c.engine, entry); err != nil {
		exc := captureException(err, "")
		rec, _ := c.graph.Get(entry)
		src := ""
		if rec != nil {
			src = rec.Source
		}
		log.Printf("dune[%s]: uncaught exception in %s", c.runID, entry)
		exc.PrettyPrint(c.stderr, src)
		return 1
	}

	return c.tickLoop(entry)
}

// tickLoop runs the tick sequence (spec §4.5) until hasPendingWork is
// false or an async callback throws an uncaught exception, returning
// the resulting exit code.
func (c *Core) tickLoop(entry specifier.Specifier) int {
	for c.hasPendingWork() {
		// 1. Materialize pending futures.
		c.Queue.Drain()
		// 2. Run next-tick queue.
		c.NextTick.drain()
		// 3. Perform microtask checkpoint.
		c.engine.RunMicrotasks()
		// 4. Check uncaught exceptions: a throw inside any callback
		// fired during steps 1-3 reaches ReportUncaught via
		// __invokeCallback's try/catch and __reportUncaught (see
		// internal/bindings.InstallUncaughtReporter), surfaced here
		// exactly like a top-level evaluation failure.
		if exc := c.takeAsyncException(); exc != nil {
			log.Printf("dune[%s]: uncaught exception in %s", c.runID, entry)
			rec, _ := c.graph.Get(entry)
			src := ""
			if rec != nil {
				src = rec.Source
			}
			exc.PrettyPrint(c.stderr, src)
			return 1
		}
		// 5. Poll the event loop.
		c.loop.Poll()
		// 6. Check the inspector.
		if c.inspector != nil {
			c.inspector.PollSessions()
		}
	}
	return 0
}

func (c *Core) hasPendingWork() bool {
	return c.Queue.HasOutstanding() || !c.NextTick.empty() || c.handle.HasPending()
}

// Close tears down the event loop and engine. Must be the last call
// made on c.
func (c *Core) Close() {
	c.loop.Close()
	c.engine.Close()
}
