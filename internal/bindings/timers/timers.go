// Package timers implements the timers binding contract (spec §6),
// backing setTimeout/setInterval/clearTimeout/clearInterval with
// internal/eventloop's Timer/RemoveTimer, routed through
// internal/binding's pending-futures queue so the JS callback always
// fires from Queue.Drain (runtime core tick step 1), never
// synchronously from inside the event loop's poll — matching
// spec.md §3's "bindings never re-enter the loop poll synchronously"
// invariant. Grounded on original_source/src/timers.rs's
// createTimeout shape, adapted onto internal/eventloop's Timer API
// rather than rusty_v8's.
package timers

import (
	"time"

	"github.com/dunerun/dune/internal/binding"
	"github.com/dunerun/dune/internal/bindings"
	"github.com/dunerun/dune/internal/eventloop"
)

// Install registers the timers binding and the setTimeout family.
func Install(reg *bindings.Registry, handle *eventloop.LoopHandle, q *binding.Queue) error {
	register := func(cbID int, delayMs int, repeat bool) int {
		delay := time.Duration(delayMs) * time.Millisecond
		return handle.Timer(delay, repeat, func() {
			f := q.New(func(result any, err error) {
				_ = reg.InvokeCallback(cbID, repeat, nil, nil)
			})
			q.Complete(f, nil, nil)
		})
	}
	if err := reg.Func("timers", "register", "__timerRegister", register); err != nil {
		return err
	}

	clear := func(id int) { handle.RemoveTimer(id) }
	if err := reg.Func("timers", "clear", "__timerClear", clear); err != nil {
		return err
	}

	reg.Raw(timersJS)
	return nil
}

const timersJS = `
(function() {
	globalThis.__timerCallbacks = globalThis.__timerCallbacks || {};

	function schedule(fn, delay, repeat) {
		var cbID = __registerCallback(fn);
		var id = __timerRegister(cbID, delay || 0, repeat);
		globalThis.__timerCallbacks[id] = cbID;
		return id;
	}

	function cancel(id) {
		__timerClear(id);
		var cbID = globalThis.__timerCallbacks[id];
		if (cbID !== undefined) {
			delete globalThis.__cbRegistry[cbID];
			delete globalThis.__timerCallbacks[id];
		}
	}

	globalThis.setTimeout = function(fn, delay) { return schedule(fn, delay, false); };
	globalThis.setInterval = function(fn, delay) { return schedule(fn, delay, true); };
	globalThis.clearTimeout = cancel;
	globalThis.clearInterval = cancel;
})();
`
