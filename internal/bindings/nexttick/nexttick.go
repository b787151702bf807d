// Package nexttick wires process.nextTick onto
// internal/runtimecore.Core's next-tick queue (tick phase 2, spec
// §4.5), grounded on original_source/src/main.rs's next_tick_callbacks
// drain-then-requeue loop and adapted here to runtimecore's own
// nextTickQueue rather than a second parallel Vec.
package nexttick

import (
	"github.com/dunerun/dune/internal/bindings"
)

// Pusher is the one method of internal/runtimecore.Core this package
// needs, kept narrow so it doesn't have to import the whole package
// surface.
type Pusher interface {
	NextTickPush(fn func())
}

// Install registers process.nextTick, invoking the registered JS
// callback through the numeric callback registry every other binding
// uses.
func Install(reg *bindings.Registry, core Pusher) error {
	schedule := func(cbID int) {
		core.NextTickPush(func() {
			_ = reg.InvokeCallback(cbID, false, nil, nil)
		})
	}
	if err := reg.Func("process", "nextTick", "__nextTickSchedule", schedule); err != nil {
		return err
	}

	reg.Raw(`
globalThis.process = globalThis.process || {};
process.nextTick = function(fn) {
	var cbID = __registerCallback(fn);
	__nextTickSchedule(cbID);
};
`)
	return nil
}
