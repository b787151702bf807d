// Package perfhooks implements the perf_hooks binding contract (spec
// §6) and SPEC_FULL.md §6.4's performance.now()/timeOrigin
// supplement, grounded directly on
// original_source/src/perf_hooks.rs's now()/timeOrigin pair — here
// elapsed time is measured against the RuntimeState.time_origin spec
// §3 names, captured once by internal/runtimecore when the Core is
// created and passed in to Install.
package perfhooks

import (
	"strconv"
	"time"

	"github.com/dunerun/dune/internal/bindings"
)

// Install registers the perf_hooks binding and the performance global,
// measuring elapsed time against origin (the isolate's time origin,
// captured once by internal/runtimecore at isolate creation).
func Install(reg *bindings.Registry, origin time.Time) error {
	now := func() float64 {
		return float64(time.Since(origin).Microseconds()) / 1000.0
	}
	if err := reg.Func("perf_hooks", "now", "__perfNow", now); err != nil {
		return err
	}

	timeOriginMillis := float64(origin.UnixNano()) / 1e6
	reg.Value("perf_hooks", "timeOrigin", strconv.FormatFloat(timeOriginMillis, 'f', -1, 64))
	reg.Raw(`
globalThis.performance = globalThis.performance || {};
globalThis.performance.now = function() { return __perfNow(); };
globalThis.performance.timeOrigin = globalThis.__bindingsRegistry['perf_hooks'].timeOrigin;
`)
	return nil
}
