// Package promise implements the "promise (peek)" binding contract
// (spec §6): a read-only window onto the pending-futures queue for
// diagnostics, exposed to script code as promise.pendingCount(),
// grounded on original_source/src/promise.rs's
// exception-hook registration intent, adapted here to simply expose
// the outstanding-future count internal/binding.Queue already tracks
// rather than duplicating a second bookkeeping structure.
package promise

import (
	"github.com/dunerun/dune/internal/binding"
	"github.com/dunerun/dune/internal/bindings"
)

// Install registers the promise binding's peek contract.
func Install(reg *bindings.Registry, q *binding.Queue) error {
	pending := func() int { return q.OutstandingCount() }
	return reg.Func("promise", "pendingCount", "__promisePendingCount", pending)
}
