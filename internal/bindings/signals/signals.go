// Package signals implements the signals binding contract (spec §6)
// and the supplemented process.on('SIGINT', ...) style graceful
// interrupt feature SPEC_FULL.md §6.4 folds back from
// original_source/src/signals.rs, adapted onto internal/eventloop's
// SignalStart/SignalStop (keyed by os.Signal, not a freshly minted
// id — cancellation below recovers the signal from the same name
// table start used).
package signals

import (
	"fmt"
	"syscall"

	"github.com/dunerun/dune/internal/binding"
	"github.com/dunerun/dune/internal/bindings"
	"github.com/dunerun/dune/internal/eventloop"
)

// names lists every signal original_source/src/signals.rs's non-Windows
// SIGNALS table names, available to script code as process.binding('signals').names.
var names = []string{
	"SIGABRT", "SIGALRM", "SIGBUS", "SIGCHLD", "SIGCONT", "SIGFPE", "SIGHUP",
	"SIGILL", "SIGINT", "SIGIO", "SIGKILL", "SIGPIPE", "SIGPROF", "SIGQUIT",
	"SIGSEGV", "SIGSTOP", "SIGSYS", "SIGTERM", "SIGTRAP", "SIGTSTP", "SIGTTIN",
	"SIGTTOU", "SIGURG", "SIGUSR1", "SIGUSR2", "SIGVTALRM", "SIGWINCH",
	"SIGXCPU", "SIGXFSZ",
}

var byName = map[string]syscall.Signal{
	"SIGABRT": syscall.SIGABRT, "SIGALRM": syscall.SIGALRM, "SIGBUS": syscall.SIGBUS,
	"SIGCHLD": syscall.SIGCHLD, "SIGCONT": syscall.SIGCONT, "SIGFPE": syscall.SIGFPE,
	"SIGHUP": syscall.SIGHUP, "SIGILL": syscall.SIGILL, "SIGINT": syscall.SIGINT,
	"SIGIO": syscall.SIGIO, "SIGKILL": syscall.SIGKILL, "SIGPIPE": syscall.SIGPIPE,
	"SIGPROF": syscall.SIGPROF, "SIGQUIT": syscall.SIGQUIT, "SIGSEGV": syscall.SIGSEGV,
	"SIGSTOP": syscall.SIGSTOP, "SIGSYS": syscall.SIGSYS, "SIGTERM": syscall.SIGTERM,
	"SIGTRAP": syscall.SIGTRAP, "SIGTSTP": syscall.SIGTSTP, "SIGTTIN": syscall.SIGTTIN,
	"SIGTTOU": syscall.SIGTTOU, "SIGURG": syscall.SIGURG, "SIGUSR1": syscall.SIGUSR1,
	"SIGUSR2": syscall.SIGUSR2, "SIGVTALRM": syscall.SIGVTALRM, "SIGWINCH": syscall.SIGWINCH,
	"SIGXCPU": syscall.SIGXCPU, "SIGXFSZ": syscall.SIGXFSZ,
}

// Install registers the signals binding and process.on/process.off.
func Install(reg *bindings.Registry, handle *eventloop.LoopHandle, q *binding.Queue) error {
	start := func(name string, cbID int) (int, error) {
		sig, ok := byName[name]
		if !ok {
			return 0, fmt.Errorf("invalid signal provided: %q", name)
		}
		handle.SignalStart(sig, func() {
			f := q.New(func(result any, err error) {
				_ = reg.InvokeCallback(cbID, true, nil, nil)
			})
			q.Complete(f, nil, nil)
		})
		return int(sig), nil
	}
	if err := reg.Func("signals", "start", "__signalStart", start); err != nil {
		return err
	}

	stop := func(id int) error {
		for _, sig := range byName {
			if int(sig) == id {
				handle.SignalStop(sig)
				return nil
			}
		}
		return fmt.Errorf("unknown signal id %d", id)
	}
	if err := reg.Func("signals", "stop", "__signalStop", stop); err != nil {
		return err
	}

	namesJSON := "["
	for i, n := range names {
		if i > 0 {
			namesJSON += ","
		}
		namesJSON += fmt.Sprintf("%q", n)
	}
	namesJSON += "]"
	reg.Value("signals", "names", namesJSON)
	reg.Raw(processOnJS)
	return nil
}

const processOnJS = `
(function() {
	globalThis.process = globalThis.process || {};
	globalThis.__signalIDs = globalThis.__signalIDs || {};
	process.on = function(name, fn) {
		var cbID = __registerCallback(fn);
		var id = __signalStart(name, cbID);
		globalThis.__signalIDs[name] = id;
		return process;
	};
	process.off = function(name) {
		var id = globalThis.__signalIDs[name];
		if (id !== undefined) {
			__signalStop(id);
			delete globalThis.__signalIDs[name];
		}
		return process;
	};
})();
`
