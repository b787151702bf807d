// Package stdio implements the stdio binding contract (spec §6): the
// minimal Go-side surface console's JS polyfill needs, grounded
// directly on the teacher's console.go ("register a Go function, wrap
// it in a small JS polyfill" idiom, the Go side never touching
// formatting).
package stdio

import (
	"fmt"
	"os"

	"github.com/dunerun/dune/internal/bindings"
)

// Install registers the stdio binding and the console global it backs.
func Install(reg *bindings.Registry) error {
	write := func(fd string, text string) {
		if fd == "stderr" {
			fmt.Fprint(os.Stderr, text)
			return
		}
		fmt.Fprint(os.Stdout, text)
	}
	if err := reg.Func("stdio", "write", "__stdioWrite", write); err != nil {
		return err
	}
	reg.Raw(consoleJS)
	return nil
}

const consoleJS = `
(function() {
	var levels = { log: 'stdout', info: 'stdout', debug: 'stdout', warn: 'stderr', error: 'stderr' };
	var con = {};
	Object.keys(levels).forEach(function(level) {
		con[level] = function() {
			var parts = [];
			for (var i = 0; i < arguments.length; i++) {
				var arg = arguments[i];
				if (typeof arg === 'object' && arg !== null) {
					try { parts.push(JSON.stringify(arg)); } catch (e) { parts.push(String(arg)); }
				} else {
					parts.push(String(arg));
				}
			}
			__stdioWrite(levels[level], parts.join(' ') + '\n');
		};
	});
	globalThis.console = con;
	// spec.md's end-to-end scenarios call a bare log(...); alias it to
	// console.log rather than inventing a second formatting path.
	globalThis.log = con.log;
})();
`
