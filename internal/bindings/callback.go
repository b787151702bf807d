package bindings

import (
	"encoding/json"
	"fmt"
)

// coreJS is the callback runtime every binding package's JS polyfill
// builds on: a numeric registry mapping an id to a captured JS
// function, used in place of passing live function values across the
// Go/JS boundary (RegisterFunc's reflection bridge only decodes
// scalar argument types — see internal/v8engine/runtime.go). A
// binding captures a callback JS-side with __registerCallback, passes
// the id to a RegisterFunc'd Go entry point, and Go fires it later by
// evaluating a small __invokeCallback(...) script — exactly the same
// "register a Go function, wrap it in a small JS polyfill" idiom
// console.go uses, generalized so the polyfill can call back in too.
const coreJS = `
globalThis.__cbRegistry = globalThis.__cbRegistry || {};
globalThis.__cbSeq = globalThis.__cbSeq || 0;
globalThis.__registerCallback = globalThis.__registerCallback || function(fn) {
	var id = ++globalThis.__cbSeq;
	globalThis.__cbRegistry[id] = fn;
	return id;
};
globalThis.__invokeCallback = globalThis.__invokeCallback || function(id, keep, err, data) {
	var fn = globalThis.__cbRegistry[id];
	if (!keep) delete globalThis.__cbRegistry[id];
	if (!fn) return;
	try {
		fn(err, data);
	} catch (e) {
		if (globalThis.__reportUncaught) globalThis.__reportUncaught(String((e && e.stack) || e));
	}
};
globalThis.__asPromise = globalThis.__asPromise || function(start) {
	return new Promise(function(resolve, reject) {
		var id = __registerCallback(function(err, data) {
			if (err) reject(err); else resolve(data);
		});
		start(id);
	});
};
`

// InvokeCallback fires the JS callback captured under id: keep
// preserves the registry entry for a repeating subscription (a timer
// interval, a signal handler, a streaming TCP read); err and data are
// JSON-marshaled into the JS call so the callback sees (Error|null,
// data) exactly like a Node-style callback.
func (r *Registry) InvokeCallback(id int, keep bool, err error, data any) error {
	errLit := "null"
	if err != nil {
		b, marshalErr := json.Marshal(err.Error())
		if marshalErr != nil {
			return fmt.Errorf("marshaling callback error: %w", marshalErr)
		}
		errLit = "new Error(" + string(b) + ")"
	}
	dataLit := "undefined"
	if data != nil {
		b, marshalErr := json.Marshal(data)
		if marshalErr != nil {
			return fmt.Errorf("marshaling callback data: %w", marshalErr)
		}
		dataLit = string(b)
	}
	script := fmt.Sprintf("globalThis.__invokeCallback(%d, %t, %s, %s);", id, keep, errLit, dataLit)
	return r.eng.Eval(script, "dune:callback-fire")
}
