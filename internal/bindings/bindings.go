// Package bindings holds the minimal native-module contracts named in
// spec §6: the Go-side surface the Binding Bridge exposes for stdio,
// fs, dns, net, timers, signals, perf_hooks, promise, http_parser, and
// sqlite. spec.md §1 scopes these modules out beyond their contract,
// so each sub-package wires just enough of a binding to exercise the
// engine-agnostic machinery in internal/binding and internal/eventloop
// — not a complete Web-API polyfill.
//
// Every binding follows the same two-step install: register a raw Go
// function as a flat global via Engine.RegisterFunc (the "register a
// Go function, wrap it in a small JS polyfill" idiom console.go uses
// in the teacher), then contribute a bootstrap snippet that wires the
// flat global into process.binding(name)'s table. Registry collects
// those snippets so cmd/dune can install every binding (via Finish)
// before the entry module evaluates.
package bindings

import (
	"fmt"
	"strings"
)

// Engine is the subset of an engine backend a binding install needs:
// exposing a Go function as a global, and running bootstrap script.
type Engine interface {
	RegisterFunc(name string, fn any) error
	Eval(source, filename string) error
}

// Registry accumulates process.binding(name) wiring across every
// installed binding package.
type Registry struct {
	eng       Engine
	bootstrap []string
	seen      map[string]bool
}

// NewRegistry creates a Registry that installs against eng.
func NewRegistry(eng Engine) *Registry {
	return &Registry{eng: eng, seen: make(map[string]bool)}
}

// Namespace declares namespace as a process.binding() target, a no-op
// if already declared by an earlier binding package.
func (r *Registry) Namespace(namespace string) {
	if r.seen[namespace] {
		return
	}
	r.seen[namespace] = true
	r.bootstrap = append(r.bootstrap, fmt.Sprintf("globalThis.__bindingsRegistry[%q] = globalThis.__bindingsRegistry[%q] || {};", namespace, namespace))
}

// Func registers fn as a flat global named flatName and wires it onto
// namespace's table under the JS property jsName.
func (r *Registry) Func(namespace, jsName, flatName string, fn any) error {
	r.Namespace(namespace)
	if err := r.eng.RegisterFunc(flatName, fn); err != nil {
		return fmt.Errorf("registering %s.%s: %w", namespace, jsName, err)
	}
	r.bootstrap = append(r.bootstrap, fmt.Sprintf("globalThis.__bindingsRegistry[%q][%q] = %s;", namespace, jsName, flatName))
	return nil
}

// Value wires a pre-evaluated JS expression (typically a JSON array
// or object literal baked into the bootstrap source itself) onto
// namespace's table under jsName, for binding-time constants such as
// the list of recognized signal names.
func (r *Registry) Value(namespace, jsName, jsExpr string) {
	r.Namespace(namespace)
	r.bootstrap = append(r.bootstrap, fmt.Sprintf("globalThis.__bindingsRegistry[%q][%q] = %s;", namespace, jsName, jsExpr))
}

// Raw appends a verbatim JS snippet to the bootstrap, for polyfills
// that need more than a single table assignment (e.g. timers.go's
// setTimeout/clearTimeout wrapper around the flat globals).
func (r *Registry) Raw(snippet string) {
	r.bootstrap = append(r.bootstrap, snippet)
}

// UncaughtReporter receives the text of a JS exception thrown inside a
// callback fired by InvokeCallback — a setTimeout handler, a
// process.nextTick callback, a signal handler, a .then rejection
// handler — none of which have a synchronous caller left to propagate
// to. Satisfied by internal/runtimecore.Core, which surfaces it at the
// next tick's uncaught-exception check (spec §4.5 step 4).
type UncaughtReporter interface {
	ReportUncaught(message string)
}

// InstallUncaughtReporter wires reporter into __invokeCallback's
// try/catch (see coreJS's __reportUncaught call), so a throw inside
// any async callback reaches the Runtime Core instead of vanishing.
// Must be called before Finish.
func (r *Registry) InstallUncaughtReporter(reporter UncaughtReporter) error {
	report := func(message string) { reporter.ReportUncaught(message) }
	if err := r.eng.RegisterFunc("__reportUncaughtGo", report); err != nil {
		return fmt.Errorf("registering uncaught-exception reporter: %w", err)
	}
	r.bootstrap = append(r.bootstrap, `globalThis.__reportUncaught = function(message) { __reportUncaughtGo(String(message)); };`)
	return nil
}

// Finish evaluates every accumulated bootstrap snippet, installing
// process.binding(name) as a function returning each namespace's
// table. Must be called once, after every binding package's Install.
func (r *Registry) Finish() error {
	var b strings.Builder
	b.WriteString(coreJS)
	b.WriteString("globalThis.__bindingsRegistry = globalThis.__bindingsRegistry || {};\n")
	for _, s := range r.bootstrap {
		b.WriteString(s)
		b.WriteByte('\n')
	}
	b.WriteString("globalThis.process = globalThis.process || {};\n")
	b.WriteString("process.binding = function(name) { return globalThis.__bindingsRegistry[name] || {}; };\n")
	return r.eng.Eval(b.String(), "dune:bindings-bootstrap")
}
