// Package modgraph implements the module graph and its host
// callbacks: eager recursive fetch of an entry module's import
// closure, the specifier→ModuleRecord map, and the reverse-lookup
// glue that answers an engine's synchronous resolve callback. Dynamic
// import() is not serviced: this package offers no dynamic-import
// callback.
//
// This is the one canonical resolver in the runtime: the resolve
// callbacks below consult the same Graph, never a second, freshly
// constructed loader.
//
// Grounded end to end on original_source/src/modules.rs's
// fetch_module_tree/module_resolve_cb shape.
package modgraph

import (
	"fmt"
	"regexp"
	"sync"

	"github.com/dunerun/dune/internal/loader"
	"github.com/dunerun/dune/internal/resolve"
	"github.com/dunerun/dune/internal/specifier"
)

// Status is a ModuleRecord's position in its compile/instantiate/
// evaluate lifecycle.
type Status int

const (
	StatusFetched Status = iota
	StatusInstantiated
	StatusEvaluated
	StatusErrored
)

// ModuleRecord is one entry in the graph.
type ModuleRecord struct {
	Specifier  specifier.Specifier
	Source     string // text as Load returned it (already wrapped/transpiled); the pre-transpile text is not kept
	Compiled   string // after Load's JSON/WASM wrap + TS/JSX transpile
	Imports    []string
	Handle     any // engine-specific compiled module handle, set by Instantiate
	Status     Status
	Err        error
}

// Engine is the minimal surface a JS engine backend must implement
// for the graph to drive compilation and instantiation. Both
// internal/v8engine and internal/quickjsengine satisfy it.
type Engine interface {
	CompileModule(spec string, source string) (handle any, err error)
	// RegisterResolver records resolveImport as handle's resolver
	// without instantiating anything. Graph.Instantiate calls this for
	// every record before calling InstantiateModule on any of them, so
	// an engine whose native instantiate call walks a module's whole
	// transitive import subgraph in one pass (v8go) always finds a
	// registered resolver for a referrer it reaches recursively, not
	// just the one InstantiateModule was called on directly.
	RegisterResolver(handle any, resolveImport func(raw string) (any, error))
	InstantiateModule(handle any, resolveImport func(raw string) (any, error)) error
	EvaluateModule(handle any) error
}

// importPattern matches static import/export-from specifiers in
// already-transpiled ES module source. A full parse is the engine's
// job (CompileModule enumerates the real import requests via V8's
// module API); this pre-scan only drives the eager-fetch phase so
// every reachable module is on disk and loaded before instantiation.
var importPattern = regexp.MustCompile(`(?:\bimport\s(?:[^'"]*?\sfrom\s)?|\bexport\s[^'"]*?\sfrom\s)['"]([^'"]+)['"]`)

func extractImports(source string) []string {
	matches := importPattern.FindAllStringSubmatch(source, -1)
	seen := make(map[string]bool, len(matches))
	var out []string
	for _, m := range matches {
		raw := m[1]
		if !seen[raw] {
			seen[raw] = true
			out = append(out, raw)
		}
	}
	return out
}

// Graph holds every module reachable from an entry specifier.
type Graph struct {
	mu       sync.Mutex
	resolver *resolve.Resolver
	loader   *loader.Loader
	records  map[specifier.Specifier]*ModuleRecord
}

// New creates an empty Graph backed by r and l.
func New(r *resolve.Resolver, l *loader.Loader) *Graph {
	return &Graph{
		resolver: r,
		loader:   l,
		records:  make(map[specifier.Specifier]*ModuleRecord),
	}
}

// Get returns the record for spec, if fetched.
func (g *Graph) Get(spec specifier.Specifier) (*ModuleRecord, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.records[spec]
	return r, ok
}

// Resolve is the canonical resolver: the same function both the
// eager-fetch walk and the engine's host callbacks call.
func (g *Graph) Resolve(referrer specifier.Specifier, raw string) (specifier.Specifier, error) {
	return g.resolver.Resolve(referrer, raw)
}

// Fetch eagerly resolves and loads entry and its transitive import
// closure. Presence in the graph stops recursion, so import cycles
// terminate; compile order among newly discovered modules is not
// guaranteed, so Fetch processes them breadth-first.
func (g *Graph) Fetch(entry specifier.Specifier) error {
	queue := []specifier.Specifier{entry}

	for len(queue) > 0 {
		spec := queue[0]
		queue = queue[1:]

		g.mu.Lock()
		_, already := g.records[spec]
		g.mu.Unlock()
		if already {
			continue
		}

		source, err := g.loader.Load(spec)
		if err != nil {
			rec := &ModuleRecord{Specifier: spec, Status: StatusErrored, Err: err}
			g.mu.Lock()
			g.records[spec] = rec
			g.mu.Unlock()
			return fmt.Errorf("fetching %q: %w", spec, err)
		}

		imports := extractImports(source)
		rec := &ModuleRecord{
			Specifier: spec,
			Source:    source,
			Compiled:  source,
			Imports:   imports,
			Status:    StatusFetched,
		}
		g.mu.Lock()
		g.records[spec] = rec
		g.mu.Unlock()

		for _, raw := range imports {
			resolved, err := g.resolver.Resolve(spec, raw)
			if err != nil {
				return fmt.Errorf("resolving import %q from %q: %w", raw, spec, err)
			}
			g.mu.Lock()
			_, seen := g.records[resolved]
			g.mu.Unlock()
			if !seen {
				queue = append(queue, resolved)
			}
		}
	}

	return nil
}

// Instantiate compiles every fetched-but-not-yet-instantiated record
// through engine, wiring each module's resolve callback back to the
// graph so import requests are satisfied by reverse lookup rather
// than a fresh resolve pass.
//
// Compile, resolver registration, and instantiation run as three
// separate passes over the whole batch, in that order, rather than
// interleaved per module: v8go's Module.InstantiateModule walks a
// module's entire unresolved dependency subgraph transitively within
// one native call, so for an A -> B -> C import chain, the callback
// needs B's resolver available while still inside A's instantiate
// call. Registering every resolver up front guarantees that.
func (g *Graph) Instantiate(engine Engine) error {
	g.mu.Lock()
	specs := make([]specifier.Specifier, 0, len(g.records))
	for s := range g.records {
		specs = append(specs, s)
	}
	g.mu.Unlock()

	pending := make([]specifier.Specifier, 0, len(specs))
	for _, spec := range specs {
		g.mu.Lock()
		rec := g.records[spec]
		g.mu.Unlock()
		if rec.Status != StatusFetched {
			continue
		}

		handle, err := engine.CompileModule(string(spec), rec.Compiled)
		if err != nil {
			rec.Status = StatusErrored
			rec.Err = err
			return fmt.Errorf("compiling %q: %w", spec, err)
		}
		rec.Handle = handle
		pending = append(pending, spec)
	}

	resolvers := make(map[specifier.Specifier]func(raw string) (any, error), len(pending))
	for _, spec := range pending {
		spec := spec
		resolvers[spec] = func(raw string) (any, error) {
			resolved, err := g.Resolve(spec, raw)
			if err != nil {
				// Missing entries during instantiate are a programmer
				// error: the module would have been caught during
				// eager fetch. Return nil so the engine raises
				// ModuleInstantiateError on its side.
				return nil, err
			}
			dep, ok := g.Get(resolved)
			if !ok {
				return nil, &ModuleInstantiateError{Specifier: string(resolved), Referrer: string(spec)}
			}
			return dep.Handle, nil
		}
	}

	for _, spec := range pending {
		g.mu.Lock()
		rec := g.records[spec]
		g.mu.Unlock()
		engine.RegisterResolver(rec.Handle, resolvers[spec])
	}

	for _, spec := range pending {
		g.mu.Lock()
		rec := g.records[spec]
		g.mu.Unlock()
		if err := engine.InstantiateModule(rec.Handle, resolvers[spec]); err != nil {
			rec.Status = StatusErrored
			rec.Err = err
			return fmt.Errorf("instantiating %q: %w", spec, err)
		}
		rec.Status = StatusInstantiated
	}
	return nil
}

// Evaluate runs entry's compiled module through engine.
func (g *Graph) Evaluate(engine Engine, entry specifier.Specifier) error {
	rec, ok := g.Get(entry)
	if !ok {
		return fmt.Errorf("evaluating %q: not present in module graph", entry)
	}
	if err := engine.EvaluateModule(rec.Handle); err != nil {
		g.mu.Lock()
		rec.Status = StatusErrored
		rec.Err = err
		g.mu.Unlock()
		return err
	}
	g.mu.Lock()
	rec.Status = StatusEvaluated
	g.mu.Unlock()
	return nil
}

// ModuleInstantiateError reports that a referrer's import request
// resolved to a specifier absent from the graph during instantiate —
// a programmer error, since eager fetch should have caught it first.
type ModuleInstantiateError struct {
	Specifier string
	Referrer  string
}

func (e *ModuleInstantiateError) Error() string {
	return fmt.Sprintf("module instantiate error: %q (imported from %q) not found in module graph", e.Specifier, e.Referrer)
}
