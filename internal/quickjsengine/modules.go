//go:build !v8

package quickjsengine

import (
	"fmt"
	"regexp"

	esbuild "github.com/evanw/esbuild/pkg/api"
	"modernc.org/quickjs"
)

// requirePattern finds literal require("specifier") calls in the
// CommonJS code esbuild emits from an ES module. Real CommonJS allows
// a computed require() target, but ES import/export statements always
// lower to a literal string argument, so this is exhaustive for code
// that started life as ESM.
var requirePattern = regexp.MustCompile(`require\((["'])([^"']+)["']\)`)

// moduleHandle is the Engine handle internal/modgraph stores per
// record: the module's specifier, its CommonJS translation, and (once
// InstantiateModule runs) the resolved handle for each of its require()
// targets, keyed by the literal specifier text esbuild preserved.
type moduleHandle struct {
	spec      string
	cjs       string
	slot      string
	imports   map[string]*moduleHandle
	evaluated bool
}

// CompileModule lowers source from ES module syntax to CommonJS with
// esbuild, satisfying internal/modgraph.Engine. Resolution of each
// require() target is deferred to InstantiateModule, since esbuild's
// per-file Transform (as opposed to its multi-file Build) never
// touches import specifiers beyond copying them into require() calls.
func (r *Runtime) CompileModule(spec, source string) (any, error) {
	result := esbuild.Transform(source, esbuild.TransformOptions{
		Format: esbuild.FormatCommonJS,
		Target: esbuild.ESNext,
		Loader: esbuild.LoaderJS,
	})
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("transpiling module %q to commonjs: %s", spec, result.Errors[0].Text)
	}

	r.slotSeq++
	h := &moduleHandle{
		spec:    spec,
		cjs:     string(result.Code),
		slot:    fmt.Sprintf("__mod_%d", r.slotSeq),
		imports: make(map[string]*moduleHandle),
	}
	r.modules[spec] = h
	return h, nil
}

// RegisterResolver is a no-op here: quickjsengine resolves every
// require() target synchronously inside InstantiateModule itself, all
// within the one call modgraph.Graph.Instantiate already makes per
// module, so there is no transitive registration-ordering problem for
// this backend to solve (unlike internal/v8engine, whose native
// instantiate call walks a module's whole dependency subgraph and
// needs every referrer's resolver registered up front).
func (r *Runtime) RegisterResolver(handle any, resolveImport func(raw string) (any, error)) {}

// InstantiateModule resolves every require() target discovered in
// handle's CommonJS translation through resolveImport, the same
// closure internal/modgraph.Graph.Instantiate built around
// Graph.Resolve/Graph.Get for internal/v8engine.
func (r *Runtime) InstantiateModule(handle any, resolveImport func(raw string) (any, error)) error {
	h, ok := handle.(*moduleHandle)
	if !ok {
		return fmt.Errorf("InstantiateModule: handle is not a quickjsengine module")
	}

	for _, m := range requirePattern.FindAllStringSubmatch(h.cjs, -1) {
		raw := m[2]
		if _, seen := h.imports[raw]; seen {
			continue
		}
		resolved, err := resolveImport(raw)
		if err != nil {
			return fmt.Errorf("resolving %q from %q: %w", raw, h.spec, err)
		}
		target, ok := resolved.(*moduleHandle)
		if !ok {
			return fmt.Errorf("resolving %q from %q: not a quickjsengine module handle", raw, h.spec)
		}
		h.imports[raw] = target
	}
	return nil
}

// EvaluateModule runs handle's module body, after first evaluating
// every module it requires (depth-first, each module evaluated at
// most once). Each module's exports object lives at a unique
// globalThis slot; require() calls are rewritten to read directly from
// that slot rather than calling a JS-level require function, since the
// full dependency graph is already known from InstantiateModule.
func (r *Runtime) EvaluateModule(handle any) error {
	h, ok := handle.(*moduleHandle)
	if !ok {
		return fmt.Errorf("EvaluateModule: handle is not a quickjsengine module")
	}
	return r.evaluate(h)
}

func (r *Runtime) evaluate(h *moduleHandle) error {
	if h.evaluated {
		return nil
	}
	h.evaluated = true

	patched := h.cjs
	for raw, dep := range h.imports {
		if err := r.evaluate(dep); err != nil {
			return err
		}
		literal := requirePattern.ReplaceAllStringFunc(patched, func(call string) string {
			m := requirePattern.FindStringSubmatch(call)
			if m[2] != raw {
				return call
			}
			return fmt.Sprintf("globalThis[%q]", dep.slot)
		})
		patched = literal
	}

	wrapped := fmt.Sprintf(`(function() {
  var module = { exports: {} };
  var exports = module.exports;
  (function(module, exports) {
%s
  })(module, exports);
  globalThis[%q] = module.exports;
})();`, patched, h.slot)

	v, err := r.vm.EvalValue(wrapped, quickjs.EvalGlobal)
	if err != nil {
		return fmt.Errorf("evaluating module %q: %w", h.spec, err)
	}
	v.Free()
	return nil
}
