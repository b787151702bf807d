//go:build v8

package v8engine

import (
	"fmt"
	"sync"

	v8 "github.com/tommie/v8go"
)

// moduleHandle is the Engine handle internal/modgraph stores per
// record: the compiled v8go Module plus the specifier it was compiled
// under, since v8go's resolve callback hands back only a Context and
// a raw specifier string, never the originating handle.
type moduleHandle struct {
	mod  *v8.Module
	name string
}

// resolveRegistry lets the host resolve callback reach back into the
// closure modgraph.Instantiate built for this particular module,
// keyed by the referrer's specifier. v8go's ResolveModuleCallback
// carries no user-data slot, so the lookup has to live at package
// scope rather than on Runtime.
var resolveRegistry = struct {
	mu sync.Mutex
	m  map[string]func(raw string) (any, error)
}{m: make(map[string]func(raw string) (any, error))}

// CompileModule compiles source as an ES module under the given
// specifier, satisfying internal/modgraph.Engine.
func (r *Runtime) CompileModule(spec, source string) (any, error) {
	origin := v8.NewScriptOrigin(spec)
	mod, err := r.iso.CompileModule(source, origin)
	if err != nil {
		return nil, fmt.Errorf("compiling module %q: %w", spec, err)
	}

	referrerModules.mu.Lock()
	referrerModules.m[mod.IdentityHash()] = spec
	referrerModules.mu.Unlock()

	return &moduleHandle{mod: mod, name: spec}, nil
}

// RegisterResolver records resolveImport as handle's resolver, ahead
// of any InstantiateModule call on any module in the batch. v8go's
// Module.InstantiateModule recursively instantiates a module's whole
// unresolved dependency subgraph within one native call, so by the
// time that call reaches a transitively-imported referrer, this
// registration must already be in place — satisfying
// internal/modgraph.Engine's ordering contract.
func (r *Runtime) RegisterResolver(handle any, resolveImport func(raw string) (any, error)) {
	h, ok := handle.(*moduleHandle)
	if !ok {
		return
	}
	resolveRegistry.mu.Lock()
	resolveRegistry.m[h.name] = resolveImport
	resolveRegistry.mu.Unlock()
}

// InstantiateModule instantiates handle's module. Every module in the
// batch has already had its resolver registered via RegisterResolver,
// so resolveModuleCallback can resolve any referrer v8go's native
// instantiate call reaches, direct or transitive.
func (r *Runtime) InstantiateModule(handle any, resolveImport func(raw string) (any, error)) error {
	h, ok := handle.(*moduleHandle)
	if !ok {
		return fmt.Errorf("InstantiateModule: handle is not a v8engine module")
	}
	r.RegisterResolver(handle, resolveImport)
	return h.mod.InstantiateModule(r.ctx, resolveModuleCallback)
}

// EvaluateModule runs handle's module body, triggering top-level
// side effects and settling its module namespace.
func (r *Runtime) EvaluateModule(handle any) error {
	h, ok := handle.(*moduleHandle)
	if !ok {
		return fmt.Errorf("EvaluateModule: handle is not a v8engine module")
	}
	_, err := h.mod.Evaluate(r.ctx)
	if err != nil {
		return fmt.Errorf("evaluating module %q: %w", h.name, err)
	}
	return nil
}

// resolveModuleCallback is the single v8go-level ResolveModuleCallback
// used for every InstantiateModule call. It looks up the resolver
// registered for the referrer module and asks it to resolve the raw
// specifier, then unwraps the resulting handle back into a *v8.Module.
func resolveModuleCallback(info *v8.ResolveModuleCallbackInfo) *v8.Module {
	referrer := info.Referrer()
	var name string
	if referrer != nil {
		// v8go does not expose the referrer's own specifier directly;
		// callers register under the specifier they compiled with, so
		// the registry is consulted by referrer identity hash instead.
		name = referrerName(referrer)
	}

	resolveRegistry.mu.Lock()
	resolveImport := resolveRegistry.m[name]
	resolveRegistry.mu.Unlock()
	if resolveImport == nil {
		return nil
	}

	resolved, err := resolveImport(info.Specifier())
	if err != nil {
		return nil
	}
	h, ok := resolved.(*moduleHandle)
	if !ok {
		return nil
	}
	return h.mod
}

// referrerModules tracks the specifier each live *v8.Module was
// compiled under, keyed by v8go's identity hash, so
// resolveModuleCallback can recover it from the referrer Module alone.
var referrerModules = struct {
	mu sync.Mutex
	m  map[int]string
}{m: make(map[int]string)}

func referrerName(mod *v8.Module) string {
	referrerModules.mu.Lock()
	defer referrerModules.mu.Unlock()
	return referrerModules.m[mod.IdentityHash()]
}
