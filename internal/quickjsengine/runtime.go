//go:build !v8

// Package quickjsengine is the default engine backend for builds
// without a cgo/V8 toolchain, using modernc.org/quickjs. QuickJS has
// no host callback for ES-module resolution, so this backend
// translates each module to CommonJS with github.com/evanw/esbuild and
// evaluates it in a single VM with each require() call rewritten to
// read the required module's exports from a globalThis slot, rather
// than driving quickjs's bytecode reader directly.
package quickjsengine

import (
	"fmt"
	"reflect"
	"unsafe"

	"modernc.org/libc"
	lib "modernc.org/libquickjs"
	"modernc.org/quickjs"
)

// Runtime is a single QuickJS VM, the concrete engine internal/runtimecore
// drives when built without the v8 tag.
type Runtime struct {
	vm *quickjs.VM

	modules map[string]*moduleHandle // specifier -> compiled module
	slotSeq int
}

// New creates a fresh QuickJS VM. heapLimitMB is accepted for interface
// symmetry with internal/v8engine but is currently unenforced: the
// quickjs binding exposes no per-VM memory limit knob.
func New(heapLimitMB int) (*Runtime, error) {
	vm, err := quickjs.NewVM()
	if err != nil {
		return nil, fmt.Errorf("creating quickjs VM: %w", err)
	}
	return &Runtime{vm: vm, modules: make(map[string]*moduleHandle)}, nil
}

// Close releases the VM. Must be the last call made on r.
func (r *Runtime) Close() {
	r.vm.Close()
}

// RunMicrotasks pumps the QuickJS job queue until it drains. The Go
// wrapper never calls JS_ExecutePendingJob itself, so without this
// Promise .then() callbacks would never fire; reaching the underlying
// runtime and TLS pointers needs unsafe reflection since the wrapper
// keeps both unexported.
func (r *Runtime) RunMicrotasks() {
	rt, tls, ok := extractRuntime(r.vm)
	if !ok {
		return
	}
	for lib.XJS_ExecutePendingJob(tls, rt, 0) > 0 {
	}
}

func extractRuntime(vm *quickjs.VM) (cRuntime uintptr, tls *libc.TLS, ok bool) {
	vmVal := reflect.ValueOf(vm).Elem()

	rtField := vmVal.FieldByName("runtime")
	if !rtField.IsValid() || rtField.IsNil() {
		return 0, nil, false
	}
	rtPtr := unsafe.Pointer(rtField.Pointer())
	rtVal := reflect.NewAt(rtField.Type().Elem(), rtPtr).Elem()

	cRuntimeField := rtVal.FieldByName("cRuntime")
	if !cRuntimeField.IsValid() {
		return 0, nil, false
	}
	cRuntime = uintptr(cRuntimeField.Uint())

	tlsField := rtVal.FieldByName("tls")
	if !tlsField.IsValid() || tlsField.IsNil() {
		return 0, nil, false
	}
	tls = (*libc.TLS)(unsafe.Pointer(tlsField.Pointer()))

	return cRuntime, tls, true
}

// Eval runs source as a plain script under filename, used to install
// the small JS polyfills internal/bindings packages layer on top of
// their RegisterFunc'd globals.
func (r *Runtime) Eval(source, filename string) error {
	v, err := r.vm.EvalValue(source, quickjs.EvalGlobal)
	if err != nil {
		return fmt.Errorf("evaluating %q: %w", filename, err)
	}
	v.Free()
	return nil
}

// RegisterFunc exposes a Go function as a global JS function.
// modernc.org/quickjs returns multi-value Go results as a JS array, so
// func(args...) (T, error) shapes are wrapped so script code sees a
// plain return value and a thrown TypeError on error, matching
// internal/v8engine's RegisterFunc contract.
func (r *Runtime) RegisterFunc(name string, fn any) error {
	fnType := reflect.TypeOf(fn)
	if fnType == nil || fnType.Kind() != reflect.Func {
		return fmt.Errorf("RegisterFunc: expected function, got %T", fn)
	}

	returnsError := fnType.NumOut() == 2
	if fnType.NumOut() > 2 || (fnType.NumOut() == 2 && !fnType.Out(1).Implements(reflect.TypeOf((*error)(nil)).Elem())) {
		return fmt.Errorf("RegisterFunc: unsupported return shape for %s", name)
	}

	if !returnsError {
		if err := r.vm.RegisterFunc(name, fn, false); err != nil {
			return fmt.Errorf("registering %s: %w", name, err)
		}
		return nil
	}

	rawName := "__raw_" + name
	if err := r.vm.RegisterFunc(rawName, fn, false); err != nil {
		return fmt.Errorf("registering %s: %w", name, err)
	}

	wrap := fmt.Sprintf(`(function() {
		var raw = globalThis[%q];
		globalThis[%q] = function() {
			var r = raw.apply(this, arguments);
			if (Array.isArray(r)) {
				if (r[1] !== null && r[1] !== undefined) throw new TypeError("calling %s: " + r[1]);
				return r[0];
			}
			return r;
		};
		delete globalThis[%q];
	})()`, rawName, name, name, rawName)
	_, err := r.vm.EvalValue(wrap, quickjs.EvalGlobal)
	return err
}

// SetGlobal assigns a scalar or JSON-marshalable value to a global binding.
func (r *Runtime) SetGlobal(name string, value any) error {
	atom, err := r.vm.NewAtom(name)
	if err != nil {
		return fmt.Errorf("creating atom %q: %w", name, err)
	}
	glob := r.vm.GlobalObject()
	defer glob.Free()
	return glob.SetProperty(atom, value)
}
