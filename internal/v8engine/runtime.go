//go:build v8

// Package v8engine is the primary engine backend, built on
// github.com/tommie/v8go. It owns the single
// isolate+context pair Runtime Core drives, compiles and instantiates
// ES modules via v8go's module API, and answers the engine's
// synchronous resolve callback by delegating to an
// internal/modgraph.Graph. No dynamic-import callback is registered,
// so dynamic import() is not serviced.
//
// The RegisterFunc-via-reflection bridge below generalizes a
// jsToGoArg/goToJSValue/goAnyToJSValue pattern from a
// pool-of-pre-warmed-workers model (one isolate per incoming request)
// to the single long-lived isolate a script-running CLI needs.
package v8engine

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"

	v8 "github.com/tommie/v8go"
)

// Runtime is a single V8 isolate and the one context it holds, the
// concrete Engine internal/runtimecore drives.
type Runtime struct {
	iso *v8.Isolate
	ctx *v8.Context
}

// New creates an isolate constrained to heapLimitMB of heap (0 means
// V8's default), with a fresh context.
func New(heapLimitMB int) *Runtime {
	var iso *v8.Isolate
	if heapLimitMB > 0 {
		heap := uint64(heapLimitMB) * 1024 * 1024
		iso = v8.NewIsolate(v8.WithResourceConstraints(heap/2, heap))
	} else {
		iso = v8.NewIsolate()
	}
	ctx := v8.NewContext(iso)
	return &Runtime{iso: iso, ctx: ctx}
}

// Close releases the context and isolate. Must be the last call made
// on r; no handle derived from r may outlive this.
func (r *Runtime) Close() {
	r.ctx.Close()
	r.iso.Dispose()
}

// Isolate exposes the underlying isolate for the module/inspector glue.
func (r *Runtime) Isolate() *v8.Isolate { return r.iso }

// Context exposes the underlying context for the module/inspector glue.
func (r *Runtime) Context() *v8.Context { return r.ctx }

// RunMicrotasks performs one microtask checkpoint.
func (r *Runtime) RunMicrotasks() {
	r.ctx.PerformMicrotaskCheckpoint()
}

// Eval runs source as a plain (non-module) script under filename,
// used to install the small JS polyfills internal/bindings packages
// layer on top of their RegisterFunc'd globals.
func (r *Runtime) Eval(source, filename string) error {
	_, err := r.ctx.RunScript(source, filename)
	if err != nil {
		return fmt.Errorf("evaluating %q: %w", filename, err)
	}
	return nil
}

// RegisterFunc exposes a Go function as a global JS function, via
// reflection over its signature. Supported shapes: func(args...),
// func(args...) T, and func(args...) (T, error) (error becomes a
// thrown TypeError).
func (r *Runtime) RegisterFunc(name string, fn any) error {
	fnVal := reflect.ValueOf(fn)
	fnType := fnVal.Type()
	if fnType.Kind() != reflect.Func {
		return fmt.Errorf("RegisterFunc: expected function, got %T", fn)
	}

	tmpl := v8.NewFunctionTemplate(r.iso, func(info *v8.FunctionCallbackInfo) *v8.Value {
		args := info.Args()
		if len(args) < fnType.NumIn() {
			msg := fmt.Sprintf("%s requires at least %d argument(s), got %d", name, fnType.NumIn(), len(args))
			jsMsg, _ := v8.NewValue(r.iso, msg)
			r.iso.ThrowException(jsMsg)
			return nil
		}

		goArgs := make([]reflect.Value, fnType.NumIn())
		for i := 0; i < fnType.NumIn(); i++ {
			goArgs[i] = jsToGoArg(args[i], fnType.In(i))
		}

		results := fnVal.Call(goArgs)
		switch fnType.NumOut() {
		case 0:
			return nil
		case 1:
			return goToJSValue(r.iso, info.Context(), results[0])
		case 2:
			errVal := results[1]
			if !errVal.IsNil() {
				msg := fmt.Sprintf("calling %s: %s", name, errVal.Interface().(error).Error())
				exc, err := info.Context().RunScript(fmt.Sprintf("new TypeError(%s)", strconv.Quote(msg)), "binding_error.js")
				if err != nil {
					exc, _ = v8.NewValue(r.iso, msg)
				}
				r.iso.ThrowException(exc)
				return nil
			}
			return goToJSValue(r.iso, info.Context(), results[0])
		default:
			return nil
		}
	})

	fnObj := tmpl.GetFunction(r.ctx)
	return r.ctx.Global().Set(name, fnObj)
}

// SetGlobal assigns value (a plain Go value, JSON-marshaled if not
// one of the directly-convertible scalar types) to a global binding.
func (r *Runtime) SetGlobal(name string, value any) error {
	jsVal, err := goAnyToJSValue(r.iso, r.ctx, value)
	if err != nil {
		return fmt.Errorf("converting value for %q: %w", name, err)
	}
	return r.ctx.Global().Set(name, jsVal)
}

func jsToGoArg(val *v8.Value, targetType reflect.Type) reflect.Value {
	switch targetType.Kind() {
	case reflect.String:
		return reflect.ValueOf(val.String())
	case reflect.Int:
		return reflect.ValueOf(int(val.Integer()))
	case reflect.Int64:
		return reflect.ValueOf(val.Integer())
	case reflect.Float64:
		return reflect.ValueOf(val.Number())
	case reflect.Bool:
		return reflect.ValueOf(val.Boolean())
	default:
		return reflect.Zero(targetType)
	}
}

func goToJSValue(iso *v8.Isolate, ctx *v8.Context, val reflect.Value) *v8.Value {
	if !val.IsValid() {
		return nil
	}
	switch val.Kind() {
	case reflect.String:
		v, _ := v8.NewValue(iso, val.String())
		return v
	case reflect.Int, reflect.Int64, reflect.Int32:
		v, _ := v8.NewValue(iso, int32(val.Int()))
		return v
	case reflect.Float64, reflect.Float32:
		v, _ := v8.NewValue(iso, val.Float())
		return v
	case reflect.Bool:
		v, _ := v8.NewValue(iso, val.Bool())
		return v
	default:
		// Slices, maps, and structs have no direct v8.NewValue
		// constructor; round-trip them through JSON the same way
		// SetGlobal does for non-scalar values.
		data, err := json.Marshal(val.Interface())
		if err != nil {
			return nil
		}
		script := fmt.Sprintf("JSON.parse(%s)", strconv.Quote(string(data)))
		v, err := ctx.RunScript(script, "binding_result.js")
		if err != nil {
			return nil
		}
		return v
	}
}

func goAnyToJSValue(iso *v8.Isolate, ctx *v8.Context, value any) (*v8.Value, error) {
	if value == nil {
		return v8.Undefined(iso), nil
	}
	switch v := value.(type) {
	case string:
		return v8.NewValue(iso, v)
	case int:
		return v8.NewValue(iso, int32(v))
	case int32:
		return v8.NewValue(iso, v)
	case int64:
		return v8.NewValue(iso, int32(v))
	case float64:
		return v8.NewValue(iso, v)
	case bool:
		return v8.NewValue(iso, v)
	case *v8.Value:
		return v, nil
	default:
		data, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("marshaling value: %w", err)
		}
		script := fmt.Sprintf("JSON.parse(%s)", strconv.Quote(string(data)))
		return ctx.RunScript(script, "set_global.js")
	}
}
