//go:build !v8

package quickjsengine

import (
	"fmt"
	"testing"

	"modernc.org/quickjs"
)

func TestRegisterFuncReturnsValue(t *testing.T) {
	r, err := New(0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	if err := r.RegisterFunc("double", func(n int) int { return n * 2 }); err != nil {
		t.Fatalf("RegisterFunc: %v", err)
	}

	v, err := r.vm.EvalValue("double(21)", quickjs.EvalGlobal)
	if err != nil {
		t.Fatalf("running script: %v", err)
	}
	defer v.Free()
	if got := fmt.Sprint(v); got != "42" {
		t.Fatalf("double(21) = %v, want 42", v)
	}
}

func TestRegisterFuncThrowsOnError(t *testing.T) {
	r, err := New(0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	boom := func() (int, error) { return 0, fmt.Errorf("boom") }
	if err := r.RegisterFunc("boom", boom); err != nil {
		t.Fatalf("RegisterFunc: %v", err)
	}

	script := `
try {
  boom();
  "no error";
} catch (e) {
  e.message;
}`
	v, err := r.vm.EvalValue(script, quickjs.EvalGlobal)
	if err != nil {
		t.Fatalf("running script: %v", err)
	}
	defer v.Free()
	if got := fmt.Sprint(v); got != "calling boom: boom" {
		t.Fatalf("caught message = %v", v)
	}
}

func TestCompileInstantiateEvaluateModuleGraph(t *testing.T) {
	r, err := New(0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	depSrc := `export const greeting = "hello";`
	entrySrc := `import { greeting } from "./dep.js";
globalThis.__result__ = greeting + " world";`

	depHandle, err := r.CompileModule("file:///dep.js", depSrc)
	if err != nil {
		t.Fatalf("compiling dep: %v", err)
	}
	entryHandle, err := r.CompileModule("file:///entry.js", entrySrc)
	if err != nil {
		t.Fatalf("compiling entry: %v", err)
	}

	if err := r.InstantiateModule(depHandle, func(string) (any, error) {
		return nil, fmt.Errorf("dep.js has no imports")
	}); err != nil {
		t.Fatalf("instantiating dep: %v", err)
	}
	if err := r.InstantiateModule(entryHandle, func(raw string) (any, error) {
		if raw == "./dep.js" {
			return depHandle, nil
		}
		return nil, fmt.Errorf("unexpected import %q", raw)
	}); err != nil {
		t.Fatalf("instantiating entry: %v", err)
	}

	if err := r.EvaluateModule(entryHandle); err != nil {
		t.Fatalf("evaluating entry: %v", err)
	}

	v, err := r.vm.EvalValue("globalThis.__result__", quickjs.EvalGlobal)
	if err != nil {
		t.Fatalf("reading result: %v", err)
	}
	defer v.Free()
	if got := fmt.Sprint(v); got != "hello world" {
		t.Fatalf("__result__ = %v, want %q", v, "hello world")
	}
}
