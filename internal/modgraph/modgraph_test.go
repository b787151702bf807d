package modgraph

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dunerun/dune/internal/loader"
	"github.com/dunerun/dune/internal/resolve"
	"github.com/dunerun/dune/internal/specifier"
)

// fakeEngine records compile/instantiate/evaluate calls without
// touching any real JS engine, so these tests exercise only the
// graph's own bookkeeping.
type fakeEngine struct {
	compiled     []string
	instantiated []string
	evaluated    []string
}

func (f *fakeEngine) CompileModule(spec, source string) (any, error) {
	f.compiled = append(f.compiled, spec)
	return spec, nil
}

func (f *fakeEngine) RegisterResolver(handle any, resolveImport func(raw string) (any, error)) {}

func (f *fakeEngine) InstantiateModule(handle any, resolveImport func(raw string) (any, error)) error {
	f.instantiated = append(f.instantiated, handle.(string))
	return nil
}

func (f *fakeEngine) EvaluateModule(handle any) error {
	f.evaluated = append(f.evaluated, handle.(string))
	return nil
}

func writeFile(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFetchWalksImportClosure(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "main.js", `import { greet } from "./greet.js";
log(greet());
`)
	writeFile(t, dir, "greet.js", `export function greet() { return "hi"; }
`)

	r := resolve.New(nil)
	l, err := loader.New(t.TempDir(), false)
	if err != nil {
		t.Fatal(err)
	}
	g := New(r, l)

	entry, _ := specifier.FromFilePath(filepath.Join(dir, "main.js"))
	if err := g.Fetch(entry); err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	greetSpec, _ := specifier.FromFilePath(filepath.Join(dir, "greet.js"))
	if _, ok := g.Get(greetSpec); !ok {
		t.Fatal("expected greet.js to be present in the graph after eager fetch")
	}
	if _, ok := g.Get(entry); !ok {
		t.Fatal("expected entry module to be present in the graph")
	}
}

func TestFetchStopsOnCycle(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.js", `import "./b.js";
`)
	writeFile(t, dir, "b.js", `import "./a.js";
`)

	r := resolve.New(nil)
	l, err := loader.New(t.TempDir(), false)
	if err != nil {
		t.Fatal(err)
	}
	g := New(r, l)

	entry, _ := specifier.FromFilePath(filepath.Join(dir, "a.js"))

	done := make(chan error, 1)
	go func() { done <- g.Fetch(entry) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Fetch: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Fetch did not terminate on a module cycle")
	}
}

func TestInstantiateWiresResolveCallback(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "main.js", `import { greet } from "./greet.js";
`)
	writeFile(t, dir, "greet.js", `export function greet() { return "hi"; }
`)

	r := resolve.New(nil)
	l, err := loader.New(t.TempDir(), false)
	if err != nil {
		t.Fatal(err)
	}
	g := New(r, l)

	entry, _ := specifier.FromFilePath(filepath.Join(dir, "main.js"))
	if err := g.Fetch(entry); err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	eng := &fakeEngine{}
	if err := g.Instantiate(eng); err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	if len(eng.compiled) != 2 {
		t.Fatalf("expected 2 modules compiled, got %d", len(eng.compiled))
	}
	if len(eng.instantiated) != 2 {
		t.Fatalf("expected 2 modules instantiated, got %d", len(eng.instantiated))
	}
}

// transitiveEngine mimics v8go's Module.InstantiateModule: instantiating
// one handle recursively walks every not-yet-instantiated module it
// transitively imports, within that single call, exactly like v8go
// instantiating a whole unresolved dependency subgraph at once. A
// module already instantiated (by an earlier call reaching it first)
// is a no-op, matching v8's own idempotency. This only succeeds if
// every handle's resolver was registered before the first
// InstantiateModule call — regardless of which module Graph.Instantiate
// happens to reach first, since its pending-spec order comes from a
// map and is unspecified.
type transitiveEngine struct {
	resolvers    map[string]func(raw string) (any, error)
	instantiated map[string]bool
	order        []string
}

func (f *transitiveEngine) CompileModule(spec, source string) (any, error) {
	return spec, nil
}

func (f *transitiveEngine) RegisterResolver(handle any, resolveImport func(raw string) (any, error)) {
	if f.resolvers == nil {
		f.resolvers = make(map[string]func(raw string) (any, error))
	}
	f.resolvers[handle.(string)] = resolveImport
}

func (f *transitiveEngine) InstantiateModule(handle any, resolveImport func(raw string) (any, error)) error {
	return f.walk(handle.(string), resolveImport)
}

// walk instantiates name and recursively follows every import
// reachable from it, exactly as v8go's native instantiate call would,
// failing if any referrer along the chain has no registered resolver
// yet, and no-oping on a module already instantiated.
func (f *transitiveEngine) walk(name string, resolveImport func(raw string) (any, error)) error {
	if f.instantiated == nil {
		f.instantiated = make(map[string]bool)
	}
	if f.instantiated[name] {
		return nil
	}
	f.instantiated[name] = true
	f.order = append(f.order, name)

	for _, raw := range []string{"./b.js", "./c.js"} {
		dep, err := resolveImport(raw)
		if err != nil {
			continue
		}
		depName := dep.(string)
		depResolve, ok := f.resolvers[depName]
		if !ok {
			return fmt.Errorf("no resolver registered yet for transitively-reached module %q", depName)
		}
		if err := f.walk(depName, depResolve); err != nil {
			return err
		}
	}
	return nil
}

func (f *transitiveEngine) EvaluateModule(handle any) error { return nil }

func TestInstantiateRegistersAllResolversBeforeAnyInstantiateCall(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.js", `import "./b.js";
`)
	writeFile(t, dir, "b.js", `import "./c.js";
`)
	writeFile(t, dir, "c.js", `export const x = 1;
`)

	r := resolve.New(nil)
	l, err := loader.New(t.TempDir(), false)
	if err != nil {
		t.Fatal(err)
	}
	g := New(r, l)

	entry, _ := specifier.FromFilePath(filepath.Join(dir, "a.js"))
	if err := g.Fetch(entry); err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	eng := &transitiveEngine{}
	if err := g.Instantiate(eng); err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	if len(eng.order) != 3 {
		t.Fatalf("expected a, b, and c all reached transitively, got %v", eng.order)
	}
}

func TestEvaluateRunsEntry(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "main.js", `log(1);
`)

	r := resolve.New(nil)
	l, err := loader.New(t.TempDir(), false)
	if err != nil {
		t.Fatal(err)
	}
	g := New(r, l)

	entry, _ := specifier.FromFilePath(filepath.Join(dir, "main.js"))
	if err := g.Fetch(entry); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	eng := &fakeEngine{}
	if err := g.Instantiate(eng); err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	if err := g.Evaluate(eng, entry); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	rec, _ := g.Get(entry)
	if rec.Status != StatusEvaluated {
		t.Fatalf("expected StatusEvaluated, got %v", rec.Status)
	}
}
