package fs

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dunerun/dune/internal/binding"
	"github.com/dunerun/dune/internal/bindings"
	"github.com/dunerun/dune/internal/eventloop"
)

type fakeEngine struct {
	funcs map[string]any
	evals []string
}

func newFakeEngine() *fakeEngine { return &fakeEngine{funcs: make(map[string]any)} }

func (e *fakeEngine) RegisterFunc(name string, fn any) error {
	e.funcs[name] = fn
	return nil
}

func (e *fakeEngine) Eval(source, filename string) error {
	e.evals = append(e.evals, source)
	return nil
}

func drain(q *binding.Queue, loop *eventloop.Loop) {
	deadline := time.Now().Add(2 * time.Second)
	for q.HasOutstanding() && time.Now().Before(deadline) {
		loop.Poll()
	}
	q.Drain()
}

func TestReadFileWriteFileRoundTrip(t *testing.T) {
	eng := newFakeEngine()
	reg := bindings.NewRegistry(eng)
	q := binding.NewQueue()
	loop := eventloop.New(1)
	defer loop.Close()

	if err := Install(reg, q, loop.Handle()); err != nil {
		t.Fatalf("Install: %v", err)
	}
	if err := reg.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	writeFile := eng.funcs["__fsWriteFileStart"].(func(int, string, string))
	readFile := eng.funcs["__fsReadFileStart"].(func(int, string))

	path := filepath.Join(t.TempDir(), "hello.txt")

	writeFile(1, path, "hello world")
	drain(q, loop)

	readFile(2, path)
	drain(q, loop)

	var sawRead bool
	for _, s := range eng.evals {
		if strings.Contains(s, "__invokeCallback(2,") {
			sawRead = true
			if !strings.Contains(s, "hello world") {
				t.Fatalf("expected readFile callback to carry the written contents, got %q", s)
			}
		}
	}
	if !sawRead {
		t.Fatal("expected a callback-fire eval for the readFile call")
	}

	data, err := os.ReadFile(path)
	if err != nil || string(data) != "hello world" {
		t.Fatalf("writeFile did not persist contents: data=%q err=%v", data, err)
	}
}

func TestReadFileMissingReportsError(t *testing.T) {
	eng := newFakeEngine()
	reg := bindings.NewRegistry(eng)
	q := binding.NewQueue()
	loop := eventloop.New(1)
	defer loop.Close()

	if err := Install(reg, q, loop.Handle()); err != nil {
		t.Fatalf("Install: %v", err)
	}
	if err := reg.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	readFile := eng.funcs["__fsReadFileStart"].(func(int, string))
	readFile(9, filepath.Join(t.TempDir(), "missing.txt"))
	drain(q, loop)

	found := false
	for _, s := range eng.evals {
		if strings.Contains(s, "__invokeCallback(9,") && strings.Contains(s, "new Error(") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an error callback-fire eval, got %v", eng.evals)
	}
}
