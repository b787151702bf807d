package sqlite

import (
	"testing"

	"github.com/dunerun/dune/internal/bindings"
)

type fakeEngine struct {
	funcs map[string]any
}

func newFakeEngine() *fakeEngine { return &fakeEngine{funcs: make(map[string]any)} }

func (e *fakeEngine) RegisterFunc(name string, fn any) error {
	e.funcs[name] = fn
	return nil
}

func (e *fakeEngine) Eval(source, filename string) error { return nil }

func TestDecodeParams(t *testing.T) {
	if got, err := decodeParams(""); err != nil || got != nil {
		t.Fatalf("decodeParams(\"\") = %v, %v; want nil, nil", got, err)
	}

	got, err := decodeParams(`["alice", 30, null]`)
	if err != nil {
		t.Fatalf("decodeParams: %v", err)
	}
	if len(got) != 3 || got[0] != "alice" || got[1] != float64(30) || got[2] != nil {
		t.Fatalf("decodeParams = %#v, want [alice 30 nil]", got)
	}

	if _, err := decodeParams("not json"); err == nil {
		t.Fatal("expected an error decoding malformed params JSON")
	}
}

func TestOpenExecQueryCloseRoundTrip(t *testing.T) {
	eng := newFakeEngine()
	reg := bindings.NewRegistry(eng)
	if err := Install(reg); err != nil {
		t.Fatalf("Install: %v", err)
	}

	open := eng.funcs["__sqliteOpen"].(func(string, bool, bool) (int, error))
	exec := eng.funcs["__sqliteExec"].(func(int, string, string) (int64, error))
	query := eng.funcs["__sqliteQuery"].(func(int, string, string) ([]map[string]any, error))
	closeHandle := eng.funcs["__sqliteClose"].(func(int) error)

	handle, err := open(":memory:", false, false)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if _, err := exec(handle, "CREATE TABLE widgets (id INTEGER, name TEXT)", ""); err != nil {
		t.Fatalf("exec create table: %v", err)
	}

	affected, err := exec(handle, "INSERT INTO widgets (id, name) VALUES (?, ?)", `[1, "sprocket"]`)
	if err != nil {
		t.Fatalf("exec insert: %v", err)
	}
	if affected != 1 {
		t.Errorf("RowsAffected = %d, want 1", affected)
	}

	rows, err := query(handle, "SELECT id, name FROM widgets WHERE id = ?", "[1]")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(rows) != 1 || rows[0]["name"] != "sprocket" {
		t.Fatalf("query rows = %#v, want one row named sprocket", rows)
	}

	if err := closeHandle(handle); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestExecOnUnknownHandleReturnsError(t *testing.T) {
	eng := newFakeEngine()
	reg := bindings.NewRegistry(eng)
	if err := Install(reg); err != nil {
		t.Fatalf("Install: %v", err)
	}
	exec := eng.funcs["__sqliteExec"].(func(int, string, string) (int64, error))
	if _, err := exec(999, "SELECT 1", ""); err == nil {
		t.Fatal("expected an error for an unknown sqlite handle")
	}
}
