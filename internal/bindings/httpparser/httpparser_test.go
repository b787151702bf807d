package httpparser

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

func TestParseRequestLineAndHeaders(t *testing.T) {
	eng := newFakeEngine()
	reg := bindings.NewRegistry(eng)
	if err := Install(reg); err != nil {
		t.Fatalf("Install: %v", err)
	}

	parse := eng.funcs["__httpParse"].(func(string) (*parsedRequest, error))
	raw := "GET /widgets?id=1 HTTP/1.1\r\nHost: example.com\r\nX-Test: yes\r\n\r\n"

	got, err := parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.Method != "GET" {
		t.Errorf("Method = %q, want GET", got.Method)
	}
	if got.Path != "/widgets?id=1" {
		t.Errorf("Path = %q, want /widgets?id=1", got.Path)
	}
	if got.Version != "HTTP/1.1" {
		t.Errorf("Version = %q, want HTTP/1.1", got.Version)
	}
	if got.Headers["X-Test"][0] != "yes" {
		t.Errorf("Headers[X-Test] = %v, want [yes]", got.Headers["X-Test"])
	}
}

func TestParseMalformedRequestReturnsError(t *testing.T) {
	eng := newFakeEngine()
	reg := bindings.NewRegistry(eng)
	if err := Install(reg); err != nil {
		t.Fatalf("Install: %v", err)
	}

	parse := eng.funcs["__httpParse"].(func(string) (*parsedRequest, error))
	if _, err := parse("not an http request at all"); err == nil {
		t.Fatal("expected an error for a malformed request line")
	}
}

func TestParseChunkReadsSizeLine(t *testing.T) {
	eng := newFakeEngine()
	reg := bindings.NewRegistry(eng)
	if err := Install(reg); err != nil {
		t.Fatalf("Install: %v", err)
	}

	parseChunk := eng.funcs["__httpParseChunk"].(func(string) (string, error))
	got, err := parseChunk("1a")
	if err != nil {
		t.Fatalf("parseChunk: %v", err)
	}
	if got != "1a" {
		t.Errorf("parseChunk = %q, want %q", got, "1a")
	}
}
