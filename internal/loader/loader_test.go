package loader

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/dunerun/dune/internal/specifier"
)

func newTestLoader(t *testing.T) *Loader {
	t.Helper()
	l, err := New(t.TempDir(), false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return l
}

func TestLoadFilePassesThroughJS(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.js")
	if err := os.WriteFile(path, []byte("export default 1;\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	l := newTestLoader(t)
	spec, _ := specifier.FromFilePath(path)

	src, err := l.Load(spec)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if src != "export default 1;\n" {
		t.Errorf("got %q", src)
	}
}

func TestLoadFileNotFound(t *testing.T) {
	l := newTestLoader(t)
	_, err := l.Load(specifier.Specifier("file:///does/not/exist.js"))
	if _, ok := err.(*NotFoundError); !ok {
		t.Fatalf("expected *NotFoundError, got %v (%T)", err, err)
	}
}

func TestLoadJSONWrapsAsDefaultExport(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"port":8080}`), 0o644); err != nil {
		t.Fatal(err)
	}
	l := newTestLoader(t)
	spec, _ := specifier.FromFilePath(path)

	src, err := l.Load(spec)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	wantPrefix := "export default JSON.parse("
	if len(src) < len(wantPrefix) || src[:len(wantPrefix)] != wantPrefix {
		t.Errorf("expected JSON wrapper, got %q", src)
	}
}

func TestLoadJSONParseError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(path, []byte(`{not valid`), 0o644); err != nil {
		t.Fatal(err)
	}
	l := newTestLoader(t)
	spec, _ := specifier.FromFilePath(path)

	_, err := l.Load(spec)
	if _, ok := err.(*ParseError); !ok {
		t.Fatalf("expected *ParseError, got %v (%T)", err, err)
	}
}

func TestLoadTranspilesTypeScript(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.ts")
	if err := os.WriteFile(path, []byte("const x: number = 1;\nexport default x;\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	l := newTestLoader(t)
	spec, _ := specifier.FromFilePath(path)

	src, err := l.Load(spec)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if src == "const x: number = 1;\nexport default x;\n" {
		t.Error("expected TypeScript annotation to be stripped")
	}
}

func TestLoadDuneVirtualModule(t *testing.T) {
	DuneModules["assert"] = "export default function assert() {}\n"
	defer delete(DuneModules, "assert")

	l := newTestLoader(t)
	src, err := l.Load(specifier.Specifier("dune:assert"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if src != DuneModules["assert"] {
		t.Errorf("got %q", src)
	}
}

func TestLoadHTTPCachesOnDisk(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte("export default 42;\n"))
	}))
	defer srv.Close()

	l := newTestLoader(t)
	spec := specifier.Specifier(srv.URL + "/mod.js")

	first, err := l.Load(spec)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	second, err := l.Load(spec)
	if err != nil {
		t.Fatalf("Load (cached): %v", err)
	}
	if first != second {
		t.Errorf("cached load differs from first: %q != %q", second, first)
	}
	if hits != 1 {
		t.Errorf("expected exactly 1 HTTP hit (second load served from cache), got %d", hits)
	}
}

func TestLoadHTTPReloadBypassesCache(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte("export default 42;\n"))
	}))
	defer srv.Close()

	l, err := New(t.TempDir(), true)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	spec := specifier.Specifier(srv.URL + "/mod.js")

	if _, err := l.Load(spec); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := l.Load(spec); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if hits != 2 {
		t.Errorf("expected reload to bypass cache on both loads, got %d hits", hits)
	}
}
