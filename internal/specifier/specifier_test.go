package specifier

import "testing"

func TestSchemeDetection(t *testing.T) {
	cases := []struct {
		spec   Specifier
		scheme string
	}{
		{"file:///home/user/main.ts", "file"},
		{"https://example.com/mod.ts", "https"},
		{"http://example.com/mod.ts", "http"},
		{"dune:console", "dune"},
		{"", ""},
	}
	for _, c := range cases {
		if got := c.spec.Scheme(); got != c.scheme {
			t.Errorf("Scheme(%q) = %q, want %q", c.spec, got, c.scheme)
		}
	}
}

func TestFromFilePathCleans(t *testing.T) {
	s, err := FromFilePath("/a/b/../c/./d.ts")
	if err != nil {
		t.Fatalf("FromFilePath: %v", err)
	}
	if s != "file:///a/c/d.ts" {
		t.Errorf("got %q, want file:///a/c/d.ts", s)
	}
}

func TestDirAndExt(t *testing.T) {
	s := Specifier("file:///a/b/c.tsx")
	if got := s.Dir(); got != "file:///a/b" {
		t.Errorf("Dir() = %q", got)
	}
	if got := s.Ext(); got != ".tsx" {
		t.Errorf("Ext() = %q", got)
	}
}

func TestIsHTTPIsFileIsDune(t *testing.T) {
	if !Specifier("https://x/y.js").IsHTTP() {
		t.Error("expected IsHTTP true")
	}
	if !Specifier("file:///x/y.js").IsFile() {
		t.Error("expected IsFile true")
	}
	if !Specifier("dune:assert").IsDune() {
		t.Error("expected IsDune true")
	}
}
