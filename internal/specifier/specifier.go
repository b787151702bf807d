// Package specifier defines the canonical module identifier used as the
// key into the module graph throughout the runtime.
package specifier

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Specifier is a canonical absolute module identifier: "file:///...",
// "http(s)://...", or "dune:...". It is a value type — two Specifiers
// with the same string are the same module.
type Specifier string

// String returns the underlying string form.
func (s Specifier) String() string { return string(s) }

// Scheme returns the URL scheme of the specifier ("file", "http",
// "https", "dune"), or "" if the specifier has none.
func (s Specifier) Scheme() string {
	str := string(s)
	idx := strings.Index(str, ":")
	if idx <= 1 {
		// Guard against Windows drive letters ("c:\...") being mistaken
		// for a scheme; a real scheme is always more than one letter
		// followed by "://" or, for dune:, just ":".
		return ""
	}
	return str[:idx]
}

// IsFile reports whether the specifier names a local file.
func (s Specifier) IsFile() bool { return s.Scheme() == "file" }

// IsHTTP reports whether the specifier names a remote URL import.
func (s Specifier) IsHTTP() bool {
	scheme := s.Scheme()
	return scheme == "http" || scheme == "https"
}

// IsDune reports whether the specifier names a virtual runtime module.
func (s Specifier) IsDune() bool { return s.Scheme() == "dune" }

// FromFilePath builds a canonical "file://" Specifier from an absolute
// or relative filesystem path, cleaning "." and ".." segments the same
// way original_source's FsModuleLoader::clean does.
func FromFilePath(path string) (Specifier, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("canonicalizing %q: %w", path, err)
	}
	clean := filepath.Clean(abs)
	return Specifier("file://" + filepath.ToSlash(clean)), nil
}

// Dir returns everything before the last "/" of the specifier (the
// containing directory of a file: or http(s): specifier), used as the
// base for resolving relative imports. A specifier with no "/" (such
// as "dune:assert") is returned unchanged.
func (s Specifier) Dir() Specifier {
	str := string(s)
	idx := strings.LastIndex(str, "/")
	if idx < 0 {
		return s
	}
	return Specifier(str[:idx])
}

// Ext returns the lowercase file extension, including the leading dot,
// or "" if the specifier has none.
func (s Specifier) Ext() string {
	return strings.ToLower(filepath.Ext(string(s)))
}
