// Package resolve implements the pure module resolver: a function
// from (referrer, raw specifier) to an absolute, canonical Specifier.
// It is grounded on original_source/src/loaders.rs's
// FsModuleLoader::resolve, generalized to cover import maps, URL
// imports, and the dune: virtual scheme.
package resolve

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/net/idna"

	"github.com/dunerun/dune/internal/importmap"
	"github.com/dunerun/dune/internal/specifier"
)

// extensions is the probe order used when a raw specifier names
// neither an existing file nor a directory as-is.
var extensions = []string{".js", ".ts", ".jsx", ".tsx", ".json", ".mjs"}

// NotFoundError reports that no module could be resolved for a
// (referrer, raw) pair.
type NotFoundError struct {
	Specifier string
	Referrer  string
}

func (e *NotFoundError) Error() string {
	if e.Referrer == "" {
		return fmt.Sprintf("module not found: %q", e.Specifier)
	}
	return fmt.Sprintf("module not found: %q (imported from %q)", e.Specifier, e.Referrer)
}

// Resolver resolves module specifiers against an optional import map.
// It holds no mutable state once constructed: Resolve is a pure
// function of its receiver and arguments.
type Resolver struct {
	importMap *importmap.Map
	// statFile is overridable in tests; defaults to checking the real
	// filesystem for file: resolution.
	statFile func(path string) bool
}

// New creates a Resolver consulting the given import map (may be nil,
// meaning no import map is configured).
func New(im *importmap.Map) *Resolver {
	return &Resolver{
		importMap: im,
		statFile:  fileExists,
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// Resolve implements the five-step resolution algorithm: import map,
// accepted URL schemes, relative/absolute filesystem paths, the
// dune: virtual scheme, and finally failure.
func (r *Resolver) Resolve(referrer specifier.Specifier, raw string) (specifier.Specifier, error) {
	// Step 1: import map, longest-prefix / exact match.
	if r.importMap != nil {
		if target, ok := r.importMap.Resolve(string(referrer), raw); ok {
			raw = target
		}
	}

	// Step 4: dune: virtual modules route directly, no further work.
	if strings.HasPrefix(raw, "dune:") {
		return specifier.Specifier(raw), nil
	}

	// Step 2: already a URL with an accepted scheme.
	if u, err := url.Parse(raw); err == nil && u.Scheme != "" {
		switch u.Scheme {
		case "http", "https":
			canon, err := canonicalizeHTTP(u)
			if err != nil {
				return "", fmt.Errorf("resolving %q: %w", raw, err)
			}
			return canon, nil
		case "file":
			return specifier.Specifier(raw), nil
		}
	}

	// Step 3: relative/absolute resolution.
	if strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "./") || strings.HasPrefix(raw, "../") {
		// A URL-imported module's own relative imports join against
		// its referrer URL, not the local filesystem: "./dep.js" from
		// https://host/dir/mod.js must resolve to
		// https://host/dir/dep.js, never probe disk.
		if referrer.IsHTTP() {
			base, err := url.Parse(string(referrer))
			if err != nil {
				return "", fmt.Errorf("resolving %q against %q: %w", raw, referrer, err)
			}
			rel, err := url.Parse(raw)
			if err != nil {
				return "", fmt.Errorf("resolving %q against %q: %w", raw, referrer, err)
			}
			return canonicalizeHTTP(base.ResolveReference(rel))
		}

		baseDir := "."
		if referrer != "" && (referrer.IsFile()) {
			baseDir = strings.TrimPrefix(string(referrer.Dir()), "file://")
		} else if strings.HasPrefix(raw, "/") {
			baseDir = "/"
		}

		target := raw
		if strings.HasPrefix(raw, "/") {
			target = raw[1:]
			baseDir = "/"
		}

		path := filepath.Join(baseDir, target)
		if resolved, ok := r.resolveAsFile(path); ok {
			spec, err := specifier.FromFilePath(resolved)
			if err != nil {
				return "", err
			}
			return spec, nil
		}
		if resolved, ok := r.resolveAsDirectory(path); ok {
			spec, err := specifier.FromFilePath(resolved)
			if err != nil {
				return "", err
			}
			return spec, nil
		}
		return "", &NotFoundError{Specifier: raw, Referrer: string(referrer)}
	}

	// A bare specifier with no import-map entry and no recognized
	// scheme cannot be resolved.
	return "", &NotFoundError{Specifier: raw, Referrer: string(referrer)}
}

// resolveAsFile tries path as-is, then with each probe extension
// appended.
func (r *Resolver) resolveAsFile(path string) (string, bool) {
	if r.statFile(path) {
		return path, true
	}
	for _, ext := range extensions {
		candidate := path + ext
		if r.statFile(candidate) {
			return candidate, true
		}
	}
	return "", false
}

// resolveAsDirectory tries index.<ext> inside path.
func (r *Resolver) resolveAsDirectory(path string) (string, bool) {
	if !dirExists(path) {
		return "", false
	}
	for _, ext := range extensions {
		candidate := filepath.Join(path, "index"+ext)
		if r.statFile(candidate) {
			return candidate, true
		}
	}
	return "", false
}

// canonicalizeHTTP normalizes a http(s) URL into its canonical
// Specifier form, ASCII-compatible-encoding any internationalized
// hostname so the same host always canonicalizes to the same graph key.
func canonicalizeHTTP(u *url.URL) (specifier.Specifier, error) {
	host, err := idna.Lookup.ToASCII(u.Hostname())
	if err != nil {
		// Hostnames that are already ASCII (the overwhelming common
		// case) round-trip through ToASCII; a real encoding failure
		// means a malformed host, which we surface as-is rather than
		// falling back silently.
		return "", fmt.Errorf("encoding host %q: %w", u.Hostname(), err)
	}
	normalized := *u
	if port := u.Port(); port != "" {
		normalized.Host = host + ":" + port
	} else {
		normalized.Host = host
	}
	return specifier.Specifier(normalized.String()), nil
}
