// Package importmap loads and queries the JSON import map used to
// rewrite bare module specifiers before resolution.
package importmap

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Map is an immutable import map: a top-level "imports" table plus
// per-referrer-prefix "scopes" overrides.
type Map struct {
	Imports map[string]string            `json:"imports"`
	Scopes  map[string]map[string]string `json:"scopes"`
}

// Parse decodes a JSON import map document.
func Parse(data []byte) (*Map, error) {
	var m Map
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing import map: %w", err)
	}
	if m.Imports == nil {
		m.Imports = map[string]string{}
	}
	return &m, nil
}

// Empty returns an import map with no entries, used when no
// --import-map file is present.
func Empty() *Map {
	return &Map{Imports: map[string]string{}}
}

// Resolve looks up raw against the map, consulting the scope whose
// prefix matches referrer (if any) before falling back to the
// top-level imports table. It returns the rewritten specifier and
// true if a mapping applied, or ("", false) if raw is not covered by
// the map at all.
//
// An exact key always wins over a prefix key; prefix keys must end in
// "/" and are tried longest first.
func (m *Map) Resolve(referrer string, raw string) (string, bool) {
	if m == nil {
		return "", false
	}
	for _, scopePrefix := range sortedScopesByLength(m.Scopes) {
		if strings.HasPrefix(referrer, scopePrefix) {
			if target, ok := matchTable(m.Scopes[scopePrefix], raw); ok {
				return target, true
			}
		}
	}
	return matchTable(m.Imports, raw)
}

func sortedScopesByLength(scopes map[string]map[string]string) []string {
	prefixes := make([]string, 0, len(scopes))
	for p := range scopes {
		prefixes = append(prefixes, p)
	}
	sort.Slice(prefixes, func(i, j int) bool {
		return len(prefixes[i]) > len(prefixes[j])
	})
	return prefixes
}

func matchTable(table map[string]string, raw string) (string, bool) {
	if table == nil {
		return "", false
	}
	// Exact key wins over any prefix match.
	if target, ok := table[raw]; ok {
		return target, true
	}
	// Longest-prefix match among keys ending in "/".
	var bestPrefix, bestTarget string
	for key, target := range table {
		if !strings.HasSuffix(key, "/") {
			continue
		}
		if strings.HasPrefix(raw, key) && len(key) > len(bestPrefix) {
			bestPrefix = key
			bestTarget = target + raw[len(key):]
		}
	}
	if bestPrefix == "" {
		return "", false
	}
	return bestTarget, true
}
