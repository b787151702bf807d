// Package dotenv parses .env files per spec §6's external-interfaces
// contract, grounded line-for-line on original_source/src/dotenv.rs's
// Pest grammar: a value is one of five forms (double-quoted,
// single-quoted, triple-double-quoted, triple-single-quoted, or bare),
// and only the non-single-quoted forms undergo `${NAME}` substitution.
// The grammar file itself (dotenv.pest) wasn't retrieved with the
// source dump, so the line/value scanning here is reconstructed from
// the Rust parse tree shape plus the dotenvy file-format reference the
// original's own doc comment points at.
package dotenv

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// varPattern matches a "${NAME}" substitution placeholder.
var varPattern = regexp.MustCompile(`\$\{[^}]+\}`)

// kvPattern matches "KEY=" (optionally "export KEY="), capturing the
// key and the rest of the line as the unparsed value.
var kvPattern = regexp.MustCompile(`(?s)^(?:export\s+)?([A-Za-z_][A-Za-z0-9_]*)=(.*)$`)

// rawValue is a value before substitution: whether it is eligible for
// "${NAME}" expansion (Populate) or passed through untouched (Ready),
// matching original_source/src/dotenv.rs's Env enum.
type rawValue struct {
	text       string
	substitute bool
}

// Parse parses source (the contents of a .env file) into an ordered
// key/value slice, substituting "${NAME}" references against earlier
// keys in the same file and then the process environment.
func Parse(source string) ([]KV, error) {
	lines, err := splitLogicalLines(source)
	if err != nil {
		return nil, err
	}

	vars := make(map[string]string)
	var out []KV
	for _, line := range lines {
		key, raw, ok := parseLine(line)
		if !ok {
			continue
		}
		value := raw.text
		if raw.substitute {
			value = substitute(raw.text, vars)
		}
		vars[key] = value
		out = append(out, KV{Key: key, Value: value})
	}
	return out, nil
}

// KV is one parsed environment variable assignment, in file order.
type KV struct {
	Key   string
	Value string
}

// Load parses path and applies every assignment to the process
// environment via os.Setenv, matching original_source's load_env_file.
func Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading env file %q: %w", path, err)
	}
	kvs, err := Parse(string(data))
	if err != nil {
		return fmt.Errorf("parsing env file %q: %w", path, err)
	}
	for _, kv := range kvs {
		if err := os.Setenv(kv.Key, kv.Value); err != nil {
			return fmt.Errorf("setting %s: %w", kv.Key, err)
		}
	}
	return nil
}

// splitLogicalLines joins a triple-quoted value's continuation lines
// into a single logical line so parseLine can treat the whole
// multi-line value as one token, and drops blank lines and
// full-line comments.
func splitLogicalLines(source string) ([]string, error) {
	scanner := bufio.NewScanner(strings.NewReader(source))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var logical []string
	var pending strings.Builder
	inMulti := false
	var multiDelim string

	for scanner.Scan() {
		line := scanner.Text()
		if inMulti {
			pending.WriteByte('\n')
			pending.WriteString(line)
			if strings.Contains(line, multiDelim) {
				inMulti = false
				logical = append(logical, pending.String())
				pending.Reset()
			}
			continue
		}

		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		if m := kvPattern.FindStringSubmatch(line); m != nil {
			val := strings.TrimSpace(m[2])
			if strings.HasPrefix(val, `"""`) && strings.Count(val, `"""`) < 2 {
				inMulti, multiDelim = true, `"""`
				pending.WriteString(line)
				continue
			}
			if strings.HasPrefix(val, "'''") && strings.Count(val, "'''") < 2 {
				inMulti, multiDelim = true, "'''"
				pending.WriteString(line)
				continue
			}
		}
		logical = append(logical, line)
	}
	if inMulti {
		return nil, fmt.Errorf("unterminated multi-line value (missing closing %s)", multiDelim)
	}
	return logical, scanner.Err()
}

// parseLine splits a logical line into key and value form, applying
// the grammar's five value rules in original_source's priority order:
// triple-quote forms first (since a leading single/double quote would
// otherwise match the single-char form), then single-line quoted,
// then bare.
func parseLine(line string) (key string, value rawValue, ok bool) {
	m := kvPattern.FindStringSubmatch(line)
	if m == nil {
		return "", rawValue{}, false
	}
	key = m[1]
	val := strings.TrimSpace(m[2])

	switch {
	case strings.HasPrefix(val, `"""`) && strings.HasSuffix(val, `"""`) && len(val) >= 6:
		return key, rawValue{text: val[3 : len(val)-3], substitute: true}, true
	case strings.HasPrefix(val, "'''") && strings.HasSuffix(val, "'''") && len(val) >= 6:
		return key, rawValue{text: val[3 : len(val)-3], substitute: false}, true
	case strings.HasPrefix(val, `"`) && strings.HasSuffix(val, `"`) && len(val) >= 2:
		return key, rawValue{text: val[1 : len(val)-1], substitute: true}, true
	case strings.HasPrefix(val, `'`) && strings.HasSuffix(val, `'`) && len(val) >= 2:
		return key, rawValue{text: val[1 : len(val)-1], substitute: false}, true
	default:
		return key, rawValue{text: val, substitute: true}, true
	}
}

// substitute resolves every "${NAME}" reference in value, preferring
// a key already defined earlier in the same file before falling back
// to the process environment — the semantics spec §6 describes.
// original_source/src/dotenv.rs's own lookup order is not reproduced
// here verbatim since it iterates two Rust HashMaps (unordered by
// construction) chained together, which cannot deterministically
// prefer one source over the other; "same-file first" is the only
// reading of the doc comment that is actually implementable.
func substitute(value string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(value, func(match string) string {
		name := match[2 : len(match)-1]
		if v, ok := vars[name]; ok {
			return v
		}
		return os.Getenv(name)
	})
}
