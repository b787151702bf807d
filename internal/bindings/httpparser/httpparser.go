// Package httpparser implements the http_parser binding contract
// (spec §6): parsing a raw HTTP/1.1 request into method, path, version
// and headers, plus reading a chunk's size line (parseChunk returns
// that line trimmed of whitespace; it does not read or decode the
// chunk body). Grounded on
// original_source/src/http_parser.rs's parse/parseChunk pair — the
// original leaves both unimplemented (a literal todo!()), so only the
// contract survives; the parsing itself is grounded on
// net/http/internal's chunked reader idiom via bufio, the standard
// approach a Go program reaches for to parse wire-format HTTP text
// (no third-party HTTP request-line parser appears anywhere in the
// example pack).
package httpparser

import (
	"bufio"
	"fmt"
	"net/http"
	"strings"

	"github.com/dunerun/dune/internal/bindings"
)

type parsedRequest struct {
	Method  string              `json:"method"`
	Path    string              `json:"path"`
	Version string              `json:"version"`
	Headers map[string][]string `json:"headers"`
}

// Install registers the http_parser binding.
func Install(reg *bindings.Registry) error {
	parse := func(raw string) (*parsedRequest, error) {
		r, err := http.ReadRequest(bufio.NewReader(strings.NewReader(raw)))
		if err != nil {
			return nil, fmt.Errorf("parsing http request: %w", err)
		}
		return &parsedRequest{
			Method:  r.Method,
			Path:    r.URL.RequestURI(),
			Version: r.Proto,
			Headers: map[string][]string(r.Header),
		}, nil
	}
	if err := reg.Func("http_parser", "parse", "__httpParse", parse); err != nil {
		return err
	}

	parseChunk := func(raw string) (string, error) {
		br := bufio.NewReader(strings.NewReader(raw + "\r\n"))
		sizeLine, err := br.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("parsing chunk size: %w", err)
		}
		return strings.TrimSpace(sizeLine), nil
	}
	if err := reg.Func("http_parser", "parseChunk", "__httpParseChunk", parseChunk); err != nil {
		return err
	}

	reg.Raw(`
globalThis.http_parser = globalThis.http_parser || {};
http_parser.parse = function(raw) { return __httpParse(raw); };
http_parser.parseChunk = function(raw) { return __httpParseChunk(raw); };
`)
	return nil
}
