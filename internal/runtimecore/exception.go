// Exception capture and pretty-printing (spec §7): an uncaught JS
// exception is printed with file, line, column, a source-line caret,
// and a dimmed stack trace, grounded on the textual shape Node and
// Deno both use for this ("Uncaught <Name>: <message>\n    at ...").
// Engine backends don't expose a structured JSError type this module
// can verify offline, so positions are recovered by parsing the
// engine's own error text rather than inventing an engine API.
package runtimecore

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"
)

// Exception is one uncaught error, captured from the module evaluation
// TryCatch or from a PendingFuture materialization.
type Exception struct {
	Message string // e.g. "Error: x"
	File    string
	Line    int
	Column  int
	Stack   string // raw stack trace text, one frame per line
}

// locationPattern matches a trailing "(file:line:col)" or "at
// file:line:col" fragment, the shape both v8 and quickjs/esbuild
// source-mapped stacks use for a frame's origin.
var locationPattern = regexp.MustCompile(`([^\s(]+):(\d+):(\d+)\)?$`)

// captureException builds an Exception from a raw engine error and its
// stack trace text (empty if the backend has none to offer).
func captureException(err error, stack string) *Exception {
	if err == nil {
		return nil
	}
	exc := &Exception{Message: err.Error(), Stack: stack}

	firstLine := stack
	if i := strings.IndexByte(stack, '\n'); i >= 0 {
		firstLine = stack[:i]
	}
	if m := locationPattern.FindStringSubmatch(firstLine); m != nil {
		exc.File = m[1]
		exc.Line, _ = strconv.Atoi(m[2])
		exc.Column, _ = strconv.Atoi(m[3])
	}
	return exc
}

// PrettyPrint writes exc to w the way a terminal reports an uncaught
// exception: the message, a source line with a caret under the
// reported column, then the stack trace dimmed if w is a terminal.
func (exc *Exception) PrettyPrint(w io.Writer, source string) {
	dim, reset := "", ""
	if f, ok := w.(interface{ Fd() uintptr }); ok && isatty.IsTerminal(f.Fd()) {
		dim, reset = "\x1b[2m", "\x1b[0m"
	}

	fmt.Fprintf(w, "Uncaught %s\n", exc.Message)
	if exc.Line > 0 && source != "" {
		if line, ok := sourceLine(source, exc.Line); ok {
			fmt.Fprintf(w, "    %s\n", line)
			col := exc.Column
			if col < 0 {
				col = 0
			}
			fmt.Fprintf(w, "    %s^\n", strings.Repeat(" ", col))
		}
	}
	if exc.Stack != "" {
		fmt.Fprintf(w, "%s%s%s\n", dim, exc.Stack, reset)
	}
}

// sourceLine returns the 1-indexed n'th line of source.
func sourceLine(source string, n int) (string, bool) {
	scanner := bufio.NewScanner(strings.NewReader(source))
	i := 0
	for scanner.Scan() {
		i++
		if i == n {
			return scanner.Text(), true
		}
	}
	return "", false
}
