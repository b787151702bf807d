// Package transpile implements the transpile stage: a pure function
// from (source text, filename) to JavaScript source, applying
// TypeScript stripping and the JSX transform only when the filename's
// extension calls for it. Grounded on bundle.go's
// wrapESModule/BundleWorkerScript esbuild.Transform usage and on
// original_source/src/typescript.rs's extension-based dispatch.
package transpile

import (
	"fmt"
	"strings"

	esbuild "github.com/evanw/esbuild/pkg/api"
)

// Loader identifies which esbuild loader a filename extension maps to.
type Loader int

const (
	LoaderJS Loader = iota
	LoaderTS
	LoaderJSX
	LoaderTSX
)

// LoaderFor inspects a specifier's extension and reports which
// esbuild loader applies, and whether transpilation is needed at all
// (plain .js/.mjs sources pass through untouched).
func LoaderFor(filename string) (loader Loader, needsTranspile bool) {
	switch {
	case strings.HasSuffix(filename, ".tsx"):
		return LoaderTSX, true
	case strings.HasSuffix(filename, ".ts"):
		return LoaderTS, true
	case strings.HasSuffix(filename, ".jsx"):
		return LoaderJSX, true
	default:
		return LoaderJS, false
	}
}

func (l Loader) esbuildLoader() esbuild.Loader {
	switch l {
	case LoaderTS:
		return esbuild.LoaderTS
	case LoaderJSX:
		return esbuild.LoaderJSX
	case LoaderTSX:
		return esbuild.LoaderTSX
	default:
		return esbuild.LoaderJS
	}
}

// Transpile strips TypeScript types and/or applies the JSX transform
// in source, dispatching on filename's extension. JavaScript sources
// (.js/.mjs) are returned unchanged — transpiling valid ES is
// required to be a no-op modulo whitespace.
func Transpile(source, filename string) (string, error) {
	loader, needed := LoaderFor(filename)
	if !needed {
		return source, nil
	}

	result := esbuild.Transform(source, esbuild.TransformOptions{
		Loader:      loader.esbuildLoader(),
		Target:      esbuild.ESNext,
		Sourcefile:  filename,
		Format:      esbuild.FormatESModule,
		TreeShaking: esbuild.TreeShakingFalse,
	})

	if len(result.Errors) > 0 {
		msgs := make([]string, 0, len(result.Errors))
		for _, e := range result.Errors {
			msgs = append(msgs, e.Text)
		}
		return "", &Error{Filename: filename, Messages: msgs}
	}

	return string(result.Code), nil
}

// Error reports a transpile failure.
type Error struct {
	Filename string
	Messages []string
}

func (e *Error) Error() string {
	return fmt.Sprintf("transpiling %q: %s", e.Filename, strings.Join(e.Messages, "; "))
}
