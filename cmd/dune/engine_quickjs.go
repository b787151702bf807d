//go:build !v8

package main

import (
	"github.com/dunerun/dune/internal/quickjsengine"
	"github.com/dunerun/dune/internal/runtimecore"
)

const engineName = "quickjs"

func newEngine(heapLimitMB int) (runtimecore.Engine, error) {
	return quickjsengine.New(heapLimitMB)
}
