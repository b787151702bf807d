//go:build v8

package main

import (
	"github.com/dunerun/dune/internal/runtimecore"
	"github.com/dunerun/dune/internal/v8engine"
)

const engineName = "v8go"

func newEngine(heapLimitMB int) (runtimecore.Engine, error) {
	return v8engine.New(heapLimitMB), nil
}
