// Package fs implements the fs binding contract (spec §6): readFile
// and writeFile, grounded on original_source/src/file.rs's read_sync
// (writeFile has no original analogue; it generalizes the same
// open/seek/read shape to a write), built on the Promise template
// since file I/O is blocking work suited to the thread pool.
package fs

import (
	"os"

	"github.com/dunerun/dune/internal/binding"
	"github.com/dunerun/dune/internal/bindings"
	"github.com/dunerun/dune/internal/eventloop"
)

// Install registers the fs binding and fs.readFile/fs.writeFile.
func Install(reg *bindings.Registry, q *binding.Queue, handle *eventloop.LoopHandle) error {
	readFile := func(cbID int, path string) {
		binding.Promise(q, handle, func() (any, error) {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, err
			}
			return string(data), nil
		}, func(result any, err error) {
			_ = reg.InvokeCallback(cbID, false, err, result)
		})
	}
	if err := reg.Func("fs", "readFileStart", "__fsReadFileStart", readFile); err != nil {
		return err
	}

	writeFile := func(cbID int, path string, contents string) {
		binding.Promise(q, handle, func() (any, error) {
			return nil, os.WriteFile(path, []byte(contents), 0o644)
		}, func(result any, err error) {
			_ = reg.InvokeCallback(cbID, false, err, nil)
		})
	}
	if err := reg.Func("fs", "writeFileStart", "__fsWriteFileStart", writeFile); err != nil {
		return err
	}

	reg.Raw(`
globalThis.fs = globalThis.fs || {};
fs.readFile = function(path) {
	return __asPromise(function(cbID) { __fsReadFileStart(cbID, path); });
};
fs.writeFile = function(path, contents) {
	return __asPromise(function(cbID) { __fsWriteFileStart(cbID, path, contents); });
};
`)
	return nil
}
