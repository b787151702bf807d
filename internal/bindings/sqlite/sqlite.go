// Package sqlite implements the sqlite binding contract (spec §6):
// open/exec/query against an embedded database, grounded on
// original_source/src/sqlite.rs's open() (path, readOnly,
// allowExtension) and its ":memory:" special-case, adapted from an
// internal V8 object wrap with a Rust connection pointer onto a
// handle-id map of *gorm.DB, since RegisterFunc's bridge carries
// scalars rather than opaque native handles. Backed by
// github.com/glebarez/sqlite + gorm.io/gorm, exactly the stack the
// D1/storage layer already pulls into go.mod.
package sqlite

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/dunerun/dune/internal/bindings"
)

type registry struct {
	mu     sync.Mutex
	nextID int
	conns  map[int]*gorm.DB
}

// Install registers the sqlite binding: open, exec, query, close.
func Install(reg *bindings.Registry) error {
	r := &registry{conns: make(map[int]*gorm.DB)}

	open := func(path string, readOnly bool, allowExtension bool) (int, error) {
		dsn := path
		sep := "?"
		if readOnly {
			dsn += sep + "_pragma=query_only(1)"
			sep = "&"
		}
		if allowExtension {
			dsn += sep + "_pragma=load_extension"
		}
		db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
		if err != nil {
			return 0, fmt.Errorf("opening sqlite database %q: %w", path, err)
		}
		r.mu.Lock()
		r.nextID++
		id := r.nextID
		r.conns[id] = db
		r.mu.Unlock()
		return id, nil
	}
	if err := reg.Func("sqlite", "open", "__sqliteOpen", open); err != nil {
		return err
	}

	// paramsJSON arrives as a JSON-encoded array: RegisterFunc's
	// reflection bridge only carries scalar argument types, so the
	// JS polyfill below JSON.stringifies bind parameters before the
	// call and this side decodes them back into []any for gorm.
	exec := func(handle int, stmt string, paramsJSON string) (int64, error) {
		db, err := r.get(handle)
		if err != nil {
			return 0, err
		}
		params, err := decodeParams(paramsJSON)
		if err != nil {
			return 0, err
		}
		result := db.Exec(stmt, params...)
		if result.Error != nil {
			return 0, fmt.Errorf("executing statement: %w", result.Error)
		}
		return result.RowsAffected, nil
	}
	if err := reg.Func("sqlite", "exec", "__sqliteExec", exec); err != nil {
		return err
	}

	query := func(handle int, stmt string, paramsJSON string) ([]map[string]any, error) {
		db, err := r.get(handle)
		if err != nil {
			return nil, err
		}
		params, err := decodeParams(paramsJSON)
		if err != nil {
			return nil, err
		}
		var rows []map[string]any
		if err := db.Raw(stmt, params...).Scan(&rows).Error; err != nil {
			return nil, fmt.Errorf("running query: %w", err)
		}
		return rows, nil
	}
	if err := reg.Func("sqlite", "query", "__sqliteQuery", query); err != nil {
		return err
	}

	closeHandle := func(handle int) error {
		r.mu.Lock()
		db, ok := r.conns[handle]
		delete(r.conns, handle)
		r.mu.Unlock()
		if !ok {
			return nil
		}
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	if err := reg.Func("sqlite", "close", "__sqliteClose", closeHandle); err != nil {
		return err
	}

	reg.Raw(`
globalThis.sqlite = globalThis.sqlite || {};
sqlite.open = function(path, readOnly, allowExtension) {
	var id = __sqliteOpen(path, !!readOnly, !!allowExtension);
	return {
		exec: function(query, params) { return __sqliteExec(id, query, JSON.stringify(params || [])); },
		query: function(query, params) { return __sqliteQuery(id, query, JSON.stringify(params || [])); },
		close: function() { return __sqliteClose(id); }
	};
};
`)
	return nil
}

func decodeParams(paramsJSON string) ([]any, error) {
	if paramsJSON == "" {
		return nil, nil
	}
	var params []any
	if err := json.Unmarshal([]byte(paramsJSON), &params); err != nil {
		return nil, fmt.Errorf("decoding bind parameters: %w", err)
	}
	return params, nil
}

func (r *registry) get(handle int) (*gorm.DB, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	db, ok := r.conns[handle]
	if !ok {
		return nil, fmt.Errorf("invalid sqlite handle %d", handle)
	}
	return db, nil
}
