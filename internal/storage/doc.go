// Package storage provides SQLite-based persistence for lode.
//
// Two stores live here:
//
//   - StateStore: small versioned blobs that survive restarts,
//     partitioned by subsystem. The configuration subsystem keeps the
//     previous run's merged snapshot in the reserved partition
//     "_system.configuration"; plugins get their own partitions.
//   - DataStore: indexed content items (fetched pages, extracted
//     text, content hashes).
//
// # Database Schema
//
// Tables:
//   - schema_version: applied migration versions
//   - state_entries: (partition, key) -> versioned blob
//   - items: indexed content, keyed by id, with a fetched_at index
//     for retention sweeps
//
// Each store opens its own database file and applies just its own
// migrations, so the two files never share a schema.
//
// # Basic Usage
//
//	store, err := storage.NewSQLiteStateStore("~/.local/share/lode/state.db")
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	entry, err := store.Get(ctx, "_system.configuration", "last_merged")
//
// # Driver Selection
//
// The SQLite driver is chosen at build time: the default build uses
// the pure Go modernc.org/sqlite driver; building with -tags
// cgo_sqlite switches to github.com/mattn/go-sqlite3. See
// build_purego.go and build_cgo.go.
package storage
