// Package sqliteexternal provides optional external SQLite drivers.
//
// To use the CGO driver (github.com/mattn/go-sqlite3) for SQLite inputs and
// outputs, build with:
//
//	CGO_ENABLED=1 go build -tags cgo_sqlite ./...
//
// By default versealign uses the pure Go driver modernc.org/sqlite, which
// needs no C toolchain and cross-compiles cleanly. See
// github.com/FocuswithJustin/versealign/core/sqlite for driver selection.
package sqliteexternal
