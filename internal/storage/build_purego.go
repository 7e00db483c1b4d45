//go:build !cgo_sqlite
// +build !cgo_sqlite

package storage

// This file is compiled when building without the cgo_sqlite tag.
// It uses a pure Go SQLite implementation with FTS5 built in.
//
// Build command:
//   CGO_ENABLED=0 go build ./...
//
// The pure Go implementation provides:
//   - No C compiler required
//   - Cross-platform compilation
//   - Suitable for development and smaller indices
//
// Driver used: modernc.org/sqlite

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite"

	// BuildMode describes the current build configuration
	BuildMode = "purego"
)
