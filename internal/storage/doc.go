// Package storage provides SQLite-based persistence for indexed content.
//
// The storage layer manages:
//   - Sources: indexed files and captured session transcripts
//   - Chunks: searchable content spans with line ranges
//   - Full-text search via an FTS5 index over chunk content
//
// # Database Schema
//
// Tables:
//   - sources: origin metadata (path, kind, SHA-256 hash)
//   - chunks: content spans tied to a source
//   - chunks_fts: FTS5 full-text search index (kept in sync by triggers)
//
// # Ranked Matching
//
// SearchText is the ranked-match primitive the synthesis pipeline is built
// on. It runs an FTS5 MATCH query ordered by bm25 relevance and returns
// matches with their 0-based rank ordinal:
//
//	matches, err := store.SearchText(ctx, "jwt middleware", 10)
//	for _, m := range matches {
//	    fmt.Printf("#%d %s:%d-%d\n", m.RawRank, m.Path, m.StartLine, m.EndLine)
//	}
//
// The ranking function itself is not part of the contract; any equivalent
// full-text index could substitute.
//
// # Build Modes
//
// Two SQLite drivers are supported via build tags:
//   - default: modernc.org/sqlite (pure Go, FTS5 built in)
//   - cgo_sqlite: github.com/mattn/go-sqlite3 (requires CGO and the fts5 tag)
package storage
