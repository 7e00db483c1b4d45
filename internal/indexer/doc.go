// Package indexer coordinates the indexing pipeline: file discovery,
// chunking, and persistence.
//
// An index run walks a directory tree, skips binary and vendored content,
// and stores overlapping line-window chunks per file. Unchanged files are
// detected by SHA-256 content hash and skipped, so repeated runs over a
// stable tree are cheap. Files are processed concurrently by a bounded
// worker pool, committed in transactional batches; a failure in one file is
// recorded and does not abort the run.
//
// The indexer also captures session observations: synthesized narratives
// stored under a session source so later searches surface prior findings
// alongside code.
package indexer
