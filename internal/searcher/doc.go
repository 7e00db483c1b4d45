// Package searcher normalizes ranked full-text matches into the uniform
// scored-result model consumed by the synthesis engine.
//
// # Normalization
//
// Raw matches carry a 0-based rank ordinal from the store's bm25 ordering.
// Normalize converts each ordinal to a relevance score in (0, 1]:
//
//	score = 1 / (1 + rawRank)
//
// so the best match scores 1.0 and scores decay monotonically with rank.
// Ordering is ascending raw rank; ties keep provider order (the sort is
// stable); duplicate source spans are dropped; output length is capped at
// the requested limit.
//
// # Caching
//
// Repeated queries hit an in-memory LRU cache keyed by a SHA-256 of the
// request. Entries expire after a TTL and the whole cache is purged on
// reindexing. Cached responses are deep-copied on the way in and out so
// callers can never mutate shared state.
//
// # Failure
//
// A provider failure is wrapped in ErrSearchFailed and propagated; the
// caller decides the fallback. There is no degraded search result, because
// with no ranked matches there is nothing to synthesize from.
package searcher
