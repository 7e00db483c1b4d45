package searcher

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/nexusdev/nexus-mcp/internal/storage"
	"github.com/nexusdev/nexus-mcp/pkg/types"
)

// ErrSearchFailed wraps ranked-match provider failures. This is the one
// search-path error that propagates to the caller.
var ErrSearchFailed = errors.New("search failed")

const (
	// DefaultLimit is used when a request does not specify a result cap
	DefaultLimit = 10
	// MaxLimit bounds the result cap regardless of the request
	MaxLimit = 100
	// cacheSize is the LRU entry limit for the query cache
	cacheSize = 1000
	// defaultCacheTTL is how long cached responses stay valid
	defaultCacheTTL = 1 * time.Hour
)

// Request contains parameters for a search operation
type Request struct {
	Query    string
	Limit    int
	UseCache bool
	CacheTTL time.Duration
}

// Response contains normalized results and search metadata
type Response struct {
	Results   []types.SearchResult
	TotalHits int // Total matches in the store, independent of Limit
	Duration  time.Duration
	CacheHit  bool
}

// cacheEntry is a cached response with expiration time
type cacheEntry struct {
	response  *Response
	expiresAt time.Time
}

// Searcher runs ranked full-text searches and normalizes the matches
type Searcher struct {
	storage storage.Storage
	cache   *lru.Cache[[32]byte, *cacheEntry]
	cacheMu sync.RWMutex
}

// New creates a new Searcher instance
func New(store storage.Storage) *Searcher {
	// Cache evicts least recently used entries automatically
	cache, err := lru.New[[32]byte, *cacheEntry](cacheSize)
	if err != nil {
		// This should never happen with a valid size parameter
		panic(fmt.Sprintf("failed to create LRU cache: %v", err))
	}

	return &Searcher{
		storage: store,
		cache:   cache,
	}
}

// Search runs the ranked-match query and returns normalized results.
// Provider failures are wrapped in ErrSearchFailed; the caller decides
// the fallback.
func (s *Searcher) Search(ctx context.Context, req Request) (*Response, error) {
	startTime := time.Now()

	if err := validateRequest(&req); err != nil {
		return nil, fmt.Errorf("invalid search request: %w", err)
	}

	if req.UseCache {
		if cached := s.checkCache(req); cached != nil {
			cached.CacheHit = true
			cached.Duration = time.Since(startTime)
			return cached, nil
		}
	}

	matches, err := s.storage.SearchText(ctx, req.Query, req.Limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}

	total, err := s.storage.CountMatches(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}

	response := &Response{
		Results:   Normalize(matches, req.Limit),
		TotalHits: total,
		Duration:  time.Since(startTime),
	}

	if req.UseCache && len(response.Results) > 0 {
		s.storeInCache(req, response)
	}

	return response, nil
}

// Normalize converts raw ranked matches into the uniform scored-result model.
// Ordering is ascending raw rank (best match first) with ties kept in
// provider order; duplicates by source span are dropped; length is capped at
// limit. The input slice is never mutated.
func Normalize(matches []storage.TextMatch, limit int) []types.SearchResult {
	if limit <= 0 {
		limit = DefaultLimit
	}

	results := make([]types.SearchResult, 0, min(limit, len(matches)))
	seen := make(map[string]struct{}, len(matches))

	// Matches arrive in provider order; a stable pass preserves it for
	// equal ranks.
	for _, m := range sortedByRawRank(matches) {
		if len(results) >= limit {
			break
		}

		key := fmt.Sprintf("%s:%d-%d", m.Path, m.StartLine, m.EndLine)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		results = append(results, types.SearchResult{
			Path:      m.Path,
			StartLine: m.StartLine,
			EndLine:   m.EndLine,
			Content:   m.Content,
			// Lower raw rank means a better match: rank 0 scores 1.0
			Score: 1.0 / (1.0 + float64(m.RawRank)),
		})
	}

	return results
}

// sortedByRawRank returns a copy of matches in ascending RawRank order.
// The sort is stable so equal ranks keep their provider order.
func sortedByRawRank(matches []storage.TextMatch) []storage.TextMatch {
	out := make([]storage.TextMatch, len(matches))
	copy(out, matches)

	// Insertion sort keeps equal elements in input order
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].RawRank < out[j-1].RawRank; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// validateRequest ensures the search request is valid
func validateRequest(req *Request) error {
	if strings.TrimSpace(req.Query) == "" {
		return fmt.Errorf("query cannot be empty")
	}

	if req.Limit <= 0 {
		req.Limit = DefaultLimit
	}

	if req.Limit > MaxLimit {
		req.Limit = MaxLimit
	}

	if req.CacheTTL == 0 {
		req.CacheTTL = defaultCacheTTL
	}

	return nil
}

// checkCache looks up a cached response, returning nil on miss or expiry
func (s *Searcher) checkCache(req Request) *Response {
	hash := computeQueryHash(req)
	now := time.Now()

	s.cacheMu.RLock()
	entry, found := s.cache.Get(hash)
	if !found {
		s.cacheMu.RUnlock()
		return nil
	}

	if now.After(entry.expiresAt) {
		s.cacheMu.RUnlock()

		s.cacheMu.Lock()
		s.cache.Remove(hash)
		s.cacheMu.Unlock()
		return nil
	}

	// Copy while holding the read lock so the entry isn't modified mid-copy
	response := copyResponse(entry.response)
	s.cacheMu.RUnlock()

	return response
}

// storeInCache saves a response under the request's query hash
func (s *Searcher) storeInCache(req Request, response *Response) {
	entry := &cacheEntry{
		response:  copyResponse(response),
		expiresAt: time.Now().Add(req.CacheTTL),
	}

	s.cacheMu.Lock()
	s.cache.Add(computeQueryHash(req), entry)
	s.cacheMu.Unlock()
}

// InvalidateCache drops all cached queries. Invalidation happens on
// reindexing, so purging the whole cache is acceptable.
func (s *Searcher) InvalidateCache() {
	s.cacheMu.Lock()
	s.cache.Purge()
	s.cacheMu.Unlock()
}

// copyResponse creates a deep copy of a Response
func copyResponse(src *Response) *Response {
	if src == nil {
		return nil
	}

	dst := &Response{
		TotalHits: src.TotalHits,
		Duration:  src.Duration,
		CacheHit:  src.CacheHit,
		Results:   make([]types.SearchResult, len(src.Results)),
	}
	copy(dst.Results, src.Results)
	return dst
}

// computeQueryHash computes a unique hash for a search request
func computeQueryHash(req Request) [32]byte {
	var data strings.Builder
	data.WriteString(req.Query)
	data.WriteString("|")
	data.WriteString(fmt.Sprintf("%d", req.Limit))
	return sha256.Sum256([]byte(data.String()))
}
