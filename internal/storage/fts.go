package storage

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// ftsOperatorPattern matches FTS5 boolean operators as standalone words
var ftsOperatorPattern = regexp.MustCompile(`\b(AND|OR|NOT|NEAR)\b`)

// searchText performs BM25 full-text search using FTS5. The returned matches
// carry their 0-based ordinal position in bm25 order as RawRank; score
// normalization is the caller's concern.
func searchText(ctx context.Context, q querier, query string, limit int) ([]TextMatch, error) {
	sanitized := sanitizeFTSQuery(query)
	if sanitized == "" {
		return nil, fmt.Errorf("empty search query")
	}

	// Note: In FTS5, bm25() returns a relevance score where lower (more
	// negative) values indicate better matches, so ascending order ranks
	// best-first.
	sqlQuery := `
		SELECT
			c.id as chunk_id,
			s.path,
			c.start_line,
			c.end_line,
			c.content,
			bm25(chunks_fts) as score
		FROM chunks_fts
		INNER JOIN chunks c ON chunks_fts.chunk_id = c.id
		INNER JOIN sources s ON c.source_id = s.id
		WHERE chunks_fts MATCH ?
		ORDER BY score LIMIT ?
	`
	rows, err := q.QueryContext(ctx, sqlQuery, sanitized, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to execute FTS search: %v", ErrUnavailable, err)
	}
	defer func() { _ = rows.Close() }()

	matches := make([]TextMatch, 0, limit)
	for rows.Next() {
		var m TextMatch
		var score float64
		if err := rows.Scan(&m.ChunkID, &m.Path, &m.StartLine, &m.EndLine, &m.Content, &score); err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		m.RawRank = len(matches)
		matches = append(matches, m)
	}

	return matches, rows.Err()
}

// countMatches returns the total number of chunks matching the query,
// independently of any result limit.
func countMatches(ctx context.Context, q querier, query string) (int, error) {
	sanitized := sanitizeFTSQuery(query)
	if sanitized == "" {
		return 0, fmt.Errorf("empty search query")
	}

	var count int
	err := q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM chunks_fts WHERE chunks_fts MATCH ?", sanitized).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to count matches: %v", ErrUnavailable, err)
	}
	return count, nil
}

// sanitizeFTSQuery sanitizes a search query for FTS5 to prevent injection.
// Escapes special FTS5 operators and characters that carry query semantics.
// Terms are joined with OR: for a keyword-only index, requiring every term
// of a free-text query returns nothing as soon as one term has no
// standalone token in any chunk. bm25 still ranks chunks matching more
// terms ahead of partial matches.
func sanitizeFTSQuery(query string) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return ""
	}

	// Replace special characters that have meaning in FTS5
	replacer := strings.NewReplacer(
		`"`, `""`,
		`*`, ` `,
		`(`, ` `,
		`)`, ` `,
		`:`, ` `,
		`^`, ` `,
		`-`, ` `,
	)
	escaped := replacer.Replace(query)

	// Quote each term so boolean operators lose their meaning
	terms := strings.Fields(ftsOperatorPattern.ReplaceAllStringFunc(escaped, strings.ToLower))
	if len(terms) == 0 {
		return ""
	}
	for i, term := range terms {
		terms[i] = `"` + term + `"`
	}

	return strings.Join(terms, " OR ")
}
