package types

// SearchResult represents a single ranked match from the full-text store,
// normalized for consumption by the synthesis engine. Results are immutable
// once produced; callers must not modify them.
type SearchResult struct {
	// Location
	Path      string // Relative to the indexed root
	StartLine int
	EndLine   int

	// Content
	Content string

	// Scoring. Normalized relevance in (0, 1]; derived from the raw rank
	// position as 1/(1+rawRank), so the best match scores 1.0.
	Score float64
}

// Validate checks if the search result is valid
func (sr *SearchResult) Validate() error {
	if sr.Path == "" {
		return ErrMissingPath
	}

	if sr.StartLine < 1 || sr.EndLine < sr.StartLine {
		return ErrInvalidLineRange
	}

	if sr.Score <= 0 || sr.Score > 1 {
		return ErrInvalidScore
	}

	if sr.Content == "" {
		return ErrEmptyContent
	}

	return nil
}
