package types

import "errors"

// Domain errors for type validation
var (
	// Search result errors
	ErrMissingPath      = errors.New("path is required")
	ErrInvalidLineRange = errors.New("line range must be 1-based and ordered")
	ErrInvalidScore     = errors.New("score must be in (0, 1]")
	ErrEmptyContent     = errors.New("content cannot be empty")

	// Observation errors
	ErrInvalidMode       = errors.New("mode must be algorithmic or llm")
	ErrInvalidConfidence = errors.New("confidence must be between 0 and 1")
	ErrInvalidTokenCount = errors.New("token count cannot be negative")
)
