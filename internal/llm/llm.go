package llm

import (
	"context"
	"errors"
)

// Common errors
var (
	ErrNoProvider   = errors.New("no delegate provider configured")
	ErrUnauthorized = errors.New("delegate rejected credentials")
	ErrTimeout      = errors.New("delegate call timed out")
	ErrFailed       = errors.New("delegate provider failed")
	ErrEmptyPrompt  = errors.New("prompt cannot be empty")
)

// Generation is the delegate's response: generated text plus the provider's
// own token accounting for that text.
type Generation struct {
	Text       string
	TokenCount int
}

// Provider is an external text-generation delegate. Calls are failable and
// must honor context cancellation; the synthesis engine treats any failure
// as a signal to fall back to algorithmic mode.
type Provider interface {
	// Generate produces text for the prompt, bounded by maxTokens
	Generate(ctx context.Context, prompt string, maxTokens int) (*Generation, error)

	// Name returns the provider name
	Name() string

	// Close releases any resources held by the provider
	Close() error
}
