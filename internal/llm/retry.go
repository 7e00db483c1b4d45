package llm

import (
	"context"
	"errors"
	"time"
)

// Retry configuration
const (
	maxRetries        = 3
	initialBackoffMs  = 100
	maxBackoffMs      = 2000
	backoffMultiplier = 2.0
)

// RetryConfig configures exponential backoff retry behavior
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
}

// DefaultRetryConfig returns sensible defaults for delegate API retry
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: maxRetries,
		BaseDelay:  time.Duration(initialBackoffMs) * time.Millisecond,
		MaxDelay:   time.Duration(maxBackoffMs) * time.Millisecond,
		Multiplier: backoffMultiplier,
	}
}

// retryWithBackoff executes fn with exponential backoff. Retry is skipped on
// context cancellation and on auth failures, which will not heal on retry.
func retryWithBackoff[T any](ctx context.Context, config RetryConfig, fn func() (T, error)) (T, error) {
	var lastErr error
	var zero T
	backoff := config.BaseDelay

	for attempt := 0; attempt < config.MaxRetries; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}

		lastErr = err

		if errors.Is(err, ErrUnauthorized) {
			return zero, err
		}

		if ctx.Err() != nil {
			return zero, ctx.Err()
		}

		if attempt < config.MaxRetries-1 {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(backoff):
				backoff = time.Duration(float64(backoff) * config.Multiplier)
				if backoff > config.MaxDelay {
					backoff = config.MaxDelay
				}
			}
		}
	}

	return zero, lastErr
}
