package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// DefaultAnthropicModel is the model used for synthesis delegation. Narrative
// condensation is a small, cheap task; a fast model is the right default.
const DefaultAnthropicModel = "claude-3-5-haiku-latest"

// AnthropicProvider implements Provider using the Anthropic API
type AnthropicProvider struct {
	client anthropic.Client
	model  string
}

// NewAnthropicProvider creates a new Anthropic delegate
func NewAnthropicProvider(apiKey string) (*AnthropicProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: anthropic API key not set", ErrNoProvider)
	}

	return &AnthropicProvider{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  DefaultAnthropicModel,
	}, nil
}

// Name returns the provider name
func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

// Generate produces text for the prompt via the Messages API
func (p *AnthropicProvider) Generate(ctx context.Context, prompt string, maxTokens int) (*Generation, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}

	config := DefaultRetryConfig()
	return retryWithBackoff(ctx, config, func() (*Generation, error) {
		message, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
			Model:     anthropic.Model(p.model),
			MaxTokens: int64(maxTokens),
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			},
		})
		if err != nil {
			return nil, classifyError(err)
		}

		var text strings.Builder
		for _, block := range message.Content {
			if block.Type == "text" {
				text.WriteString(block.Text)
			}
		}
		if text.Len() == 0 {
			return nil, fmt.Errorf("%w: empty response", ErrFailed)
		}

		return &Generation{
			Text:       text.String(),
			TokenCount: int(message.Usage.OutputTokens),
		}, nil
	})
}

// Close releases resources; the SDK client holds none
func (p *AnthropicProvider) Close() error {
	return nil
}

// classifyError maps transport errors onto the package's sentinel errors
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	msg := err.Error()
	if strings.Contains(msg, "401") || strings.Contains(msg, "403") ||
		strings.Contains(strings.ToLower(msg), "unauthorized") {
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	return fmt.Errorf("%w: %v", ErrFailed, err)
}
