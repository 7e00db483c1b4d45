package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultOpenAIModel is the model used for synthesis delegation
const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAIProvider implements Provider using the OpenAI API
type OpenAIProvider struct {
	client openai.Client
	model  string
}

// NewOpenAIProvider creates a new OpenAI delegate
func NewOpenAIProvider(apiKey string) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: openai API key not set", ErrNoProvider)
	}

	return &OpenAIProvider{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  DefaultOpenAIModel,
	}, nil
}

// Name returns the provider name
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// Generate produces text for the prompt via the Chat Completions API
func (p *OpenAIProvider) Generate(ctx context.Context, prompt string, maxTokens int) (*Generation, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}

	config := DefaultRetryConfig()
	return retryWithBackoff(ctx, config, func() (*Generation, error) {
		completion, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model: openai.ChatModel(p.model),
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.UserMessage(prompt),
			},
			MaxTokens: openai.Int(int64(maxTokens)),
		})
		if err != nil {
			return nil, classifyError(err)
		}

		if len(completion.Choices) == 0 || completion.Choices[0].Message.Content == "" {
			return nil, fmt.Errorf("%w: empty response", ErrFailed)
		}

		return &Generation{
			Text:       completion.Choices[0].Message.Content,
			TokenCount: int(completion.Usage.CompletionTokens),
		}, nil
	})
}

// Close releases resources; the SDK client holds none
func (p *OpenAIProvider) Close() error {
	return nil
}
