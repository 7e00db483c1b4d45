package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Mistral has no Go SDK in use here; the client speaks the chat completions
// HTTP API directly.
const (
	DefaultMistralModel = "mistral-small-latest"
	mistralEndpoint     = "https://api.mistral.ai/v1/chat/completions"
	mistralHTTPTimeout  = 30 * time.Second
)

// MistralProvider implements Provider using the Mistral chat API
type MistralProvider struct {
	apiKey     string
	model      string
	endpoint   string
	httpClient *http.Client
}

// NewMistralProvider creates a new Mistral delegate
func NewMistralProvider(apiKey string) (*MistralProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: mistral API key not set", ErrNoProvider)
	}

	return &MistralProvider{
		apiKey:   apiKey,
		model:    DefaultMistralModel,
		endpoint: mistralEndpoint,
		httpClient: &http.Client{
			Timeout: mistralHTTPTimeout,
		},
	}, nil
}

// Name returns the provider name
func (p *MistralProvider) Name() string {
	return "mistral"
}

// Generate produces text for the prompt via the chat completions endpoint
func (p *MistralProvider) Generate(ctx context.Context, prompt string, maxTokens int) (*Generation, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}

	config := DefaultRetryConfig()
	return retryWithBackoff(ctx, config, func() (*Generation, error) {
		return p.callAPI(ctx, prompt, maxTokens)
	})
}

func (p *MistralProvider) callAPI(ctx context.Context, prompt string, maxTokens int) (*Generation, error) {
	reqBody := map[string]interface{}{
		"model": p.model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"max_tokens": maxTokens,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to marshal request: %v", ErrFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to build request: %v", ErrFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, classifyError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("%w: status %d", ErrUnauthorized, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrFailed, resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", ErrFailed, err)
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage struct {
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("%w: failed to parse response: %v", ErrFailed, err)
	}

	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return nil, fmt.Errorf("%w: empty response", ErrFailed)
	}

	return &Generation{
		Text:       parsed.Choices[0].Message.Content,
		TokenCount: parsed.Usage.CompletionTokens,
	}, nil
}

// Close releases resources held by the HTTP client
func (p *MistralProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}
