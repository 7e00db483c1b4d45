package llm

import (
	"fmt"
	"strings"

	"github.com/nexusdev/nexus-mcp/internal/settings"
)

// New creates a delegate provider for the given settings snapshot
func New(s *settings.Settings) (Provider, error) {
	if !s.HasKey() {
		return nil, fmt.Errorf("%w: no API key configured", ErrNoProvider)
	}

	switch strings.ToLower(s.Provider) {
	case settings.ProviderAnthropic:
		return NewAnthropicProvider(s.APIKey)
	case settings.ProviderOpenAI:
		return NewOpenAIProvider(s.APIKey)
	case settings.ProviderMistral:
		return NewMistralProvider(s.APIKey)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrNoProvider, s.Provider)
	}
}
