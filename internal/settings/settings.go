package settings

import (
	"fmt"
	"os"
	"strconv"
	"sync/atomic"

	"github.com/nexusdev/nexus-mcp/pkg/types"
)

// Environment variables recognized at startup
const (
	EnvMode                = "NEXUS_SYNTHESIS_MODE"
	EnvProvider            = "NEXUS_SYNTHESIS_PROVIDER"
	EnvConfidenceThreshold = "NEXUS_CONFIDENCE_THRESHOLD"
	EnvAnthropicKey        = "ANTHROPIC_API_KEY"
	EnvOpenAIKey           = "OPENAI_API_KEY"
	EnvMistralKey          = "MISTRAL_API_KEY"
)

// DefaultConfidenceThreshold gates auto-mode escalation when unset
const DefaultConfidenceThreshold = 0.5

// Recognized delegate providers
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderMistral   = "mistral"
)

// Settings is the process-wide synthesis configuration. Values are
// immutable once constructed; reconfiguration swaps the whole struct.
type Settings struct {
	Mode                types.Mode
	Provider            string
	ConfidenceThreshold float64
	APIKey              string
}

// HasKey reports whether a delegate API key is configured
func (s *Settings) HasKey() bool {
	return s.APIKey != ""
}

// Validate checks settings invariants
func (s *Settings) Validate() error {
	if !types.ValidMode(s.Mode) {
		return fmt.Errorf("unknown synthesis mode %q", s.Mode)
	}

	switch s.Provider {
	case "", ProviderAnthropic, ProviderOpenAI, ProviderMistral:
	default:
		return fmt.Errorf("unknown provider %q", s.Provider)
	}

	if s.ConfidenceThreshold < 0 || s.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence threshold must be in [0,1], got %f", s.ConfidenceThreshold)
	}

	return nil
}

// FromEnv loads initial settings from the environment
func FromEnv() (*Settings, error) {
	s := &Settings{
		Mode:                types.ModeAuto,
		ConfidenceThreshold: DefaultConfidenceThreshold,
	}

	if mode := os.Getenv(EnvMode); mode != "" {
		s.Mode = types.Mode(mode)
	}

	if provider := os.Getenv(EnvProvider); provider != "" {
		s.Provider = provider
	}

	if raw := os.Getenv(EnvConfidenceThreshold); raw != "" {
		threshold, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvConfidenceThreshold, err)
		}
		s.ConfidenceThreshold = threshold
	}

	// Key detection follows provider preference, then availability
	switch s.Provider {
	case ProviderAnthropic:
		s.APIKey = os.Getenv(EnvAnthropicKey)
	case ProviderOpenAI:
		s.APIKey = os.Getenv(EnvOpenAIKey)
	case ProviderMistral:
		s.APIKey = os.Getenv(EnvMistralKey)
	default:
		if key := os.Getenv(EnvAnthropicKey); key != "" {
			s.Provider, s.APIKey = ProviderAnthropic, key
		} else if key := os.Getenv(EnvOpenAIKey); key != "" {
			s.Provider, s.APIKey = ProviderOpenAI, key
		} else if key := os.Getenv(EnvMistralKey); key != "" {
			s.Provider, s.APIKey = ProviderMistral, key
		}
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}

	return s, nil
}

// Store holds the current settings behind an atomic pointer. Updates swap
// the whole struct so concurrent readers never observe a partially-updated
// configuration.
type Store struct {
	current atomic.Pointer[Settings]
}

// NewStore creates a store seeded with initial settings
func NewStore(initial *Settings) *Store {
	st := &Store{}
	st.current.Store(initial)
	return st
}

// Load returns the current settings snapshot. The returned value must be
// treated as read-only.
func (st *Store) Load() *Settings {
	return st.current.Load()
}

// Update validates and atomically swaps in new settings. Takes effect on
// the next synthesize call; no restart required.
func (st *Store) Update(next *Settings) error {
	if err := next.Validate(); err != nil {
		return err
	}
	st.current.Store(next)
	return nil
}
