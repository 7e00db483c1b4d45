package settings

import (
	"sync"
	"testing"

	"github.com/nexusdev/nexus-mcp/pkg/types"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name          string
		settings      Settings
		wantInitial   types.Mode
		wantEscalate  bool
		wantDowngrade bool
	}{
		{
			name:        "AlgorithmicStaysAlgorithmic",
			settings:    Settings{Mode: types.ModeAlgorithmic, APIKey: "sk-present"},
			wantInitial: types.ModeAlgorithmic,
		},
		{
			name:        "LLMWithKey",
			settings:    Settings{Mode: types.ModeLLM, Provider: ProviderAnthropic, APIKey: "sk-present"},
			wantInitial: types.ModeLLM,
		},
		{
			name:          "LLMWithoutKeyFallsBack",
			settings:      Settings{Mode: types.ModeLLM, Provider: ProviderAnthropic},
			wantInitial:   types.ModeAlgorithmic,
			wantDowngrade: true,
		},
		{
			name:         "AutoWithKeyAllowsEscalation",
			settings:     Settings{Mode: types.ModeAuto, Provider: ProviderOpenAI, APIKey: "sk-present"},
			wantInitial:  types.ModeAlgorithmic,
			wantEscalate: true,
		},
		{
			name:        "AutoWithoutKeyNeverEscalates",
			settings:    Settings{Mode: types.ModeAuto},
			wantInitial: types.ModeAlgorithmic,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Resolve(&tt.settings)

			if res.Initial != tt.wantInitial {
				t.Errorf("Initial = %s, want %s", res.Initial, tt.wantInitial)
			}
			if res.AllowEscalate != tt.wantEscalate {
				t.Errorf("AllowEscalate = %v, want %v", res.AllowEscalate, tt.wantEscalate)
			}
			if tt.wantDowngrade && res.Reason == "" {
				t.Error("expected a downgrade reason to be recorded")
			}
			if !tt.wantDowngrade && res.Reason != "" {
				t.Errorf("unexpected downgrade reason %q", res.Reason)
			}
		})
	}
}

// TestResolveDeterministic verifies identical settings always resolve identically
func TestResolveDeterministic(t *testing.T) {
	s := Settings{Mode: types.ModeAuto, Provider: ProviderMistral, APIKey: "k"}
	first := Resolve(&s)
	for i := 0; i < 20; i++ {
		if got := Resolve(&s); got != first {
			t.Fatalf("resolution changed between calls: %+v != %+v", got, first)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		settings  Settings
		expectErr bool
	}{
		{name: "Valid", settings: Settings{Mode: types.ModeAuto, Provider: ProviderAnthropic, ConfidenceThreshold: 0.5}},
		{name: "NoProvider", settings: Settings{Mode: types.ModeAlgorithmic}},
		{name: "BadMode", settings: Settings{Mode: "turbo"}, expectErr: true},
		{name: "BadProvider", settings: Settings{Mode: types.ModeAuto, Provider: "cohere"}, expectErr: true},
		{name: "ThresholdTooHigh", settings: Settings{Mode: types.ModeAuto, ConfidenceThreshold: 1.5}, expectErr: true},
		{name: "ThresholdNegative", settings: Settings{Mode: types.ModeAuto, ConfidenceThreshold: -0.1}, expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.settings.Validate()
			if tt.expectErr && err == nil {
				t.Error("expected validation error")
			}
			if !tt.expectErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv(EnvMode, "llm")
	t.Setenv(EnvProvider, "mistral")
	t.Setenv(EnvConfidenceThreshold, "0.7")
	t.Setenv(EnvMistralKey, "mk-test")

	s, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv failed: %v", err)
	}

	if s.Mode != types.ModeLLM {
		t.Errorf("Mode = %s, want llm", s.Mode)
	}
	if s.Provider != ProviderMistral {
		t.Errorf("Provider = %s, want mistral", s.Provider)
	}
	if s.ConfidenceThreshold != 0.7 {
		t.Errorf("ConfidenceThreshold = %f, want 0.7", s.ConfidenceThreshold)
	}
	if s.APIKey != "mk-test" {
		t.Errorf("APIKey = %q, want mk-test", s.APIKey)
	}
}

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv(EnvMode, "")
	t.Setenv(EnvProvider, "")
	t.Setenv(EnvConfidenceThreshold, "")
	t.Setenv(EnvAnthropicKey, "")
	t.Setenv(EnvOpenAIKey, "")
	t.Setenv(EnvMistralKey, "")

	s, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv failed: %v", err)
	}

	if s.Mode != types.ModeAuto {
		t.Errorf("default Mode = %s, want auto", s.Mode)
	}
	if s.ConfidenceThreshold != DefaultConfidenceThreshold {
		t.Errorf("default threshold = %f, want %f", s.ConfidenceThreshold, DefaultConfidenceThreshold)
	}
	if s.HasKey() {
		t.Error("expected no key from empty environment")
	}
}

func TestStoreAtomicSwap(t *testing.T) {
	store := NewStore(&Settings{Mode: types.ModeAlgorithmic, ConfidenceThreshold: 0.5})

	if err := store.Update(&Settings{Mode: "bogus"}); err == nil {
		t.Error("expected invalid settings to be rejected")
	}
	if store.Load().Mode != types.ModeAlgorithmic {
		t.Error("rejected update must not change the store")
	}

	// Concurrent readers must always see a complete struct
	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				s := store.Load()
				if s.Mode == types.ModeLLM && s.APIKey == "" {
					t.Error("observed torn settings: llm mode without its key")
					return
				}
			}
		}()
	}

	for i := 0; i < 100; i++ {
		next := &Settings{Mode: types.ModeAlgorithmic, ConfidenceThreshold: 0.5}
		if i%2 == 0 {
			next = &Settings{Mode: types.ModeLLM, Provider: ProviderAnthropic, APIKey: "sk", ConfidenceThreshold: 0.5}
		}
		if err := store.Update(next); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
	}
	close(stop)
	wg.Wait()
}
