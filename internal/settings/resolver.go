package settings

import (
	"github.com/nexusdev/nexus-mcp/pkg/types"
)

// Resolution is the deterministic outcome of mode resolution. It determines
// only the initial synthesis mode; auto-mode escalation is handled by the
// engine after the cheap pass has run.
type Resolution struct {
	// Initial is the mode the engine runs first
	Initial types.Mode
	// AllowEscalate permits the engine to re-run with the LLM delegate
	// when the algorithmic confidence falls below the threshold
	AllowEscalate bool
	// Reason records the diagnostic when a requested mode was downgraded
	Reason string
}

// Downgrade reasons recorded on fallback resolutions
const (
	ReasonNoAPIKey = "llm mode requested but no API key is configured"
)

// Resolve maps current settings to the initial synthesis mode. Pure
// decision: same settings always produce the same resolution.
func Resolve(s *Settings) Resolution {
	switch s.Mode {
	case types.ModeLLM:
		if !s.HasKey() {
			return Resolution{Initial: types.ModeAlgorithmic, Reason: ReasonNoAPIKey}
		}
		return Resolution{Initial: types.ModeLLM}

	case types.ModeAuto:
		// Cheap-first: run algorithmic, escalate only on low confidence
		// and only when a delegate is actually reachable.
		return Resolution{Initial: types.ModeAlgorithmic, AllowEscalate: s.HasKey()}

	default:
		return Resolution{Initial: types.ModeAlgorithmic}
	}
}
