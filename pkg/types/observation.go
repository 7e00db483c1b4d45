package types

// Mode identifies the synthesis strategy that produced an Observation.
type Mode string

const (
	// ModeAlgorithmic builds the narrative with rule-based construction,
	// no external text-generation call.
	ModeAlgorithmic Mode = "algorithmic"
	// ModeLLM delegates narrative generation to an external provider.
	ModeLLM Mode = "llm"
	// ModeAuto runs algorithmic synthesis first and escalates to LLM
	// when confidence is low and a provider is configured.
	ModeAuto Mode = "auto"
)

// ValidMode reports whether m is a recognized synthesis mode.
func ValidMode(m Mode) bool {
	switch m {
	case ModeAlgorithmic, ModeLLM, ModeAuto:
		return true
	default:
		return false
	}
}

// Observation is the synthesized, token-budgeted summary of search results.
// An Observation is created once per synthesis call and never mutated.
type Observation struct {
	// Mode records which strategy actually produced the narrative
	// (algorithmic or llm, never auto).
	Mode Mode `json:"mode"`

	// Confidence is in [0,1]. Zero means no matches were found or the
	// synthesis ran in a fully degraded state.
	Confidence float64 `json:"confidence"`

	// Narrative is the human/LLM-readable condensation of the results.
	Narrative string `json:"narrative"`

	// TokenCount is the estimated token cost of the narrative.
	TokenCount int `json:"token_count"`

	// CompressionRatio is TokenCount divided by the summed token cost of
	// the raw result contents. Defined as 0 when there is nothing to
	// compress and 1.0 for the empty-result observation.
	CompressionRatio float64 `json:"compression_ratio"`

	// Degraded carries a diagnostic reason when the synthesis fell back
	// from a requested mode (e.g. llm requested with no key). Empty on
	// the nominal path.
	Degraded string `json:"degraded,omitempty"`
}

// Validate checks observation invariants
func (o *Observation) Validate() error {
	if o.Mode != ModeAlgorithmic && o.Mode != ModeLLM {
		return ErrInvalidMode
	}

	if o.Confidence < 0 || o.Confidence > 1 {
		return ErrInvalidConfidence
	}

	if o.TokenCount < 0 {
		return ErrInvalidTokenCount
	}

	return nil
}
