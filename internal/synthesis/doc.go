// Package synthesis compresses ranked search results into token-budgeted
// observations.
//
// The engine supports three modes:
//   - Algorithmic: rule-based narrative construction (default, offline)
//   - LLM: delegates narrative generation to an external provider
//   - Auto: algorithmic first, escalates to LLM on low confidence
//
// # Basic Usage
//
//	engine := synthesis.New(settingsStore, logger)
//
//	obs := engine.Synthesize(ctx, "jwt validation", results, types.ModeAlgorithmic)
//	fmt.Printf("%s\n(%d tokens, ratio %.2f, confidence %.2f)\n",
//	    obs.Narrative, obs.TokenCount, obs.CompressionRatio, obs.Confidence)
//
// # Algorithmic Synthesis
//
// The narrative states the query and hit count, then lists the top-K
// results with source locations and bounded content snippets. Snippets are
// capped at a fixed character budget, so narrative token cost is bounded
// regardless of input size and the compression ratio stays at or below 1.0
// whenever the raw content cost exceeds that budget. The path is a pure
// function: identical inputs produce byte-identical narratives.
//
// # Auto Mode and Escalation
//
// Auto mode runs the cheap algorithmic pass first and consults the
// configured confidence threshold. Only when confidence falls below the
// threshold and a delegate API key is present does the engine re-run with
// the LLM provider. This cheap-first ordering bounds cost for the common
// case and reserves expensive delegation for ambiguous queries.
//
// # Failure Behavior
//
// The synthesis path never surfaces an error. Delegate timeouts, auth
// failures and missing credentials all degrade to algorithmic synthesis
// with the reason recorded on the Observation's Degraded field. Callers
// distinguish degraded responses via Mode, Confidence and Degraded, never
// via an error.
package synthesis
