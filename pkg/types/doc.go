// Package types provides shared type definitions for the Nexus MCP server.
//
// This package defines the domain types used across multiple components of
// Nexus: normalized search results, synthesis modes, and observations.
//
// # Core Types
//
// SearchResult is a normalized ranked match from the full-text store:
//
//	result := types.SearchResult{
//	    Path:      "internal/auth/jwt.go",
//	    StartLine: 42,
//	    EndLine:   67,
//	    Content:   functionBody,
//	    Score:     1.0, // best match: 1/(1+rawRank) with rawRank=0
//	}
//
// Observation is the synthesized, token-budgeted summary returned to a
// caller. It is created once per synthesis call and never mutated:
//
//	obs := engine.Synthesize(ctx, query, results, types.ModeAlgorithmic)
//	fmt.Printf("%s (%.0f%% confidence, %d tokens, ratio %.2f)\n",
//	    obs.Narrative, obs.Confidence*100, obs.TokenCount, obs.CompressionRatio)
//
// # Synthesis Modes
//
//   - ModeAlgorithmic: rule-based narrative construction, no network calls
//   - ModeLLM: delegates narrative generation to an external provider
//   - ModeAuto: algorithmic first, escalates to LLM on low confidence
//
// A returned Observation always records the strategy that actually produced
// it (algorithmic or llm, never auto). A degraded response is distinguishable
// from a nominal one via the Mode, Confidence, and Degraded fields, never via
// an error.
package types
