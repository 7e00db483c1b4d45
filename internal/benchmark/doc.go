// Package benchmark compares the token economics of the real
// search-plus-synthesis pipeline against simulated baseline strategies.
//
// The real pipeline is measured: an actual search plus algorithmic
// synthesis over the store. The baselines ("verbose-grep" and
// "agent-retrieval") are simulated from named constants with seeded
// jitter; they illustrate relative cost profiles and are NOT measurements
// of any real tool. Reports carry a Synthetic flag so consumers can tell
// the difference.
//
// A comparison run always produces exactly one result per strategy. A
// strategy that fails is recorded with a fallback result rather than
// omitted, so report shape is stable.
package benchmark
