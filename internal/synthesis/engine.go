package synthesis

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/nexusdev/nexus-mcp/internal/llm"
	"github.com/nexusdev/nexus-mcp/internal/settings"
	"github.com/nexusdev/nexus-mcp/internal/token"
	"github.com/nexusdev/nexus-mcp/pkg/types"
)

const (
	// topKResults is how many results the narrative covers. Fixed at
	// build time, not re-derived per call.
	topKResults = 3

	// snippetBudget bounds each result's content excerpt in characters,
	// capping narrative token cost regardless of input size.
	snippetBudget = 80

	// delegateTimeout bounds the LLM delegate call. On expiry the engine
	// falls back to algorithmic synthesis.
	delegateTimeout = 20 * time.Second

	// delegateMaxTokens caps the delegate's generated narrative
	delegateMaxTokens = 512
)

// Degradation reasons recorded on fallback observations
const (
	degradedDelegateFailed = "llm delegate failed; fell back to algorithmic synthesis"
)

// providerFactory builds a delegate for a settings snapshot. Swappable in
// tests.
type providerFactory func(*settings.Settings) (llm.Provider, error)

// Engine produces layered observations from normalized search results.
// Each Synthesize call is independent and side-effect-free aside from the
// optional outbound delegate call in LLM mode.
type Engine struct {
	store       *settings.Store
	newProvider providerFactory
	logger      zerolog.Logger
}

// New creates a synthesis engine reading configuration from store
func New(store *settings.Store, logger zerolog.Logger) *Engine {
	return &Engine{
		store:       store,
		newProvider: llm.New,
		logger:      logger,
	}
}

// Synthesize compresses results into an Observation under the given mode.
// It never returns a synthesis-path error: every failure on the LLM path
// degrades to algorithmic synthesis with a recorded reason, so the caller
// always receives a well-formed Observation.
func (e *Engine) Synthesize(ctx context.Context, query string, results []types.SearchResult, mode types.Mode) *types.Observation {
	snapshot := e.store.Load()

	switch mode {
	case types.ModeLLM:
		return e.synthesizeLLM(ctx, query, results, snapshot)

	case types.ModeAuto:
		// Cheap-first: algorithmic synthesis bounds cost for the common
		// case; the expensive delegate is reserved for ambiguous queries.
		obs := e.synthesizeAlgorithmic(query, results)
		if obs.Confidence < snapshot.ConfidenceThreshold && snapshot.HasKey() {
			e.logger.Debug().
				Float64("confidence", obs.Confidence).
				Float64("threshold", snapshot.ConfidenceThreshold).
				Msg("Escalating to LLM synthesis")
			return e.synthesizeLLM(ctx, query, results, snapshot)
		}
		return obs

	default:
		return e.synthesizeAlgorithmic(query, results)
	}
}

// Run resolves the active mode from current settings and synthesizes.
// A resolver downgrade (llm requested with no key) is recorded on the
// observation; no network call is attempted in that case.
func (e *Engine) Run(ctx context.Context, query string, results []types.SearchResult) *types.Observation {
	snapshot := e.store.Load()
	resolution := settings.Resolve(snapshot)

	var obs *types.Observation
	switch {
	case resolution.Initial == types.ModeLLM:
		obs = e.synthesizeLLM(ctx, query, results, snapshot)
	case resolution.AllowEscalate:
		obs = e.Synthesize(ctx, query, results, types.ModeAuto)
	default:
		obs = e.synthesizeAlgorithmic(query, results)
	}

	if resolution.Reason != "" && obs.Degraded == "" {
		obs.Degraded = resolution.Reason
	}
	return obs
}

// synthesizeAlgorithmic is the rule-based path: a pure function of
// (query, results). Identical inputs yield byte-identical narratives.
func (e *Engine) synthesizeAlgorithmic(query string, results []types.SearchResult) *types.Observation {
	if len(results) == 0 {
		narrative := fmt.Sprintf("No matches found for %q.", query)
		return &types.Observation{
			Mode:             types.ModeAlgorithmic,
			Confidence:       0,
			Narrative:        narrative,
			TokenCount:       token.Estimate(narrative),
			CompressionRatio: 1.0,
		}
	}

	selected := topK(results, topKResults)
	narrative := buildNarrative(query, len(results), selected)
	tokenCount := token.Estimate(narrative)

	return &types.Observation{
		Mode:             types.ModeAlgorithmic,
		Confidence:       confidence(results),
		Narrative:        narrative,
		TokenCount:       tokenCount,
		CompressionRatio: compressionRatio(tokenCount, results),
	}
}

// synthesizeLLM delegates narrative generation to the configured provider,
// falling back to algorithmic synthesis on any failure.
func (e *Engine) synthesizeLLM(ctx context.Context, query string, results []types.SearchResult, snapshot *settings.Settings) *types.Observation {
	if len(results) == 0 {
		// Nothing to condense; the delegate adds no signal here
		return e.synthesizeAlgorithmic(query, results)
	}

	provider, err := e.newProvider(snapshot)
	if err != nil {
		e.logger.Warn().Err(err).Msg("No delegate available, using algorithmic synthesis")
		obs := e.synthesizeAlgorithmic(query, results)
		obs.Degraded = degradedDelegateFailed
		return obs
	}
	defer func() { _ = provider.Close() }()

	callCtx, cancel := context.WithTimeout(ctx, delegateTimeout)
	defer cancel()

	generation, err := provider.Generate(callCtx, buildPrompt(query, results), delegateMaxTokens)
	if err != nil {
		e.logger.Warn().Err(err).Str("provider", provider.Name()).
			Msg("Delegate call failed, using algorithmic synthesis")
		obs := e.synthesizeAlgorithmic(query, results)
		obs.Degraded = degradedDelegateFailed
		return obs
	}

	tokenCount := generation.TokenCount
	if tokenCount <= 0 {
		tokenCount = token.Estimate(generation.Text)
	}

	return &types.Observation{
		Mode:             types.ModeLLM,
		Confidence:       confidence(results),
		Narrative:        generation.Text,
		TokenCount:       tokenCount,
		CompressionRatio: compressionRatio(tokenCount, results),
	}
}

// topK returns the k highest-scoring results. The sort is stable so equal
// scores keep their normalized order; the input is never mutated.
func topK(results []types.SearchResult, k int) []types.SearchResult {
	sorted := make([]types.SearchResult, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})

	if k > len(sorted) {
		k = len(sorted)
	}
	return sorted[:k]
}

// buildNarrative condenses the selected results into the layered summary:
// query and hit count first, then per-result locations with bounded
// snippets. Full content never appears beyond the snippet budget.
func buildNarrative(query string, totalHits int, selected []types.SearchResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Query %q matched %d result(s).", query, totalHits)
	if len(selected) < totalHits {
		fmt.Fprintf(&b, " Top %d:", len(selected))
	}
	b.WriteString("\n")

	for i, r := range selected {
		fmt.Fprintf(&b, "%d. %s:%d-%d (score %.2f): %s\n",
			i+1, r.Path, r.StartLine, r.EndLine, r.Score, snippet(r.Content))
	}

	return b.String()
}

// buildPrompt derives the delegate prompt from the query and the same
// bounded snippets the algorithmic path uses.
func buildPrompt(query string, results []types.SearchResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Condense the following code search results for the query %q ", query)
	b.WriteString("into a short narrative a developer can act on. ")
	b.WriteString("Cite file paths and line ranges. Do not invent results.\n\n")

	for i, r := range topK(results, topKResults) {
		fmt.Fprintf(&b, "%d. %s:%d-%d\n%s\n\n", i+1, r.Path, r.StartLine, r.EndLine, snippet(r.Content))
	}

	return b.String()
}

// snippet truncates content to the snippet budget, collapsing line breaks.
// The budget counts characters, so truncation lands on a rune boundary and
// never emits invalid UTF-8.
func snippet(content string) string {
	flat := strings.Join(strings.Fields(content), " ")
	if utf8.RuneCountInString(flat) <= snippetBudget {
		return flat
	}
	runes := []rune(flat)
	return string(runes[:snippetBudget]) + "..."
}

// confidence maps match count and score distribution to [0,1]. More matches
// with higher average score mean higher confidence; the count factor
// saturates instead of growing unbounded. The exact curve is a tunable
// heuristic; the binding property is monotonicity in both inputs.
func confidence(results []types.SearchResult) float64 {
	if len(results) == 0 {
		return 0
	}

	var sum float64
	for _, r := range results {
		sum += r.Score
	}
	avg := sum / float64(len(results))

	n := float64(len(results))
	c := avg * (n / (n + 2))

	if c > 1 {
		c = 1
	}
	if c < 0 {
		c = 0
	}
	return c
}

// compressionRatio is narrative token cost over summed raw content cost,
// defined as 0 when there is nothing to compress.
func compressionRatio(tokenCount int, results []types.SearchResult) float64 {
	var raw int
	for _, r := range results {
		raw += token.Estimate(r.Content)
	}
	if raw == 0 {
		return 0
	}
	return float64(tokenCount) / float64(raw)
}
