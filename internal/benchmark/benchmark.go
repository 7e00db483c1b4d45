package benchmark

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/nexusdev/nexus-mcp/internal/searcher"
	"github.com/nexusdev/nexus-mcp/internal/synthesis"
	"github.com/nexusdev/nexus-mcp/internal/token"
	"github.com/nexusdev/nexus-mcp/pkg/types"
)

// ErrUnknownScenario is returned when no fixture exists for the requested ID
var ErrUnknownScenario = errors.New("benchmark: unknown scenario")

// Strategy names. StrategyNexus is the real search-plus-synthesis pipeline;
// the other two are simulated baselines.
const (
	StrategyNexus          = "nexus"
	StrategyVerboseGrep    = "verbose-grep"
	StrategyAgentRetrieval = "agent-retrieval"
)

// Baseline simulation parameters. These model typical cost profiles of the
// competing approaches; they are synthetic, not measured, and exist only to
// illustrate relative token economics. See the Report.Synthetic flag.
const (
	// A grep-style tool dumps whole matching regions with surrounding
	// context, so per-result cost is high and candidate counts are inflated
	grepResultCount     = 24
	grepTokensPerResult = 220
	grepQueryTokens     = 8
	grepTimeMs          = 850
	grepHitRate         = 0.55

	// An agent retrieval loop reads fewer files but pays a large fixed
	// overhead in tool-call chatter before producing an answer
	agentResultCount     = 6
	agentTokensPerResult = 180
	agentOverheadTokens  = 1400
	agentTimeMs          = 7200
	agentHitRate         = 0.80

	// jitterFraction bounds the seeded noise applied to simulated figures
	jitterFraction = 0.10
)

// Result holds per-strategy metrics from one comparison run
type Result struct {
	Tool         string  `json:"tool"`
	QueryTokens  int     `json:"query_tokens"`
	ResultTokens int     `json:"result_tokens"`
	TotalTokens  int     `json:"total_tokens"`
	TimeMs       float64 `json:"time_ms"`
	ResultCount  int     `json:"result_count"`
	HitRate      float64 `json:"hit_rate"`
	Breakdown    string  `json:"breakdown"`
}

// Comparison relates the real pipeline to one baseline
type Comparison struct {
	Baseline        string  `json:"baseline"`
	TokenSavingsPct float64 `json:"token_savings_pct"`
	HitRateDelta    float64 `json:"hit_rate_delta"`
}

// Report is the full output of a comparison run. Results always contains
// exactly one entry per strategy, in a fixed order.
type Report struct {
	RunID       string       `json:"run_id"`
	ScenarioID  string       `json:"scenario_id"`
	Query       string       `json:"query"`
	Results     []Result     `json:"results"`
	Comparisons []Comparison `json:"comparisons"`
	Synthetic   bool         `json:"synthetic_baselines"`
	GeneratedAt time.Time    `json:"generated_at"`
}

// Scenario is a benchmark fixture: a query plus the paths a perfect search
// would surface, used to score hit rate
type Scenario struct {
	ID            string
	Query         string
	RelevantPaths []string
	Seed          int64
}

// builtinScenarios are the fixtures shipped with the harness
var builtinScenarios = map[string]Scenario{
	"auth-jwt": {
		ID:            "auth-jwt",
		Query:         "JWT validation middleware",
		RelevantPaths: []string{"auth.go", "middleware.go"},
		Seed:          101,
	},
	"db-pool": {
		ID:            "db-pool",
		Query:         "database connection pool configuration",
		RelevantPaths: []string{"db.go", "config.go"},
		Seed:          202,
	},
	"error-handling": {
		ID:            "error-handling",
		Query:         "error wrapping sentinel",
		RelevantPaths: []string{"errors.go"},
		Seed:          303,
	},
}

// strategyFunc produces one strategy's metrics for a scenario
type strategyFunc func(ctx context.Context, scenario Scenario) (Result, error)

// Harness runs the real pipeline against simulated baselines
type Harness struct {
	searcher *searcher.Searcher
	engine   *synthesis.Engine
	logger   zerolog.Logger

	scenarios  map[string]Scenario
	strategies map[string]strategyFunc
	order      []string
}

// New creates a Harness over the given search and synthesis components
func New(search *searcher.Searcher, engine *synthesis.Engine, logger zerolog.Logger) *Harness {
	h := &Harness{
		searcher:  search,
		engine:    engine,
		logger:    logger,
		scenarios: builtinScenarios,
		order:     []string{StrategyNexus, StrategyVerboseGrep, StrategyAgentRetrieval},
	}
	h.strategies = map[string]strategyFunc{
		StrategyNexus:          h.runPipeline,
		StrategyVerboseGrep:    simulateVerboseGrep,
		StrategyAgentRetrieval: simulateAgentRetrieval,
	}
	return h
}

// Scenarios lists the available fixture IDs in stable order
func (h *Harness) Scenarios() []string {
	ids := make([]string, 0, len(h.scenarios))
	for id := range h.scenarios {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// RunComparison runs all strategies concurrently for the given scenario.
// A failing strategy yields a zeroed fallback Result with the failure noted
// in its breakdown; the run itself only fails for an unknown scenario.
func (h *Harness) RunComparison(ctx context.Context, scenarioID string) (*Report, error) {
	scenario, ok := h.scenarios[scenarioID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownScenario, scenarioID)
	}

	results := make([]Result, len(h.order))

	g, gctx := errgroup.WithContext(ctx)
	for i, name := range h.order {
		run := h.strategies[name]
		g.Go(func() error {
			res, err := run(gctx, scenario)
			if err != nil {
				h.logger.Warn().Err(err).Str("strategy", name).Msg("Strategy failed, recording fallback result")
				res = fallbackResult(name, err)
			}
			results[i] = res
			return nil
		})
	}
	// Strategies never propagate errors, so Wait only observes ctx teardown
	_ = g.Wait()

	report := &Report{
		RunID:       uuid.NewString(),
		ScenarioID:  scenario.ID,
		Query:       scenario.Query,
		Results:     results,
		Comparisons: compare(results),
		Synthetic:   true,
		GeneratedAt: time.Now(),
	}

	h.logger.Info().
		Str("scenario", scenario.ID).
		Str("run_id", report.RunID).
		Msg("Benchmark comparison complete")

	return report, nil
}

// runPipeline measures the real search-plus-synthesis pipeline
func (h *Harness) runPipeline(ctx context.Context, scenario Scenario) (Result, error) {
	start := time.Now()

	resp, err := h.searcher.Search(ctx, searcher.Request{Query: scenario.Query})
	if err != nil {
		return Result{}, fmt.Errorf("search failed: %w", err)
	}

	obs := h.engine.Synthesize(ctx, scenario.Query, resp.Results, types.ModeAlgorithmic)
	elapsed := time.Since(start)

	queryTokens := token.Estimate(scenario.Query)
	return Result{
		Tool:         StrategyNexus,
		QueryTokens:  queryTokens,
		ResultTokens: obs.TokenCount,
		TotalTokens:  queryTokens + obs.TokenCount,
		TimeMs:       float64(elapsed.Microseconds()) / 1000,
		ResultCount:  len(resp.Results),
		HitRate:      hitRate(resp.Results, scenario.RelevantPaths),
		Breakdown: fmt.Sprintf("search %d hit(s), synthesis %s mode, confidence %.2f",
			resp.TotalHits, obs.Mode, obs.Confidence),
	}, nil
}

// simulateVerboseGrep models a grep-style dump of matching regions
func simulateVerboseGrep(_ context.Context, scenario Scenario) (Result, error) {
	rng := rand.New(rand.NewSource(scenario.Seed))

	count := jitterInt(rng, grepResultCount)
	resultTokens := count * jitterInt(rng, grepTokensPerResult)
	return Result{
		Tool:         StrategyVerboseGrep,
		QueryTokens:  grepQueryTokens,
		ResultTokens: resultTokens,
		TotalTokens:  grepQueryTokens + resultTokens,
		TimeMs:       jitterFloat(rng, grepTimeMs),
		ResultCount:  count,
		HitRate:      clamp01(jitterFloat(rng, grepHitRate)),
		Breakdown:    fmt.Sprintf("simulated: %d region(s) dumped with context", count),
	}, nil
}

// simulateAgentRetrieval models an agent loop reading files one by one
func simulateAgentRetrieval(_ context.Context, scenario Scenario) (Result, error) {
	rng := rand.New(rand.NewSource(scenario.Seed + 1))

	count := jitterInt(rng, agentResultCount)
	resultTokens := jitterInt(rng, agentOverheadTokens) + count*jitterInt(rng, agentTokensPerResult)
	queryTokens := token.Estimate(scenario.Query)
	return Result{
		Tool:         StrategyAgentRetrieval,
		QueryTokens:  queryTokens,
		ResultTokens: resultTokens,
		TotalTokens:  queryTokens + resultTokens,
		TimeMs:       jitterFloat(rng, agentTimeMs),
		ResultCount:  count,
		HitRate:      clamp01(jitterFloat(rng, agentHitRate)),
		Breakdown:    fmt.Sprintf("simulated: %d file read(s) plus tool-call overhead", count),
	}, nil
}

// fallbackResult stands in for a strategy that failed. It is always present
// in the report so consumers can rely on one entry per strategy.
func fallbackResult(tool string, err error) Result {
	return Result{
		Tool:      tool,
		Breakdown: fmt.Sprintf("strategy failed: %v", err),
	}
}

// compare relates the real pipeline to each baseline
func compare(results []Result) []Comparison {
	var nexus *Result
	for i := range results {
		if results[i].Tool == StrategyNexus {
			nexus = &results[i]
			break
		}
	}
	if nexus == nil {
		return nil
	}

	comparisons := make([]Comparison, 0, len(results)-1)
	for _, r := range results {
		if r.Tool == StrategyNexus {
			continue
		}
		c := Comparison{
			Baseline:     r.Tool,
			HitRateDelta: nexus.HitRate - r.HitRate,
		}
		if r.TotalTokens > 0 {
			c.TokenSavingsPct = float64(r.TotalTokens-nexus.TotalTokens) / float64(r.TotalTokens) * 100
		}
		comparisons = append(comparisons, c)
	}
	return comparisons
}

// hitRate is the fraction of expected-relevant paths present in the results
func hitRate(results []types.SearchResult, relevant []string) float64 {
	if len(relevant) == 0 {
		return 0
	}

	found := 0
	for _, want := range relevant {
		for _, r := range results {
			if r.Path == want {
				found++
				break
			}
		}
	}
	return float64(found) / float64(len(relevant))
}

func jitterInt(rng *rand.Rand, base int) int {
	return int(jitterFloat(rng, float64(base)))
}

func jitterFloat(rng *rand.Rand, base float64) float64 {
	return base * (1 + jitterFraction*(2*rng.Float64()-1))
}

func clamp01(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < 0 {
		return 0
	}
	return v
}
