package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/nexusdev/nexus-mcp/internal/benchmark"
	"github.com/nexusdev/nexus-mcp/internal/indexer"
	"github.com/nexusdev/nexus-mcp/internal/searcher"
	"github.com/nexusdev/nexus-mcp/internal/settings"
	"github.com/nexusdev/nexus-mcp/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams   = -32602 // Invalid method parameters
	ErrorCodeInternalError   = -32603 // Internal JSON-RPC error
	ErrorCodeUnknownScenario = -32001 // Requested benchmark scenario does not exist
	ErrorCodeEmptyQuery      = -32004 // Query parameter is empty
)

// redactedKey replaces the API key in any settings echoed back to a caller
const redactedKey = "[redacted]"

// handleSearchSynthesize handles the search_synthesize tool invocation
func (s *Server) handleSearchSynthesize(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	limit := getIntDefault(args, "limit", searcher.DefaultLimit)
	if limit < 1 || limit > searcher.MaxLimit {
		return nil, newMCPError(ErrorCodeInvalidParams, fmt.Sprintf("limit must be between 1 and %d", searcher.MaxLimit), map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	modeOverride := getStringDefault(args, "mode", "")
	if modeOverride != "" && !types.ValidMode(types.Mode(modeOverride)) {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid mode", map[string]interface{}{
			"param":   "mode",
			"value":   modeOverride,
			"allowed": []string{string(types.ModeAlgorithmic), string(types.ModeLLM), string(types.ModeAuto)},
		})
	}

	resp, err := s.searcher.Search(ctx, searcher.Request{Query: query, Limit: limit, UseCache: true})
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	var obs *types.Observation
	if modeOverride != "" {
		obs = s.engine.Synthesize(ctx, query, resp.Results, types.Mode(modeOverride))
	} else {
		obs = s.engine.Run(ctx, query, resp.Results)
	}

	response := map[string]interface{}{
		"observation": obs,
		"metrics": map[string]interface{}{
			"total_hits":       resp.TotalHits,
			"results_used":     len(resp.Results),
			"search_time_ms":   resp.Duration.Milliseconds(),
			"cache_hit":        resp.CacheHit,
			"narrative_tokens": obs.TokenCount,
		},
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleRunBenchmark handles the run_benchmark tool invocation
func (s *Server) handleRunBenchmark(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	scenarioID, ok := args["scenario_id"].(string)
	if !ok || scenarioID == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "scenario_id parameter is required", map[string]interface{}{
			"param":  "scenario_id",
			"reason": "missing or empty",
		})
	}

	report, err := s.harness.RunComparison(ctx, scenarioID)
	if errors.Is(err, benchmark.ErrUnknownScenario) {
		return nil, newMCPError(ErrorCodeUnknownScenario, "unknown benchmark scenario", map[string]interface{}{
			"scenario_id": scenarioID,
			"available":   s.harness.Scenarios(),
		})
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "benchmark failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	encoded, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to encode report", nil)
	}
	return mcp.NewToolResultText(string(encoded)), nil
}

// handleIndexPath handles the index_path tool invocation
func (s *Server) handleIndexPath(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, ok := args["path"].(string)
	if !ok || path == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}

	if err := validatePath(path); err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid path", map[string]interface{}{
			"param":  "path",
			"reason": err.Error(),
		})
	}

	config := &indexer.Config{
		IncludeTests: getBoolDefault(args, "include_tests", true),
	}

	stats, err := s.indexer.IndexPath(ctx, path, config)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "indexing failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	// Cached search responses may now be stale
	s.searcher.InvalidateCache()

	response := map[string]interface{}{
		"indexed":        true,
		"files_indexed":  stats.FilesIndexed,
		"files_skipped":  stats.FilesSkipped,
		"files_failed":   stats.FilesFailed,
		"chunks_created": stats.ChunksCreated,
		"duration_ms":    stats.Duration.Milliseconds(),
	}
	if len(stats.ErrorMessages) > 0 {
		errorCount := len(stats.ErrorMessages)
		if errorCount > 5 {
			response["errors"] = stats.ErrorMessages[:5]
			response["error_count"] = errorCount
		} else {
			response["errors"] = stats.ErrorMessages
		}
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleAddObservation handles the add_observation tool invocation
func (s *Server) handleAddObservation(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	text, ok := args["text"].(string)
	if !ok || text == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "text parameter is required", map[string]interface{}{
			"param":  "text",
			"reason": "missing or empty",
		})
	}

	sessionID := getStringDefault(args, "session_id", "")

	sessionID, err := s.indexer.AddObservation(ctx, sessionID, text)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to store observation", map[string]interface{}{
			"error": err.Error(),
		})
	}

	s.searcher.InvalidateCache()

	response := map[string]interface{}{
		"stored":     true,
		"session_id": sessionID,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleConfigureSynthesis handles the configure_synthesis tool invocation.
// Settings are swapped atomically; omitted parameters keep their current
// values and the new configuration applies to the next synthesize call.
func (s *Server) handleConfigureSynthesis(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	current := s.settings.Load()
	next := &settings.Settings{
		Mode:                current.Mode,
		Provider:            current.Provider,
		ConfidenceThreshold: current.ConfidenceThreshold,
		APIKey:              current.APIKey,
	}

	if mode := getStringDefault(args, "mode", ""); mode != "" {
		next.Mode = types.Mode(mode)
	}
	if provider := getStringDefault(args, "provider", ""); provider != "" {
		next.Provider = provider
	}
	if raw, present := args["confidence_threshold"]; present {
		threshold, ok := raw.(float64)
		if !ok {
			return nil, newMCPError(ErrorCodeInvalidParams, "confidence_threshold must be a number", map[string]interface{}{
				"param": "confidence_threshold",
			})
		}
		next.ConfidenceThreshold = threshold
	}
	if key := getStringDefault(args, "api_key", ""); key != "" {
		next.APIKey = key
	}

	if err := s.settings.Update(next); err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid settings", map[string]interface{}{
			"error": err.Error(),
		})
	}

	s.logger.Info().
		Str("mode", string(next.Mode)).
		Str("provider", next.Provider).
		Float64("confidence_threshold", next.ConfidenceThreshold).
		Bool("api_key_present", next.HasKey()).
		Msg("Synthesis settings updated")

	return mcp.NewToolResultText(formatJSON(settingsResponse(next))), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.storage.GetStats(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get index statistics", map[string]interface{}{
			"error": err.Error(),
		})
	}

	current := s.settings.Load()
	resolution := settings.Resolve(current)

	response := map[string]interface{}{
		"server": map[string]interface{}{
			"name":    ServerName,
			"version": ServerVersion,
		},
		"index": map[string]interface{}{
			"sources":       stats.Sources,
			"chunks":        stats.Chunks,
			"index_size_mb": fmt.Sprintf("%.2f", stats.IndexSizeMB),
			"fts_built":     stats.FTSBuilt,
		},
		"synthesis": settingsResponse(current),
		"resolution": map[string]interface{}{
			"initial_mode":    string(resolution.Initial),
			"allow_escalate":  resolution.AllowEscalate,
			"fallback_reason": resolution.Reason,
		},
		"benchmark_scenarios": s.harness.Scenarios(),
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// settingsResponse renders settings for callers with the key redacted
func settingsResponse(s *settings.Settings) map[string]interface{} {
	apiKey := ""
	if s.HasKey() {
		apiKey = redactedKey
	}
	return map[string]interface{}{
		"mode":                 string(s.Mode),
		"provider":             s.Provider,
		"confidence_threshold": s.ConfidenceThreshold,
		"api_key":              apiKey,
	}
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// validatePath checks if a path exists and is an accessible directory
func validatePath(path string) error {
	if path == "" {
		return ErrPathRequired
	}
	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}
	if !info.IsDir() {
		return ErrNotDirectory
	}

	f, err := os.Open(path)
	if err != nil {
		return ErrPathNotReadable
	}
	_ = f.Close()

	return nil
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

// Validation helpers

var (
	ErrPathRequired    = errors.New("path is required")
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrNotDirectory    = errors.New("path is not a directory")
)
