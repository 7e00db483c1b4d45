package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// searchSynthesizeTool returns the tool definition for search_synthesize
func searchSynthesizeTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_synthesize",
		Description: "Search indexed content and return a token-budgeted synthesized observation instead of raw results",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query (natural language or keywords)",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to consider (1-100)",
					"default":     10,
					"minimum":     1,
					"maximum":     100,
				},
				"mode": map[string]interface{}{
					"type":        "string",
					"description": "Synthesis mode override; omit to use configured settings",
					"enum":        []string{"algorithmic", "llm", "auto"},
				},
			},
			Required: []string{"query"},
		},
	}
}

// runBenchmarkTool returns the tool definition for run_benchmark
func runBenchmarkTool() mcp.Tool {
	return mcp.Tool{
		Name:        "run_benchmark",
		Description: "Compare token cost of the synthesis pipeline against simulated baseline retrieval strategies",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"scenario_id": map[string]interface{}{
					"type":        "string",
					"description": "Benchmark scenario fixture to run (see get_status for available IDs)",
				},
			},
			Required: []string{"scenario_id"},
		},
	}
}

// indexPathTool returns the tool definition for index_path
func indexPathTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_path",
		Description: "Index a directory tree to make its text content searchable",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the directory to index",
				},
				"include_tests": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, index test files",
					"default":     true,
				},
			},
			Required: []string{"path"},
		},
	}
}

// addObservationTool returns the tool definition for add_observation
func addObservationTool() mcp.Tool {
	return mcp.Tool{
		Name:        "add_observation",
		Description: "Store a session observation so later searches surface it alongside code",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": map[string]interface{}{
					"type":        "string",
					"description": "Session identifier; omit to start a new session",
				},
				"text": map[string]interface{}{
					"type":        "string",
					"description": "Observation narrative to store",
				},
			},
			Required: []string{"text"},
		},
	}
}

// configureSynthesisTool returns the tool definition for configure_synthesis
func configureSynthesisTool() mcp.Tool {
	return mcp.Tool{
		Name:        "configure_synthesis",
		Description: "Update synthesis settings; changes take effect on the next call without restart",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"mode": map[string]interface{}{
					"type":        "string",
					"description": "Synthesis mode",
					"enum":        []string{"algorithmic", "llm", "auto"},
				},
				"provider": map[string]interface{}{
					"type":        "string",
					"description": "LLM delegate provider",
					"enum":        []string{"anthropic", "openai", "mistral"},
				},
				"confidence_threshold": map[string]interface{}{
					"type":        "number",
					"description": "Confidence below which auto mode escalates to the LLM delegate (0.0-1.0)",
					"minimum":     0.0,
					"maximum":     1.0,
				},
				"api_key": map[string]interface{}{
					"type":        "string",
					"description": "API key for the selected provider",
				},
			},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Query index statistics and effective synthesis settings",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
