package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexusdev/nexus-mcp/internal/settings"
	"github.com/nexusdev/nexus-mcp/pkg/types"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	// Pin the environment so ambient keys don't change resolver behavior
	t.Setenv(settings.EnvMode, string(types.ModeAlgorithmic))
	t.Setenv(settings.EnvProvider, "")
	t.Setenv(settings.EnvAnthropicKey, "")
	t.Setenv(settings.EnvOpenAIKey, "")
	t.Setenv(settings.EnvMistralKey, "")
	t.Setenv(settings.EnvConfidenceThreshold, "")

	server, err := NewServer(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = server.storage.Close() })
	return server
}

func newRequest(args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	return text.Text
}

func resultJSON(t *testing.T, result *mcp.CallToolResult) map[string]interface{} {
	t.Helper()
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &decoded))
	return decoded
}

func seedProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	content := "package auth\n\n// ValidateJWT checks the token signature\nfunc ValidateJWT(token string) error {\n\treturn nil\n}\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "auth.go"), []byte(content), 0o644))
	return dir
}

func indexDir(t *testing.T, server *Server, dir string) {
	t.Helper()
	result, err := server.handleIndexPath(context.Background(), newRequest(map[string]interface{}{
		"path": dir,
	}))
	require.NoError(t, err)
	response := resultJSON(t, result)
	assert.Equal(t, true, response["indexed"])
}

func TestServerInitialization(t *testing.T) {
	server := newTestServer(t)

	assert.NotNil(t, server.mcp, "MCP server should be initialized")
	assert.NotNil(t, server.storage, "Storage should be initialized")
	assert.NotNil(t, server.indexer, "Indexer should be initialized")
	assert.NotNil(t, server.searcher, "Searcher should be initialized")
	assert.NotNil(t, server.engine, "Synthesis engine should be initialized")
	assert.NotNil(t, server.harness, "Benchmark harness should be initialized")
	assert.NotNil(t, server.settings, "Settings store should be initialized")
}

func TestHandleSearchSynthesize(t *testing.T) {
	server := newTestServer(t)
	indexDir(t, server, seedProject(t))

	t.Run("returns observation for indexed content", func(t *testing.T) {
		result, err := server.handleSearchSynthesize(context.Background(), newRequest(map[string]interface{}{
			"query": "ValidateJWT token",
		}))
		require.NoError(t, err)

		response := resultJSON(t, result)
		obs, ok := response["observation"].(map[string]interface{})
		require.True(t, ok, "response missing observation")
		assert.Equal(t, string(types.ModeAlgorithmic), obs["mode"])
		assert.NotEmpty(t, obs["narrative"])

		metrics, ok := response["metrics"].(map[string]interface{})
		require.True(t, ok, "response missing metrics")
		assert.GreaterOrEqual(t, metrics["total_hits"], float64(1))
	})

	t.Run("empty query rejected", func(t *testing.T) {
		_, err := server.handleSearchSynthesize(context.Background(), newRequest(map[string]interface{}{
			"query": "",
		}))
		require.Error(t, err)

		var mcpErr *MCPError
		require.ErrorAs(t, err, &mcpErr)
		assert.Equal(t, ErrorCodeEmptyQuery, mcpErr.Code)
	})

	t.Run("invalid mode rejected", func(t *testing.T) {
		_, err := server.handleSearchSynthesize(context.Background(), newRequest(map[string]interface{}{
			"query": "anything",
			"mode":  "telepathic",
		}))
		require.Error(t, err)

		var mcpErr *MCPError
		require.ErrorAs(t, err, &mcpErr)
		assert.Equal(t, ErrorCodeInvalidParams, mcpErr.Code)
	})

	t.Run("out of range limit rejected", func(t *testing.T) {
		_, err := server.handleSearchSynthesize(context.Background(), newRequest(map[string]interface{}{
			"query": "anything",
			"limit": float64(500),
		}))
		require.Error(t, err)
	})

	t.Run("no matches yields zero-confidence observation", func(t *testing.T) {
		result, err := server.handleSearchSynthesize(context.Background(), newRequest(map[string]interface{}{
			"query": "zzzzzz_nonexistent_symbol",
		}))
		require.NoError(t, err)

		response := resultJSON(t, result)
		obs := response["observation"].(map[string]interface{})
		assert.Equal(t, float64(0), obs["confidence"])
	})
}

func TestHandleRunBenchmark(t *testing.T) {
	server := newTestServer(t)
	indexDir(t, server, seedProject(t))

	t.Run("valid scenario returns three strategies", func(t *testing.T) {
		result, err := server.handleRunBenchmark(context.Background(), newRequest(map[string]interface{}{
			"scenario_id": "auth-jwt",
		}))
		require.NoError(t, err)

		response := resultJSON(t, result)
		results, ok := response["results"].([]interface{})
		require.True(t, ok, "report missing results")
		assert.Len(t, results, 3)
		assert.Equal(t, true, response["synthetic_baselines"])
	})

	t.Run("unknown scenario rejected with available list", func(t *testing.T) {
		_, err := server.handleRunBenchmark(context.Background(), newRequest(map[string]interface{}{
			"scenario_id": "no-such-scenario",
		}))
		require.Error(t, err)

		var mcpErr *MCPError
		require.ErrorAs(t, err, &mcpErr)
		assert.Equal(t, ErrorCodeUnknownScenario, mcpErr.Code)
	})
}

func TestHandleIndexPath(t *testing.T) {
	server := newTestServer(t)

	t.Run("relative path rejected", func(t *testing.T) {
		_, err := server.handleIndexPath(context.Background(), newRequest(map[string]interface{}{
			"path": "relative/path",
		}))
		require.Error(t, err)
	})

	t.Run("missing path rejected", func(t *testing.T) {
		_, err := server.handleIndexPath(context.Background(), newRequest(map[string]interface{}{}))
		require.Error(t, err)
	})

	t.Run("indexing invalidates cached searches", func(t *testing.T) {
		dir := seedProject(t)
		indexDir(t, server, dir)

		// Warm the cache
		_, err := server.handleSearchSynthesize(context.Background(), newRequest(map[string]interface{}{
			"query": "ValidateJWT",
		}))
		require.NoError(t, err)

		require.NoError(t, os.WriteFile(filepath.Join(dir, "extra.go"),
			[]byte("package auth\n\nfunc ValidateJWTClaims() {}\n"), 0o644))
		indexDir(t, server, dir)

		result, err := server.handleSearchSynthesize(context.Background(), newRequest(map[string]interface{}{
			"query": "ValidateJWT",
		}))
		require.NoError(t, err)
		metrics := resultJSON(t, result)["metrics"].(map[string]interface{})
		assert.Equal(t, false, metrics["cache_hit"], "stale cache served after re-index")
	})
}

func TestHandleAddObservation(t *testing.T) {
	server := newTestServer(t)

	result, err := server.handleAddObservation(context.Background(), newRequest(map[string]interface{}{
		"text": "Rate limiting is enforced in gateway.go with a token bucket.",
	}))
	require.NoError(t, err)

	response := resultJSON(t, result)
	assert.Equal(t, true, response["stored"])
	sessionID, _ := response["session_id"].(string)
	require.NotEmpty(t, sessionID)

	// Stored observations are searchable
	searchResult, err := server.handleSearchSynthesize(context.Background(), newRequest(map[string]interface{}{
		"query": "token bucket",
	}))
	require.NoError(t, err)
	metrics := resultJSON(t, searchResult)["metrics"].(map[string]interface{})
	assert.GreaterOrEqual(t, metrics["total_hits"], float64(1))

	t.Run("empty text rejected", func(t *testing.T) {
		_, err := server.handleAddObservation(context.Background(), newRequest(map[string]interface{}{
			"text": "",
		}))
		require.Error(t, err)
	})
}

func TestHandleConfigureSynthesis(t *testing.T) {
	server := newTestServer(t)

	t.Run("updates take effect atomically", func(t *testing.T) {
		result, err := server.handleConfigureSynthesis(context.Background(), newRequest(map[string]interface{}{
			"mode":                 "auto",
			"provider":             "anthropic",
			"confidence_threshold": 0.8,
			"api_key":              "sk-test-key",
		}))
		require.NoError(t, err)

		response := resultJSON(t, result)
		assert.Equal(t, "auto", response["mode"])
		assert.Equal(t, "anthropic", response["provider"])
		assert.Equal(t, 0.8, response["confidence_threshold"])
		assert.Equal(t, redactedKey, response["api_key"], "api key must never be echoed back")

		current := server.settings.Load()
		assert.Equal(t, types.ModeAuto, current.Mode)
		assert.Equal(t, "sk-test-key", current.APIKey)
	})

	t.Run("partial update keeps remaining fields", func(t *testing.T) {
		before := server.settings.Load()

		_, err := server.handleConfigureSynthesis(context.Background(), newRequest(map[string]interface{}{
			"confidence_threshold": 0.3,
		}))
		require.NoError(t, err)

		after := server.settings.Load()
		assert.Equal(t, before.Mode, after.Mode)
		assert.Equal(t, before.Provider, after.Provider)
		assert.Equal(t, 0.3, after.ConfidenceThreshold)
	})

	t.Run("invalid settings rejected without partial application", func(t *testing.T) {
		before := server.settings.Load()

		_, err := server.handleConfigureSynthesis(context.Background(), newRequest(map[string]interface{}{
			"mode":                 "llm",
			"confidence_threshold": 3.5,
		}))
		require.Error(t, err)

		after := server.settings.Load()
		assert.Equal(t, before, after, "failed update must not change settings")
	})
}

func TestHandleGetStatus(t *testing.T) {
	server := newTestServer(t)
	indexDir(t, server, seedProject(t))

	result, err := server.handleGetStatus(context.Background(), newRequest(map[string]interface{}{}))
	require.NoError(t, err)

	response := resultJSON(t, result)

	serverInfo, ok := response["server"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, ServerName, serverInfo["name"])

	index, ok := response["index"].(map[string]interface{})
	require.True(t, ok)
	assert.GreaterOrEqual(t, index["sources"], float64(1))

	synthesisInfo, ok := response["synthesis"].(map[string]interface{})
	require.True(t, ok)
	assert.NotContains(t, synthesisInfo["api_key"], "sk-", "raw key leaked in status")

	scenarios, ok := response["benchmark_scenarios"].([]interface{})
	require.True(t, ok)
	assert.NotEmpty(t, scenarios)
}

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr error
	}{
		{"empty", "", ErrPathRequired},
		{"relative", "some/dir", ErrPathNotAbsolute},
		{"missing", "/definitely/not/a/real/dir", ErrPathNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, validatePath(tt.path), tt.wantErr)
		})
	}

	t.Run("file is not a directory", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "f.txt")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
		assert.ErrorIs(t, validatePath(file), ErrNotDirectory)
	})

	t.Run("valid directory", func(t *testing.T) {
		assert.NoError(t, validatePath(t.TempDir()))
	})
}
