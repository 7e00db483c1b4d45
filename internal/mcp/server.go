package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/nexusdev/nexus-mcp/internal/benchmark"
	"github.com/nexusdev/nexus-mcp/internal/indexer"
	"github.com/nexusdev/nexus-mcp/internal/searcher"
	"github.com/nexusdev/nexus-mcp/internal/settings"
	"github.com/nexusdev/nexus-mcp/internal/storage"
	"github.com/nexusdev/nexus-mcp/internal/synthesis"
)

const (
	// ServerName is the MCP server name
	ServerName = "nexus-mcp"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
	// DefaultDBPath is the default location for the database
	DefaultDBPath = "~/.nexus/index"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp      *server.MCPServer
	storage  storage.Storage
	indexer  *indexer.Indexer
	searcher *searcher.Searcher
	engine   *synthesis.Engine
	harness  *benchmark.Harness
	settings *settings.Store
	logger   zerolog.Logger
}

// NewServer creates a new MCP server instance with its full pipeline wired
func NewServer(dbPath string, logger zerolog.Logger) (*Server, error) {
	if dbPath == "" || dbPath == DefaultDBPath {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dbPath = filepath.Join(home, ".nexus", "index")
	}

	if err := os.MkdirAll(dbPath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dbFile := filepath.Join(dbPath, "nexus.db")
	store, err := storage.NewSQLiteStorage(dbFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	initial, err := settings.FromEnv()
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	settingsStore := settings.NewStore(initial)

	srch := searcher.New(store)
	engine := synthesis.New(settingsStore, logger)

	s := &Server{
		mcp:      server.NewMCPServer(ServerName, ServerVersion),
		storage:  store,
		indexer:  indexer.New(store, logger),
		searcher: srch,
		engine:   engine,
		harness:  benchmark.New(srch, engine, logger),
		settings: settingsStore,
		logger:   logger,
	}

	s.registerTools()
	return s, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	defer func() { _ = s.storage.Close() }()
	return server.ServeStdio(s.mcp)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(searchSynthesizeTool(), s.handleSearchSynthesize)
	s.mcp.AddTool(runBenchmarkTool(), s.handleRunBenchmark)
	s.mcp.AddTool(indexPathTool(), s.handleIndexPath)
	s.mcp.AddTool(addObservationTool(), s.handleAddObservation)
	s.mcp.AddTool(configureSynthesisTool(), s.handleConfigureSynthesis)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
}
