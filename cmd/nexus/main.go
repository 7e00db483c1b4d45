package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nexusdev/nexus-mcp/internal/logging"
	"github.com/nexusdev/nexus-mcp/internal/mcp"
	"github.com/nexusdev/nexus-mcp/internal/storage"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		fmt.Printf("Nexus MCP Server\n")
		fmt.Printf("Version: %s\n", version)
		fmt.Printf("Build Time: %s\n", buildTime)
		fmt.Printf("Build Mode: %s\n", storage.BuildMode)
		fmt.Printf("SQLite Driver: %s\n", storage.DriverName)
		os.Exit(0)
	}

	// stdout is reserved for the MCP protocol
	logger := logging.New()
	logger.Info().
		Str("version", version).
		Str("build_mode", storage.BuildMode).
		Str("driver", storage.DriverName).
		Msg("Nexus MCP server starting")

	dbPath := os.Getenv("NEXUS_DB_PATH")
	if dbPath == "" {
		dbPath = mcp.DefaultDBPath
	}

	server, err := mcp.NewServer(dbPath, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create MCP server")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		logger.Info().Msg("MCP server ready, listening on stdio")
		errChan <- server.Serve(ctx)
	}()

	select {
	case sig := <-sigChan:
		logger.Info().Str("signal", sig.String()).Msg("Shutting down")
		cancel()
	case err := <-errChan:
		if err != nil {
			logger.Fatal().Err(err).Msg("Server error")
		}
	}

	logger.Info().Msg("Server stopped")
}
