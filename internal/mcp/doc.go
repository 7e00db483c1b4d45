// Package mcp implements the Model Context Protocol server surface.
//
// The server exposes the full pipeline over stdio as six tools:
//
//   - search_synthesize: search indexed content and return a synthesized
//     Observation instead of raw results. The response carries the
//     observation plus search metrics (total hits, timing, cache state).
//   - run_benchmark: run a fixture scenario through the comparison harness
//     and return the per-strategy token report.
//   - index_path: index a directory tree, skipping binary and vendored
//     content. Re-indexing is incremental by content hash.
//   - add_observation: store a session narrative so later searches surface
//     it alongside code.
//   - configure_synthesis: atomically swap synthesis settings; effective on
//     the next call, no restart. API keys are accepted here but never
//     echoed back.
//   - get_status: index statistics, effective settings (key redacted), and
//     the current mode resolution.
//
// Handlers validate parameters up front and return structured MCPError
// values with JSON-RPC error codes. Tool responses are indented JSON text.
//
// stdout belongs to the MCP transport; all logging goes to stderr.
package mcp
