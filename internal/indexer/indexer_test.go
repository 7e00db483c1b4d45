package indexer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/nexusdev/nexus-mcp/internal/storage"
)

func newTestIndexer(t *testing.T) (*Indexer, storage.Storage) {
	t.Helper()
	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to open storage: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return New(store, zerolog.Nop()), store
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	return path
}

func TestIndexPathBasic(t *testing.T) {
	idx, store := newTestIndexer(t)
	dir := t.TempDir()

	writeFile(t, dir, "auth.go", "package auth\n\nfunc ValidateJWT(token string) error {\n\treturn nil\n}\n")
	writeFile(t, dir, "sub/handler.go", "package sub\n\nfunc Handle() {}\n")

	stats, err := idx.IndexPath(context.Background(), dir, nil)
	if err != nil {
		t.Fatalf("IndexPath failed: %v", err)
	}

	if stats.FilesIndexed != 2 {
		t.Errorf("FilesIndexed = %d, want 2", stats.FilesIndexed)
	}
	if stats.ChunksCreated == 0 {
		t.Error("no chunks created")
	}
	if stats.FilesFailed != 0 {
		t.Errorf("FilesFailed = %d: %v", stats.FilesFailed, stats.ErrorMessages)
	}

	// Sources are stored under relative paths
	source, err := store.GetSource(context.Background(), "auth.go")
	if err != nil {
		t.Fatalf("GetSource failed: %v", err)
	}
	if source.Kind != storage.SourceFile {
		t.Errorf("Kind = %s, want file", source.Kind)
	}

	// Content is searchable after indexing
	matches, err := store.SearchText(context.Background(), "ValidateJWT", 10)
	if err != nil {
		t.Fatalf("SearchText failed: %v", err)
	}
	if len(matches) == 0 {
		t.Error("indexed content not searchable")
	}
}

func TestIndexPathSkipsUnchanged(t *testing.T) {
	idx, _ := newTestIndexer(t)
	dir := t.TempDir()
	writeFile(t, dir, "main.go", "package main\n\nfunc main() {}\n")

	first, err := idx.IndexPath(context.Background(), dir, nil)
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if first.FilesIndexed != 1 {
		t.Fatalf("first run indexed %d files, want 1", first.FilesIndexed)
	}

	second, err := idx.IndexPath(context.Background(), dir, nil)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if second.FilesIndexed != 0 {
		t.Errorf("second run indexed %d files, want 0", second.FilesIndexed)
	}
	if second.FilesSkipped != 1 {
		t.Errorf("second run skipped %d files, want 1", second.FilesSkipped)
	}
}

func TestIndexPathReindexesChanged(t *testing.T) {
	idx, store := newTestIndexer(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "main.go", "package main\n\nfunc alpha() {}\n")

	if _, err := idx.IndexPath(context.Background(), dir, nil); err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	if err := os.WriteFile(path, []byte("package main\n\nfunc omega() {}\n"), 0o644); err != nil {
		t.Fatalf("failed to rewrite file: %v", err)
	}

	stats, err := idx.IndexPath(context.Background(), dir, nil)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if stats.FilesIndexed != 1 {
		t.Errorf("changed file not re-indexed: FilesIndexed = %d", stats.FilesIndexed)
	}

	// Old content is gone from the index
	matches, err := store.SearchText(context.Background(), "alpha", 10)
	if err != nil {
		t.Fatalf("SearchText failed: %v", err)
	}
	if len(matches) != 0 {
		t.Error("stale content still searchable after re-index")
	}

	matches, err = store.SearchText(context.Background(), "omega", 10)
	if err != nil {
		t.Fatalf("SearchText failed: %v", err)
	}
	if len(matches) == 0 {
		t.Error("new content not searchable after re-index")
	}
}

func TestIndexPathSkipsBinaryAndHidden(t *testing.T) {
	idx, store := newTestIndexer(t)
	dir := t.TempDir()

	writeFile(t, dir, "ok.txt", "plain text content here\n")
	writeFile(t, dir, "blob.bin", "prefix\x00\x01\x02suffix")
	writeFile(t, dir, ".hidden", "secret\n")
	writeFile(t, dir, ".git/config", "[core]\n")
	writeFile(t, dir, "vendor/dep/dep.go", "package dep\n")

	stats, err := idx.IndexPath(context.Background(), dir, nil)
	if err != nil {
		t.Fatalf("IndexPath failed: %v", err)
	}

	if stats.FilesIndexed != 1 {
		t.Errorf("FilesIndexed = %d, want 1 (only ok.txt)", stats.FilesIndexed)
	}

	sources, err := store.ListSources(context.Background())
	if err != nil {
		t.Fatalf("ListSources failed: %v", err)
	}
	for _, s := range sources {
		if strings.Contains(s.Path, "vendor") || strings.HasPrefix(filepath.Base(s.Path), ".") {
			t.Errorf("excluded path was indexed: %s", s.Path)
		}
	}
}

func TestIndexPathExcludesTests(t *testing.T) {
	idx, _ := newTestIndexer(t)
	dir := t.TempDir()

	writeFile(t, dir, "main.go", "package main\n")
	writeFile(t, dir, "main_test.go", "package main\n")

	stats, err := idx.IndexPath(context.Background(), dir, &Config{IncludeTests: false})
	if err != nil {
		t.Fatalf("IndexPath failed: %v", err)
	}
	if stats.FilesIndexed != 1 {
		t.Errorf("FilesIndexed = %d, want 1 with tests excluded", stats.FilesIndexed)
	}
}

func TestAddObservation(t *testing.T) {
	idx, store := newTestIndexer(t)

	sessionID, err := idx.AddObservation(context.Background(), "", "JWT validation lives in auth.go with middleware wiring.")
	if err != nil {
		t.Fatalf("AddObservation failed: %v", err)
	}
	if sessionID == "" {
		t.Fatal("no session identifier returned")
	}

	source, err := store.GetSource(context.Background(), "session/"+sessionID)
	if err != nil {
		t.Fatalf("session source not found: %v", err)
	}
	if source.Kind != storage.SourceSession {
		t.Errorf("Kind = %s, want session", source.Kind)
	}

	chunks, err := store.ListChunksBySource(context.Background(), source.ID)
	if err != nil {
		t.Fatalf("ListChunksBySource failed: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if chunks[0].Kind != storage.ChunkObservation {
		t.Errorf("chunk Kind = %s, want observation", chunks[0].Kind)
	}

	// Observations are searchable like code
	matches, err := store.SearchText(context.Background(), "middleware", 10)
	if err != nil {
		t.Fatalf("SearchText failed: %v", err)
	}
	if len(matches) == 0 {
		t.Error("observation not searchable")
	}
}

func TestAddObservationExplicitSession(t *testing.T) {
	idx, _ := newTestIndexer(t)

	got, err := idx.AddObservation(context.Background(), "session-123", "first note")
	if err != nil {
		t.Fatalf("AddObservation failed: %v", err)
	}
	if got != "session-123" {
		t.Errorf("sessionID = %q, want the explicit one", got)
	}
}

func TestAddObservationEmpty(t *testing.T) {
	idx, _ := newTestIndexer(t)

	if _, err := idx.AddObservation(context.Background(), "s", "   "); err != ErrEmptyObservation {
		t.Errorf("err = %v, want ErrEmptyObservation", err)
	}
}
