package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/nexusdev/nexus-mcp/internal/chunker"
	"github.com/nexusdev/nexus-mcp/internal/storage"
)

// ErrEmptyObservation is returned when an observation has no content to store
var ErrEmptyObservation = errors.New("indexer: observation narrative is empty")

// maxFileSizeBytes caps individual files; anything larger is skipped as
// unlikely to be hand-written source
const maxFileSizeBytes = 2 << 20

// Indexer coordinates the indexing pipeline: discover -> chunk -> store
type Indexer struct {
	chunker *chunker.Chunker
	storage storage.Storage
	logger  zerolog.Logger

	workers int
}

// Config contains configuration for an indexing run
type Config struct {
	Workers      int  // Concurrent workers (default: runtime.NumCPU())
	BatchSize    int  // Files committed per transaction (default: 20)
	IncludeTests bool // Whether to index *_test.* files (default: true)
}

// Statistics summarizes an indexing run
type Statistics struct {
	FilesIndexed  int
	FilesSkipped  int
	FilesFailed   int
	ChunksCreated int
	Duration      time.Duration
	ErrorMessages []string
}

// New creates an Indexer backed by the given store
func New(store storage.Storage, logger zerolog.Logger) *Indexer {
	return &Indexer{
		chunker: chunker.New(),
		storage: store,
		logger:  logger,
		workers: runtime.NumCPU(),
	}
}

// IndexPath indexes all text files under rootPath. Unchanged files are
// skipped by content hash; per-file failures are recorded and do not abort
// the run.
func (idx *Indexer) IndexPath(ctx context.Context, rootPath string, config *Config) (*Statistics, error) {
	if config == nil {
		config = &Config{
			Workers:      runtime.NumCPU(),
			BatchSize:    20,
			IncludeTests: true,
		}
	}
	if config.Workers <= 0 {
		config.Workers = runtime.NumCPU()
	}
	idx.workers = config.Workers

	startTime := time.Now()
	stats := &Statistics{
		ErrorMessages: make([]string, 0),
	}

	absRoot, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root path: %w", err)
	}

	files, err := idx.discoverFiles(absRoot, config)
	if err != nil {
		return nil, fmt.Errorf("failed to discover files: %w", err)
	}

	idx.logger.Info().
		Str("root", absRoot).
		Int("files", len(files)).
		Int("workers", idx.workers).
		Msg("Starting index run")

	if err := idx.indexFiles(ctx, absRoot, files, config, stats); err != nil {
		return nil, fmt.Errorf("failed to index files: %w", err)
	}

	stats.Duration = time.Since(startTime)

	idx.logger.Info().
		Int("indexed", stats.FilesIndexed).
		Int("skipped", stats.FilesSkipped).
		Int("failed", stats.FilesFailed).
		Int("chunks", stats.ChunksCreated).
		Dur("duration", stats.Duration).
		Msg("Index run complete")

	return stats, nil
}

// AddObservation stores a synthesized narrative under a session source so
// later searches can surface it alongside code. An empty sessionID gets a
// generated identifier; the session identifier actually used is returned.
func (idx *Indexer) AddObservation(ctx context.Context, sessionID, narrative string) (string, error) {
	if strings.TrimSpace(narrative) == "" {
		return "", ErrEmptyObservation
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	tx, err := idx.storage.BeginTx(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	sourcePath := sessionSourcePath(sessionID)
	source, err := tx.GetSource(ctx, sourcePath)
	if errors.Is(err, storage.ErrNotFound) {
		source = &storage.Source{
			Path: sourcePath,
			Kind: storage.SourceSession,
		}
	} else if err != nil {
		return "", fmt.Errorf("failed to look up session source: %w", err)
	}

	source.ContentHash = chunker.ContentHash(narrative)
	source.SizeBytes = int64(len(narrative))
	source.ModTime = time.Now()
	source.LastIndexedAt = time.Now()

	if err := tx.UpsertSource(ctx, source); err != nil {
		return "", fmt.Errorf("failed to store session source: %w", err)
	}

	chunk := chunker.ObservationChunk(source.ID, narrative)
	if err := tx.UpsertChunk(ctx, chunk); err != nil {
		return "", fmt.Errorf("failed to store observation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit observation: %w", err)
	}

	idx.logger.Debug().Str("session", sessionID).Int("tokens", chunk.TokenCount).Msg("Observation stored")
	return sessionID, nil
}

func sessionSourcePath(sessionID string) string {
	return "session/" + sessionID
}

// discoverFiles finds indexable text files under rootPath
func (idx *Indexer) discoverFiles(rootPath string, config *Config) ([]string, error) {
	var files []string

	err := filepath.Walk(rootPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			name := info.Name()
			if name == "vendor" || name == "node_modules" {
				return filepath.SkipDir
			}
			if strings.HasPrefix(name, ".") && path != rootPath {
				return filepath.SkipDir
			}
			return nil
		}

		if strings.HasPrefix(info.Name(), ".") {
			return nil
		}
		if info.Size() == 0 || info.Size() > maxFileSizeBytes {
			return nil
		}
		if !config.IncludeTests && isTestFile(info.Name()) {
			return nil
		}

		files = append(files, path)
		return nil
	})

	return files, err
}

func isTestFile(name string) bool {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	return strings.HasSuffix(base, "_test")
}

// indexFiles indexes files concurrently in transactional batches
func (idx *Indexer) indexFiles(ctx context.Context, rootPath string, files []string, config *Config, stats *Statistics) error {
	semaphore := make(chan struct{}, idx.workers)

	var (
		indexed int32
		skipped int32
		failed  int32
		chunks  int32
	)

	batchSize := config.BatchSize
	if batchSize <= 0 {
		batchSize = 20
	}

	g, gctx := errgroup.WithContext(ctx)
	var mu sync.Mutex // guards stats.ErrorMessages

	for i := 0; i < len(files); i += batchSize {
		end := i + batchSize
		if end > len(files) {
			end = len(files)
		}
		batch := files[i:end]

		g.Go(func() error {
			return idx.indexBatch(gctx, rootPath, batch, semaphore, &indexed, &skipped, &failed, &chunks, &mu, stats)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	stats.FilesIndexed = int(indexed)
	stats.FilesSkipped = int(skipped)
	stats.FilesFailed = int(failed)
	stats.ChunksCreated = int(chunks)

	return nil
}

// indexBatch indexes a batch of files within one transaction
func (idx *Indexer) indexBatch(ctx context.Context, rootPath string, files []string,
	semaphore chan struct{}, indexed, skipped, failed, chunks *int32,
	mu *sync.Mutex, stats *Statistics) error {

	tx, err := idx.storage.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, filePath := range files {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case semaphore <- struct{}{}:
		}

		err := idx.indexFile(ctx, tx, rootPath, filePath, indexed, skipped, chunks)
		<-semaphore

		if err != nil {
			atomic.AddInt32(failed, 1)
			mu.Lock()
			stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("%s: %v", filePath, err))
			mu.Unlock()
			continue
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// indexFile indexes a single file
func (idx *Indexer) indexFile(ctx context.Context, store storage.Storage, rootPath,
	filePath string, indexed, skipped, chunks *int32) error {

	relPath, err := filepath.Rel(rootPath, filePath)
	if err != nil {
		return err
	}

	content, info, err := readTextFile(filePath)
	if err != nil {
		return err
	}
	if content == nil {
		// Binary or non-UTF-8 content
		atomic.AddInt32(skipped, 1)
		return nil
	}

	hash := chunker.ContentHash(string(content))

	existing, err := store.GetSource(ctx, relPath)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	source := &storage.Source{
		Path: relPath,
		Kind: storage.SourceFile,
	}
	if existing != nil {
		if existing.ContentHash == hash {
			atomic.AddInt32(skipped, 1)
			return nil
		}
		source = existing
		if err := store.DeleteChunksBySource(ctx, existing.ID); err != nil {
			return fmt.Errorf("failed to delete stale chunks: %w", err)
		}
	}

	source.ContentHash = hash
	source.SizeBytes = info.Size()
	source.ModTime = info.ModTime()
	source.LastIndexedAt = time.Now()

	if err := store.UpsertSource(ctx, source); err != nil {
		return err
	}

	fileChunks := idx.chunker.ChunkContent(string(content), source.ID)
	for _, chunk := range fileChunks {
		if err := store.UpsertChunk(ctx, chunk); err != nil {
			return fmt.Errorf("failed to store chunk: %w", err)
		}
	}

	atomic.AddInt32(indexed, 1)
	atomic.AddInt32(chunks, int32(len(fileChunks)))

	return nil
}

// readTextFile returns file content if it looks like UTF-8 text, or a nil
// slice for binary content
func readTextFile(filePath string) ([]byte, os.FileInfo, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		return nil, nil, err
	}

	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, nil, err
	}

	if !utf8.Valid(content) || strings.ContainsRune(string(content[:min(len(content), 1024)]), 0) {
		return nil, info, nil
	}

	return content, info, nil
}
