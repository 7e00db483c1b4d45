package storage

import (
	"context"
	"time"
)

// Storage defines the interface for persisting and querying indexed content.
// The full-text search operations are the ranked-match primitive the rest of
// the pipeline is built on; the ranking itself is SQLite FTS5 bm25.
type Storage interface {
	// Source operations
	UpsertSource(ctx context.Context, source *Source) error
	GetSource(ctx context.Context, path string) (*Source, error)
	GetSourceByID(ctx context.Context, sourceID int64) (*Source, error)
	ListSources(ctx context.Context) ([]*Source, error)
	DeleteSource(ctx context.Context, sourceID int64) error

	// Chunk operations
	UpsertChunk(ctx context.Context, chunk *Chunk) error
	GetChunk(ctx context.Context, chunkID int64) (*Chunk, error)
	ListChunksBySource(ctx context.Context, sourceID int64) ([]*Chunk, error)
	DeleteChunksBySource(ctx context.Context, sourceID int64) error

	// Search operations
	SearchText(ctx context.Context, query string, limit int) ([]TextMatch, error)
	CountMatches(ctx context.Context, query string) (int, error)

	// Status operations
	GetStats(ctx context.Context) (*Stats, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	Storage // Embed Storage interface for transaction operations
}

// SourceKind distinguishes indexed files from captured session transcripts
type SourceKind string

const (
	SourceFile    SourceKind = "file"
	SourceSession SourceKind = "session"
)

// Source represents an indexed origin of chunks: a tracked file or a
// captured session
type Source struct {
	ID            int64
	Path          string // Relative file path, or session identifier
	Kind          SourceKind
	ContentHash   [32]byte
	SizeBytes     int64
	ModTime       time.Time
	LastIndexedAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ChunkKind distinguishes code spans from session observations
type ChunkKind string

const (
	ChunkCode        ChunkKind = "code"
	ChunkObservation ChunkKind = "observation"
)

// Chunk represents a searchable content span tied to a source location
type Chunk struct {
	ID          int64
	SourceID    int64
	Kind        ChunkKind
	Content     string
	ContentHash [32]byte
	TokenCount  int
	StartLine   int
	EndLine     int
	CreatedAt   time.Time
}

// TextMatch is a raw ranked match from FTS5. RawRank is the 0-based ordinal
// position in bm25 order (0 = best match); the normalizer converts it to a
// relevance score.
type TextMatch struct {
	ChunkID   int64
	Path      string
	StartLine int
	EndLine   int
	Content   string
	RawRank   int
}

// Stats summarizes store contents and health
type Stats struct {
	Sources     int
	Chunks      int
	IndexSizeMB float64
	FTSBuilt    bool
}
