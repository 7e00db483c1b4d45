package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrUnavailable is returned when the ranked-match backend cannot be
	// reached. This is the one search-path failure that propagates to the
	// caller; there is no meaningful fallback for zero results.
	ErrUnavailable = errors.New("search provider unavailable")
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite benefits from a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Apply migrations
	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx, storage: s}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

// querier returns the transaction querier
func (t *sqliteTx) querier() querier {
	return t.tx
}

// querier returns the DB querier
func (s *SQLiteStorage) querier() querier {
	return s.db
}

// Source operations

// upsertSourceWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) upsertSourceWithQuerier(ctx context.Context, q querier, source *Source) error {
	query := `
		INSERT INTO sources (path, kind, content_hash, size_bytes, mod_time, last_indexed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			kind = excluded.kind,
			content_hash = excluded.content_hash,
			size_bytes = excluded.size_bytes,
			mod_time = excluded.mod_time,
			last_indexed_at = excluded.last_indexed_at,
			updated_at = excluded.updated_at
	`
	now := time.Now()
	if source.Kind == "" {
		source.Kind = SourceFile
	}
	_, err := q.ExecContext(ctx, query,
		source.Path, source.Kind, source.ContentHash[:], source.SizeBytes,
		source.ModTime, source.LastIndexedAt, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert source: %w", err)
	}

	// ON CONFLICT updates don't report the row ID, so read it back
	row := q.QueryRowContext(ctx, "SELECT id, created_at FROM sources WHERE path = ?", source.Path)
	if err := row.Scan(&source.ID, &source.CreatedAt); err != nil {
		return fmt.Errorf("failed to read back source id: %w", err)
	}
	source.UpdatedAt = now
	return nil
}

func (s *SQLiteStorage) UpsertSource(ctx context.Context, source *Source) error {
	return s.upsertSourceWithQuerier(ctx, s.querier(), source)
}

func (s *SQLiteStorage) getSourceWithQuerier(ctx context.Context, q querier, where string, arg interface{}) (*Source, error) {
	query := `
		SELECT id, path, kind, content_hash, size_bytes, mod_time, last_indexed_at, created_at, updated_at
		FROM sources WHERE ` + where
	row := q.QueryRowContext(ctx, query, arg)

	var source Source
	var hash []byte
	var modTime, lastIndexed sql.NullTime
	err := row.Scan(&source.ID, &source.Path, &source.Kind, &hash, &source.SizeBytes,
		&modTime, &lastIndexed, &source.CreatedAt, &source.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get source: %w", err)
	}

	copy(source.ContentHash[:], hash)
	if modTime.Valid {
		source.ModTime = modTime.Time
	}
	if lastIndexed.Valid {
		source.LastIndexedAt = lastIndexed.Time
	}
	return &source, nil
}

func (s *SQLiteStorage) GetSource(ctx context.Context, path string) (*Source, error) {
	return s.getSourceWithQuerier(ctx, s.querier(), "path = ?", path)
}

func (s *SQLiteStorage) GetSourceByID(ctx context.Context, sourceID int64) (*Source, error) {
	return s.getSourceWithQuerier(ctx, s.querier(), "id = ?", sourceID)
}

func (s *SQLiteStorage) ListSources(ctx context.Context) ([]*Source, error) {
	query := `
		SELECT id, path, kind, content_hash, size_bytes, mod_time, last_indexed_at, created_at, updated_at
		FROM sources
		ORDER BY path
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	sources := make([]*Source, 0)
	for rows.Next() {
		var source Source
		var hash []byte
		var modTime, lastIndexed sql.NullTime
		err := rows.Scan(&source.ID, &source.Path, &source.Kind, &hash, &source.SizeBytes,
			&modTime, &lastIndexed, &source.CreatedAt, &source.UpdatedAt)
		if err != nil {
			return nil, err
		}
		copy(source.ContentHash[:], hash)
		if modTime.Valid {
			source.ModTime = modTime.Time
		}
		if lastIndexed.Valid {
			source.LastIndexedAt = lastIndexed.Time
		}
		sources = append(sources, &source)
	}
	return sources, rows.Err()
}

func (s *SQLiteStorage) DeleteSource(ctx context.Context, sourceID int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM sources WHERE id = ?", sourceID)
	return err
}

// Chunk operations

// upsertChunkWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) upsertChunkWithQuerier(ctx context.Context, q querier, chunk *Chunk) error {
	query := `
		INSERT INTO chunks (source_id, kind, content, content_hash, token_count, start_line, end_line, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	now := time.Now()
	if chunk.Kind == "" {
		chunk.Kind = ChunkCode
	}
	result, err := q.ExecContext(ctx, query,
		chunk.SourceID, chunk.Kind, chunk.Content, chunk.ContentHash[:],
		chunk.TokenCount, chunk.StartLine, chunk.EndLine, now)
	if err != nil {
		return fmt.Errorf("failed to upsert chunk: %w", err)
	}

	if chunk.ID == 0 {
		id, err := result.LastInsertId()
		if err == nil {
			chunk.ID = id
		}
	}
	chunk.CreatedAt = now
	return nil
}

func (s *SQLiteStorage) UpsertChunk(ctx context.Context, chunk *Chunk) error {
	return s.upsertChunkWithQuerier(ctx, s.querier(), chunk)
}

func (s *SQLiteStorage) GetChunk(ctx context.Context, chunkID int64) (*Chunk, error) {
	query := `
		SELECT id, source_id, kind, content, content_hash, token_count, start_line, end_line, created_at
		FROM chunks WHERE id = ?
	`
	row := s.db.QueryRowContext(ctx, query, chunkID)

	var chunk Chunk
	var hash []byte
	err := row.Scan(&chunk.ID, &chunk.SourceID, &chunk.Kind, &chunk.Content, &hash,
		&chunk.TokenCount, &chunk.StartLine, &chunk.EndLine, &chunk.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chunk: %w", err)
	}
	copy(chunk.ContentHash[:], hash)
	return &chunk, nil
}

func (s *SQLiteStorage) ListChunksBySource(ctx context.Context, sourceID int64) ([]*Chunk, error) {
	query := `
		SELECT id, source_id, kind, content, content_hash, token_count, start_line, end_line, created_at
		FROM chunks
		WHERE source_id = ?
		ORDER BY start_line
	`
	rows, err := s.db.QueryContext(ctx, query, sourceID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	chunks := make([]*Chunk, 0)
	for rows.Next() {
		var chunk Chunk
		var hash []byte
		err := rows.Scan(&chunk.ID, &chunk.SourceID, &chunk.Kind, &chunk.Content, &hash,
			&chunk.TokenCount, &chunk.StartLine, &chunk.EndLine, &chunk.CreatedAt)
		if err != nil {
			return nil, err
		}
		copy(chunk.ContentHash[:], hash)
		chunks = append(chunks, &chunk)
	}
	return chunks, rows.Err()
}

func (s *SQLiteStorage) DeleteChunksBySource(ctx context.Context, sourceID int64) error {
	return s.deleteChunksBySourceWithQuerier(ctx, s.querier(), sourceID)
}

// deleteChunksBySourceWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) deleteChunksBySourceWithQuerier(ctx context.Context, q querier, sourceID int64) error {
	_, err := q.ExecContext(ctx, "DELETE FROM chunks WHERE source_id = ?", sourceID)
	return err
}

// Search operations

func (s *SQLiteStorage) SearchText(ctx context.Context, query string, limit int) ([]TextMatch, error) {
	// Implementation in fts.go
	return searchText(ctx, s.querier(), query, limit)
}

func (s *SQLiteStorage) CountMatches(ctx context.Context, query string) (int, error) {
	return countMatches(ctx, s.querier(), query)
}

// Status operations

func (s *SQLiteStorage) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{FTSBuilt: true}

	var sourceCount int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sources").Scan(&sourceCount); err != nil {
		return nil, err
	}
	stats.Sources = sourceCount

	var chunkCount int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&chunkCount); err != nil {
		return nil, err
	}
	stats.Chunks = chunkCount

	// Calculate database size
	var pageCount, pageSize int
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err == nil {
		_ = s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		stats.IndexSizeMB = float64(pageCount*pageSize) / (1024 * 1024)
	}

	return stats, nil
}

// Transaction delegates. Searches inside a transaction see the transaction's
// own writes, so they run on the tx querier where it matters.

func (t *sqliteTx) UpsertSource(ctx context.Context, source *Source) error {
	return t.storage.upsertSourceWithQuerier(ctx, t.querier(), source)
}

func (t *sqliteTx) GetSource(ctx context.Context, path string) (*Source, error) {
	return t.storage.getSourceWithQuerier(ctx, t.querier(), "path = ?", path)
}

func (t *sqliteTx) GetSourceByID(ctx context.Context, sourceID int64) (*Source, error) {
	return t.storage.getSourceWithQuerier(ctx, t.querier(), "id = ?", sourceID)
}

func (t *sqliteTx) ListSources(ctx context.Context) ([]*Source, error) {
	return t.storage.ListSources(ctx)
}

func (t *sqliteTx) DeleteSource(ctx context.Context, sourceID int64) error {
	_, err := t.tx.ExecContext(ctx, "DELETE FROM sources WHERE id = ?", sourceID)
	return err
}

func (t *sqliteTx) UpsertChunk(ctx context.Context, chunk *Chunk) error {
	return t.storage.upsertChunkWithQuerier(ctx, t.querier(), chunk)
}

func (t *sqliteTx) GetChunk(ctx context.Context, chunkID int64) (*Chunk, error) {
	return t.storage.GetChunk(ctx, chunkID)
}

func (t *sqliteTx) ListChunksBySource(ctx context.Context, sourceID int64) ([]*Chunk, error) {
	return t.storage.ListChunksBySource(ctx, sourceID)
}

func (t *sqliteTx) DeleteChunksBySource(ctx context.Context, sourceID int64) error {
	return t.storage.deleteChunksBySourceWithQuerier(ctx, t.querier(), sourceID)
}

func (t *sqliteTx) SearchText(ctx context.Context, query string, limit int) ([]TextMatch, error) {
	return searchText(ctx, t.querier(), query, limit)
}

func (t *sqliteTx) CountMatches(ctx context.Context, query string) (int, error) {
	return countMatches(ctx, t.querier(), query)
}

func (t *sqliteTx) GetStats(ctx context.Context) (*Stats, error) {
	return t.storage.GetStats(ctx)
}

func (t *sqliteTx) Close() error {
	return nil // The owning storage closes the connection
}

func (t *sqliteTx) BeginTx(ctx context.Context) (Tx, error) {
	return nil, fmt.Errorf("nested transactions are not supported")
}
