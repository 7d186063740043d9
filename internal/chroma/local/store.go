// Package local implements the chroma collaborator on an embedded SQLite database.
// Persistent mode stores everything in DATA_DIR/chroma.sqlite3; ephemeral mode keeps
// a private in-memory database that disappears with the process.
package local

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/raphaelgruber/chroma-mcp/internal/chroma"
	"github.com/raphaelgruber/chroma-mcp/internal/embedding"

	_ "modernc.org/sqlite"
)

// DatabaseFile is the file name used inside the data directory.
const DatabaseFile = "chroma.sqlite3"

const schema = `
CREATE TABLE IF NOT EXISTS collections (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL UNIQUE,
	metadata TEXT,
	embedding_function TEXT NOT NULL,
	hnsw TEXT NOT NULL,
	dimension INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS documents (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	collection_id TEXT NOT NULL,
	id TEXT NOT NULL,
	document TEXT NOT NULL,
	metadata TEXT,
	embedding TEXT NOT NULL,
	UNIQUE(collection_id, id),
	FOREIGN KEY(collection_id) REFERENCES collections(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_documents_collection
ON documents(collection_id, seq);`

// Config configures the SQLite store.
type Config struct {
	// DataDir holds the database file. Empty selects an in-memory database.
	DataDir string

	// Embeddings resolves each collection's embedding function.
	Embeddings *embedding.Provider

	Logger *slog.Logger
}

// Store is a SQLite-backed chroma.Client.
type Store struct {
	db         *sql.DB
	embeddings *embedding.Provider
	logger     *slog.Logger
}

var _ chroma.Client = (*Store)(nil)

// Open opens (or creates) the store described by cfg.
func Open(cfg Config) (*Store, error) {
	if cfg.Embeddings == nil {
		cfg.Embeddings = embedding.NewProvider(embedding.Config{})
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	path, dsn := ":memory:", ":memory:"
	if strings.TrimSpace(cfg.DataDir) != "" {
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
		path = filepath.Join(cfg.DataDir, DatabaseFile)
		dsn = fileDSN(path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	if dsn == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
		if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite enable foreign keys: %w", err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite create schema: %w", err)
	}

	cfg.Logger.Info("opened sqlite store", "path", path)
	return &Store{db: db, embeddings: cfg.Embeddings, logger: cfg.Logger}, nil
}

// fileDSN sets the pragmas on every pooled connection. _txlock=immediate takes the
// write lock at BEGIN so writers queue on busy_timeout.
func fileDSN(path string) string {
	q := url.Values{}
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Set("_txlock", "immediate")
	return "file:" + filepath.ToSlash(path) + "?" + q.Encode()
}

// Close closes the database.
func (s *Store) Close(context.Context) error {
	return s.db.Close()
}

// ListCollections returns collection names in creation order.
func (s *Store) ListCollections(ctx context.Context, limit, offset *int) ([]string, error) {
	query := "SELECT name FROM collections ORDER BY seq ASC LIMIT ? OFFSET ?"
	lim, off := -1, 0
	if limit != nil {
		lim = *limit
	}
	if offset != nil {
		off = *offset
	}
	if lim < -1 || off < 0 {
		return nil, fmt.Errorf("%w: limit and offset must not be negative", chroma.ErrInvalidArgument)
	}

	rows, err := s.db.QueryContext(ctx, query, lim, off)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan collection: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// CreateCollection creates a collection with a fresh uuid.
func (s *Store) CreateCollection(ctx context.Context, name string, opts chroma.CreateOptions) (chroma.Collection, error) {
	if err := chroma.ValidateName(name); err != nil {
		return nil, err
	}
	fn := opts.EmbeddingFunction
	if fn == "" {
		fn = chroma.DefaultEmbeddingFunction
	}
	if !embedding.Known(fn) {
		return nil, fmt.Errorf("%w: unknown embedding function %q", chroma.ErrInvalidArgument, fn)
	}
	if !chroma.ValidSpace(opts.HNSW.SpaceOrDefault()) {
		return nil, fmt.Errorf("%w: unknown space %q", chroma.ErrInvalidArgument, opts.HNSW.SpaceOrDefault())
	}

	metadata, err := marshalNullable(opts.Metadata)
	if err != nil {
		return nil, err
	}
	hnsw, err := json.Marshal(opts.HNSW)
	if err != nil {
		return nil, fmt.Errorf("marshal hnsw: %w", err)
	}

	id := uuid.NewString()
	_, err = s.db.ExecContext(ctx, `
INSERT INTO collections (id, name, metadata, embedding_function, hnsw, created_at)
VALUES (?, ?, ?, ?, ?, ?)`, id, name, metadata, fn, string(hnsw), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", chroma.ErrAlreadyExists, name)
		}
		return nil, fmt.Errorf("create collection: %w", err)
	}

	s.logger.Debug("created collection", "name", name, "id", id, "embedding_function", fn)
	return &collection{store: s, id: id, name: name}, nil
}

// GetCollection resolves a collection by name.
func (s *Store) GetCollection(ctx context.Context, name string) (chroma.Collection, error) {
	var id string
	err := s.db.QueryRowContext(ctx, "SELECT id FROM collections WHERE name = ?", name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", chroma.ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("get collection: %w", err)
	}
	return &collection{store: s, id: id, name: name}, nil
}

// DeleteCollection removes a collection and its documents.
func (s *Store) DeleteCollection(ctx context.Context, name string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var id string
	err = tx.QueryRowContext(ctx, "SELECT id FROM collections WHERE name = ?", name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", chroma.ErrNotFound, name)
	}
	if err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE collection_id = ?", id); err != nil {
		return fmt.Errorf("delete collection documents: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM collections WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	return tx.Commit()
}

func marshalNullable(v map[string]any) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("%w: metadata: %v", chroma.ErrInvalidArgument, err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func unmarshalNullable(v sql.NullString) (map[string]any, error) {
	if !v.Valid {
		return nil, nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(v.String), &out); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return out, nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
