package vectordb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/0xcro3dile/ragchat-go/internal/domain/entities"
	"github.com/0xcro3dile/ragchat-go/internal/domain/ports"
)

// SQLiteDB is a file-backed vector database. Each session gets its own
// collection inside the same file.
type SQLiteDB struct {
	mu   sync.RWMutex
	db   *sql.DB
	path string
}

// OpenSQLite opens (or creates) the database at path.
func OpenSQLite(path string) (*SQLiteDB, error) {
	if path == "" {
		path = filepath.Join("data", "vectors.db")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteDB{db: db, path: path}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return s, nil
}

// initSchema creates the necessary tables. seq records insertion order.
func (s *SQLiteDB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS chunks (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		document_id TEXT NOT NULL,
		source_name TEXT,
		content TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		char_offset INTEGER NOT NULL,
		embedding BLOB NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_collection ON chunks(collection, seq);
	`
	_, err := s.db.Exec(schema)
	return err
}

// NewStore binds a collection. Collections are created on first write.
func (s *SQLiteDB) NewStore(ctx context.Context, collection string) (ports.VectorStore, error) {
	if collection == "" {
		return nil, fmt.Errorf("collection name must not be empty")
	}
	return &SQLiteStore{parent: s, collection: collection}, nil
}

// Collections lists collections that currently hold chunks.
func (s *SQLiteDB) Collections(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT collection FROM chunks ORDER BY collection")
	if err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

// SQLiteStore implements ports.VectorStore for one collection of a SQLiteDB.
type SQLiteStore struct {
	parent     *SQLiteDB
	collection string
}

// Store saves chunks with their embeddings in one transaction.
func (s *SQLiteStore) Store(ctx context.Context, chunks []entities.Chunk) error {
	s.parent.mu.Lock()
	defer s.parent.mu.Unlock()

	tx, err := s.parent.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (collection, id, document_id, source_name, content, chunk_index, char_offset, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		embeddingJSON, err := json.Marshal(chunk.Embedding)
		if err != nil {
			return fmt.Errorf("encoding embedding: %w", err)
		}

		_, err = stmt.ExecContext(ctx,
			s.collection,
			chunk.ID,
			chunk.DocumentID,
			chunk.SourceName,
			chunk.Content,
			chunk.Index,
			chunk.Offset,
			embeddingJSON,
		)
		if err != nil {
			return fmt.Errorf("inserting chunk: %w", err)
		}
	}

	return tx.Commit()
}

// Search finds the most similar chunks to a query embedding.
func (s *SQLiteStore) Search(ctx context.Context, embedding []float32, topK int) ([]entities.QueryResult, error) {
	s.parent.mu.RLock()
	defer s.parent.mu.RUnlock()

	rows, err := s.parent.db.QueryContext(ctx, `
		SELECT id, document_id, source_name, content, chunk_index, char_offset, embedding
		FROM chunks
		WHERE collection = ?
		ORDER BY seq
	`, s.collection)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []entities.Chunk
	for rows.Next() {
		var chunk entities.Chunk
		var embeddingJSON []byte
		var sourceName sql.NullString

		err := rows.Scan(&chunk.ID, &chunk.DocumentID, &sourceName, &chunk.Content,
			&chunk.Index, &chunk.Offset, &embeddingJSON)
		if err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		chunk.SourceName = sourceName.String

		if err := json.Unmarshal(embeddingJSON, &chunk.Embedding); err != nil {
			return nil, fmt.Errorf("decoding embedding of chunk %s: %w", chunk.ID, err)
		}
		chunks = append(chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading chunks: %w", err)
	}

	return rank(embedding, chunks, topK), nil
}

// Count returns the number of stored chunks.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	s.parent.mu.RLock()
	defer s.parent.mu.RUnlock()

	var count int
	err := s.parent.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks WHERE collection = ?", s.collection).Scan(&count)
	return count, err
}

// Clear drops the collection.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	s.parent.mu.Lock()
	defer s.parent.mu.Unlock()

	_, err := s.parent.db.ExecContext(ctx, "DELETE FROM chunks WHERE collection = ?", s.collection)
	return err
}
