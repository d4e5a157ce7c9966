package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"research/internal/adapter/store/migrations"
	"research/internal/domain"
	"research/internal/port"
)

// SQLiteCorpusStore keeps the corpus in a SQLite table. Search scans every
// row; the corpus of a single run is small.
type SQLiteCorpusStore struct {
	db        *sql.DB
	path      string
	dimension int
}

var _ port.CorpusStore = (*SQLiteCorpusStore)(nil)

// NewSQLiteCorpusStore opens the database at path and applies migrations.
func NewSQLiteCorpusStore(path string, dimension int) (*SQLiteCorpusStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &SQLiteCorpusStore{db: db, path: path, dimension: dimension}
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Path returns the database file path.
func (s *SQLiteCorpusStore) Path() string {
	return s.path
}

// migrate runs all pending migrations.
func (s *SQLiteCorpusStore) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if name := entry.Name(); strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_documents.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

func (s *SQLiteCorpusStore) Reset(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM documents"); err != nil {
		return fmt.Errorf("clearing documents: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM sqlite_sequence WHERE name = 'documents'"); err != nil {
		return fmt.Errorf("resetting sequence: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteCorpusStore) Insert(ctx context.Context, chunks ...domain.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := checkDimension(s.dimension, chunks); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO documents (url, title, content, embedding) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		if _, err := stmt.ExecContext(ctx, c.URL, c.Title, c.Content, float32SliceToBytes(c.Embedding)); err != nil {
			return fmt.Errorf("inserting chunk: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteCorpusStore) Search(ctx context.Context, embedding []float32, topK int) ([]domain.RankedCandidate, error) {
	if s.dimension != 0 && len(embedding) != s.dimension {
		return nil, fmt.Errorf("%w: query has %d, store expects %d", domain.ErrDimensionMismatch, len(embedding), s.dimension)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT url, title, content, embedding FROM documents ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var chunks []domain.DocumentChunk
	for rows.Next() {
		var (
			c    domain.DocumentChunk
			blob []byte
		)
		if err := rows.Scan(&c.URL, &c.Title, &c.Content, &blob); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		c.Embedding = bytesToFloat32Slice(blob)
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}

	return Rank(embedding, chunks, topK), nil
}

func (s *SQLiteCorpusStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return n, nil
}

// Close closes the database connection.
func (s *SQLiteCorpusStore) Close() error {
	return s.db.Close()
}
