package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lodeworks/lode/internal/interfaces"
)

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	// SQLite benefits from a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	return db, nil
}

// SQLiteStateStore implements interfaces.StateStore over a SQLite file.
type SQLiteStateStore struct {
	db *sql.DB
}

var _ interfaces.StateStore = (*SQLiteStateStore)(nil)

// NewSQLiteStateStore opens (creating if needed) the state database at
// path and applies pending migrations.
func NewSQLiteStateStore(path string) (*SQLiteStateStore, error) {
	db, err := openDatabase(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db, stateMigrations); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate state database: %w", err)
	}

	return &SQLiteStateStore{db: db}, nil
}

// Get returns the entry at (partition, key), or interfaces.ErrNotFound.
func (s *SQLiteStateStore) Get(ctx context.Context, partition, key string) (interfaces.StateEntry, error) {
	entry := interfaces.StateEntry{Partition: partition, Key: key}

	err := s.db.QueryRowContext(ctx,
		"SELECT version, data, updated_at FROM state_entries WHERE partition = ? AND key = ?",
		partition, key,
	).Scan(&entry.Version, &entry.Data, &entry.UpdatedAt)
	if err == sql.ErrNoRows {
		return interfaces.StateEntry{}, interfaces.ErrNotFound
	}
	if err != nil {
		return interfaces.StateEntry{}, fmt.Errorf("failed to read state entry: %w", err)
	}
	return entry, nil
}

// Put writes or replaces the entry at (partition, key).
func (s *SQLiteStateStore) Put(ctx context.Context, partition, key string, version int, data []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO state_entries (partition, key, version, data, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (partition, key) DO UPDATE SET
			version = excluded.version,
			data = excluded.data,
			updated_at = excluded.updated_at
	`, partition, key, version, data, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to write state entry: %w", err)
	}
	return nil
}

// Delete removes the entry at (partition, key).
func (s *SQLiteStateStore) Delete(ctx context.Context, partition, key string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM state_entries WHERE partition = ? AND key = ?", partition, key)
	if err != nil {
		return fmt.Errorf("failed to delete state entry: %w", err)
	}
	return nil
}

// List returns the keys present in a partition, sorted.
func (s *SQLiteStateStore) List(ctx context.Context, partition string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT key FROM state_entries WHERE partition = ? ORDER BY key", partition)
	if err != nil {
		return nil, fmt.Errorf("failed to list state entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan state key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// Close closes the database connection
func (s *SQLiteStateStore) Close() error {
	return s.db.Close()
}
