package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lodeworks/lode/internal/interfaces"
)

// SQLiteDataStore implements interfaces.DataStore over a SQLite file.
type SQLiteDataStore struct {
	db *sql.DB
}

var _ interfaces.DataStore = (*SQLiteDataStore)(nil)

// NewSQLiteDataStore opens (creating if needed) the content database
// at path and applies pending migrations.
func NewSQLiteDataStore(path string) (*SQLiteDataStore, error) {
	db, err := openDatabase(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open data database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db, dataMigrations); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate data database: %w", err)
	}

	return &SQLiteDataStore{db: db}, nil
}

// PutItem writes or replaces an item by its ID.
func (s *SQLiteDataStore) PutItem(ctx context.Context, item interfaces.Item) error {
	if item.ID == "" {
		return fmt.Errorf("item id is empty")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO items (id, url, title, content, content_hash, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			url = excluded.url,
			title = excluded.title,
			content = excluded.content,
			content_hash = excluded.content_hash,
			fetched_at = excluded.fetched_at
	`, item.ID, item.URL, item.Title, item.Text, item.ContentHash, item.FetchedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to write item: %w", err)
	}
	return nil
}

// GetItem returns the item with the given ID, or interfaces.ErrNotFound.
func (s *SQLiteDataStore) GetItem(ctx context.Context, id string) (interfaces.Item, error) {
	item := interfaces.Item{ID: id}

	err := s.db.QueryRowContext(ctx,
		"SELECT url, title, content, content_hash, fetched_at FROM items WHERE id = ?", id,
	).Scan(&item.URL, &item.Title, &item.Text, &item.ContentHash, &item.FetchedAt)
	if err == sql.ErrNoRows {
		return interfaces.Item{}, interfaces.ErrNotFound
	}
	if err != nil {
		return interfaces.Item{}, fmt.Errorf("failed to read item: %w", err)
	}
	return item, nil
}

// SearchItems returns up to limit items whose title or text contains
// the query, newest first. An empty query matches everything.
func (s *SQLiteDataStore) SearchItems(ctx context.Context, query string, limit int) ([]interfaces.Item, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, url, title, content, content_hash, fetched_at
		FROM items
		WHERE title LIKE '%' || ? || '%' OR content LIKE '%' || ? || '%'
		ORDER BY fetched_at DESC
		LIMIT ?
	`, query, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []interfaces.Item
	for rows.Next() {
		var item interfaces.Item
		if err := rows.Scan(&item.ID, &item.URL, &item.Title, &item.Text,
			&item.ContentHash, &item.FetchedAt); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// DeleteOlderThan removes items fetched before the cutoff and returns
// how many were deleted.
func (s *SQLiteDataStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM items WHERE fetched_at < ?", cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete items: %w", err)
	}
	return result.RowsAffected()
}

// Stats summarizes the store's contents.
func (s *SQLiteDataStore) Stats(ctx context.Context) (interfaces.ItemStats, error) {
	var stats interfaces.ItemStats
	var oldest, newest sql.NullTime

	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), MIN(fetched_at), MAX(fetched_at) FROM items",
	).Scan(&stats.Count, &oldest, &newest)
	if err != nil {
		return interfaces.ItemStats{}, fmt.Errorf("failed to read item stats: %w", err)
	}

	if oldest.Valid {
		stats.OldestFetch = oldest.Time
	}
	if newest.Valid {
		stats.NewestFetch = newest.Time
	}
	return stats, nil
}

// Close closes the database connection
func (s *SQLiteDataStore) Close() error {
	return s.db.Close()
}
