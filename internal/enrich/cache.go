package enrich

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Cache persists analysis results keyed by content hash, so re-opening the
// same repository (or re-clicking an unchanged file after a restart) skips
// the provider call. Only analysis output is stored; the visual graph itself
// is never persisted.
type Cache struct {
	db *sql.DB
}

// OpenCache opens (creating if needed) the cache database at path.
func OpenCache(path string) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("enrich: open cache: %w", err)
	}

	schema := `CREATE TABLE IF NOT EXISTS analyses (
		content_hash TEXT PRIMARY KEY,
		file_name    TEXT NOT NULL,
		summary      TEXT NOT NULL,
		items        TEXT NOT NULL,
		created_at   TIMESTAMP NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("enrich: init cache schema: %w", err)
	}

	return &Cache{db: db}, nil
}

// Close releases the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Get returns the cached analysis for the given content hash, or nil if the
// hash has not been seen.
func (c *Cache) Get(ctx context.Context, hash string) (*Analysis, error) {
	var summary, itemsJSON string
	err := c.db.QueryRowContext(ctx,
		`SELECT summary, items FROM analyses WHERE content_hash = ?`, hash).
		Scan(&summary, &itemsJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("enrich: cache read: %w", err)
	}

	var items []Item
	if err := json.Unmarshal([]byte(itemsJSON), &items); err != nil {
		return nil, fmt.Errorf("enrich: cache decode: %w", err)
	}
	return &Analysis{Summary: summary, Items: items}, nil
}

// Put stores an analysis result under the given content hash.
func (c *Cache) Put(ctx context.Context, hash, name string, analysis *Analysis) error {
	items := analysis.Items
	if items == nil {
		items = []Item{}
	}
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("enrich: cache encode: %w", err)
	}

	_, err = c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO analyses (content_hash, file_name, summary, items, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		hash, name, analysis.Summary, string(itemsJSON), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("enrich: cache write: %w", err)
	}
	return nil
}
