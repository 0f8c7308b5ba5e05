// Package cache persists the last-applied project config snapshot per
// project code, so a restarted agent can compare against the previously
// seen configHash without an immediate round-trip (spec.md §6,
// "Persisted state").
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/mbc-net/ai-support-agent/internal/controlplane"
)

// Store wraps a single-file SQLite database used only for this cache.
type Store struct {
	db *sql.DB
}

// Open creates (or reuses) the SQLite file at dbPath and ensures the cache
// table exists.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("cache: open database: %w", err)
	}

	// One project runtime writes its own row; a single connection avoids
	// SQLite's single-writer lock contention entirely.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("cache: set pragma: %w", err)
		}
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS project_config_cache (
	project_code TEXT PRIMARY KEY,
	config_hash  TEXT NOT NULL,
	snapshot     TEXT NOT NULL,
	updated_at   TEXT NOT NULL
)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: create table: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put stores the last-applied snapshot for a project, replacing any prior
// entry.
func (s *Store) Put(ctx context.Context, projectCode string, snapshot controlplane.ProjectConfigResponse) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("cache: marshal snapshot: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO project_config_cache (project_code, config_hash, snapshot, updated_at)
VALUES (?, ?, ?, datetime('now'))
ON CONFLICT(project_code) DO UPDATE SET
	config_hash = excluded.config_hash,
	snapshot    = excluded.snapshot,
	updated_at  = excluded.updated_at
`, projectCode, snapshot.ConfigHash, string(data))
	if err != nil {
		return fmt.Errorf("cache: upsert snapshot: %w", err)
	}
	return nil
}

// Get returns the last-applied snapshot and its hash for a project, or
// (nil, "", nil) if nothing has been cached yet.
func (s *Store) Get(ctx context.Context, projectCode string) (*controlplane.ProjectConfigResponse, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `
SELECT snapshot FROM project_config_cache WHERE project_code = ?
`, projectCode).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache: query snapshot: %w", err)
	}

	var snapshot controlplane.ProjectConfigResponse
	if err := json.Unmarshal([]byte(raw), &snapshot); err != nil {
		return nil, fmt.Errorf("cache: unmarshal snapshot: %w", err)
	}
	return &snapshot, nil
}

// LastHash returns the configHash of the cached snapshot for a project, or
// "" if none is cached.
func (s *Store) LastHash(ctx context.Context, projectCode string) (string, error) {
	var hash string
	err := s.db.QueryRowContext(ctx, `
SELECT config_hash FROM project_config_cache WHERE project_code = ?
`, projectCode).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("cache: query hash: %w", err)
	}
	return hash, nil
}
