package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"bookcal/internal/models"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
)

// SQLiteStore keeps the snapshot as a single blob row keyed by
// SnapshotKey. The table carries only opaque snapshots; bookings are
// never decomposed into rows.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	query := `CREATE TABLE IF NOT EXISTS snapshots (
        key TEXT PRIMARY KEY,
        data BLOB NOT NULL,
        updated_at DATETIME NOT NULL
    )`
	if _, err := db.Exec(query); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create snapshots table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Load(ctx context.Context) (*models.Snapshot, error) {
	var data []byte
	query := `SELECT data FROM snapshots WHERE key = ?`
	err := s.db.QueryRowContext(ctx, query, SnapshotKey).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	var snap models.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return &snap, nil
}

func (s *SQLiteStore) Save(ctx context.Context, snap *models.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	query := `INSERT INTO snapshots (key, data, updated_at) VALUES (?, ?, ?)
        ON CONFLICT(key) DO UPDATE SET
            data = excluded.data,
            updated_at = excluded.updated_at`
	if _, err := s.db.ExecContext(ctx, query, SnapshotKey, data, time.Now()); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
