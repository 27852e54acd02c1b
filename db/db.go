package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oklahomer/go-kasumi/logger"

	_ "github.com/mattn/go-sqlite3"
)

const dbDriver = "sqlite3"

// Store wraps the SQLite connection pool holding the submission counter and the blocklist.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the SQLite database at path and migrates it.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	conn, err := sql.Open(dbDriver, path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite allows a single writer
	conn.SetMaxOpenConns(1)

	store := &Store{db: conn}
	if err := store.createTables(); err != nil {
		conn.Close()
		return nil, err
	}

	logger.Infof("Database initialized in %s", path)
	return store, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}
