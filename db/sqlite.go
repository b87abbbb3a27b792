package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"kiteclient/logger"
)

// SQLiteHelper provides a wrapper around SQLite operations
type SQLiteHelper struct {
	db  *sql.DB
	log *logger.Logger
	mu  sync.RWMutex
}

var (
	instance *SQLiteHelper
	once     sync.Once
)

// GetSQLiteHelper returns a singleton instance of SQLiteHelper
func GetSQLiteHelper(path string) (*SQLiteHelper, error) {
	var initErr error
	once.Do(func() {
		instance, initErr = NewSQLiteHelper(path)
	})

	if initErr != nil {
		return nil, initErr
	}
	if instance == nil {
		return nil, fmt.Errorf("sqlite initialization previously failed")
	}
	return instance, nil
}

// NewSQLiteHelper opens a dedicated store at path, creating the schema.
func NewSQLiteHelper(path string) (*SQLiteHelper, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS credentials (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);
		CREATE TABLE IF NOT EXISTS access_tokens (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			access_token TEXT NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at DATETIME NOT NULL,
			expires_at DATETIME NOT NULL
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteHelper{
		db:  db,
		log: logger.GetLogger(),
	}, nil
}

// Close closes the database connection.
func (s *SQLiteHelper) Close() error {
	return s.db.Close()
}

// StoreAccessToken deactivates any previous token and stores the new one.
// An empty token is rejected rather than persisted as active.
func (s *SQLiteHelper) StoreAccessToken(token string, expiresAt time.Time) error {
	if token == "" {
		return fmt.Errorf("access token must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`UPDATE access_tokens SET is_active = FALSE WHERE is_active = TRUE`); err != nil {
		return fmt.Errorf("failed to deactivate old tokens: %w", err)
	}

	_, err = tx.Exec(
		`INSERT INTO access_tokens (access_token, is_active, created_at, expires_at) VALUES (?, TRUE, ?, ?)`,
		token, time.Now(), expiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store access token: %w", err)
	}

	return tx.Commit()
}

// GetActiveToken returns the latest unexpired token, or an error when none
// exists.
func (s *SQLiteHelper) GetActiveToken() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var token string
	err := s.db.QueryRow(`
		SELECT access_token FROM access_tokens
		WHERE is_active = TRUE AND expires_at > ?
		ORDER BY created_at DESC LIMIT 1
	`, time.Now()).Scan(&token)
	if err != nil {
		return "", fmt.Errorf("no valid token found: %w", err)
	}
	return token, nil
}
