package db

import (
	"fmt"
	"time"
)

// Credentials represents the structure for storing credentials
type Credentials struct {
	Key       string
	Value     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// StoreCredential stores a credential in the database
func (s *SQLiteHelper) StoreCredential(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	_, err := s.db.Exec(`
		INSERT INTO credentials (key, value, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, key, value, now, now)
	if err != nil {
		s.log.Error("Failed to store credential", map[string]interface{}{
			"error": err.Error(),
			"key":   key,
		})
		return fmt.Errorf("failed to store credential: %w", err)
	}

	return nil
}

// GetCredential retrieves a credential from the database
func (s *SQLiteHelper) GetCredential(key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value string
	err := s.db.QueryRow(`SELECT value FROM credentials WHERE key = ?`, key).Scan(&value)
	if err != nil {
		return "", fmt.Errorf("failed to get credential: %w", err)
	}
	return value, nil
}

// DeleteCredential deletes a credential from the database
func (s *SQLiteHelper) DeleteCredential(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`DELETE FROM credentials WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	return nil
}

// ListCredentials retrieves all credentials from the database
func (s *SQLiteHelper) ListCredentials() ([]Credentials, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT key, value, created_at, updated_at FROM credentials ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}
	defer rows.Close()

	var creds []Credentials
	for rows.Next() {
		var c Credentials
		if err := rows.Scan(&c.Key, &c.Value, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan credential: %w", err)
		}
		creds = append(creds, c)
	}
	return creds, rows.Err()
}
