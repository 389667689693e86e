package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"interviewd/internal/logging"
)

// ErrDuplicateEmail signals an insert against an already registered email.
var ErrDuplicateEmail = errors.New("email already registered")

// CreateUser inserts a credential row. The email must already be
// normalized by the auth layer.
func (s *Store) CreateUser(email, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO users (email, password_hash) VALUES (?, ?)`,
		email, passwordHash,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return ErrDuplicateEmail
		}
		logging.Get(logging.CategoryStore).Error("failed to create user %s: %v", email, err)
		return fmt.Errorf("failed to create user: %w", err)
	}
	logging.StoreDebug("user created: %s", email)
	return nil
}

// GetUser returns a user's password hash. The boolean reports existence.
func (s *Store) GetUser(email string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var hash string
	err := s.db.QueryRow(`SELECT password_hash FROM users WHERE email = ?`, email).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return hash, true, nil
}
