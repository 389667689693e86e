// Package auth implements the credential flows: signup, login, and the
// forgot-password stub. No tokens or sessions are issued; the frontend
// only needs the status outcomes.
package auth

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"interviewd/internal/logging"
	"interviewd/internal/store"
)

var (
	// ErrEmailTaken signals a signup against a registered email.
	ErrEmailTaken = errors.New("user already exists")
	// ErrUserNotFound signals a login or reset for an unknown email.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidCredentials signals a password mismatch.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidInput signals a missing email or password.
	ErrInvalidInput = errors.New("email and password required")
)

// Service runs the credential flows over the user store.
type Service struct {
	store *store.Store
}

// NewService creates an auth service.
func NewService(st *store.Store) *Service {
	return &Service{store: st}
}

// NormalizeEmail trims and lower-cases an email. Applied before every
// lookup or write so case/whitespace variants hit the same account.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Signup registers a new user.
func (s *Service) Signup(email, password string) error {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return ErrInvalidInput
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.store.CreateUser(email, string(hash)); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return ErrEmailTaken
		}
		return err
	}
	logging.Auth("signup: %s", email)
	return nil
}

// Login verifies credentials. Unknown email and wrong password are
// distinct outcomes, mirroring the frontend's expectations.
func (s *Service) Login(email, password string) error {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return ErrInvalidInput
	}

	hash, ok, err := s.store.GetUser(email)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUserNotFound
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		logging.AuthDebug("login rejected: %s", email)
		return ErrInvalidCredentials
	}
	logging.Auth("login: %s", email)
	return nil
}

// ForgotPassword acknowledges a reset request for a known email. Actual
// mail delivery is out of scope.
func (s *Service) ForgotPassword(email string) error {
	email = NormalizeEmail(email)
	if email == "" {
		return ErrInvalidInput
	}

	_, ok, err := s.store.GetUser(email)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUserNotFound
	}
	logging.Auth("password reset requested: %s", email)
	return nil
}
