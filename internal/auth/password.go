package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	// bcryptCost is the default cost for bcrypt hashing.
	bcryptCost = 10
)

// ErrInvalidSecret is returned when an admin shared secret does not match.
var ErrInvalidSecret = errors.New("invalid admin secret")

// HashPassword generates a bcrypt hash of the password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// ComparePassword compares a bcrypt hashed password with its plaintext version.
func ComparePassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// AdminVerifier checks the shared secret guarding the HTTP admin surface.
// The zero value rejects everything.
type AdminVerifier struct {
	hash string
}

// NewAdminVerifier prefers a pre-computed bcrypt hash and otherwise hashes the
// plaintext password once at startup. Both empty disables admin access.
func NewAdminVerifier(password, hash string) (*AdminVerifier, error) {
	if hash != "" {
		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return nil, fmt.Errorf("admin password hash: %w", err)
		}
		return &AdminVerifier{hash: hash}, nil
	}
	if password == "" {
		return &AdminVerifier{}, nil
	}
	h, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	return &AdminVerifier{hash: h}, nil
}

// Enabled reports whether any secret is configured.
func (v *AdminVerifier) Enabled() bool {
	return v != nil && v.hash != ""
}

// Verify returns ErrInvalidSecret unless secret matches.
func (v *AdminVerifier) Verify(secret string) error {
	if !v.Enabled() || secret == "" {
		return ErrInvalidSecret
	}
	if err := ComparePassword(v.hash, secret); err != nil {
		return ErrInvalidSecret
	}
	return nil
}
