package auth

import (
	"errors"
	"fmt"
	"unicode"

	"github.com/storyloom/server/internal/config"
	"golang.org/x/crypto/bcrypt"
)

// PasswordService handles access password operations
type PasswordService struct {
	bcryptCost int
	accessHash string
}

// NewPasswordService creates a new password service with configuration.
// An out-of-range bcrypt cost falls back to the library default.
func NewPasswordService(cfg *config.Config) *PasswordService {
	cost := cfg.Auth.BCryptCost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &PasswordService{
		bcryptCost: cost,
		accessHash: cfg.Auth.AccessPasswordHash,
	}
}

// HashPassword hashes a password using bcrypt
func (s *PasswordService) HashPassword(password string) (string, error) {
	// Validate password strength before hashing
	if err := s.ValidatePasswordStrength(password); err != nil {
		return "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	return string(hash), nil
}

// VerifyPassword verifies a password against a hash
func (s *PasswordService) VerifyPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// VerifyAccessPassword verifies a password against the configured shared
// access password hash.
func (s *PasswordService) VerifyAccessPassword(password string) bool {
	return s.VerifyPassword(password, s.accessHash)
}

// ValidatePasswordStrength validates password meets requirements
// Requirements:
// - Minimum 8 characters
// - At least one uppercase letter
// - At least one lowercase letter
// - At least one number
func (s *PasswordService) ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return errors.New("password must be at least 8 characters long")
	}

	var (
		hasUpper  = false
		hasLower  = false
		hasNumber = false
	)

	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsNumber(char):
			hasNumber = true
		}
	}

	if !hasUpper {
		return errors.New("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return errors.New("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return errors.New("password must contain at least one number")
	}

	return nil
}
