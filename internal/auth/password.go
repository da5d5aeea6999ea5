package auth

import (
	"fmt"
	"regexp"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword generates a bcrypt hash of the password.
func HashPassword(password string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

// CheckPasswordHash compares a plaintext password with a stored bcrypt hash.
// An empty hash never matches.
func CheckPasswordHash(password, hash string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// PasswordPolicy checks new passwords against the configured pattern.
type PasswordPolicy struct {
	re *regexp.Regexp
}

// NewPasswordPolicy compiles pattern. An empty pattern accepts any non-empty password.
func NewPasswordPolicy(pattern string) (*PasswordPolicy, error) {
	if pattern == "" {
		pattern = "^.+$"
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid password pattern: %w", err)
	}
	return &PasswordPolicy{re: re}, nil
}

func (p *PasswordPolicy) Allows(password string) bool {
	return p.re.MatchString(password)
}
