// Package auth checks the admin access code and tracks admin login sessions.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt cost used by HashCode.
const DefaultCost = 12

// ErrInvalidCode is returned when an access code does not match.
var ErrInvalidCode = errors.New("invalid access code")

// Matcher answers whether a candidate equals the admin access code.
type Matcher struct {
	plain []byte
	hash  []byte
}

// NewMatcher builds a Matcher from a plain code or a bcrypt hash. The hash wins when both are set.
func NewMatcher(code, hash string) (*Matcher, error) {
	code = strings.TrimSpace(code)
	hash = strings.TrimSpace(hash)

	switch {
	case hash != "":
		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return nil, fmt.Errorf("invalid access code hash: %w", err)
		}
		return &Matcher{hash: []byte(hash)}, nil
	case code != "":
		sum := sha256.Sum256([]byte(code))
		return &Matcher{plain: sum[:]}, nil
	default:
		return nil, fmt.Errorf("an access code or access code hash is required")
	}
}

// Match reports whether candidate is the access code.
func (m *Matcher) Match(candidate string) bool {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return false
	}
	if m.hash != nil {
		return bcrypt.CompareHashAndPassword(m.hash, []byte(candidate)) == nil
	}
	sum := sha256.Sum256([]byte(candidate))
	return subtle.ConstantTimeCompare(m.plain, sum[:]) == 1
}

// HashCode hashes an access code for ADMIN_ACCESS_CODE_HASH.
func HashCode(code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", fmt.Errorf("access code is required")
	}
	bytes, err := bcrypt.GenerateFromPassword([]byte(code), DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash access code: %w", err)
	}
	return string(bytes), nil
}
