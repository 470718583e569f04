package ledger

import (
	"crypto/rand"
	"fmt"
	"strings"
)

const (
	// ReferencePrefix starts every submission reference code.
	ReferencePrefix = "TRF-"
	// ReferenceLength is the number of random characters after the prefix.
	ReferenceLength = 6
	// referenceAlphabet omits I, O, 0 and 1. Its length divides 256 so byte sampling is unbiased.
	referenceAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// ReferenceGenerator produces candidate reference codes.
type ReferenceGenerator func() (string, error)

// NewReferenceCode returns a random reference code such as TRF-7KQ2MX.
func NewReferenceCode() (string, error) {
	buf := make([]byte, ReferenceLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	out := make([]byte, ReferenceLength)
	for i, b := range buf {
		out[i] = referenceAlphabet[int(b)%len(referenceAlphabet)]
	}
	return ReferencePrefix + string(out), nil
}

// IsReferenceCode reports whether code has the reference-code shape.
func IsReferenceCode(code string) bool {
	rest, ok := strings.CutPrefix(code, ReferencePrefix)
	if !ok || len(rest) != ReferenceLength {
		return false
	}
	for i := range len(rest) {
		if !strings.ContainsRune(referenceAlphabet, rune(rest[i])) {
			return false
		}
	}
	return true
}

// NormalizeReference upper-cases code and adds the prefix when the caller typed only the suffix.
func NormalizeReference(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) == ReferenceLength && !strings.HasPrefix(code, ReferencePrefix) {
		return ReferencePrefix + code
	}
	return code
}
