package sharing

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
)

const (
	KeyLength = 8
	// Excludes I, O, 0 and 1.
	keyAlphabet    = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	maxKeyAttempts = 10
	tokenBytes     = 32
)

var keyPattern = regexp.MustCompile(`^[A-Z0-9]{8}$`)

// ValidKey reports whether key has the shape of a share key.
func ValidKey(key string) bool {
	return keyPattern.MatchString(key)
}

// NewKey returns a random share key.
func NewKey() (string, error) {
	buf := make([]byte, KeyLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	for i, b := range buf {
		// len(keyAlphabet) is 32, so the mask keeps the draw uniform.
		buf[i] = keyAlphabet[b&31]
	}
	return string(buf), nil
}

// NewToken returns a random hex invitation token.
func NewToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
