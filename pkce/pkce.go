// Package pkce holds the random-string and S256 challenge primitives used by the
// authorization code flow.
package pkce

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
)

// DefaultLength is the number of random bytes used for state and code verifiers.
const DefaultLength = 32

// GenerateRandomString creates a random base64url string (no padding) from
// byteLength bytes of crypto/rand output.
func GenerateRandomString(byteLength int) (string, error) {
	return GenerateRandomStringFrom(rand.Reader, byteLength)
}

// GenerateRandomStringFrom is GenerateRandomString with an injected source.
// The source must be a CSPRNG outside of tests.
func GenerateRandomStringFrom(r io.Reader, byteLength int) (string, error) {
	if byteLength <= 0 {
		return "", fmt.Errorf("byte length must be positive, got %d", byteLength)
	}
	b := make([]byte, byteLength)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Challenge creates a PKCE S256 code challenge from a verifier
func Challenge(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}
