// Package auth provides authentication utilities for ecowatch:
// token persistence, PKCE generation, request signing, and JWT claim decoding.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"github.com/ecowatch/ecowatch/internal/constants"
)

// RandomVerifier creates a cryptographically secure PKCE code verifier of the
// requested length. RFC 7636 requires a length between 43 and 128 characters.
func RandomVerifier(length int) (string, error) {
	if length < constants.PKCEVerifierMinLength || length > constants.PKCEVerifierMaxLength {
		return "", fmt.Errorf("verifier length %d outside allowed range [%d, %d]",
			length, constants.PKCEVerifierMinLength, constants.PKCEVerifierMaxLength)
	}

	// base64url expands 3 bytes to 4 characters, so length bytes always
	// encode to at least length characters.
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	encoded := base64.RawURLEncoding.EncodeToString(b)
	return encoded[:length], nil
}

// ChallengeFromVerifier derives the S256 code challenge for a verifier:
// the base64url encoding (no padding) of the SHA-256 digest of its UTF-8 bytes.
func ChallengeFromVerifier(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
