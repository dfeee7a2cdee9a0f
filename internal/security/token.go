package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// NewSessionToken returns an unguessable opaque session identifier.
func NewSessionToken() (string, error) {
	id, errNew := uuid.NewRandom()
	if errNew != nil {
		return "", fmt.Errorf("security: session token: %w", errNew)
	}
	return id.String(), nil
}

// GenerateRandomString returns n random bytes hex encoded.
func GenerateRandomString(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("security: invalid length %d", n)
	}
	buf := make([]byte, n)
	if _, errRead := rand.Read(buf); errRead != nil {
		return "", fmt.Errorf("security: read random: %w", errRead)
	}
	return hex.EncodeToString(buf), nil
}
