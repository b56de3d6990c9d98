package random

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// SecureToken generates a URL-safe token of n random bytes, used for OAuth
// state values and session identifiers.
func SecureToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
