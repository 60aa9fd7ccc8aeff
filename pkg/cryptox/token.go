package cryptox

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// TokenSize256 provides 256 bits of entropy (43 chars base64url).
const TokenSize256 = 32

// GenerateToken creates a cryptographically secure random token of the given
// byte length, base64url-encoded without padding.
func GenerateToken(size int) (string, error) {
	if size <= 0 {
		return "", fmt.Errorf("token size must be positive, got %d", size)
	}

	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}
