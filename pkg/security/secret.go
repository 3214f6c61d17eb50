package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

const signingSecretBytes = 32

// GenerateSigningSecret produces the shared HMAC key assigned to a subscription
// when the caller does not supply one: 32 random bytes, hex-encoded.
func GenerateSigningSecret() (string, error) {
	buf := make([]byte, signingSecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate signing secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
