package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	pkgerrors "github.com/spenzahq/webhook-relay/pkg/errors"
)

// Header carries the payload digest on outbound deliveries.
const Header = "X-Signature"

// Sign computes the lowercase hex HMAC-SHA256 digest of the payload keyed by
// secret. String and raw byte payloads are signed verbatim; anything else is
// serialized to JSON first. Receivers verify by recomputing the digest over the
// raw body they received.
func Sign(payload any, secret string) (string, error) {
	canonical, err := canonicalBytes(payload)
	if err != nil {
		return "", err
	}
	return SignBytes(canonical, secret), nil
}

// SignBytes computes the digest over bytes that are already canonical.
func SignBytes(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether the provided hex digest matches the payload. The
// comparison is constant-time.
func Verify(payload []byte, secret, digest string) bool {
	if digest == "" || secret == "" {
		return false
	}
	expected := SignBytes(payload, secret)
	return hmac.Equal([]byte(expected), []byte(digest))
}

func canonicalBytes(payload any) ([]byte, error) {
	switch p := payload.(type) {
	case string:
		return []byte(p), nil
	case []byte:
		return p, nil
	case json.RawMessage:
		return p, nil
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeSerialization, err, "serialize payload for signing")
	}
	return encoded, nil
}
