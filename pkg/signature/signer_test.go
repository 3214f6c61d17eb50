package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	pkgerrors "github.com/spenzahq/webhook-relay/pkg/errors"
)

func expectedDigest(t *testing.T, payload []byte, secret string) string {
	t.Helper()
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestSignStringPayloadIsVerbatim(t *testing.T) {
	payload := `{"type":"user.created"}`
	got, err := Sign(payload, "topsecret")
	if err != nil {
		t.Fatalf("unexpected sign error: %v", err)
	}
	if want := expectedDigest(t, []byte(payload), "topsecret"); got != want {
		t.Fatalf("digest mismatch: got %s want %s", got, want)
	}
}

func TestSignIsDeterministic(t *testing.T) {
	payload := []byte(`{"event":"ping","n":1}`)
	first, err := Sign(payload, "k")
	if err != nil {
		t.Fatalf("unexpected sign error: %v", err)
	}
	second, err := Sign(payload, "k")
	if err != nil {
		t.Fatalf("unexpected sign error: %v", err)
	}
	if first != second {
		t.Fatalf("expected stable digests, got %s and %s", first, second)
	}
}

func TestSignStructPayloadSerializes(t *testing.T) {
	payload := map[string]string{"type": "order.paid"}
	got, err := Sign(payload, "k")
	if err != nil {
		t.Fatalf("unexpected sign error: %v", err)
	}
	if want := expectedDigest(t, []byte(`{"type":"order.paid"}`), "k"); got != want {
		t.Fatalf("digest mismatch: got %s want %s", got, want)
	}
}

func TestSignUnserializablePayload(t *testing.T) {
	_, err := Sign(make(chan int), "k")
	if err == nil {
		t.Fatal("expected serialization error")
	}
	if !pkgerrors.IsCode(err, pkgerrors.CodeSerialization) {
		t.Fatalf("expected %s, got %v", pkgerrors.CodeSerialization, err)
	}
}

func TestVerify(t *testing.T) {
	payload := []byte(`{"type":"user.created"}`)
	digest := SignBytes(payload, "shared")

	if !Verify(payload, "shared", digest) {
		t.Fatal("expected digest to verify")
	}
	if Verify(payload, "other", digest) {
		t.Fatal("expected digest with wrong secret to fail")
	}
	if Verify(payload, "shared", "") {
		t.Fatal("expected empty digest to fail")
	}
}
