package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/spenzahq/webhook-relay/pkg/config"
)

func jwtTestConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "test-secret",
		Issuer:            "webhook-relay",
		ExpirationMinutes: 60,
	}
}

func TestMintAndParseAccessToken(t *testing.T) {
	userID := uuid.New()
	signed, err := MintAccessToken(jwtTestConfig(), time.Now(), AccessTokenPayload{
		UserID: userID,
		Email:  "dev@example.com",
	})
	if err != nil {
		t.Fatalf("unexpected mint error: %v", err)
	}

	claims, err := ParseAccessToken(jwtTestConfig(), signed)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if claims.UserID != userID {
		t.Fatalf("expected user id %s, got %s", userID, claims.UserID)
	}
	if claims.Email != "dev@example.com" {
		t.Fatalf("unexpected email %q", claims.Email)
	}
	if claims.ID == "" {
		t.Fatal("expected a generated jti")
	}
}

func TestParseAccessTokenRejectsWrongSecret(t *testing.T) {
	signed, err := MintAccessToken(jwtTestConfig(), time.Now(), AccessTokenPayload{UserID: uuid.New()})
	if err != nil {
		t.Fatalf("unexpected mint error: %v", err)
	}

	other := jwtTestConfig()
	other.Secret = "different"
	if _, err := ParseAccessToken(other, signed); err == nil {
		t.Fatal("expected parse to fail with wrong secret")
	}
}

func TestParseAccessTokenRejectsExpired(t *testing.T) {
	signed, err := MintAccessToken(jwtTestConfig(), time.Now().Add(-2*time.Hour), AccessTokenPayload{UserID: uuid.New()})
	if err != nil {
		t.Fatalf("unexpected mint error: %v", err)
	}
	if _, err := ParseAccessToken(jwtTestConfig(), signed); err == nil {
		t.Fatal("expected expired token to fail")
	}
}

func TestMintAccessTokenValidation(t *testing.T) {
	cfg := jwtTestConfig()
	cfg.Secret = ""
	if _, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{UserID: uuid.New()}); err == nil {
		t.Fatal("expected missing secret to error")
	}

	if _, err := MintAccessToken(jwtTestConfig(), time.Now(), AccessTokenPayload{}); err == nil {
		t.Fatal("expected missing user id to error")
	}
}
