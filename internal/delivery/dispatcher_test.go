package delivery

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/spenzahq/webhook-relay/pkg/config"
	"github.com/spenzahq/webhook-relay/pkg/db/models"
	pkgerrors "github.com/spenzahq/webhook-relay/pkg/errors"
	"github.com/spenzahq/webhook-relay/pkg/signature"
)

func newTestDispatcher() *Dispatcher {
	return NewDispatcher(config.DeliveryConfig{Timeout: 2 * time.Second}, nil, nil)
}

func activeSubscription(callbackURL, secret string) *models.WebhookSubscription {
	return &models.WebhookSubscription{
		ID:          uuid.New(),
		UserID:      uuid.New(),
		SourceURL:   "https://source.example.com/events",
		CallbackURL: callbackURL,
		Secret:      secret,
		IsActive:    true,
	}
}

func TestDeliverSuccess(t *testing.T) {
	payload := json.RawMessage(`{"type":"user.created","data":{"id":1}}`)

	var gotHeaders http.Header
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sub := activeSubscription(srv.URL, "shared-secret")
	result := newTestDispatcher().Deliver(context.Background(), sub, payload, 1)

	if !result.Delivered() {
		t.Fatalf("expected delivered result, got %+v", result)
	}
	if result.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", result.StatusCode)
	}
	if string(gotBody) != string(payload) {
		t.Fatalf("payload not forwarded verbatim: %s", gotBody)
	}
	if ct := gotHeaders.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if ua := gotHeaders.Get("User-Agent"); ua != userAgent {
		t.Fatalf("unexpected user agent %q", ua)
	}
	if src := gotHeaders.Get(headerWebhookSource); src != sub.SourceURL {
		t.Fatalf("unexpected source header %q", src)
	}
	if ts := gotHeaders.Get(headerEventTimestamp); ts == "" {
		t.Fatal("expected event timestamp header")
	} else if _, err := time.Parse(time.RFC3339, ts); err != nil {
		t.Fatalf("timestamp not RFC3339: %q", ts)
	}
	if gotHeaders.Get(headerRetryAttempt) != "" {
		t.Fatal("first attempt must not carry a retry header")
	}

	want := signature.SignBytes(payload, "shared-secret")
	if sig := gotHeaders.Get(signature.Header); sig != want {
		t.Fatalf("signature mismatch: got %q want %q", sig, want)
	}
}

func TestDeliverWithoutSecretOmitsSignature(t *testing.T) {
	var gotHeaders http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sub := activeSubscription(srv.URL, "")
	result := newTestDispatcher().Deliver(context.Background(), sub, json.RawMessage(`{}`), 1)

	if !result.Delivered() {
		t.Fatalf("expected delivered result, got %+v", result)
	}
	if _, ok := gotHeaders[signature.Header]; ok {
		t.Fatal("expected no signature header without a secret")
	}
}

func TestDeliverRetryAttemptHeaders(t *testing.T) {
	var gotHeaders http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	result := newTestDispatcher().Deliver(context.Background(), activeSubscription(srv.URL, ""), json.RawMessage(`{}`), 3)
	if !result.Delivered() {
		t.Fatalf("expected delivered result, got %+v", result)
	}
	if got := gotHeaders.Get(headerRetryAttempt); got != "3" {
		t.Fatalf("expected retry attempt header 3, got %q", got)
	}
	if ua := gotHeaders.Get("User-Agent"); ua != userAgentRetry {
		t.Fatalf("expected retry user agent, got %q", ua)
	}
}

func TestDeliverNon2xxIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	result := newTestDispatcher().Deliver(context.Background(), activeSubscription(srv.URL, ""), json.RawMessage(`{}`), 1)
	if result.Delivered() {
		t.Fatal("expected failure for 503")
	}
	if result.Outcome != OutcomeFailed {
		t.Fatalf("expected failed outcome, got %s", result.Outcome)
	}
	if result.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", result.StatusCode)
	}
	if !pkgerrors.IsCode(result.Err, pkgerrors.CodeDelivery) {
		t.Fatalf("expected delivery error, got %v", result.Err)
	}
}

func TestDeliverUnreachableCallback(t *testing.T) {
	// reserved but unroutable without a listener
	result := newTestDispatcher().Deliver(context.Background(),
		activeSubscription("http://127.0.0.1:1", ""), json.RawMessage(`{}`), 1)
	if result.Delivered() {
		t.Fatal("expected failure for unreachable callback")
	}
	if result.ErrorMessage() == "" {
		t.Fatal("expected a failure message for the event row")
	}
}

func TestDeliverInactiveSubscriptionSkipsRequest(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer srv.Close()

	sub := activeSubscription(srv.URL, "")
	sub.IsActive = false

	result := newTestDispatcher().Deliver(context.Background(), sub, json.RawMessage(`{}`), 2)
	if result.Outcome != OutcomeInactive {
		t.Fatalf("expected inactive outcome, got %s", result.Outcome)
	}
	if result.ErrorMessage() != "Subscription is not active" {
		t.Fatalf("unexpected message %q", result.ErrorMessage())
	}
	if requests != 0 {
		t.Fatalf("expected no outbound request, saw %d", requests)
	}
}
