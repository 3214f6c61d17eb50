package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/spenzahq/webhook-relay/pkg/db/models"
	pkgerrors "github.com/spenzahq/webhook-relay/pkg/errors"
	"github.com/spenzahq/webhook-relay/pkg/logger"
	"github.com/spenzahq/webhook-relay/pkg/types"
)

type testIngestService struct {
	receiveFn func(ctx context.Context, subscriptionID uuid.UUID, payload json.RawMessage, headers http.Header) (*models.WebhookEvent, error)
}

func (s *testIngestService) Receive(ctx context.Context, subscriptionID uuid.UUID, payload json.RawMessage, headers http.Header) (*models.WebhookEvent, error) {
	if s.receiveFn != nil {
		return s.receiveFn(ctx, subscriptionID, payload, headers)
	}
	return nil, nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func decodeAck(t *testing.T, resp *httptest.ResponseRecorder) types.IngressAck {
	t.Helper()
	var ack types.IngressAck
	if err := json.Unmarshal(resp.Body.Bytes(), &ack); err != nil {
		t.Fatalf("unmarshal ack: %v", err)
	}
	return ack
}

func TestIngestWebhookSuccessAck(t *testing.T) {
	subscriptionID := uuid.New()
	eventID := uuid.New()
	svc := &testIngestService{
		receiveFn: func(ctx context.Context, sid uuid.UUID, payload json.RawMessage, headers http.Header) (*models.WebhookEvent, error) {
			if sid != subscriptionID {
				t.Fatalf("unexpected subscription %s", sid)
			}
			if string(payload) != `{"type":"order.created"}` {
				t.Fatalf("unexpected payload %s", payload)
			}
			return &models.WebhookEvent{ID: eventID}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/"+subscriptionID.String()+"/events",
		strings.NewReader(`{"type":"order.created"}`))
	req = addRouteParam(req, "subscriptionId", subscriptionID.String())
	resp := httptest.NewRecorder()
	IngestWebhook(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	ack := decodeAck(t, resp)
	if !ack.Success {
		t.Fatalf("expected success ack, got %+v", ack)
	}
	if ack.EventID != eventID.String() {
		t.Fatalf("unexpected event id %s", ack.EventID)
	}
	if ack.Error != "" {
		t.Fatalf("unexpected error %s", ack.Error)
	}
}

func TestIngestWebhookFailedDeliveryStillAcks200(t *testing.T) {
	subscriptionID := uuid.New()
	eventID := uuid.New()
	svc := &testIngestService{
		receiveFn: func(ctx context.Context, sid uuid.UUID, payload json.RawMessage, headers http.Header) (*models.WebhookEvent, error) {
			event := &models.WebhookEvent{ID: eventID}
			return event, pkgerrors.New(pkgerrors.CodeDelivery, "Failed to forward webhook: callback responded with status 500")
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/"+subscriptionID.String()+"/events",
		strings.NewReader(`{"type":"order.created"}`))
	req = addRouteParam(req, "subscriptionId", subscriptionID.String())
	resp := httptest.NewRecorder()
	IngestWebhook(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("delivery failures must still ack 200, got %d", resp.Code)
	}
	ack := decodeAck(t, resp)
	if ack.Success {
		t.Fatal("expected failure ack")
	}
	if ack.EventID != eventID.String() {
		t.Fatalf("failure ack should carry the persisted event id, got %q", ack.EventID)
	}
	if ack.Error != "Failed to forward webhook: callback responded with status 500" {
		t.Fatalf("unexpected error message %q", ack.Error)
	}
}

func TestIngestWebhookUnknownSubscription(t *testing.T) {
	subscriptionID := uuid.New()
	svc := &testIngestService{
		receiveFn: func(ctx context.Context, sid uuid.UUID, payload json.RawMessage, headers http.Header) (*models.WebhookEvent, error) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Subscription with ID "+sid.String()+" not found")
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/"+subscriptionID.String()+"/events",
		strings.NewReader(`{}`))
	req = addRouteParam(req, "subscriptionId", subscriptionID.String())
	resp := httptest.NewRecorder()
	IngestWebhook(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	ack := decodeAck(t, resp)
	if ack.Success {
		t.Fatal("expected failure ack")
	}
	if ack.EventID != "" {
		t.Fatalf("no event should be reported for unknown subscriptions, got %q", ack.EventID)
	}
	if !strings.Contains(ack.Error, "not found") {
		t.Fatalf("unexpected error message %q", ack.Error)
	}
}

func TestIngestWebhookInvalidSubscriptionID(t *testing.T) {
	called := false
	svc := &testIngestService{
		receiveFn: func(ctx context.Context, sid uuid.UUID, payload json.RawMessage, headers http.Header) (*models.WebhookEvent, error) {
			called = true
			return nil, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/not-a-uuid/events", strings.NewReader(`{}`))
	req = addRouteParam(req, "subscriptionId", "not-a-uuid")
	resp := httptest.NewRecorder()
	IngestWebhook(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	ack := decodeAck(t, resp)
	if ack.Success || ack.Error != "invalid subscription id" {
		t.Fatalf("unexpected ack %+v", ack)
	}
	if called {
		t.Fatal("service should not be called for malformed ids")
	}
}

func TestIngestWebhookRejectsInvalidJSONBody(t *testing.T) {
	subscriptionID := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/"+subscriptionID.String()+"/events",
		strings.NewReader("not json"))
	req = addRouteParam(req, "subscriptionId", subscriptionID.String())
	resp := httptest.NewRecorder()
	IngestWebhook(&testIngestService{}, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	ack := decodeAck(t, resp)
	if ack.Success {
		t.Fatal("expected failure ack for invalid json")
	}
	if ack.Error == "" {
		t.Fatal("expected an error message")
	}
}

func addRouteParam(req *http.Request, key, value string) *http.Request {
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}
