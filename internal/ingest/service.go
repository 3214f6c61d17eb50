package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/spenzahq/webhook-relay/internal/delivery"
	"github.com/spenzahq/webhook-relay/internal/events"
	"github.com/spenzahq/webhook-relay/internal/subscriptions"
	"github.com/spenzahq/webhook-relay/pkg/db/models"
	pkgerrors "github.com/spenzahq/webhook-relay/pkg/errors"
	"github.com/spenzahq/webhook-relay/pkg/logger"
)

const headerEventType = "X-Event-Type"

// Dispatcher is the slice of the delivery dispatcher the ingest path needs.
type Dispatcher interface {
	Deliver(ctx context.Context, sub *models.WebhookSubscription, payload json.RawMessage, attempt int) delivery.Result
}

// Service receives inbound webhooks: it persists the event, then makes one
// best-effort synchronous delivery attempt. A failed attempt is recorded on
// the event row and left for the retry worker.
type Service interface {
	Receive(ctx context.Context, subscriptionID uuid.UUID, payload json.RawMessage, headers http.Header) (*models.WebhookEvent, error)
}

type service struct {
	subs       subscriptions.Repository
	events     events.Repository
	dispatcher Dispatcher
	logg       *logger.Logger
	now        func() time.Time
}

// NewService wires ingest dependencies.
func NewService(subs subscriptions.Repository, eventsRepo events.Repository, dispatcher Dispatcher, logg *logger.Logger) (Service, error) {
	if subs == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "subscriptions repository required")
	}
	if eventsRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "events repository required")
	}
	if dispatcher == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "delivery dispatcher required")
	}
	return &service{
		subs:       subs,
		events:     eventsRepo,
		dispatcher: dispatcher,
		logg:       logg,
		now:        time.Now,
	}, nil
}

// Receive looks up the subscription, stores the event, and attempts delivery
// once. Unknown and inactive subscriptions are rejected before any row is
// written. The event row is always returned when it was persisted, even if the
// delivery attempt failed; the error then describes the failure.
func (s *service) Receive(ctx context.Context, subscriptionID uuid.UUID, payload json.RawMessage, headers http.Header) (*models.WebhookEvent, error) {
	sub, err := s.subs.FindByID(ctx, subscriptionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find subscription")
	}
	if sub == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound,
			fmt.Sprintf("Subscription with ID %s not found", subscriptionID))
	}
	if !sub.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeInactive, "Subscription is not active")
	}

	event := &models.WebhookEvent{
		SubscriptionID: sub.ID,
		EventType:      extractEventType(payload, headers),
		Payload:        payload,
		Headers:        marshalHeaders(headers),
	}
	if err := s.events.Create(ctx, event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist webhook event")
	}

	ctx = s.log().WithSubscriptionID(ctx, sub.ID.String())
	ctx = s.log().WithEventID(ctx, event.ID.String())

	result := s.dispatcher.Deliver(ctx, sub, payload, 1)
	if result.Delivered() {
		updated, err := s.events.MarkProcessed(ctx, event.ID, 0, s.now().UTC())
		if err != nil {
			return event, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark event processed")
		}
		if updated {
			event.Processed = true
		} else {
			s.log().Warn(ctx, "event row advanced concurrently, skipping processed write")
		}
		s.log().Info(ctx, "webhook delivered")
		return event, nil
	}

	message := result.ErrorMessage()
	updated, err := s.events.MarkFailed(ctx, event.ID, 0, 1, message)
	if err != nil {
		return event, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark event failed")
	}
	if updated {
		event.RetryCount = 1
		event.ProcessingError = &message
	} else {
		s.log().Warn(ctx, "event row advanced concurrently, skipping failure write")
	}
	s.log().Warn(ctx, "webhook delivery failed, left for retry")

	if result.Err != nil {
		return event, result.Err
	}
	return event, pkgerrors.New(pkgerrors.CodeDelivery, message)
}

func (s *service) log() *logger.Logger {
	if s.logg == nil {
		s.logg = logger.Nop()
	}
	return s.logg
}

// extractEventType resolves the event type from the X-Event-Type header first,
// then the payload's "type" or "event" field, falling back to "unknown".
func extractEventType(payload json.RawMessage, headers http.Header) string {
	if headers != nil {
		if v := headers.Get(headerEventType); v != "" {
			return v
		}
	}

	var body struct {
		Type  string `json:"type"`
		Event string `json:"event"`
	}
	if err := json.Unmarshal(payload, &body); err == nil {
		if body.Type != "" {
			return body.Type
		}
		if body.Event != "" {
			return body.Event
		}
	}
	return "unknown"
}

// marshalHeaders flattens single-value headers for storage; multi-value
// headers keep their first value, matching what the upstream sender intended
// in practice.
func marshalHeaders(headers http.Header) json.RawMessage {
	if len(headers) == 0 {
		return nil
	}
	flat := make(map[string]string, len(headers))
	for key, values := range headers {
		if len(values) > 0 {
			flat[key] = values[0]
		}
	}
	raw, err := json.Marshal(flat)
	if err != nil {
		return nil
	}
	return raw
}
