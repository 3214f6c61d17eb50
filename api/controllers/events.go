package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/spenzahq/webhook-relay/api/middleware"
	"github.com/spenzahq/webhook-relay/api/responses"
	"github.com/spenzahq/webhook-relay/api/validators"
	"github.com/spenzahq/webhook-relay/internal/ingest"
	"github.com/spenzahq/webhook-relay/internal/subscriptions"
	pkgerrors "github.com/spenzahq/webhook-relay/pkg/errors"
	"github.com/spenzahq/webhook-relay/pkg/logger"
	"github.com/spenzahq/webhook-relay/pkg/types"
)

// maxIngressBody bounds inbound webhook payloads at 1 MiB.
const maxIngressBody = 1 << 20

// IngestWebhook accepts an inbound webhook for a subscription. The response
// is always HTTP 200: the sender learns the outcome from the success flag, so
// upstream systems never retry against us because of a downstream callback
// failure.
func IngestWebhook(svc ingest.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ingest service unavailable"))
			return
		}

		subscriptionID, err := uuid.Parse(chi.URLParam(r, "subscriptionId"))
		if err != nil {
			responses.WriteJSON(w, http.StatusOK, types.IngressAck{
				Success: false,
				Error:   "invalid subscription id",
			})
			return
		}

		payload, err := validators.ReadRawBody(r, maxIngressBody)
		if err != nil {
			responses.WriteJSON(w, http.StatusOK, types.IngressAck{
				Success: false,
				Error:   ackMessage(err),
			})
			return
		}

		event, err := svc.Receive(ctx, subscriptionID, payload, r.Header)
		if err != nil {
			ack := types.IngressAck{Success: false, Error: ackMessage(err)}
			if event != nil {
				ack.EventID = event.ID.String()
			}
			responses.WriteJSON(w, http.StatusOK, ack)
			return
		}

		responses.WriteJSON(w, http.StatusOK, types.IngressAck{
			Success: true,
			EventID: event.ID.String(),
		})
	}
}

// ListSubscriptionEvents returns the full event history of one subscription.
func ListSubscriptionEvents(svc subscriptions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscriptions service unavailable"))
			return
		}
		userID, ok := requireUser(w, r, logg)
		if !ok {
			return
		}
		subscriptionID, ok := parseSubscriptionID(w, r, logg)
		if !ok {
			return
		}

		rows, err := svc.ListEvents(ctx, userID, subscriptionID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

// ListFailedEvents returns unresolved failed events across the caller's
// subscriptions.
func ListFailedEvents(svc subscriptions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscriptions service unavailable"))
			return
		}
		userID, ok := requireUser(w, r, logg)
		if !ok {
			return
		}

		rows, err := svc.ListFailedEvents(ctx, userID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

// ackMessage extracts the message to surface in the ingress acknowledgement.
func ackMessage(err error) string {
	if typed := pkgerrors.As(err); typed != nil && typed.Message() != "" {
		return typed.Message()
	}
	return "internal error"
}

func requireUser(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (uuid.UUID, bool) {
	userID := middleware.UserUUIDFromContext(r.Context())
	if userID == uuid.Nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
		return uuid.Nil, false
	}
	return userID, true
}

func parseSubscriptionID(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "subscriptionId"))
	if err != nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid subscription id"))
		return uuid.Nil, false
	}
	return id, true
}
