package controllers

import (
	"net/http"

	"github.com/spenzahq/webhook-relay/api/responses"
	"github.com/spenzahq/webhook-relay/api/validators"
	"github.com/spenzahq/webhook-relay/internal/subscriptions"
	pkgerrors "github.com/spenzahq/webhook-relay/pkg/errors"
	"github.com/spenzahq/webhook-relay/pkg/logger"
)

// CreateSubscriptionRequest registers a new webhook subscription. When secret
// is omitted the server generates one; it is returned exactly once in the
// create response.
type CreateSubscriptionRequest struct {
	SourceURL   string `json:"sourceUrl" validate:"required,url"`
	CallbackURL string `json:"callbackUrl" validate:"required,url"`
	Secret      string `json:"secret,omitempty" validate:"omitempty,min=16"`
}

// CreateSubscriptionResponse echoes the subscription plus its signing secret.
type CreateSubscriptionResponse struct {
	subscriptions.Summary
	Secret string `json:"secret"`
}

// CreateSubscription registers a subscription owned by the caller.
func CreateSubscription(svc subscriptions.Service, logg *logger.Logger) http.HandlerFunc {
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

		var req CreateSubscriptionRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		sub, err := svc.Create(ctx, userID, subscriptions.CreateParams{
			SourceURL:   req.SourceURL,
			CallbackURL: req.CallbackURL,
			Secret:      req.Secret,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, CreateSubscriptionResponse{
			Summary: subscriptions.Summary{WebhookSubscription: *sub},
			Secret:  sub.Secret,
		})
	}
}

// ListSubscriptions returns the caller's subscriptions with event counts.
func ListSubscriptions(svc subscriptions.Service, logg *logger.Logger) http.HandlerFunc {
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

		summaries, err := svc.List(ctx, userID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, summaries)
	}
}

// GetSubscription returns one subscription with its recent events.
func GetSubscription(svc subscriptions.Service, logg *logger.Logger) http.HandlerFunc {
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

		detail, err := svc.Get(ctx, userID, subscriptionID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, detail)
	}
}

// CancelSubscription deactivates a subscription without deleting its history.
func CancelSubscription(svc subscriptions.Service, logg *logger.Logger) http.HandlerFunc {
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

		sub, err := svc.Cancel(ctx, userID, subscriptionID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, sub)
	}
}

// DeleteSubscription removes a subscription permanently.
func DeleteSubscription(svc subscriptions.Service, logg *logger.Logger) http.HandlerFunc {
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

		if err := svc.Delete(ctx, userID, subscriptionID); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"deleted": true})
	}
}
