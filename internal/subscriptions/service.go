package subscriptions

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/spenzahq/webhook-relay/internal/events"
	"github.com/spenzahq/webhook-relay/pkg/db/models"
	pkgerrors "github.com/spenzahq/webhook-relay/pkg/errors"
	"github.com/spenzahq/webhook-relay/pkg/security"
)

const recentEventsLimit = 10

// Service defines subscription lifecycle operations. Every accessor checks
// that the subscription belongs to the calling user before returning it.
type Service interface {
	Create(ctx context.Context, userID uuid.UUID, params CreateParams) (*models.WebhookSubscription, error)
	List(ctx context.Context, userID uuid.UUID) ([]Summary, error)
	Get(ctx context.Context, userID, subscriptionID uuid.UUID) (*Detail, error)
	Cancel(ctx context.Context, userID, subscriptionID uuid.UUID) (*models.WebhookSubscription, error)
	Delete(ctx context.Context, userID, subscriptionID uuid.UUID) error
	ListEvents(ctx context.Context, userID, subscriptionID uuid.UUID) ([]models.WebhookEvent, error)
	ListFailedEvents(ctx context.Context, userID uuid.UUID) ([]models.WebhookEvent, error)
}

// CreateParams carries the fields needed to register a subscription. Secret is
// optional: when empty a random signing secret is generated server-side.
type CreateParams struct {
	SourceURL   string
	CallbackURL string
	Secret      string
}

// Summary is a subscription with its total event count, used by list views.
type Summary struct {
	models.WebhookSubscription
	EventCount int64 `json:"eventCount"`
}

// Detail is a subscription with its most recent events.
type Detail struct {
	models.WebhookSubscription
	RecentEvents []models.WebhookEvent `json:"recentEvents"`
}

type service struct {
	repo   Repository
	events events.Repository
}

// NewService wires subscription dependencies.
func NewService(repo Repository, eventsRepo events.Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "subscriptions repository required")
	}
	if eventsRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "events repository required")
	}
	return &service{repo: repo, events: eventsRepo}, nil
}

func (s *service) Create(ctx context.Context, userID uuid.UUID, params CreateParams) (*models.WebhookSubscription, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if params.SourceURL == "" || params.CallbackURL == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sourceUrl and callbackUrl are required")
	}

	secret := params.Secret
	if secret == "" {
		generated, err := security.GenerateSigningSecret()
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate signing secret")
		}
		secret = generated
	}

	sub := &models.WebhookSubscription{
		UserID:      userID,
		SourceURL:   params.SourceURL,
		CallbackURL: params.CallbackURL,
		Secret:      secret,
		IsActive:    true,
	}
	if err := s.repo.Create(ctx, sub); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create subscription")
	}
	return sub, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]Summary, error) {
	subs, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list subscriptions")
	}

	summaries := make([]Summary, 0, len(subs))
	for _, sub := range subs {
		count, err := s.events.CountBySubscription(ctx, sub.ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count subscription events")
		}
		summaries = append(summaries, Summary{WebhookSubscription: sub, EventCount: count})
	}
	return summaries, nil
}

func (s *service) Get(ctx context.Context, userID, subscriptionID uuid.UUID) (*Detail, error) {
	sub, err := s.getOwned(ctx, userID, subscriptionID)
	if err != nil {
		return nil, err
	}

	recent, err := s.events.ListRecentBySubscription(ctx, sub.ID, recentEventsLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list recent events")
	}
	return &Detail{WebhookSubscription: *sub, RecentEvents: recent}, nil
}

// Cancel deactivates the subscription without removing it, so its event
// history stays queryable. Cancelling an already inactive subscription is a
// no-op.
func (s *service) Cancel(ctx context.Context, userID, subscriptionID uuid.UUID) (*models.WebhookSubscription, error) {
	sub, err := s.getOwned(ctx, userID, subscriptionID)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.Deactivate(ctx, sub.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate subscription")
	}
	sub.IsActive = false
	return sub, nil
}

func (s *service) Delete(ctx context.Context, userID, subscriptionID uuid.UUID) error {
	sub, err := s.getOwned(ctx, userID, subscriptionID)
	if err != nil {
		return err
	}

	if _, err := s.repo.Delete(ctx, sub.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete subscription")
	}
	return nil
}

// ListEvents returns the full event history of one owned subscription, newest
// first.
func (s *service) ListEvents(ctx context.Context, userID, subscriptionID uuid.UUID) ([]models.WebhookEvent, error) {
	sub, err := s.getOwned(ctx, userID, subscriptionID)
	if err != nil {
		return nil, err
	}
	rows, err := s.events.ListBySubscription(ctx, sub.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list subscription events")
	}
	return rows, nil
}

// ListFailedEvents returns unresolved failed events across every subscription
// the user owns.
func (s *service) ListFailedEvents(ctx context.Context, userID uuid.UUID) ([]models.WebhookEvent, error) {
	ids, err := s.repo.ListIDsByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list subscription ids")
	}
	rows, err := s.events.ListFailedBySubscriptions(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list failed events")
	}
	return rows, nil
}

func (s *service) getOwned(ctx context.Context, userID, subscriptionID uuid.UUID) (*models.WebhookSubscription, error) {
	sub, err := s.repo.FindByID(ctx, subscriptionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find subscription")
	}
	if sub == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound,
			fmt.Sprintf("Subscription with ID %s not found", subscriptionID))
	}
	if sub.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "subscription belongs to another user")
	}
	return sub, nil
}
