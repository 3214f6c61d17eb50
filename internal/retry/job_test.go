package retry

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/spenzahq/webhook-relay/internal/delivery"
	"github.com/spenzahq/webhook-relay/pkg/db/models"
	pkgerrors "github.com/spenzahq/webhook-relay/pkg/errors"
)

type markCall struct {
	eventID  uuid.UUID
	expected int
	count    int
	message  string
}

type fakeEventRepo struct {
	rows      []models.WebhookEvent
	listErr   error
	processed []markCall
	failed    []markCall
	markErr   error
}

func (f *fakeEventRepo) Create(ctx context.Context, event *models.WebhookEvent) error {
	return nil
}

func (f *fakeEventRepo) MarkProcessed(ctx context.Context, eventID uuid.UUID, expectedRetryCount int, now time.Time) (bool, error) {
	if f.markErr != nil {
		return false, f.markErr
	}
	f.processed = append(f.processed, markCall{eventID: eventID, expected: expectedRetryCount})
	return true, nil
}

func (f *fakeEventRepo) MarkFailed(ctx context.Context, eventID uuid.UUID, expectedRetryCount, retryCount int, message string) (bool, error) {
	if f.markErr != nil {
		return false, f.markErr
	}
	f.failed = append(f.failed, markCall{eventID: eventID, expected: expectedRetryCount, count: retryCount, message: message})
	return true, nil
}

func (f *fakeEventRepo) ListEligibleForRetry(ctx context.Context, maxRetryCount int) ([]models.WebhookEvent, error) {
	return f.rows, f.listErr
}

func (f *fakeEventRepo) ListBySubscription(ctx context.Context, subscriptionID uuid.UUID) ([]models.WebhookEvent, error) {
	return nil, nil
}

func (f *fakeEventRepo) ListRecentBySubscription(ctx context.Context, subscriptionID uuid.UUID, limit int) ([]models.WebhookEvent, error) {
	return nil, nil
}

func (f *fakeEventRepo) ListFailedBySubscriptions(ctx context.Context, subscriptionIDs []uuid.UUID) ([]models.WebhookEvent, error) {
	return nil, nil
}

func (f *fakeEventRepo) CountBySubscription(ctx context.Context, subscriptionID uuid.UUID) (int64, error) {
	return 0, nil
}

type fakeDispatcher struct {
	results  []delivery.Result
	attempts []int
}

func (f *fakeDispatcher) Deliver(ctx context.Context, sub *models.WebhookSubscription, payload json.RawMessage, attempt int) delivery.Result {
	f.attempts = append(f.attempts, attempt)
	if len(f.results) == 0 {
		return delivery.Result{Outcome: delivery.OutcomeDelivered, StatusCode: 200}
	}
	result := f.results[0]
	f.results = f.results[1:]
	return result
}

func retryableEvent(retryCount int) models.WebhookEvent {
	message := "Failed to forward webhook: connection refused"
	return models.WebhookEvent{
		ID:              uuid.New(),
		SubscriptionID:  uuid.New(),
		Payload:         json.RawMessage(`{"type":"order.paid"}`),
		RetryCount:      retryCount,
		ProcessingError: &message,
		Subscription: &models.WebhookSubscription{
			ID:          uuid.New(),
			CallbackURL: "https://client.example.com/hook",
			IsActive:    true,
		},
	}
}

func newTestJob(t *testing.T, repo *fakeEventRepo, dispatcher *fakeDispatcher, maxAttempts int) *Job {
	t.Helper()
	job, err := NewJob(repo, dispatcher, nil, maxAttempts)
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	return job
}

func failure(message string) delivery.Result {
	return delivery.Result{
		Outcome: delivery.OutcomeFailed,
		Err:     pkgerrors.New(pkgerrors.CodeDelivery, message),
	}
}

func TestJobName(t *testing.T) {
	job := newTestJob(t, &fakeEventRepo{}, &fakeDispatcher{}, 3)
	if job.Name() != "retry-failed-webhooks" {
		t.Fatalf("unexpected job name %q", job.Name())
	}
}

func TestRunNoEligibleEvents(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	job := newTestJob(t, &fakeEventRepo{}, dispatcher, 3)
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}
	if len(dispatcher.attempts) != 0 {
		t.Fatal("no deliveries expected without eligible events")
	}
}

func TestRunMissingTableSkipsSweep(t *testing.T) {
	repo := &fakeEventRepo{listErr: errors.New("no such table: webhook_events")}
	job := newTestJob(t, repo, &fakeDispatcher{}, 3)
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("missing table must not fail the sweep, got %v", err)
	}
}

func TestRunDeliveredMarksProcessedWithGuard(t *testing.T) {
	event := retryableEvent(1)
	repo := &fakeEventRepo{rows: []models.WebhookEvent{event}}
	dispatcher := &fakeDispatcher{}

	job := newTestJob(t, repo, dispatcher, 3)
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}

	if len(dispatcher.attempts) != 1 || dispatcher.attempts[0] != 2 {
		t.Fatalf("expected one delivery at attempt 2, got %v", dispatcher.attempts)
	}
	if len(repo.processed) != 1 {
		t.Fatalf("expected one processed write, got %d", len(repo.processed))
	}
	if repo.processed[0].expected != 1 {
		t.Fatalf("processed write must guard on retry count 1, got %d", repo.processed[0].expected)
	}
}

func TestRunFailureBelowCeilingKeepsDeliveryMessage(t *testing.T) {
	event := retryableEvent(0)
	repo := &fakeEventRepo{rows: []models.WebhookEvent{event}}
	dispatcher := &fakeDispatcher{results: []delivery.Result{
		failure("Failed to forward webhook: callback responded with status 503"),
	}}

	job := newTestJob(t, repo, dispatcher, 3)
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}

	if len(repo.failed) != 1 {
		t.Fatalf("expected one failure write, got %d", len(repo.failed))
	}
	call := repo.failed[0]
	if call.expected != 0 || call.count != 1 {
		t.Fatalf("expected guard 0 and count 1, got %d/%d", call.expected, call.count)
	}
	if call.message != "Failed to forward webhook: callback responded with status 503" {
		t.Fatalf("below the ceiling the delivery message is kept, got %q", call.message)
	}
}

func TestRunFailureAtCeilingRewritesMessage(t *testing.T) {
	event := retryableEvent(2)
	repo := &fakeEventRepo{rows: []models.WebhookEvent{event}}
	dispatcher := &fakeDispatcher{results: []delivery.Result{
		failure("Failed to forward webhook: connection refused"),
	}}

	job := newTestJob(t, repo, dispatcher, 3)
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}

	call := repo.failed[0]
	if call.count != 3 {
		t.Fatalf("expected retry count 3, got %d", call.count)
	}
	want := "Max retry attempts reached. Last error: Failed to forward webhook: connection refused"
	if call.message != want {
		t.Fatalf("expected terminal message %q, got %q", want, call.message)
	}
}

func TestRunInactiveSubscriptionRecordsMessage(t *testing.T) {
	event := retryableEvent(0)
	event.Subscription.IsActive = false
	repo := &fakeEventRepo{rows: []models.WebhookEvent{event}}
	dispatcher := &fakeDispatcher{results: []delivery.Result{{
		Outcome: delivery.OutcomeInactive,
		Err:     pkgerrors.New(pkgerrors.CodeInactive, "Subscription is not active"),
	}}}

	job := newTestJob(t, repo, dispatcher, 3)
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}
	if repo.failed[0].message != "Subscription is not active" {
		t.Fatalf("unexpected message %q", repo.failed[0].message)
	}
}

func TestRunAggregatesStoreErrorsAndContinues(t *testing.T) {
	repo := &fakeEventRepo{
		rows:    []models.WebhookEvent{retryableEvent(0), retryableEvent(0)},
		markErr: errors.New("connection reset"),
	}
	dispatcher := &fakeDispatcher{}

	job := newTestJob(t, repo, dispatcher, 3)
	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("expected aggregated store errors")
	}
	if len(dispatcher.attempts) != 2 {
		t.Fatalf("a store error must not stop the sweep, attempted %d", len(dispatcher.attempts))
	}
}
