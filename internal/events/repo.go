package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/spenzahq/webhook-relay/pkg/db/models"
)

// Repository exposes persistence helpers for webhook events. Event rows are
// append-then-update: created once at ingress, then touched only through the
// guarded MarkProcessed/MarkFailed writes.
type Repository interface {
	Create(ctx context.Context, event *models.WebhookEvent) error
	MarkProcessed(ctx context.Context, eventID uuid.UUID, expectedRetryCount int, now time.Time) (bool, error)
	MarkFailed(ctx context.Context, eventID uuid.UUID, expectedRetryCount, retryCount int, message string) (bool, error)
	ListEligibleForRetry(ctx context.Context, maxRetryCount int) ([]models.WebhookEvent, error)
	ListBySubscription(ctx context.Context, subscriptionID uuid.UUID) ([]models.WebhookEvent, error)
	ListRecentBySubscription(ctx context.Context, subscriptionID uuid.UUID, limit int) ([]models.WebhookEvent, error)
	ListFailedBySubscriptions(ctx context.Context, subscriptionIDs []uuid.UUID) ([]models.WebhookEvent, error)
	CountBySubscription(ctx context.Context, subscriptionID uuid.UUID) (int64, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns an event repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) Create(ctx context.Context, event *models.WebhookEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

// MarkProcessed flips the row to processed and clears the error. The write is
// guarded on the expected retry count so a concurrent writer that already
// advanced the row makes this a no-op instead of a lost update.
func (r *repositoryImpl) MarkProcessed(ctx context.Context, eventID uuid.UUID, expectedRetryCount int, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.WebhookEvent{}).
		Where("id = ? AND processed = ? AND retry_count = ?", eventID, false, expectedRetryCount).
		Updates(map[string]any{
			"processed":        true,
			"processed_at":     now,
			"processing_error": nil,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// MarkFailed records the failure message and advances the retry count, guarded
// the same way as MarkProcessed.
func (r *repositoryImpl) MarkFailed(ctx context.Context, eventID uuid.UUID, expectedRetryCount, retryCount int, message string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.WebhookEvent{}).
		Where("id = ? AND processed = ? AND retry_count = ?", eventID, false, expectedRetryCount).
		Updates(map[string]any{
			"processing_error": message,
			"retry_count":      retryCount,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ListEligibleForRetry returns unprocessed events that failed at least once and
// sit below the retry ceiling, joined with their subscription.
func (r *repositoryImpl) ListEligibleForRetry(ctx context.Context, maxRetryCount int) ([]models.WebhookEvent, error) {
	var rows []models.WebhookEvent
	err := r.db.WithContext(ctx).
		Where("processed = ? AND processing_error IS NOT NULL AND retry_count < ?", false, maxRetryCount).
		Order("created_at ASC").
		Preload("Subscription").
		Find(&rows).Error
	return rows, err
}

func (r *repositoryImpl) ListBySubscription(ctx context.Context, subscriptionID uuid.UUID) ([]models.WebhookEvent, error) {
	var rows []models.WebhookEvent
	err := r.db.WithContext(ctx).
		Where("subscription_id = ?", subscriptionID).
		Order("created_at DESC").
		Find(&rows).Error
	return rows, err
}

func (r *repositoryImpl) ListRecentBySubscription(ctx context.Context, subscriptionID uuid.UUID, limit int) ([]models.WebhookEvent, error) {
	if limit <= 0 {
		limit = 10
	}
	var rows []models.WebhookEvent
	err := r.db.WithContext(ctx).
		Where("subscription_id = ?", subscriptionID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *repositoryImpl) ListFailedBySubscriptions(ctx context.Context, subscriptionIDs []uuid.UUID) ([]models.WebhookEvent, error) {
	if len(subscriptionIDs) == 0 {
		return nil, nil
	}
	var rows []models.WebhookEvent
	err := r.db.WithContext(ctx).
		Where("subscription_id IN ? AND processed = ? AND processing_error IS NOT NULL", subscriptionIDs, false).
		Order("created_at DESC").
		Preload("Subscription").
		Find(&rows).Error
	return rows, err
}

func (r *repositoryImpl) CountBySubscription(ctx context.Context, subscriptionID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.WebhookEvent{}).
		Where("subscription_id = ?", subscriptionID).
		Count(&count).Error
	return count, err
}
