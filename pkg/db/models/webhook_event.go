package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WebhookEvent is one durable record of an inbound payload and its delivery
// outcome. Payload and headers are stored verbatim for audit.
//
// Invariants: Processed=true implies ProcessingError=nil and ProcessedAt set;
// RetryCount only ever increases.
type WebhookEvent struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	SubscriptionID  uuid.UUID       `gorm:"column:subscription_id;type:uuid;not null;index" json:"subscriptionId"`
	EventType       string          `gorm:"column:event_type;not null;default:'unknown'" json:"eventType"`
	Payload         json.RawMessage `gorm:"column:payload;type:jsonb;not null" json:"payload"`
	Headers         json.RawMessage `gorm:"column:headers;type:jsonb" json:"headers"`
	Processed       bool            `gorm:"column:processed;not null;default:false" json:"processed"`
	ProcessedAt     *time.Time      `gorm:"column:processed_at" json:"processedAt"`
	ProcessingError *string         `gorm:"column:processing_error" json:"processingError"`
	RetryCount      int             `gorm:"column:retry_count;not null;default:0" json:"retryCount"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime" json:"createdAt"`

	Subscription *WebhookSubscription `gorm:"foreignKey:SubscriptionID" json:"subscription,omitempty"`
}

func (WebhookEvent) TableName() string { return "webhook_events" }

func (e *WebhookEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
