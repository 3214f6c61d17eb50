package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WebhookSubscription binds an inbound source to an outbound callback URL with
// a shared signing secret. The delivery pipeline treats rows as read-only:
// cancellation flips IsActive but never deletes delivery history.
type WebhookSubscription struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID      uuid.UUID `gorm:"column:user_id;type:uuid;not null;index" json:"userId"`
	SourceURL   string    `gorm:"column:source_url;not null" json:"sourceUrl"`
	CallbackURL string    `gorm:"column:callback_url;not null" json:"callbackUrl"`
	Secret      string    `gorm:"column:secret;not null" json:"-"`
	IsActive    bool      `gorm:"column:is_active;not null;default:true" json:"isActive"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (WebhookSubscription) TableName() string { return "webhook_subscriptions" }

func (s *WebhookSubscription) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
