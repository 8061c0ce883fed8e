package billing_entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// WebhookEvent is one idempotency ledger row. Rows are inserted once and
// never updated or deleted.
type WebhookEvent struct {
	ID         uuid.UUID         `json:"id" gorm:"type:uuid;primaryKey"`
	EventID    string            `json:"event_id" gorm:"not null;uniqueIndex:idx_stripe_webhook_events_event_id"`
	EventType  string            `json:"event_type" gorm:"not null"`
	ReceivedAt time.Time         `json:"received_at" gorm:"not null"`
	Metadata   datatypes.JSONMap `json:"metadata" gorm:"type:jsonb"`
}

func (WebhookEvent) TableName() string {
	return "stripe_webhook_events"
}

func (e *WebhookEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
