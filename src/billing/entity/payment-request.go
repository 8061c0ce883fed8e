package billing_entity

import (
	"time"

	"github.com/google/uuid"
	billing_model "github.com/orbitdesk/orbitdesk-server/src/billing/model"
	"gorm.io/datatypes"
)

// PaymentRequest is owned by the payments flow. Billing only moves its status
// and merges provider correlation keys into Metadata.
type PaymentRequest struct {
	ID          string                      `json:"id" gorm:"primaryKey"`
	OrgID       *uuid.UUID                  `json:"org_id,omitempty" gorm:"type:uuid;index"`
	ProjectID   *string                     `json:"project_id,omitempty"`
	Amount      int64                       `json:"amount"`
	Currency    string                      `json:"currency"`
	Description string                      `json:"description"`
	Status      billing_model.PaymentStatus `json:"status" gorm:"not null;default:pending"`
	Metadata    datatypes.JSONMap           `json:"metadata" gorm:"type:jsonb"`
	PaidAt      *time.Time                  `json:"paid_at,omitempty"`
	CreatedAt   time.Time                   `json:"created_at"`
	UpdatedAt   time.Time                   `json:"updated_at"`
}
