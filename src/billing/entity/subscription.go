package billing_entity

import (
	"time"

	"github.com/google/uuid"
	billing_model "github.com/orbitdesk/orbitdesk-server/src/billing/model"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Subscription struct {
	ID                   uuid.UUID                        `json:"id" gorm:"type:uuid;primaryKey"`
	OrgID                uuid.UUID                        `json:"org_id" gorm:"type:uuid;not null;index"`
	StripeSubscriptionID *string                          `json:"stripe_subscription_id,omitempty" gorm:"index"`
	StripeCustomerID     *string                          `json:"stripe_customer_id,omitempty" gorm:"index"`
	Status               billing_model.SubscriptionStatus `json:"status" gorm:"not null;default:trialing"`
	TrialEnd             *time.Time                       `json:"trial_end,omitempty"`
	CurrentPeriodStart   *time.Time                       `json:"current_period_start,omitempty"`
	CurrentPeriodEnd     *time.Time                       `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd    bool                             `json:"cancel_at_period_end" gorm:"not null;default:false"`
	CanceledAt           *time.Time                       `json:"canceled_at,omitempty"`
	Metadata             datatypes.JSONMap                `json:"metadata" gorm:"type:jsonb"`
	CreatedAt            time.Time                        `json:"created_at"`
	UpdatedAt            time.Time                        `json:"updated_at"`
}

func (s *Subscription) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
