package billing_repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	billing_entity "github.com/orbitdesk/orbitdesk-server/src/billing/entity"
	billing_model "github.com/orbitdesk/orbitdesk-server/src/billing/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository expects a *gorm.DB opened with TranslateError enabled.
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) Transaction(ctx context.Context, fn func(Store) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormRepository{db: tx})
	})
}

func (r *GormRepository) ClaimEvent(ctx context.Context, event *billing_entity.WebhookEvent) (bool, error) {
	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		if errors.Is(tx.Error, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		return false, fmt.Errorf("claim event %s: %w", event.EventID, tx.Error)
	}
	return tx.RowsAffected > 0, nil
}

func (r *GormRepository) GetPaymentRequest(ctx context.Context, id string) (*billing_entity.PaymentRequest, error) {
	var pr billing_entity.PaymentRequest
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&pr).Error; err != nil {
		return nil, notFound(err)
	}
	return &pr, nil
}

func (r *GormRepository) FindPaymentRequestByMetadata(ctx context.Context, key, value string) (*billing_entity.PaymentRequest, error) {
	contains, err := json.Marshal(map[string]string{key: value})
	if err != nil {
		return nil, err
	}

	var pr billing_entity.PaymentRequest
	err = r.db.WithContext(ctx).
		Where("metadata @> ?::jsonb", string(contains)).
		Order("created_at DESC").
		First(&pr).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &pr, nil
}

func (r *GormRepository) ApplyPaymentTransition(ctx context.Context, id string, t billing_model.PaymentTransition) (bool, error) {
	updates := map[string]any{"updated_at": t.At}
	if t.To != "" {
		updates["status"] = string(t.To)
	}
	if t.PaidAt != nil {
		updates["paid_at"] = gorm.Expr("COALESCE(paid_at, ?)", *t.PaidAt)
	}
	if len(t.Metadata) > 0 {
		expr, err := mergeMetadata(t.Metadata)
		if err != nil {
			return false, err
		}
		updates["metadata"] = expr
	}

	q := r.db.WithContext(ctx).Model(&billing_entity.PaymentRequest{}).Where("id = ?", id)
	if len(t.From) > 0 {
		q = q.Where("status IN ?", paymentStatuses(t.From))
	}

	res := q.Updates(updates)
	if res.Error != nil {
		return false, fmt.Errorf("update payment request %s: %w", id, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *GormRepository) FindSubscriptionByStripeID(ctx context.Context, stripeSubscriptionID string) (*billing_entity.Subscription, error) {
	var sub billing_entity.Subscription
	err := r.db.WithContext(ctx).
		Where("stripe_subscription_id = ?", stripeSubscriptionID).
		First(&sub).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &sub, nil
}

func (r *GormRepository) FindLiveSubscriptionByCustomer(ctx context.Context, stripeCustomerID string) (*billing_entity.Subscription, error) {
	var info billing_entity.BillingInfo
	err := r.db.WithContext(ctx).
		Where("stripe_customer_id = ?", stripeCustomerID).
		First(&info).Error
	if err != nil {
		return nil, notFound(err)
	}

	var sub billing_entity.Subscription
	err = r.db.WithContext(ctx).
		Where("org_id = ? AND status IN ?", info.OrgID, subscriptionStatuses(billing_model.LiveSubscriptionStatuses)).
		Order("created_at DESC").
		First(&sub).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &sub, nil
}

func (r *GormRepository) FindSubscriptionByOrg(ctx context.Context, orgID uuid.UUID) (*billing_entity.Subscription, error) {
	var sub billing_entity.Subscription
	err := r.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("created_at DESC").
		First(&sub).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &sub, nil
}

func (r *GormRepository) ApplySubscriptionTransition(ctx context.Context, id uuid.UUID, t billing_model.SubscriptionTransition) (bool, error) {
	updates := map[string]any{"updated_at": t.At}
	if t.To != "" {
		updates["status"] = string(t.To)
	}
	if t.CurrentPeriodStart != nil {
		updates["current_period_start"] = *t.CurrentPeriodStart
	}
	if t.CurrentPeriodEnd != nil {
		updates["current_period_end"] = *t.CurrentPeriodEnd
	}
	if t.CancelAtPeriodEnd != nil {
		updates["cancel_at_period_end"] = *t.CancelAtPeriodEnd
	}
	if t.CanceledAt != nil {
		updates["canceled_at"] = gorm.Expr("COALESCE(canceled_at, ?)", *t.CanceledAt)
	}
	if t.StripeCustomerID != nil {
		updates["stripe_customer_id"] = gorm.Expr("COALESCE(NULLIF(stripe_customer_id, ''), ?)", *t.StripeCustomerID)
	}
	if t.StripeSubscriptionID != nil {
		updates["stripe_subscription_id"] = gorm.Expr("COALESCE(NULLIF(stripe_subscription_id, ''), ?)", *t.StripeSubscriptionID)
	}
	if len(t.Metadata) > 0 {
		expr, err := mergeMetadata(t.Metadata)
		if err != nil {
			return false, err
		}
		updates["metadata"] = expr
	}

	q := r.db.WithContext(ctx).Model(&billing_entity.Subscription{}).Where("id = ?", id)
	if len(t.From) > 0 {
		q = q.Where("status IN ?", subscriptionStatuses(t.From))
	}
	if len(t.Except) > 0 {
		q = q.Where("status NOT IN ?", subscriptionStatuses(t.Except))
	}

	res := q.Updates(updates)
	if res.Error != nil {
		return false, fmt.Errorf("update subscription %s: %w", id, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *GormRepository) SweepSubscriptions(ctx context.Context, step billing_model.SweepStep) (int64, error) {
	var column string
	switch step.Field {
	case billing_model.SweepFieldTrialEnd:
		column = "trial_end"
	case billing_model.SweepFieldCurrentPeriodEnd:
		column = "current_period_end"
	default:
		return 0, fmt.Errorf("unknown sweep field %q", step.Field)
	}

	updates := map[string]any{
		"status":     string(step.To),
		"updated_at": step.At,
	}
	if step.CanceledAt != nil {
		updates["canceled_at"] = gorm.Expr("COALESCE(canceled_at, ?)", *step.CanceledAt)
	}
	if len(step.Metadata) > 0 {
		expr, err := mergeMetadata(step.Metadata)
		if err != nil {
			return 0, err
		}
		updates["metadata"] = expr
	}

	res := r.db.WithContext(ctx).
		Model(&billing_entity.Subscription{}).
		Where("status = ?", string(step.From)).
		Where(column+" IS NOT NULL AND "+column+" < ?", step.Before).
		Updates(updates)
	if res.Error != nil {
		return 0, fmt.Errorf("sweep step %s: %w", step.Name, res.Error)
	}
	return res.RowsAffected, nil
}

func (r *GormRepository) InsertSubscription(ctx context.Context, sub *billing_entity.Subscription) error {
	if err := r.db.WithContext(ctx).Create(sub).Error; err != nil {
		return fmt.Errorf("create subscription for org %s: %w", sub.OrgID, err)
	}
	return nil
}

func (r *GormRepository) GetBillingInfo(ctx context.Context, orgID uuid.UUID) (*billing_entity.BillingInfo, error) {
	var info billing_entity.BillingInfo
	if err := r.db.WithContext(ctx).Where("org_id = ?", orgID).First(&info).Error; err != nil {
		return nil, notFound(err)
	}
	return &info, nil
}

func (r *GormRepository) SaveBillingCustomer(ctx context.Context, orgID uuid.UUID, stripeCustomerID string) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "org_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"stripe_customer_id"}),
	}).Create(&billing_entity.BillingInfo{OrgID: orgID, StripeCustomerID: stripeCustomerID}).Error
	if err != nil {
		return fmt.Errorf("save billing customer for org %s: %w", orgID, err)
	}
	return nil
}

func (r *GormRepository) GetSubscriptionPlan(ctx context.Context, id string) (*billing_entity.SubscriptionPlan, error) {
	var plan billing_entity.SubscriptionPlan
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&plan).Error; err != nil {
		return nil, notFound(err)
	}
	return &plan, nil
}

func (r *GormRepository) GetOrgMember(ctx context.Context, orgID, userID uuid.UUID) (*billing_entity.OrgMember, error) {
	var m billing_entity.OrgMember
	err := r.db.WithContext(ctx).
		Where("org_id = ? AND user_id = ?", orgID, userID).
		First(&m).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

// mergeMetadata builds a jsonb concatenation so keys outside the patch are kept.
func mergeMetadata(patch map[string]any) (clause.Expr, error) {
	b, err := json.Marshal(patch)
	if err != nil {
		return clause.Expr{}, fmt.Errorf("marshal metadata patch: %w", err)
	}
	return gorm.Expr("COALESCE(metadata, '{}'::jsonb) || ?::jsonb", string(b)), nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
