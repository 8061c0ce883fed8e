package billing_repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	billing_entity "github.com/orbitdesk/orbitdesk-server/src/billing/entity"
	billing_model "github.com/orbitdesk/orbitdesk-server/src/billing/model"
)

var ErrNotFound = errors.New("record not found")

// Store is every read and write the billing engine performs. Writes are
// conditional: Apply* and SweepSubscriptions report whether a row matched the
// status predicate instead of failing.
type Store interface {
	// ClaimEvent inserts the ledger row if no row with the same event id
	// exists. It returns false when another delivery already claimed it.
	ClaimEvent(ctx context.Context, event *billing_entity.WebhookEvent) (bool, error)

	GetPaymentRequest(ctx context.Context, id string) (*billing_entity.PaymentRequest, error)
	FindPaymentRequestByMetadata(ctx context.Context, key, value string) (*billing_entity.PaymentRequest, error)
	ApplyPaymentTransition(ctx context.Context, id string, t billing_model.PaymentTransition) (bool, error)

	FindSubscriptionByStripeID(ctx context.Context, stripeSubscriptionID string) (*billing_entity.Subscription, error)
	// FindLiveSubscriptionByCustomer joins billing_info on the customer id and
	// returns the org's newest active, trialing or past_due subscription.
	FindLiveSubscriptionByCustomer(ctx context.Context, stripeCustomerID string) (*billing_entity.Subscription, error)
	// FindSubscriptionByOrg returns the org's newest subscription in any status.
	FindSubscriptionByOrg(ctx context.Context, orgID uuid.UUID) (*billing_entity.Subscription, error)
	ApplySubscriptionTransition(ctx context.Context, id uuid.UUID, t billing_model.SubscriptionTransition) (bool, error)
	SweepSubscriptions(ctx context.Context, step billing_model.SweepStep) (int64, error)

	// InsertSubscription creates a row, assigning an id when it has none.
	InsertSubscription(ctx context.Context, sub *billing_entity.Subscription) error

	GetBillingInfo(ctx context.Context, orgID uuid.UUID) (*billing_entity.BillingInfo, error)
	// SaveBillingCustomer creates the org's billing_info row or updates its
	// customer id, leaving contact fields untouched.
	SaveBillingCustomer(ctx context.Context, orgID uuid.UUID, stripeCustomerID string) error
	GetSubscriptionPlan(ctx context.Context, id string) (*billing_entity.SubscriptionPlan, error)

	GetOrgMember(ctx context.Context, orgID, userID uuid.UUID) (*billing_entity.OrgMember, error)
}

type Repository interface {
	Store
	// Transaction runs fn against a Store bound to a single transaction.
	// Any error returned by fn rolls back every write made through it.
	Transaction(ctx context.Context, fn func(Store) error) error
}

var (
	_ Repository = (*GormRepository)(nil)
	_ Repository = (*MemoryRepository)(nil)
)

func paymentStatuses(in []billing_model.PaymentStatus) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}

func subscriptionStatuses(in []billing_model.SubscriptionStatus) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}
