package billing_repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	billing_entity "github.com/orbitdesk/orbitdesk-server/src/billing/entity"
	billing_model "github.com/orbitdesk/orbitdesk-server/src/billing/model"
	"gorm.io/datatypes"
)

type memberKey struct {
	orgID  uuid.UUID
	userID uuid.UUID
}

// MemoryRepository keeps billing state in process. It backs local runs
// without DATABASE_URL and the package tests. Transactions are serialized
// with each other; a rollback restores only the rows written through the
// transaction's Store, so writes made outside it survive.
type MemoryRepository struct {
	txMu sync.Mutex
	mu   sync.Mutex

	events   map[string]billing_entity.WebhookEvent
	payments map[string]billing_entity.PaymentRequest
	subs     map[uuid.UUID]billing_entity.Subscription
	billing  map[uuid.UUID]billing_entity.BillingInfo
	members  map[memberKey]billing_entity.OrgMember
	plans    map[string]billing_entity.SubscriptionPlan
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		events:   map[string]billing_entity.WebhookEvent{},
		payments: map[string]billing_entity.PaymentRequest{},
		subs:     map[uuid.UUID]billing_entity.Subscription{},
		billing:  map[uuid.UUID]billing_entity.BillingInfo{},
		members:  map[memberKey]billing_entity.OrgMember{},
		plans:    map[string]billing_entity.SubscriptionPlan{},
	}
}

// undoLog holds the pre-image of every row a transaction wrote. A nil entry
// means the row did not exist. A nil *undoLog records nothing.
type undoLog struct {
	events   map[string]*billing_entity.WebhookEvent
	payments map[string]*billing_entity.PaymentRequest
	subs     map[uuid.UUID]*billing_entity.Subscription
	billing  map[uuid.UUID]*billing_entity.BillingInfo
}

func newUndoLog() *undoLog {
	return &undoLog{
		events:   map[string]*billing_entity.WebhookEvent{},
		payments: map[string]*billing_entity.PaymentRequest{},
		subs:     map[uuid.UUID]*billing_entity.Subscription{},
		billing:  map[uuid.UUID]*billing_entity.BillingInfo{},
	}
}

// remember keeps the first pre-image of key only.
func remember[K comparable, V any](log map[K]*V, rows map[K]V, key K) {
	if _, seen := log[key]; seen {
		return
	}
	if row, ok := rows[key]; ok {
		log[key] = &row
		return
	}
	log[key] = nil
}

func restore[K comparable, V any](rows map[K]V, log map[K]*V) {
	for key, row := range log {
		if row == nil {
			delete(rows, key)
			continue
		}
		rows[key] = *row
	}
}

// The record* helpers are called with r.mu held.

func (u *undoLog) recordEvent(r *MemoryRepository, key string) {
	if u != nil {
		remember(u.events, r.events, key)
	}
}

func (u *undoLog) recordPayment(r *MemoryRepository, key string) {
	if u != nil {
		remember(u.payments, r.payments, key)
	}
}

func (u *undoLog) recordSubscription(r *MemoryRepository, key uuid.UUID) {
	if u != nil {
		remember(u.subs, r.subs, key)
	}
}

func (u *undoLog) recordBilling(r *MemoryRepository, key uuid.UUID) {
	if u != nil {
		remember(u.billing, r.billing, key)
	}
}

func (u *undoLog) rollback(r *MemoryRepository) {
	restore(r.events, u.events)
	restore(r.payments, u.payments)
	restore(r.subs, u.subs)
	restore(r.billing, u.billing)
}

// memoryTx is the Store handed to a transaction. Reads go straight to the
// repository; writes also record their pre-image.
type memoryTx struct {
	*MemoryRepository
	undo *undoLog
}

func (t memoryTx) ClaimEvent(ctx context.Context, event *billing_entity.WebhookEvent) (bool, error) {
	return t.claimEvent(ctx, event, t.undo)
}

func (t memoryTx) ApplyPaymentTransition(ctx context.Context, id string, tr billing_model.PaymentTransition) (bool, error) {
	return t.applyPaymentTransition(ctx, id, tr, t.undo)
}

func (t memoryTx) ApplySubscriptionTransition(ctx context.Context, id uuid.UUID, tr billing_model.SubscriptionTransition) (bool, error) {
	return t.applySubscriptionTransition(ctx, id, tr, t.undo)
}

func (t memoryTx) SweepSubscriptions(ctx context.Context, step billing_model.SweepStep) (int64, error) {
	return t.sweepSubscriptions(ctx, step, t.undo)
}

func (t memoryTx) InsertSubscription(ctx context.Context, sub *billing_entity.Subscription) error {
	return t.insertSubscription(ctx, sub, t.undo)
}

func (t memoryTx) SaveBillingCustomer(ctx context.Context, orgID uuid.UUID, stripeCustomerID string) error {
	return t.saveBillingCustomer(ctx, orgID, stripeCustomerID, t.undo)
}

func (r *MemoryRepository) Transaction(ctx context.Context, fn func(Store) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := memoryTx{MemoryRepository: r, undo: newUndoLog()}
	if err := fn(tx); err != nil {
		r.mu.Lock()
		tx.undo.rollback(r)
		r.mu.Unlock()
		return err
	}
	return nil
}

func (r *MemoryRepository) ClaimEvent(ctx context.Context, event *billing_entity.WebhookEvent) (bool, error) {
	return r.claimEvent(ctx, event, nil)
}

func (r *MemoryRepository) claimEvent(ctx context.Context, event *billing_entity.WebhookEvent, undo *undoLog) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.events[event.EventID]; ok {
		return false, nil
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	undo.recordEvent(r, event.EventID)
	r.events[event.EventID] = *event
	return true, nil
}

func (r *MemoryRepository) GetPaymentRequest(ctx context.Context, id string) (*billing_entity.PaymentRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	pr, ok := r.payments[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clonePayment(pr), nil
}

func (r *MemoryRepository) FindPaymentRequestByMetadata(ctx context.Context, key, value string) (*billing_entity.PaymentRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var found *billing_entity.PaymentRequest
	for _, pr := range r.payments {
		if v, ok := pr.Metadata[key].(string); !ok || v != value {
			continue
		}
		if found == nil || pr.CreatedAt.After(found.CreatedAt) {
			found = clonePayment(pr)
		}
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

func (r *MemoryRepository) ApplyPaymentTransition(ctx context.Context, id string, t billing_model.PaymentTransition) (bool, error) {
	return r.applyPaymentTransition(ctx, id, t, nil)
}

func (r *MemoryRepository) applyPaymentTransition(ctx context.Context, id string, t billing_model.PaymentTransition, undo *undoLog) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	patch, err := normalizeMetadata(t.Metadata)
	if err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	pr, ok := r.payments[id]
	if !ok || (len(t.From) > 0 && !slices.Contains(t.From, pr.Status)) {
		return false, nil
	}

	if t.To != "" {
		pr.Status = t.To
	}
	if t.PaidAt != nil && pr.PaidAt == nil {
		pr.PaidAt = timePtr(*t.PaidAt)
	}
	pr.Metadata = mergeInto(pr.Metadata, patch)
	pr.UpdatedAt = t.At
	undo.recordPayment(r, id)
	r.payments[id] = pr
	return true, nil
}

func (r *MemoryRepository) FindSubscriptionByStripeID(ctx context.Context, stripeSubscriptionID string) (*billing_entity.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, sub := range r.subs {
		if sub.StripeSubscriptionID != nil && *sub.StripeSubscriptionID == stripeSubscriptionID {
			return cloneSubscription(sub), nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryRepository) FindLiveSubscriptionByCustomer(ctx context.Context, stripeCustomerID string) (*billing_entity.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	// Lowest org id wins when orgs share a customer, like a primary-key ordered First.
	var orgID uuid.UUID
	for _, info := range r.billing {
		if info.StripeCustomerID != stripeCustomerID {
			continue
		}
		if orgID == uuid.Nil || bytes.Compare(info.OrgID[:], orgID[:]) < 0 {
			orgID = info.OrgID
		}
	}
	if orgID == uuid.Nil {
		return nil, ErrNotFound
	}

	return r.newestForOrg(orgID, func(s billing_entity.Subscription) bool { return s.Status.IsLive() })
}

func (r *MemoryRepository) FindSubscriptionByOrg(ctx context.Context, orgID uuid.UUID) (*billing_entity.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.newestForOrg(orgID, func(billing_entity.Subscription) bool { return true })
}

func (r *MemoryRepository) newestForOrg(orgID uuid.UUID, keep func(billing_entity.Subscription) bool) (*billing_entity.Subscription, error) {
	var found *billing_entity.Subscription
	for _, sub := range r.subs {
		if sub.OrgID != orgID || !keep(sub) {
			continue
		}
		if found == nil || sub.CreatedAt.After(found.CreatedAt) {
			found = cloneSubscription(sub)
		}
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

func (r *MemoryRepository) ApplySubscriptionTransition(ctx context.Context, id uuid.UUID, t billing_model.SubscriptionTransition) (bool, error) {
	return r.applySubscriptionTransition(ctx, id, t, nil)
}

func (r *MemoryRepository) applySubscriptionTransition(ctx context.Context, id uuid.UUID, t billing_model.SubscriptionTransition, undo *undoLog) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	patch, err := normalizeMetadata(t.Metadata)
	if err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.subs[id]
	if !ok || (len(t.From) > 0 && !slices.Contains(t.From, sub.Status)) || slices.Contains(t.Except, sub.Status) {
		return false, nil
	}

	if t.To != "" {
		sub.Status = t.To
	}
	if t.CurrentPeriodStart != nil {
		sub.CurrentPeriodStart = timePtr(*t.CurrentPeriodStart)
	}
	if t.CurrentPeriodEnd != nil {
		sub.CurrentPeriodEnd = timePtr(*t.CurrentPeriodEnd)
	}
	if t.CancelAtPeriodEnd != nil {
		sub.CancelAtPeriodEnd = *t.CancelAtPeriodEnd
	}
	if t.CanceledAt != nil && sub.CanceledAt == nil {
		sub.CanceledAt = timePtr(*t.CanceledAt)
	}
	if t.StripeCustomerID != nil && (sub.StripeCustomerID == nil || *sub.StripeCustomerID == "") {
		sub.StripeCustomerID = ptrTo(*t.StripeCustomerID)
	}
	if t.StripeSubscriptionID != nil && (sub.StripeSubscriptionID == nil || *sub.StripeSubscriptionID == "") {
		sub.StripeSubscriptionID = ptrTo(*t.StripeSubscriptionID)
	}
	sub.Metadata = mergeInto(sub.Metadata, patch)
	sub.UpdatedAt = t.At
	undo.recordSubscription(r, id)
	r.subs[id] = sub
	return true, nil
}

func (r *MemoryRepository) SweepSubscriptions(ctx context.Context, step billing_model.SweepStep) (int64, error) {
	return r.sweepSubscriptions(ctx, step, nil)
}

func (r *MemoryRepository) sweepSubscriptions(ctx context.Context, step billing_model.SweepStep, undo *undoLog) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	patch, err := normalizeMetadata(step.Metadata)
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var moved int64
	for id, sub := range r.subs {
		if sub.Status != step.From {
			continue
		}

		var bound *time.Time
		switch step.Field {
		case billing_model.SweepFieldTrialEnd:
			bound = sub.TrialEnd
		case billing_model.SweepFieldCurrentPeriodEnd:
			bound = sub.CurrentPeriodEnd
		default:
			return moved, fmt.Errorf("unknown sweep field %q", step.Field)
		}
		if bound == nil || !bound.Before(step.Before) {
			continue
		}

		sub.Status = step.To
		if step.CanceledAt != nil && sub.CanceledAt == nil {
			sub.CanceledAt = timePtr(*step.CanceledAt)
		}
		sub.Metadata = mergeInto(sub.Metadata, patch)
		sub.UpdatedAt = step.At
		undo.recordSubscription(r, id)
		r.subs[id] = sub
		moved++
	}
	return moved, nil
}

func (r *MemoryRepository) InsertSubscription(ctx context.Context, sub *billing_entity.Subscription) error {
	return r.insertSubscription(ctx, sub, nil)
}

func (r *MemoryRepository) insertSubscription(ctx context.Context, sub *billing_entity.Subscription, undo *undoLog) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	if _, ok := r.subs[sub.ID]; ok {
		return fmt.Errorf("subscription %s already exists", sub.ID)
	}
	if sub.Status == "" {
		sub.Status = billing_model.SubscriptionStatusTrialing
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now()
	}
	if sub.UpdatedAt.IsZero() {
		sub.UpdatedAt = sub.CreatedAt
	}
	undo.recordSubscription(r, sub.ID)
	r.subs[sub.ID] = *cloneSubscription(*sub)
	return nil
}

func (r *MemoryRepository) GetBillingInfo(ctx context.Context, orgID uuid.UUID) (*billing_entity.BillingInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.billing[orgID]
	if !ok {
		return nil, ErrNotFound
	}
	return &info, nil
}

func (r *MemoryRepository) SaveBillingCustomer(ctx context.Context, orgID uuid.UUID, stripeCustomerID string) error {
	return r.saveBillingCustomer(ctx, orgID, stripeCustomerID, nil)
}

func (r *MemoryRepository) saveBillingCustomer(ctx context.Context, orgID uuid.UUID, stripeCustomerID string, undo *undoLog) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.billing[orgID]
	if !ok {
		info = billing_entity.BillingInfo{OrgID: orgID}
	}
	info.StripeCustomerID = stripeCustomerID
	undo.recordBilling(r, orgID)
	r.billing[orgID] = info
	return nil
}

func (r *MemoryRepository) GetSubscriptionPlan(ctx context.Context, id string) (*billing_entity.SubscriptionPlan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	plan, ok := r.plans[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &plan, nil
}

func (r *MemoryRepository) GetOrgMember(ctx context.Context, orgID, userID uuid.UUID) (*billing_entity.OrgMember, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.members[memberKey{orgID: orgID, userID: userID}]
	if !ok {
		return nil, ErrNotFound
	}
	return &m, nil
}

// Seeding helpers. Rows created elsewhere in production (onboarding, the
// payments flow) are inserted through these when running in memory.

func (r *MemoryRepository) CreatePaymentRequest(pr *billing_entity.PaymentRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.payments[pr.ID]; ok {
		return fmt.Errorf("payment request %s already exists", pr.ID)
	}
	if pr.Status == "" {
		pr.Status = billing_model.PaymentStatusPending
	}
	if pr.CreatedAt.IsZero() {
		pr.CreatedAt = time.Now()
	}
	pr.UpdatedAt = pr.CreatedAt
	r.payments[pr.ID] = *clonePayment(*pr)
	return nil
}

func (r *MemoryRepository) CreateSubscription(sub *billing_entity.Subscription) error {
	return r.insertSubscription(context.Background(), sub, nil)
}

func (r *MemoryRepository) SaveBillingInfo(info billing_entity.BillingInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.billing[info.OrgID] = info
}

func (r *MemoryRepository) SavePlan(plan billing_entity.SubscriptionPlan) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plans[plan.ID] = plan
}

func (r *MemoryRepository) SaveOrgMember(m billing_entity.OrgMember) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[memberKey{orgID: m.OrgID, userID: m.UserID}] = m
}

func (r *MemoryRepository) GetSubscription(id uuid.UUID) (*billing_entity.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.subs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneSubscription(sub), nil
}

// EventCount returns the number of ledger rows.
func (r *MemoryRepository) EventCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// normalizeMetadata round-trips the patch through JSON so stored values have
// the same shapes a jsonb column would return.
func normalizeMetadata(patch map[string]any) (map[string]any, error) {
	if len(patch) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(patch)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata patch: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func mergeInto(dst datatypes.JSONMap, patch map[string]any) datatypes.JSONMap {
	if len(patch) == 0 {
		return dst
	}
	out := datatypes.JSONMap{}
	maps.Copy(out, dst)
	maps.Copy(out, patch)
	return out
}

func clonePayment(pr billing_entity.PaymentRequest) *billing_entity.PaymentRequest {
	pr.Metadata = maps.Clone(pr.Metadata)
	return &pr
}

func cloneSubscription(sub billing_entity.Subscription) *billing_entity.Subscription {
	sub.Metadata = maps.Clone(sub.Metadata)
	return &sub
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func ptrTo(s string) *string {
	return &s
}
