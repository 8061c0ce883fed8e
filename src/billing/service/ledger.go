package billing_service

import (
	"context"
	"errors"
	"fmt"
	"time"

	billing_entity "github.com/orbitdesk/orbitdesk-server/src/billing/entity"
	billing_model "github.com/orbitdesk/orbitdesk-server/src/billing/model"
	billing_repository "github.com/orbitdesk/orbitdesk-server/src/billing/repository"
	"gorm.io/datatypes"
)

// ErrStoreFailure marks infrastructure errors the provider should retry.
var ErrStoreFailure = errors.New("billing store failure")

type ClaimResult int

const (
	Claimed ClaimResult = iota
	AlreadyClaimed
)

func (r ClaimResult) String() string {
	if r == AlreadyClaimed {
		return "already_claimed"
	}
	return "claimed"
}

// ClaimEvent inserts the ledger row for evt. The unique index on event_id
// decides the winner when deliveries race; losing is not an error.
func ClaimEvent(ctx context.Context, store billing_repository.Store, evt billing_model.StripeEvent, receivedAt time.Time) (ClaimResult, error) {
	row := &billing_entity.WebhookEvent{
		EventID:    evt.ID,
		EventType:  string(evt.Type),
		ReceivedAt: receivedAt,
		Metadata:   datatypes.JSONMap{"timestamp": evt.Created},
	}

	ok, err := store.ClaimEvent(ctx, row)
	if err != nil {
		return Claimed, fmt.Errorf("%w: %w", ErrStoreFailure, err)
	}
	if !ok {
		return AlreadyClaimed, nil
	}
	return Claimed, nil
}
