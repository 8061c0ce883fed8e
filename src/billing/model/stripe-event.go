package billing_model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v84"
)

var ErrMalformedEvent = errors.New("malformed stripe event")

// SupportedEventTypes are the only event types that reach the idempotency ledger.
var SupportedEventTypes = map[stripe.EventType]bool{
	stripe.EventTypeCheckoutSessionCompleted:    true,
	stripe.EventTypeChargeRefunded:              true,
	stripe.EventTypeInvoicePaymentFailed:        true,
	stripe.EventTypeCustomerSubscriptionDeleted: true,
	stripe.EventTypeCustomerSubscriptionUpdated: true,
}

// StripeEvent is the envelope of every webhook delivery. Object is left raw
// until DecodePayload picks the variant for Type.
type StripeEvent struct {
	ID      string           `json:"id"`
	Type    stripe.EventType `json:"type"`
	Created int64            `json:"created"`
	Data    struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

func (e StripeEvent) CreatedAt() time.Time {
	return time.Unix(e.Created, 0).UTC()
}

func (e StripeEvent) Supported() bool {
	return SupportedEventTypes[e.Type]
}

// ParseStripeEvent decodes the envelope of an already verified body.
func ParseStripeEvent(body []byte) (StripeEvent, error) {
	var evt StripeEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		return StripeEvent{}, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}
	if evt.ID == "" || evt.Type == "" {
		return StripeEvent{}, fmt.Errorf("%w: missing id or type", ErrMalformedEvent)
	}
	return evt, nil
}

// EventPayload is one of CheckoutSessionPayload, ChargePayload,
// InvoicePayload, SubscriptionPayload or UnknownPayload.
type EventPayload interface {
	eventPayload()
}

type CheckoutSessionPayload struct {
	ID                string            `json:"id"`
	Mode              string            `json:"mode"`
	ClientReferenceID string            `json:"client_reference_id"`
	PaymentIntent     ExpandableID      `json:"payment_intent"`
	Customer          ExpandableID      `json:"customer"`
	Subscription      ExpandableID      `json:"subscription"`
	Metadata          map[string]string `json:"metadata"`
}

type ChargePayload struct {
	ID             string            `json:"id"`
	PaymentIntent  ExpandableID      `json:"payment_intent"`
	AmountRefunded int64             `json:"amount_refunded"`
	Currency       string            `json:"currency"`
	Metadata       map[string]string `json:"metadata"`
}

type InvoicePayload struct {
	ID           string       `json:"id"`
	Customer     ExpandableID `json:"customer"`
	Subscription ExpandableID `json:"subscription"`
	Parent       *struct {
		SubscriptionDetails *struct {
			Subscription ExpandableID `json:"subscription"`
		} `json:"subscription_details"`
	} `json:"parent"`
}

// SubscriptionID handles both the legacy top-level field and the
// parent.subscription_details location used by newer API versions.
func (p InvoicePayload) SubscriptionID() string {
	if p.Subscription != "" {
		return string(p.Subscription)
	}
	if p.Parent != nil && p.Parent.SubscriptionDetails != nil {
		return string(p.Parent.SubscriptionDetails.Subscription)
	}
	return ""
}

type SubscriptionPayload struct {
	ID                 string       `json:"id"`
	Customer           ExpandableID `json:"customer"`
	Status             string       `json:"status"`
	CancelAtPeriodEnd  bool         `json:"cancel_at_period_end"`
	CurrentPeriodStart int64        `json:"current_period_start"`
	CurrentPeriodEnd   int64        `json:"current_period_end"`
	Items              struct {
		Data []struct {
			CurrentPeriodStart int64 `json:"current_period_start"`
			CurrentPeriodEnd   int64 `json:"current_period_end"`
		} `json:"data"`
	} `json:"items"`
}

// Period returns the billing period, falling back to the first item when the
// subscription object itself no longer carries it.
func (p SubscriptionPayload) Period() (start, end *time.Time) {
	s, e := p.CurrentPeriodStart, p.CurrentPeriodEnd
	if len(p.Items.Data) > 0 {
		if s == 0 {
			s = p.Items.Data[0].CurrentPeriodStart
		}
		if e == 0 {
			e = p.Items.Data[0].CurrentPeriodEnd
		}
	}
	return unixPtr(s), unixPtr(e)
}

// UnknownPayload keeps the raw object for event types without a typed variant.
type UnknownPayload struct {
	Type stripe.EventType
	Raw  json.RawMessage
}

func (CheckoutSessionPayload) eventPayload() {}
func (ChargePayload) eventPayload()          {}
func (InvoicePayload) eventPayload()         {}
func (SubscriptionPayload) eventPayload()    {}
func (UnknownPayload) eventPayload()         {}

// DecodePayload selects the variant for the event type.
func DecodePayload(evt StripeEvent) (EventPayload, error) {
	var target EventPayload
	switch evt.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var p CheckoutSessionPayload
		if err := decodeObject(evt.Data.Object, &p); err != nil {
			return nil, err
		}
		target = p
	case stripe.EventTypeChargeRefunded:
		var p ChargePayload
		if err := decodeObject(evt.Data.Object, &p); err != nil {
			return nil, err
		}
		target = p
	case stripe.EventTypeInvoicePaymentFailed:
		var p InvoicePayload
		if err := decodeObject(evt.Data.Object, &p); err != nil {
			return nil, err
		}
		target = p
	case stripe.EventTypeCustomerSubscriptionDeleted, stripe.EventTypeCustomerSubscriptionUpdated:
		var p SubscriptionPayload
		if err := decodeObject(evt.Data.Object, &p); err != nil {
			return nil, err
		}
		target = p
	default:
		target = UnknownPayload{Type: evt.Type, Raw: evt.Data.Object}
	}
	return target, nil
}

func decodeObject(raw json.RawMessage, dst any) error {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return fmt.Errorf("%w: missing data.object", ErrMalformedEvent)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}
	return nil
}

// ExpandableID accepts a Stripe reference either as a bare id string or as an
// expanded object carrying an "id" field.
type ExpandableID string

func (e *ExpandableID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*e = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*e = ExpandableID(s)
		return nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	*e = ExpandableID(obj.ID)
	return nil
}

func (e ExpandableID) String() string {
	return string(e)
}

func unixPtr(sec int64) *time.Time {
	if sec == 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}
