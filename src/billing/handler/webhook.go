package billing_handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	billing_model "github.com/orbitdesk/orbitdesk-server/src/billing/model"
	billing_service "github.com/orbitdesk/orbitdesk-server/src/billing/service"
	common_model "github.com/orbitdesk/orbitdesk-server/src/common/model"
)

// StripeWebhook handles incoming Stripe webhook events.
//
//	@Summary		Handle Stripe webhook
//	@Description	Verifies the Stripe-Signature header against the raw body, records the event id once and applies the payment or subscription transition. Duplicate and unsupported events are acknowledged with 200. No authentication required.
//	@Tags			Billing Webhook
//	@Accept			json
//	@Produce		json
//	@Param			Stripe-Signature	header		string							true	"Stripe webhook signature"
//	@Success		200					{object}	billing_model.WebhookResponse	"Event accepted"
//	@Failure		400					{object}	common_model.DescriptiveError	"Missing or invalid signature, or malformed event"
//	@Failure		429					{object}	any								"Rate limited"
//	@Failure		500					{object}	billing_model.WebhookResponse	"Processing failed, Stripe will retry"
//	@Failure		503					{object}	common_model.DescriptiveError	"Webhook secret not configured"
//	@Router			/billing/webhook/stripe [post]
func (h *Handler) StripeWebhook(c *fiber.Ctx) error {
	result, err := h.engine.HandleWebhook(c.UserContext(), c.Body(), c.Get("Stripe-Signature"))
	if err != nil {
		switch {
		case errors.Is(err, billing_service.ErrWebhookNotConfigured):
			return c.Status(fiber.StatusServiceUnavailable).JSON(
				common_model.NewApiError("payment provider is not configured", err, "billing").Send(),
			)
		case errors.Is(err, billing_service.ErrMissingSignature),
			errors.Is(err, billing_service.ErrInvalidSignature):
			return c.Status(fiber.StatusBadRequest).JSON(
				common_model.NewApiError("invalid webhook signature", err, "billing").Send(),
			)
		case errors.Is(err, billing_model.ErrMalformedEvent):
			return c.Status(fiber.StatusBadRequest).JSON(
				common_model.NewApiError("invalid webhook payload", err, "billing").Send(),
			)
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(billing_model.WebhookResponse{
				Received: true,
				Error:    "Webhook processing failed",
			})
		}
	}

	resp := billing_model.WebhookResponse{Received: true}
	switch result.Outcome {
	case billing_service.OutcomeDuplicate:
		resp.Duplicate = true
	case billing_service.OutcomeIgnored:
		resp.Ignored = true
		resp.Reason = "unsupported_event_type"
	default:
		resp.Processed = true
	}
	return c.Status(fiber.StatusOK).JSON(resp)
}
