package billing_handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	billing_model "github.com/orbitdesk/orbitdesk-server/src/billing/model"
	billing_repository "github.com/orbitdesk/orbitdesk-server/src/billing/repository"
	billing_service "github.com/orbitdesk/orbitdesk-server/src/billing/service"
	common_model "github.com/orbitdesk/orbitdesk-server/src/common/model"
	"github.com/orbitdesk/orbitdesk-server/src/validators"
)

// CreateCheckout opens a Stripe Checkout session for an existing payment request.
//
//	@Summary		Create checkout session
//	@Description	Creates a hosted Stripe Checkout session for the payment request, records the session on it and moves it to pending_payment. The amount is in major units and must equal the stored request amount.
//	@Tags			Payments
//	@Accept			json
//	@Produce		json
//	@Param			body	body		billing_model.CheckoutBody		true	"Checkout data"
//	@Success		200		{object}	billing_model.CheckoutResponse	"Checkout URL"
//	@Failure		400		{object}	common_model.DescriptiveError	"Invalid body or amount differs from the payment request"
//	@Failure		404		{object}	common_model.DescriptiveError	"Payment request not found"
//	@Failure		409		{object}	common_model.DescriptiveError	"Payment request is not awaiting payment"
//	@Failure		429		{object}	any								"Rate limited"
//	@Failure		500		{object}	common_model.DescriptiveError	"Internal server error"
//	@Failure		503		{object}	common_model.DescriptiveError	"Payment provider not configured"
//	@Router			/payments/checkout [post]
func (h *Handler) CreateCheckout(c *fiber.Ctx) error {
	var body billing_model.CheckoutBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(common_model.NewParseJsonError(err).Send())
	}
	if err := validators.Validator().Struct(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(common_model.NewValidationError(err).Send())
	}

	sess, err := h.checkout.StartCheckout(c.UserContext(), billing_service.CheckoutInput{
		RequestID:   body.RequestID,
		Amount:      body.Amount,
		Currency:    body.Currency,
		Description: body.Description,
		OrgID:       body.OrgID,
		ProjectID:   body.ProjectID,
	})
	if err != nil {
		status := fiber.StatusInternalServerError
		switch {
		case errors.Is(err, billing_repository.ErrNotFound):
			status = fiber.StatusNotFound
		case errors.Is(err, billing_service.ErrCheckoutMismatch):
			status = fiber.StatusBadRequest
		case errors.Is(err, billing_service.ErrPaymentNotPayable):
			status = fiber.StatusConflict
		case errors.Is(err, billing_service.ErrProviderNotConfigured):
			status = fiber.StatusServiceUnavailable
		}
		return c.Status(status).JSON(
			common_model.NewApiError("unable to create checkout session", err, "payments").Send(),
		)
	}

	return c.Status(fiber.StatusOK).JSON(billing_model.CheckoutResponse{
		URL:       sess.URL,
		SessionID: sess.ID,
	})
}
