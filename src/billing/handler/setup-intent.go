package billing_handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	billing_model "github.com/orbitdesk/orbitdesk-server/src/billing/model"
	billing_service "github.com/orbitdesk/orbitdesk-server/src/billing/service"
	"github.com/orbitdesk/orbitdesk-server/src/billing/service/payment"
	common_model "github.com/orbitdesk/orbitdesk-server/src/common/model"
	"github.com/orbitdesk/orbitdesk-server/src/validators"
)

// CreateSetupIntent saves a card for off-session billing during signup.
//
//	@Summary		Create setup intent
//	@Description	Creates a Stripe customer tagged pending_signup and a SetupIntent for it. The card is not charged.
//	@Tags			Billing Subscription
//	@Accept			json
//	@Produce		json
//	@Param			body	body		billing_model.SetupIntentBody		true	"Signup contact"
//	@Success		200		{object}	billing_service.SetupIntentResult	"Client secret for the card form"
//	@Failure		400		{object}	common_model.DescriptiveError		"Invalid body"
//	@Failure		429		{object}	any									"Rate limited"
//	@Failure		500		{object}	common_model.DescriptiveError		"Internal server error"
//	@Failure		503		{object}	common_model.DescriptiveError		"Payment provider not configured"
//	@Router			/billing/setup-intent [post]
func (h *Handler) CreateSetupIntent(c *fiber.Ctx) error {
	var body billing_model.SetupIntentBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(common_model.NewParseJsonError(err).Send())
	}
	if err := validators.Validator().Struct(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(common_model.NewValidationError(err).Send())
	}

	in := billing_service.SetupIntentInput{
		Email:       body.Email,
		CompanyName: body.CompanyName,
		BillingName: body.BillingName,
	}
	if a := body.BillingAddress; a != nil {
		in.Address = &payment.Address{
			Line1:      a.Line1,
			Line2:      a.Line2,
			City:       a.City,
			State:      a.State,
			PostalCode: a.PostalCode,
			Country:    a.Country,
		}
	}

	result, err := h.setupIntent.Create(c.UserContext(), in)
	if err != nil {
		status := fiber.StatusInternalServerError
		if errors.Is(err, billing_service.ErrProviderNotConfigured) {
			status = fiber.StatusServiceUnavailable
		}
		return c.Status(status).JSON(
			common_model.NewApiError("unable to create setup intent", err, "billing").Send(),
		)
	}

	return c.Status(fiber.StatusOK).JSON(result)
}
