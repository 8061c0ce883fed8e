package billing_handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	billing_middleware "github.com/orbitdesk/orbitdesk-server/src/billing/middleware"
	billing_model "github.com/orbitdesk/orbitdesk-server/src/billing/model"
	billing_service "github.com/orbitdesk/orbitdesk-server/src/billing/service"
	common_model "github.com/orbitdesk/orbitdesk-server/src/common/model"
	"github.com/orbitdesk/orbitdesk-server/src/validators"
)

// CreateSubscription starts a Stripe subscription checkout for an org.
//
//	@Summary		Create org subscription
//	@Description	Reuses or creates the org's Stripe customer and opens a subscription Checkout session for the plan price. A 14 day trial applies unless the org is already trialing. An org without a current subscription gets a local trialing row. Caller must be owner or admin of the org.
//	@Tags			Billing Subscription
//	@Accept			json
//	@Produce		json
//	@Param			body	body		billing_model.CreateSubscriptionBody	true	"Plan selection"
//	@Success		200		{object}	billing_service.SubscribeResult			"Checkout URL"
//	@Failure		400		{object}	common_model.DescriptiveError			"Invalid body or plan has no Stripe price"
//	@Failure		401		{object}	common_model.DescriptiveError			"Unauthorized"
//	@Failure		403		{object}	common_model.DescriptiveError			"Not an owner or admin"
//	@Failure		404		{object}	common_model.DescriptiveError			"Plan not found"
//	@Failure		429		{object}	any										"Rate limited"
//	@Failure		500		{object}	common_model.DescriptiveError			"Internal server error"
//	@Failure		503		{object}	common_model.DescriptiveError			"Payment provider not configured"
//	@Security		ApiKeyAuth
//	@Router			/billing/subscription/create [post]
func (h *Handler) CreateSubscription(c *fiber.Ctx) error {
	userID, ok := billing_middleware.UserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(
			common_model.NewApiError("unauthorized", nil, "auth").Send(),
		)
	}

	var body billing_model.CreateSubscriptionBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(common_model.NewParseJsonError(err).Send())
	}
	if err := validators.Validator().Struct(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(common_model.NewValidationError(err).Send())
	}

	result, err := h.subscribe.Subscribe(c.UserContext(), userID, billing_service.SubscribeInput{
		OrgID:        uuid.MustParse(body.OrgID),
		PlanID:       body.PlanID,
		BillingCycle: body.BillingCycle,
		SuccessURL:   body.SuccessURL,
		CancelURL:    body.CancelURL,
	})
	if err != nil {
		status := fiber.StatusInternalServerError
		switch {
		case errors.Is(err, billing_service.ErrNotBillingManager):
			status = fiber.StatusForbidden
		case errors.Is(err, billing_service.ErrPlanNotFound):
			status = fiber.StatusNotFound
		case errors.Is(err, billing_service.ErrPlanNotPriced):
			status = fiber.StatusBadRequest
		case errors.Is(err, billing_service.ErrProviderNotConfigured):
			status = fiber.StatusServiceUnavailable
		}
		return c.Status(status).JSON(
			common_model.NewApiError("unable to create subscription", err, "billing").Send(),
		)
	}

	return c.Status(fiber.StatusOK).JSON(result)
}
