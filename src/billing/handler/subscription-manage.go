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

// ManageSubscription lets an org owner or admin open the billing portal or
// schedule/clear cancellation at period end.
//
//	@Summary		Manage org subscription
//	@Description	Actions: portal returns a Stripe billing portal URL, cancel sets cancel_at_period_end, resume clears it. Caller must be owner or admin of the org.
//	@Tags			Billing Subscription
//	@Accept			json
//	@Produce		json
//	@Param			body	body		billing_model.ManageSubscriptionBody	true	"Action"
//	@Success		200		{object}	billing_service.ManageResult			"Updated subscription state"
//	@Failure		400		{object}	common_model.DescriptiveError			"Invalid body"
//	@Failure		401		{object}	common_model.DescriptiveError			"Unauthorized"
//	@Failure		403		{object}	common_model.DescriptiveError			"Not an owner or admin"
//	@Failure		404		{object}	common_model.DescriptiveError			"Org has no subscription"
//	@Failure		409		{object}	common_model.DescriptiveError			"Subscription cannot be changed"
//	@Failure		500		{object}	common_model.DescriptiveError			"Internal server error"
//	@Failure		503		{object}	common_model.DescriptiveError			"Payment provider not configured"
//	@Security		ApiKeyAuth
//	@Router			/billing/subscription/manage [post]
func (h *Handler) ManageSubscription(c *fiber.Ctx) error {
	userID, ok := billing_middleware.UserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(
			common_model.NewApiError("unauthorized", nil, "auth").Send(),
		)
	}

	var body billing_model.ManageSubscriptionBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(common_model.NewParseJsonError(err).Send())
	}
	if err := validators.Validator().Struct(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(common_model.NewValidationError(err).Send())
	}
	orgID := uuid.MustParse(body.OrgID)

	result, err := h.manage.Manage(c.UserContext(), userID, orgID, billing_service.ManageAction(body.Action), body.ReturnURL)
	if err != nil {
		status := fiber.StatusInternalServerError
		switch {
		case errors.Is(err, billing_service.ErrNotBillingManager):
			status = fiber.StatusForbidden
		case errors.Is(err, billing_service.ErrNoSubscription):
			status = fiber.StatusNotFound
		case errors.Is(err, billing_service.ErrSubscriptionTerminal),
			errors.Is(err, billing_service.ErrNoProviderReference):
			status = fiber.StatusConflict
		case errors.Is(err, billing_service.ErrUnknownManageAction):
			status = fiber.StatusBadRequest
		case errors.Is(err, billing_service.ErrProviderNotConfigured):
			status = fiber.StatusServiceUnavailable
		}
		return c.Status(status).JSON(
			common_model.NewApiError("unable to manage subscription", err, "billing").Send(),
		)
	}

	return c.Status(fiber.StatusOK).JSON(result)
}
