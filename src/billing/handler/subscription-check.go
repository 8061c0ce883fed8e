package billing_handler

import (
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	billing_model "github.com/orbitdesk/orbitdesk-server/src/billing/model"
	common_model "github.com/orbitdesk/orbitdesk-server/src/common/model"
)

// SubscriptionCheck runs one lifecycle sweep.
//
//	@Summary		Run subscription lifecycle sweep
//	@Description	Expires ended trials, moves active subscriptions past their period end to past_due and cancels past_due subscriptions beyond the grace period. Authorized with the CRON_SECRET bearer token.
//	@Tags			Billing Subscription
//	@Produce		json
//	@Param			Authorization	header		string							true	"Bearer CRON_SECRET"
//	@Success		200				{object}	billing_model.SweepResponse		"Sweep results"
//	@Failure		401				{object}	common_model.DescriptiveError	"Invalid token"
//	@Failure		500				{object}	common_model.DescriptiveError	"Sweep failed"
//	@Failure		503				{object}	common_model.DescriptiveError	"CRON_SECRET not configured"
//	@Router			/billing/subscription/check [post]
func (h *Handler) SubscriptionCheck(c *fiber.Ctx) error {
	if h.cronSecret == "" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(
			common_model.NewApiError("subscription check is not configured", nil, "billing").Send(),
		)
	}

	token, ok := strings.CutPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
	if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(h.cronSecret)) != 1 {
		return c.Status(fiber.StatusUnauthorized).JSON(
			common_model.NewApiError("unauthorized", errors.New("invalid bearer token"), "billing").Send(),
		)
	}

	now := h.now()
	results, err := h.sweeper.RunAt(c.UserContext(), now)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(
			common_model.NewApiError("subscription check failed", err, "billing").Send(),
		)
	}

	return c.Status(fiber.StatusOK).JSON(billing_model.SweepResponse{
		Ok:        true,
		Timestamp: now.UTC().Format(time.RFC3339),
		Results:   results,
	})
}
