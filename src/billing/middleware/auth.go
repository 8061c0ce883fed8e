package billing_middleware

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	common_model "github.com/orbitdesk/orbitdesk-server/src/common/model"
)

const UserIDLocal = "userID"

// UserMiddleware authenticates "Authorization: Bearer <jwt>" signed with HS256
// and stores the subject as a uuid.UUID in c.Locals(UserIDLocal).
func UserMiddleware(secret string) fiber.Handler {
	key := []byte(secret)

	return func(c *fiber.Ctx) error {
		if len(key) == 0 {
			return c.Status(fiber.StatusServiceUnavailable).JSON(
				common_model.NewApiError("authentication is not configured", nil, "auth").Send(),
			)
		}

		userID, err := parseBearer(c.Get(fiber.HeaderAuthorization), key)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(
				common_model.NewApiError("unauthorized", err, "auth").Send(),
			)
		}

		c.Locals(UserIDLocal, userID)
		return c.Next()
	}
}

func parseBearer(header string, key []byte) (uuid.UUID, error) {
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return uuid.Nil, errors.New("missing bearer token")
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return key, nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	if !parsed.Valid {
		return uuid.Nil, errors.New("invalid token")
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid subject: %w", err)
	}
	return userID, nil
}

// UserID returns the id stored by UserMiddleware.
func UserID(c *fiber.Ctx) (uuid.UUID, bool) {
	id, ok := c.Locals(UserIDLocal).(uuid.UUID)
	return id, ok
}
