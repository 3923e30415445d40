package tenant

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// GetClientID extracts the tenant client id from Fiber context locals.
// Returns uuid.Nil for platform-admin requests that carry no tenant.
func GetClientID(c *fiber.Ctx) uuid.UUID {
	if id, ok := c.Locals("client_id").(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}

// GetUserID extracts the user UUID from JWT claims in context.
func GetUserID(c *fiber.Ctx) (uuid.UUID, error) {
	token, ok := c.Locals("user").(*jwt.Token)
	if !ok {
		return uuid.Nil, errors.New("invalid token in context")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, errors.New("invalid claims")
	}

	sub, ok := claims["sub"].(string)
	if !ok {
		return uuid.Nil, errors.New("missing sub claim")
	}

	return uuid.Parse(sub)
}

// UserID is GetUserID for handlers that run behind JWT middleware, where
// a missing claim cannot happen. Returns uuid.Nil instead of an error.
func UserID(c *fiber.Ctx) uuid.UUID {
	id, err := GetUserID(c)
	if err != nil {
		return uuid.Nil
	}
	return id
}

// GetRole extracts the role claim. Empty string when absent.
func GetRole(c *fiber.Ctx) string {
	token, ok := c.Locals("user").(*jwt.Token)
	if !ok {
		return ""
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return ""
	}
	role, _ := claims["role"].(string)
	return role
}
