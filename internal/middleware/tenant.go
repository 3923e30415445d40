package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/wappdesk/backend/internal/dto"
	"github.com/wappdesk/backend/internal/tenant"
)

// TenantMiddleware resolves the tenant client id from JWT claims or the
// X-Client-ID header and stores it in context locals. It must run after
// JWTProtected; tenant users carry their client_id as a claim, platform
// admins act on a tenant via the header.
func TenantMiddleware(registry *tenant.Registry) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if token, ok := c.Locals("user").(*jwt.Token); ok {
			if claims, ok := token.Claims.(jwt.MapClaims); ok {
				if raw, ok := claims["client_id"].(string); ok && raw != "" {
					clientID, err := uuid.Parse(raw)
					if err != nil {
						return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
							Error:   true,
							Message: "Invalid client_id claim",
						})
					}
					if _, err := registry.Resolve(clientID); err != nil {
						return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
							Error:   true,
							Message: err.Error(),
						})
					}
					c.Locals("client_id", clientID)
					return c.Next()
				}
			}
		}

		// Platform admins acting on behalf of a tenant.
		if raw := c.Get("X-Client-ID"); raw != "" {
			clientID, err := uuid.Parse(raw)
			if err != nil || !registry.Exists(clientID) {
				return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
					Error:   true,
					Message: "Invalid X-Client-ID: " + raw,
				})
			}
			c.Locals("client_id", clientID)
			return c.Next()
		}

		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error:   true,
			Message: "X-Client-ID header is required",
		})
	}
}
