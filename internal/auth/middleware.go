package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/afbrilian/mincommerce-sub000/internal/model"
)

// Fiber locals keys set by the middleware.
const (
	LocalUserID = "authUserId"
	LocalEmail  = "authEmail"
	LocalRole   = "authRole"
)

// UserID reads the authenticated user id from the request context.
func UserID(c *fiber.Ctx) uuid.UUID {
	id, _ := c.Locals(LocalUserID).(uuid.UUID)
	return id
}

// Role reads the authenticated role from the request context.
func Role(c *fiber.Ctx) string {
	role, _ := c.Locals(LocalRole).(string)
	return role
}

// RequireUser rejects requests without a valid bearer token.
func (m *TokenManager) RequireUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, userID, err := m.verifyHeader(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid or expired token"})
		}

		c.Locals(LocalUserID, userID)
		c.Locals(LocalEmail, claims.Email)
		c.Locals(LocalRole, claims.Role)
		return c.Next()
	}
}

// RequireAdmin rejects requests without a valid admin bearer token.
func (m *TokenManager) RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, userID, err := m.verifyHeader(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid or expired token"})
		}
		if claims.Role != model.RoleAdmin {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "admin access required"})
		}

		c.Locals(LocalUserID, userID)
		c.Locals(LocalEmail, claims.Email)
		c.Locals(LocalRole, claims.Role)
		return c.Next()
	}
}

func (m *TokenManager) verifyHeader(c *fiber.Ctx) (*Claims, uuid.UUID, error) {
	header := c.Get(fiber.HeaderAuthorization)
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	return m.Verify(token)
}
