package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const SubjectKeyFiber = "Subject"

// RequireToken validates the bearer token when API_TOKEN_SECRET is set and
// passes every request through otherwise.
func (m *Middleware) RequireToken() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if m.tokens == nil || !m.tokens.Enabled() {
			return c.Next()
		}

		log := m.log.TraceFromContext(c.UserContext()).Function("RequireToken")

		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			log.Info("missing authorization header")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Authorization header required",
			})
		}

		tokenParts := strings.Split(authHeader, " ")
		if len(tokenParts) != 2 || strings.ToLower(tokenParts[0]) != "bearer" || tokenParts[1] == "" {
			log.Info("invalid authorization header format")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid authorization header format",
			})
		}

		claims, err := m.tokens.Validate(tokenParts[1])
		if err != nil {
			log.Info("token validation failed", "error", err.Error())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid token",
			})
		}

		c.Locals(SubjectKeyFiber, claims)
		return c.Next()
	}
}

// GetClaims returns the validated token claims, or nil when auth is disabled.
func GetClaims(c *fiber.Ctx) *jwt.RegisteredClaims {
	claims, ok := c.Locals(SubjectKeyFiber).(*jwt.RegisteredClaims)
	if !ok {
		return nil
	}
	return claims
}
