package auth

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/dispute-engine/internal/domain"
)

// RequireRole ensures the party holds one of the allowed roles.
func RequireRole(allowed ...domain.PartyRole) fiber.Handler {
	allowedSet := make(map[domain.PartyRole]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		party, ok := PartyFromContext(c)
		if !ok {
			return fiber.NewError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		}
		if len(allowedSet) == 0 {
			return c.Next()
		}
		if _, exists := allowedSet[party.Role]; !exists {
			return fiber.NewError(http.StatusForbidden, "insufficient role")
		}
		return c.Next()
	}
}

// RequireParty ensures the caller is authenticated.
func RequireParty() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := PartyFromContext(c); !ok {
			return fiber.NewError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		}
		return c.Next()
	}
}
