package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/dispute-engine/internal/domain"
	apperrors "github.com/spec-kit/dispute-engine/pkg/util"
)

const partyKey = "auth_party"

// AuthMiddleware validates bearer tokens and loads the acting party.
// The engine trusts the identity provider's claims; there is no user
// store to consult.
type AuthMiddleware struct {
	tokens *TokenManager
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}
	if claims.UserID == "" {
		return apperrors.NewUnauthorized("token missing subject")
	}
	switch claims.Role {
	case domain.RoleLandlord, domain.RoleContractor, domain.RoleTenant, domain.RoleMediator, domain.RoleAdmin:
	default:
		return apperrors.NewUnauthorized("unknown role")
	}

	c.Locals(partyKey, domain.Party{
		UserID: claims.UserID,
		Role:   claims.Role,
		Name:   claims.Name,
	})
	return c.Next()
}

// PartyFromContext retrieves the authenticated party.
func PartyFromContext(c *fiber.Ctx) (domain.Party, bool) {
	val := c.Locals(partyKey)
	if val == nil {
		return domain.Party{}, false
	}
	party, ok := val.(domain.Party)
	return party, ok
}
