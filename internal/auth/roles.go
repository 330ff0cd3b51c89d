package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ibistek-uty/incubation-api/internal/domain"
	apperrors "github.com/ibistek-uty/incubation-api/pkg/util/errorutil"
)

// RequireAuthenticated rejects anonymous requests with 401. The response
// body never says why the token was unusable.
func RequireAuthenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := IdentityFromContext(c); !ok {
			return apperrors.NewUnauthorized()
		}
		return c.Next()
	}
}

// RequireRole ensures the caller is authenticated and holds one of the
// allowed roles: 401 for anonymous, 403 otherwise. Membership is exact;
// ADMIN does not imply STAFF or vice versa.
func RequireRole(allowed ...domain.Role) fiber.Handler {
	allowedSet := make(map[domain.Role]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		identity, ok := IdentityFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized()
		}
		if _, exists := allowedSet[identity.Role]; !exists {
			return apperrors.NewForbidden()
		}
		return c.Next()
	}
}
