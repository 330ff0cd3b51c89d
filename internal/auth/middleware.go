package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/ibistek-uty/incubation-api/internal/domain"
)

const identityKey = "auth_identity"

// CookieName is the auth cookie the gate reads and login sets.
const CookieName = "auth"

// Gate derives a request identity from a bearer token before any guard or
// handler runs. It never rejects by itself: a missing or invalid token yields
// an anonymous request, and rejection is left to the guards.
type Gate struct {
	codec *TokenCodec
}

// NewGate constructs the middleware around a token codec.
func NewGate(codec *TokenCodec) *Gate {
	return &Gate{codec: codec}
}

// Handle extracts a token from the Authorization header or the auth cookie
// (header wins when both are present), verifies it, and stores the derived
// identity in the request locals. Verification failure of any kind leaves the
// request anonymous; it is never escalated to an error.
func (g *Gate) Handle(c *fiber.Ctx) error {
	token := ""
	if header := c.Get(fiber.HeaderAuthorization); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			token = parts[1]
		}
	}
	if token == "" {
		token = c.Cookies(CookieName)
	}
	if token == "" {
		return c.Next()
	}

	identity, err := g.codec.Verify(token)
	if err != nil {
		return c.Next()
	}

	c.Locals(identityKey, identity)
	return c.Next()
}

// IdentityFromContext returns the verified identity, if any.
func IdentityFromContext(c *fiber.Ctx) (domain.Identity, bool) {
	identity, ok := c.Locals(identityKey).(domain.Identity)
	return identity, ok
}
