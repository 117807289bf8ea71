package gateway

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/auth-gateway/internal/auth"
)

// Trusted identity headers set by the gateway after verification. Inbound
// copies are always stripped so clients cannot spoof them.
const (
	HeaderAuthSubject = "X-Auth-Subject"
	HeaderAuthRole    = "X-Auth-Role"
)

// AuthFilter verifies bearer tokens on every non-public request before it is
// forwarded downstream. It fails closed: any verification problem ends in 401.
type AuthFilter struct {
	codec          *auth.TokenCodec
	publicPrefixes []string
}

// NewAuthFilter constructs the filter with a public-path prefix allowlist.
func NewAuthFilter(codec *auth.TokenCodec, publicPrefixes []string) *AuthFilter {
	return &AuthFilter{codec: codec, publicPrefixes: publicPrefixes}
}

// Handle classifies the path and verifies the access token on protected ones.
// Verified subject and role travel downstream as trusted headers.
func (f *AuthFilter) Handle(c *fiber.Ctx) error {
	c.Request().Header.Del(HeaderAuthSubject)
	c.Request().Header.Del(HeaderAuthRole)

	if f.isPublic(c.Path()) {
		return c.Next()
	}

	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return unauthorized(c)
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return unauthorized(c)
	}

	claims, err := f.codec.VerifyAccess(parts[1])
	if err != nil {
		return unauthorized(c)
	}

	c.Request().Header.Set(HeaderAuthSubject, claims.Subject)
	c.Request().Header.Set(HeaderAuthRole, string(claims.Role))
	return c.Next()
}

func (f *AuthFilter) isPublic(path string) bool {
	for _, prefix := range f.publicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).Send(nil)
}
