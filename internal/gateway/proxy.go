package gateway

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/proxy"

	"github.com/spec-kit/auth-gateway/internal/config"
	apperrors "github.com/spec-kit/auth-gateway/pkg/util"
)

// Forward proxies the request to the target service, preserving path, query,
// headers, and body.
func Forward(target string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := proxy.Do(c, target+c.OriginalURL()); err != nil {
			return apperrors.NewUnavailable(err)
		}
		c.Response().Header.Del(fiber.HeaderServer)
		return nil
	}
}

// RegisterRoutes wires the ingress pipeline: rate limiter, auth filter, then
// prefix-routed forwarding to the upstream services.
func RegisterRoutes(app *fiber.App, cfg config.GatewayConfig, limiter *RateLimiter, filter *AuthFilter) {
	if limiter != nil {
		app.Use(limiter.Handle)
	}
	app.Use(filter.Handle)

	app.All("/api/auth/*", Forward(cfg.AuthServiceURL))
	app.All("/api/users/*", Forward(cfg.UserServiceURL))
}
