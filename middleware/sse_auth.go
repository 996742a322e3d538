// card-economy-system/middleware/sse_auth.go
package middleware

import (
	"log"
	"strings"

	"card-economy-system/services"

	"github.com/gofiber/fiber/v2"
)

// SSEAuthMiddleware validates `token` and `device_id` from query params via
// the identity service. EventSource cannot send the gateway headers, so the
// balance stream authenticates this way.
//
// Usage:
//
//	app.Get("/economy/balance/stream", middleware.SSEAuthMiddleware(authClient), ledgerService.StreamBalanceSSE)
func SSEAuthMiddleware(authClient *services.AuthServiceClient) func(*fiber.Ctx) error {
	return func(c *fiber.Ctx) error {
		accessToken := strings.TrimSpace(string(c.Request().URI().QueryArgs().Peek("token")))
		deviceID := strings.TrimSpace(string(c.Request().URI().QueryArgs().Peek("device_id")))

		if accessToken == "" || deviceID == "" {
			log.Printf("[SSEAuth] ❌ Missing query params: token len=%d, device_id='%s'", len(accessToken), deviceID)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Missing token or device_id in query",
			})
		}

		resp, err := authClient.ValidateToken(accessToken, deviceID)
		if err != nil {
			log.Printf("[SSEAuth] ❌ Validation failed for device %s: %v", deviceID, err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}

		c.Locals("user_id", resp.UserID)
		c.Locals("device_id", resp.DeviceID)

		return c.Next()
	}
}
