// handlers/payment_routes.go
package handlers

import (
	"card-economy-system/services"

	"github.com/gofiber/fiber/v2"
)

// SetupPaymentRoutes wires the provider webhook. No gateway auth here — the
// delivery is authenticated by its HMAC signature inside the service.
func SetupPaymentRoutes(app *fiber.App, payments *services.PaymentService) {
	app.Post("/payments/webhook", payments.HandleWebhook)
}
