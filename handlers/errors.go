// handlers/errors.go
package handlers

import (
	"errors"
	"log"

	"card-economy-system/models"
	"card-economy-system/services"

	"github.com/gofiber/fiber/v2"
)

// failJSON maps service failure kinds onto HTTP statuses. Duplicate guards
// come back as 409 so clients can tell a rejected retry from a real error.
func failJSON(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, services.ErrAlreadyClaimed), errors.Is(err, services.ErrAlreadyOpened):
		status = fiber.StatusConflict
	case errors.Is(err, services.ErrInsufficientFunds):
		status = fiber.StatusPaymentRequired
	case errors.Is(err, services.ErrNotUnlocked),
		errors.Is(err, services.ErrNotCompleted),
		errors.Is(err, services.ErrNotPurchasable),
		errors.Is(err, services.ErrPaymentVerification):
		status = fiber.StatusBadRequest
	}
	if status == fiber.StatusInternalServerError {
		log.Printf("❌ [HTTP] %s %s: %v", c.Method(), c.Path(), err)
		return c.Status(status).JSON(fiber.Map{"error": "internal error"})
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

// resolveAccount maps the gateway user context onto the economy account,
// creating it on first contact.
func resolveAccount(c *fiber.Ctx, ledger *services.LedgerService) (*models.Account, error) {
	userID, _ := c.Locals("user_id").(string)
	if userID == "" {
		return nil, errors.New("user context missing")
	}
	return ledger.EnsureAccount(userID)
}
