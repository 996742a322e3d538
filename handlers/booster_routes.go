// handlers/booster_routes.go
package handlers

import (
	"card-economy-system/middleware"
	"card-economy-system/services"

	"github.com/gofiber/fiber/v2"
)

// SetupBoosterRoutes wires pack purchase, opening and the card collection
func SetupBoosterRoutes(app *fiber.App, ledger *services.LedgerService, boosters *services.BoosterService) {
	secured := app.Group("/boosters", middleware.UserContextMiddleware())

	secured.Get("/", func(c *fiber.Ctx) error {
		acc, err := resolveAccount(c, ledger)
		if err != nil {
			return failJSON(c, err)
		}
		list, err := boosters.ListBoosters(acc.ID)
		if err != nil {
			return failJSON(c, err)
		}
		return c.JSON(list)
	})

	secured.Post("/purchase/:type_id", func(c *fiber.Ctx) error {
		acc, err := resolveAccount(c, ledger)
		if err != nil {
			return failJSON(c, err)
		}
		result, err := boosters.Purchase(acc.ID, c.Params("type_id"))
		if err != nil {
			return failJSON(c, err)
		}
		if result.CheckoutURL != "" {
			// Real-money path: nothing granted yet, fulfilment comes via webhook
			return c.Status(fiber.StatusAccepted).JSON(result)
		}
		return c.Status(fiber.StatusCreated).JSON(result)
	})

	secured.Post("/:id/open", func(c *fiber.Ctx) error {
		acc, err := resolveAccount(c, ledger)
		if err != nil {
			return failJSON(c, err)
		}
		result, err := boosters.Open(acc.ID, c.Params("id"))
		if err != nil {
			return failJSON(c, err)
		}
		return c.JSON(result)
	})

	app.Get("/collection", middleware.UserContextMiddleware(), func(c *fiber.Ctx) error {
		acc, err := resolveAccount(c, ledger)
		if err != nil {
			return failJSON(c, err)
		}
		cards, err := boosters.ListCollection(acc.ID)
		if err != nil {
			return failJSON(c, err)
		}
		return c.JSON(cards)
	})
}
