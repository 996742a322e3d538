// handlers/mission_routes.go
package handlers

import (
	"card-economy-system/middleware"
	"card-economy-system/services"

	"github.com/gofiber/fiber/v2"
)

// SetupMissionRoutes wires mission listing, progress events and claims
func SetupMissionRoutes(app *fiber.App, ledger *services.LedgerService, missions *services.MissionService) {
	secured := app.Group("/missions", middleware.UserContextMiddleware())

	secured.Get("/", func(c *fiber.Ctx) error {
		acc, err := resolveAccount(c, ledger)
		if err != nil {
			return failJSON(c, err)
		}
		list, err := missions.ListMissions(acc.ID)
		if err != nil {
			return failJSON(c, err)
		}
		return c.JSON(list)
	})

	secured.Post("/assign", func(c *fiber.Ctx) error {
		acc, err := resolveAccount(c, ledger)
		if err != nil {
			return failJSON(c, err)
		}
		if err := missions.AssignMissions(acc.ID); err != nil {
			return failJSON(c, err)
		}
		list, err := missions.ListMissions(acc.ID)
		if err != nil {
			return failJSON(c, err)
		}
		return c.JSON(list)
	})

	secured.Post("/progress", func(c *fiber.Ctx) error {
		var req struct {
			ConditionType string `json:"condition_type"`
			Amount        int64  `json:"amount"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}
		if req.ConditionType == "" || req.Amount < 1 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "condition_type and a positive amount are required"})
		}
		acc, err := resolveAccount(c, ledger)
		if err != nil {
			return failJSON(c, err)
		}
		updates, err := missions.RecordProgress(acc.ID, req.ConditionType, req.Amount)
		if err != nil {
			return failJSON(c, err)
		}
		return c.JSON(fiber.Map{"updated": updates})
	})

	secured.Post("/:id/claim", func(c *fiber.Ctx) error {
		acc, err := resolveAccount(c, ledger)
		if err != nil {
			return failJSON(c, err)
		}
		result, err := missions.ClaimMission(acc.ID, c.Params("id"))
		if err != nil {
			return failJSON(c, err)
		}
		return c.JSON(result)
	})
}
