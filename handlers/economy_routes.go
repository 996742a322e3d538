// handlers/economy_routes.go
package handlers

import (
	"card-economy-system/middleware"
	"card-economy-system/models"
	"card-economy-system/services"

	"github.com/gofiber/fiber/v2"
)

// SetupEconomyRoutes wires balance, claim and daily-reward endpoints.
// Everything here is per-user and requires the gateway user context.
func SetupEconomyRoutes(app *fiber.App, ledger *services.LedgerService, claims *services.ClaimService, daily *services.DailyService, authClient *services.AuthServiceClient) {
	// SSE stream authenticates via query token — EventSource can't set headers
	app.Get("/economy/balance/stream", middleware.SSEAuthMiddleware(authClient), ledger.StreamBalanceSSE)

	secured := app.Group("/economy", middleware.UserContextMiddleware())

	secured.Get("/balance", func(c *fiber.Ctx) error {
		acc, err := resolveAccount(c, ledger)
		if err != nil {
			return failJSON(c, err)
		}
		return c.JSON(fiber.Map{
			"balance": acc.Balance,
			"xp":      acc.XP,
			"level":   acc.Level,
		})
	})

	secured.Get("/transactions", func(c *fiber.Ctx) error {
		acc, err := resolveAccount(c, ledger)
		if err != nil {
			return failJSON(c, err)
		}
		limit := c.QueryInt("limit", 50)
		entries, err := ledger.Transactions(acc.ID, limit)
		if err != nil {
			return failJSON(c, err)
		}
		return c.JSON(entries)
	})

	secured.Post("/claims/achievement/:id", func(c *fiber.Ctx) error {
		acc, err := resolveAccount(c, ledger)
		if err != nil {
			return failJSON(c, err)
		}
		result, err := claims.ClaimAchievement(acc.ID, c.Params("id"))
		if err != nil {
			return failJSON(c, err)
		}
		return c.JSON(result)
	})

	secured.Post("/claims/series/:id", func(c *fiber.Ctx) error {
		acc, err := resolveAccount(c, ledger)
		if err != nil {
			return failJSON(c, err)
		}
		result, err := claims.ClaimSeries(acc.ID, c.Params("id"))
		if err != nil {
			return failJSON(c, err)
		}
		return c.JSON(result)
	})

	secured.Get("/claims/:kind", func(c *fiber.Ctx) error {
		acc, err := resolveAccount(c, ledger)
		if err != nil {
			return failJSON(c, err)
		}
		kind := models.RewardSourceKind(c.Params("kind"))
		list, err := claims.ListClaims(acc.ID, kind)
		if err != nil {
			return failJSON(c, err)
		}
		return c.JSON(list)
	})

	secured.Post("/daily/claim", func(c *fiber.Ctx) error {
		acc, err := resolveAccount(c, ledger)
		if err != nil {
			return failJSON(c, err)
		}
		result, err := daily.Claim(acc.ID)
		if err != nil {
			return failJSON(c, err)
		}
		return c.JSON(result)
	})

	secured.Get("/daily/status", func(c *fiber.Ctx) error {
		acc, err := resolveAccount(c, ledger)
		if err != nil {
			return failJSON(c, err)
		}
		status, err := daily.Status(acc.ID)
		if err != nil {
			return failJSON(c, err)
		}
		return c.JSON(status)
	})
}
