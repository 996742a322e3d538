// handlers/catalog_routes.go
package handlers

import (
	"card-economy-system/middleware"
	"card-economy-system/services"

	"github.com/gofiber/fiber/v2"
)

// SetupCatalogRoutes wires the read-only catalog and its admin write surface
func SetupCatalogRoutes(app *fiber.App, catalog *services.CatalogService, daily *services.DailyService) {
	// 🔓 Public reads — no user context, but still behind Gateway auth
	app.Get("/catalog/cards", catalog.GetCards)
	app.Get("/catalog/boosters", catalog.GetBoosterTypes)
	app.Get("/catalog/achievements", catalog.GetAchievements)
	app.Get("/catalog/series", catalog.GetSeries)

	// 🔐 Admin writes
	admin := app.Group("/admin/catalog", middleware.UserContextMiddleware(), middleware.RequireAdmin())

	admin.Post("/cards", catalog.CreateCard)
	admin.Post("/cards/:id/artwork", catalog.UploadCardArtwork)
	admin.Post("/boosters", catalog.CreateBoosterType)
	admin.Post("/achievements", catalog.CreateAchievement)
	admin.Post("/missions", catalog.CreateMission)
	admin.Post("/series", catalog.CreateSeries)

	admin.Post("/daily-tiers/seed", func(c *fiber.Ctx) error {
		if err := daily.SeedDefaultSchedule(); err != nil {
			return failJSON(c, err)
		}
		return c.JSON(fiber.Map{"message": "Daily reward schedule seeded"})
	})
}
