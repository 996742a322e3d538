package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"card-economy-system/handlers"
	"card-economy-system/middleware"
	"card-economy-system/models"
	"card-economy-system/services"
	"card-economy-system/utils"
	"card-economy-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 20 * 1024 * 1024, // card artwork uploads
	})

	// 🔐 GLOBAL: only Gateway requests allowed (payment webhook is signed separately)
	app.Use(middleware.GatewayAuthMiddleware())

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-User-ID, X-User-Roles, X-Service-Token",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	if err := utils.InitR2(); err != nil {
		log.Fatal("failed to initialize R2 client:", err)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Account{},
		&models.Transaction{},
		&models.RewardClaim{},
		&models.Achievement{},
		&models.CardSeries{},
		&models.DailyRewardTier{},
		&models.DailyStreak{},
		&models.Mission{},
		&models.UserMission{},
		&models.Card{},
		&models.UserCard{},
		&models.BoosterType{},
		&models.BoosterRarityWeight{},
		&models.UserBooster{},
		&models.ProcessedPayment{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	checkoutBaseURL := os.Getenv("PAYMENT_CHECKOUT_URL")
	if checkoutBaseURL == "" {
		log.Fatal("PAYMENT_CHECKOUT_URL environment variable not set")
	}
	webhookSecret := os.Getenv("PAYMENT_WEBHOOK_SECRET")
	if webhookSecret == "" {
		log.Fatal("PAYMENT_WEBHOOK_SECRET environment variable not set")
	}
	authServiceURL := os.Getenv("AUTH_SERVICE_URL")
	if authServiceURL == "" {
		log.Fatal("AUTH_SERVICE_URL environment variable not set")
	}

	ledgerService := services.NewLedgerService(db)
	claimService := services.NewClaimService(db, ledgerService)
	dailyService := services.NewDailyService(db, ledgerService)
	missionService := services.NewMissionService(db, ledgerService)
	paymentService := services.NewPaymentService(db, checkoutBaseURL, webhookSecret)
	boosterService := services.NewBoosterService(db, ledgerService, claimService, missionService, paymentService)
	catalogService := services.NewCatalogService(db)
	authClient := services.NewAuthServiceClient(authServiceURL, os.Getenv("ECONOMY_SERVICE_TOKEN"))

	if err := dailyService.SeedDefaultSchedule(); err != nil {
		log.Fatal("failed to seed daily reward schedule:", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Catalog mirror polling from the content service
	catalogSync := workers.NewCatalogSyncClient(db)
	go workers.PollCatalog(ctx, catalogSync, 60*time.Second)

	missionService.StartRolloverScheduler()

	handlers.SetupEconomyRoutes(app, ledgerService, claimService, dailyService, authClient)
	handlers.SetupMissionRoutes(app, ledgerService, missionService)
	handlers.SetupBoosterRoutes(app, ledgerService, boosterService)
	handlers.SetupCatalogRoutes(app, catalogService, dailyService)
	handlers.SetupPaymentRoutes(app, paymentService)

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Println("✅ Catalog polling running (every 60s)")
	log.Println("✅ Mission rollover scheduler running")
	log.Println("✅ GatewayAuthMiddleware enforced globally — payment webhook exempt, HMAC-verified")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
}
