package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"brawl-match-engine/handlers"
	"brawl-match-engine/middleware"
	"brawl-match-engine/models"
	"brawl-match-engine/services"
	"brawl-match-engine/utils"
	"brawl-match-engine/workers"

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

	app := fiber.New()

	// 🔐❗ GLOBAL: Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	// Load allowed origins from environment variable
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
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-Player-Address, X-Service-Token",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.QueueEntry{},
		&models.Match{},
		&models.FightState{},
		&models.MatchRound{},
		&models.PlayerRating{},
		&models.MatchEvent{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	archiver, err := utils.NewR2Archiver()
	if err != nil {
		log.Fatal("failed to initialize R2 client:", err)
	}
	if archiver == nil {
		log.Println("⚠️  R2_BUCKET_NAME not set, transcript archiving disabled")
	}

	eventService := services.NewEventService(db)
	hubClient := services.NewHubClient()
	// R2Archiver being nil must reach the service as a nil interface, not a
	// typed nil.
	var archive services.TranscriptArchiver
	if archiver != nil {
		archive = archiver
	}
	matchService := services.NewMatchService(db, eventService, hubClient, archive)
	matchmakingService := services.NewMatchmakingService(db, eventService)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sweeper := workers.NewLifecycleSweeper(db, matchService)
	sweeper.Start(ctx)

	matchmakingService.StartMaintenanceScheduler(eventService)

	// ✅ Setup routes — all behind enforced Gateway auth
	handlers.SetupQueueRoutes(app, matchmakingService)
	handlers.SetupMatchRoutes(app, matchService, eventService)

	port := os.Getenv("PORT")
	if port == "" {
		port = "5300"
	}

	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%s", port)
	log.Println("✅ Lifecycle Sweeper running")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
	if err := app.Shutdown(); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
