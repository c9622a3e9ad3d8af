package main

import (
	"context"
	"log"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	"github.com/joho/godotenv"

	"github.com/offerdesk/console-be/internal/config"
	"github.com/offerdesk/console-be/internal/db"
	"github.com/offerdesk/console-be/internal/handlers"
	"github.com/offerdesk/console-be/internal/middleware"
	"github.com/offerdesk/console-be/internal/models"
	"github.com/offerdesk/console-be/internal/realtime"
	"github.com/offerdesk/console-be/internal/review"
	"github.com/offerdesk/console-be/internal/services/genai"
	"github.com/offerdesk/console-be/internal/services/partner"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	gdb, err := db.Connect(cfg.DBDSN)
	if err != nil {
		log.Fatal(err)
	}

	rdb := realtime.NewRedis(cfg.RedisAddr, cfg.RedisPassword)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatal("Redis not reachable:", err)
	}

	hub := realtime.NewHub()
	go hub.Run()
	go realtime.SubscribeOfferEvents(context.Background(), rdb, hub)

	if err := gdb.AutoMigrate(
		&models.User{},
		&models.Offer{},
		&models.GenerationJob{},
		&models.PublishRun{},
	); err != nil {
		log.Fatal(err)
	}

	store := &handlers.GormOfferStore{DB: gdb}
	notifier := &handlers.HubNotifier{Hub: hub, RDB: rdb}
	sessions := review.NewManager(store, notifier)

	genaiSvc := genai.NewGenAIService()
	partnerSvc := partner.NewPartnerService()

	app := fiber.New()

	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.FrontendBaseURL,
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		ExposeHeaders:    "Content-Length",
		AllowCredentials: true,
	}))

	app.Options("/*", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	authH := &handlers.AuthHandler{
		DB:        gdb,
		JWTSecret: cfg.JWTSecret,
		Expires:   cfg.JWTExpiresMin,
	}
	oauthH := &handlers.PartnerOAuthHandler{
		DB:              gdb,
		JWTSecret:       cfg.JWTSecret,
		Expires:         cfg.JWTExpiresMin,
		ClientID:        cfg.PartnerClientID,
		ClientSecret:    cfg.PartnerClientSecret,
		RedirectURL:     cfg.PartnerRedirectURL,
		AuthURL:         cfg.PartnerAuthURL,
		TokenURL:        cfg.PartnerTokenURL,
		UserInfoURL:     cfg.PartnerUserInfoURL,
		FrontendBaseURL: cfg.FrontendBaseURL,
	}

	offerH := handlers.NewOfferHandler(gdb, sessions, cfg.IDEncryptKey)
	reviewH := handlers.NewReviewHandler(offerH, sessions)
	generationH := handlers.NewGenerationHandler(gdb, genaiSvc, hub, rdb, cfg.IDEncryptKey, cfg.PublicBaseURL)
	publishH := handlers.NewPublishHandler(gdb, partnerSvc, offerH, hub, rdb, cfg.IDEncryptKey)
	eventsH := handlers.NewOfferEventsHandler(gdb, hub, cfg.JWTSecret, cfg.IDEncryptKey)

	api := app.Group("/api")

	// public
	api.Post("/auth/register", authH.Register)
	api.Post("/auth/login", authH.Login)
	api.Post("/auth/logout", authH.Logout)
	api.Get("/auth/partner/start", oauthH.Start)
	api.Get("/auth/partner/callback", oauthH.Callback)

	// generation backend callback (HMAC-signed, no session)
	app.Post("/generation/callback", generationH.Callback)

	// protected (JWT cookie)
	protected := api.Group("/",
		middleware.JWTFromCookie(cfg.JWTSecret),
		middleware.AttachJWTLocals(),
	)

	protected.Get("/me", func(c *fiber.Ctx) error {
		uid := c.Locals("userId")

		var user models.User
		if err := gdb.First(&user, "id = ?", uid).Error; err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"message": "User not found",
			})
		}

		return c.JSON(fiber.Map{
			"success": true,
			"data": fiber.Map{
				"id":    user.ID,
				"name":  user.Name,
				"email": user.Email,
				"role":  user.Role,
			},
		})
	})

	vendor := protected.Group("/", middleware.RequireRoles("vendor", "admin"))

	vendor.Get("/offers", offerH.ListMine)
	vendor.Get("/offers/:id", offerH.GetOne)
	vendor.Delete("/offers/:id", offerH.Delete)
	vendor.Get("/offers/:id/readiness", reviewH.Readiness)

	vendor.Post("/offers/:id/review/focus/:section", reviewH.Focus)
	vendor.Post("/offers/:id/review/edit/:section", reviewH.Edit)
	vendor.Post("/offers/:id/review/save/:section", reviewH.Save)
	vendor.Post("/offers/:id/review/cancel", reviewH.Cancel)

	vendor.Post("/generate", generationH.Submit)
	vendor.Get("/generate/:job/status", generationH.Status)

	vendor.Post("/offers/:id/publish", publishH.Start)
	vendor.Get("/offers/:id/publish/status", publishH.Status)
	vendor.Post("/offers/:id/publish/retry", publishH.Retry)

	// WebSocket endpoint (auth via query params)
	app.Get("/ws/offers", websocket.New(eventsH.WebSocketHandler))

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = cfg.AppPort
	}
	log.Fatal(app.Listen(":" + port))
}
