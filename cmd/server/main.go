package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/familyledger/backend/internal/config"
	"github.com/familyledger/backend/internal/database"
	"github.com/familyledger/backend/internal/handlers"
	"github.com/familyledger/backend/internal/middleware"
	"github.com/familyledger/backend/internal/services"
	"github.com/familyledger/backend/pkg/logger"
	"github.com/familyledger/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func main() {
	logger.Init()

	cfg := config.Load()
	utils.ConfigureJWT(cfg.JWT.Secret, cfg.JWT.ExpirationHours)

	db, err := database.Connect(cfg.DB)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}

	auditService := services.NewAuditService(db)
	accessService := services.NewAccessService(db)
	statsService := services.NewStatsService(db)
	cascadeService := services.NewCascadeService(db, auditService)
	permissionService := services.NewPermissionService(db, accessService, auditService)

	authHandler := handlers.NewAuthHandler(db, cascadeService)
	familiesHandler := handlers.NewFamiliesHandler(db, cascadeService, statsService, auditService)
	budgetHandler := handlers.NewBudgetHandler(db, accessService, statsService, auditService)
	shoppingHandler := handlers.NewShoppingHandler(db)
	permissionsHandler := handlers.NewPermissionsHandler(db, permissionService)
	messagesHandler := handlers.NewMessagesHandler(db)
	remindersHandler := handlers.NewRemindersHandler(db)

	authMiddleware := middleware.NewAuthMiddleware(db)

	app := fiber.New(fiber.Config{BodyLimit: 1024 * 1024})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS(cfg.Server.FrontendURL))
	app.Use(middleware.RequestLogger())
	app.Use(middleware.SecurityLogger())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	authRoutes := api.Group("/auth")
	authRoutes.Post("/register", authHandler.Register)
	authRoutes.Post("/login", authHandler.Login)
	authRoutes.Get("/me", authMiddleware.RequireAuth, authHandler.Me)
	authRoutes.Delete("/account", authMiddleware.RequireAuth, authHandler.DeleteAccount)

	familyRoutes := api.Group("/family", authMiddleware.RequireAuth)
	familyRoutes.Post("/", familiesHandler.Create)
	familyRoutes.Post("/join", familiesHandler.Join)
	familyRoutes.Get("/", familiesHandler.Get)
	familyRoutes.Post("/leave", familiesHandler.Leave)
	familyRoutes.Post("/transfer-admin", familiesHandler.TransferAdmin)
	familyRoutes.Get("/stats", familiesHandler.MemberStats)
	familyRoutes.Get("/audit", familiesHandler.AuditLog)
	familyRoutes.Delete("/members/:id", familiesHandler.RemoveMember)
	familyRoutes.Delete("/", familiesHandler.Dissolve)

	budgetRoutes := api.Group("/budget", authMiddleware.RequireAuth)
	budgetRoutes.Post("/", budgetHandler.Create)
	budgetRoutes.Get("/summary", budgetHandler.Summary)
	budgetRoutes.Get("/categories", budgetHandler.Categories)
	budgetRoutes.Get("/recent", budgetHandler.Recent)
	budgetRoutes.Put("/:id", budgetHandler.Update)
	budgetRoutes.Delete("/:id", budgetHandler.Delete)

	shoppingRoutes := api.Group("/shopping", authMiddleware.RequireAuth)
	shoppingRoutes.Post("/", shoppingHandler.Create)
	shoppingRoutes.Get("/", shoppingHandler.List)
	shoppingRoutes.Put("/:id/purchase", shoppingHandler.Purchase)
	shoppingRoutes.Delete("/purchased", shoppingHandler.ClearPurchased)
	shoppingRoutes.Delete("/:id", shoppingHandler.Delete)

	permissionRoutes := api.Group("/permissions", authMiddleware.RequireAuth)
	permissionRoutes.Post("/", permissionsHandler.Request)
	permissionRoutes.Get("/incoming", permissionsHandler.Incoming)
	permissionRoutes.Get("/mine", permissionsHandler.Mine)
	permissionRoutes.Get("/can-edit", permissionsHandler.CanEdit)
	permissionRoutes.Post("/:id/approve", permissionsHandler.Approve)
	permissionRoutes.Post("/:id/reject", permissionsHandler.Reject)

	messageRoutes := api.Group("/messages", authMiddleware.RequireAuth)
	messageRoutes.Post("/", messagesHandler.Send)
	messageRoutes.Get("/", messagesHandler.List)
	messageRoutes.Get("/unread-count", messagesHandler.UnreadCount)
	messageRoutes.Put("/:id/read", messagesHandler.MarkRead)

	reminderRoutes := api.Group("/reminders", authMiddleware.RequireAuth)
	reminderRoutes.Post("/", remindersHandler.Create)
	reminderRoutes.Get("/", remindersHandler.List)
	reminderRoutes.Patch("/:id/complete", remindersHandler.Complete)
	reminderRoutes.Delete("/:id", remindersHandler.Delete)

	go func() {
		addr := fmt.Sprintf(":%s", cfg.Server.Port)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server_shutting_down", nil)
	if err := app.Shutdown(); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
