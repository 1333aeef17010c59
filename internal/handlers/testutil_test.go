package handlers

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/familyledger/backend/internal/middleware"
	"github.com/familyledger/backend/internal/models"
	"github.com/familyledger/backend/internal/services"
	"github.com/familyledger/backend/pkg/logger"
	"github.com/familyledger/backend/pkg/utils"
	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"gorm.io/gorm"
)

type testEnv struct {
	app *fiber.App
	db  *gorm.DB
}

var testSetupOnce sync.Once

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	testSetupOnce.Do(func() {
		gosqlite.MustRegisterScalarFunction("NOW", 0, func(ctx *gosqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
			return time.Now().UTC(), nil
		})
		logger.Init()
		utils.ConfigureJWT("test-secret", 24)
	})

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed opening in-memory sqlite database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed getting sql.DB from gorm: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	err = db.AutoMigrate(
		&models.User{},
		&models.Family{},
		&models.BudgetItem{},
		&models.ShoppingItem{},
		&models.EditPermission{},
		&models.Message{},
		&models.Reminder{},
		&models.AuditLog{},
	)
	if err != nil {
		t.Fatalf("failed automigrating models: %v", err)
	}

	auditService := services.NewAuditService(db)
	accessService := services.NewAccessService(db)
	statsService := services.NewStatsService(db)
	cascadeService := services.NewCascadeService(db, auditService)
	permissionService := services.NewPermissionService(db, accessService, auditService)

	authHandler := NewAuthHandler(db, cascadeService)
	familiesHandler := NewFamiliesHandler(db, cascadeService, statsService, auditService)
	budgetHandler := NewBudgetHandler(db, accessService, statsService, auditService)
	shoppingHandler := NewShoppingHandler(db)
	permissionsHandler := NewPermissionsHandler(db, permissionService)
	messagesHandler := NewMessagesHandler(db)
	remindersHandler := NewRemindersHandler(db)

	authMiddleware := middleware.NewAuthMiddleware(db)

	app := fiber.New(fiber.Config{BodyLimit: 1024 * 1024})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS("http://localhost:3001"))
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

	return &testEnv{app: app, db: db}
}

func createTestUser(t *testing.T, db *gorm.DB, email, password, name string) (*models.User, string) {
	t.Helper()

	hash, err := utils.HashPassword(password)
	if err != nil {
		t.Fatalf("failed hashing password: %v", err)
	}

	user := &models.User{
		Email:        email,
		PasswordHash: hash,
		Name:         name,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed creating test user: %v", err)
	}

	token, err := utils.GenerateToken(user)
	if err != nil {
		t.Fatalf("failed generating auth token: %v", err)
	}

	return user, token
}

// createTestFamily puts every given user into one family, first user as
// admin, bypassing the HTTP surface.
func createTestFamily(t *testing.T, db *gorm.DB, name string, users ...*models.User) *models.Family {
	t.Helper()

	if len(users) == 0 {
		t.Fatal("createTestFamily needs at least the admin")
	}

	hash, err := utils.HashPassword("family-secret")
	if err != nil {
		t.Fatalf("failed hashing family password: %v", err)
	}

	family := &models.Family{
		Name:           name,
		JoinSecretHash: hash,
		AdminID:        users[0].ID,
	}
	if err := db.Create(family).Error; err != nil {
		t.Fatalf("failed creating family: %v", err)
	}

	for _, user := range users {
		if err := db.Model(&models.User{}).
			Where("id = ?", user.ID).
			Update("family_id", family.ID).Error; err != nil {
			t.Fatalf("failed adding %s to family: %v", user.Email, err)
		}
		user.FamilyID = &family.ID
	}

	return family
}

func authHeaders(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func performRequest(t *testing.T, app *fiber.App, method, path string, body io.Reader, headers map[string]string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := app.Test(req, int((10 * time.Second).Milliseconds()))
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}

	return resp
}

func performJSONRequest(t *testing.T, app *fiber.App, method, path string, payload any, headers map[string]string) *http.Response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("failed to marshal payload: %v", err)
		}
		body = bytes.NewReader(encoded)
	}

	requestHeaders := map[string]string{}
	for key, value := range headers {
		requestHeaders[key] = value
	}
	if payload != nil {
		requestHeaders["Content-Type"] = "application/json"
	}

	return performRequest(t, app, method, path, body, requestHeaders)
}

func decodeJSONMap(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed reading response body: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("failed decoding JSON response: %v body=%q", err, string(raw))
	}

	return payload
}

func dataMap(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	data, ok := body["data"].(map[string]any)
	if !ok {
		t.Fatalf("expected data object in envelope, got %+v", body)
	}
	return data
}

func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Fatalf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

func assertEnvelopeError(t *testing.T, body map[string]any, expected string) {
	t.Helper()
	if success, _ := body["success"].(bool); success {
		t.Fatalf("expected success=false, got %+v", body)
	}
	if got, _ := body["error"].(string); got != expected {
		t.Fatalf("expected error %q, got %q", expected, got)
	}
}
