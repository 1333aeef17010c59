package handlers

import (
	"strings"

	"github.com/familyledger/backend/internal/middleware"
	"github.com/familyledger/backend/internal/models"
	"github.com/familyledger/backend/internal/services"
	"github.com/familyledger/backend/pkg/logger"
	"github.com/familyledger/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type FamiliesHandler struct {
	DB      *gorm.DB
	Cascade *services.CascadeService
	Stats   *services.StatsService
	Audit   *services.AuditService
}

func NewFamiliesHandler(db *gorm.DB, cascade *services.CascadeService, stats *services.StatsService, audit *services.AuditService) *FamiliesHandler {
	return &FamiliesHandler{DB: db, Cascade: cascade, Stats: stats, Audit: audit}
}

type createFamilyRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

func (h *FamiliesHandler) Create(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req createFamilyRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	req.Name = strings.TrimSpace(req.Name)
	if len(req.Name) < 2 {
		return utils.Error(c, fiber.StatusBadRequest, "family name is required")
	}
	if len(req.Password) < 4 {
		return utils.Error(c, fiber.StatusBadRequest, "join password must be at least 4 characters")
	}
	if currentUser.FamilyID != nil {
		return utils.Error(c, fiber.StatusConflict, "user already in a family")
	}

	secretHash, err := utils.HashPassword(req.Password)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed to hash join password")
	}

	family := models.Family{
		Name:           req.Name,
		JoinSecretHash: secretHash,
		AdminID:        currentUser.ID,
	}

	// The founder becomes admin and first member in the same transaction
	// so adminId always references a current member.
	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&family).Error; err != nil {
			return err
		}
		return tx.Model(&models.User{}).
			Where("id = ?", currentUser.ID).
			Update("family_id", family.ID).Error
	})
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed creating family")
	}

	logger.InfoWithUser(currentUser.ID.String(), "family_created", map[string]interface{}{
		"family_id":   family.ID.String(),
		"family_name": family.Name,
	})

	return utils.Success(c, fiber.StatusCreated, family)
}

type joinFamilyRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

func (h *FamiliesHandler) Join(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req joinFamilyRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.Password == "" {
		return utils.Error(c, fiber.StatusBadRequest, "name and password are required")
	}
	if currentUser.FamilyID != nil {
		return utils.Error(c, fiber.StatusConflict, "user already in a family")
	}

	var family models.Family
	if err := h.DB.First(&family, "name = ?", req.Name).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusUnauthorized, "invalid family credentials")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading family")
	}

	if !utils.CheckPassword(req.Password, family.JoinSecretHash) {
		return utils.Error(c, fiber.StatusUnauthorized, "invalid family credentials")
	}

	if err := h.DB.Model(&models.User{}).
		Where("id = ?", currentUser.ID).
		Update("family_id", family.ID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed joining family")
	}

	logger.InfoWithUser(currentUser.ID.String(), "family_joined", map[string]interface{}{
		"family_id": family.ID.String(),
	})

	return utils.Success(c, fiber.StatusOK, family)
}

func (h *FamiliesHandler) Get(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}
	if currentUser.FamilyID == nil {
		return utils.Error(c, fiber.StatusBadRequest, "user has no family")
	}

	var family models.Family
	if err := h.DB.Preload("Members").First(&family, "id = ?", *currentUser.FamilyID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusNotFound, "family not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading family")
	}

	return utils.Success(c, fiber.StatusOK, family)
}

func (h *FamiliesHandler) Leave(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	if err := h.Cascade.RemoveSelf(c.Context(), currentUser); err != nil {
		return serviceError(c, err)
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "left the family"})
}

type transferAdminRequest struct {
	NewAdminID string `json:"newAdminId"`
}

func (h *FamiliesHandler) TransferAdmin(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}
	if currentUser.FamilyID == nil {
		return utils.Error(c, fiber.StatusBadRequest, "user has no family")
	}

	var req transferAdminRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	newAdminID, err := parseUUID(req.NewAdminID)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid newAdminId")
	}

	var family models.Family
	if err := h.DB.First(&family, "id = ?", *currentUser.FamilyID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading family")
	}
	if !family.IsAdmin(currentUser.ID) {
		return utils.Error(c, fiber.StatusForbidden, "only the family admin can do this")
	}
	if newAdminID == currentUser.ID {
		return utils.Error(c, fiber.StatusBadRequest, "already the admin")
	}

	var target models.User
	if err := h.DB.First(&target, "id = ?", newAdminID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusNotFound, "user not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading user")
	}
	if target.FamilyID == nil || *target.FamilyID != family.ID {
		return utils.Error(c, fiber.StatusBadRequest, "new admin must be a family member")
	}

	if err := h.DB.Model(&models.Family{}).
		Where("id = ?", family.ID).
		Update("admin_id", newAdminID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed transferring admin")
	}

	h.Audit.LogAsync(services.AuditEntry{
		UserID:       &currentUser.ID,
		FamilyID:     &family.ID,
		Action:       "family.transfer_admin",
		ResourceType: "family",
		ResourceID:   &family.ID,
		Details:      map[string]interface{}{"new_admin_id": newAdminID.String()},
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "admin transferred"})
}

func (h *FamiliesHandler) RemoveMember(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	memberID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid member id")
	}

	if err := h.Cascade.RemoveMember(c.Context(), currentUser, memberID); err != nil {
		return serviceError(c, err)
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "member removed"})
}

func (h *FamiliesHandler) Dissolve(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	if err := h.Cascade.Dissolve(c.Context(), currentUser); err != nil {
		return serviceError(c, err)
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "family dissolved"})
}

func (h *FamiliesHandler) MemberStats(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}
	if currentUser.FamilyID == nil {
		return utils.Error(c, fiber.StatusBadRequest, "user has no family")
	}

	period := c.Query("month", currentPeriod())
	if !isValidPeriod(period) {
		return utils.Error(c, fiber.StatusBadRequest, "month must be YYYY-MM")
	}

	stats, err := h.Stats.PerMember(c.Context(), *currentUser.FamilyID, period)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed computing member stats")
	}

	return utils.Success(c, fiber.StatusOK, stats)
}

// AuditLog lists the family's audit trail, admins only.
func (h *FamiliesHandler) AuditLog(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}
	if currentUser.FamilyID == nil {
		return utils.Error(c, fiber.StatusBadRequest, "user has no family")
	}

	var family models.Family
	if err := h.DB.Select("id", "admin_id").First(&family, "id = ?", *currentUser.FamilyID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading family")
	}
	if !family.IsAdmin(currentUser.ID) {
		return utils.Error(c, fiber.StatusForbidden, "only the family admin can do this")
	}

	p := utils.ParsePagination(c)
	rows, total, err := h.Audit.List(c.Context(), family.ID, p)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing audit log")
	}

	return utils.Paginated(c, rows, p.Page, p.Limit, total)
}
