package handlers

import (
	"github.com/familyledger/backend/internal/middleware"
	"github.com/familyledger/backend/internal/models"
	"github.com/familyledger/backend/internal/services"
	"github.com/familyledger/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type PermissionsHandler struct {
	DB          *gorm.DB
	Permissions *services.PermissionService
}

func NewPermissionsHandler(db *gorm.DB, permissions *services.PermissionService) *PermissionsHandler {
	return &PermissionsHandler{DB: db, Permissions: permissions}
}

type requestPermissionRequest struct {
	BudgetItemID string `json:"budgetItemId"`
	Reason       string `json:"reason"`
}

func (h *PermissionsHandler) Request(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req requestPermissionRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	itemID, err := parseUUID(req.BudgetItemID)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid budgetItemId")
	}

	permission, err := h.Permissions.Request(c.Context(), currentUser, itemID, req.Reason)
	if err != nil {
		return serviceError(c, err)
	}

	return utils.Success(c, fiber.StatusCreated, permission)
}

// Incoming lists pending requests against items the caller owns.
func (h *PermissionsHandler) Incoming(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var requests []models.EditPermission
	if err := h.DB.Preload("Requester").Preload("BudgetItem").
		Where("item_owner = ? AND status = ?", currentUser.ID, models.PermissionStatusPending).
		Order("created_at DESC").
		Find(&requests).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing requests")
	}

	return utils.Success(c, fiber.StatusOK, requests)
}

// Mine lists the caller's outgoing requests across all states.
func (h *PermissionsHandler) Mine(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var requests []models.EditPermission
	if err := h.DB.Preload("BudgetItem").
		Where("requested_by = ?", currentUser.ID).
		Order("created_at DESC").
		Find(&requests).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing requests")
	}

	return utils.Success(c, fiber.StatusOK, requests)
}

func (h *PermissionsHandler) Approve(c *fiber.Ctx) error {
	return h.decide(c, true)
}

func (h *PermissionsHandler) Reject(c *fiber.Ctx) error {
	return h.decide(c, false)
}

func (h *PermissionsHandler) decide(c *fiber.Ctx, approve bool) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	permissionID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid permission id")
	}

	var permission *models.EditPermission
	if approve {
		permission, err = h.Permissions.Approve(c.Context(), currentUser, permissionID)
	} else {
		permission, err = h.Permissions.Reject(c.Context(), currentUser, permissionID)
	}
	if err != nil {
		return serviceError(c, err)
	}

	return utils.Success(c, fiber.StatusOK, permission)
}

// CanEdit answers edit eligibility for one item, with the reason and
// remaining window when a grant is involved.
func (h *PermissionsHandler) CanEdit(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	itemID, err := parseUUID(c.Query("itemId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid itemId")
	}

	var item models.BudgetItem
	if err := h.DB.Select("id", "family_id", "created_by").
		First(&item, "id = ?", itemID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusNotFound, "budget item not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading budget item")
	}

	eligibility := h.Permissions.CanEditItem(c.Context(), currentUser.ID, &item)
	return utils.Success(c, fiber.StatusOK, eligibility)
}
