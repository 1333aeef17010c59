package handlers

import (
	"strings"
	"time"

	"github.com/familyledger/backend/internal/middleware"
	"github.com/familyledger/backend/internal/models"
	"github.com/familyledger/backend/pkg/logger"
	"github.com/familyledger/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// ShoppingCategory is the budget category every purchase-derived
// expense lands in.
const ShoppingCategory = "Shopping"

type ShoppingHandler struct {
	DB *gorm.DB
}

func NewShoppingHandler(db *gorm.DB) *ShoppingHandler {
	return &ShoppingHandler{DB: db}
}

type createShoppingItemRequest struct {
	Name     string `json:"name"`
	Quantity string `json:"quantity"`
	Note     string `json:"note"`
}

func (h *ShoppingHandler) Create(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}
	if currentUser.FamilyID == nil {
		return utils.Error(c, fiber.StatusBadRequest, "user has no family")
	}

	var req createShoppingItemRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return utils.Error(c, fiber.StatusBadRequest, "item name is required")
	}
	quantity := strings.TrimSpace(req.Quantity)
	if quantity == "" {
		quantity = "1"
	}

	item := models.ShoppingItem{
		FamilyID:  *currentUser.FamilyID,
		CreatedBy: currentUser.ID,
		Name:      req.Name,
		Quantity:  quantity,
		Note:      req.Note,
	}

	if err := h.DB.Create(&item).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed adding shopping item")
	}

	return utils.Success(c, fiber.StatusCreated, item)
}

func (h *ShoppingHandler) List(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}
	if currentUser.FamilyID == nil {
		return utils.Error(c, fiber.StatusBadRequest, "user has no family")
	}

	var items []models.ShoppingItem
	if err := h.DB.Preload("Creator").
		Where("family_id = ?", *currentUser.FamilyID).
		Order("is_purchased ASC, created_at DESC").
		Find(&items).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing shopping items")
	}

	return utils.Success(c, fiber.StatusOK, items)
}

type purchaseRequest struct {
	Price float64 `json:"price"`
}

// Purchase marks the item bought by the caller. The derived expense is
// created only on the unpurchased-to-purchased transition, inside the
// same transaction that flips the flag, so re-marking never duplicates
// it. The buyer authors the expense, the requester bears it in stats.
func (h *ShoppingHandler) Purchase(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}
	if currentUser.FamilyID == nil {
		return utils.Error(c, fiber.StatusBadRequest, "user has no family")
	}

	itemID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid item id")
	}

	var req purchaseRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.Price < 0 {
		return utils.Error(c, fiber.StatusBadRequest, "price cannot be negative")
	}

	var item models.ShoppingItem
	if err := h.DB.First(&item, "id = ?", itemID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusNotFound, "shopping item not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading shopping item")
	}
	if item.FamilyID != *currentUser.FamilyID {
		return utils.Error(c, fiber.StatusForbidden, "record belongs to another family")
	}

	derivedExpense := false

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		// Guarded update: only the false->true transition proceeds, so a
		// re-mark (or a concurrent duplicate) is a no-op.
		result := tx.Model(&models.ShoppingItem{}).
			Where("id = ? AND is_purchased = ?", item.ID, false).
			Updates(map[string]interface{}{
				"is_purchased": true,
				"price":        req.Price,
				"bought_by":    currentUser.ID,
				"bought_at":    time.Now().UTC(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 || req.Price <= 0 {
			return nil
		}
		derivedExpense = true

		requester := item.CreatedBy
		derived := models.BudgetItem{
			FamilyID:     item.FamilyID,
			Type:         models.BudgetItemTypeExpense,
			Category:     ShoppingCategory,
			Amount:       req.Price,
			Note:         item.Name,
			Period:       currentPeriod(),
			CreatedBy:    currentUser.ID,
			AttributedTo: &requester,
		}
		return tx.Create(&derived).Error
	})
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed marking item purchased")
	}

	if derivedExpense {
		logger.InfoWithUser(currentUser.ID.String(), "shopping_item_purchased", map[string]interface{}{
			"item_id":       item.ID.String(),
			"price":         req.Price,
			"attributed_to": item.CreatedBy.String(),
		})
	}

	var updated models.ShoppingItem
	if err := h.DB.First(&updated, "id = ?", item.ID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading updated item")
	}

	return utils.Success(c, fiber.StatusOK, updated)
}

func (h *ShoppingHandler) Delete(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}
	if currentUser.FamilyID == nil {
		return utils.Error(c, fiber.StatusBadRequest, "user has no family")
	}

	itemID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid item id")
	}

	var item models.ShoppingItem
	if err := h.DB.First(&item, "id = ?", itemID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusNotFound, "shopping item not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading shopping item")
	}
	if item.FamilyID != *currentUser.FamilyID {
		return utils.Error(c, fiber.StatusForbidden, "record belongs to another family")
	}
	if item.CreatedBy != currentUser.ID {
		return utils.Error(c, fiber.StatusForbidden, "only the owner can delete")
	}

	if err := h.DB.Delete(&models.ShoppingItem{}, "id = ?", item.ID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed deleting shopping item")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "shopping item deleted"})
}

func (h *ShoppingHandler) ClearPurchased(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}
	if currentUser.FamilyID == nil {
		return utils.Error(c, fiber.StatusBadRequest, "user has no family")
	}

	result := h.DB.Where("family_id = ? AND is_purchased = ?", *currentUser.FamilyID, true).
		Delete(&models.ShoppingItem{})
	if result.Error != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed clearing purchased items")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"deletedCount": result.RowsAffected})
}
