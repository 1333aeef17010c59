package handlers

import (
	"strings"

	"github.com/familyledger/backend/internal/middleware"
	"github.com/familyledger/backend/internal/models"
	"github.com/familyledger/backend/internal/services"
	"github.com/familyledger/backend/pkg/logger"
	"github.com/familyledger/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BudgetHandler struct {
	DB     *gorm.DB
	Access *services.AccessService
	Stats  *services.StatsService
	Audit  *services.AuditService
}

func NewBudgetHandler(db *gorm.DB, access *services.AccessService, stats *services.StatsService, audit *services.AuditService) *BudgetHandler {
	return &BudgetHandler{DB: db, Access: access, Stats: stats, Audit: audit}
}

type createBudgetItemRequest struct {
	Type     string  `json:"type"`
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
	Note     string  `json:"note"`
	Period   string  `json:"period"`
}

func (h *BudgetHandler) Create(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}
	if currentUser.FamilyID == nil {
		return utils.Error(c, fiber.StatusBadRequest, "user has no family")
	}

	var req createBudgetItemRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	itemType := models.BudgetItemType(strings.ToLower(strings.TrimSpace(req.Type)))
	if itemType != models.BudgetItemTypeIncome && itemType != models.BudgetItemTypeExpense {
		return utils.Error(c, fiber.StatusBadRequest, "type must be income or expense")
	}
	req.Category = strings.TrimSpace(req.Category)
	if req.Category == "" {
		return utils.Error(c, fiber.StatusBadRequest, "category is required")
	}
	if req.Amount <= 0 {
		return utils.Error(c, fiber.StatusBadRequest, "amount must be positive")
	}
	period := req.Period
	if period == "" {
		period = currentPeriod()
	}
	if !isValidPeriod(period) {
		return utils.Error(c, fiber.StatusBadRequest, "period must be YYYY-MM")
	}

	item := models.BudgetItem{
		FamilyID:  *currentUser.FamilyID,
		Type:      itemType,
		Category:  req.Category,
		Amount:    req.Amount,
		Note:      req.Note,
		Period:    period,
		CreatedBy: currentUser.ID,
	}

	if err := h.DB.Create(&item).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed creating budget item")
	}

	logger.InfoWithUser(currentUser.ID.String(), "budget_item_created", map[string]interface{}{
		"item_id": item.ID.String(),
		"type":    string(item.Type),
	})

	return utils.Success(c, fiber.StatusCreated, item)
}

func (h *BudgetHandler) Summary(c *fiber.Ctx) error {
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

	summary, err := h.Stats.Summary(c.Context(), *currentUser.FamilyID, period)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed computing summary")
	}

	return utils.Success(c, fiber.StatusOK, summary)
}

func (h *BudgetHandler) Categories(c *fiber.Ctx) error {
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

	totals, err := h.Stats.ExpenseCategories(c.Context(), *currentUser.FamilyID, period)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed computing categories")
	}

	return utils.Success(c, fiber.StatusOK, totals)
}

func (h *BudgetHandler) Recent(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}
	if currentUser.FamilyID == nil {
		return utils.Error(c, fiber.StatusBadRequest, "user has no family")
	}

	var items []models.BudgetItem
	if err := h.DB.Preload("Creator").
		Where("family_id = ?", *currentUser.FamilyID).
		Order("created_at DESC").
		Limit(5).
		Find(&items).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing recent items")
	}

	return utils.Success(c, fiber.StatusOK, items)
}

type updateBudgetItemRequest struct {
	Category *string  `json:"category"`
	Amount   *float64 `json:"amount"`
	Note     *string  `json:"note"`
	Type     *string  `json:"type"`
}

func (h *BudgetHandler) Update(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	itemID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid item id")
	}

	item, err := h.loadItem(c, itemID, currentUser)
	if err != nil {
		return err
	}

	decision := h.Access.CanMutate(c.Context(), currentUser.ID, item, services.MutationEdit)
	if !decision.Allowed {
		return h.forbidden(c, decision)
	}

	var req updateBudgetItemRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	updates := map[string]interface{}{}
	if req.Category != nil {
		category := strings.TrimSpace(*req.Category)
		if category == "" {
			return utils.Error(c, fiber.StatusBadRequest, "category cannot be empty")
		}
		updates["category"] = category
	}
	if req.Amount != nil {
		if *req.Amount <= 0 {
			return utils.Error(c, fiber.StatusBadRequest, "amount must be positive")
		}
		updates["amount"] = *req.Amount
	}
	if req.Note != nil {
		updates["note"] = strings.TrimSpace(*req.Note)
	}
	if req.Type != nil {
		itemType := models.BudgetItemType(strings.ToLower(strings.TrimSpace(*req.Type)))
		if itemType != models.BudgetItemTypeIncome && itemType != models.BudgetItemTypeExpense {
			return utils.Error(c, fiber.StatusBadRequest, "type must be income or expense")
		}
		updates["type"] = itemType
	}

	if len(updates) == 0 {
		return utils.Error(c, fiber.StatusBadRequest, "no valid fields to update")
	}

	// A delegated edit is stamped with the editor; ownership never moves.
	if decision.Delegated {
		updates["edited_by"] = currentUser.ID
	}

	if err := h.DB.Model(&models.BudgetItem{}).Where("id = ?", item.ID).Updates(updates).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating budget item")
	}

	if decision.Delegated {
		h.Audit.LogAsync(services.AuditEntry{
			UserID:       &currentUser.ID,
			FamilyID:     &item.FamilyID,
			Action:       "budget.delegated_edit",
			ResourceType: "budget_item",
			ResourceID:   &item.ID,
			Details:      map[string]interface{}{"item_owner": item.CreatedBy.String()},
		})
	}

	var updated models.BudgetItem
	if err := h.DB.First(&updated, "id = ?", item.ID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading updated item")
	}

	return utils.Success(c, fiber.StatusOK, updated)
}

func (h *BudgetHandler) Delete(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	itemID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid item id")
	}

	item, err := h.loadItem(c, itemID, currentUser)
	if err != nil {
		return err
	}

	decision := h.Access.CanMutate(c.Context(), currentUser.ID, item, services.MutationDelete)
	if !decision.Allowed {
		return h.forbidden(c, decision)
	}

	if err := h.DB.Delete(&models.BudgetItem{}, "id = ?", item.ID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed deleting budget item")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "budget item deleted"})
}

// loadItem fetches the row and confines access to the caller's family.
// It writes the error response itself; callers return its error as-is.
func (h *BudgetHandler) loadItem(c *fiber.Ctx, itemID uuid.UUID, currentUser *models.User) (*models.BudgetItem, error) {
	if currentUser.FamilyID == nil {
		return nil, utils.Error(c, fiber.StatusBadRequest, "user has no family")
	}

	var item models.BudgetItem
	if err := h.DB.First(&item, "id = ?", itemID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.Error(c, fiber.StatusNotFound, "budget item not found")
		}
		return nil, utils.Error(c, fiber.StatusInternalServerError, "failed loading budget item")
	}
	if item.FamilyID != *currentUser.FamilyID {
		return nil, utils.Error(c, fiber.StatusForbidden, "record belongs to another family")
	}

	return &item, nil
}

// forbidden surfaces the gate's verdict: an expired grant reads
// differently from never having had one.
func (h *BudgetHandler) forbidden(c *fiber.Ctx, decision services.AccessDecision) error {
	switch decision.Reason {
	case services.ReasonGrantExpired:
		return utils.Error(c, fiber.StatusForbidden, "permission grant expired")
	case services.ReasonOwnerOnly:
		return utils.Error(c, fiber.StatusForbidden, "only the owner can delete")
	default:
		return utils.Error(c, fiber.StatusForbidden, "not the owner and no approved permission")
	}
}
