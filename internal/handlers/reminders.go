package handlers

import (
	"strings"
	"time"

	"github.com/familyledger/backend/internal/middleware"
	"github.com/familyledger/backend/internal/models"
	"github.com/familyledger/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type RemindersHandler struct {
	DB *gorm.DB
}

func NewRemindersHandler(db *gorm.DB) *RemindersHandler {
	return &RemindersHandler{DB: db}
}

type createReminderRequest struct {
	AssignedTo string `json:"assignedTo"`
	Title      string `json:"title"`
	Note       string `json:"note"`
	DueAt      string `json:"dueAt"`
}

func (h *RemindersHandler) Create(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}
	if currentUser.FamilyID == nil {
		return utils.Error(c, fiber.StatusBadRequest, "user has no family")
	}

	var req createReminderRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return utils.Error(c, fiber.StatusBadRequest, "title is required")
	}

	dueAt, err := time.Parse(time.RFC3339, req.DueAt)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "dueAt must be RFC 3339")
	}

	assigneeID, err := parseUUID(req.AssignedTo)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid assignedTo")
	}

	var assignee models.User
	if err := h.DB.First(&assignee, "id = ?", assigneeID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusNotFound, "assigned user not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading assignee")
	}
	if assignee.FamilyID == nil || *assignee.FamilyID != *currentUser.FamilyID {
		return utils.Error(c, fiber.StatusBadRequest, "assigned user is not in your family")
	}

	reminder := models.Reminder{
		FamilyID:   *currentUser.FamilyID,
		CreatedBy:  currentUser.ID,
		AssignedTo: assigneeID,
		Title:      req.Title,
		Note:       req.Note,
		DueAt:      dueAt,
	}

	if err := h.DB.Create(&reminder).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed creating reminder")
	}

	return utils.Success(c, fiber.StatusCreated, reminder)
}

func (h *RemindersHandler) List(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}
	if currentUser.FamilyID == nil {
		return utils.Error(c, fiber.StatusBadRequest, "user has no family")
	}

	var reminders []models.Reminder
	if err := h.DB.Preload("Creator").Preload("Assignee").
		Where("family_id = ? AND (assigned_to = ? OR created_by = ?)",
			*currentUser.FamilyID, currentUser.ID, currentUser.ID).
		Order("due_at ASC").
		Find(&reminders).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing reminders")
	}

	return utils.Success(c, fiber.StatusOK, reminders)
}

func (h *RemindersHandler) Complete(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	reminderID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid reminder id")
	}

	var reminder models.Reminder
	if err := h.DB.First(&reminder, "id = ?", reminderID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusNotFound, "reminder not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading reminder")
	}
	if reminder.AssignedTo != currentUser.ID && reminder.CreatedBy != currentUser.ID {
		return utils.Error(c, fiber.StatusForbidden, "only the assignee or creator can complete")
	}

	now := time.Now().UTC()
	if err := h.DB.Model(&models.Reminder{}).
		Where("id = ?", reminder.ID).
		Update("completed_at", now).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed completing reminder")
	}

	reminder.CompletedAt = &now
	return utils.Success(c, fiber.StatusOK, reminder)
}

func (h *RemindersHandler) Delete(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	reminderID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid reminder id")
	}

	var reminder models.Reminder
	if err := h.DB.First(&reminder, "id = ?", reminderID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusNotFound, "reminder not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading reminder")
	}
	if reminder.CreatedBy != currentUser.ID {
		return utils.Error(c, fiber.StatusForbidden, "only the owner can delete")
	}

	if err := h.DB.Delete(&models.Reminder{}, "id = ?", reminder.ID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed deleting reminder")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "reminder deleted"})
}
