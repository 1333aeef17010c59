package handlers

import (
	"strings"

	"github.com/familyledger/backend/internal/middleware"
	"github.com/familyledger/backend/internal/models"
	"github.com/familyledger/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MessagesHandler struct {
	DB *gorm.DB
}

func NewMessagesHandler(db *gorm.DB) *MessagesHandler {
	return &MessagesHandler{DB: db}
}

type sendMessageRequest struct {
	RecipientID  string `json:"recipientId"`
	PermissionID string `json:"permissionId"`
	Content      string `json:"content"`
}

func (h *MessagesHandler) Send(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}
	if currentUser.FamilyID == nil {
		return utils.Error(c, fiber.StatusBadRequest, "user has no family")
	}

	var req sendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	req.Content = strings.TrimSpace(req.Content)
	if req.Content == "" {
		return utils.Error(c, fiber.StatusBadRequest, "content is required")
	}

	recipientID, err := parseUUID(req.RecipientID)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid recipientId")
	}

	var recipient models.User
	if err := h.DB.First(&recipient, "id = ?", recipientID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusNotFound, "recipient not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading recipient")
	}
	if recipient.FamilyID == nil || *recipient.FamilyID != *currentUser.FamilyID {
		return utils.Error(c, fiber.StatusBadRequest, "recipient is not in your family")
	}

	var permissionID *uuid.UUID
	if req.PermissionID != "" {
		parsed, err := parseUUID(req.PermissionID)
		if err != nil {
			return utils.Error(c, fiber.StatusBadRequest, "invalid permissionId")
		}
		var permission models.EditPermission
		if err := h.DB.Select("id", "family_id").First(&permission, "id = ?", parsed).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return utils.Error(c, fiber.StatusNotFound, "permission request not found")
			}
			return utils.Error(c, fiber.StatusInternalServerError, "failed loading permission")
		}
		if permission.FamilyID != *currentUser.FamilyID {
			return utils.Error(c, fiber.StatusForbidden, "record belongs to another family")
		}
		permissionID = &parsed
	}

	message := models.Message{
		FamilyID:     *currentUser.FamilyID,
		PermissionID: permissionID,
		SenderID:     currentUser.ID,
		RecipientID:  recipientID,
		Content:      req.Content,
	}

	if err := h.DB.Create(&message).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed sending message")
	}

	return utils.Success(c, fiber.StatusCreated, message)
}

// List returns either the thread under a permission request or the
// caller's whole inbox and outbox.
func (h *MessagesHandler) List(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}
	if currentUser.FamilyID == nil {
		return utils.Error(c, fiber.StatusBadRequest, "user has no family")
	}

	query := h.DB.Preload("Sender").Preload("Recipient")

	if raw := c.Query("permissionId"); raw != "" {
		permissionID, err := parseUUID(raw)
		if err != nil {
			return utils.Error(c, fiber.StatusBadRequest, "invalid permissionId")
		}
		query = query.
			Where("family_id = ? AND permission_id = ?", *currentUser.FamilyID, permissionID).
			Order("created_at ASC")
	} else {
		query = query.
			Where("family_id = ? AND (sender_id = ? OR recipient_id = ?)",
				*currentUser.FamilyID, currentUser.ID, currentUser.ID).
			Order("created_at DESC")
	}

	var messages []models.Message
	if err := query.Find(&messages).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing messages")
	}

	return utils.Success(c, fiber.StatusOK, messages)
}

func (h *MessagesHandler) UnreadCount(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var count int64
	if err := h.DB.Model(&models.Message{}).
		Where("recipient_id = ? AND is_read = ?", currentUser.ID, false).
		Count(&count).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed counting unread messages")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"unreadCount": count})
}

func (h *MessagesHandler) MarkRead(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	messageID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid message id")
	}

	result := h.DB.Model(&models.Message{}).
		Where("id = ? AND recipient_id = ?", messageID, currentUser.ID).
		Update("is_read", true)
	if result.Error != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed marking message read")
	}
	if result.RowsAffected == 0 {
		return utils.Error(c, fiber.StatusNotFound, "message not found")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "marked as read"})
}
