package handlers

import (
	"net/mail"
	"strings"

	"github.com/familyledger/backend/internal/middleware"
	"github.com/familyledger/backend/internal/models"
	"github.com/familyledger/backend/internal/services"
	"github.com/familyledger/backend/pkg/logger"
	"github.com/familyledger/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type AuthHandler struct {
	DB      *gorm.DB
	Cascade *services.CascadeService
}

func NewAuthHandler(db *gorm.DB, cascade *services.CascadeService) *AuthHandler {
	return &AuthHandler{DB: db, Cascade: cascade}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = strings.TrimSpace(req.Name)

	if _, err := mail.ParseAddress(req.Email); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid email")
	}
	if len(req.Password) < 8 {
		return utils.Error(c, fiber.StatusBadRequest, "password must be at least 8 characters")
	}
	if req.Name == "" {
		return utils.Error(c, fiber.StatusBadRequest, "name is required")
	}

	var existing models.User
	if err := h.DB.First(&existing, "email = ?", req.Email).Error; err == nil {
		return utils.Error(c, fiber.StatusConflict, "email already registered")
	} else if err != gorm.ErrRecordNotFound {
		return utils.Error(c, fiber.StatusInternalServerError, "failed checking existing user")
	}

	passwordHash, err := utils.HashPassword(req.Password)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed to hash password")
	}

	user := models.User{
		Email:        req.Email,
		PasswordHash: passwordHash,
		Name:         req.Name,
	}

	if err := h.DB.Create(&user).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed creating user")
	}

	logger.Info("user_registered", map[string]interface{}{
		"user_id": user.ID.String(),
		"email":   user.Email,
	})

	token, err := utils.GenerateToken(&user)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed generating token")
	}

	return utils.Success(c, fiber.StatusCreated, fiber.Map{"token": token, "user": user})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	if req.Email == "" || req.Password == "" {
		return utils.Error(c, fiber.StatusBadRequest, "email and password are required")
	}

	var user models.User
	if err := h.DB.First(&user, "email = ?", req.Email).Error; err != nil {
		logger.Warn("login_failed_user_not_found", map[string]interface{}{
			"email": req.Email,
			"ip":    c.IP(),
		})
		return utils.Error(c, fiber.StatusUnauthorized, "invalid credentials")
	}

	if !utils.CheckPassword(req.Password, user.PasswordHash) {
		logger.Warn("login_failed_invalid_password", map[string]interface{}{
			"user_id": user.ID.String(),
			"ip":      c.IP(),
		})
		return utils.Error(c, fiber.StatusUnauthorized, "invalid credentials")
	}

	token, err := utils.GenerateToken(&user)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed generating token")
	}

	logger.InfoWithUser(user.ID.String(), "user_login", map[string]interface{}{
		"ip": c.IP(),
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{"token": token, "user": user})
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}
	return utils.Success(c, fiber.StatusOK, currentUser)
}

// DeleteAccount removes the caller entirely. Membership is unwound
// first: a sole member dissolves the family, a plain member goes
// through the leave cascade, and an admin with other members around
// must transfer the role before deleting.
func (h *AuthHandler) DeleteAccount(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	if currentUser.FamilyID != nil {
		var family models.Family
		if err := h.DB.First(&family, "id = ?", *currentUser.FamilyID).Error; err != nil {
			return utils.Error(c, fiber.StatusInternalServerError, "failed loading family")
		}

		if family.IsAdmin(currentUser.ID) {
			var memberCount int64
			if err := h.DB.Model(&models.User{}).
				Where("family_id = ?", family.ID).
				Count(&memberCount).Error; err != nil {
				return utils.Error(c, fiber.StatusInternalServerError, "failed counting members")
			}
			if memberCount > 1 {
				return utils.Error(c, fiber.StatusConflict, "transfer admin rights first")
			}
			if err := h.Cascade.Dissolve(c.Context(), currentUser); err != nil {
				return serviceError(c, err)
			}
		} else {
			if err := h.Cascade.RemoveSelf(c.Context(), currentUser); err != nil {
				return serviceError(c, err)
			}
		}
	}

	if err := h.DB.Delete(&models.User{}, "id = ?", currentUser.ID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed deleting account")
	}

	logger.InfoWithUser(currentUser.ID.String(), "account_deleted", nil)
	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "account deleted"})
}
