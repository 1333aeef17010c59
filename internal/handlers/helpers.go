package handlers

import (
	"errors"
	"strings"
	"time"

	"github.com/familyledger/backend/internal/services"
	"github.com/familyledger/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

func parseUUID(value string) (uuid.UUID, error) {
	return uuid.Parse(strings.TrimSpace(value))
}

// currentPeriod is the YYYY-MM key budget rows default to.
func currentPeriod() string {
	return time.Now().Format("2006-01")
}

func isValidPeriod(value string) bool {
	_, err := time.Parse("2006-01", value)
	return err == nil
}

// serviceError maps the service error taxonomy onto the response
// envelope. Unknown errors fall through as 500s.
func serviceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return utils.Error(c, fiber.StatusNotFound, "record not found")
	case errors.Is(err, services.ErrNoFamily):
		return utils.Error(c, fiber.StatusBadRequest, "user has no family")
	case errors.Is(err, services.ErrNotOwner):
		return utils.Error(c, fiber.StatusForbidden, "only the owner can do this")
	case errors.Is(err, services.ErrGrantExpired):
		return utils.Error(c, fiber.StatusForbidden, "permission grant expired")
	case errors.Is(err, services.ErrNotOwnerOrAdmin):
		return utils.Error(c, fiber.StatusForbidden, "only the item owner or family admin can decide")
	case errors.Is(err, services.ErrNotAdmin):
		return utils.Error(c, fiber.StatusForbidden, "only the family admin can do this")
	case errors.Is(err, services.ErrSelfRequest):
		return utils.Error(c, fiber.StatusBadRequest, "cannot request permission for your own items")
	case errors.Is(err, services.ErrDuplicatePending):
		return utils.Error(c, fiber.StatusConflict, "permission request already exists")
	case errors.Is(err, services.ErrNotPending):
		return utils.Error(c, fiber.StatusConflict, "request has already been decided")
	case errors.Is(err, services.ErrSelfRemoval):
		return utils.Error(c, fiber.StatusConflict, "admin cannot remove themself")
	case errors.Is(err, services.ErrAdminLeaving):
		return utils.Error(c, fiber.StatusConflict, "transfer admin rights first")
	case errors.Is(err, services.ErrWrongFamily):
		return utils.Error(c, fiber.StatusForbidden, "record belongs to another family")
	default:
		return utils.Error(c, fiber.StatusInternalServerError, "operation failed")
	}
}
