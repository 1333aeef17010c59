package services

import (
	"context"
	"errors"
	"time"

	"github.com/familyledger/backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GrantTTL is the fixed delegation window stamped on every approval.
// Time-boxed delegation avoids indefinite access creep without needing
// an explicit revoke.
const GrantTTL = 24 * time.Hour

// PermissionService owns the grant lifecycle: pending -> approved | rejected.
// Rejection is terminal; an expired approval is terminal for edit checks
// but neither blocks a fresh pending request for the same pair.
type PermissionService struct {
	DB     *gorm.DB
	Access *AccessService
	Audit  *AuditService
}

func NewPermissionService(db *gorm.DB, access *AccessService, audit *AuditService) *PermissionService {
	return &PermissionService{DB: db, Access: access, Audit: audit}
}

func (s *PermissionService) Request(ctx context.Context, actor *models.User, itemID uuid.UUID, reason string) (*models.EditPermission, error) {
	if actor.FamilyID == nil {
		return nil, ErrNoFamily
	}

	// Fetch only what authorization needs before touching the rest.
	var item models.BudgetItem
	if err := s.DB.WithContext(ctx).
		Select("id", "family_id", "created_by").
		First(&item, "id = ?", itemID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if item.FamilyID != *actor.FamilyID {
		return nil, ErrWrongFamily
	}
	if item.CreatedBy == actor.ID {
		return nil, ErrSelfRequest
	}

	permission := models.EditPermission{
		FamilyID:     *actor.FamilyID,
		BudgetItemID: item.ID,
		ItemOwner:    item.CreatedBy,
		RequestedBy:  actor.ID,
		Status:       models.PermissionStatusPending,
		Reason:       reason,
	}

	// Check-then-insert in one transaction; the partial unique index on
	// (budget_item_id, requested_by) WHERE pending backstops the race.
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.EditPermission{}).
			Where("budget_item_id = ? AND requested_by = ? AND status = ?",
				item.ID, actor.ID, models.PermissionStatusPending).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrDuplicatePending
		}
		return tx.Create(&permission).Error
	})
	if err != nil {
		return nil, err
	}

	s.audit(actor.ID, *actor.FamilyID, "permission.request", permission.ID, map[string]interface{}{
		"budget_item_id": item.ID.String(),
		"item_owner":     item.CreatedBy.String(),
	})

	return &permission, nil
}

func (s *PermissionService) Approve(ctx context.Context, actor *models.User, permissionID uuid.UUID) (*models.EditPermission, error) {
	return s.decide(ctx, actor, permissionID, models.PermissionStatusApproved)
}

func (s *PermissionService) Reject(ctx context.Context, actor *models.User, permissionID uuid.UUID) (*models.EditPermission, error) {
	return s.decide(ctx, actor, permissionID, models.PermissionStatusRejected)
}

func (s *PermissionService) decide(ctx context.Context, actor *models.User, permissionID uuid.UUID, verdict models.PermissionStatus) (*models.EditPermission, error) {
	var permission models.EditPermission
	if err := s.DB.WithContext(ctx).First(&permission, "id = ?", permissionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if err := s.authorizeDecision(ctx, actor, &permission); err != nil {
		return nil, err
	}

	if permission.Status != models.PermissionStatusPending {
		return nil, ErrNotPending
	}

	updates := map[string]interface{}{"status": verdict}
	if verdict == models.PermissionStatusApproved {
		expiresAt := time.Now().Add(GrantTTL)
		updates["expires_at"] = expiresAt
		permission.ExpiresAt = &expiresAt
	}
	permission.Status = verdict

	if err := s.DB.WithContext(ctx).Model(&models.EditPermission{}).
		Where("id = ? AND status = ?", permission.ID, models.PermissionStatusPending).
		Updates(updates).Error; err != nil {
		return nil, err
	}

	s.audit(actor.ID, permission.FamilyID, "permission."+string(verdict), permission.ID, map[string]interface{}{
		"requested_by": permission.RequestedBy.String(),
	})

	return &permission, nil
}

func (s *PermissionService) authorizeDecision(ctx context.Context, actor *models.User, permission *models.EditPermission) error {
	if permission.ItemOwner == actor.ID {
		return nil
	}

	// Admins act as the escalation path when an owner is unresponsive.
	var family models.Family
	if err := s.DB.WithContext(ctx).
		Select("id", "admin_id").
		First(&family, "id = ?", permission.FamilyID).Error; err != nil {
		return err
	}
	if !family.IsAdmin(actor.ID) {
		return ErrNotOwnerOrAdmin
	}
	return nil
}

// Eligibility is the answer to "can this actor edit this item right now".
type Eligibility struct {
	CanEdit   bool         `json:"canEdit"`
	Reason    AccessReason `json:"reason"`
	ExpiresAt *time.Time   `json:"expiresAt,omitempty"`
}

func (s *PermissionService) CanEditItem(ctx context.Context, actorID uuid.UUID, item *models.BudgetItem) Eligibility {
	decision := s.Access.CanMutate(ctx, actorID, item, MutationEdit)
	return Eligibility{
		CanEdit:   decision.Allowed,
		Reason:    decision.Reason,
		ExpiresAt: decision.ExpiresAt,
	}
}

func (s *PermissionService) audit(actorID, familyID uuid.UUID, action string, resourceID uuid.UUID, details map[string]interface{}) {
	if s.Audit == nil {
		return
	}
	s.Audit.LogAsync(AuditEntry{
		UserID:       &actorID,
		FamilyID:     &familyID,
		Action:       action,
		ResourceType: "edit_permission",
		ResourceID:   &resourceID,
		Details:      details,
	})
}
