package services

import (
	"context"
	"errors"

	"github.com/familyledger/backend/internal/models"
	"github.com/familyledger/backend/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CascadeService performs the multi-record cleanup triggered by
// membership changes. Every cascade runs inside one transaction,
// children before parents, so a reader never observes a family whose
// dependents still reference it. On any error the whole transaction
// rolls back and the caller gets a retryable failure.
type CascadeService struct {
	DB    *gorm.DB
	Audit *AuditService
}

func NewCascadeService(db *gorm.DB, audit *AuditService) *CascadeService {
	return &CascadeService{DB: db, Audit: audit}
}

// RemoveMember detaches memberID from the family and deletes everything
// the member authored inside it. Rows merely attributed to the member
// but authored by others stay untouched; attribution history survives
// membership changes.
func (s *CascadeService) RemoveMember(ctx context.Context, actor *models.User, memberID uuid.UUID) error {
	family, err := s.adminFamily(ctx, actor)
	if err != nil {
		return err
	}

	if memberID == actor.ID {
		return ErrSelfRemoval
	}

	var member models.User
	if err := s.DB.WithContext(ctx).First(&member, "id = ?", memberID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	if member.FamilyID == nil || *member.FamilyID != family.ID {
		return ErrWrongFamily
	}

	if err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.detachMember(tx, family.ID, memberID)
	}); err != nil {
		logger.ErrorWithUser(actor.ID.String(), "cascade_remove_member_failed", err, map[string]interface{}{
			"family_id": family.ID.String(),
			"member_id": memberID.String(),
		})
		return err
	}

	s.audit(actor.ID, family.ID, "family.remove_member", memberID)
	return nil
}

// RemoveSelf is the leave operation: the same authored-record cascade,
// initiated by the departing member. The admin cannot leave without
// transferring the role first.
func (s *CascadeService) RemoveSelf(ctx context.Context, actor *models.User) error {
	if actor.FamilyID == nil {
		return ErrNoFamily
	}

	var family models.Family
	if err := s.DB.WithContext(ctx).First(&family, "id = ?", *actor.FamilyID).Error; err != nil {
		return err
	}
	if family.IsAdmin(actor.ID) {
		return ErrAdminLeaving
	}

	if err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.detachMember(tx, family.ID, actor.ID)
	}); err != nil {
		return err
	}

	s.audit(actor.ID, family.ID, "family.leave", actor.ID)
	return nil
}

// Dissolve deletes the family and every dependent record. The family
// row goes last; with children already gone no dangling reference is
// ever visible.
func (s *CascadeService) Dissolve(ctx context.Context, actor *models.User) error {
	family, err := s.adminFamily(ctx, actor)
	if err != nil {
		return err
	}

	if err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		familyScope := "family_id = ?"
		if err := tx.Where(familyScope, family.ID).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		if err := tx.Where(familyScope, family.ID).Delete(&models.EditPermission{}).Error; err != nil {
			return err
		}
		if err := tx.Where(familyScope, family.ID).Delete(&models.BudgetItem{}).Error; err != nil {
			return err
		}
		if err := tx.Where(familyScope, family.ID).Delete(&models.ShoppingItem{}).Error; err != nil {
			return err
		}
		if err := tx.Where(familyScope, family.ID).Delete(&models.Reminder{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.User{}).
			Where(familyScope, family.ID).
			Update("family_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Family{}, "id = ?", family.ID).Error
	}); err != nil {
		logger.ErrorWithUser(actor.ID.String(), "cascade_dissolve_failed", err, map[string]interface{}{
			"family_id": family.ID.String(),
		})
		return err
	}

	s.audit(actor.ID, family.ID, "family.dissolve", family.ID)
	return nil
}

// detachMember deletes the member's authored rows within the family and
// clears the membership, in dependency order. Messages threaded under
// the member's deleted permission requests go too, whoever wrote them.
func (s *CascadeService) detachMember(tx *gorm.DB, familyID, memberID uuid.UUID) error {
	var permissionIDs []uuid.UUID
	if err := tx.Model(&models.EditPermission{}).
		Where("family_id = ? AND (requested_by = ? OR item_owner = ?)", familyID, memberID, memberID).
		Pluck("id", &permissionIDs).Error; err != nil {
		return err
	}

	messageScope := tx.Where("family_id = ? AND sender_id = ?", familyID, memberID)
	if len(permissionIDs) > 0 {
		messageScope = messageScope.Or("permission_id IN ?", permissionIDs)
	}
	if err := messageScope.Delete(&models.Message{}).Error; err != nil {
		return err
	}

	if err := tx.Where("family_id = ? AND (requested_by = ? OR item_owner = ?)", familyID, memberID, memberID).
		Delete(&models.EditPermission{}).Error; err != nil {
		return err
	}
	if err := tx.Where("family_id = ? AND created_by = ?", familyID, memberID).
		Delete(&models.BudgetItem{}).Error; err != nil {
		return err
	}
	if err := tx.Where("family_id = ? AND created_by = ?", familyID, memberID).
		Delete(&models.ShoppingItem{}).Error; err != nil {
		return err
	}
	if err := tx.Where("family_id = ? AND (created_by = ? OR assigned_to = ?)", familyID, memberID, memberID).
		Delete(&models.Reminder{}).Error; err != nil {
		return err
	}

	return tx.Model(&models.User{}).
		Where("id = ?", memberID).
		Update("family_id", nil).Error
}

func (s *CascadeService) adminFamily(ctx context.Context, actor *models.User) (*models.Family, error) {
	if actor.FamilyID == nil {
		return nil, ErrNoFamily
	}

	var family models.Family
	if err := s.DB.WithContext(ctx).First(&family, "id = ?", *actor.FamilyID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !family.IsAdmin(actor.ID) {
		return nil, ErrNotAdmin
	}
	return &family, nil
}

func (s *CascadeService) audit(actorID, familyID uuid.UUID, action string, resourceID uuid.UUID) {
	if s.Audit == nil {
		return
	}
	s.Audit.LogAsync(AuditEntry{
		UserID:       &actorID,
		FamilyID:     &familyID,
		Action:       action,
		ResourceType: "family",
		ResourceID:   &resourceID,
	})
}
