package services

import (
	"context"
	"time"

	"github.com/familyledger/backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MutationOp string

const (
	MutationEdit   MutationOp = "edit"
	MutationDelete MutationOp = "delete"
)

type AccessReason string

const (
	// ReasonOwner: the actor authored the item.
	ReasonOwner AccessReason = "owner"
	// ReasonGrantApproved: a delegated edit grant is approved and unexpired.
	ReasonGrantApproved AccessReason = "approved"
	// ReasonGrantExpired: the best grant exists but its window has closed.
	ReasonGrantExpired AccessReason = "expired"
	// ReasonNoGrant: not the owner and no grant was ever approved.
	ReasonNoGrant AccessReason = "none"
	// ReasonOwnerOnly: the operation is never delegated.
	ReasonOwnerOnly AccessReason = "owner_only"
)

// AccessDecision is the structured verdict of the mutation gate.
// Delegated is true only for an edit allowed through a grant, in which
// case the caller must stamp EditedBy on the item.
type AccessDecision struct {
	Allowed   bool
	Delegated bool
	Reason    AccessReason
	ExpiresAt *time.Time
}

// AccessService decides whether an actor may mutate a budget item.
// Grant expiry is evaluated lazily here against wall-clock time;
// expired rows stay in storage untouched.
type AccessService struct {
	DB *gorm.DB
}

func NewAccessService(db *gorm.DB) *AccessService {
	return &AccessService{DB: db}
}

func (a *AccessService) CanMutate(ctx context.Context, actorID uuid.UUID, item *models.BudgetItem, op MutationOp) AccessDecision {
	if item.CreatedBy == actorID {
		return AccessDecision{Allowed: true, Reason: ReasonOwner}
	}

	if op == MutationDelete {
		// Deletion is irreversible and attribution-breaking, so it is
		// never delegated.
		return AccessDecision{Reason: ReasonOwnerOnly}
	}

	grant, err := a.bestGrant(ctx, item.ID, actorID)
	if err != nil {
		return AccessDecision{Reason: ReasonNoGrant}
	}

	if !grant.IsUsable(time.Now()) {
		return AccessDecision{Reason: ReasonGrantExpired, ExpiresAt: grant.ExpiresAt}
	}

	return AccessDecision{
		Allowed:   true,
		Delegated: true,
		Reason:    ReasonGrantApproved,
		ExpiresAt: grant.ExpiresAt,
	}
}

// bestGrant returns the approved grant with the latest expiry for the
// (item, actor) pair. Pending and rejected rows never authorize anything.
func (a *AccessService) bestGrant(ctx context.Context, itemID, actorID uuid.UUID) (*models.EditPermission, error) {
	var grant models.EditPermission
	err := a.DB.WithContext(ctx).
		Where("budget_item_id = ? AND requested_by = ? AND status = ?", itemID, actorID, models.PermissionStatusApproved).
		Order("expires_at DESC").
		First(&grant).Error
	if err != nil {
		return nil, err
	}
	return &grant, nil
}
