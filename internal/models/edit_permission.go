package models

import (
	"time"

	"github.com/google/uuid"
)

type PermissionStatus string

const (
	PermissionStatusPending  PermissionStatus = "pending"
	PermissionStatusApproved PermissionStatus = "approved"
	PermissionStatusRejected PermissionStatus = "rejected"
)

// EditPermission is a time-boxed delegated edit grant on a budget item.
// pending -> approved | rejected; approval stamps a 24h ExpiresAt.
// Expiry is evaluated lazily at check time, expired rows are never
// actively deleted.
type EditPermission struct {
	BaseModel
	FamilyID     uuid.UUID        `json:"familyID" gorm:"type:uuid;not null;index"`
	BudgetItemID uuid.UUID        `json:"budgetItemID" gorm:"type:uuid;not null;index"`
	ItemOwner    uuid.UUID        `json:"itemOwner" gorm:"type:uuid;not null;index"`
	RequestedBy  uuid.UUID        `json:"requestedBy" gorm:"type:uuid;not null;index"`
	Status       PermissionStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	Reason       string           `json:"reason" gorm:"type:text;not null;default:''"`
	ExpiresAt    *time.Time       `json:"expiresAt,omitempty"`

	Requester  User       `json:"requester,omitempty" gorm:"foreignKey:RequestedBy;references:ID"`
	BudgetItem BudgetItem `json:"budgetItem,omitempty" gorm:"foreignKey:BudgetItemID;references:ID"`
}

func (EditPermission) TableName() string {
	return "edit_permissions"
}

// IsUsable reports whether the grant authorizes an edit at the given
// instant. A nil ExpiresAt on an approved grant can only come from
// legacy data; it is treated as unexpired.
func (p *EditPermission) IsUsable(now time.Time) bool {
	if p.Status != PermissionStatusApproved {
		return false
	}
	return p.ExpiresAt == nil || p.ExpiresAt.After(now)
}
