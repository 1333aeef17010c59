package models

import "github.com/google/uuid"

type BudgetItemType string

const (
	BudgetItemTypeIncome  BudgetItemType = "income"
	BudgetItemTypeExpense BudgetItemType = "expense"
)

// BudgetItem is a single income or expense row. CreatedBy owns the row
// and holds exclusive delete rights. AttributedTo is only ever set by
// the shopping purchase derivation, never by the caller directly: it
// names the member the amount counts against in statistics.
type BudgetItem struct {
	BaseModel
	FamilyID     uuid.UUID      `json:"familyID" gorm:"type:uuid;not null;index"`
	Type         BudgetItemType `json:"type" gorm:"type:varchar(10);not null"`
	Category     string         `json:"category" gorm:"type:varchar(100);not null"`
	Amount       float64        `json:"amount" gorm:"not null"`
	Note         string         `json:"note" gorm:"type:text;not null;default:''"`
	Period       string         `json:"period" gorm:"type:varchar(7);not null;index"`
	CreatedBy    uuid.UUID      `json:"createdBy" gorm:"type:uuid;not null;index"`
	AttributedTo *uuid.UUID     `json:"attributedTo,omitempty" gorm:"type:uuid;index"`
	EditedBy     *uuid.UUID     `json:"editedBy,omitempty" gorm:"type:uuid"`

	Creator User `json:"creator,omitempty" gorm:"foreignKey:CreatedBy;references:ID"`
}

func (BudgetItem) TableName() string {
	return "budget_items"
}

// AttributionTarget is the member this row counts against in per-member
// statistics: the attributed beneficiary when present, the author otherwise.
func (b *BudgetItem) AttributionTarget() uuid.UUID {
	if b.AttributedTo != nil {
		return *b.AttributedTo
	}
	return b.CreatedBy
}
