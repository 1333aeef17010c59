package models

import (
	"time"

	"github.com/google/uuid"
)

type ShoppingItem struct {
	BaseModel
	FamilyID    uuid.UUID  `json:"familyID" gorm:"type:uuid;not null;index"`
	CreatedBy   uuid.UUID  `json:"createdBy" gorm:"type:uuid;not null;index"`
	Name        string     `json:"name" gorm:"type:varchar(255);not null"`
	Quantity    string     `json:"quantity" gorm:"type:varchar(50);not null;default:'1'"`
	Note        string     `json:"note" gorm:"type:text;not null;default:''"`
	Price       float64    `json:"price" gorm:"not null;default:0"`
	IsPurchased bool       `json:"isPurchased" gorm:"not null;default:false;index"`
	BoughtBy    *uuid.UUID `json:"boughtBy,omitempty" gorm:"type:uuid"`
	BoughtAt    *time.Time `json:"boughtAt,omitempty"`

	Creator User `json:"creator,omitempty" gorm:"foreignKey:CreatedBy;references:ID"`
}

func (ShoppingItem) TableName() string {
	return "shopping_items"
}
