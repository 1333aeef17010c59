package models

import "github.com/google/uuid"

type User struct {
	BaseModel
	Email        string     `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash string     `json:"-" gorm:"type:text;not null"`
	Name         string     `json:"name" gorm:"type:varchar(100);not null"`
	FamilyID     *uuid.UUID `json:"familyID,omitempty" gorm:"type:uuid;index"`

	Family *Family `json:"family,omitempty" gorm:"foreignKey:FamilyID"`
}
