package models

import (
	"time"

	"github.com/google/uuid"
)

type Reminder struct {
	BaseModel
	FamilyID    uuid.UUID  `json:"familyID" gorm:"type:uuid;not null;index"`
	CreatedBy   uuid.UUID  `json:"createdBy" gorm:"type:uuid;not null;index"`
	AssignedTo  uuid.UUID  `json:"assignedTo" gorm:"type:uuid;not null;index"`
	Title       string     `json:"title" gorm:"type:varchar(255);not null"`
	Note        string     `json:"note" gorm:"type:text;not null;default:''"`
	DueAt       time.Time  `json:"dueAt" gorm:"not null;index"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`

	Creator  User `json:"creator,omitempty" gorm:"foreignKey:CreatedBy;references:ID"`
	Assignee User `json:"assignee,omitempty" gorm:"foreignKey:AssignedTo;references:ID"`
}
