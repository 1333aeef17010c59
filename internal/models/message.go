package models

import "github.com/google/uuid"

// Message is a note between two family members, optionally threaded
// under a permission request.
type Message struct {
	BaseModel
	FamilyID     uuid.UUID  `json:"familyID" gorm:"type:uuid;not null;index"`
	PermissionID *uuid.UUID `json:"permissionID,omitempty" gorm:"type:uuid;index"`
	SenderID     uuid.UUID  `json:"senderID" gorm:"type:uuid;not null;index"`
	RecipientID  uuid.UUID  `json:"recipientID" gorm:"type:uuid;not null;index"`
	Content      string     `json:"content" gorm:"type:text;not null"`
	IsRead       bool       `json:"isRead" gorm:"not null;default:false;index"`

	Sender    User `json:"sender,omitempty" gorm:"foreignKey:SenderID;references:ID"`
	Recipient User `json:"recipient,omitempty" gorm:"foreignKey:RecipientID;references:ID"`
}
