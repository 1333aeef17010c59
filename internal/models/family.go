package models

import "github.com/google/uuid"

// Family is the aggregate root every shared record hangs off.
// AdminID always references a current member; the admin cannot be
// removed without transferring the role first.
type Family struct {
	BaseModel
	Name           string    `json:"name" gorm:"type:varchar(100);uniqueIndex;not null"`
	JoinSecretHash string    `json:"-" gorm:"type:text;not null"`
	AdminID        uuid.UUID `json:"adminID" gorm:"type:uuid;not null;index"`

	Members []User `json:"members,omitempty" gorm:"foreignKey:FamilyID"`
}

func (Family) TableName() string {
	return "families"
}

func (f *Family) IsAdmin(userID uuid.UUID) bool {
	return f.AdminID == userID
}
