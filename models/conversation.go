package models

import "time"

// Conversation groups messages exchanged by a set of participants.
type Conversation struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Participants []User    `gorm:"many2many:conversation_participants" json:"participants"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableName specifies the table name for the Conversation model
func (Conversation) TableName() string {
	return "conversations"
}
