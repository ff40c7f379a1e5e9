package models

import "time"

// Notification is a derived record created when a message is delivered to a
// user. It is never created or mutated outside the message lifecycle hooks.
type Notification struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"` // target user
	User      User      `gorm:"foreignKey:UserID" json:"-"`
	MessageID *uint     `gorm:"index" json:"message_id,omitempty"` // source message
	Content   string    `gorm:"type:text;not null" json:"content"`
	Read      bool      `gorm:"not null;default:false" json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for the Notification model
func (Notification) TableName() string {
	return "notifications"
}
