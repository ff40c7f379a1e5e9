package models

import "time"

// MessageHistory is an append-only snapshot of a message's content taken
// just before a content-changing update. Rows are owned by their message and
// removed with it.
type MessageHistory struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	MessageID  uint      `gorm:"not null;index" json:"message_id"`
	OldContent string    `gorm:"type:text;not null" json:"old_content"`
	EditedByID *uint     `gorm:"index" json:"edited_by_id,omitempty"`
	EditedBy   *User     `gorm:"foreignKey:EditedByID" json:"edited_by,omitempty"`
	EditedAt   time.Time `gorm:"autoCreateTime" json:"edited_at"`
}

// TableName specifies the table name for the MessageHistory model
func (MessageHistory) TableName() string {
	return "message_histories"
}
