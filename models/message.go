package models

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// notificationPreviewLength is the number of leading characters of a
// message's content included in the receiver's notification text.
const notificationPreviewLength = 50

// Message represents a directed message between two users. A message may
// belong to a conversation and may reply to another message; replies form a
// tree through ParentMessageID.
type Message struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	SenderID        uint       `gorm:"not null;index" json:"sender_id"`
	Sender          User       `gorm:"foreignKey:SenderID" json:"sender"`
	ReceiverID      uint       `gorm:"not null;index" json:"receiver_id"`
	Receiver        User       `gorm:"foreignKey:ReceiverID" json:"receiver"`
	ConversationID  *uint      `gorm:"index" json:"conversation_id,omitempty"`
	Content         string     `gorm:"type:text;not null" json:"content"`
	Edited          bool       `gorm:"not null;default:false" json:"edited"`
	Read            bool       `gorm:"not null;default:false;index" json:"read"`
	ParentMessageID *uint      `gorm:"index" json:"parent_message_id,omitempty"`
	Replies         []*Message `gorm:"foreignKey:ParentMessageID" json:"replies,omitempty"`
	AttachmentS3Key *string    `json:"attachment_s3_key,omitempty"`
	AttachmentURL   *string    `gorm:"-" json:"attachment_url,omitempty"` // computed, presigned URL
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// TableName specifies the table name for the Message model
func (Message) TableName() string {
	return "messages"
}

// AfterCreate creates the receiver's notification for a newly created
// message. Self-sent messages produce no notification. The hook runs inside
// the insert transaction: if the notification cannot be created, the send is
// rolled back rather than silently dropping the event.
func (m *Message) AfterCreate(tx *gorm.DB) error {
	if m.SenderID == m.ReceiverID {
		return nil
	}

	session := tx.Session(&gorm.Session{NewDB: true})

	var sender User
	if err := session.Select("id", "name").First(&sender, m.SenderID).Error; err != nil {
		return fmt.Errorf("failed to load sender for notification: %w", err)
	}

	notification := Notification{
		UserID:    m.ReceiverID,
		MessageID: &m.ID,
		Content:   fmt.Sprintf("You received a new message from %s: %s", sender.Name, contentPreview(m.Content)),
	}
	if err := session.Create(&notification).Error; err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	return nil
}

// BeforeUpdate captures the stored content into a MessageHistory row before a
// content-changing update is persisted, and latches the edited flag. Updates
// that leave the content untouched (read-flag flips, no-op saves) record
// nothing.
func (m *Message) BeforeUpdate(tx *gorm.DB) error {
	if m.ID == 0 {
		return nil
	}

	session := tx.Session(&gorm.Session{NewDB: true})

	var stored Message
	err := session.Select("id", "content").First(&stored, m.ID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load stored message: %w", err)
	}

	if stored.Content == m.Content {
		return nil
	}

	history := MessageHistory{
		MessageID:  m.ID,
		OldContent: stored.Content,
		EditedByID: &m.SenderID,
	}
	if err := session.Create(&history).Error; err != nil {
		return fmt.Errorf("failed to record message history: %w", err)
	}

	m.Edited = true
	tx.Statement.SetColumn("Edited", true)
	return nil
}

// BeforeDelete removes the message's reply tree, its history rows, and the
// notifications referencing it, inside the delete transaction.
func (m *Message) BeforeDelete(tx *gorm.DB) error {
	// Batch deletes invoke the hook with a zero-ID receiver; the caller is
	// responsible for those cascades.
	if m.ID == 0 {
		return nil
	}

	session := tx.Session(&gorm.Session{NewDB: true})

	messageIDs, err := collectThreadIDs(session, []uint{m.ID})
	if err != nil {
		return fmt.Errorf("failed to collect reply tree: %w", err)
	}

	if err := session.Where("message_id IN ?", messageIDs).Delete(&MessageHistory{}).Error; err != nil {
		return fmt.Errorf("failed to delete message histories: %w", err)
	}
	if err := session.Where("message_id IN ?", messageIDs).Delete(&Notification{}).Error; err != nil {
		return fmt.Errorf("failed to delete message notifications: %w", err)
	}

	// The triggering statement deletes the root row itself.
	var replyIDs []uint
	for _, id := range messageIDs {
		if id != m.ID {
			replyIDs = append(replyIDs, id)
		}
	}
	if len(replyIDs) > 0 {
		if err := session.Where("id IN ?", replyIDs).Delete(&Message{}).Error; err != nil {
			return fmt.Errorf("failed to delete replies: %w", err)
		}
	}

	return nil
}

// collectThreadIDs expands a set of message ids with every reply reachable
// from them, walking the parent-to-children adjacency level by level.
func collectThreadIDs(session *gorm.DB, roots []uint) ([]uint, error) {
	if len(roots) == 0 {
		return nil, nil
	}

	all := append([]uint(nil), roots...)
	seen := make(map[uint]bool, len(roots))
	for _, id := range roots {
		seen[id] = true
	}

	frontier := roots
	for len(frontier) > 0 {
		var children []uint
		if err := session.Model(&Message{}).
			Where("parent_message_id IN ?", frontier).
			Pluck("id", &children).Error; err != nil {
			return nil, err
		}

		var next []uint
		for _, id := range children {
			if !seen[id] {
				seen[id] = true
				all = append(all, id)
				next = append(next, id)
			}
		}
		frontier = next
	}

	return all, nil
}

// contentPreview returns the leading characters of content used in
// notification text.
func contentPreview(content string) string {
	runes := []rune(content)
	if len(runes) > notificationPreviewLength {
		runes = runes[:notificationPreviewLength]
	}
	return string(runes) + "..."
}
