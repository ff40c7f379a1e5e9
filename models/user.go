package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// User roles
const (
	RoleGuest = "guest"
	RoleHost  = "host"
	RoleAdmin = "admin"
)

// User represents a user in the system. Identity is owned by the
// authentication provider; only profile fields change after creation.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Auth0ID   string    `gorm:"uniqueIndex;not null" json:"auth0_id"` // Auth0 user ID (from 'sub' claim)
	Name      string    `gorm:"not null" json:"name"`
	Email     string    `gorm:"uniqueIndex;not null" json:"email"`
	Role      string    `gorm:"not null;default:'guest'" json:"role"` // "guest", "host" or "admin"
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for the User model
func (User) TableName() string {
	return "users"
}

// IsValidRole reports whether role is one of the known user roles.
func IsValidRole(role string) bool {
	switch role {
	case RoleGuest, RoleHost, RoleAdmin:
		return true
	}
	return false
}

// BeforeDelete removes every message the user sent or received (including
// the reply trees hanging off them), the history rows of those messages,
// and every notification addressed to the user. GORM runs the hook inside
// the delete transaction, so a failure at any step rolls back the account
// deletion and leaves no orphaned rows.
func (u *User) BeforeDelete(tx *gorm.DB) error {
	session := tx.Session(&gorm.Session{NewDB: true})

	var roots []uint
	if err := session.Model(&Message{}).
		Where("sender_id = ? OR receiver_id = ?", u.ID, u.ID).
		Pluck("id", &roots).Error; err != nil {
		return fmt.Errorf("failed to collect messages for cascade: %w", err)
	}

	messageIDs, err := collectThreadIDs(session, roots)
	if err != nil {
		return fmt.Errorf("failed to collect reply trees for cascade: %w", err)
	}

	if len(messageIDs) > 0 {
		if err := session.Where("message_id IN ?", messageIDs).Delete(&MessageHistory{}).Error; err != nil {
			return fmt.Errorf("failed to delete message histories: %w", err)
		}
		if err := session.Where("message_id IN ?", messageIDs).Delete(&Notification{}).Error; err != nil {
			return fmt.Errorf("failed to delete message notifications: %w", err)
		}
		if err := session.Where("id IN ?", messageIDs).Delete(&Message{}).Error; err != nil {
			return fmt.Errorf("failed to delete messages: %w", err)
		}
	}

	if err := session.Where("user_id = ?", u.ID).Delete(&Notification{}).Error; err != nil {
		return fmt.Errorf("failed to delete user notifications: %w", err)
	}

	return nil
}
