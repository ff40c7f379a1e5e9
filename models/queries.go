package models

import "gorm.io/gorm"

// selectUserIdentity limits a preloaded user to the fields list displays
// need.
func selectUserIdentity(db *gorm.DB) *gorm.DB {
	return db.Select("id", "name", "email")
}

// UnreadMessagesForUser returns the unread messages addressed to a user,
// projecting only the fields a list display needs (sender identity, content
// preview, timestamp) to bound memory under large unread counts.
func UnreadMessagesForUser(db *gorm.DB, userID uint) ([]Message, error) {
	var messages []Message
	err := db.
		Select("id", "sender_id", "receiver_id", "content", "created_at").
		Where("receiver_id = ? AND read = ?", userID, false).
		Preload("Sender", selectUserIdentity).
		Order("created_at DESC").
		Find(&messages).Error
	return messages, err
}

// CountUnreadMessagesForUser returns the number of unread messages addressed
// to a user.
func CountUnreadMessagesForUser(db *gorm.DB, userID uint) (int64, error) {
	var count int64
	err := db.Model(&Message{}).
		Where("receiver_id = ? AND read = ?", userID, false).
		Count(&count).Error
	return count, err
}

// ThreadedMessagesForUser returns the user's top-level messages with their
// reply trees attached. One query fetches every message in scope and two
// field-limited preloads fetch sender/receiver identities, so the number of
// queries does not grow with the number of messages. The reply tree is built
// in memory from a parent-id adjacency index.
func ThreadedMessagesForUser(db *gorm.DB, userID uint) ([]*Message, error) {
	var messages []*Message
	err := db.
		Where("sender_id = ? OR receiver_id = ?", userID, userID).
		Preload("Sender", selectUserIdentity).
		Preload("Receiver", selectUserIdentity).
		Order("created_at ASC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return assembleThreads(messages), nil
}

// ThreadedMessagesForConversation returns a conversation's top-level messages
// with their reply trees attached, with the same bounded-query shape as
// ThreadedMessagesForUser.
func ThreadedMessagesForConversation(db *gorm.DB, conversationID uint) ([]*Message, error) {
	var messages []*Message
	err := db.
		Where("conversation_id = ?", conversationID).
		Preload("Sender", selectUserIdentity).
		Preload("Receiver", selectUserIdentity).
		Order("created_at ASC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return assembleThreads(messages), nil
}

// assembleThreads builds the reply forest from a flat message list. Messages
// whose parent is outside the list are treated as roots so scoped queries
// never drop rows.
func assembleThreads(messages []*Message) []*Message {
	index := make(map[uint]*Message, len(messages))
	for _, m := range messages {
		index[m.ID] = m
	}

	roots := make([]*Message, 0, len(messages))
	for _, m := range messages {
		if m.ParentMessageID != nil {
			if parent, ok := index[*m.ParentMessageID]; ok {
				parent.Replies = append(parent.Replies, m)
				continue
			}
		}
		roots = append(roots, m)
	}

	return roots
}

// AttachmentKeysForUser returns the storage keys of every attachment carried
// by a message that deleting the user would remove: messages the user sent or
// received plus the reply trees hanging off them. Callers use the keys to
// clean up stored objects after the rows are gone.
func AttachmentKeysForUser(db *gorm.DB, userID uint) ([]string, error) {
	var roots []uint
	err := db.Model(&Message{}).
		Where("sender_id = ? OR receiver_id = ?", userID, userID).
		Pluck("id", &roots).Error
	if err != nil {
		return nil, err
	}

	messageIDs, err := collectThreadIDs(db, roots)
	if err != nil {
		return nil, err
	}
	if len(messageIDs) == 0 {
		return nil, nil
	}

	var keys []string
	err = db.Model(&Message{}).
		Where("id IN ?", messageIDs).
		Where("attachment_s3_key IS NOT NULL AND attachment_s3_key <> ''").
		Pluck("attachment_s3_key", &keys).Error
	return keys, err
}

// HistoryForMessage returns a message's edit history, newest first, with the
// editor's identity attached.
func HistoryForMessage(db *gorm.DB, messageID uint) ([]MessageHistory, error) {
	var history []MessageHistory
	err := db.
		Where("message_id = ?", messageID).
		Preload("EditedBy", selectUserIdentity).
		Order("edited_at DESC").
		Find(&history).Error
	return history, err
}

// ConversationsForUser returns the conversations a user participates in,
// newest first, with participant identities attached.
func ConversationsForUser(db *gorm.DB, userID uint) ([]Conversation, error) {
	var conversations []Conversation
	err := db.
		Joins("JOIN conversation_participants cp ON cp.conversation_id = conversations.id").
		Where("cp.user_id = ?", userID).
		Preload("Participants", selectUserIdentity).
		Order("conversations.created_at DESC").
		Find(&conversations).Error
	return conversations, err
}

// IsConversationParticipant reports whether a user participates in a
// conversation. Authorization checks call this before any read-path query
// runs.
func IsConversationParticipant(db *gorm.DB, conversationID, userID uint) (bool, error) {
	var count int64
	err := db.Table("conversation_participants").
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Count(&count).Error
	return count > 0, err
}
